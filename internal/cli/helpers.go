package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dproject-io/dproject/internal/console"
	"github.com/dproject-io/dproject/internal/engine"
	"github.com/dproject-io/dproject/internal/lockfile"
	"github.com/dproject-io/dproject/internal/overrides"
	"github.com/dproject-io/dproject/internal/project"
)

// resolveProjectDir returns the absolute project directory named by args[idx],
// or the working directory when it is absent.
func resolveProjectDir(args []string, idx int) (string, error) {
	if len(args) <= idx || args[idx] == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get working directory: %w", err)
		}
		return wd, nil
	}
	absPath, err := filepath.Abs(args[idx])
	if err != nil {
		return "", fmt.Errorf("failed to resolve path %s: %w", args[idx], err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("failed to stat path %s: %w", args[idx], err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", args[idx])
	}
	return absPath, nil
}

// loadProject reads and interpolates the manifest without creating any of its
// directories.
func loadProject(dir string, ov overrides.Overrides) (*project.Config, error) {
	return project.NewLoader(dir).Resolve(ov)
}

// collectOverrides merges override tokens from the command line with those in
// D_CONFIG_OVERRIDES. Command-line values win.
func collectOverrides(tokens []string) (overrides.Overrides, error) {
	return overrides.FromSources(tokens, os.Getenv(overrides.EnvVar))
}

func newEngine(out io.Writer) *engine.Engine {
	eng := engine.NewEngine(toolSettings.Python)
	eng.Out = out
	eng.LockTimeout = toolSettings.LockTimeout
	return eng
}

func newLockManager(dir string) *lockfile.Manager {
	return lockfile.NewManager(dir).WithLockTimeout(toolSettings.LockTimeout)
}

func printWarnings(w io.Writer, warnings []string) {
	for _, warning := range warnings {
		fmt.Fprintln(w, console.FormatWarningMessage(warning))
	}
}

// renderRunHelp lists the commands and workflows of cfg, or describes the one
// called name.
func renderRunHelp(w io.Writer, cfg *project.Config, name string) error {
	if name == "" {
		fmt.Fprintln(w)
		if len(cfg.Commands) > 0 {
			rows := make([][]string, 0, len(cfg.Commands))
			for _, n := range cfg.CommandNames() {
				cmd, _ := cfg.Command(n)
				rows = append(rows, []string{n, "dproject run " + n, cmd.Help})
			}
			fmt.Fprintln(w, console.RenderTable(console.TableConfig{
				Title:   "commands in " + project.FileName,
				Headers: []string{"command", "usage", "description"},
				Rows:    rows,
			}))
		}
		if len(cfg.Workflows) > 0 {
			fmt.Fprintln(w, workflowTable(cfg, cfg.WorkflowNames(), "workflows in "+project.FileName))
		}
		if len(cfg.Commands) == 0 && len(cfg.Workflows) == 0 {
			fmt.Fprintln(w, console.FormatInfoMessage("No commands or workflows defined in "+project.FileName))
		}
		return nil
	}

	kind, err := engine.ResolveName(cfg, name)
	if err != nil {
		return err
	}
	var steps []string
	if kind == engine.KindWorkflow {
		fmt.Fprintln(w, workflowTable(cfg, []string{name}, ""))
		for _, step := range cfg.Workflows[name] {
			if !slices.Contains(steps, step) {
				steps = append(steps, step)
			}
		}
	} else {
		steps = []string{name}
	}

	rows := make([][]string, 0, len(steps))
	for _, step := range steps {
		help := ""
		if cmd, ok := cfg.Command(step); ok {
			help = cmd.Help
		}
		rows = append(rows, []string{step, help})
	}
	fmt.Fprintln(w, console.RenderTable(console.TableConfig{
		Headers: []string{"command", "description"},
		Rows:    rows,
	}))
	return nil
}

func workflowTable(cfg *project.Config, names []string, title string) string {
	rows := make([][]string, 0, len(names))
	for _, n := range names {
		rows = append(rows, []string{n, "dproject run " + n, strings.Join(cfg.Workflows[n], " -> ")})
	}
	return console.RenderTable(console.TableConfig{
		Title:   title,
		Headers: []string{"workflow", "usage", "steps"},
		Rows:    rows,
	})
}
