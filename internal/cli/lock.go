package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dproject-io/dproject/internal/console"
	"github.com/dproject-io/dproject/internal/lockfile"
	"github.com/dproject-io/dproject/internal/project"
	"github.com/dustin/go-humanize"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

var lockDir string

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Inspect and edit project.lock",
	Long:  `Commands for inspecting project.lock and removing entries from it.`,
}

var lockListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the entries of project.lock",
	Args:  cobra.NoArgs,
	RunE:  runLockList,
}

var lockShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show the entry of one command",
	Args:  cobra.ExactArgs(1),
	RunE:  runLockShow,
}

var lockRmCmd = &cobra.Command{
	Use:   "rm <pattern>...",
	Short: "Remove entries so their commands run again",
	Long: `Removes the entries whose names match any of the given glob patterns
(e.g. 'train*'). The next run of those commands will not be skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLockRm,
}

func init() {
	lockCmd.PersistentFlags().StringVarP(&lockDir, "project-dir", "C", "", "Project directory (defaults to the working directory)")
	lockCmd.AddCommand(lockListCmd)
	lockCmd.AddCommand(lockShowCmd)
	lockCmd.AddCommand(lockRmCmd)
}

func readLock() (string, lockfile.Lockfile, error) {
	dir, err := resolveProjectDir([]string{lockDir}, 0)
	if err != nil {
		return "", nil, err
	}
	lf, err := newLockManager(dir).Read()
	if err != nil {
		return "", nil, fmt.Errorf("failed to read %s: %w", lockfile.FileName, err)
	}
	return dir, lf, nil
}

func runLockList(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	dir, lf, err := readLock()
	if err != nil {
		return err
	}
	if len(lf) == 0 {
		fmt.Fprintln(out, "No entries in project.lock.")
		return nil
	}

	// Entries of commands no longer in the manifest are flagged when it loads.
	var cfg *project.Config
	if ov, err := collectOverrides(nil); err == nil {
		cfg, _ = loadProject(dir, ov)
	}

	rows := make([][]string, 0, len(lf))
	for _, name := range lf.Names() {
		entry := lf[name]
		note := ""
		if cfg != nil {
			if _, ok := cfg.Command(name); !ok {
				note = "orphaned"
			}
		}
		rows = append(rows, []string{
			name,
			strconv.Itoa(len(entry.Script)),
			strconv.Itoa(len(entry.Deps)),
			strconv.Itoa(len(entry.Outs)),
			humanize.Bytes(outputsSize(dir, entry.Outs)),
			note,
		})
	}
	fmt.Fprintln(out, console.RenderTable(console.TableConfig{
		Headers: []string{"command", "script", "deps", "outs", "outputs size", "note"},
		Rows:    rows,
	}))
	fmt.Fprintf(out, "\nTotal: %d entries\n", len(lf))
	return nil
}

func runLockShow(cmd *cobra.Command, args []string) error {
	_, lf, err := readLock()
	if err != nil {
		return err
	}
	entry, ok := lf[args[0]]
	if !ok {
		return fmt.Errorf("no entry for '%s' in %s", args[0], lockfile.FileName)
	}
	data, err := yaml.Marshal(lockfile.Lockfile{args[0]: entry})
	if err != nil {
		return fmt.Errorf("failed to render entry: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func runLockRm(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	dir, lf, err := readLock()
	if err != nil {
		return err
	}
	for _, pattern := range args {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid pattern %q", pattern)
		}
	}

	mgr := newLockManager(dir)
	removed := 0
	for _, name := range lf.Names() {
		if !matchesAny(args, name) {
			continue
		}
		ok, err := mgr.Remove(cmd.Context(), name)
		if err != nil {
			return err
		}
		if ok {
			removed++
			fmt.Fprintln(out, console.FormatSuccessMessage("Removed "+name))
		}
	}
	if removed == 0 {
		fmt.Fprintln(out, console.FormatInfoMessage("No matching entries in "+lockfile.FileName))
	}
	return nil
}

func matchesAny(patterns []string, name string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

// outputsSize sums the sizes of the recorded outputs that exist on disk.
func outputsSize(dir string, outs []lockfile.FileInfo) uint64 {
	var total uint64
	for _, o := range outs {
		_ = filepath.WalkDir(filepath.Join(dir, o.Path), func(_ string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				return err
			}
			if d.Type().IsRegular() {
				if info, err := d.Info(); err == nil {
					total += uint64(info.Size())
				}
			}
			return nil
		})
	}
	return total
}
