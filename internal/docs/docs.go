// Package docs renders a Markdown README section describing a project's
// commands, workflows and assets.
package docs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dproject-io/dproject/internal/console"
	"github.com/dproject-io/dproject/internal/logging"
	"github.com/dproject-io/dproject/internal/project"
)

// Markers delimiting the generated section inside an existing file.
const (
	MarkerStart = "<!-- PROJECT: AUTO-GENERATED DOCS START (do not remove) -->"
	MarkerEnd   = "<!-- PROJECT: AUTO-GENERATED DOCS END (do not remove) -->"
	// MarkerIgnore in an existing file leaves the file untouched.
	MarkerIgnore = "<!-- PROJECT: IGNORE -->"
)

// Stdout as output path writes the document to standard output.
const Stdout = "-"

// Language selects the language of the generated text.
type Language string

const (
	English Language = "en"
	Chinese Language = "zh"
)

// ParseLanguage accepts "en" and "zh".
func ParseLanguage(s string) (Language, error) {
	switch Language(strings.ToLower(s)) {
	case English:
		return English, nil
	case Chinese:
		return Chinese, nil
	}
	return "", fmt.Errorf("unsupported language %q (use en or zh)", s)
}

type texts struct {
	heading         string
	commands        string
	workflows       string
	assets          string
	introProject    string
	introCommands   string
	introWorkflows  string
	introAssets     string
	commandHeaders  []string
	workflowHeaders []string
	assetHeaders    []string
}

var catalog = map[Language]texts{
	English: {
		heading:   "Project",
		commands:  "Commands",
		workflows: "Workflows",
		assets:    "Assets",
		introProject: fmt.Sprintf("The [`%s`](%s) defines the data assets required by the project, "+
			"as well as the available commands and workflows.", project.FileName, project.FileName),
		introCommands: "The following commands are defined by the project. They can be executed using " +
			"`dproject run [name]`. Commands are only re-run if their inputs have changed.",
		introWorkflows: "The following workflows are defined by the project. They can be executed using " +
			"`dproject run [name]` and will run the specified commands in order. Commands are only re-run " +
			"if their inputs have changed.",
		introAssets: "The following assets are defined by the project. They have to be in place " +
			"before the commands that depend on them are run.",
		commandHeaders:  []string{"Command", "Description"},
		workflowHeaders: []string{"Workflow", "Steps"},
		assetHeaders:    []string{"File", "Source", "Description"},
	},
	Chinese: {
		heading:         "项目",
		commands:        "命令",
		workflows:       "流程",
		assets:          "Assets",
		introProject:    fmt.Sprintf("[`%s`](%s)定义了项目所有的命令以及由命令组成的流程.", project.FileName, project.FileName),
		introCommands:   "以下是项目中的命令. 它们都可以通过`dproject run [name]`来运行.",
		introWorkflows:  "以下是项目中的流程. 它们都可以通过`dproject run [name]`来运行, 并且会按照顺序依次运行命令.",
		introAssets:     "以下是项目中定义的数据. 运行依赖它们的命令之前需要先准备好这些数据.",
		commandHeaders:  []string{"命令", "描述"},
		workflowHeaders: []string{"流程", "步骤"},
		assetHeaders:    []string{"File", "Source", "Description"},
	},
}

// Options controls rendering.
type Options struct {
	Language Language
	NoEmoji  bool
}

// Render returns the generated section, markers included. projectDir is used
// to link local assets that exist in the repository.
func Render(projectDir string, cfg *project.Config, opts Options) string {
	t, ok := catalog[opts.Language]
	if !ok {
		t = catalog[English]
	}
	md := &renderer{noEmoji: opts.NoEmoji}

	md.add(MarkerStart)
	heading := t.heading
	if cfg.Title != "" {
		heading += ": " + cfg.Title
	}
	md.add(md.title(1, heading, "🪐"))
	if cfg.Description != "" {
		md.add(cfg.Description)
	}
	md.add(md.title(2, project.FileName, "📋"))
	md.add(t.introProject)

	var rows [][]string
	for _, name := range cfg.CommandNames() {
		cmd, _ := cfg.Command(name)
		rows = append(rows, []string{code(name), cmd.Help})
	}
	if len(rows) > 0 {
		md.add(md.title(3, t.commands, "⏯"))
		md.add(t.introCommands)
		md.add(table(t.commandHeaders, rows))
	}

	rows = nil
	for _, name := range cfg.WorkflowNames() {
		steps := make([]string, len(cfg.Workflows[name]))
		for i, step := range cfg.Workflows[name] {
			steps[i] = code(step)
		}
		rows = append(rows, []string{code(name), strings.Join(steps, " &rarr; ")})
	}
	if len(rows) > 0 {
		md.add(md.title(3, t.workflows, "⏭"))
		md.add(t.introWorkflows)
		md.add(table(t.workflowHeaders, rows))
	}

	rows = nil
	for _, a := range Assets(cfg) {
		dest := code(a.Dest)
		if a.Source == SourceLocal {
			if _, err := os.Stat(filepath.Join(projectDir, a.Dest)); err == nil {
				dest = fmt.Sprintf("[%s](%s)", dest, a.Dest)
			}
		}
		rows = append(rows, []string{dest, a.Source, a.Description})
	}
	if len(rows) > 0 {
		md.add(md.title(3, t.assets, "🗂"))
		md.add(t.introAssets)
		md.add(table(t.assetHeaders, rows))
	}

	md.add(MarkerEnd)
	return md.String()
}

// Asset sources.
const (
	SourceGit   = "Git"
	SourceURL   = "URL"
	SourceLocal = "Local"
)

// Asset is the documented view of one entry of the assets section.
type Asset struct {
	Dest        string
	Source      string
	Description string
}

// Assets extracts the entries of the free-form assets section that name a
// destination. Anything else is ignored.
func Assets(cfg *project.Config) []Asset {
	list, ok := cfg.Assets.([]any)
	if !ok {
		return nil
	}
	var assets []Asset
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		dest, _ := m["dest"].(string)
		if dest == "" {
			continue
		}
		a := Asset{Dest: dest, Source: SourceLocal}
		switch {
		case m["git"] != nil:
			a.Source = SourceGit
		case m["url"] != nil:
			a.Source = SourceURL
		}
		if desc, ok := m["description"].(string); ok {
			a.Description = desc
		}
		assets = append(assets, a)
	}
	return assets
}

// Result tells what Write did with an existing file.
type Result int

const (
	Created Result = iota + 1
	Replaced
	Updated
	Ignored
	Printed
)

// Write renders the documentation to output. An existing file carrying the
// ignore marker is left alone; one carrying both section markers keeps
// everything outside them.
func Write(projectDir string, cfg *project.Config, output string, stdout io.Writer, opts Options) (Result, error) {
	content := Render(projectDir, cfg, opts)
	if output == Stdout {
		_, err := fmt.Fprintln(stdout, content)
		return Printed, err
	}

	result := Created
	existing, err := os.ReadFile(output)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return 0, fmt.Errorf("failed to read %s: %w", output, err)
	default:
		text := string(existing)
		if strings.Contains(text, MarkerIgnore) {
			fmt.Fprintln(stdout, console.FormatWarningMessage("Found ignore marker in existing file: skipping "+output))
			return Ignored, nil
		}
		before, rest, foundStart := strings.Cut(text, MarkerStart)
		_, after, foundEnd := strings.Cut(rest, MarkerEnd)
		if foundStart && foundEnd {
			fmt.Fprintln(stdout, console.FormatInfoMessage("Found existing file: only replacing auto-generated docs"))
			content = before + content + after
			result = Updated
		} else {
			fmt.Fprintln(stdout, console.FormatWarningMessage("Replacing existing file"))
			result = Replaced
		}
	}

	if err := os.WriteFile(output, []byte(content), 0644); err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", output, err)
	}
	logging.Debug("wrote project docs", "path", output, "result", result)
	fmt.Fprintln(stdout, console.FormatSuccessMessage("Saved project documentation "+output))
	return result, nil
}

type renderer struct {
	noEmoji bool
	blocks  []string
}

func (r *renderer) add(block string) {
	r.blocks = append(r.blocks, block)
}

func (r *renderer) title(level int, text, emoji string) string {
	prefix := strings.Repeat("#", level) + " "
	if !r.noEmoji && emoji != "" {
		prefix += emoji + " "
	}
	return prefix + text
}

func (r *renderer) String() string {
	return strings.Join(r.blocks, "\n\n")
}

func code(s string) string {
	return "`" + s + "`"
}

func table(headers []string, rows [][]string) string {
	var b strings.Builder
	b.WriteString("| " + strings.Join(headers, " | ") + " |\n")
	sep := make([]string, len(headers))
	for i := range sep {
		sep[i] = "---"
	}
	b.WriteString("| " + strings.Join(sep, " | ") + " |")
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = strings.ReplaceAll(cell, "|", `\|`)
		}
		b.WriteString("\n| " + strings.Join(cells, " | ") + " |")
	}
	return b.String()
}
