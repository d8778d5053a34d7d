package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dproject-io/dproject/internal/project"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [PATH]",
	Short: "Create a starter project.yml",
	Long: `Writes a starter project.yml with one workflow chaining two commands.
PATH defaults to ./project.yml; a directory gets a project.yml inside it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing file")
}

// starterManifest is the manifest written by init, in key order.
var starterManifest = yaml.MapSlice{
	{Key: "title", Value: "project-demo"},
	{Key: "description", Value: "describe project details"},
	{Key: "vars", Value: yaml.MapSlice{{Key: "name", Value: "demo"}}},
	{Key: "check_requirements", Value: false},
	{Key: "directories", Value: []string{"assets"}},
	{Key: "assets", Value: []yaml.MapSlice{{
		{Key: "dest", Value: "assets/demo.txt"},
		{Key: "url", Value: "https://demo.com"},
		{Key: "description", Value: "demo description"},
	}}},
	{Key: "commands", Value: []yaml.MapSlice{
		{
			{Key: "name", Value: "command1"},
			{Key: "help", Value: "command1 help"},
			{Key: "script", Value: []string{"python scripts/command1.py ${vars.name}"}},
		},
		{
			{Key: "name", Value: "command2"},
			{Key: "help", Value: "command2 help"},
			{Key: "script", Value: []string{"python scripts/command2.py ${vars.name}"}},
		},
	}},
	{Key: "workflows", Value: yaml.MapSlice{{Key: "all", Value: []string{"command1", "command2"}}}},
}

func runInit(cmd *cobra.Command, args []string) error {
	path := project.FileName
	if len(args) > 0 {
		path = args[0]
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			path = filepath.Join(path, project.FileName)
		}
	}

	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	data, err := yaml.Marshal(starterManifest)
	if err != nil {
		return fmt.Errorf("failed to render %s: %w", project.FileName, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created %s\n", path)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "  1. Edit project.yml to define your commands and workflows")
	fmt.Fprintln(out, "  2. Run 'dproject run' to list them")
	fmt.Fprintln(out, "  3. Run 'dproject run all' to run the workflow")
	return nil
}
