package cli

import (
	"fmt"

	"github.com/dproject-io/dproject/internal/console"
	"github.com/dproject-io/dproject/internal/engine"
	"github.com/dproject-io/dproject/internal/project"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [PROJECT_DIR]",
	Short: "Validate project.yml",
	Long: `Parses project.yml, checks it against the schema, interpolates its
variables and checks that every workflow step names a command. Workflows that
run a command before the command producing one of its dependencies are
reported as warnings.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	dir, err := resolveProjectDir(args, 0)
	if err != nil {
		return err
	}
	ov, err := collectOverrides(nil)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Checking %s... ", project.FileName)
	cfg, err := loadProject(dir, ov)
	if err != nil {
		fmt.Fprintln(out, "FAILED")
		return fmt.Errorf("validation failed: %w", err)
	}
	fmt.Fprintln(out, "OK")

	printWarnings(out, cfg.Warnings)
	graph := engine.BuildFlowGraph(cfg)
	for _, name := range cfg.WorkflowNames() {
		printWarnings(out, graph.OrderWarnings(name, cfg.Workflows[name]))
	}
	if _, err := graph.Order(); err != nil {
		fmt.Fprintln(out, console.FormatWarningMessage(err.Error()))
	}

	fmt.Fprintln(out, console.FormatSuccessMessage(fmt.Sprintf(
		"Configuration is valid: %d command(s), %d workflow(s)", len(cfg.CommandNames()), len(cfg.Workflows))))
	return nil
}
