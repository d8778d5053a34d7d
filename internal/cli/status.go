package cli

import (
	"fmt"
	"strings"

	"github.com/dproject-io/dproject/internal/console"
	"github.com/dproject-io/dproject/internal/engine"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [PROJECT_DIR]",
	Short: "Show which commands would run",
	Long: `Compares every command with its entry in project.lock and reports
whether the next run would execute it. Nothing is run and nothing is written.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	dir, err := resolveProjectDir(args, 0)
	if err != nil {
		return err
	}
	ov, err := collectOverrides(nil)
	if err != nil {
		return err
	}
	cfg, err := loadProject(dir, ov)
	if err != nil {
		return err
	}
	printWarnings(out, cfg.Warnings)

	statuses, err := engine.Status(dir, cfg, newLockManager(dir))
	if err != nil {
		return err
	}
	if len(statuses) == 0 {
		fmt.Fprintln(out, console.FormatInfoMessage("No commands defined in project.yml"))
		return nil
	}

	pending := 0
	rows := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		state := "up to date"
		if s.Rerun {
			state = "will run"
			pending++
		}
		reason := s.Reason
		if len(s.Missing) > 0 {
			reason += ": " + strings.Join(s.Missing, ", ")
		}
		rows = append(rows, []string{s.Name, state, reason})
	}
	fmt.Fprintln(out, console.RenderTable(console.TableConfig{
		Headers: []string{"command", "status", "reason"},
		Rows:    rows,
	}))
	fmt.Fprintf(out, "\n%d of %d command(s) would run\n", pending, len(statuses))
	return nil
}
