package cli

import (
	"errors"

	"github.com/dproject-io/dproject/internal/console"
	"github.com/dproject-io/dproject/internal/engine"
	"github.com/dproject-io/dproject/internal/logging"
	"github.com/dproject-io/dproject/internal/settings"
	"github.com/spf13/cobra"
)

var (
	toolConfig   = settings.New()
	toolSettings settings.Settings
)

var rootCmd = &cobra.Command{
	Use:   "dproject",
	Short: "Declarative task runner for data projects",
	Long: `dproject runs the commands and workflows declared in a project.yml.

It keeps a project.lock of what every command consumed and produced:
  • Commands are skipped when their inputs, outputs and script are unchanged
  • Variables are interpolated with ${vars.name} and ${env.name}
  • Overrides come from the command line and D_CONFIG_OVERRIDES`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { applySettings(); return nil },
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExitCode maps an error returned by Execute to a process exit status. A
// script line that failed passes its own status through.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var procErr *engine.ProcessError
	if errors.As(err, &procErr) && procErr.ExitCode > 0 {
		return procErr.ExitCode
	}
	return 1
}

func applySettings() {
	toolSettings = settings.Load(toolConfig)
	logging.Init(toolSettings.LogLevel)
	if toolSettings.NoColor {
		console.SetColor(false)
	}
}

func init() {
	cobra.CheckErr(settings.BindFlags(toolConfig, rootCmd.PersistentFlags()))

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(documentCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(lockCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(versionCmd)
}
