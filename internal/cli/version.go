package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version of the dproject binary, stamped by release builds with
// -ldflags "-X github.com/dproject-io/dproject/internal/cli.Version=...".
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the dproject release and the platform it was built for",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "dproject version %s (%s/%s)\n", Version, runtime.GOOS, runtime.GOARCH)
		return err
	},
}
