package cli

import (
	"fmt"

	"github.com/dproject-io/dproject/internal/engine"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph [PROJECT_DIR]",
	Short: "Output the command graph in DOT format",
	Long: `Generates a Graphviz DOT graph of the project. Solid edges link the
command producing an output to the commands depending on it; each workflow is
drawn as a cluster with dotted edges in step order. Pipe the output to 'dot'
to generate an image:

  dproject graph | dot -Tpng > graph.png`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGraph,
}

func runGraph(cmd *cobra.Command, args []string) error {
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
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Fprint(cmd.OutOrStdout(), engine.BuildFlowGraph(cfg).DOT(cfg))
	return nil
}
