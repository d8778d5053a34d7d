package cli

import (
	"fmt"
	"strings"

	"github.com/dproject-io/dproject/internal/engine"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var runCmd = &cobra.Command{
	Use:   "run [NAME] [PROJECT_DIR] [--section.key value ...]",
	Short: "Run a command or workflow",
	Long: `Runs a command or workflow defined in project.yml. Commands are only
re-run if their inputs, outputs or script changed since the last run.

Flags:
  -D, --dry       Print the script lines without running them
  -F, --force     Run commands even if nothing changed
      --capture   Collect the output of script lines instead of streaming it
  -h, --help      List the available commands and workflows

Any other --section.key value (or --section.key=value) overrides a value of
project.yml, e.g. --vars.epochs 20. Overrides can also be passed in the
D_CONFIG_OVERRIDES environment variable; command-line values win.`,
	DisableFlagParsing: true,
	RunE:               runRun,
}

type runArgs struct {
	name       string
	projectDir string
	dry        bool
	force      bool
	capture    bool
	help       bool
	overrides  []string
}

// parseRunArgs splits the raw arguments of run into its own flags, global
// flags, positionals and override tokens. Global flags are applied to global.
func parseRunArgs(args []string, global *pflag.FlagSet) (*runArgs, error) {
	ra := &runArgs{}
	var positionals []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "--dry", "-D":
			ra.dry = true
			continue
		case "--force", "-F":
			ra.force = true
			continue
		case "--capture":
			ra.capture = true
			continue
		case "--help", "-h":
			ra.help = true
			continue
		}

		if !strings.HasPrefix(arg, "-") {
			positionals = append(positionals, arg)
			continue
		}

		key, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if flag := global.Lookup(key); flag != nil && strings.HasPrefix(arg, "--") {
			if !hasValue {
				if flag.Value.Type() == "bool" {
					value = "true"
				} else if i+1 < len(args) {
					i++
					value = args[i]
				} else {
					return nil, fmt.Errorf("flag needs an argument: --%s", key)
				}
			}
			if err := global.Set(key, value); err != nil {
				return nil, fmt.Errorf("invalid argument %q for --%s: %w", value, key, err)
			}
			continue
		}

		ra.overrides = append(ra.overrides, arg)
		if !hasValue && i+1 < len(args) && !strings.HasPrefix(args[i+1], "--") {
			i++
			ra.overrides = append(ra.overrides, args[i])
		}
	}

	switch len(positionals) {
	case 2:
		ra.projectDir = positionals[1]
		fallthrough
	case 1:
		ra.name = positionals[0]
	case 0:
	default:
		return nil, fmt.Errorf("unexpected argument %q", positionals[2])
	}
	return ra, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	ra, err := parseRunArgs(args, cmd.Root().PersistentFlags())
	if err != nil {
		return err
	}
	applySettings()

	dir, err := resolveProjectDir([]string{ra.projectDir}, 0)
	if err != nil {
		return err
	}
	ov, err := collectOverrides(ra.overrides)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if ra.help || ra.name == "" {
		cfg, err := loadProject(dir, ov)
		if err != nil {
			return err
		}
		return renderRunHelp(out, cfg, ra.name)
	}

	return newEngine(out).Run(cmd.Context(), dir, ra.name, engine.RunOptions{
		Overrides: ov,
		Force:     ra.force,
		Dry:       ra.dry,
		Capture:   ra.capture,
	})
}
