package cli

import (
	"github.com/dproject-io/dproject/internal/docs"
	"github.com/spf13/cobra"
)

var (
	documentOutput   string
	documentNoEmoji  bool
	documentLanguage string
)

var documentCmd = &cobra.Command{
	Use:   "document [PROJECT_DIR]",
	Short: "Generate a README for the project",
	Long: `Auto-generates a Markdown README from project.yml. When written to a
file, hidden markers surround the generated section so custom content before
or after it is kept when the command is re-run. A file containing
<!-- PROJECT: IGNORE --> is never touched.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDocument,
}

func init() {
	documentCmd.Flags().StringVarP(&documentOutput, "output", "o", docs.Stdout, "Markdown file to write, - for standard output")
	documentCmd.Flags().BoolVar(&documentNoEmoji, "no-emoji", false, "Don't use emoji in headings")
	documentCmd.Flags().StringVar(&documentLanguage, "lang", string(docs.Chinese), "Language of the generated text (en, zh)")
}

func runDocument(cmd *cobra.Command, args []string) error {
	dir, err := resolveProjectDir(args, 0)
	if err != nil {
		return err
	}
	lang, err := docs.ParseLanguage(documentLanguage)
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
	_, err = docs.Write(dir, cfg, documentOutput, cmd.OutOrStdout(), docs.Options{
		Language: lang,
		NoEmoji:  documentNoEmoji,
	})
	return err
}
