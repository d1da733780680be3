package gen

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"

	"github.com/luma/piconats/internal/meta"
)

var (
	manDir string
)

var ManPagesCmd = &cobra.Command{
	Use:   "man",
	Short: "Generate man pages for every piconats command",
	Long: `Generate man pages for every piconats command. By default the pages
are written to the "man" directory under the current directory.`,
	Args: cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		header := &doc.GenManHeader{
			Section: "1",
			Manual:  "piconats Manual",
			Source:  fmt.Sprintf("piconats %s", meta.GetInfo().Version),
		}

		if !strings.HasSuffix(manDir, string(filepath.Separator)) {
			manDir += string(filepath.Separator)
		}

		if err := os.MkdirAll(manDir, 0750); err != nil {
			return fmt.Errorf("Failed to create %s: %w", manDir, err)
		}

		cmd.Root().DisableAutoGenTag = true

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Generating man pages in", manDir, "...")

		if err := doc.GenManTree(cmd.Root(), header, manDir); err != nil {
			return err
		}

		fmt.Fprintln(out, "Done.")
		return nil
	},
}

func init() {
	flags := ManPagesCmd.PersistentFlags()

	flags.StringVar(&manDir, "dir", "man/", "the directory to write the man pages to")

	// For bash-completion
	if err := flags.SetAnnotation("dir", cobra.BashCompSubdirsInDir, []string{}); err != nil {
		panic(err)
	}
}
