package gen

import (
	"github.com/spf13/cobra"
)

var RootCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generate documentation for the piconats CLI",
}

func init() {
	RootCmd.AddCommand(ManPagesCmd)
}
