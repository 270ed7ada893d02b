package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jackleland/autospice/internal/code"
	"github.com/jackleland/autospice/internal/utils"
)

var codesCmd = &cobra.Command{
	Use:          "codes",
	Short:        "List the supported simulation codes",
	SilenceUsage: true,
	RunE:         runCodes,
}

func init() {
	rootCmd.AddCommand(codesCmd)
}

func runCodes(cmd *cobra.Command, args []string) error {
	registry := code.DefaultRegistry()
	for _, name := range registry.Names() {
		utils.PrintMessage("%s", utils.StyleName(name))
	}
	return nil
}
