package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackleland/autospice/internal/config"
	"github.com/jackleland/autospice/internal/scheduler"
	"github.com/jackleland/autospice/internal/utils"
)

var (
	debugMode bool
	quietMode bool
)

var rootCmd = &cobra.Command{
	Use:           "autospice",
	Short:         "Autospice: write and submit batch scheduler job scripts for plasma simulations on HPC machines.",
	Version:       config.VERSION,
	SilenceErrors: true,

	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := config.InitViper(); err != nil {
			utils.PrintDebug("Error reading settings file: %v", err)
		}

		if debugMode {
			utils.DebugMode = true
			utils.PrintDebug("Debug mode enabled")
			utils.PrintDebug("Autospice Version: %s", config.VERSION)
		}
		if quietMode {
			utils.QuietMode = true
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra's automatic error printing is silenced. For submission
		// errors print the captured scheduler output (trimmed) before
		// exiting with non-zero status.
		if se, ok := err.(*scheduler.SubmissionError); ok {
			out := strings.TrimSpace(se.Output)
			if out != "" {
				fmt.Fprintln(os.Stderr, out)
			}
		}
		fmt.Fprintln(os.Stderr, err)
		if !utils.DebugMode {
			utils.PrintHint("Re-run with %s for more detail.", utils.StyleCommand("--debug"))
		}
		os.Exit(1)
	}
}

func init() {
	// Subcommands are attached to rootCmd in their respective init() functions
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug mode with verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quietMode, "quiet", "q", false, "Suppress informational output")
}
