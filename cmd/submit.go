package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jackleland/autospice/internal/code"
	"github.com/jackleland/autospice/internal/config"
	"github.com/jackleland/autospice/internal/orchestrator"
	"github.com/jackleland/autospice/internal/utils"
)

var (
	submitDryRun   bool
	submitSafeTime bool
	submitBackup   bool
	submitCopyMode string
	submitYes      bool
)

var submitCmd = &cobra.Command{
	Use:   "submit <config-file>",
	Short: "Write and submit a simulation job from a submission config file",
	Long: `Read an INI-style submission config file, write one or more job scripts
and submit them to the machine's batch scheduler.

The config file holds a [scheduler] section (machine, user, job_name, n_cpus,
walltime and optional queue/account/memory settings), a [code] section
(code_name, bin, input, output, executable) and one section named after the
code with its own options. No defaults are applied to the required options,
so the file stays a complete record of the job.

A walltime beyond the machine's per-job limit is split into a chain of jobs
held together with after-any dependencies. Bracketed value lists in the
input file ("Ly = [64, 128]") expand into a parameter scan with one run per
combination.`,
	Example: `  autospice submit flush.cfg            # plan, confirm and submit
  autospice submit -d flush.cfg         # dry run, write nothing to disk
  autospice submit -y -r stay_out flush.cfg`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true, // Runtime errors should not show usage
	RunE:         runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)
	submitCmd.Flags().BoolVarP(&submitDryRun, "dry-run", "d", false, "Plan and render scripts without touching disk or submitting")
	submitCmd.Flags().BoolVarP(&submitSafeTime, "safe-time", "s", true, "Request only 90% of the machine's job time, leaving room for I/O")
	submitCmd.Flags().BoolVarP(&submitBackup, "backup", "b", true, "Mirror the full output directory in the end-of-job backup")
	submitCmd.Flags().StringVarP(&submitCopyMode, "restart-copy-mode", "r", "", "Backup behaviour on restart: none, new, stay_out or stay_in")
	submitCmd.Flags().BoolVarP(&submitYes, "yes", "y", false, "Skip the confirmation prompt")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	opts := orchestrator.Options{
		DryRun:      submitDryRun,
		SafeJobTime: viper.GetBool(config.KeySafeJobTime),
		Backup:      viper.GetBool(config.KeyBackup),
		SubmitJob:   viper.GetBool(config.KeySubmitJob),
	}
	if cmd.Flags().Changed("safe-time") {
		opts.SafeJobTime = submitSafeTime
	}
	if cmd.Flags().Changed("backup") {
		opts.Backup = submitBackup
	}

	copyMode := viper.GetString(config.KeyRestartCopyMode)
	if submitCopyMode != "" {
		copyMode = submitCopyMode
	}
	mode, err := code.ParseRestartCopyMode(copyMode)
	if err != nil {
		return err
	}
	opts.RestartCopyMode = mode

	cfg, err := config.Load(args[0])
	if err != nil {
		return err
	}

	o := orchestrator.New()
	if opts.DryRun {
		o.Fs = afero.NewMemMapFs()
	}

	plan, err := o.Plan(cfg, opts)
	if err != nil {
		return err
	}
	plan.PrintChoices()

	if !submitYes && utils.IsInteractiveShell() {
		fmt.Print("\nDo you want to continue? [Y/n]: ")
		var response string
		fmt.Scanln(&response)
		response = strings.ToLower(strings.TrimSpace(response))

		if response == "n" || response == "no" {
			if err := plan.Cleanup(); err != nil {
				utils.PrintWarning("Failed to remove output directory: %v", err)
			}
			utils.PrintMessage("Submission cancelled by user.")
			return nil
		}
	}

	return o.Execute(plan)
}
