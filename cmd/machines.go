package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jackleland/autospice/internal/machine"
	"github.com/jackleland/autospice/internal/utils"
)

var machinesCmd = &cobra.Command{
	Use:          "machines",
	Short:        "List the supported HPC machines and their capacities",
	SilenceUsage: true,
	RunE:         runMachines,
}

func init() {
	rootCmd.AddCommand(machinesCmd)
}

func runMachines(cmd *cobra.Command, args []string) error {
	registry := machine.DefaultRegistry()
	for _, name := range registry.Names() {
		m, err := registry.Lookup(name)
		if err != nil {
			return err
		}
		utils.PrintMessage("%s (%s)", utils.StyleTitle(m.Name), utils.StyleInfo(m.Scheduler.Name))
		utils.PrintMessage("  cpus per node:   %s", utils.StyleNumber(m.CpusPerNode))
		utils.PrintMessage("  memory per node: %sGB", utils.StyleNumber(m.MemoryPerNode))
		utils.PrintMessage("  max nodes:       %s", utils.StyleNumber(m.MaxNodes))
		if m.MaxJobTime != nil {
			utils.PrintMessage("  max job time:    %shrs", utils.StyleNumber(*m.MaxJobTime))
		} else {
			utils.PrintMessage("  max job time:    unlimited")
		}
	}
	return nil
}
