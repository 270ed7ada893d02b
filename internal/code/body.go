package code

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jackleland/autospice/internal/errs"
	"github.com/jackleland/autospice/internal/machine"
)

// RenderBody implements SimulationCode. The body is assembled from named
// sections: a preamble that records the environment, the timed spice
// invocation, a stitcher pass on version 3, and a post-run block that
// rotates logs, backs up results and cancels any chained jobs when the run
// looks finished.
func (s *Spice) RenderBody(m *machine.Machine, call *CallParams, multiSubmission, safeJobTime, backup bool) (string, error) {
	cfg, ok := call.Config.(*SpiceConfig)
	if !ok {
		return "", errs.Configf("spice cannot render a body for a %T config", call.Config)
	}

	sections := []struct {
		name, text string
	}{
		{"preamble", s.preambleSection(call)},
		{"run", s.runSection(m, call, cfg, multiSubmission, safeJobTime)},
		{"stitcher", s.stitcherSection(call, cfg)},
		{"post-run", s.postRunSection(m, call, cfg, backup)},
	}

	var b strings.Builder
	for _, sec := range sections {
		if sec.name != "stitcher" && sec.text == "" {
			return "", errs.Configf("spice produced an empty %s section", sec.name)
		}
		b.WriteString(sec.text)
	}
	return b.String(), nil
}

func (s *Spice) preambleSection(call *CallParams) string {
	return "source $HOME/.bashrc\n" +
		"\necho \"Date is: $(env TZ=GB date)\"\n" +
		"echo \"MPI version is: \"\n" +
		"echo \"\"\n" +
		"mpirun --version\n" +
		"echo \"\"\n" +
		fmt.Sprintf("echo \"Changing directory to %s\"\n", call.ExecutableDir) +
		fmt.Sprintf("cd %s\n\n", call.ExecutableDir) +
		"if [ $(ulimit -s) != \"unlimited\" ]; then\n" +
		"\techo \"ulimit is:\"\n" +
		"\tulimit -s\n\n" +
		"\techo \"\"\n" +
		"\tulimit -s unlimited\n" +
		"\techo \"new ulimit is:\"\n" +
		"\tulimit -s\n" +
		"\techo \"\"\n" +
		"fi\n\n"
}

func (s *Spice) runSection(m *machine.Machine, call *CallParams, cfg *SpiceConfig, multiSubmission, safeJobTime bool) string {
	args := s.commandLineArgs(cfg)
	// A multi-job chain needs every non-restart job after the first to pick
	// up from the previous job's state, which the -c flag arranges.
	if multiSubmission && cfg.Restart() == RestartNone {
		args = append(args, "-c")
	}
	if cfg.TimeLimit == 0 && safeJobTime {
		if safe, err := m.SafeJobTimeHours(); err == nil {
			args = append(args, "-l "+strconv.Itoa(safe))
		}
	}

	var runCommand string
	if call.NodeDistribution != "" {
		// srun's arbitrary distribution mode spreads tasks unevenly across
		// nodes, keeping the controller rank alone on the first node.
		runCommand = strings.Join([]string{
			"srun", "-n", strconv.Itoa(call.TotalCpus),
			"-m", "arbitrary",
			"-w", fmt.Sprintf("`%s %s`", filepath.Join(call.ExecutableDir, "arbitrary.pl"), call.NodeDistribution),
		}, " ")
	} else {
		runCommand = strings.Join([]string{"mpirun", "-np", strconv.Itoa(call.TotalCpus)}, " ")
	}

	spiceCommand := strings.Join(append(append([]string{call.Executable}, args...),
		"-o", s.outputStem(call),
		"-i", call.InputFile,
		"-t", s.tFileStem(call),
	), " ")

	return "echo \"\"\n" +
		fmt.Sprintf("echo \"executing: %s %s\"\n", runCommand, spiceCommand) +
		"echo \"\"\n" +
		fmt.Sprintf("time %s %s\n\n", runCommand, spiceCommand)
}

func (s *Spice) stitcherSection(call *CallParams, cfg *SpiceConfig) string {
	if cfg.Version != 3 {
		return ""
	}
	stitcherCommand := strings.Join([]string{
		filepath.Join(call.ExecutableDir, "stitcher.bin"),
		"-i", call.InputFile,
		"-t", s.tFileStem(call),
		"-n", strconv.Itoa(call.TotalCpus),
	}, " ")
	return "echo \"\"\n" +
		fmt.Sprintf("echo \"executing: %s\"\n", stitcherCommand) +
		"echo \"\"\n" +
		fmt.Sprintf("%s\n\n", stitcherCommand)
}

func (s *Spice) postRunSection(m *machine.Machine, call *CallParams, cfg *SpiceConfig, backup bool) string {
	out := call.OutputDir
	log := filepath.Join(out, logPrefix)

	text := "\n\nsleep 600 \n" +
		fmt.Sprintf("cat %s.out >> %s.ongoing.out\n", log, log) +
		fmt.Sprintf("cat %s.err >> %s.ongoing.err\n\n", log, log) +
		fmt.Sprintf("BU_FOLDER=\"%s/backup_$(env TZ=GB date +\"%%Y%%m%%d-%%H%%M\")\"\n", out) +
		"echo \"Making backup of simulation data into $BU_FOLDER\"\n" +
		"mkdir \"$BU_FOLDER\"\n" +
		fmt.Sprintf("rsync -azvp --exclude='backup*' %s.mat $BU_FOLDER\n", s.tFileStem(call)) +
		fmt.Sprintf("rsync -azvp --exclude='backup*' --exclude='*.mat' --exclude='*ongoing*' %s/* $BU_FOLDER\n", out)
	if backup {
		text += fmt.Sprintf("rsync -azvp --exclude='backup*' %s/* $BU_FOLDER\n", out)
	}

	// Cancel all chained jobs once the ongoing log reports the simulation
	// essentially complete.
	percentCol := versionLogPercentCols[cfg.Version]
	text += "\n" +
		fmt.Sprintf("if (( $(cat %s/%s.ongoing.out | grep '%% ' | tail -n 1 | awk '{print %s}') >= 99 ))\n",
			out, logPrefix, percentCol) +
		"then \n" +
		fmt.Sprintf("\t%s $(cat %s/jobs.txt)\n", m.Scheduler.CancelCommand, out) +
		"fi\n"
	return text
}

// outputStem is the path stem spice writes its result files to, named after
// the output directory.
func (s *Spice) outputStem(call *CallParams) string {
	return filepath.Join(call.OutputDir, filepath.Base(call.OutputDir))
}

// tFileStem is the path stem of the per-rank t-files.
func (s *Spice) tFileStem(call *CallParams) string {
	return filepath.Join(call.OutputDir, "t-"+filepath.Base(call.OutputDir))
}
