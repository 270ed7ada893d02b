package code

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/jackleland/autospice/internal/errs"
	"github.com/jackleland/autospice/internal/scan"
	"github.com/jackleland/autospice/internal/utils"
)

// logPrefix is the stem of the per-job log files the scheduler writes into
// the output directory.
const logPrefix = "log"

// versionLogPercentCols maps a Spice major version to the awk column holding
// the completion percentage in its log output.
var versionLogPercentCols = map[int]string{
	2: "$1",
	3: "$2",
}

// Spice implements SimulationCode for the SPICE particle-in-cell codes,
// versions 2 and 3.
type Spice struct {
	mandatory []string
	optional  []string
	boolean   []string
}

// NewSpice returns the Spice code implementation.
func NewSpice() *Spice {
	return &Spice{
		mandatory: []string{"spice_version", "verbose", "soft_restart", "full_restart"},
		optional:  []string{"time_limit"},
		boolean:   []string{"verbose", "soft_restart", "full_restart"},
	}
}

// Name implements SimulationCode.
func (s *Spice) Name() string {
	return "spice"
}

// SpiceConfig is the validated spice section of a submission config.
type SpiceConfig struct {
	Version     int
	Verbose     bool
	SoftRestart bool
	FullRestart bool

	// TimeLimit is a hard per-job time limit in hours, 0 when unset. When
	// set it overrides the machine-derived safe job time.
	TimeLimit int
}

// Restart implements Config.
func (c *SpiceConfig) Restart() RestartMode {
	switch {
	case c.FullRestart:
		return RestartFull
	case c.SoftRestart:
		return RestartSoft
	default:
		return RestartNone
	}
}

// ValidateConfig implements SimulationCode. It checks the spice config
// section for missing or unrecognised labels and value-level consistency.
func (s *Spice) ValidateConfig(opts map[string]string) (Config, error) {
	var missing []string
	for _, label := range s.mandatory {
		if _, ok := opts[label]; !ok {
			missing = append(missing, label)
		}
	}
	known := make(map[string]bool, len(s.mandatory)+len(s.optional))
	for _, label := range s.mandatory {
		known[label] = true
	}
	for _, label := range s.optional {
		known[label] = true
	}
	var extra []string
	for label := range opts {
		if !known[label] {
			extra = append(extra, label)
		}
	}
	if len(missing) > 0 || len(extra) > 0 {
		return nil, &errs.ParameterError{Component: "spice config", Missing: missing, Extra: extra}
	}

	cfg := &SpiceConfig{}

	version, err := strconv.Atoi(strings.TrimSpace(opts["spice_version"]))
	if err != nil || (version != 2 && version != 3) {
		return nil, errs.Configf("spice_version given (%s) was not valid, must be either 2 or 3", opts["spice_version"])
	}
	cfg.Version = version

	bools := map[string]*bool{
		"verbose":      &cfg.Verbose,
		"soft_restart": &cfg.SoftRestart,
		"full_restart": &cfg.FullRestart,
	}
	for _, label := range s.boolean {
		v, err := parseBool(opts[label])
		if err != nil {
			return nil, errs.Configf("spice config option %s must be a boolean, got %q", label, opts[label])
		}
		*bools[label] = v
	}
	if cfg.SoftRestart && cfg.FullRestart {
		return nil, errs.Configf("the soft and full restart flags were both set, select only one: " +
			"full restart uses all available information to restart the run (including diagnostics), " +
			"soft restart only uses particle positions, velocities and the iteration count")
	}

	if raw, ok := opts["time_limit"]; ok {
		limit, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || limit <= 0 {
			return nil, errs.Configf("the time_limit code config option must be a positive, integer number of hours, got %q", raw)
		}
		cfg.TimeLimit = limit
		utils.PrintWarning("A hard time limit of %dhrs was set on spice, this overrides the machine safe job time", limit)
	}

	return cfg, nil
}

// PrintOptions implements SimulationCode.
func (s *Spice) PrintOptions(cfg Config) {
	sc := cfg.(*SpiceConfig)
	utils.PrintMessage("SPICE specific options are:")
	utils.PrintMessage("  Spice version: %d", sc.Version)
	utils.PrintMessage("  Verbose:       %t", sc.Verbose)
	if mode := sc.Restart(); mode != RestartNone {
		utils.PrintMessage("  Restart type:  %s", mode)
	}
	if sc.TimeLimit > 0 {
		utils.PrintMessage("  Time limit:    %d hr(s)", sc.TimeLimit)
	}
}

// commandLineArgs returns the spice flags selected by the config: the
// restart flag, verbosity and any hard time limit.
func (s *Spice) commandLineArgs(cfg *SpiceConfig) []string {
	var args []string
	switch cfg.Restart() {
	case RestartSoft:
		args = append(args, "-r")
	case RestartFull:
		args = append(args, "-c")
	}
	if cfg.Verbose {
		args = append(args, "-v")
	}
	if cfg.TimeLimit > 0 {
		args = append(args, "-l", strconv.Itoa(cfg.TimeLimit))
	}
	return args
}

// VerifyInputFile implements SimulationCode. Version 3 runs carry extra
// constraints: the simulation window must be power-of-two sized, the x-y
// decomposition must be a power of two matching the cpu count, and species
// must leave rank assignment to the code.
func (s *Spice) VerifyInputFile(input *InputFile, cfg Config, totalCpus int) error {
	sc := cfg.(*SpiceConfig)
	utils.PrintMessage("Verifying input file...")
	if sc.Version == 3 {
		for _, dim := range []string{"Lx", "Ly", "Lz"} {
			size, err := input.Int("geom", dim)
			if err != nil {
				return err
			}
			if !isPowerOfTwo(size) {
				return errs.Configf("invalid simulation window size (%s=%d), must be a power of 2 in 3D simulations", dim, size)
			}
		}

		dx, err := input.Int("geom", "decompose_x")
		if err != nil {
			return err
		}
		dy, err := input.Int("geom", "decompose_y")
		if err != nil {
			return err
		}
		decompTotal := dx * dy
		if !isPowerOfTwo(decompTotal) {
			return errs.Configf("invalid x-y decomposition (no. of decomposition areas = %d), must be a power of 2 in 3D simulations", decompTotal)
		}
		if decompTotal != totalCpus {
			return errs.Configf("invalid x-y decomposition (no. of decomposition areas = %d), must equal the number of cpus requested (%d)", decompTotal, totalCpus)
		}

		noSpecies, err := input.Int("num_spec", "no_species")
		if err != nil {
			return err
		}
		for i := 0; i < noSpecies; i++ {
			section := fmt.Sprintf("specie%d", i)
			rank, err := input.Int(section, "mpi_rank")
			if err != nil {
				return err
			}
			if rank != -1 {
				name, _ := input.Get(section, "name")
				return errs.Configf("invalid mpi_rank on species %s, must be set to -1", name)
			}
		}
	}
	utils.PrintMessage("...Input file verified successfully!")
	return nil
}

// IsParameterScan implements SimulationCode.
func (s *Spice) IsParameterScan(input *InputFile) bool {
	return len(input.ScanParameters()) > 0
}

// ScanningParameters implements SimulationCode.
func (s *Spice) ScanningParameters(input *InputFile) []scan.Parameter {
	return input.ScanParameters()
}

var trailingDigitsPattern = regexp.MustCompile(`[0-9]{2}\.mat$`)

// IsOwnOutputDir implements SimulationCode. A spice output directory holds
// exactly one main results .mat file, exactly one undecomposed t-file and
// more than one t-file in total.
func (s *Spice) IsOwnOutputDir(fs afero.Fs, path string) bool {
	infos, err := afero.ReadDir(fs, path)
	if err != nil {
		return false
	}
	var results, tMain, tAll int
	for _, info := range infos {
		name := info.Name()
		if info.IsDir() || !strings.HasSuffix(name, ".mat") {
			continue
		}
		if strings.HasPrefix(name, "t-") {
			tAll++
			if !trailingDigitsPattern.MatchString(name) {
				tMain++
			}
		} else if !strings.HasSuffix(name, ".2d.mat") {
			results++
		}
	}
	return results == 1 && tMain == 1 && tAll > 1
}

// CopyExecutable implements SimulationCode. The binary is staged into a
// localbin directory inside the output directory so that later rebuilds of
// the source tree cannot affect a queued job.
func (s *Spice) CopyExecutable(call *CallParams, dryRun bool) error {
	localBin := filepath.Join(call.OutputDir, "localbin")
	staged := filepath.Join(localBin, filepath.Base(call.Executable))
	utils.PrintMessage("Copying executable to %s", staged)
	if !dryRun {
		if err := copyTree(call.Executable, staged); err != nil {
			return err
		}
	}
	call.Executable = staged
	return nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "on", "1":
		return true, nil
	case "false", "no", "off", "0":
		return false, nil
	}
	return false, errs.Configf("invalid boolean %q", s)
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
