// Package code defines the SimulationCode abstraction and its concrete
// implementations. A SimulationCode knows how to validate its own section of
// the submission config, inspect and mutate its input files, generate the
// body of a batch script and prepare its output directory, while staying
// ignorant of which scheduler the script is destined for.
package code

import (
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/jackleland/autospice/internal/errs"
	"github.com/jackleland/autospice/internal/machine"
	"github.com/jackleland/autospice/internal/scan"
)

// RestartMode describes how a simulation run relates to an earlier run in
// the same output directory.
type RestartMode int

const (
	// RestartNone is a fresh run into an empty directory.
	RestartNone RestartMode = iota
	// RestartSoft resumes from checkpoint files, keeping prior output.
	RestartSoft
	// RestartFull reruns from the final simulation state.
	RestartFull
)

func (m RestartMode) String() string {
	switch m {
	case RestartSoft:
		return "soft"
	case RestartFull:
		return "full"
	default:
		return "none"
	}
}

// RestartCopyMode selects what happens to an existing output directory when
// a restart is requested.
type RestartCopyMode string

const (
	// CopyNone restarts in place without preserving anything.
	CopyNone RestartCopyMode = "none"
	// CopyNew copies the directory to a _restart sibling and runs in the copy.
	CopyNew RestartCopyMode = "new"
	// CopyStayOut copies the directory to an _at_restart sibling and runs in
	// the original.
	CopyStayOut RestartCopyMode = "stay_out"
	// CopyStayIn snapshots the directory into a timestamped backup inside
	// itself and runs in the original.
	CopyStayIn RestartCopyMode = "stay_in"
)

// ParseRestartCopyMode resolves a user-supplied copy mode string, accepting
// both the mode names and their numeric positions.
func ParseRestartCopyMode(s string) (RestartCopyMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "0":
		return CopyNone, nil
	case "new", "1":
		return CopyNew, nil
	case "stay_out", "2":
		return CopyStayOut, nil
	case "stay_in", "3":
		return CopyStayIn, nil
	}
	return "", errs.Configf("invalid restart copy mode %q, expected one of none, new, stay_out, stay_in", s)
}

// Config is the validated, code-specific part of a submission config.
type Config interface {
	// Restart reports which restart behaviour the config selects.
	Restart() RestartMode
}

// CallParams gathers everything RenderBody needs to compose the program
// invocation for one job. Paths are absolute by the time they get here.
type CallParams struct {
	TotalCpus     int
	Executable    string
	ExecutableDir string
	OutputDir     string
	InputFile     string
	Config        Config

	// NodeDistribution holds a per-node cpu count list ("1,47,48") when the
	// first node should run the lone controller rank, empty otherwise.
	NodeDistribution string
}

// SimulationCode is the contract every supported simulation program
// implements.
type SimulationCode interface {
	// Name returns the registry name of the code.
	Name() string

	// ValidateConfig checks the code-specific config section and returns its
	// typed form.
	ValidateConfig(opts map[string]string) (Config, error)

	// VerifyInputFile checks an input file for internal consistency and
	// compatibility with the requested cpu count.
	VerifyInputFile(input *InputFile, cfg Config, totalCpus int) error

	// IsParameterScan reports whether the input file requests a parameter
	// scan.
	IsParameterScan(input *InputFile) bool

	// ScanningParameters extracts any parameter-scan descriptors from the
	// input file.
	ScanningParameters(input *InputFile) []scan.Parameter

	// RenderBody generates the per-job script body that follows the
	// scheduler header.
	RenderBody(m *machine.Machine, call *CallParams, multiSubmission, safeJobTime, backup bool) (string, error)

	// DirectoryIO prepares the output directory according to the restart
	// mode and returns the directory the run should actually use.
	DirectoryIO(outputDir string, cfg Config, dryRun bool, copyMode RestartCopyMode) (string, error)

	// IsOwnOutputDir reports whether a directory looks like it holds this
	// code's simulation output.
	IsOwnOutputDir(fs afero.Fs, path string) bool

	// CopyExecutable stages the binary into the output directory and updates
	// call to point at the staged copy.
	CopyExecutable(call *CallParams, dryRun bool) error

	// PrintOptions reports the validated config choices to the console.
	PrintOptions(cfg Config)
}

// Registry maps lowercase code names to their implementations.
type Registry map[string]SimulationCode

// DefaultRegistry returns the registry of all built-in simulation codes.
func DefaultRegistry() Registry {
	return Registry{
		"spice": NewSpice(),
	}
}

// Lookup resolves a code by name, case-insensitively.
func (r Registry) Lookup(name string) (SimulationCode, error) {
	if c, ok := r[strings.ToLower(name)]; ok {
		return c, nil
	}
	return nil, errs.Configf("unknown simulation code %q, available codes: %s", name, strings.Join(r.Names(), ", "))
}

// Names returns the registered code names in sorted order.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
