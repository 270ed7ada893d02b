// Package scheduler renders batch-scheduler submission script headers and
// submits the resulting scripts.
//
// A Scheduler is a data-driven description of one queueing system: a table of
// directive templates keyed by canonical parameter name, the sets of required
// and optional parameters, and the submission command. The built-in variants
// (Slurm, PBS, Loadleveller) differ only in their tables.
package scheduler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jackleland/autospice/internal/errs"
)

// Canonical submission parameter names shared by all scheduler variants.
const (
	ParamJobName     = "job_name"
	ParamNodes       = "nodes"
	ParamCpusPerNode = "cpus_per_node"
	ParamWalltime    = "walltime"
	ParamOutLog      = "out_log"
	ParamErrLog      = "err_log"
	ParamQueue       = "queue"
	ParamQos         = "qos"
	ParamAccount     = "account"
	ParamMemory      = "memory"
	ParamEmail       = "email"
	ParamEmailEvents = "email_events"
	ParamInitialDir  = "initial_dir"
)

// Params is an insertion-ordered set of submission parameters. Rendering
// emits one directive per parameter in the order the parameters were set, so
// the same Params always renders to byte-identical text.
type Params struct {
	keys   []string
	values map[string]string
}

// NewParams creates an empty parameter set.
func NewParams() *Params {
	return &Params{values: make(map[string]string)}
}

// Set stores a parameter value, preserving first-insertion order. Setting an
// existing key overwrites the value in place.
func (p *Params) Set(key string, value interface{}) {
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = fmt.Sprintf("%v", value)
}

// Get returns the value for key and whether it is present.
func (p *Params) Get(key string) (string, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Has reports whether key is present.
func (p *Params) Has(key string) bool {
	_, ok := p.values[key]
	return ok
}

// Keys returns the parameter names in insertion order.
func (p *Params) Keys() []string {
	return append([]string(nil), p.keys...)
}

// Clone returns an independent copy of the parameter set.
func (p *Params) Clone() *Params {
	c := NewParams()
	for _, k := range p.keys {
		c.Set(k, p.values[k])
	}
	return c
}

// Scheduler describes one queueing system. Instances are immutable,
// process-wide singletons; see the built-in variants in variants.go.
type Scheduler struct {
	Name               string
	SubmitCommand      string            // batch-submit binary name (e.g. "sbatch")
	CancelCommand      string            // job-cancel binary name (e.g. "scancel")
	ScriptExt          string            // script file extension, including the dot
	Shebang            string            // first line of every rendered script
	DefaultEmailEvents string            // injected when email is set without email_events
	Templates          map[string]string // canonical parameter -> directive template
	Required           []string
	Optional           []string

	// JoinedParams names an ordered subset of parameters whose directives
	// must be concatenated onto a single physical line, without separators,
	// emitted before the normal per-line pass. Used by queueing systems
	// whose node and cpu directives share one line.
	JoinedParams []string

	// Trailer lines appended after the standard header block.
	Trailer []string

	// JobIDPattern extracts the job ID (capture group 1) from the submit
	// command's output. When nil the last whitespace-separated token is used.
	JobIDPattern *regexp.Regexp

	// DependencyArgs returns the extra submit arguments that chain a job
	// after the given predecessor job ID. Nil means the scheduler has no
	// command-line dependency mechanism.
	DependencyArgs func(jobID string) []string
}

// RenderHeader produces the scheduler-specific script header for the given
// submission parameters. It validates that all required parameters are
// present and that no parameter falls outside the required and optional sets,
// failing with a ParameterError naming the offending keys otherwise.
//
// The output is the shebang line, one directive line per parameter in
// insertion order (joined parameters first, concatenated), any trailer lines,
// and a trailing blank line.
func (s *Scheduler) RenderHeader(params *Params) (string, error) {
	if err := s.validate(params); err != nil {
		return "", err
	}

	lines := []string{s.Shebang}

	joined := make(map[string]bool, len(s.JoinedParams))
	if len(s.JoinedParams) > 0 {
		var b strings.Builder
		for _, key := range s.JoinedParams {
			value, ok := params.Get(key)
			if !ok {
				continue
			}
			fmt.Fprintf(&b, s.Templates[key], value)
			joined[key] = true
		}
		if b.Len() > 0 {
			lines = append(lines, b.String())
		}
	}

	for _, key := range params.Keys() {
		if joined[key] {
			continue
		}
		value, _ := params.Get(key)
		lines = append(lines, fmt.Sprintf(s.Templates[key], value))
	}

	lines = append(lines, s.Trailer...)

	// Trailing empty element so the header ends with a blank line
	lines = append(lines, "")
	return strings.Join(lines, "\n"), nil
}

func (s *Scheduler) validate(params *Params) error {
	var missing []string
	for _, key := range s.Required {
		if !params.Has(key) {
			missing = append(missing, key)
		}
	}

	allowed := make(map[string]bool, len(s.Required)+len(s.Optional))
	for _, key := range s.Required {
		allowed[key] = true
	}
	for _, key := range s.Optional {
		allowed[key] = true
	}

	var extra []string
	for _, key := range params.Keys() {
		if !allowed[key] {
			extra = append(extra, key)
		}
	}

	if len(missing) > 0 || len(extra) > 0 {
		return &errs.ParameterError{Component: s.Name, Missing: missing, Extra: extra}
	}
	return nil
}

// IsOptional reports whether the named parameter is in the scheduler's
// optional set.
func (s *Scheduler) IsOptional(key string) bool {
	for _, opt := range s.Optional {
		if opt == key {
			return true
		}
	}
	return false
}

// ParseJobID extracts the scheduler-assigned job ID from submission output.
func (s *Scheduler) ParseJobID(output string) (string, error) {
	trimmed := strings.TrimSpace(output)
	if s.JobIDPattern != nil {
		if m := s.JobIDPattern.FindStringSubmatch(trimmed); m != nil {
			return m[1], nil
		}
		return "", fmt.Errorf("%w: %q", ErrJobIDParseFailed, trimmed)
	}
	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return "", fmt.Errorf("%w: empty output", ErrJobIDParseFailed)
	}
	return fields[len(fields)-1], nil
}
