// Package config loads and validates submission config files. A submission
// config is an INI-style file with a [scheduler] section, a [code] section
// and one further section named after the simulation code, holding that
// code's own options.
package config

import (
	"strconv"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/jackleland/autospice/internal/errs"
	"github.com/jackleland/autospice/internal/machine"
	"github.com/jackleland/autospice/internal/utils"
)

// SchedulerOptions is the parsed [scheduler] section. No defaults are
// applied to the required fields so that the config file remains a complete
// record of the job options used for a simulation.
type SchedulerOptions struct {
	Machine  string
	User     string
	JobName  string
	NCpus    int
	Walltime machine.Walltime

	// Nodes is 0 when the node count should be derived from NCpus.
	Nodes int
	// Memory is a per-node request in GB, 0 when unset.
	Memory      int
	Queue       string
	Qos         string
	Account     string
	Email       string
	EmailEvents string

	// IsolateFirstNode asks for the controller rank to run alone on the
	// first node, with the remaining ranks packed onto the rest.
	IsolateFirstNode bool

	// Raw holds every key of the section so unimplemented parameters can be
	// reported before they are silently ignored.
	Raw map[string]string
}

// CodeOptions is the parsed [code] section.
type CodeOptions struct {
	CodeName   string
	Bin        string
	Input      string
	Output     string
	Executable string

	// CopyExe stages the executable into the output directory before
	// submission so later rebuilds cannot affect a queued job.
	CopyExe bool
}

// Config is a fully parsed submission config file.
type Config struct {
	Path      string
	Scheduler SchedulerOptions
	Code      CodeOptions

	// CodeSpecific holds the raw section named after the code, validated
	// later by the SimulationCode itself.
	CodeSpecific map[string]string
}

var schedulerRequired = []string{"machine", "user", "job_name", "n_cpus", "walltime"}
var codeRequired = []string{"code_name", "bin", "input", "output", "executable"}

// Load reads and validates the submission config at path. Section- and
// key-level problems surface as ParameterErrors, value-level problems as
// ConfigErrors.
func Load(path string) (*Config, error) {
	if !utils.IsFile(path) {
		return nil, &errs.NotFoundError{Kind: "config file", Path: path}
	}
	file, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, path)
	if err != nil {
		return nil, errs.Configf("cannot parse config file %s: %v", path, err)
	}

	cfg := &Config{Path: path}
	if err := cfg.loadScheduler(file); err != nil {
		return nil, err
	}
	if err := cfg.loadCode(file); err != nil {
		return nil, err
	}

	// The code's own section is optional at this level; a code with
	// mandatory labels will reject the empty map itself.
	cfg.CodeSpecific = map[string]string{}
	if sec, err := file.GetSection(cfg.Code.CodeName); err == nil {
		cfg.CodeSpecific = sec.KeysHash()
	}
	return cfg, nil
}

func (c *Config) loadScheduler(file *ini.File) error {
	sec, err := file.GetSection("scheduler")
	if err != nil {
		return errs.Configf("config file %s has no [scheduler] section", c.Path)
	}
	opts := sec.KeysHash()
	if err := requireKeys("scheduler config", opts, schedulerRequired); err != nil {
		return err
	}

	s := SchedulerOptions{
		Machine:     opts["machine"],
		User:        opts["user"],
		JobName:     opts["job_name"],
		Queue:       opts["queue"],
		Qos:         opts["qos"],
		Account:     opts["account"],
		Email:       opts["email"],
		EmailEvents: opts["email_events"],
		Raw:         opts,
	}

	s.NCpus, err = strconv.Atoi(strings.TrimSpace(opts["n_cpus"]))
	if err != nil {
		return errs.Configf("can't use a non-integer number of CPUs: %q", opts["n_cpus"])
	}
	if s.NCpus <= 0 {
		return errs.Configf("n_cpus must be positive, got %d", s.NCpus)
	}
	s.Walltime, err = machine.ParseWalltime(opts["walltime"])
	if err != nil {
		return err
	}
	if raw, ok := opts["nodes"]; ok {
		s.Nodes, err = strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || s.Nodes <= 0 {
			return errs.Configf("nodes must be a positive integer, got %q", raw)
		}
	}
	if raw, ok := opts["memory"]; ok {
		s.Memory, err = strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || s.Memory <= 0 {
			return errs.Configf("memory must be a positive integer number of GB, got %q", raw)
		}
	}
	if raw, ok := opts["isolate_first_node"]; ok {
		s.IsolateFirstNode, err = parseBool(raw)
		if err != nil {
			return errs.Configf("isolate_first_node must be a boolean, got %q", raw)
		}
	}

	c.Scheduler = s
	return nil
}

func (c *Config) loadCode(file *ini.File) error {
	sec, err := file.GetSection("code")
	if err != nil {
		return errs.Configf("config file %s has no [code] section", c.Path)
	}
	opts := sec.KeysHash()
	if err := requireKeys("code config", opts, codeRequired); err != nil {
		return err
	}

	c.Code = CodeOptions{
		CodeName:   strings.ToLower(opts["code_name"]),
		Bin:        opts["bin"],
		Input:      opts["input"],
		Output:     opts["output"],
		Executable: opts["executable"],
	}
	if raw, ok := opts["copy_exe"]; ok {
		c.Code.CopyExe, err = parseBool(raw)
		if err != nil {
			return errs.Configf("copy_exe must be a boolean, got %q", raw)
		}
	}
	return nil
}

func requireKeys(component string, opts map[string]string, required []string) error {
	var missing []string
	for _, key := range required {
		if strings.TrimSpace(opts[key]) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return &errs.ParameterError{Component: component, Missing: missing}
	}
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
