package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackleland/autospice/internal/errs"
)

const validConfig = `[scheduler]
machine = marconi
user = tnichola
job_name = flat_flush
n_cpus = 96
walltime = 8:00:00
queue = skl_fua_prod
account = FUSIO_ru3CCFE

[code]
code_name = spice
bin = /home/user/spice/bin
input = /home/user/spice/input.inp
output = /scratch/user/flat_flush
executable = spice2.bin

[spice]
spice_version = 2
verbose = false
soft_restart = false
full_restart = false
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "submission.cfg")
	if err := os.WriteFile(path, []byte(content), 0o664); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	s := cfg.Scheduler
	if s.Machine != "marconi" || s.User != "tnichola" || s.JobName != "flat_flush" {
		t.Errorf("scheduler identity fields = %q/%q/%q", s.Machine, s.User, s.JobName)
	}
	if s.NCpus != 96 {
		t.Errorf("NCpus = %d, want 96", s.NCpus)
	}
	if got := s.Walltime.String(); got != "8:00:00" {
		t.Errorf("Walltime = %s, want 8:00:00", got)
	}
	if s.Nodes != 0 {
		t.Errorf("Nodes = %d, want 0 (derived)", s.Nodes)
	}
	if s.Queue != "skl_fua_prod" || s.Account != "FUSIO_ru3CCFE" {
		t.Errorf("Queue/Account = %q/%q", s.Queue, s.Account)
	}
	if cfg.Code.CodeName != "spice" || cfg.Code.Executable != "spice2.bin" {
		t.Errorf("code options = %+v", cfg.Code)
	}
	if cfg.CodeSpecific["spice_version"] != "2" {
		t.Errorf("CodeSpecific = %v", cfg.CodeSpecific)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.cfg"))
	if !errs.IsNotFoundError(err) {
		t.Errorf("Load() error = %v, want NotFoundError", err)
	}
}

func TestLoadMissingSections(t *testing.T) {
	if _, err := Load(writeConfig(t, "[code]\ncode_name = spice\n")); !errs.IsConfigError(err) {
		t.Errorf("Load() without [scheduler] error = %v, want ConfigError", err)
	}
	if _, err := Load(writeConfig(t, "[scheduler]\nmachine = marconi\nuser = u\njob_name = j\nn_cpus = 4\nwalltime = 1:00:00\n")); !errs.IsConfigError(err) {
		t.Errorf("Load() without [code] error = %v, want ConfigError", err)
	}
}

func TestLoadMissingRequiredKeys(t *testing.T) {
	content := `[scheduler]
machine = marconi
user = tnichola

[code]
code_name = spice
`
	_, err := Load(writeConfig(t, content))
	var perr *errs.ParameterError
	if !errors.As(err, &perr) {
		t.Fatalf("Load() error = %v, want ParameterError", err)
	}
	want := map[string]bool{"job_name": true, "n_cpus": true, "walltime": true}
	if len(perr.Missing) != len(want) {
		t.Fatalf("Missing = %v, want %v keys", perr.Missing, len(want))
	}
	for _, key := range perr.Missing {
		if !want[key] {
			t.Errorf("unexpected missing key %q", key)
		}
	}
}

func TestLoadBadValues(t *testing.T) {
	tests := []struct {
		name string
		old  string
		new  string
	}{
		{"non-integer cpus", "n_cpus = 96", "n_cpus = lots"},
		{"negative cpus", "n_cpus = 96", "n_cpus = -4"},
		{"bad walltime", "walltime = 8:00:00", "walltime = afternoon"},
		{"bad nodes", "queue = skl_fua_prod", "nodes = 2.5"},
		{"bad memory", "queue = skl_fua_prod", "memory = lots"},
		{"bad isolate flag", "queue = skl_fua_prod", "isolate_first_node = maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := replaceOnce(t, validConfig, tt.old, tt.new)
			if _, err := Load(writeConfig(t, content)); !errs.IsConfigError(err) {
				t.Errorf("Load() error = %v, want ConfigError", err)
			}
		})
	}
}

func TestLoadOptionalFields(t *testing.T) {
	content := replaceOnce(t, validConfig, "queue = skl_fua_prod",
		"queue = skl_fua_prod\nnodes = 2\nmemory = 100\nisolate_first_node = true")
	content = replaceOnce(t, content, "executable = spice2.bin",
		"executable = spice2.bin\ncopy_exe = true")

	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	s := cfg.Scheduler
	if s.Nodes != 2 || s.Memory != 100 || !s.IsolateFirstNode {
		t.Errorf("optional scheduler fields = %d/%d/%t", s.Nodes, s.Memory, s.IsolateFirstNode)
	}
	if !cfg.Code.CopyExe {
		t.Error("CopyExe = false, want true")
	}
}

func replaceOnce(t *testing.T, content, old, new string) string {
	t.Helper()
	if !strings.Contains(content, old) {
		t.Fatalf("substring %q not in config", old)
	}
	return strings.Replace(content, old, new, 1)
}
