package scheduler

import (
	"errors"
	"strings"
	"testing"

	"github.com/jackleland/autospice/internal/errs"
)

func basicParams() *Params {
	p := NewParams()
	p.Set(ParamJobName, "test")
	p.Set(ParamNodes, 1)
	p.Set(ParamCpusPerNode, 2)
	p.Set(ParamWalltime, "00:10:00")
	p.Set(ParamOutLog, "out.log")
	p.Set(ParamErrLog, "err.log")
	return p
}

func TestSlurmRenderHeader(t *testing.T) {
	header, err := Slurm.RenderHeader(basicParams())
	if err != nil {
		t.Fatalf("RenderHeader failed: %v", err)
	}

	want := []string{
		"#!/bin/bash",
		"#SBATCH -J test",
		"#SBATCH -N 1",
		"#SBATCH --tasks-per-node=2",
		"#SBATCH -t 00:10:00",
		"#SBATCH -o out.log",
		"#SBATCH -e err.log",
		"",
	}
	got := strings.Split(header, "\n")
	if len(got) != len(want) {
		t.Fatalf("header has %d lines; want %d\n%s", len(got), len(want), header)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q; want %q", i, got[i], want[i])
		}
	}
}

func TestSlurmRenderHeaderOptionalParams(t *testing.T) {
	p := basicParams()
	p.Set(ParamQueue, "skl_fua_prod")
	p.Set(ParamAccount, "FUSIO_ru3CCFE")
	p.Set(ParamMemory, 177)

	header, err := Slurm.RenderHeader(p)
	if err != nil {
		t.Fatalf("RenderHeader failed: %v", err)
	}
	for _, want := range []string{
		"#SBATCH -p skl_fua_prod",
		"#SBATCH -A FUSIO_ru3CCFE",
		"#SBATCH --mem=177gb",
	} {
		if !strings.Contains(header, want+"\n") {
			t.Errorf("header missing directive %q:\n%s", want, header)
		}
	}
}

func TestRenderHeaderDeterministic(t *testing.T) {
	p := basicParams()
	p.Set(ParamQueue, "prod")

	first, err := Slurm.RenderHeader(p)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Slurm.RenderHeader(p)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("rendering is not idempotent:\n%q\nvs\n%q", first, second)
	}
}

func TestRenderHeaderMissingRequired(t *testing.T) {
	p := basicParams()
	q := NewParams()
	for _, key := range p.Keys() {
		if key == ParamWalltime {
			continue
		}
		v, _ := p.Get(key)
		q.Set(key, v)
	}

	_, err := Slurm.RenderHeader(q)
	var pe *errs.ParameterError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v; want ParameterError", err)
	}
	if len(pe.Missing) != 1 || pe.Missing[0] != ParamWalltime {
		t.Errorf("Missing = %v; want [walltime]", pe.Missing)
	}
}

func TestRenderHeaderUnknownParam(t *testing.T) {
	p := basicParams()
	p.Set("gpus", 4)

	_, err := Slurm.RenderHeader(p)
	var pe *errs.ParameterError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v; want ParameterError", err)
	}
	if len(pe.Extra) != 1 || pe.Extra[0] != "gpus" {
		t.Errorf("Extra = %v; want [gpus]", pe.Extra)
	}
}

func TestPBSJoinedNodeLine(t *testing.T) {
	p := NewParams()
	p.Set(ParamJobName, "test")
	p.Set(ParamNodes, 2)
	p.Set(ParamCpusPerNode, 16)
	p.Set(ParamWalltime, "8:00:00")
	p.Set(ParamOutLog, "out.log")
	p.Set(ParamErrLog, "err.log")

	header, err := PBS.RenderHeader(p)
	if err != nil {
		t.Fatalf("RenderHeader failed: %v", err)
	}
	if !strings.Contains(header, "#PBS -l nodes=2:ppn=16\n") {
		t.Errorf("joined node/ppn directive missing:\n%s", header)
	}
	if strings.Contains(header, "#PBS -l nodes=2\n") {
		t.Errorf("nodes also emitted on its own line:\n%s", header)
	}
	// Joined directives come first, straight after the shebang
	lines := strings.Split(header, "\n")
	if lines[1] != "#PBS -l nodes=2:ppn=16" {
		t.Errorf("line 1 = %q; want joined node directive", lines[1])
	}
}

func TestLoadlevellerTrailer(t *testing.T) {
	header, err := Loadleveller.RenderHeader(basicParams())
	if err != nil {
		t.Fatalf("RenderHeader failed: %v", err)
	}
	if !strings.HasSuffix(header, "# @ queue\n") {
		t.Errorf("header does not end with queue directive:\n%q", header)
	}
	if !strings.Contains(header, "# @ job_name = test\n") {
		t.Errorf("job_name directive missing:\n%s", header)
	}
}

func TestParamsCloneIndependent(t *testing.T) {
	p := basicParams()
	c := p.Clone()
	c.Set(ParamJobName, "other")

	if v, _ := p.Get(ParamJobName); v != "test" {
		t.Errorf("original mutated by clone: job_name = %s", v)
	}
	if v, _ := c.Get(ParamJobName); v != "other" {
		t.Errorf("clone did not take new value: job_name = %s", v)
	}
}

func TestParseJobID(t *testing.T) {
	tests := []struct {
		name   string
		sched  *Scheduler
		output string
		want   string
	}{
		{"slurm", Slurm, "Submitted batch job 123456\n", "123456"},
		{"pbs", PBS, "98765.cumulus.hpc\n", "98765.cumulus.hpc"},
		{"loadleveller", Loadleveller, `llsubmit: The job "node01.42" has been submitted.`, "node01.42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.sched.ParseJobID(tt.output)
			if err != nil {
				t.Fatalf("ParseJobID failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseJobID = %q; want %q", got, tt.want)
			}
		})
	}
}

func TestParseJobIDFailure(t *testing.T) {
	_, err := Slurm.ParseJobID("sbatch: error: invalid partition\n")
	if !errors.Is(err, ErrJobIDParseFailed) {
		t.Errorf("err = %v; want ErrJobIDParseFailed", err)
	}
}
