package code

import (
	"strings"
	"testing"

	"github.com/jackleland/autospice/internal/machine"
	"github.com/jackleland/autospice/internal/scheduler"
)

func bodyTestMachine() *machine.Machine {
	maxTime := 24
	return &machine.Machine{
		Name:          "marconi",
		CpusPerNode:   48,
		MemoryPerNode: 182,
		MaxNodes:      64,
		MaxJobTime:    &maxTime,
		Scheduler:     scheduler.Slurm,
	}
}

func bodyTestCall(cfg *SpiceConfig) *CallParams {
	return &CallParams{
		TotalCpus:     96,
		Executable:    "/home/user/spice/bin/spice2.bin",
		ExecutableDir: "/home/user/spice/bin",
		OutputDir:     "/scratch/user/flat_flush",
		InputFile:     "/scratch/user/flat_flush/input.inp",
		Config:        cfg,
	}
}

func TestRenderBodyBasics(t *testing.T) {
	s := NewSpice()
	cfg := &SpiceConfig{Version: 2, Verbose: true}

	body, err := s.RenderBody(bodyTestMachine(), bodyTestCall(cfg), false, true, false)
	if err != nil {
		t.Fatalf("RenderBody() error = %v", err)
	}

	for _, want := range []string{
		"source $HOME/.bashrc",
		"cd /home/user/spice/bin",
		"ulimit -s unlimited",
		"time mpirun -np 96 /home/user/spice/bin/spice2.bin -v -l 21",
		"-o /scratch/user/flat_flush/flat_flush",
		"-i /scratch/user/flat_flush/input.inp",
		"-t /scratch/user/flat_flush/t-flat_flush",
		"sleep 600",
		"cat /scratch/user/flat_flush/log.out >> /scratch/user/flat_flush/log.ongoing.out",
		`BU_FOLDER="/scratch/user/flat_flush/backup_$(env TZ=GB date +"%Y%m%d-%H%M")"`,
		"rsync -azvp --exclude='backup*' /scratch/user/flat_flush/t-flat_flush.mat $BU_FOLDER",
		"awk '{print $1}') >= 99",
		"scancel $(cat /scratch/user/flat_flush/jobs.txt)",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
	if strings.Contains(body, "stitcher.bin") {
		t.Error("version 2 body contains a stitcher call")
	}
}

func TestRenderBodyVersion3(t *testing.T) {
	s := NewSpice()
	cfg := &SpiceConfig{Version: 3}

	body, err := s.RenderBody(bodyTestMachine(), bodyTestCall(cfg), false, true, false)
	if err != nil {
		t.Fatalf("RenderBody() error = %v", err)
	}
	if !strings.Contains(body, "/home/user/spice/bin/stitcher.bin -i /scratch/user/flat_flush/input.inp -t /scratch/user/flat_flush/t-flat_flush -n 96") {
		t.Error("version 3 body missing the stitcher call")
	}
	if !strings.Contains(body, "awk '{print $2}') >= 99") {
		t.Error("version 3 body reads the wrong log column")
	}
}

func TestRenderBodyMultiSubmission(t *testing.T) {
	s := NewSpice()

	// A chained fresh run continues from the previous job's state.
	cfg := &SpiceConfig{Version: 2}
	body, err := s.RenderBody(bodyTestMachine(), bodyTestCall(cfg), true, true, false)
	if err != nil {
		t.Fatalf("RenderBody() error = %v", err)
	}
	if !strings.Contains(body, "spice2.bin -c -l 21") {
		t.Error("chained fresh run did not get the continuation flag")
	}

	// A chained restart already carries its restart flag.
	restart := &SpiceConfig{Version: 2, SoftRestart: true}
	body, err = s.RenderBody(bodyTestMachine(), bodyTestCall(restart), true, true, false)
	if err != nil {
		t.Fatalf("RenderBody() error = %v", err)
	}
	if !strings.Contains(body, "spice2.bin -r -l 21") {
		t.Error("chained restart body lost its restart flag")
	}
	if strings.Contains(body, "-r -c") || strings.Contains(body, "-c -r") {
		t.Error("chained restart body got a continuation flag as well")
	}
}

func TestRenderBodyTimeLimitOverridesSafeTime(t *testing.T) {
	s := NewSpice()
	cfg := &SpiceConfig{Version: 2, TimeLimit: 8}

	body, err := s.RenderBody(bodyTestMachine(), bodyTestCall(cfg), false, true, false)
	if err != nil {
		t.Fatalf("RenderBody() error = %v", err)
	}
	if !strings.Contains(body, "-l 8 ") {
		t.Error("body missing the configured time limit")
	}
	if strings.Contains(body, "-l 21") {
		t.Error("body carries the safe job time despite a configured limit")
	}
}

func TestRenderBodyNoSafeTimeOnUnboundedMachine(t *testing.T) {
	s := NewSpice()
	m := bodyTestMachine()
	m.MaxJobTime = nil
	cfg := &SpiceConfig{Version: 2}

	body, err := s.RenderBody(m, bodyTestCall(cfg), false, true, false)
	if err != nil {
		t.Fatalf("RenderBody() error = %v", err)
	}
	if strings.Contains(body, "-l ") {
		t.Error("unbounded machine still got a time limit flag")
	}
}

func TestRenderBodyNodeDistribution(t *testing.T) {
	s := NewSpice()
	cfg := &SpiceConfig{Version: 2}
	call := bodyTestCall(cfg)
	call.NodeDistribution = "1,47,48"

	body, err := s.RenderBody(bodyTestMachine(), call, false, false, false)
	if err != nil {
		t.Fatalf("RenderBody() error = %v", err)
	}
	if !strings.Contains(body, "srun -n 96 -m arbitrary -w `/home/user/spice/bin/arbitrary.pl 1,47,48`") {
		t.Error("body missing the srun arbitrary distribution command")
	}
	if strings.Contains(body, "mpirun -np") {
		t.Error("body still launches through mpirun")
	}
}

func TestRenderBodyBackup(t *testing.T) {
	s := NewSpice()
	cfg := &SpiceConfig{Version: 2}

	want := "rsync -azvp --exclude='backup*' /scratch/user/flat_flush/* $BU_FOLDER\n"

	body, err := s.RenderBody(bodyTestMachine(), bodyTestCall(cfg), false, false, true)
	if err != nil {
		t.Fatalf("RenderBody() error = %v", err)
	}
	if !strings.Contains(body, want) {
		t.Error("backup body missing the full mirror rsync")
	}

	body, err = s.RenderBody(bodyTestMachine(), bodyTestCall(cfg), false, false, false)
	if err != nil {
		t.Fatalf("RenderBody() error = %v", err)
	}
	if strings.Contains(body, want) {
		t.Error("non-backup body mirrors the whole directory")
	}
}
