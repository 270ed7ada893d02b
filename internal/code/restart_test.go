package code

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackleland/autospice/internal/errs"
)

// seedRestartDir creates a plausible simulation output directory with an old
// backup folder that restarts must not carry along.
func seedRestartDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "flat_flush")
	if err := os.MkdirAll(filepath.Join(dir, "backup_20260101-0900"), 0o775); err != nil {
		t.Fatal(err)
	}
	writeFiles(t, dir, "input.inp", "flat_flush.mat", "t-flat_flush.mat", "t-flat_flush01.mat")
	return dir
}

func restartConfig() Config {
	return &SpiceConfig{Version: 2, SoftRestart: true}
}

func TestDirectoryIOFreshRun(t *testing.T) {
	s := NewSpice()
	dir := filepath.Join(t.TempDir(), "run")

	got, err := s.DirectoryIO(dir, &SpiceConfig{Version: 2}, false, CopyNew)
	if err != nil {
		t.Fatalf("DirectoryIO() error = %v", err)
	}
	if got != dir {
		t.Errorf("DirectoryIO() = %s, want %s", got, dir)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Errorf("output directory was not created: %v", err)
	}
}

func TestDirectoryIOFreshRunExistingDir(t *testing.T) {
	s := NewSpice()
	dir := filepath.Join(t.TempDir(), "run")
	if err := os.MkdirAll(dir, 0o775); err != nil {
		t.Fatal(err)
	}

	got, err := s.DirectoryIO(dir, &SpiceConfig{Version: 2}, false, CopyNew)
	if err != nil {
		t.Fatalf("DirectoryIO() error = %v", err)
	}
	if want := dir + "_1"; got != want {
		t.Errorf("DirectoryIO() = %s, want %s", got, want)
	}
	if info, err := os.Stat(got); err != nil || !info.IsDir() {
		t.Errorf("sibling directory was not created: %v", err)
	}
}

func TestDirectoryIOFreshRunDryRun(t *testing.T) {
	s := NewSpice()
	dir := filepath.Join(t.TempDir(), "run")

	if _, err := s.DirectoryIO(dir, &SpiceConfig{Version: 2}, true, CopyNew); err != nil {
		t.Fatalf("DirectoryIO() error = %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("dry run created the output directory")
	}
}

func TestDirectoryIORestartCopyNone(t *testing.T) {
	s := NewSpice()
	dir := seedRestartDir(t)

	got, err := s.DirectoryIO(dir, restartConfig(), false, CopyNone)
	if err != nil {
		t.Fatalf("DirectoryIO() error = %v", err)
	}
	if got != dir {
		t.Errorf("DirectoryIO() = %s, want %s", got, dir)
	}
	if _, err := os.Stat(dir + "_restart"); !os.IsNotExist(err) {
		t.Error("copy mode none still made a backup")
	}
}

func TestDirectoryIORestartCopyNew(t *testing.T) {
	s := NewSpice()
	dir := seedRestartDir(t)

	got, err := s.DirectoryIO(dir, restartConfig(), false, CopyNew)
	if err != nil {
		t.Fatalf("DirectoryIO() error = %v", err)
	}
	if want := dir + "_restart"; got != want {
		t.Errorf("DirectoryIO() = %s, want %s", got, want)
	}
	if _, err := os.Stat(filepath.Join(got, "input.inp")); err != nil {
		t.Errorf("restart copy missing input file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(got, "backup_20260101-0900")); !os.IsNotExist(err) {
		t.Error("restart copy carried an old backup folder")
	}
}

func TestDirectoryIORestartCopyNewNumbersSiblings(t *testing.T) {
	s := NewSpice()
	dir := seedRestartDir(t)
	if err := os.MkdirAll(dir+"_restart", 0o775); err != nil {
		t.Fatal(err)
	}

	got, err := s.DirectoryIO(dir, restartConfig(), false, CopyNew)
	if err != nil {
		t.Fatalf("DirectoryIO() error = %v", err)
	}
	if want := dir + "_restart_1"; got != want {
		t.Errorf("DirectoryIO() = %s, want %s", got, want)
	}
}

func TestDirectoryIORestartCopyStayOut(t *testing.T) {
	s := NewSpice()
	dir := seedRestartDir(t)

	got, err := s.DirectoryIO(dir, restartConfig(), false, CopyStayOut)
	if err != nil {
		t.Fatalf("DirectoryIO() error = %v", err)
	}
	if got != dir {
		t.Errorf("DirectoryIO() = %s, want the original directory %s", got, dir)
	}
	if _, err := os.Stat(filepath.Join(dir+"_at_restart", "input.inp")); err != nil {
		t.Errorf("stay_out backup missing input file: %v", err)
	}
}

func TestDirectoryIORestartCopyStayIn(t *testing.T) {
	s := NewSpice()
	dir := seedRestartDir(t)

	orig := timeNow
	timeNow = func() time.Time {
		return time.Date(2026, 8, 31, 14, 30, 0, 0, time.UTC)
	}
	defer func() { timeNow = orig }()

	got, err := s.DirectoryIO(dir, restartConfig(), false, CopyStayIn)
	if err != nil {
		t.Fatalf("DirectoryIO() error = %v", err)
	}
	if got != dir {
		t.Errorf("DirectoryIO() = %s, want the original directory %s", got, dir)
	}
	backup := filepath.Join(dir, "backup_at_restart_20260831-1430")
	if _, err := os.Stat(filepath.Join(backup, "input.inp")); err != nil {
		t.Errorf("stay_in backup missing input file: %v", err)
	}
	// The backup folder itself matches the copy exclusion, so it cannot
	// have recursed into itself or swallowed the old backup.
	if _, err := os.Stat(filepath.Join(backup, "backup_20260101-0900")); !os.IsNotExist(err) {
		t.Error("stay_in backup carried an old backup folder")
	}
}

func TestDirectoryIORestartDryRun(t *testing.T) {
	s := NewSpice()
	dir := seedRestartDir(t)

	got, err := s.DirectoryIO(dir, restartConfig(), true, CopyNew)
	if err != nil {
		t.Fatalf("DirectoryIO() error = %v", err)
	}
	if want := dir + "_restart"; got != want {
		t.Errorf("DirectoryIO() = %s, want %s", got, want)
	}
	if _, err := os.Stat(dir + "_restart"); !os.IsNotExist(err) {
		t.Error("dry run copied the restart directory")
	}
}

func TestDirectoryIORestartMissingDir(t *testing.T) {
	s := NewSpice()
	dir := filepath.Join(t.TempDir(), "gone")

	_, err := s.DirectoryIO(dir, restartConfig(), false, CopyNew)
	if !errs.IsNotFoundError(err) {
		t.Errorf("DirectoryIO() error = %v, want NotFoundError", err)
	}
}

func TestDirectoryIORestartNonDirectory(t *testing.T) {
	s := NewSpice()
	dir := t.TempDir()
	writeFiles(t, dir, "flat_flush")

	_, err := s.DirectoryIO(filepath.Join(dir, "flat_flush"), restartConfig(), false, CopyNew)
	if !errs.IsConfigError(err) {
		t.Errorf("DirectoryIO() error = %v, want ConfigError", err)
	}
}

func TestDirectoryIORestartAmbiguousDir(t *testing.T) {
	s := NewSpice()
	dir := filepath.Join(t.TempDir(), "plain")
	if err := os.MkdirAll(dir, 0o775); err != nil {
		t.Fatal(err)
	}
	writeFiles(t, dir, "notes.txt")

	got, err := s.DirectoryIO(dir, restartConfig(), false, CopyNone)
	if err != nil {
		t.Fatalf("DirectoryIO() error = %v", err)
	}
	if got != dir {
		t.Errorf("DirectoryIO() = %s, want %s", got, dir)
	}
}
