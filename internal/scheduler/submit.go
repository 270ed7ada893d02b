package scheduler

import (
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
)

// Common errors
var (
	// ErrJobIDParseFailed indicates parsing the job ID from scheduler output failed
	ErrJobIDParseFailed = errors.New("failed to parse job ID from scheduler output")

	// ErrDependencyUnsupported indicates the scheduler has no job-dependency mechanism
	ErrDependencyUnsupported = errors.New("scheduler does not support job dependencies")
)

// SubmissionError represents an error during job submission
type SubmissionError struct {
	Scheduler string // Scheduler name
	Script    string // Script file name
	Output    string // Scheduler output
	Err       error  // Underlying error
}

func (e *SubmissionError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("%s submission failed for %s: %v\nOutput: %s",
			e.Scheduler, e.Script, e.Err, e.Output)
	}
	return fmt.Sprintf("%s submission failed for %s: %v", e.Scheduler, e.Script, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// Submit invokes the scheduler's batch-submit command for the given script,
// optionally chained after a predecessor job, and returns the job ID assigned
// by the scheduler. The dependency is "after predecessor completes, regardless
// of exit status" on schedulers that distinguish the two.
func Submit(s *Scheduler, scriptPath string, dependencyJobID string) (string, error) {
	var args []string
	if dependencyJobID != "" {
		if s.DependencyArgs == nil {
			return "", fmt.Errorf("%w: %s", ErrDependencyUnsupported, s.Name)
		}
		args = append(args, s.DependencyArgs(dependencyJobID)...)
	}
	args = append(args, scriptPath)

	cmd := exec.Command(s.SubmitCommand, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", &SubmissionError{
			Scheduler: s.Name,
			Script:    filepath.Base(scriptPath),
			Output:    string(output),
			Err:       err,
		}
	}

	return s.ParseJobID(string(output))
}
