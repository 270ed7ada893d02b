// Package errs defines the error taxonomy shared by the submission pipeline.
//
// All validation errors are raised eagerly, before any directory is created or
// file is written, so a failed run never leaves partial output on disk.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigError indicates a structurally invalid or infeasible configuration
// (bad cpu/node arithmetic, conflicting restart flags, out-of-range versions,
// scan dimension mismatches). Fatal, surfaced to the caller verbatim.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return e.Reason
}

// Is allows errors.Is to match any ConfigError
func (e *ConfigError) Is(target error) bool {
	_, ok := target.(*ConfigError)
	return ok
}

// Configf creates a ConfigError with a formatted reason
func Configf(format string, a ...interface{}) *ConfigError {
	return &ConfigError{Reason: fmt.Sprintf(format, a...)}
}

// ParameterError indicates a scheduler or simulation code received a parameter
// set missing required keys or containing unrecognized keys. Fatal.
type ParameterError struct {
	Component string   // Component rejecting the parameters (e.g. "Slurm", "spice")
	Missing   []string // Required keys that were absent
	Extra     []string // Keys outside the allowed set
	Reason    string   // Free-form reason when key sets don't apply
}

func (e *ParameterError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing required parameters: %s", strings.Join(e.Missing, ", ")))
	}
	if len(e.Extra) > 0 {
		parts = append(parts, fmt.Sprintf("unrecognized parameters: %s", strings.Join(e.Extra, ", ")))
	}
	if e.Reason != "" {
		parts = append(parts, e.Reason)
	}
	if len(parts) == 0 {
		parts = append(parts, "invalid parameter set")
	}
	return fmt.Sprintf("%s: %s", e.Component, strings.Join(parts, "; "))
}

// Is allows errors.Is to match any ParameterError
func (e *ParameterError) Is(target error) bool {
	_, ok := target.(*ParameterError)
	return ok
}

// NotFoundError indicates a referenced input file, executable, or restart
// target directory does not exist. Fatal.
type NotFoundError struct {
	Kind string // What was looked up (e.g. "input file", "restart directory")
	Path string // Path that was checked
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found at %s", e.Kind, e.Path)
}

// Is allows errors.Is to match any NotFoundError
func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}

// UndefinedCapacityError indicates a machine without a defined maximum job
// time was asked for a safe-time calculation. Recoverable: the caller can
// choose not to request a safe time.
type UndefinedCapacityError struct {
	Machine string
}

func (e *UndefinedCapacityError) Error() string {
	return fmt.Sprintf("machine %s has no maximum job time, safe job time is undefined", e.Machine)
}

// Is allows errors.Is to match any UndefinedCapacityError
func (e *UndefinedCapacityError) Is(target error) bool {
	_, ok := target.(*UndefinedCapacityError)
	return ok
}

// IsConfigError checks if an error is a ConfigError
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsParameterError checks if an error is a ParameterError
func IsParameterError(err error) bool {
	var pe *ParameterError
	return errors.As(err, &pe)
}

// IsNotFoundError checks if an error is a NotFoundError
func IsNotFoundError(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}

// IsUndefinedCapacity checks if an error is an UndefinedCapacityError
func IsUndefinedCapacity(err error) bool {
	var ue *UndefinedCapacityError
	return errors.As(err, &ue)
}
