// Package bundler compiles function entrypoints into single-file bundles
// using an ordered chain of backends.
package bundler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrBundle is matched by every BundleError
var ErrBundle = errors.New("Error bundling function file")

// Job describes one function's compilation unit
type Job struct {
	FunctionID string
	Entrypoint string // absolute path of the source module
	OutFile    string // absolute path of the bundle to write
	WorkingDir string // project root
	ConfigPath string // deno.json or deno.jsonc, may be empty
}

// Validate checks that the job can be attempted at all. Failures here are
// usage errors, not bundling errors.
func (j Job) Validate() error {
	if j.FunctionID == "" {
		return errors.New("bundle job has no function ID")
	}
	if j.Entrypoint == "" {
		return fmt.Errorf("bundle job %q has no entrypoint", j.FunctionID)
	}
	info, err := os.Stat(j.Entrypoint)
	if err != nil {
		return fmt.Errorf("bundle job %q: %w", j.FunctionID, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("bundle job %q: %s is not a regular file", j.FunctionID, j.Entrypoint)
	}
	return nil
}

// Backend compiles a job's entrypoint and its imports into one module.
// Tool failures are reported as *BundleError; anything else is a usage or
// environment error.
type Backend interface {
	Name() string
	Bundle(ctx context.Context, job Job) ([]byte, error)
}

// BundleError is returned when a backend's tool fails to compile the input
type BundleError struct {
	Backend     string
	Diagnostics string
	Err         error
}

func (e *BundleError) Error() string {
	var b strings.Builder
	b.WriteString(ErrBundle.Error())
	b.WriteString(" with ")
	b.WriteString(e.Backend)
	if e.Diagnostics != "" {
		b.WriteString(": ")
		b.WriteString(e.Diagnostics)
	}
	return b.String()
}

func (e *BundleError) Unwrap() error { return e.Err }

func (e *BundleError) Is(target error) bool { return target == ErrBundle }

// ExhaustedError is returned when every backend failed for a function
type ExhaustedError struct {
	FunctionID string
	Attempts   []*BundleError
}

func (e *ExhaustedError) Error() string {
	names := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		names[i] = a.Backend
	}
	msg := fmt.Sprintf("Failed to bundle function %q: attempt with %s - all failed", e.FunctionID, strings.Join(names, " and "))
	if n := len(e.Attempts); n > 0 {
		msg += ": " + e.Attempts[n-1].Error()
	}
	return msg
}

func (e *ExhaustedError) Unwrap() []error {
	errs := make([]error, len(e.Attempts))
	for i, a := range e.Attempts {
		errs[i] = a
	}
	return errs
}
