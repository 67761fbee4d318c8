// Package testutil provides shared test utilities and mocks for unit testing.
package testutil

import (
	"fmt"
	"strings"
	"sync"
)

// Recorder implements protocol.Protocol and keeps every message for assertions
type Recorder struct {
	mu        sync.Mutex
	Logs      []string
	Warnings  []string
	Errors    []string
	Responses []string
}

// NewRecorder creates a new recording protocol
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Name() string { return "recorder" }

func (r *Recorder) Log(args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Logs = append(r.Logs, sprint(args))
}

func (r *Recorder) Warn(args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Warnings = append(r.Warnings, sprint(args))
}

func (r *Recorder) Error(args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errors = append(r.Errors, sprint(args))
}

func (r *Recorder) Respond(data string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Responses = append(r.Responses, data)
}

// LastResponse returns the most recent response, or "" if none was sent
func (r *Recorder) LastResponse() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Responses) == 0 {
		return ""
	}
	return r.Responses[len(r.Responses)-1]
}

// ErrorsContaining returns the recorded errors that contain substr
func (r *Recorder) ErrorsContaining(substr string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.Errors {
		if strings.Contains(e, substr) {
			out = append(out, e)
		}
	}
	return out
}

func sprint(args []any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprint(a)
	}
	return strings.Join(parts, " ")
}
