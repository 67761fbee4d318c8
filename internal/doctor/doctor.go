// Package doctor reports the execution environment for the doctor hook.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/denohooks/denohooks/internal/deno"
)

// Tool is one entry of the doctor report
type Tool struct {
	Name    string     `json:"name"`
	Current string     `json:"current,omitempty"`
	Minimum string     `json:"minimum,omitempty"`
	Error   *ToolError `json:"error,omitempty"`
}

// ToolError explains why a tool could not be inspected
type ToolError struct {
	Message string `json:"message"`
}

// Report is the doctor hook response
type Report struct {
	Versions []Tool `json:"versions"`
}

// Warner receives warnings about the environment
type Warner interface {
	Warn(args ...any)
}

// Doctor inspects the deno toolchain
type Doctor struct {
	toolchain   *deno.Toolchain
	minimumDeno string
}

// New creates a doctor. toolchain may be nil when deno is not installed.
func New(toolchain *deno.Toolchain, minimumDeno string) *Doctor {
	return &Doctor{toolchain: toolchain, minimumDeno: minimumDeno}
}

// Check builds the report. Problems with deno are reported inside the
// report rather than returned, and outdated versions are sent to w.
func (d *Doctor) Check(ctx context.Context, w Warner) *Report {
	denoTool := Tool{Name: "deno", Minimum: d.minimumDeno}

	if d.toolchain == nil {
		denoTool.Error = &ToolError{Message: deno.ErrNotInstalled.Error()}
		return &Report{Versions: []Tool{denoTool}}
	}

	versions, err := d.toolchain.Version(ctx)
	if err != nil {
		msg := err.Error()
		var cmdErr *deno.CommandError
		if errors.As(err, &cmdErr) {
			msg = deno.CleanDiagnostics(cmdErr.Stderr)
		}
		denoTool.Error = &ToolError{Message: msg}
		return &Report{Versions: []Tool{denoTool}}
	}

	denoTool.Current = versions.Deno
	if Below(versions.Deno, d.minimumDeno) {
		w.Warn(fmt.Sprintf("deno %s is older than the minimum supported version %s", versions.Deno, d.minimumDeno))
	}

	return &Report{Versions: []Tool{
		denoTool,
		{Name: "typescript", Current: versions.TypeScript},
		{Name: "v8", Current: versions.V8},
	}}
}

// Below reports whether current is an older version than minimum. Versions
// that are not valid semver never compare as below.
func Below(current, minimum string) bool {
	c, m := canonical(current), canonical(minimum)
	if c == "" || m == "" {
		return false
	}
	return semver.Compare(c, m) < 0
}

func canonical(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return ""
	}
	return semver.Canonical(v)
}
