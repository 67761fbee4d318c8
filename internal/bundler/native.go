package bundler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/denohooks/denohooks/internal/deno"
)

// NativeBundler runs `deno bundle`
type NativeBundler struct {
	toolchain *deno.Toolchain
	timeout   time.Duration
}

// NewNativeBundler creates the deno backend. A zero timeout waits for the
// child process indefinitely.
func NewNativeBundler(toolchain *deno.Toolchain, timeout time.Duration) *NativeBundler {
	return &NativeBundler{toolchain: toolchain, timeout: timeout}
}

func (n *NativeBundler) Name() string { return "deno" }

// Bundle implements Backend.
func (n *NativeBundler) Bundle(ctx context.Context, job Job) ([]byte, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}

	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	out, err := n.toolchain.Bundle(ctx, job.WorkingDir, job.Entrypoint, job.ConfigPath)
	if err != nil {
		var cmdErr *deno.CommandError
		if errors.As(err, &cmdErr) {
			return nil, &BundleError{Backend: n.Name(), Diagnostics: deno.CleanDiagnostics(cmdErr.Stderr), Err: err}
		}
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
			return nil, &BundleError{Backend: n.Name(), Diagnostics: fmt.Sprintf("timed out after %s", n.timeout), Err: err}
		}
		return nil, err
	}

	if len(out) == 0 {
		return nil, &BundleError{Backend: n.Name(), Diagnostics: "deno bundle produced no output"}
	}
	return out, nil
}
