package jsmodule

import (
	"fmt"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog"

	"github.com/denohooks/denohooks/internal/deno"
)

// Options configures New
type Options struct {
	Mode       string // sandbox, deno or auto
	Timeout    time.Duration
	Toolchain  *deno.Toolchain // nil when deno is not installed
	ConfigPath string
	Plugins    []api.Plugin
	Logger     zerolog.Logger
}

// New returns the inspector for the configured mode. Auto prefers deno
// when it is installed. In sandbox mode deno, when installed, takes over the
// modules the sandbox cannot evaluate faithfully.
func New(opts Options) (Inspector, error) {
	switch opts.Mode {
	case "deno":
		if opts.Toolchain == nil {
			return nil, fmt.Errorf("loader mode deno: %w", deno.ErrNotInstalled)
		}
		return NewDenoInspector(opts.Toolchain, opts.ConfigPath), nil
	case "auto":
		if opts.Toolchain != nil {
			opts.Logger.Debug().Msg("Using deno to inspect modules")
			return NewDenoInspector(opts.Toolchain, opts.ConfigPath), nil
		}
		return NewSandbox(opts.Timeout, opts.Logger, opts.Plugins...), nil
	case "sandbox", "":
		sandbox := NewSandbox(opts.Timeout, opts.Logger, opts.Plugins...)
		if opts.Toolchain == nil {
			return sandbox, nil
		}
		return NewFallback(sandbox, NewDenoInspector(opts.Toolchain, opts.ConfigPath), opts.Logger), nil
	default:
		return nil, fmt.Errorf("unknown loader mode: %s", opts.Mode)
	}
}
