package bundler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/denohooks/denohooks/internal/protocol"
)

// Orchestrator runs a job through an ordered list of backends
type Orchestrator struct {
	backends []Backend
	proto    protocol.Protocol
	log      zerolog.Logger
}

// NewOrchestrator creates an orchestrator. Backends are tried in the order
// given.
func NewOrchestrator(proto protocol.Protocol, logger zerolog.Logger, backends ...Backend) *Orchestrator {
	return &Orchestrator{
		backends: backends,
		proto:    proto,
		log:      logger.With().Str("component", "bundler").Logger(),
	}
}

// Backends returns the names of the configured backends in order
func (o *Orchestrator) Backends() []string {
	names := make([]string, len(o.backends))
	for i, b := range o.backends {
		names[i] = b.Name()
	}
	return names
}

// Build bundles job.Entrypoint and writes the result to job.OutFile. A
// BundleError moves on to the next backend; any other error is returned
// immediately.
func (o *Orchestrator) Build(ctx context.Context, job Job) error {
	if len(o.backends) == 0 {
		return errors.New("no bundler backends configured")
	}

	var attempts []*BundleError
	for _, backend := range o.backends {
		if err := ctx.Err(); err != nil {
			return err
		}

		log := o.log.With().Str("function", job.FunctionID).Str("backend", backend.Name()).Logger()
		log.Debug().Str("entrypoint", job.Entrypoint).Msg("Bundling function")

		code, err := backend.Bundle(ctx, job)
		if err == nil {
			if err := writeBundle(job.OutFile, code); err != nil {
				return err
			}
			log.Debug().Int("bytes", len(code)).Str("out", job.OutFile).Msg("Bundle written")
			return nil
		}

		var bundleErr *BundleError
		if !errors.As(err, &bundleErr) {
			return fmt.Errorf("bundling function %s with %s: %w", job.FunctionID, backend.Name(), err)
		}

		attempts = append(attempts, bundleErr)
		o.proto.Error(fmt.Sprintf("Failed bundling function %q with %s: %s", job.FunctionID, backend.Name(), bundleErr.Diagnostics))
	}

	return &ExhaustedError{FunctionID: job.FunctionID, Attempts: attempts}
}

func writeBundle(path string, code []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create bundle directory: %w", err)
	}
	if err := os.WriteFile(path, code, 0o644); err != nil {
		return fmt.Errorf("failed to write bundle %s: %w", path, err)
	}
	return nil
}
