package bundler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/denohooks/denohooks/internal/deno"
	"github.com/denohooks/denohooks/internal/jsmodule"
	"github.com/denohooks/denohooks/internal/modgraph"
)

// GraphBackend resolves the module graph of a job's entrypoint. It returns
// the graph and the key of the entrypoint inside it.
type GraphBackend interface {
	Name() string
	Graph(ctx context.Context, job Job) (modgraph.Graph, string, error)
}

// DenoInfoGrapher reads the graph from `deno info --json`
type DenoInfoGrapher struct {
	toolchain *deno.Toolchain
}

// NewDenoInfoGrapher creates a graph backend over the deno toolchain
func NewDenoInfoGrapher(toolchain *deno.Toolchain) *DenoInfoGrapher {
	return &DenoInfoGrapher{toolchain: toolchain}
}

func (d *DenoInfoGrapher) Name() string { return "deno" }

// Graph implements GraphBackend. Keys are file: URLs.
func (d *DenoInfoGrapher) Graph(ctx context.Context, job Job) (modgraph.Graph, string, error) {
	if err := job.Validate(); err != nil {
		return nil, "", err
	}

	info, err := d.toolchain.Info(ctx, job.WorkingDir, job.Entrypoint, job.ConfigPath)
	if err != nil {
		var cmdErr *deno.CommandError
		if errors.As(err, &cmdErr) {
			return nil, "", &BundleError{Backend: d.Name(), Diagnostics: deno.CleanDiagnostics(cmdErr.Stderr), Err: err}
		}
		return nil, "", err
	}

	entry := jsmodule.FileURL(job.Entrypoint)
	if len(info.Roots) > 0 {
		entry = info.Roots[0]
	}
	return modgraph.FromDenoInfo(info), entry, nil
}

// MetafileGrapher derives the graph from an esbuild metafile
type MetafileGrapher struct {
	bundler *EsbuildBundler
}

// NewMetafileGrapher creates a graph backend over the esbuild bundler
func NewMetafileGrapher(bundler *EsbuildBundler) *MetafileGrapher {
	return &MetafileGrapher{bundler: bundler}
}

func (m *MetafileGrapher) Name() string { return "esbuild" }

// Graph implements GraphBackend. Keys are absolute paths.
func (m *MetafileGrapher) Graph(ctx context.Context, job Job) (modgraph.Graph, string, error) {
	raw, err := m.bundler.Metafile(ctx, job)
	if err != nil {
		return nil, "", err
	}

	var meta struct {
		Inputs map[string]modgraph.MetafileInput `json:"inputs"`
	}
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil, "", fmt.Errorf("failed to parse esbuild metafile: %w", err)
	}
	return modgraph.FromMetafile(meta.Inputs, job.WorkingDir), filepath.Clean(job.Entrypoint), nil
}

// GraphChain tries graph backends in order with the same fallthrough rules
// as Orchestrator.
type GraphChain struct {
	backends []GraphBackend
	log      zerolog.Logger
}

// NewGraphChain creates a chain of graph backends
func NewGraphChain(logger zerolog.Logger, backends ...GraphBackend) *GraphChain {
	return &GraphChain{backends: backends, log: logger.With().Str("component", "modgraph").Logger()}
}

// LocalFiles returns the local files reachable from the job's entrypoint
// as filesystem paths.
func (c *GraphChain) LocalFiles(ctx context.Context, job Job) (modgraph.Set, error) {
	if len(c.backends) == 0 {
		return nil, errors.New("no graph backends configured")
	}

	var attempts []*BundleError
	for _, backend := range c.backends {
		graph, entry, err := backend.Graph(ctx, job)
		if err != nil {
			var bundleErr *BundleError
			if !errors.As(err, &bundleErr) {
				return nil, fmt.Errorf("module graph of %s with %s: %w", job.FunctionID, backend.Name(), err)
			}
			c.log.Warn().Str("function", job.FunctionID).Str("backend", backend.Name()).Msg(bundleErr.Diagnostics)
			attempts = append(attempts, bundleErr)
			continue
		}

		specs, err := modgraph.CollectLocalFiles(entry, graph)
		if err != nil {
			return nil, err
		}

		files := modgraph.Set{}
		for _, spec := range specs.Sorted() {
			path, err := modgraph.LocalPath(spec)
			if err != nil {
				return nil, err
			}
			files.Add(path)
		}
		return files, nil
	}

	return nil, &ExhaustedError{FunctionID: job.FunctionID, Attempts: attempts}
}
