package bundler

import (
	"context"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/denohooks/denohooks/internal/config"
)

// PluginFactory builds the resolution plugins for a job
type PluginFactory func(ctx context.Context, job Job) ([]api.Plugin, error)

// EsbuildBundler bundles with the esbuild Go API
type EsbuildBundler struct {
	cfg     config.EsbuildConfig
	plugins PluginFactory
}

// NewEsbuildBundler creates the esbuild backend. plugins may be nil.
func NewEsbuildBundler(cfg config.EsbuildConfig, plugins PluginFactory) *EsbuildBundler {
	return &EsbuildBundler{cfg: cfg, plugins: plugins}
}

func (e *EsbuildBundler) Name() string { return "esbuild" }

// Options returns the build options used for a job
func (e *EsbuildBundler) Options(job Job, plugins []api.Plugin) api.BuildOptions {
	return api.BuildOptions{
		EntryPoints:       []string{job.Entrypoint},
		Bundle:            true,
		Write:             false,
		Outdir:            "out", // nothing is written
		Format:            api.FormatESModule,
		Platform:          api.PlatformNeutral,
		Target:            parseTarget(e.cfg.Target),
		TreeShaking:       api.TreeShakingTrue,
		MinifyWhitespace:  e.cfg.Minify,
		MinifyIdentifiers: e.cfg.Minify,
		MinifySyntax:      e.cfg.Minify,
		Sourcemap:         parseSourcemap(e.cfg.Sourcemap),
		AbsWorkingDir:     job.WorkingDir,
		LogLevel:          api.LogLevelSilent,
		Plugins:           plugins,
	}
}

// Bundle implements Backend. The esbuild context is created per call and
// disposed on every return path.
func (e *EsbuildBundler) Bundle(ctx context.Context, job Job) ([]byte, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}

	var plugins []api.Plugin
	if e.plugins != nil {
		var err error
		plugins, err = e.plugins(ctx, job)
		if err != nil {
			return nil, err
		}
	}

	buildCtx, ctxErr := api.Context(e.Options(job, plugins))
	if ctxErr != nil {
		return nil, &BundleError{Backend: e.Name(), Diagnostics: formatMessages(ctxErr.Errors), Err: ctxErr}
	}
	defer buildCtx.Dispose()

	stop := context.AfterFunc(ctx, buildCtx.Cancel)
	defer stop()

	result := buildCtx.Rebuild()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(result.Errors) > 0 {
		return nil, &BundleError{Backend: e.Name(), Diagnostics: formatMessages(result.Errors)}
	}
	for _, f := range result.OutputFiles {
		if strings.HasSuffix(f.Path, ".js") {
			return f.Contents, nil
		}
	}
	return nil, &BundleError{Backend: e.Name(), Diagnostics: "esbuild produced no JavaScript output"}
}

// Metafile bundles the job without minification and returns esbuild's
// metafile JSON.
func (e *EsbuildBundler) Metafile(ctx context.Context, job Job) (string, error) {
	if err := job.Validate(); err != nil {
		return "", err
	}

	var plugins []api.Plugin
	if e.plugins != nil {
		var err error
		plugins, err = e.plugins(ctx, job)
		if err != nil {
			return "", err
		}
	}

	opts := e.Options(job, plugins)
	opts.Metafile = true
	opts.MinifyWhitespace = false
	opts.MinifyIdentifiers = false
	opts.MinifySyntax = false
	opts.Sourcemap = api.SourceMapNone

	buildCtx, ctxErr := api.Context(opts)
	if ctxErr != nil {
		return "", &BundleError{Backend: e.Name(), Diagnostics: formatMessages(ctxErr.Errors), Err: ctxErr}
	}
	defer buildCtx.Dispose()

	result := buildCtx.Rebuild()
	if len(result.Errors) > 0 {
		return "", &BundleError{Backend: e.Name(), Diagnostics: formatMessages(result.Errors)}
	}
	return result.Metafile, nil
}

func parseTarget(target string) api.Target {
	switch strings.ToLower(target) {
	case "es2015":
		return api.ES2015
	case "es2016":
		return api.ES2016
	case "es2017":
		return api.ES2017
	case "es2018":
		return api.ES2018
	case "es2019":
		return api.ES2019
	case "es2020":
		return api.ES2020
	case "es2021":
		return api.ES2021
	case "es2022":
		return api.ES2022
	case "es2023":
		return api.ES2023
	default:
		return api.ESNext
	}
}

func parseSourcemap(s string) api.SourceMap {
	switch s {
	case "external":
		return api.SourceMapExternal
	case "none":
		return api.SourceMapNone
	default:
		return api.SourceMapInline
	}
}

func formatMessages(msgs []api.Message) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Location != nil {
			parts = append(parts, m.Location.File+": "+m.Text)
			continue
		}
		parts = append(parts, m.Text)
	}
	return strings.Join(parts, "\n")
}
