// Package build turns a project and its manifest into the deployable
// output directory.
package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"

	"github.com/denohooks/denohooks/internal/bundler"
	"github.com/denohooks/denohooks/internal/config"
	"github.com/denohooks/denohooks/internal/manifest"
	"github.com/denohooks/denohooks/internal/modgraph"
	"github.com/denohooks/denohooks/internal/validate"
)

const (
	FunctionsDir = "functions"
	ManifestFile = "manifest.json"
)

// Validator checks a manifest's functions before anything is bundled
type Validator interface {
	Validate(ctx context.Context, projectRoot string, m manifest.Manifest) error
}

// Builder bundles a single function
type Builder interface {
	Build(ctx context.Context, job bundler.Job) error
}

// FileCollector returns the local files a function depends on
type FileCollector interface {
	LocalFiles(ctx context.Context, job bundler.Job) (modgraph.Set, error)
}

// Options configures a Pipeline
type Options struct {
	Validator Validator
	Builder   Builder
	// Files is only required in raw-copy mode
	Files        FileCollector
	Mode         string
	RawCopyFiles []string
	ConfigPath   string
	Logger       zerolog.Logger
}

// Pipeline runs a build
type Pipeline struct {
	opts Options
	log  zerolog.Logger
}

// Result summarizes a build. Paths are slash-separated and relative to the
// output directory.
type Result struct {
	OutputDir string   `json:"output_dir"`
	Functions []string `json:"functions"`
	Bundles   []string `json:"bundles"`
	RawFiles  []string `json:"raw_files,omitempty"`
}

// New creates a pipeline
func New(opts Options) (*Pipeline, error) {
	if opts.Validator == nil || opts.Builder == nil {
		return nil, errors.New("build pipeline needs a validator and a builder")
	}
	if opts.Mode == "" {
		opts.Mode = config.BuildModeBundle
	}
	if opts.Mode == config.BuildModeRawCopy && opts.Files == nil {
		return nil, errors.New("raw-copy mode needs a module graph backend")
	}
	return &Pipeline{opts: opts, log: opts.Logger.With().Str("component", "build").Logger()}, nil
}

// Run wipes outputDir and rebuilds it from the project. Any error aborts
// the build; a rerun starts over from the wipe.
func (p *Pipeline) Run(ctx context.Context, projectRoot, outputDir string, m manifest.Manifest) (*Result, error) {
	projectRoot, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, err
	}
	if !filepath.IsAbs(outputDir) {
		outputDir = filepath.Join(projectRoot, outputDir)
	}

	if err := os.RemoveAll(outputDir); err != nil {
		return nil, fmt.Errorf("failed to clean output directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(outputDir, FunctionsDir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := p.opts.Validator.Validate(ctx, projectRoot, m); err != nil {
		return nil, err
	}

	fns, err := m.Functions()
	if err != nil {
		return nil, err
	}

	result := &Result{OutputDir: outputDir, Functions: []string{}, Bundles: []string{}}
	generated := map[string]bool{ManifestFile: true}
	localFiles := modgraph.Set{}

	for _, fn := range fns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result.Functions = append(result.Functions, fn.ID)
		if fn.IsAPI() {
			p.log.Debug().Str("function", fn.ID).Msg("Skipping API function")
			continue
		}

		bundleRel := FunctionsDir + "/" + fn.ID + ".js"
		job := bundler.Job{
			FunctionID: fn.ID,
			Entrypoint: filepath.Join(projectRoot, filepath.FromSlash(fn.SourceFile)),
			OutFile:    filepath.Join(outputDir, filepath.FromSlash(bundleRel)),
			WorkingDir: projectRoot,
			ConfigPath: p.opts.ConfigPath,
		}
		if filepath.Dir(job.OutFile) != filepath.Join(outputDir, FunctionsDir) {
			return nil, fmt.Errorf("function %q: bundle path %s is outside %s: %w", fn.ID, job.OutFile, filepath.Join(outputDir, FunctionsDir), validate.ErrInvalidFunctionID)
		}

		if err := p.opts.Builder.Build(ctx, job); err != nil {
			return nil, err
		}
		generated[bundleRel] = true
		result.Bundles = append(result.Bundles, bundleRel)

		if p.opts.Mode == config.BuildModeRawCopy {
			files, err := p.opts.Files.LocalFiles(ctx, job)
			if err != nil {
				return nil, err
			}
			localFiles.Union(files)
		}
	}

	data, err := manifest.Marshal(manifest.Prune(m))
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(outputDir, ManifestFile), data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}

	if p.opts.Mode == config.BuildModeRawCopy {
		raw, err := p.copyRaw(projectRoot, outputDir, localFiles, generated)
		if err != nil {
			return nil, err
		}
		result.RawFiles = raw
	}

	p.log.Info().
		Int("functions", len(result.Functions)).
		Int("bundles", len(result.Bundles)).
		Int("raw_files", len(result.RawFiles)).
		Msg("Build complete")

	return result, nil
}

// copyRaw mirrors the collected sources and the project's config and lock
// files into the output tree.
func (p *Pipeline) copyRaw(projectRoot, outputDir string, sources modgraph.Set, generated map[string]bool) ([]string, error) {
	copied := map[string]bool{}
	var out []string

	copyOne := func(src string) error {
		rel, err := filepath.Rel(projectRoot, src)
		if err != nil || !validate.Within(projectRoot, src) {
			return fmt.Errorf("raw file %s is outside the project root %s", src, projectRoot)
		}
		slashRel := filepath.ToSlash(rel)
		if generated[slashRel] {
			return fmt.Errorf("raw file %s collides with generated %s", src, slashRel)
		}
		if copied[slashRel] {
			return nil
		}
		if err := copyFile(src, filepath.Join(outputDir, rel)); err != nil {
			return err
		}
		copied[slashRel] = true
		out = append(out, slashRel)
		return nil
	}

	for _, src := range sources.Sorted() {
		if err := copyOne(src); err != nil {
			return nil, err
		}
	}

	extras, err := p.matchRawCopyFiles(projectRoot, outputDir)
	if err != nil {
		return nil, err
	}
	for _, src := range extras {
		if err := copyOne(src); err != nil {
			return nil, err
		}
	}

	sort.Strings(out)
	return out, nil
}

// matchRawCopyFiles expands the raw_copy_files globs against the project,
// ignoring anything under the output directory.
func (p *Pipeline) matchRawCopyFiles(projectRoot, outputDir string) ([]string, error) {
	outRel, err := filepath.Rel(projectRoot, outputDir)
	if err != nil {
		outRel = ""
	}
	outRel = filepath.ToSlash(outRel)

	fsys := os.DirFS(projectRoot)
	matched := map[string]bool{}
	for _, pattern := range p.opts.RawCopyFiles {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("invalid raw_copy_files pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			if outRel != "" && outRel != "." && (m == outRel || strings.HasPrefix(m, outRel+"/")) {
				continue
			}
			matched[m] = true
		}
	}

	paths := make([]string, 0, len(matched))
	for m := range matched {
		paths = append(paths, filepath.Join(projectRoot, filepath.FromSlash(m)))
	}
	sort.Strings(paths)
	return paths, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("raw file %s is not a regular file", src)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm()|fs.FileMode(0o200))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}
