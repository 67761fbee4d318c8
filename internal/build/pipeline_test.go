package build

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denohooks/denohooks/internal/bundler"
	"github.com/denohooks/denohooks/internal/config"
	"github.com/denohooks/denohooks/internal/jsmodule"
	"github.com/denohooks/denohooks/internal/manifest"
	"github.com/denohooks/denohooks/internal/modgraph"
	"github.com/denohooks/denohooks/internal/testutil"
	"github.com/denohooks/denohooks/internal/validate"
)

type fakeValidator struct{ err error }

func (f fakeValidator) Validate(context.Context, string, manifest.Manifest) error { return f.err }

type fakeBuilder struct{ jobs []bundler.Job }

func (f *fakeBuilder) Build(_ context.Context, job bundler.Job) error {
	f.jobs = append(f.jobs, job)
	if err := os.MkdirAll(filepath.Dir(job.OutFile), 0o755); err != nil {
		return err
	}
	return os.WriteFile(job.OutFile, []byte("// "+job.FunctionID), 0o600)
}

type fakeCollector struct{ files map[string][]string }

func (f fakeCollector) LocalFiles(_ context.Context, job bundler.Job) (modgraph.Set, error) {
	s := modgraph.Set{}
	s.Add(f.files[job.FunctionID]...)
	return s, nil
}

func apiManifest() manifest.Manifest {
	return manifest.Manifest{
		"name": "app",
		"functions": map[string]any{
			"remote": map[string]any{"type": "API", "title": "Remote"},
		},
	}
}

func localManifest() manifest.Manifest {
	return manifest.Manifest{
		"functions": map[string]any{
			"greet":    map[string]any{"source_file": "functions/greet.ts", "title": "Greet"},
			"farewell": map[string]any{"source_file": "functions/farewell.ts"},
		},
	}
}

func TestPipeline_AllAPIFunctions(t *testing.T) {
	root := t.TempDir()
	builder := &fakeBuilder{}
	p, err := New(Options{Validator: fakeValidator{}, Builder: builder, Logger: zerolog.Nop()})
	require.NoError(t, err)

	result, err := p.Run(context.Background(), root, "dist", apiManifest())
	require.NoError(t, err)

	assert.Empty(t, builder.jobs)
	assert.DirExists(t, filepath.Join(root, "dist", "functions"))
	assert.Equal(t, []string{"remote"}, result.Functions)
	assert.Empty(t, result.Bundles)
	assert.JSONEq(t, `{"name":"app","functions":{"remote":{"type":"API","title":"Remote"}}}`,
		testutil.ReadFile(t, root, "dist/manifest.json"))
}

func TestPipeline_BundlesInSortedOrder(t *testing.T) {
	root := testutil.WriteProject(t, map[string]string{"dist/stale.txt": "old"})
	builder := &fakeBuilder{}
	p, err := New(Options{Validator: fakeValidator{}, Builder: builder, ConfigPath: "/cfg/deno.json", Logger: zerolog.Nop()})
	require.NoError(t, err)

	result, err := p.Run(context.Background(), root, "dist", localManifest())
	require.NoError(t, err)

	require.Len(t, builder.jobs, 2)
	assert.Equal(t, "farewell", builder.jobs[0].FunctionID)
	assert.Equal(t, "greet", builder.jobs[1].FunctionID)
	assert.Equal(t, filepath.Join(root, "functions", "greet.ts"), builder.jobs[1].Entrypoint)
	assert.Equal(t, filepath.Join(root, "dist", "functions", "greet.js"), builder.jobs[1].OutFile)
	assert.Equal(t, "/cfg/deno.json", builder.jobs[1].ConfigPath)
	assert.Equal(t, []string{"functions/farewell.js", "functions/greet.js"}, result.Bundles)

	assert.NoFileExists(t, filepath.Join(root, "dist", "stale.txt"))
	assert.NotContains(t, testutil.ReadFile(t, root, "dist/manifest.json"), "source_file")
}

func TestPipeline_ValidationAbortsBeforeBundling(t *testing.T) {
	root := testutil.WriteProject(t, map[string]string{"dist/stale.txt": "old"})
	invalid := &validate.FunctionError{FunctionID: "greet", Err: validate.ErrMissingSourceFile}
	builder := &fakeBuilder{}
	p, err := New(Options{Validator: fakeValidator{err: invalid}, Builder: builder, Logger: zerolog.Nop()})
	require.NoError(t, err)

	_, err = p.Run(context.Background(), root, "dist", localManifest())

	require.ErrorIs(t, err, validate.ErrMissingSourceFile)
	assert.Empty(t, builder.jobs)
	assert.NoFileExists(t, filepath.Join(root, "dist", "stale.txt"))
	assert.NoFileExists(t, filepath.Join(root, "dist", "manifest.json"))
}

func TestPipeline_RawCopy(t *testing.T) {
	files := map[string]string{
		"functions/greet.ts":    "",
		"functions/lib/util.ts": "",
		"deno.json":             `{"imports":{}}`,
		"deno.lock":             `{}`,
		"README.md":             "not copied",
	}

	newPipeline := func(t *testing.T, root string, collected map[string][]string) *Pipeline {
		t.Helper()
		p, err := New(Options{
			Validator:    fakeValidator{},
			Builder:      &fakeBuilder{},
			Files:        fakeCollector{files: collected},
			Mode:         config.BuildModeRawCopy,
			RawCopyFiles: config.DefaultRawCopyFiles,
			Logger:       zerolog.Nop(),
		})
		require.NoError(t, err)
		return p
	}

	t.Run("copies sources and config files", func(t *testing.T) {
		root := testutil.WriteProject(t, files)
		greet := filepath.Join(root, "functions", "greet.ts")
		util := filepath.Join(root, "functions", "lib", "util.ts")
		p := newPipeline(t, root, map[string][]string{
			"greet":    {greet, util},
			"farewell": {util},
		})

		result, err := p.Run(context.Background(), root, "dist", localManifest())
		require.NoError(t, err)

		assert.Equal(t, []string{"deno.json", "deno.lock", "functions/greet.ts", "functions/lib/util.ts"}, result.RawFiles)
		assert.Equal(t, []string{
			"deno.json",
			"deno.lock",
			"functions/farewell.js",
			"functions/greet.js",
			"functions/greet.ts",
			"functions/lib/util.ts",
			"manifest.json",
		}, testutil.ListFiles(t, filepath.Join(root, "dist")))
	})

	t.Run("file outside the project is rejected", func(t *testing.T) {
		root := testutil.WriteProject(t, files)
		outside := filepath.Join(t.TempDir(), "evil.ts")
		require.NoError(t, os.WriteFile(outside, nil, 0o600))
		p := newPipeline(t, root, map[string][]string{"greet": {outside}})

		_, err := p.Run(context.Background(), root, "dist", localManifest())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "outside the project root")
	})

	t.Run("collision with a generated file is rejected", func(t *testing.T) {
		root := testutil.WriteProject(t, map[string]string{
			"functions/greet.ts": "",
			"manifest.json":      "{}",
		})
		p := newPipeline(t, root, map[string][]string{"greet": {filepath.Join(root, "manifest.json")}})

		_, err := p.Run(context.Background(), root, "dist", localManifest())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "collides with generated manifest.json")
	})

	t.Run("needs a collector", func(t *testing.T) {
		_, err := New(Options{Validator: fakeValidator{}, Builder: &fakeBuilder{}, Mode: config.BuildModeRawCopy})
		assert.Error(t, err)
	})
}

func TestPipeline_EndToEnd(t *testing.T) {
	root := testutil.WriteProject(t, map[string]string{
		"functions/greet.ts": `import { format } from "./lib/format.ts";
export default (name: string) => format(name);`,
		"functions/lib/format.ts": "export const format = (name: string) => `hello ${name}`;",
		"functions/farewell.ts":   "export default function farewell() { return 'bye'; }",
	})
	inspector := jsmodule.NewSandbox(5*time.Second, zerolog.Nop())
	esbuild := bundler.NewEsbuildBundler(config.Default().Esbuild, nil)
	rec := testutil.NewRecorder()
	p, err := New(Options{
		Validator: validate.New(inspector, zerolog.Nop()),
		Builder:   bundler.NewOrchestrator(rec, zerolog.Nop(), esbuild),
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)

	first, err := p.Run(context.Background(), root, "dist", localManifest())
	require.NoError(t, err)
	manifestOne := testutil.ReadFile(t, root, "dist/manifest.json")
	filesOne := testutil.ListFiles(t, filepath.Join(root, "dist"))

	second, err := p.Run(context.Background(), root, "dist", localManifest())
	require.NoError(t, err)

	assert.Equal(t, manifestOne, testutil.ReadFile(t, root, "dist/manifest.json"))
	assert.Equal(t, filesOne, testutil.ListFiles(t, filepath.Join(root, "dist")))
	assert.Equal(t, first.Bundles, second.Bundles)
	assert.Equal(t, []string{"functions/farewell.js", "functions/greet.js", "manifest.json"}, filesOne)
	assert.Contains(t, testutil.ReadFile(t, root, "dist/functions/greet.js"), "hello")
	assert.Empty(t, rec.Errors)
}

func TestPipeline_ValidationFailureFromInspector(t *testing.T) {
	root := testutil.WriteProject(t, map[string]string{
		"functions/greet.ts":    "export default 42;",
		"functions/farewell.ts": "export default () => 'bye';",
	})
	inspector := jsmodule.NewSandbox(5*time.Second, zerolog.Nop())
	builder := &fakeBuilder{}
	p, err := New(Options{Validator: validate.New(inspector, zerolog.Nop()), Builder: builder, Logger: zerolog.Nop()})
	require.NoError(t, err)

	_, err = p.Run(context.Background(), root, "dist", localManifest())

	require.ErrorIs(t, err, validate.ErrDefaultExportNotCallable)
	var fnErr *validate.FunctionError
	require.True(t, errors.As(err, &fnErr))
	assert.Equal(t, "greet", fnErr.FunctionID)
	assert.Empty(t, builder.jobs)
}

func TestPipeline_FunctionIDCannotLeaveFunctionsDir(t *testing.T) {
	traversal := manifest.Manifest{
		"functions": map[string]any{
			"../../important": map[string]any{"source_file": "functions/greet.ts"},
		},
	}

	t.Run("rejected by validation", func(t *testing.T) {
		root := testutil.WriteProject(t, map[string]string{
			"functions/greet.ts": "export default () => 'hi';",
			"important.js":       "keep me",
		})
		inspector := jsmodule.NewSandbox(5*time.Second, zerolog.Nop())
		builder := &fakeBuilder{}
		p, err := New(Options{Validator: validate.New(inspector, zerolog.Nop()), Builder: builder, Logger: zerolog.Nop()})
		require.NoError(t, err)

		_, err = p.Run(context.Background(), root, "dist", traversal)

		require.ErrorIs(t, err, validate.ErrInvalidFunctionID)
		assert.Empty(t, builder.jobs)
		assert.Equal(t, "keep me", testutil.ReadFile(t, root, "important.js"))
	})

	t.Run("rejected by the pipeline when validation lets it through", func(t *testing.T) {
		root := testutil.WriteProject(t, map[string]string{"important.js": "keep me"})
		builder := &fakeBuilder{}
		p, err := New(Options{Validator: fakeValidator{}, Builder: builder, Logger: zerolog.Nop()})
		require.NoError(t, err)

		_, err = p.Run(context.Background(), root, "dist", traversal)

		require.ErrorIs(t, err, validate.ErrInvalidFunctionID)
		assert.Empty(t, builder.jobs)
		assert.Equal(t, "keep me", testutil.ReadFile(t, root, "important.js"))
	})
}

func TestPipeline_SourceFileOutsideProject(t *testing.T) {
	parent := t.TempDir()
	testutil.WriteFiles(t, parent, map[string]string{"outside.ts": "export default () => 1;"})
	root := filepath.Join(parent, "app")
	require.NoError(t, os.MkdirAll(root, 0o755))

	inspector := jsmodule.NewSandbox(5*time.Second, zerolog.Nop())
	builder := &fakeBuilder{}
	p, err := New(Options{Validator: validate.New(inspector, zerolog.Nop()), Builder: builder, Logger: zerolog.Nop()})
	require.NoError(t, err)

	m := manifest.Manifest{"functions": map[string]any{"f": map[string]any{"source_file": "../outside.ts"}}}
	_, err = p.Run(context.Background(), root, "dist", m)

	require.ErrorIs(t, err, validate.ErrSourceOutsideProject)
	var fnErr *validate.FunctionError
	require.True(t, errors.As(err, &fnErr))
	assert.Equal(t, "f", fnErr.FunctionID)
	assert.Empty(t, builder.jobs)
}
