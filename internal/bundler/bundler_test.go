package bundler

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denohooks/denohooks/internal/config"
	"github.com/denohooks/denohooks/internal/deno"
	"github.com/denohooks/denohooks/internal/denoloader"
	"github.com/denohooks/denohooks/internal/modgraph"
	"github.com/denohooks/denohooks/internal/testutil"
)

type fakeBackend struct {
	name  string
	calls int
	code  string
	err   error
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Bundle(_ context.Context, _ Job) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.code), nil
}

type fakeRunner struct {
	stdout string
	err    error
}

func (f *fakeRunner) Run(_ context.Context, _ string, _ ...string) ([]byte, []byte, error) {
	return []byte(f.stdout), nil, f.err
}

func newJob(t *testing.T, root string) Job {
	t.Helper()
	return Job{
		FunctionID: "greet",
		Entrypoint: filepath.Join(root, "functions", "greet.ts"),
		OutFile:    filepath.Join(root, "dist", "functions", "greet.js"),
		WorkingDir: root,
	}
}

func testEsbuildConfig() config.EsbuildConfig {
	return config.EsbuildConfig{Target: "esnext", Minify: false, Sourcemap: "none", CacheSize: 8}
}

func runtimePlugins(ctx context.Context, _ Job) ([]api.Plugin, error) {
	return denoloader.Plugins(denoloader.Options{Context: ctx, Logger: zerolog.Nop()}), nil
}

func TestOrchestrator_Build(t *testing.T) {
	t.Run("falls through to the next backend on bundle errors", func(t *testing.T) {
		root := testutil.WriteProject(t, map[string]string{"functions/greet.ts": "export default () => 1;"})
		native := &fakeBackend{name: "deno", err: &BundleError{Backend: "deno", Diagnostics: "error: boom"}}
		fallback := &fakeBackend{name: "esbuild", code: "export default () => 1;"}
		rec := testutil.NewRecorder()

		o := NewOrchestrator(rec, zerolog.Nop(), native, fallback)
		job := newJob(t, root)
		require.NoError(t, o.Build(context.Background(), job))

		assert.Equal(t, 1, native.calls)
		assert.Equal(t, 1, fallback.calls)
		assert.Equal(t, "export default () => 1;", testutil.ReadFile(t, root, "dist/functions/greet.js"))
		require.Len(t, rec.Errors, 1)
		assert.Contains(t, rec.Errors[0], `"greet" with deno: error: boom`)
	})

	t.Run("first success stops the chain", func(t *testing.T) {
		root := testutil.WriteProject(t, map[string]string{"functions/greet.ts": ""})
		native := &fakeBackend{name: "deno", code: "native"}
		fallback := &fakeBackend{name: "esbuild", code: "fallback"}

		o := NewOrchestrator(testutil.NewRecorder(), zerolog.Nop(), native, fallback)
		require.NoError(t, o.Build(context.Background(), newJob(t, root)))

		assert.Equal(t, 0, fallback.calls)
		assert.Equal(t, "native", testutil.ReadFile(t, root, "dist/functions/greet.js"))
	})

	t.Run("other errors abort immediately", func(t *testing.T) {
		root := testutil.WriteProject(t, map[string]string{"functions/greet.ts": ""})
		usage := errors.New("permission denied")
		native := &fakeBackend{name: "deno", err: usage}
		fallback := &fakeBackend{name: "esbuild", code: "fallback"}

		o := NewOrchestrator(testutil.NewRecorder(), zerolog.Nop(), native, fallback)
		err := o.Build(context.Background(), newJob(t, root))

		require.ErrorIs(t, err, usage)
		assert.Equal(t, 0, fallback.calls)
	})

	t.Run("every backend failing is exhausted", func(t *testing.T) {
		root := testutil.WriteProject(t, map[string]string{"functions/greet.ts": ""})
		native := &fakeBackend{name: "deno", err: &BundleError{Backend: "deno", Diagnostics: "a"}}
		fallback := &fakeBackend{name: "esbuild", err: &BundleError{Backend: "esbuild", Diagnostics: "b"}}
		rec := testutil.NewRecorder()

		o := NewOrchestrator(rec, zerolog.Nop(), native, fallback)
		err := o.Build(context.Background(), newJob(t, root))

		var exhausted *ExhaustedError
		require.ErrorAs(t, err, &exhausted)
		assert.Equal(t, "greet", exhausted.FunctionID)
		require.Len(t, exhausted.Attempts, 2)
		assert.ErrorIs(t, err, ErrBundle)
		assert.Contains(t, err.Error(), "deno and esbuild")
		assert.Len(t, rec.Errors, 2)
		assert.NoFileExists(t, filepath.Join(root, "dist", "functions", "greet.js"))
	})

	t.Run("no backends", func(t *testing.T) {
		o := NewOrchestrator(testutil.NewRecorder(), zerolog.Nop())
		assert.Error(t, o.Build(context.Background(), Job{FunctionID: "x"}))
	})
}

func TestNativeBundler(t *testing.T) {
	t.Run("deno failure is a bundle error", func(t *testing.T) {
		root := testutil.WriteProject(t, map[string]string{"functions/greet.ts": ""})
		cmdErr := &deno.CommandError{Args: []string{"bundle"}, Stderr: "\x1b[31merror\x1b[0m: Module not found \"./missing.ts\"", Err: errors.New("exit status 1")}
		b := NewNativeBundler(deno.NewWithRunner(&fakeRunner{err: cmdErr}), 0)

		_, err := b.Bundle(context.Background(), newJob(t, root))

		var bundleErr *BundleError
		require.ErrorAs(t, err, &bundleErr)
		assert.Equal(t, "deno", bundleErr.Backend)
		assert.Contains(t, bundleErr.Diagnostics, "Module not found")
	})

	t.Run("missing entrypoint is not a bundle error", func(t *testing.T) {
		root := t.TempDir()
		b := NewNativeBundler(deno.NewWithRunner(&fakeRunner{stdout: "x"}), 0)

		_, err := b.Bundle(context.Background(), newJob(t, root))

		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrBundle)
	})

	t.Run("returns stdout", func(t *testing.T) {
		root := testutil.WriteProject(t, map[string]string{"functions/greet.ts": ""})
		b := NewNativeBundler(deno.NewWithRunner(&fakeRunner{stdout: "bundled"}), 0)

		out, err := b.Bundle(context.Background(), newJob(t, root))
		require.NoError(t, err)
		assert.Equal(t, "bundled", string(out))
	})
}

func TestEsbuildBundler(t *testing.T) {
	t.Run("inlines local imports", func(t *testing.T) {
		root := testutil.WriteProject(t, map[string]string{
			"functions/greet.ts": `import { message } from "./lib/message.ts";
export default () => message;`,
			"functions/lib/message.ts": `export const message: string = "hello from message";`,
		})
		b := NewEsbuildBundler(testEsbuildConfig(), runtimePlugins)

		out, err := b.Bundle(context.Background(), newJob(t, root))
		require.NoError(t, err)
		assert.Contains(t, string(out), "hello from message")
		assert.NotContains(t, string(out), "./lib/message.ts")
	})

	t.Run("runtime specifiers stay external", func(t *testing.T) {
		root := testutil.WriteProject(t, map[string]string{
			"functions/greet.ts": `import chunk from "npm:lodash/chunk";
export default () => chunk([1, 2], 1);`,
		})
		b := NewEsbuildBundler(testEsbuildConfig(), runtimePlugins)

		out, err := b.Bundle(context.Background(), newJob(t, root))
		require.NoError(t, err)
		assert.Contains(t, string(out), "npm:lodash/chunk")
	})

	t.Run("syntax error is a bundle error", func(t *testing.T) {
		root := testutil.WriteProject(t, map[string]string{"functions/greet.ts": "export default () => {"})
		b := NewEsbuildBundler(testEsbuildConfig(), nil)

		_, err := b.Bundle(context.Background(), newJob(t, root))

		var bundleErr *BundleError
		require.ErrorAs(t, err, &bundleErr)
		assert.Equal(t, "esbuild", bundleErr.Backend)
		assert.NotEmpty(t, bundleErr.Diagnostics)
	})

	t.Run("options", func(t *testing.T) {
		cfg := testEsbuildConfig()
		cfg.Minify = true
		cfg.Sourcemap = "inline"
		cfg.Target = "es2020"
		opts := NewEsbuildBundler(cfg, nil).Options(Job{Entrypoint: "/p/f.ts", WorkingDir: "/p"}, nil)

		assert.True(t, opts.Bundle)
		assert.False(t, opts.Write)
		assert.Equal(t, api.FormatESModule, opts.Format)
		assert.Equal(t, api.PlatformNeutral, opts.Platform)
		assert.Equal(t, api.TreeShakingTrue, opts.TreeShaking)
		assert.True(t, opts.MinifyIdentifiers)
		assert.Equal(t, api.SourceMapInline, opts.Sourcemap)
		assert.Equal(t, api.ES2020, opts.Target)
	})
}

type failingGrapher struct{ calls int }

func (f *failingGrapher) Name() string { return "deno" }

func (f *failingGrapher) Graph(context.Context, Job) (modgraph.Graph, string, error) {
	f.calls++
	return nil, "", &BundleError{Backend: "deno", Diagnostics: "deno not found"}
}

func TestGraphChain_LocalFiles(t *testing.T) {
	root := testutil.WriteProject(t, map[string]string{
		"functions/greet.ts": `import { a } from "./a.ts";
import chunk from "npm:lodash/chunk";
export default () => [a, chunk];`,
		"functions/a.ts": `import greet from "./greet.ts";
export const a = typeof greet;`,
		"functions/unused.ts": `export const unused = 1;`,
	})
	job := newJob(t, root)
	first := &failingGrapher{}
	chain := NewGraphChain(zerolog.Nop(), first, NewMetafileGrapher(NewEsbuildBundler(testEsbuildConfig(), runtimePlugins)))

	files, err := chain.LocalFiles(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, 1, first.calls)
	assert.Equal(t, []string{
		filepath.Join(root, "functions", "a.ts"),
		filepath.Join(root, "functions", "greet.ts"),
	}, files.Sorted())
}

func TestDenoInfoGrapher(t *testing.T) {
	root := testutil.WriteProject(t, map[string]string{"functions/greet.ts": ""})
	job := newJob(t, root)
	entry := "file://" + filepath.ToSlash(job.Entrypoint)
	dep := "file://" + filepath.ToSlash(filepath.Join(root, "functions", "dep.ts"))
	info := `{"roots":["` + entry + `"],"modules":[
		{"kind":"esm","specifier":"` + entry + `","dependencies":[
			{"specifier":"./dep.ts","code":{"specifier":"` + dep + `"}},
			{"specifier":"npm:chalk","code":{"specifier":"npm:chalk@5"},"npmPackage":"chalk@5"}
		]},
		{"kind":"esm","specifier":"` + dep + `"},
		{"kind":"npm","specifier":"npm:chalk@5"}
	],"redirects":{}}`

	chain := NewGraphChain(zerolog.Nop(), NewDenoInfoGrapher(deno.NewWithRunner(&fakeRunner{stdout: info})))
	files, err := chain.LocalFiles(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(root, "functions", "dep.ts"),
		job.Entrypoint,
	}, files.Sorted())
}
