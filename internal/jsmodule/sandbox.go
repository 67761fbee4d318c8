package jsmodule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog"
)

// runtimeGlobals are host APIs user modules commonly touch at top level.
// Any that the interpreter lacks are replaced by the stub.
var runtimeGlobals = []string{
	"Deno", "fetch", "Request", "Response", "Headers", "URL", "URLSearchParams",
	"TextEncoder", "TextDecoder", "crypto", "setTimeout", "clearTimeout",
	"setInterval", "clearInterval", "queueMicrotask", "structuredClone", "atob", "btoa",
}

// Sandbox evaluates modules in an embedded interpreter. The module's local
// import graph is compiled to a single CommonJS script with esbuild; every
// import that resolves outside the project is replaced by an inert stub.
// The script has no file, network or process access.
type Sandbox struct {
	// Plugins run before the built-in resolver, e.g. to resolve import maps
	// and inline remote modules.
	Plugins []api.Plugin
	Timeout time.Duration
	Logger  zerolog.Logger
}

// NewSandbox creates a sandbox inspector
func NewSandbox(timeout time.Duration, logger zerolog.Logger, plugins ...api.Plugin) *Sandbox {
	return &Sandbox{
		Plugins: plugins,
		Timeout: timeout,
		Logger:  logger.With().Str("component", "sandbox").Logger(),
	}
}

// Inspect implements Inspector.
func (s *Sandbox) Inspect(ctx context.Context, path string) (*Export, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	script, err := s.compile(absPath)
	if err != nil {
		return nil, err
	}

	return s.evaluate(ctx, absPath, script)
}

func (s *Sandbox) compile(absPath string) (string, error) {
	plugins := append([]api.Plugin{}, s.Plugins...)
	plugins = append(plugins, stubExternalPlugin())

	result := api.Build(api.BuildOptions{
		EntryPoints:   []string{absPath},
		Bundle:        true,
		Write:         false,
		Format:        api.FormatCommonJS,
		Platform:      api.PlatformNeutral,
		Target:        api.ES2016,
		AbsWorkingDir: filepath.Dir(absPath),
		Outdir:        "out",
		LogLevel:      api.LogLevelSilent,
		Plugins:       plugins,
	})

	if len(result.Errors) > 0 {
		loadErr := &LoadError{Path: absPath, Detail: formatMessages(result.Errors)}
		if usesTopLevelAwait(result.Errors) {
			return "", fmt.Errorf("%w: %w", ErrTopLevelAwait, loadErr)
		}
		return "", loadErr
	}
	if len(result.OutputFiles) == 0 {
		return "", &LoadError{Path: absPath, Detail: "esbuild produced no output"}
	}
	return string(result.OutputFiles[0].Contents), nil
}

func (s *Sandbox) evaluate(ctx context.Context, absPath, script string) (export *Export, err error) {
	vm := goja.New()

	if s.Timeout > 0 {
		timer := time.AfterFunc(s.Timeout, func() {
			vm.Interrupt(fmt.Sprintf("evaluation timed out after %s", s.Timeout))
		})
		defer timer.Stop()
	}
	stop := context.AfterFunc(ctx, func() {
		vm.Interrupt(ctx.Err())
	})
	defer stop()

	defer func() {
		if err != nil {
			err = s.wrapError(absPath, err)
		}
	}()

	stub, err := vm.RunString(stubSource)
	if err != nil {
		return nil, err
	}
	for _, name := range runtimeGlobals {
		if v := vm.GlobalObject().Get(name); v == nil || goja.IsUndefined(v) {
			if err := vm.Set(name, stub); err != nil {
				return nil, err
			}
		}
	}
	if err := vm.Set("console", s.console(vm)); err != nil {
		return nil, err
	}

	module := vm.NewObject()
	if err := module.Set("exports", vm.NewObject()); err != nil {
		return nil, err
	}
	require := func(call goja.FunctionCall) goja.Value {
		s.Logger.Debug().Str("module", call.Argument(0).String()).Msg("Stubbed import")
		return stub
	}

	wrapped, err := vm.RunScript(absPath, "(function (module, exports, require) {\n"+script+"\n})")
	if err != nil {
		return nil, err
	}
	moduleFn, ok := goja.AssertFunction(wrapped)
	if !ok {
		return nil, errors.New("module wrapper is not callable")
	}
	if _, err := moduleFn(goja.Undefined(), module, module.Get("exports"), vm.ToValue(require)); err != nil {
		return nil, err
	}

	describeValue, err := vm.RunString(describeSource)
	if err != nil {
		return nil, err
	}
	describe, ok := goja.AssertFunction(describeValue)
	if !ok {
		return nil, errors.New("describe helper is not callable")
	}
	described, err := describe(goja.Undefined(), module.Get("exports"), stub)
	if err != nil {
		return nil, err
	}

	export = &Export{}
	if err := json.Unmarshal([]byte(described.String()), export); err != nil {
		return nil, fmt.Errorf("decoding export description: %w", err)
	}
	return export, nil
}

func (s *Sandbox) console(vm *goja.Runtime) *goja.Object {
	console := vm.NewObject()
	for _, level := range []string{"log", "info", "debug", "warn", "error", "trace"} {
		_ = console.Set(level, func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = arg.String()
			}
			s.Logger.Debug().Msg(strings.Join(parts, " "))
			return goja.Undefined()
		})
	}
	return console
}

func (s *Sandbox) wrapError(absPath string, err error) error {
	var exception *goja.Exception
	var interrupted *goja.InterruptedError
	switch {
	case errors.As(err, &interrupted):
		return &LoadError{Path: absPath, Detail: fmt.Sprint(interrupted.Value())}
	case errors.As(err, &exception):
		return &LoadError{Path: absPath, Detail: exception.Error()}
	case errors.Is(err, ErrLoad), errors.Is(err, ErrTopLevelAwait):
		return err
	default:
		return &LoadError{Path: absPath, Detail: err.Error()}
	}
}

// stubExternalPlugin leaves relative and absolute paths to esbuild and marks
// every other specifier external so it becomes a require() of the stub.
func stubExternalPlugin() api.Plugin {
	return api.Plugin{
		Name: "sandbox-external",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: `.*`},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					if args.Kind == api.ResolveEntryPoint || isLocalSpecifier(args.Path) {
						return api.OnResolveResult{}, nil
					}
					return api.OnResolveResult{Path: args.Path, External: true}, nil
				})
		},
	}
}

func isLocalSpecifier(spec string) bool {
	return strings.HasPrefix(spec, "./") ||
		strings.HasPrefix(spec, "../") ||
		strings.HasPrefix(spec, "/") ||
		spec == "." || spec == ".." ||
		filepath.IsAbs(spec)
}

// usesTopLevelAwait reports whether esbuild rejected the module because
// CommonJS output cannot express top-level await
func usesTopLevelAwait(msgs []api.Message) bool {
	for _, m := range msgs {
		if strings.Contains(m.Text, "Top-level await") {
			return true
		}
	}
	return false
}

func formatMessages(msgs []api.Message) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Location != nil {
			parts = append(parts, fmt.Sprintf("%s:%d:%d: %s", m.Location.File, m.Location.Line, m.Location.Column, m.Text))
			continue
		}
		parts = append(parts, m.Text)
	}
	return strings.Join(parts, "; ")
}
