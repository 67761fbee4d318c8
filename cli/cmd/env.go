package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/denohooks/denohooks/internal/bundler"
	"github.com/denohooks/denohooks/internal/config"
	"github.com/denohooks/denohooks/internal/deno"
	"github.com/denohooks/denohooks/internal/denoloader"
	"github.com/denohooks/denohooks/internal/jsmodule"
	"github.com/denohooks/denohooks/internal/logging"
	"github.com/denohooks/denohooks/internal/protocol"
)

// hookEnv carries everything a hook needs for one invocation
type hookEnv struct {
	proto      protocol.Protocol
	out        io.Writer
	cfg        *config.Config
	log        zerolog.Logger
	projectDir string
	denoConfig string          // deno.json(c) of the project, may be empty
	toolchain  *deno.Toolchain // nil when deno is not installed
	fetcher    *denoloader.Fetcher
}

// hookFunc runs a hook and returns the value to respond with. A nil value
// sends no response.
type hookFunc func(ctx context.Context, env *hookEnv) (any, error)

// runHook adapts a hookFunc to cobra. Errors are reported through the host
// protocol so the parent sees them with the right framing.
func runHook(projectDir func(cmd *cobra.Command) string, fn hookFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		proto, err := protocol.NewWithWriter(cmd.OutOrStdout(), protocol.Options{
			Protocol: protocolName,
			Boundary: boundary,
			Manifest: manifestOnly,
		})
		if err != nil {
			return err
		}

		dir := "."
		if projectDir != nil {
			dir = projectDir(cmd)
		}

		env, err := newHookEnv(cmd, proto, dir)
		if err != nil {
			proto.Error(err.Error())
			return fmt.Errorf("%w: %w", ErrReported, err)
		}

		result, err := fn(cmd.Context(), env)
		if err != nil {
			env.log.Debug().Err(err).Msg("Hook failed")
			proto.Error(err.Error())
			return fmt.Errorf("%w: %w", ErrReported, err)
		}

		if result == nil {
			return nil
		}
		data, err := marshalResponse(result)
		if err != nil {
			proto.Error(err.Error())
			return fmt.Errorf("%w: %w", ErrReported, err)
		}
		proto.Respond(data)
		return nil
	}
}

func newHookEnv(cmd *cobra.Command, proto protocol.Protocol, dir string) (*hookEnv, error) {
	projectDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project directory: %w", err)
	}

	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	}
	if err := v.BindPFlag("debug", cmd.Root().PersistentFlags().Lookup("debug")); err != nil {
		return nil, err
	}

	cfg, err := config.Load(v, projectDir)
	if err != nil {
		return nil, err
	}

	logger, err := logging.Setup(proto, cfg.Log.Level, cfg.Debug, cfg.Log.Console)
	if err != nil {
		return nil, err
	}
	logger = logger.With().Str("hook", cmd.Name()).Logger()

	env := &hookEnv{
		proto:      proto,
		out:        cmd.OutOrStdout(),
		cfg:        cfg,
		log:        logger,
		projectDir: projectDir,
	}

	if path, err := deno.Find(cfg.Deno.Path); err == nil {
		env.toolchain = deno.New(path)
		logger.Debug().Str("path", path).Msg("Found deno")
	} else {
		logger.Debug().Err(err).Msg("deno not available")
	}

	env.denoConfig = cfg.Deno.ConfigFile
	if env.denoConfig != "" && !filepath.IsAbs(env.denoConfig) {
		env.denoConfig = filepath.Join(projectDir, env.denoConfig)
	}
	if env.denoConfig == "" {
		found, err := denoloader.FindConfig(projectDir)
		if err != nil {
			return nil, err
		}
		env.denoConfig = found
	}

	if cfg.Esbuild.RemoteImports {
		env.fetcher, err = denoloader.NewFetcher(cfg.Esbuild.FetchTimeout, cfg.Esbuild.CacheSize)
		if err != nil {
			return nil, err
		}
		env.fetcher.WithRateLimit(cfg.Esbuild.FetchRate, cfg.Esbuild.FetchBurst)
	}

	return env, nil
}

// withBuildID tags the environment's logger with a fresh build ID
func (e *hookEnv) withBuildID() string {
	id := uuid.NewString()
	e.log = e.log.With().Str("build_id", id).Logger()
	return id
}

// inspector returns the module inspector for the configured loader mode.
// With remote imports enabled the sandbox downloads and evaluates remote
// modules, so values computed by SDK helpers are real.
func (e *hookEnv) inspector(ctx context.Context) (jsmodule.Inspector, error) {
	plugins, err := denoloader.NewPluginsForProject(ctx, e.denoConfig, e.fetcher, e.log)
	if err != nil {
		return nil, err
	}
	return jsmodule.New(jsmodule.Options{
		Mode:       e.cfg.Loader.Mode,
		Timeout:    e.cfg.Loader.Timeout,
		Toolchain:  e.toolchain,
		ConfigPath: e.denoConfig,
		Plugins:    plugins,
		Logger:     e.log,
	})
}

// esbuild returns the esbuild backend with the project's resolution plugins
func (e *hookEnv) esbuild() *bundler.EsbuildBundler {
	return bundler.NewEsbuildBundler(e.cfg.Esbuild, func(ctx context.Context, job bundler.Job) ([]api.Plugin, error) {
		return denoloader.NewPluginsForProject(ctx, job.ConfigPath, e.fetcher, e.log)
	})
}

// backends returns the bundler backends in configured order. The deno
// backend is skipped when deno is not installed.
func (e *hookEnv) backends() ([]bundler.Backend, error) {
	var out []bundler.Backend
	for _, name := range e.cfg.Build.Backends {
		switch name {
		case config.BackendDeno:
			if e.toolchain == nil {
				e.log.Debug().Msg("Skipping deno bundler, deno is not installed")
				continue
			}
			out = append(out, bundler.NewNativeBundler(e.toolchain, e.cfg.Build.NativeTimeout))
		case config.BackendEsbuild:
			out = append(out, e.esbuild())
		default:
			return nil, fmt.Errorf("unknown bundler backend: %s", name)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no usable bundler backend: %w", deno.ErrNotInstalled)
	}
	return out, nil
}

// graphBackends mirrors backends for module graph resolution
func (e *hookEnv) graphBackends() ([]bundler.GraphBackend, error) {
	var out []bundler.GraphBackend
	for _, name := range e.cfg.Build.GraphBackends {
		switch name {
		case config.BackendDeno:
			if e.toolchain == nil {
				continue
			}
			out = append(out, bundler.NewDenoInfoGrapher(e.toolchain))
		case config.BackendEsbuild:
			out = append(out, bundler.NewMetafileGrapher(e.esbuild()))
		default:
			return nil, fmt.Errorf("unknown graph backend: %s", name)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no usable module graph backend: %w", deno.ErrNotInstalled)
	}
	return out, nil
}

func marshalResponse(v any) (string, error) {
	switch r := v.(type) {
	case string:
		return r, nil
	case json.RawMessage:
		return string(r), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode response: %w", err)
	}
	return string(data), nil
}

func workingDir() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}
