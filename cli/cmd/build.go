package cmd

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/denohooks/denohooks/internal/build"
	"github.com/denohooks/denohooks/internal/bundler"
	"github.com/denohooks/denohooks/internal/config"
	"github.com/denohooks/denohooks/internal/manifest"
	"github.com/denohooks/denohooks/internal/validate"
)

var (
	buildSource string
	buildOutput string
	buildMode   string
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Validate and bundle every function",
	Long: `Assemble the manifest, validate every function's source file and bundle
each function into <output>/functions/<id>.js, then write the pruned
manifest to <output>/manifest.json.

The output directory is removed and recreated on every run.

Examples:
  denohooks build
  denohooks build --source ./app --output ./dist
  denohooks build --mode raw-copy`,
	FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
	RunE:               runHook(func(*cobra.Command) string { return buildSource }, runBuild),
}

// buildResponse is the build hook response
type buildResponse struct {
	BuildID string `json:"build_id"`
	*build.Result
}

func init() {
	buildCmd.Flags().StringVar(&buildSource, "source", ".", "project directory")
	buildCmd.Flags().StringVar(&buildOutput, "output", "", "output directory (default build.output_dir)")
	buildCmd.Flags().StringVar(&buildMode, "mode", "", "build mode: bundle or raw-copy (default build.mode)")
	_ = buildCmd.RegisterFlagCompletionFunc("mode", completeBuildModes)
	_ = buildCmd.RegisterFlagCompletionFunc("source", completeDirectories)
	_ = buildCmd.RegisterFlagCompletionFunc("output", completeDirectories)
}

func runBuild(ctx context.Context, env *hookEnv) (any, error) {
	buildID := env.withBuildID()

	mode := env.cfg.Build.Mode
	if buildMode != "" {
		mode = buildMode
		env.cfg.Build.Mode = mode
		if err := env.cfg.Build.Validate(); err != nil {
			return nil, err
		}
	}

	inspector, err := env.inspector(ctx)
	if err != nil {
		return nil, err
	}

	m, err := manifest.NewAssembler(inspector).Assemble(ctx, env.projectDir)
	if err != nil {
		return nil, err
	}

	backends, err := env.backends()
	if err != nil {
		return nil, err
	}

	opts := build.Options{
		Validator:    validate.New(inspector, env.log),
		Builder:      bundler.NewOrchestrator(env.proto, env.log, backends...),
		Mode:         mode,
		RawCopyFiles: env.cfg.Build.RawCopyFiles,
		ConfigPath:   env.denoConfig,
		Logger:       env.log,
	}
	if mode == config.BuildModeRawCopy {
		graphs, err := env.graphBackends()
		if err != nil {
			return nil, err
		}
		opts.Files = bundler.NewGraphChain(env.log, graphs...)
	}

	pipeline, err := build.New(opts)
	if err != nil {
		return nil, err
	}

	output := buildOutput
	if output == "" {
		output = env.cfg.Build.OutputDir
	}
	output, err = filepath.Abs(output)
	if err != nil {
		return nil, err
	}

	env.log.Debug().Str("project", env.projectDir).Str("output", output).Str("mode", mode).Msg("Starting build")
	result, err := pipeline.Run(ctx, env.projectDir, output, m)
	if err != nil {
		return nil, err
	}
	return buildResponse{BuildID: buildID, Result: result}, nil
}
