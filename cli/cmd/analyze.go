package cmd

import (
	"context"

	"github.com/spf13/cobra"

	clibundler "github.com/denohooks/denohooks/cli/bundler"
	"github.com/denohooks/denohooks/cli/output"
	"github.com/denohooks/denohooks/internal/manifest"
)

var (
	analyzeSource  string
	analyzeFormat  string
	analyzeDetails bool
	noHeaders      bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Show what contributes to each function bundle",
	Long: `Bundle every function with esbuild and report the size contributed by
each input file, the remote modules that were inlined and the imports left
for the deno runtime.

Examples:
  denohooks analyze
  denohooks analyze --details
  denohooks analyze -o json`,
	RunE: runHook(func(*cobra.Command) string { return analyzeSource }, runAnalyze),
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeSource, "source", ".", "project directory")
	analyzeCmd.Flags().StringVarP(&analyzeFormat, "output", "o", "table", "output format: table, json, yaml")
	analyzeCmd.Flags().BoolVar(&analyzeDetails, "details", false, "list every input file")
	analyzeCmd.Flags().BoolVar(&noHeaders, "no-headers", false, "hide table headers")
	_ = analyzeCmd.RegisterFlagCompletionFunc("output", completeOutputFormats)
	_ = analyzeCmd.RegisterFlagCompletionFunc("source", completeDirectories)
}

func runAnalyze(ctx context.Context, env *hookEnv) (any, error) {
	format, err := output.ParseFormat(analyzeFormat)
	if err != nil {
		return nil, err
	}

	inspector, err := env.inspector(ctx)
	if err != nil {
		return nil, err
	}
	m, err := manifest.NewAssembler(inspector).Assemble(ctx, env.projectDir)
	if err != nil {
		return nil, err
	}

	results, err := clibundler.NewAnalyzer(env.esbuild(), env.projectDir).AnalyzeManifest(ctx, m, env.denoConfig)
	if err != nil {
		return nil, err
	}

	formatter := output.NewFormatter(env.out, format, noHeaders, false)
	if format != output.FormatTable {
		return nil, formatter.Print(results)
	}

	for _, r := range results {
		clibundler.DisplayAnalysis(formatter.Writer, r, analyzeDetails)
	}
	formatter.PrintTable(clibundler.SummaryTable(results))
	return nil, nil
}
