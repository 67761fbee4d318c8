// Package cmd provides the Cobra commands for the denohooks CLI.
package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"

	// Global flags
	cfgFile      string
	debug        bool
	protocolName string
	boundary     string
	manifestOnly bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "denohooks",
	Short: "denohooks - build hooks for Deno function projects",
	Long: `denohooks implements the hooks a parent CLI runs against a Deno
functions project: assembling the manifest, validating and bundling each
function, loading trigger definitions and checking the environment.

Get started:
  denohooks get-hooks     Print the hook table for the parent CLI
  denohooks build         Validate and bundle every function into dist/
  denohooks --help        Show available commands`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI. Hook failures have already been reported through
// the host protocol when ErrReported is returned.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// ErrReported marks errors that were already delivered to the parent
var ErrReported = errors.New("hook failed")

func init() {
	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is denohooks.yaml in the project directory)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"enable debug output")
	rootCmd.PersistentFlags().StringVar(&protocolName, "protocol", "",
		"protocol the parent CLI speaks (message-boundaries)")
	rootCmd.PersistentFlags().StringVar(&boundary, "boundary", "",
		"boundary written before the response when using message-boundaries")
	rootCmd.PersistentFlags().BoolVar(&manifestOnly, "manifest", false,
		"suppress diagnostics so only the response is written")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(completionCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(getManifestCmd)
	rootCmd.AddCommand(getTriggerCmd)
	rootCmd.AddCommand(getHooksCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(analyzeCmd)
}
