package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/denohooks/denohooks/internal/hooks"
)

var (
	devDomain   string
	ignoreCerts string
)

var getHooksCmd = &cobra.Command{
	Use:   "get-hooks",
	Short: "Print the hook table for the parent CLI",
	Long: `Respond with the runtime, the command line of every hook and the
protocol and file watching settings the parent CLI should use.`,
	FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
	RunE:               runHook(nil, runGetHooks),
}

func init() {
	getHooksCmd.Flags().StringVar(&devDomain, hooks.DevDomainFlag, "", "development domain passed to the start hook")
	getHooksCmd.Flags().StringVar(&ignoreCerts, hooks.IgnoreCertErrorsFlag, "", "alias of --"+hooks.DevDomainFlag)
}

func runGetHooks(_ context.Context, env *hookEnv) (any, error) {
	exe := env.cfg.Hooks.Executable
	if exe == "" {
		path, err := os.Executable()
		if err != nil {
			return nil, err
		}
		exe = path
	}

	return hooks.Build(hooks.Options{
		Executable:     exe,
		RuntimeVersion: env.cfg.Hooks.RuntimeVersion,
		DevDomain:      devDomain,
		IgnoreCerts:    ignoreCerts,
	}), nil
}
