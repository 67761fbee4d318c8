package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/denohooks/denohooks/internal/doctor"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Report the deno, TypeScript and V8 versions",
	Long: `Respond with the versions of the deno toolchain. A warning is written
when deno is older than doctor.minimum_deno.`,
	FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
	RunE:               runHook(nil, runDoctor),
}

func runDoctor(ctx context.Context, env *hookEnv) (any, error) {
	return doctor.New(env.toolchain, env.cfg.Doctor.MinimumDeno).Check(ctx, env.proto), nil
}
