package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/denohooks/denohooks/internal/manifest"
)

var getManifestCmd = &cobra.Command{
	Use:   "get-manifest",
	Short: "Print the assembled manifest",
	Long: `Merge manifest.json with the default export of manifest.ts (or
manifest.js) from the current directory, drop tooling-only fields and
respond with the result as JSON.`,
	FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
	RunE:               runHook(nil, runGetManifest),
}

func runGetManifest(ctx context.Context, env *hookEnv) (any, error) {
	inspector, err := env.inspector(ctx)
	if err != nil {
		return nil, err
	}

	m, err := manifest.NewAssembler(inspector).Assemble(ctx, env.projectDir)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(manifest.Prune(m))
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	return json.RawMessage(data), nil
}
