package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/denohooks/denohooks/internal/trigger"
)

var triggerSource string

var getTriggerCmd = &cobra.Command{
	Use:   "get-trigger",
	Short: "Print a trigger definition",
	Long: `Load the trigger definition named by --source and respond with it as
JSON. JSON and YAML files are read as-is; TypeScript and JavaScript modules
must default export an object.

Examples:
  denohooks get-trigger --source triggers/shortcut.ts
  denohooks get-trigger --source triggers/schedule.json`,
	FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
	RunE:               runHook(nil, runGetTrigger),
}

func init() {
	getTriggerCmd.Flags().StringVar(&triggerSource, "source", "", "trigger definition file")
	_ = getTriggerCmd.RegisterFlagCompletionFunc("source", completeDefinitionFiles)
}

func runGetTrigger(ctx context.Context, env *hookEnv) (any, error) {
	inspector, err := env.inspector(ctx)
	if err != nil {
		return nil, err
	}
	return trigger.NewLoader(inspector, workingDir()).Load(ctx, triggerSource)
}
