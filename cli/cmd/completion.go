package cmd

import (
	"github.com/spf13/cobra"

	"github.com/denohooks/denohooks/internal/config"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for denohooks.

The parent CLI calls the hooks itself; completions help when running a
hook by hand while debugging a project, for example:

  $ denohooks build --mode <TAB>         bundle  raw-copy
  $ denohooks get-trigger --source <TAB> offers .ts, .js, .json and .yaml files
  $ denohooks analyze -o <TAB>           table  json  yaml

Bash:
  $ source <(denohooks completion bash)

Zsh:
  $ denohooks completion zsh > "${fpath[1]}/_denohooks"

Fish:
  $ denohooks completion fish > ~/.config/fish/completions/denohooks.fish

PowerShell:
  PS> denohooks completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletionV2(cmd.OutOrStdout(), true)
		case "zsh":
			return cmd.Root().GenZshCompletion(cmd.OutOrStdout())
		case "fish":
			return cmd.Root().GenFishCompletion(cmd.OutOrStdout(), true)
		default:
			return cmd.Root().GenPowerShellCompletionWithDesc(cmd.OutOrStdout())
		}
	},
}

// moduleExtensions are the files a hook can load a definition from
var moduleExtensions = []string{"ts", "js", "tsx", "jsx", "json", "yaml", "yml"}

func completeBuildModes(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return []string{
		config.BuildModeBundle + "\tone bundled file per function",
		config.BuildModeRawCopy + "\tunbundled sources plus config and lock files",
	}, cobra.ShellCompDirectiveNoFileComp
}

func completeOutputFormats(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return []string{"table", "json", "yaml"}, cobra.ShellCompDirectiveNoFileComp
}

func completeDefinitionFiles(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return moduleExtensions, cobra.ShellCompDirectiveFilterFileExt
}

func completeDirectories(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return nil, cobra.ShellCompDirectiveFilterDirs
}
