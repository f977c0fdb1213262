package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/systmms/keyrot/internal/config"
)

// NewCompletionCommand creates the completion command for generating shell completions.
func NewCompletionCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for keyrot.

To load completions:

Bash:
  $ source <(keyrot completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ keyrot completion bash > /etc/bash_completion.d/keyrot
  # macOS:
  $ keyrot completion bash > $(brew --prefix)/etc/bash_completion.d/keyrot

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ keyrot completion zsh > "${fpath[1]}/_keyrot"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ keyrot completion fish | source

  # To load completions for each session, execute once:
  $ keyrot completion fish > ~/.config/fish/completions/keyrot.fish

PowerShell:
  PS> keyrot completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> keyrot completion powershell > keyrot.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			}
			return nil
		},
	}

	return cmd
}
