package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/systmms/keyrot/internal/config"
	dserrors "github.com/systmms/keyrot/internal/errors"
)

func NewRotateCommand(cfg *config.Config) *cobra.Command {
	var (
		all    bool
		dryRun bool
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "rotate [principal...]",
		Short: "Rotate credentials for one or more principals",
		Long: `Rotate credentials by minting a replacement, publishing it to the secret
store, verifying consumers can fetch it, and only then retiring the old
credentials.

A rotation interrupted by a crash resumes from its durable record: re-running
the command converges to the same end state without minting duplicates.

Examples:
  # Rotate a single principal
  keyrot rotate ci-deployer

  # Rotate several principals concurrently
  keyrot rotate ci-deployer billing-service

  # Rotate everything in keyrot.yaml
  keyrot rotate --all

  # Show the plan without changing anything
  keyrot rotate ci-deployer --dry-run

  # Retire old credentials immediately, ignoring the grace period
  keyrot rotate ci-deployer --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !all {
				return dserrors.UserError{
					Message:    "No principals specified",
					Suggestion: "Name principals as arguments, or pass --all to rotate everything",
				}
			}

			rt, err := buildRuntime(cfg, runtimeOptions{dryRun: dryRun, force: force})
			if err != nil {
				return err
			}

			principals := args
			if all {
				principals = nil // Handle rotates everything when empty
			}

			results := rt.handler.Handle(context.Background(), principals)
			return displayResults(cfg, results)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Rotate all configured principals")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be rotated without making changes")
	cmd.Flags().BoolVar(&force, "force", false, "Retire old credentials immediately, ignoring the grace period")

	return cmd
}
