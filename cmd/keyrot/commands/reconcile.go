package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/systmms/keyrot/internal/config"
)

func NewReconcileCommand(cfg *config.Config) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Resume unfinished rotations",
		Long: `Scan the durable rotation records for principals whose last rotation did
not reach a terminal state, and drive each one forward: re-verify a
published credential, retire credentials whose grace period has elapsed,
or clean up an orphaned credential and retry.

Safe to run repeatedly; rotations that are already complete are skipped.

Examples:
  # Resume anything left unfinished by a crash
  keyrot reconcile

  # Also retire credentials still inside their grace period
  keyrot reconcile --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(cfg, runtimeOptions{force: force})
			if err != nil {
				return err
			}

			results := rt.reconciler.Sweep(context.Background())
			if len(results) == 0 {
				cfg.Logger.Info("Nothing to reconcile")
				return nil
			}
			return displayResults(cfg, results)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Retire old credentials immediately, ignoring the grace period")

	return cmd
}
