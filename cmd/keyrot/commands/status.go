package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/systmms/keyrot/internal/config"
	rotationstorage "github.com/systmms/keyrot/internal/rotation/storage"
)

func NewStatusCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [principal]",
		Short: "Show rotation status for principals",
		Long: `Display the last rotation outcome, counts, and any pending retirement for
configured principals.

Examples:
  # Status of every principal keyrot has rotated
  keyrot status

  # Status of one principal
  keyrot status ci-deployer`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records := rotationstorage.NewFileStorage(rotationstorage.DefaultStorageDir())

			var statuses []rotationstorage.RotationStatus
			if len(args) == 1 {
				status, err := records.GetStatus(args[0])
				if err != nil {
					return err
				}
				statuses = append(statuses, *status)
			} else {
				var err error
				statuses, err = records.ListStatuses()
				if err != nil {
					return err
				}
			}

			if len(statuses) == 0 {
				fmt.Println("No rotations recorded yet")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintf(w, "PRINCIPAL\tSTATUS\tLAST ROTATION\tROTATIONS\tFAILURES\tLAST ERROR\n")
			_, _ = fmt.Fprintf(w, "---------\t------\t-------------\t---------\t--------\t----------\n")
			for _, status := range statuses {
				lastRotation := "never"
				if !status.LastRotation.IsZero() {
					lastRotation = status.LastRotation.Format("2006-01-02 15:04:05")
				}
				lastError := status.LastError
				if lastError == "" {
					lastError = "-"
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
					status.Principal, status.Status, lastRotation,
					status.RotationCount, status.FailureCount, lastError)
			}
			return w.Flush()
		},
	}

	return cmd
}
