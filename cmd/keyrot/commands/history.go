package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/systmms/keyrot/internal/config"
	rotationstorage "github.com/systmms/keyrot/internal/rotation/storage"
)

func NewHistoryCommand(cfg *config.Config) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [principal]",
		Short: "Show rotation history",
		Long: `Display past rotation attempts, newest first. Credential material is never
stored, only identifiers.

Examples:
  # Recent rotations across all principals
  keyrot history

  # History of one principal
  keyrot history ci-deployer --limit 20`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records := rotationstorage.NewFileStorage(rotationstorage.DefaultStorageDir())

			var entries []rotationstorage.HistoryEntry
			var err error
			if len(args) == 1 {
				entries, err = records.GetHistory(args[0], limit)
			} else {
				entries, err = records.GetAllHistory(limit)
			}
			if err != nil {
				return err
			}

			if len(entries) == 0 {
				fmt.Println("No rotation history yet")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintf(w, "TIMESTAMP\tPRINCIPAL\tACTION\tSTATUS\tNEW CREDENTIAL\tDURATION\tERROR\n")
			_, _ = fmt.Fprintf(w, "---------\t---------\t------\t------\t--------------\t--------\t-----\n")
			for _, entry := range entries {
				errText := entry.Error
				if errText == "" {
					errText = "-"
				}
				newCred := entry.NewCredentialID
				if newCred == "" {
					newCred = "-"
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					entry.Timestamp.Format("2006-01-02 15:04:05"),
					entry.Principal, entry.Action, entry.Status,
					newCred, entry.Duration.Round(time.Millisecond), errText)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 25, "Maximum number of entries to show (0 for all)")

	return cmd
}
