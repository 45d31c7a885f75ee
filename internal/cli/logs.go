package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/stowage/pkg/types"
)

func newLogsCmd(flags *rootFlags) *cobra.Command {
	var (
		from, to   string
		itemID     string
		userID     string
		actionType string
		export     string
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Query the audit log",
		Long: `Logs lists audit entries for committed placements, rearrangements,
retrievals, manual placements, disposals and simulations, oldest first.
With --export the matching entries are written to a JSONL file instead.`,
		Example: `  stowage logs --item 000001
  stowage logs --from 2025-05-01 --to 2025-05-31 --action retrieval
  stowage logs --export audit.jsonl`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := types.LogFilter{ItemID: itemID, UserID: userID, ActionType: actionType}
			if from != "" {
				d, err := types.ParseDate(from)
				if err != nil {
					return fmt.Errorf("--from: %w", err)
				}
				filter.From = d.Time
			}
			if to != "" {
				d, err := types.ParseDate(to)
				if err != nil {
					return fmt.Errorf("--to: %w", err)
				}
				filter.To = d.Time
			}

			return withSession(cmd, flags, false, func(s *session) error {
				out := cmd.OutOrStdout()
				if export != "" {
					n, err := s.store.ExportLogs(s.ctx, export, filter)
					if err != nil {
						return sysError("export logs: %w", err)
					}
					fmt.Fprintf(out, "Exported %d log entries to %s\n", n, export)
					return nil
				}

				entries, err := s.store.Logs(s.ctx, filter)
				if err != nil {
					return sysError("query logs: %w", err)
				}
				if flags.jsonMode {
					return printJSON(out, entries)
				}
				if len(entries) == 0 {
					fmt.Fprintln(out, "No log entries found.")
					return nil
				}
				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					user := e.UserID
					if user == "" {
						user = "-"
					}
					item := e.ItemID
					if item == "" {
						item = "-"
					}
					rows = append(rows, []string{
						e.Timestamp.UTC().Format("2006-01-02 15:04:05"), e.ActionType, item, user,
					})
				}
				printTable(out, []string{"TIME", "ACTION", "ITEM", "USER"}, rows)
				fmt.Fprintf(out, "Total: %d entries\n", len(entries))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "earliest timestamp (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(&to, "to", "", "latest timestamp (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(&itemID, "item", "", "only entries for this item")
	cmd.Flags().StringVar(&userID, "user-id", "", "only entries by this user")
	cmd.Flags().StringVar(&actionType, "action", "", "only entries of this action type")
	cmd.Flags().StringVar(&export, "export", "", "write matching entries to this JSONL file")
	return cmd
}
