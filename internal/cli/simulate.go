package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/stowage/pkg/types"
)

func newSimulateCmd(flags *rootFlags) *cobra.Command {
	var (
		days     int
		to       string
		useIDs   []string
		useNames []string
		file     string
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Advance the mission date",
		Long: `Simulate advances the mission date by --days or up to --to, using the
listed items once per day. Items that expire or run out of uses along the way
become waste. The new mission date is saved.`,
		Example: `  stowage simulate --days 1 --use 000001 --use-name "Water Bottle"
  stowage simulate --to 2025-06-01
  stowage simulate --file simulate.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var req types.SimulateRequest
			if file != "" {
				if err := readJSONFile(cmd, file, &req); err != nil {
					return err
				}
			}
			if days > 0 {
				req.NumOfDays = days
			}
			if to != "" {
				d, err := types.ParseDate(to)
				if err != nil {
					return fmt.Errorf("--to: %w", err)
				}
				req.ToTimestamp = types.DatePtr(d)
			}
			for _, id := range useIDs {
				req.ItemsToBeUsedPerDay = append(req.ItemsToBeUsedPerDay, types.ItemRef{ItemID: id})
			}
			for _, name := range useNames {
				req.ItemsToBeUsedPerDay = append(req.ItemsToBeUsedPerDay, types.ItemRef{Name: name})
			}

			return withSession(cmd, flags, true, func(s *session) error {
				resp, err := s.engine.Simulate(s.ctx, s.date, req)
				if err != nil {
					return engineError("simulate", err)
				}
				s.date = resp.NewDate

				out := cmd.OutOrStdout()
				if flags.jsonMode {
					return printJSON(out, resp)
				}
				fmt.Fprintf(out, "Mission date: %s\n", resp.NewDate.Format(types.DateLayout))
				for _, u := range resp.Changes.ItemsUsed {
					left := "unlimited"
					if u.RemainingUses != nil {
						left = fmt.Sprint(*u.RemainingUses)
					}
					fmt.Fprintf(out, "Used %s (%s): %s use(s) left\n", u.ItemID, u.Name, left)
				}
				for _, r := range resp.Changes.ItemsDepletedToday {
					fmt.Fprintf(out, "Out of uses: %s (%s)\n", r.ItemID, r.Name)
				}
				for _, r := range resp.Changes.ItemsExpired {
					fmt.Fprintf(out, "Expired: %s (%s)\n", r.ItemID, r.Name)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "number of days to advance")
	cmd.Flags().StringVar(&to, "to", "", "advance up to this date")
	cmd.Flags().StringSliceVar(&useIDs, "use", nil, "item id used once per day")
	cmd.Flags().StringArrayVar(&useNames, "use-name", nil, "item name used once per day")
	cmd.Flags().StringVarP(&file, "file", "f", "", `JSON simulate request ("-" for stdin)`)
	cmd.MarkFlagsMutuallyExclusive("days", "to")
	return cmd
}
