package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/stowage/pkg/types"
)

func newWasteCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "waste",
		Short: "Identify waste and plan its return",
	}
	cmd.AddCommand(
		newWasteIdentifyCmd(flags),
		newWasteReturnPlanCmd(flags),
		newWasteCompleteUndockingCmd(flags),
	)
	return cmd
}

func newWasteIdentifyCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "identify",
		Short: "List expired and used-up items at the mission date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, flags, false, func(s *session) error {
				resp := s.engine.IdentifyWaste(s.ctx, s.date)
				out := cmd.OutOrStdout()
				if flags.jsonMode {
					return printJSON(out, resp)
				}
				if len(resp.WasteItems) == 0 {
					fmt.Fprintln(out, "No waste items.")
					return nil
				}
				rows := make([][]string, 0, len(resp.WasteItems))
				for _, w := range resp.WasteItems {
					where := "-"
					if w.Position != nil {
						where = w.ContainerID + " " + formatPosition(*w.Position)
					}
					rows = append(rows, []string{w.ItemID, w.Name, w.Reason, where})
				}
				printTable(out, []string{"ID", "NAME", "REASON", "LOCATION"}, rows)
				fmt.Fprintf(out, "Total: %d waste item(s)\n", len(resp.WasteItems))
				return nil
			})
		},
	}
}

func newWasteReturnPlanCmd(flags *rootFlags) *cobra.Command {
	var (
		containerID string
		date        string
		maxWeight   float64
		apply       bool
	)
	cmd := &cobra.Command{
		Use:   "return-plan",
		Short: "Plan moving waste into the undocking container",
		Long: `Return-plan selects waste items, lowest priority and soonest expiry
first, until the next item would exceed --max-weight, and plans moving each
into the undocking container. With --apply the moves are carried out.`,
		Example: `  stowage waste return-plan --container undock1 --max-weight 100
  stowage waste return-plan --container undock1 --max-weight 100 --apply`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, flags, apply, func(s *session) error {
				req := types.ReturnPlanRequest{UndockingContainerID: containerID, MaxWeight: maxWeight}
				var err error
				if req.UndockingDate, err = s.timestamp(date); err != nil {
					return fmt.Errorf("--date: %w", err)
				}
				plan := s.engine.PlanReturn
				if apply {
					plan = s.engine.ApplyReturn
				}
				resp, err := plan(s.ctx, req)
				if err != nil {
					return engineError("return plan", err)
				}
				if flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), resp)
				}
				printReturnPlan(cmd.OutOrStdout(), resp, apply)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&containerID, "container", "", "undocking container")
	cmd.Flags().StringVar(&date, "date", "", "undocking date (default: mission date)")
	cmd.Flags().Float64Var(&maxWeight, "max-weight", 0, "maximum total mass of returned items")
	cmd.Flags().BoolVar(&apply, "apply", false, "move the items into the undocking container")
	cmd.MarkFlagRequired("container")
	cmd.MarkFlagRequired("max-weight")
	return cmd
}

func printReturnPlan(w io.Writer, resp types.ReturnPlanResponse, applied bool) {
	if len(resp.RetrievalSteps) > 0 {
		fmt.Fprintln(w, "Retrieval steps:")
		printRetrievalSteps(w, resp.RetrievalSteps)
	}
	if len(resp.ReturnPlan) > 0 {
		fmt.Fprintln(w, "Return plan:")
		for _, st := range resp.ReturnPlan {
			fmt.Fprintf(w, "  %d. %s (%s) %s -> %s\n", st.Step, st.ItemID, st.ItemName, st.FromContainer, st.ToContainer)
		}
	}
	m := resp.ReturnManifest
	for _, x := range m.ExcludedItems {
		fmt.Fprintf(w, "Excluded %s (%s): %s\n", x.ItemID, x.Name, x.Reason)
	}
	verb := "Planned"
	if applied {
		verb = "Moved"
	}
	fmt.Fprintf(w, "%s %d item(s) into %s: volume %s, weight %s\n",
		verb, len(m.ReturnItems), m.UndockingContainerID, formatFloat(m.TotalVolume), formatFloat(m.TotalWeight))
}

func newWasteCompleteUndockingCmd(flags *rootFlags) *cobra.Command {
	var (
		containerID string
		timestamp   string
	)
	cmd := &cobra.Command{
		Use:   "complete-undocking",
		Short: "Dispose of everything in the undocking container",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, flags, true, func(s *session) error {
				ts, err := s.timestamp(timestamp)
				if err != nil {
					return fmt.Errorf("--timestamp: %w", err)
				}
				resp, err := s.engine.CompleteUndocking(s.ctx, types.CompleteUndockingRequest{
					UndockingContainerID: containerID, Timestamp: ts,
				})
				if err != nil {
					return engineError("complete undocking", err)
				}
				out := cmd.OutOrStdout()
				if flags.jsonMode {
					return printJSON(out, resp)
				}
				fmt.Fprintf(out, "Removed %d item(s) with %s\n", resp.ItemsRemoved, containerID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&containerID, "container", "", "undocking container")
	cmd.Flags().StringVar(&timestamp, "timestamp", "", "time of undocking (default: mission date)")
	cmd.MarkFlagRequired("container")
	return cmd
}
