package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/stowage/pkg/types"
)

func newSearchCmd(flags *rootFlags) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "search [item-id]",
		Short: "Find an item and the steps to retrieve it",
		Long: `Search locates an item by id, or by name with --name, and prints the
retrieval steps needed to take it out. When several stowed items share the
name, the one with the fewest blocking items is chosen. Nothing is moved.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := types.SearchRequest{ItemName: name, UserID: flags.userID}
			if len(args) == 1 {
				req.ItemID = args[0]
			}
			return withSession(cmd, flags, false, func(s *session) error {
				resp, err := s.engine.Search(s.ctx, req)
				if err != nil {
					return engineError("search", err)
				}
				out := cmd.OutOrStdout()
				if flags.jsonMode {
					return printJSON(out, resp)
				}
				if !resp.Found {
					fmt.Fprintln(out, "Item not found in any container.")
					return nil
				}
				it := resp.Item
				fmt.Fprintf(out, "%s (%s) in %s [%s] at %s\n",
					it.ItemID, it.Name, it.ContainerID, it.Zone, formatPosition(it.Position))
				if len(resp.RetrievalSteps) > 0 {
					fmt.Fprintln(out, "Retrieval steps:")
					printRetrievalSteps(out, resp.RetrievalSteps)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "search by item name")
	return cmd
}

func newRetrieveCmd(flags *rootFlags) *cobra.Command {
	var (
		timestamp string
		dryRun    bool
	)
	cmd := &cobra.Command{
		Use:   "retrieve <item-id>",
		Short: "Take an item out of its container",
		Long: `Retrieve removes an item from its container, setting aside and putting
back every item in front of it, and counts one use of the item. With
--dry-run only the steps are printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, flags, !dryRun, func(s *session) error {
				out := cmd.OutOrStdout()
				if dryRun {
					steps, err := s.engine.PlanRetrieval(s.ctx, args[0])
					if err != nil {
						return engineError("plan retrieval", err)
					}
					if flags.jsonMode {
						return printJSON(out, types.RetrieveResponse{Success: true, Steps: steps})
					}
					printRetrievalSteps(out, steps)
					return nil
				}

				ts, err := s.timestamp(timestamp)
				if err != nil {
					return fmt.Errorf("--timestamp: %w", err)
				}
				resp, err := s.engine.Retrieve(s.ctx, types.RetrieveRequest{
					ItemID: args[0], UserID: flags.userID, Timestamp: ts,
				})
				if err != nil {
					return engineError("retrieve", err)
				}
				if flags.jsonMode {
					return printJSON(out, resp)
				}
				printRetrievalSteps(out, resp.Steps)
				fmt.Fprintf(out, "Retrieved %s\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&timestamp, "timestamp", "", "time of the retrieval (default: mission date)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the steps without retrieving")
	return cmd
}

func newPlaceCmd(flags *rootFlags) *cobra.Command {
	var (
		containerID string
		start       types.Coordinates
		timestamp   string
	)
	cmd := &cobra.Command{
		Use:   "place <item-id>",
		Short: "Put an item at a chosen position",
		Long: `Place stows an item at the given start corner of a container. The end
corner follows from the item's dimensions. An item that is already stowed
is moved.`,
		Example: `  stowage place 000001 --container contB --start 0,0,0`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, flags, true, func(s *session) error {
				it, err := s.engine.Item(args[0])
				if err != nil {
					return engineError("place", err)
				}
				ts, err := s.timestamp(timestamp)
				if err != nil {
					return fmt.Errorf("--timestamp: %w", err)
				}
				req := types.PlaceRequest{
					ItemID:      it.ItemID,
					UserID:      flags.userID,
					Timestamp:   ts,
					ContainerID: containerID,
					Position:    types.NewPosition(start, it.Extent()),
				}
				resp, err := s.engine.Place(s.ctx, req)
				if err != nil {
					return engineError("place", err)
				}
				out := cmd.OutOrStdout()
				if flags.jsonMode {
					return printJSON(out, resp)
				}
				fmt.Fprintf(out, "Placed %s in %s at %s\n", it.ItemID, containerID, formatPosition(req.Position))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&containerID, "container", "", "target container")
	coordinatesVar(cmd.Flags(), &start, "start", types.Coordinates{}, "start corner as width,depth,height")
	cmd.Flags().StringVar(&timestamp, "timestamp", "", "time of the placement (default: mission date)")
	cmd.MarkFlagRequired("container")
	return cmd
}
