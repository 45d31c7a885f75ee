package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/stowage/pkg/types"
)

// errNothingToPlace reports a placement run with no items.
var errNothingToPlace = errors.New("no items to place")

func newPlacementCmd(flags *rootFlags) *cobra.Command {
	var (
		file       string
		containers []string
	)
	cmd := &cobra.Command{
		Use:   "placement",
		Short: "Place items into containers",
		Long: `Placement stows a batch of items. With --file the batch is read from a
JSON placement request ({"items": [...], "containers": [...]}); otherwise every
registered item that is not stowed, not waste and not disposed is placed.

Items are placed in descending priority. When an item has no free space,
lower-priority items may be moved to make room; the moves are listed as
rearrangement steps.`,
		Example: `  stowage placement
  stowage placement --container contA --container contB
  stowage placement --file request.json --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, flags, true, func(s *session) error {
				req, err := placementRequest(cmd, s, file, containers)
				if err != nil {
					return err
				}
				resp, err := s.engine.PlaceItems(s.ctx, req)
				if err != nil {
					return engineError("placement", err)
				}
				if flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), resp)
				}
				printPlacement(cmd.OutOrStdout(), resp)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", `JSON placement request ("-" for stdin)`)
	cmd.Flags().StringSliceVar(&containers, "container", nil, "restrict placement to these registered containers")
	return cmd
}

func placementRequest(cmd *cobra.Command, s *session, file string, containerIDs []string) (types.PlacementRequest, error) {
	var req types.PlacementRequest
	if file != "" {
		if err := readJSONFile(cmd, file, &req); err != nil {
			return req, err
		}
	} else {
		for _, it := range s.engine.Items() {
			if it.Disposed || it.Waste || types.IsWaste(it, s.date) {
				continue
			}
			if _, err := s.engine.Locate(it.ItemID); errors.Is(err, types.ErrItemNotStowed) {
				req.Items = append(req.Items, it)
			}
		}
	}
	if len(req.Items) == 0 {
		return req, errNothingToPlace
	}

	if len(containerIDs) > 0 {
		known := make(map[string]types.Container)
		for _, c := range s.engine.Containers() {
			known[c.ContainerID] = c
		}
		for _, id := range containerIDs {
			c, ok := known[id]
			if !ok {
				return req, fmt.Errorf("container %q: %w", id, types.ErrContainerNotFound)
			}
			req.Containers = append(req.Containers, c)
		}
	}
	return req, nil
}

func printPlacement(w io.Writer, resp types.PlacementResponse) {
	if len(resp.Placements) > 0 {
		rows := make([][]string, 0, len(resp.Placements))
		for _, p := range resp.Placements {
			rows = append(rows, []string{p.ItemID, p.ContainerID, formatPosition(p.Position)})
		}
		printTable(w, []string{"ITEM", "CONTAINER", "POSITION"}, rows)
	}
	if len(resp.Rearrangements) > 0 {
		fmt.Fprintln(w, "Rearrangements:")
		for _, st := range resp.Rearrangements {
			line := "  " + strconv.Itoa(st.Step) + ". " + st.Action + " " + st.ItemID
			if st.FromContainer != "" {
				line += " from " + st.FromContainer
			}
			if st.ToContainer != "" {
				line += " to " + st.ToContainer
				if st.ToPosition != nil {
					line += " " + formatPosition(*st.ToPosition)
				}
			}
			fmt.Fprintln(w, line)
		}
	}
	for _, u := range resp.Unplaced {
		fmt.Fprintf(w, "Unplaced %s: %s\n", u.ItemID, u.Reason)
	}
	fmt.Fprintf(w, "Placed %d item(s), %d unplaced\n", len(resp.Placements), len(resp.Unplaced))
}
