package cli

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/stowage/pkg/types"
)

func newItemsCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "items",
		Aliases: []string{"item"},
		Short:   "Register, list and inspect cargo items",
	}
	cmd.AddCommand(
		newItemsAddCmd(flags),
		newItemsImportCmd(flags),
		newItemsListCmd(flags),
		newItemsShowCmd(flags),
	)
	return cmd
}

func newItemsAddCmd(flags *rootFlags) *cobra.Command {
	var (
		it         types.Item
		expiry     string
		usageLimit int
	)
	cmd := &cobra.Command{
		Use:   "add <item-id>",
		Short: "Register one item without placing it",
		Example: `  stowage items add 000001 --name "Food Packet" --width 10 --depth 10 --height 20 \
    --mass 5 --priority 80 --expiry 2025-05-20 --usage-limit 30 --zone "Crew Quarters"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			it.ItemID = args[0]
			if expiry != "" {
				d, err := types.ParseDate(expiry)
				if err != nil {
					return fmt.Errorf("--expiry: %w", err)
				}
				it.ExpiryDate = types.DatePtr(d)
			}
			if cmd.Flags().Changed("usage-limit") {
				it.UsageLimit = types.IntPtr(usageLimit)
			}
			return registerItems(cmd, flags, []types.Item{it})
		},
	}
	f := cmd.Flags()
	f.StringVar(&it.Name, "name", "", "item name")
	f.Float64Var(&it.Width, "width", 0, "width (cm)")
	f.Float64Var(&it.Depth, "depth", 0, "depth (cm)")
	f.Float64Var(&it.Height, "height", 0, "height (cm)")
	f.Float64Var(&it.Mass, "mass", 0, "mass (kg)")
	f.IntVar(&it.Priority, "priority", 0, "priority (1-100, higher is more important)")
	f.StringVar(&expiry, "expiry", "", "expiry date (YYYY-MM-DD)")
	f.IntVar(&usageLimit, "usage-limit", 0, "number of uses before the item is waste")
	f.StringVar(&it.PreferredZone, "zone", "", "preferred zone")
	for _, name := range []string{"name", "width", "depth", "height"} {
		cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newItemsImportCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Register items from a CSV or JSON file",
		Long: `Import registers every item listed in a CSV manifest with the columns
Item ID, Name, Width, Depth, Height, Mass, Priority, Expiry Date, Usage Limit,
Preferred Zone, or in a JSON array of items. Items are registered unstowed;
run "stowage placement" to place them. Use "-" to read CSV from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var items []types.Item
			if strings.EqualFold(filepath.Ext(args[0]), ".json") {
				if err := readJSONFile(cmd, args[0], &items); err != nil {
					return err
				}
			} else {
				f, err := openManifest(cmd.InOrStdin(), args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				if items, err = parseItemsCSV(f); err != nil {
					return fmt.Errorf("import %s: %w", args[0], err)
				}
			}
			return registerItems(cmd, flags, items)
		},
	}
}

func registerItems(cmd *cobra.Command, flags *rootFlags, items []types.Item) error {
	return withSession(cmd, flags, true, func(s *session) error {
		if err := s.engine.RegisterItems(s.ctx, items); err != nil {
			return engineError("register items", err)
		}
		if flags.jsonMode {
			return printJSON(cmd.OutOrStdout(), items)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Registered %d item(s)\n", len(items))
		return nil
	})
}

// itemView is an item with its current location.
type itemView struct {
	types.Item
	ContainerID string          `json:"containerId,omitempty"`
	Position    *types.Position `json:"position,omitempty"`
	WasteReason string          `json:"wasteReason,omitempty"`
}

func (s *session) itemView(it types.Item) itemView {
	v := itemView{Item: it, WasteReason: types.Classify(it, s.date)}
	if v.WasteReason == "" && it.Waste {
		v.WasteReason = types.ReasonExpired
		if it.IsDepleted() {
			v.WasteReason = types.ReasonOutOfUses
		}
	}
	if p, err := s.engine.Locate(it.ItemID); err == nil {
		v.ContainerID = p.ContainerID
		pos := p.Position
		v.Position = &pos
	}
	return v
}

func newItemsListCmd(flags *rootFlags) *cobra.Command {
	var (
		container string
		wasteOnly bool
		unstowed  bool
		all       bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, flags, false, func(s *session) error {
				var views []itemView
				for _, it := range s.engine.Items() {
					if it.Disposed && !all {
						continue
					}
					v := s.itemView(it)
					switch {
					case container != "" && v.ContainerID != container:
						continue
					case wasteOnly && v.WasteReason == "":
						continue
					case unstowed && v.ContainerID != "":
						continue
					}
					views = append(views, v)
				}

				out := cmd.OutOrStdout()
				if flags.jsonMode {
					if views == nil {
						views = []itemView{}
					}
					return printJSON(out, views)
				}
				if len(views) == 0 {
					fmt.Fprintln(out, "No items found.")
					return nil
				}
				rows := make([][]string, 0, len(views))
				for _, v := range views {
					where := "-"
					if v.Position != nil {
						where = v.ContainerID + " " + formatPosition(*v.Position)
					}
					state := v.WasteReason
					if v.Disposed {
						state = "Disposed"
					}
					rows = append(rows, []string{
						v.ItemID, v.Name, strconv.Itoa(v.Priority),
						formatDims(v.Width, v.Depth, v.Height), where, state,
					})
				}
				printTable(out, []string{"ID", "NAME", "PRIORITY", "SIZE", "LOCATION", "WASTE"}, rows)
				fmt.Fprintf(out, "Total: %d item(s)\n", len(views))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&container, "container", "", "only items stowed in this container")
	cmd.Flags().BoolVar(&wasteOnly, "waste", false, "only items classified as waste")
	cmd.Flags().BoolVar(&unstowed, "unstowed", false, "only items not stowed in any container")
	cmd.Flags().BoolVar(&all, "all", false, "include disposed items")
	return cmd
}

func newItemsShowCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <item-id>",
		Short: "Show one item and where it is stowed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, flags, false, func(s *session) error {
				it, err := s.engine.Item(args[0])
				if err != nil {
					return engineError("show", err)
				}
				v := s.itemView(it)
				out := cmd.OutOrStdout()
				if flags.jsonMode {
					return printJSON(out, v)
				}
				fmt.Fprintf(out, "%s  %s\n", v.ItemID, v.Name)
				fmt.Fprintf(out, "  size:      %s\n", formatDims(v.Width, v.Depth, v.Height))
				fmt.Fprintf(out, "  mass:      %s\n", formatFloat(v.Mass))
				fmt.Fprintf(out, "  priority:  %d\n", v.Priority)
				if v.ExpiryDate != nil {
					fmt.Fprintf(out, "  expiry:    %s\n", v.ExpiryDate.Format(types.DateLayout))
				}
				if rem := v.RemainingUses(); rem != nil {
					fmt.Fprintf(out, "  uses left: %d\n", *rem)
				}
				switch {
				case v.Disposed:
					fmt.Fprintln(out, "  location:  disposed")
				case v.Position != nil:
					fmt.Fprintf(out, "  location:  %s %s\n", v.ContainerID, formatPosition(*v.Position))
				default:
					fmt.Fprintln(out, "  location:  not stowed")
				}
				if v.WasteReason != "" {
					fmt.Fprintf(out, "  waste:     %s\n", v.WasteReason)
				}
				return nil
			})
		},
	}
}
