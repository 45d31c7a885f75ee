package cli

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/stowage/pkg/types"
)

func newContainersCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "containers",
		Aliases: []string{"container"},
		Short:   "Register and list storage containers",
	}
	cmd.AddCommand(newContainersAddCmd(flags), newContainersImportCmd(flags), newContainersListCmd(flags))
	return cmd
}

func newContainersAddCmd(flags *rootFlags) *cobra.Command {
	var c types.Container
	cmd := &cobra.Command{
		Use:   "add <container-id>",
		Short: "Register one container",
		Example: `  stowage containers add contA --zone "Crew Quarters" --width 100 --depth 85 --height 200`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c.ContainerID = args[0]
			return registerContainers(cmd, flags, []types.Container{c})
		},
	}
	cmd.Flags().StringVar(&c.Zone, "zone", "", "zone the container belongs to")
	cmd.Flags().Float64Var(&c.Width, "width", 0, "width (cm)")
	cmd.Flags().Float64Var(&c.Depth, "depth", 0, "depth (cm)")
	cmd.Flags().Float64Var(&c.Height, "height", 0, "height (cm)")
	for _, name := range []string{"width", "depth", "height"} {
		cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newContainersImportCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Register containers from a CSV or JSON file",
		Long: `Import registers every container listed in a CSV file with the columns
Zone, Container ID, Width, Depth, Height, or in a JSON array of containers.
Use "-" to read CSV from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var containers []types.Container
			if strings.EqualFold(filepath.Ext(args[0]), ".json") {
				if err := readJSONFile(cmd, args[0], &containers); err != nil {
					return err
				}
			} else {
				f, err := openManifest(cmd.InOrStdin(), args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				if containers, err = parseContainersCSV(f); err != nil {
					return fmt.Errorf("import %s: %w", args[0], err)
				}
			}
			return registerContainers(cmd, flags, containers)
		},
	}
}

func registerContainers(cmd *cobra.Command, flags *rootFlags, containers []types.Container) error {
	return withSession(cmd, flags, true, func(s *session) error {
		if err := s.engine.RegisterContainers(s.ctx, containers); err != nil {
			return engineError("register containers", err)
		}
		if flags.jsonMode {
			return printJSON(cmd.OutOrStdout(), containers)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Registered %d container(s)\n", len(containers))
		return nil
	})
}

func newContainersListCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List containers with their occupancy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, flags, false, func(s *session) error {
				usage := s.engine.Usage(s.ctx)
				out := cmd.OutOrStdout()
				if flags.jsonMode {
					return printJSON(out, usage)
				}
				if len(usage) == 0 {
					fmt.Fprintln(out, "No containers found.")
					return nil
				}
				rows := make([][]string, 0, len(usage))
				for _, u := range usage {
					rows = append(rows, []string{
						u.ContainerID,
						u.Zone,
						formatDims(u.Width, u.Depth, u.Height),
						strconv.Itoa(len(u.Items)),
						fmt.Sprintf("%d/%d", u.UsedCells, u.TotalCells),
						fmt.Sprintf("%.1f%%", 100*u.Utilization()),
					})
				}
				printTable(out, []string{"ID", "ZONE", "SIZE", "ITEMS", "CELLS", "USED"}, rows)
				fmt.Fprintf(out, "Total: %d container(s)\n", len(usage))
				return nil
			})
		},
	}
}
