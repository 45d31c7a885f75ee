package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the stowage release version. Release builds override it with -ldflags.
var Version = "0.3.0"

const modulePath = "github.com/mesh-intelligence/stowage"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the stowage version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "stowage v%s\nmodule: %s\n", Version, modulePath)
			return nil
		},
	}
}
