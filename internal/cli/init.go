package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/stowage/internal/paths"
	"github.com/mesh-intelligence/stowage/internal/sqlite"
	"github.com/mesh-intelligence/stowage/pkg/types"
)

func newInitCmd(flags *rootFlags) *cobra.Command {
	var startDate string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize stowage storage",
		Long: `Create the configuration and data directories, write a default
config.yaml if none exists, and initialize the storage backend.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if startDate != "" {
				if _, err := types.ParseDate(startDate); err != nil {
					return fmt.Errorf("--start-date: %w", err)
				}
			}
			configDir, err := paths.ResolveConfigDir(flags.configDir)
			if err != nil {
				return sysError("resolve config dir: %w", err)
			}
			cfg := defaultConfig()
			cfg.DataDir = flags.dataDir
			cfg.StartDate = startDate
			created, err := writeConfigIfMissing(configDir, cfg)
			if err != nil {
				return sysError("write config: %w", err)
			}

			resolved, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			store := sqlite.NewBackend()
			if err := store.Attach(resolved.storeConfig()); err != nil {
				return sysError("initialize storage: %w", err)
			}
			if err := store.Detach(); err != nil {
				return sysError("finalize storage: %w", err)
			}

			out := cmd.OutOrStdout()
			if flags.jsonMode {
				return printJSON(out, map[string]any{
					"configDir":     resolved.configDir,
					"dataDir":       resolved.dataDir,
					"configCreated": created,
				})
			}
			fmt.Fprintln(out, "Stowage initialized successfully")
			fmt.Fprintf(out, "config: %s\ndata:   %s\n", resolved.configDir, resolved.dataDir)
			return nil
		},
	}
	cmd.Flags().StringVar(&startDate, "start-date", "", "mission date to start from (YYYY-MM-DD)")
	return cmd
}
