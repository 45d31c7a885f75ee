// Package cli implements the stowage command-line interface: a cobra
// command tree that loads the persisted state into an engine, runs one
// operation, and saves the state back.
package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/stowage/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool
	userID    string
	logLevel  string
}

// exitError carries the exit code for a failed command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// sysError marks err as a system failure (storage, filesystem).
func sysError(format string, args ...any) error {
	return &exitError{code: exitSysError, err: fmt.Errorf(format, args...)}
}

// exitCode maps a command error to a process exit code. Errors not marked
// as system failures are user errors.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitUserError
}

// NewRootCmd creates the top-level "stowage" command with global flags and
// all subcommands registered.
func NewRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:   "stowage",
		Short: "Cargo stowage planning for a space station",
		Long: `Stowage places cargo items into storage containers, plans retrievals
and rearrangements, simulates mission days, and plans waste returns.`,
		Version: Version,
		// Do not print usage on errors returned by subcommands.
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configDir, "config-dir", "", "configuration directory (default: $XDG_CONFIG_HOME/stowage)")
	pf.StringVar(&flags.dataDir, "data-dir", "", "data directory (default: $(CWD)/.stowage-db)")
	pf.BoolVar(&flags.jsonMode, "json", false, "output in JSON format")
	pf.StringVar(&flags.userID, "user", "", "user id recorded in the audit log")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(flags),
		newContainersCmd(flags),
		newItemsCmd(flags),
		newPlacementCmd(flags),
		newSearchCmd(flags),
		newRetrieveCmd(flags),
		newPlaceCmd(flags),
		newWasteCmd(flags),
		newSimulateCmd(flags),
		newLogsCmd(flags),
		newMetricsCmd(flags),
	)
	return root
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	root := NewRootCmd()
	err := root.Execute()
	if err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "stowage:", err)
	}
	return exitCode(err)
}

// userErrors are engine sentinels that describe a bad request rather than
// a broken installation.
var userErrors = []error{
	types.ErrInvalidGeometry,
	types.ErrInvalidRequest,
	types.ErrItemNotFound,
	types.ErrContainerNotFound,
	types.ErrItemNotStowed,
	types.ErrItemDisposed,
	types.ErrInfeasiblePlacement,
	types.ErrOverBudget,
	types.ErrContainerConflict,
	types.ErrCellConflict,
}

// engineError classifies an engine error: known sentinels are user errors,
// anything else is a system failure.
func engineError(op string, err error) error {
	for _, target := range userErrors {
		if errors.Is(err, target) {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return sysError("%s: %w", op, err)
}
