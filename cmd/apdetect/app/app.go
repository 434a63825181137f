// Package app implements the apdetect CLI: one-shot board detection and the
// diagnostics around it, sharing the daemon's packages.
package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tummler-rov/autopilot-manager/logger"
)

const Name string = "apdetect"

// ExitCode carries a specific process exit status through cobra. The detect
// and listen commands use 2 for "nothing found" and 3 for "could not probe",
// so scripts can tell a clean miss from a broken bus.
type ExitCode int

func (e ExitCode) Error() string {
	return fmt.Sprintf("exit status %d", int(e))
}

const (
	ExitNotFound ExitCode = 2
	ExitBusError ExitCode = 3
)

var debug bool

func NewCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           Name,
		Short:         "Flight controller board detection",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.Init("", debug)
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging.")

	root.AddCommand(NewDetectCommand())
	root.AddCommand(NewBoardsCommand())
	root.AddCommand(NewSerialsCommand())
	root.AddCommand(NewPortsCommand())
	root.AddCommand(NewListenCommand())
	return root
}
