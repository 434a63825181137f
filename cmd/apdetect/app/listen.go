package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tummler-rov/autopilot-manager/link"
	"github.com/tummler-rov/autopilot-manager/mavlink"
)

var (
	listenBaud   int
	listenWindow time.Duration
)

func NewListenCommand() *cobra.Command {
	listenCmd := &cobra.Command{
		Use:   "listen <endpoint>",
		Short: "Wait for a heartbeat on a link",
		Long: "Open a serial device or tcp://host:port endpoint read-only and " +
			"wait for a valid heartbeat. Exits 2 when the window elapses in silence.",
		Args: cobra.ExactArgs(1),
		RunE: runListen,
	}

	listenCmd.Flags().IntVar(&listenBaud, "baud", link.DefaultBaudRate, "Baud rate for serial endpoints.")
	listenCmd.Flags().DurationVar(&listenWindow, "window", 10*time.Second, "How long to wait.")

	return listenCmd
}

func runListen(cmd *cobra.Command, args []string) error {
	endpoint := args[0]
	if err := link.Validate(endpoint); err != nil {
		return err
	}

	port, err := link.Open(endpoint, listenBaud)
	if err != nil {
		return err
	}
	defer port.Close()
	port.ResetInputBuffer()

	hb, err := mavlink.WaitHeartbeat(cmd.Context(), port, listenWindow)
	if err != nil {
		if errors.Is(err, mavlink.ErrNoHeartbeat) {
			fmt.Printf("No heartbeat on %s within %s.\n", endpoint, listenWindow)
			return ExitNotFound
		}
		return err
	}

	fmt.Printf("Heartbeat on %s: %s, vehicle type %d, system status %d\n",
		endpoint, hb.AutopilotName(), hb.Type, hb.SystemStatus)
	return nil
}
