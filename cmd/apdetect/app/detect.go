package app

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tummler-rov/autopilot-manager/board"
	"github.com/tummler-rov/autopilot-manager/bus"
	"github.com/tummler-rov/autopilot-manager/detector"
)

var (
	probeTimeout    time.Duration
	sitlEnabled     bool
	sitlEndpoint    string
	telemetryCheck  bool
	telemetryWindow time.Duration
	jsonOutput      bool
)

func NewDetectCommand() *cobra.Command {
	detectCmd := &cobra.Command{
		Use:   "detect",
		Short: "Run one detection pass and report the board",
		Args:  cobra.NoArgs,
		RunE:  runDetect,
	}

	detectCmd.Flags().DurationVar(&probeTimeout, "probe-timeout", bus.DefaultProbeTimeout, "Per-probe bus transaction timeout.")
	detectCmd.Flags().BoolVar(&sitlEnabled, "sitl", false, "Include the SITL candidate.")
	detectCmd.Flags().StringVar(&sitlEndpoint, "sitl-endpoint", "tcp://127.0.0.1:5760", "SITL endpoint.")
	detectCmd.Flags().BoolVar(&telemetryCheck, "telemetry", false, "Listen for a heartbeat on the detected board.")
	detectCmd.Flags().DurationVar(&telemetryWindow, "window", 3*time.Second, "Heartbeat wait window.")
	detectCmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the result as JSON.")

	return detectCmd
}

func runDetect(cmd *cobra.Command, args []string) error {
	prober := bus.NewI2CProber(probeTimeout)
	defer prober.Close()

	var sitl *board.SITLBoard
	if sitlEnabled {
		var err error
		sitl, err = board.NewSITL(sitlEndpoint, 0)
		if err != nil {
			return err
		}
	}

	svc := detector.New(detector.Options{
		Prober:          prober,
		SITL:            sitl,
		TelemetryCheck:  telemetryCheck,
		TelemetryWindow: telemetryWindow,
	})

	res, err := svc.DetectOnce(cmd.Context())
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		printResult(res)
	}

	switch res.Outcome {
	case detector.OutcomeNotFound:
		return ExitNotFound
	case detector.OutcomeBusError:
		return ExitBusError
	}
	return nil
}

func printResult(res *detector.Result) {
	switch res.Outcome {
	case detector.OutcomeDetected:
		fmt.Printf("Detected: %s (%s)\n", res.Platform, res.Manufacturer)
		for _, ep := range res.Endpoints {
			status := "ok"
			if !ep.Valid {
				status = ep.Error
			}
			fmt.Printf("  port %-2s %-20s %s\n", ep.Port, ep.Endpoint, status)
		}
		if res.Telemetry != nil && res.Telemetry.Checked {
			if res.Telemetry.Alive {
				fmt.Printf("  telemetry: %s heartbeat\n", res.Telemetry.Autopilot)
			} else {
				fmt.Printf("  telemetry: %s\n", res.Telemetry.Error)
			}
		}
	case detector.OutcomeNotFound:
		fmt.Println("No supported board found.")
	case detector.OutcomeBusError:
		fmt.Println("No board found, and some candidates could not be probed:")
		for _, f := range res.Faults {
			fmt.Printf("  %-12s %s\n", f.Platform, f.Err)
		}
	}
}
