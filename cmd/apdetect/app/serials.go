package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tummler-rov/autopilot-manager/board"
)

func NewSerialsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serials <platform>",
		Short: "Print a model's serial port table",
		Long: "Print a model's serial port table. The table is static board " +
			"design data, so this never touches the hardware.",
		Args: cobra.ExactArgs(1),
		RunE: runSerials,
	}
}

func runSerials(cmd *cobra.Command, args []string) error {
	platform := board.Platform(args[0])

	for _, b := range board.LinuxBoards(nil) {
		if b.Platform() != platform {
			continue
		}
		for _, s := range b.Serials() {
			fmt.Printf("%s\t%s\n", s.Port, s.Endpoint)
		}
		return nil
	}

	for _, t := range board.USBTargets() {
		if t.Platform == platform {
			return fmt.Errorf("%s is a USB model; its endpoint is bound at detection time (run %s detect)", platform, Name)
		}
	}
	if platform == board.PlatformSITL {
		return fmt.Errorf("SITL's endpoint is configuration, not board data")
	}
	return fmt.Errorf("unknown platform %q", platform)
}
