package app

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tummler-rov/autopilot-manager/board"
)

func NewBoardsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "boards",
		Short: "List the supported board models",
		Args:  cobra.NoArgs,
		RunE:  runBoards,
	}
}

func runBoards(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "PLATFORM\tKIND\tMANUFACTURER\tIDENTIFIED BY\tSERIAL PORTS")
	for _, b := range board.LinuxBoards(nil) {
		fmt.Fprintf(w, "%s\ti2c\t%s\t%s\t%s\n",
			b.Platform(), b.Manufacturer(), formatDevices(b.Devices()), formatSerials(b.Serials()))
	}
	for _, t := range board.USBTargets() {
		ids := ""
		for i, id := range t.IDs {
			if i > 0 {
				ids += " "
			}
			ids += id.String()
		}
		fmt.Fprintf(w, "%s\tusb\t%s\tusb %s\tbound at detection\n", t.Platform, t.Manufacturer, ids)
	}
	return nil
}

func formatDevices(devices map[string]board.BusAddress) string {
	names := make([]string, 0, len(devices))
	for name := range devices {
		names = append(names, name)
	}
	sort.Strings(names)

	out := ""
	for i, name := range names {
		if i > 0 {
			out += " "
		}
		addr := devices[name]
		out += fmt.Sprintf("%s@i2c-%d:0x%02x", name, addr.Bus, addr.Address)
	}
	return out
}

func formatSerials(serials []board.Serial) string {
	out := ""
	for i, s := range serials {
		if i > 0 {
			out += " "
		}
		out += s.Port + ":" + s.Endpoint
	}
	return out
}
