package app

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tummler-rov/autopilot-manager/board"
)

func NewPortsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List the host's serial ports",
		Args:  cobra.NoArgs,
		RunE:  runPorts,
	}
}

func runPorts(cmd *cobra.Command, args []string) error {
	ports, err := board.SystemPortLister{}.DetailedPorts()
	if err != nil {
		return fmt.Errorf("enumerate ports: %w", err)
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "DEVICE\tUSB ID\tPRODUCT\tSERIAL")
	for _, p := range ports {
		if p.IsUSB {
			fmt.Fprintf(w, "%s\t%s:%s\t%s\t%s\n", p.Name, p.VID, p.PID, p.Product, p.SerialNumber)
		} else {
			fmt.Fprintf(w, "%s\t-\t-\t-\n", p.Name)
		}
	}
	return nil
}
