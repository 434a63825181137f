package link

import (
	"fmt"
	"net"
	"os"
	"strings"

	"go.bug.st/serial"
)

// ListPorts returns the serial device paths currently present on the host.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	return ports, nil
}

// Validate checks that an endpoint is usable without opening it. TCP
// endpoints are checked syntactically only. Device paths are looked up in the
// host's serial port list; paths the enumerator does not know (disabled UARTs
// still expose their node) fall back to a character-device check. A board's
// port table is static design data, so a failed validation points at the
// host, not at the table.
func Validate(endpoint string) error {
	if addr, ok := strings.CutPrefix(endpoint, "tcp://"); ok {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return fmt.Errorf("endpoint %q: %w", endpoint, err)
		}
		return nil
	}

	if ports, err := ListPorts(); err == nil {
		for _, p := range ports {
			if p == endpoint {
				return nil
			}
		}
	}

	info, err := os.Stat(endpoint)
	if err != nil {
		return fmt.Errorf("endpoint %q: %w", endpoint, err)
	}
	if info.Mode()&os.ModeCharDevice == 0 {
		return fmt.Errorf("endpoint %q: not a character device", endpoint)
	}
	return nil
}
