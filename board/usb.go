package board

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.bug.st/serial/enumerator"
)

// USBID is a vendor/product pair as reported by USB descriptors.
type USBID struct {
	Vendor  uint16 `json:"vendor"`
	Product uint16 `json:"product"`
}

func (id USBID) String() string {
	return fmt.Sprintf("%04x:%04x", id.Vendor, id.Product)
}

// matches parses the hex VID/PID strings the enumerator reports and compares
// them to id. Ports that are not USB or carry malformed descriptors never
// match.
func (id USBID) matches(pd *enumerator.PortDetails) bool {
	if pd == nil || !pd.IsUSB {
		return false
	}
	vid, err := strconv.ParseUint(strings.TrimPrefix(pd.VID, "0x"), 16, 16)
	if err != nil {
		return false
	}
	pid, err := strconv.ParseUint(strings.TrimPrefix(pd.PID, "0x"), 16, 16)
	if err != nil {
		return false
	}
	return uint16(vid) == id.Vendor && uint16(pid) == id.Product
}

// PortLister is the slice of the serial enumerator the USB boards need.
type PortLister interface {
	DetailedPorts() ([]*enumerator.PortDetails, error)
}

// SystemPortLister enumerates the host's serial ports.
type SystemPortLister struct{}

func (SystemPortLister) DetailedPorts() ([]*enumerator.PortDetails, error) {
	return enumerator.GetDetailedPortsList()
}

// USBTarget describes a board model that shows up as a USB CDC device. It is
// a template: once a matching port is discovered, Bind turns it into a
// concrete USBBoard tied to that port.
type USBTarget struct {
	Manufacturer string
	Platform     Platform
	// IDs lists every vendor/product pair the model enumerates as,
	// typically the application and bootloader identities.
	IDs []USBID
	// PortRole is the logical role assigned to the discovered endpoint.
	PortRole string
}

// Matches reports whether pd belongs to this model.
func (t USBTarget) Matches(pd *enumerator.PortDetails) bool {
	for _, id := range t.IDs {
		if id.matches(pd) {
			return true
		}
	}
	return false
}

// Bind constructs the descriptor for a discovered unit of this model at
// endpoint, re-checked against ports on Detect.
func (t USBTarget) Bind(endpoint string, ports PortLister) *USBBoard {
	return &USBBoard{target: t, endpoint: endpoint, ports: ports}
}

// USBBoard is a USB-attached model bound to the device path it was discovered
// at. Unlike fixed-bus models the endpoint is only known after enumeration,
// so descriptors of this kind exist per discovered unit rather than per
// supported model.
type USBBoard struct {
	target   USBTarget
	endpoint string
	ports    PortLister
}

var _ Board = (*USBBoard)(nil)

func (b *USBBoard) Manufacturer() string { return b.target.Manufacturer }

func (b *USBBoard) Platform() Platform { return b.target.Platform }

// Endpoint returns the device path the board was discovered at.
func (b *USBBoard) Endpoint() string { return b.endpoint }

// Detect re-enumerates the host's ports and reports whether the bound
// endpoint is still present with one of the model's USB identities. An
// enumeration failure is returned as an error, never as absence.
func (b *USBBoard) Detect(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("detect %s: %w", b.target.Platform, err)
	}
	ports, err := b.ports.DetailedPorts()
	if err != nil {
		return false, fmt.Errorf("detect %s: enumerate ports: %w", b.target.Platform, err)
	}
	for _, pd := range ports {
		if pd.Name == b.endpoint && b.target.Matches(pd) {
			return true, nil
		}
	}
	return false, nil
}

// Serials exposes the single USB CDC endpoint under the model's port role.
func (b *USBBoard) Serials() []Serial {
	return []Serial{{Port: b.target.PortRole, Endpoint: b.endpoint}}
}
