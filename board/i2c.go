package board

import (
	"context"
	"fmt"
	"sort"

	"github.com/tummler-rov/autopilot-manager/bus"
)

// I2CBoard identifies a model by the set of I2C devices its hardware design
// places on the host's buses. The board is present exactly when every listed
// device answers; a single missing device rules the model out.
type I2CBoard struct {
	manufacturer string
	platform     Platform
	devices      map[string]BusAddress
	order        []string
	serials      []Serial
	prober       bus.Prober
}

var _ Board = (*I2CBoard)(nil)

// NewI2CBoard builds an immutable descriptor. The devices map and serials
// slice are copied, so callers may reuse or mutate their arguments freely
// afterwards. Probing goes through p.
func NewI2CBoard(manufacturer string, platform Platform, devices map[string]BusAddress, serials []Serial, p bus.Prober) *I2CBoard {
	devs := make(map[string]BusAddress, len(devices))
	order := make([]string, 0, len(devices))
	for name, addr := range devices {
		devs[name] = addr
		order = append(order, name)
	}
	sort.Strings(order)
	return &I2CBoard{
		manufacturer: manufacturer,
		platform:     platform,
		devices:      devs,
		order:        order,
		serials:      copySerials(serials),
		prober:       p,
	}
}

func (b *I2CBoard) Manufacturer() string { return b.manufacturer }

func (b *I2CBoard) Platform() Platform { return b.platform }

// Devices returns a copy of the device table, keyed by device name.
func (b *I2CBoard) Devices() map[string]BusAddress {
	out := make(map[string]BusAddress, len(b.devices))
	for name, addr := range b.devices {
		out[name] = addr
	}
	return out
}

// Detect probes each expected device in name order and reports whether all of
// them answered. The first absent device short-circuits the remaining probes
// and yields (false, nil). A probe that cannot be carried out aborts the
// check with the underlying error instead: an unreachable bus must never read
// as "board absent".
//
// A descriptor with no devices is trivially present. No shipped model has an
// empty table, so a true from such a descriptor marks a configuration bug,
// not a detection.
func (b *I2CBoard) Detect(ctx context.Context) (bool, error) {
	for _, name := range b.order {
		addr := b.devices[name]
		present, err := b.prober.Exists(ctx, addr.Bus, addr.Address)
		if err != nil {
			return false, fmt.Errorf("probe %s %s at 0x%02x: %w", b.platform, name, addr.Address, err)
		}
		if !present {
			return false, nil
		}
	}
	return true, nil
}

// Serials returns the model's serial port table in declaration order. The
// result is a fresh copy on every call and is independent of whether the
// board is present.
func (b *I2CBoard) Serials() []Serial {
	return copySerials(b.serials)
}
