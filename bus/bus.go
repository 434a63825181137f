// Package bus provides existence probing for devices on the host's I2C buses.
//
// A probe answers one question: does anything acknowledge this address on this
// bus. "Nothing there" and "could not ask" are different answers; the latter is
// reported as an AccessError and never silently folded into a negative result.
package bus

import (
	"errors"
	"fmt"
)

// 7-bit address range usable by devices. Addresses outside it are reserved on
// the bus and indicate a caller bug, not an absent device.
const (
	MinAddress uint16 = 0x08
	MaxAddress uint16 = 0x77
)

var (
	// ErrInvalidBus reports a negative bus index.
	ErrInvalidBus = errors.New("invalid i2c bus index")

	// ErrInvalidAddress reports an address outside the 7-bit device range.
	ErrInvalidAddress = errors.New("i2c address outside 7-bit device range")

	// ErrProbeTimeout reports a bus transaction that did not complete within
	// the prober's deadline.
	ErrProbeTimeout = errors.New("bus probe timed out")
)

// AccessError means the bus itself could not be queried: missing device node,
// permissions, transport fault, stuck transaction. It is distinct from a
// probed-and-absent result so callers can tell "no such board" from "cannot
// access bus".
type AccessError struct {
	Bus int
	Op  string // "open" or "tx"
	Err error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("i2c bus %d: %s: %v", e.Bus, e.Op, e.Err)
}

func (e *AccessError) Unwrap() error { return e.Err }

// IsAccessError reports whether err is (or wraps) an AccessError.
func IsAccessError(err error) bool {
	var ae *AccessError
	return errors.As(err, &ae)
}

func checkArgs(busIndex int, address uint16) error {
	if busIndex < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBus, busIndex)
	}
	if address < MinAddress || address > MaxAddress {
		return fmt.Errorf("%w: %#02x", ErrInvalidAddress, address)
	}
	return nil
}
