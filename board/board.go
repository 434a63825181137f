// Package board defines the flight-controller board models this service can
// identify and how each one is detected. A board descriptor knows two things:
// whether the board is physically present, and which serial endpoints it
// exposes once it is. Descriptors are immutable; they are built once at
// startup and queried any number of times.
package board

import "context"

// Platform identifies a supported board model. The set is closed: adding a
// model means adding a constant and a descriptor here.
type Platform string

const (
	PlatformTummler    Platform = "Tummler"
	PlatformTummlerH7  Platform = "TummlerH7"
	PlatformPixhawk1   Platform = "Pixhawk1"
	PlatformCubeOrange Platform = "CubeOrange"
	PlatformSITL       Platform = "SITL"
)

// Platforms returns every supported platform identifier.
func Platforms() []Platform {
	return []Platform{
		PlatformTummler,
		PlatformTummlerH7,
		PlatformPixhawk1,
		PlatformCubeOrange,
		PlatformSITL,
	}
}

// Valid reports whether p names a supported platform.
func (p Platform) Valid() bool {
	for _, known := range Platforms() {
		if p == known {
			return true
		}
	}
	return false
}

// BusAddress is where on an I2C bus a board-specific device is expected.
type BusAddress struct {
	Address uint16 `json:"address"`
	Bus     int    `json:"bus"`
}

// Serial binds a logical port role ("A", "B", "C", ...) to the endpoint used
// to reach it. Endpoints are host path conventions ("/dev/ttyAMA0") or
// "tcp://host:port" and are treated as opaque strings here.
type Serial struct {
	Port     string `json:"port"`
	Endpoint string `json:"endpoint"`
}

// Board is the capability every supported model implements.
//
// Detect answers presence: false means probed and absent, while a non-nil
// error means the question could not be asked (bus or enumeration fault).
// The two are never conflated. Serials returns the model's endpoint table;
// it performs no I/O, preserves order, and may be called whether or not the
// board is present.
type Board interface {
	Manufacturer() string
	Platform() Platform
	Detect(ctx context.Context) (bool, error)
	Serials() []Serial
}

func copySerials(serials []Serial) []Serial {
	out := make([]Serial, len(serials))
	copy(out, serials)
	return out
}
