package board

import "github.com/tummler-rov/autopilot-manager/bus"

// The supported models are declared here, data only. Detection policy lives
// with the detector; this file is the single place a new revision gets added.

// LinuxBoards returns the descriptors for the carrier-mounted models that are
// identified by their onboard I2C devices, in detection priority order. Each
// descriptor probes through p.
func LinuxBoards(p bus.Prober) []*I2CBoard {
	return []*I2CBoard{
		NewI2CBoard("Tummler ROV", PlatformTummlerH7,
			map[string]BusAddress{
				"STM32":  {Address: 0x42, Bus: 1},
				"BMP390": {Address: 0x77, Bus: 1},
			},
			[]Serial{
				{Port: "C", Endpoint: "/dev/ttyAMA0"},
				{Port: "B", Endpoint: "/dev/ttyAMA2"},
				{Port: "D", Endpoint: "/dev/ttyAMA3"},
			},
			p),
		NewI2CBoard("Tummler ROV", PlatformTummler,
			map[string]BusAddress{
				"STM32": {Address: 0x66, Bus: 1},
			},
			[]Serial{
				{Port: "C", Endpoint: "/dev/ttyAMA0"},
				{Port: "B", Endpoint: "/dev/ttyAMA2"},
			},
			p),
	}
}

// USBTargets returns the USB-attached models the detector scans for. Both
// identities of each model are listed so a unit stuck in its bootloader is
// still recognized.
func USBTargets() []USBTarget {
	return []USBTarget{
		{
			Manufacturer: "CubePilot",
			Platform:     PlatformCubeOrange,
			IDs:          []USBID{{Vendor: 0x2DAE, Product: 0x1016}, {Vendor: 0x2DAE, Product: 0x1015}},
			PortRole:     "A",
		},
		{
			Manufacturer: "3D Robotics",
			Platform:     PlatformPixhawk1,
			IDs:          []USBID{{Vendor: 0x26AC, Product: 0x0011}, {Vendor: 0x26AC, Product: 0x0010}},
			PortRole:     "A",
		},
	}
}
