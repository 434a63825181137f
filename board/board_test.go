package board

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial/enumerator"

	"github.com/tummler-rov/autopilot-manager/bus"
)

func tummler(t *testing.T, p bus.Prober) *I2CBoard {
	t.Helper()
	for _, b := range LinuxBoards(p) {
		if b.Platform() == PlatformTummler {
			return b
		}
	}
	t.Fatal("Tummler missing from LinuxBoards")
	return nil
}

func TestTummlerDescriptor(t *testing.T) {
	b := tummler(t, &bus.MockProber{})

	assert.Equal(t, "Tummler ROV", b.Manufacturer())
	assert.Equal(t, PlatformTummler, b.Platform())
	assert.Equal(t, map[string]BusAddress{
		"STM32": {Address: 0x66, Bus: 1},
	}, b.Devices())
	assert.Equal(t, []Serial{
		{Port: "C", Endpoint: "/dev/ttyAMA0"},
		{Port: "B", Endpoint: "/dev/ttyAMA2"},
	}, b.Serials())
}

func TestI2CBoardDetectAllPresent(t *testing.T) {
	p := &bus.MockProber{}
	p.SetPresent(1, 0x66, true)

	present, err := tummler(t, p).Detect(context.Background())
	require.NoError(t, err)
	assert.True(t, present)
	assert.Equal(t, 1, p.Calls())
}

func TestI2CBoardDetectAbsent(t *testing.T) {
	p := &bus.MockProber{}

	present, err := tummler(t, p).Detect(context.Background())
	require.NoError(t, err)
	assert.False(t, present)
}

func TestI2CBoardDetectShortCircuits(t *testing.T) {
	// Two expected devices, the first one probed is absent: the second
	// must not be probed at all.
	p := &bus.MockProber{}
	p.SetPresent(1, 0x42, true)
	b := NewI2CBoard("Tummler ROV", PlatformTummlerH7,
		map[string]BusAddress{
			"BMP390": {Address: 0x77, Bus: 1},
			"STM32":  {Address: 0x42, Bus: 1},
		}, nil, p)

	present, err := b.Detect(context.Background())
	require.NoError(t, err)
	assert.False(t, present)
	assert.Equal(t, 1, p.Calls(), "first absent device must stop the probe sequence")
}

func TestI2CBoardDetectPropagatesAccessError(t *testing.T) {
	p := &bus.MockProber{}
	p.FailAt(1, 0x66, &bus.AccessError{Bus: 1, Op: "open", Err: errors.New("EACCES")})

	present, err := tummler(t, p).Detect(context.Background())
	require.Error(t, err, "an unanswerable probe must not read as absence")
	assert.False(t, present)
	assert.True(t, bus.IsAccessError(err))
}

func TestI2CBoardEmptyDevicesTriviallyPresent(t *testing.T) {
	p := &bus.MockProber{}
	b := NewI2CBoard("Tummler ROV", PlatformTummler, nil, nil, p)

	present, err := b.Detect(context.Background())
	require.NoError(t, err)
	assert.True(t, present)
	assert.Zero(t, p.Calls())
}

func TestI2CBoardSerialsAreStable(t *testing.T) {
	p := &bus.MockProber{}
	b := tummler(t, p)

	first := b.Serials()
	first[0].Endpoint = "/dev/null"
	second := b.Serials()

	assert.Equal(t, []Serial{
		{Port: "C", Endpoint: "/dev/ttyAMA0"},
		{Port: "B", Endpoint: "/dev/ttyAMA2"},
	}, second, "callers must not be able to mutate the table")
	assert.Zero(t, p.Calls(), "Serials must not touch the bus")
}

func TestI2CBoardSerialsIgnorePresence(t *testing.T) {
	p := &bus.MockProber{}
	b := tummler(t, p)

	present, err := b.Detect(context.Background())
	require.NoError(t, err)
	require.False(t, present)

	assert.Len(t, b.Serials(), 2, "port table is static board data, not detection output")
}

func TestI2CBoardCopiesConstructorArguments(t *testing.T) {
	devices := map[string]BusAddress{"STM32": {Address: 0x66, Bus: 1}}
	serials := []Serial{{Port: "C", Endpoint: "/dev/ttyAMA0"}}
	b := NewI2CBoard("Tummler ROV", PlatformTummler, devices, serials, &bus.MockProber{})

	devices["IMPOSTOR"] = BusAddress{Address: 0x10, Bus: 3}
	serials[0].Endpoint = "/dev/null"

	assert.Len(t, b.Devices(), 1)
	assert.Equal(t, "/dev/ttyAMA0", b.Serials()[0].Endpoint)
}

// An empty device table detects trivially true, so shipping one would claim
// every host carries that board.
func TestShippedModelsHaveDevices(t *testing.T) {
	seen := map[Platform]bool{}
	for _, b := range LinuxBoards(&bus.MockProber{}) {
		assert.NotEmpty(t, b.Devices(), b.Platform())
		assert.True(t, b.Platform().Valid(), b.Platform())
		assert.False(t, seen[b.Platform()], b.Platform())
		seen[b.Platform()] = true
	}
	for _, target := range USBTargets() {
		assert.NotEmpty(t, target.IDs, target.Platform)
		assert.True(t, target.Platform.Valid(), target.Platform)
	}
}

func TestPlatformValid(t *testing.T) {
	for _, p := range Platforms() {
		assert.True(t, p.Valid(), p)
	}
	assert.False(t, Platform("Betelgeuse").Valid())
}

type fakePortLister struct {
	ports []*enumerator.PortDetails
	err   error
}

func (f fakePortLister) DetailedPorts() ([]*enumerator.PortDetails, error) {
	return f.ports, f.err
}

func cubeTarget(t *testing.T) USBTarget {
	t.Helper()
	for _, target := range USBTargets() {
		if target.Platform == PlatformCubeOrange {
			return target
		}
	}
	t.Fatal("CubeOrange missing from USBTargets")
	return USBTarget{}
}

func TestUSBTargetMatches(t *testing.T) {
	target := cubeTarget(t)

	cases := []struct {
		name string
		port *enumerator.PortDetails
		want bool
	}{
		{"application id", &enumerator.PortDetails{Name: "/dev/ttyACM0", IsUSB: true, VID: "2dae", PID: "1016"}, true},
		{"bootloader id", &enumerator.PortDetails{Name: "/dev/ttyACM0", IsUSB: true, VID: "2DAE", PID: "1015"}, true},
		{"foreign device", &enumerator.PortDetails{Name: "/dev/ttyACM0", IsUSB: true, VID: "0483", PID: "5740"}, false},
		{"not usb", &enumerator.PortDetails{Name: "/dev/ttyAMA0", IsUSB: false}, false},
		{"garbage descriptor", &enumerator.PortDetails{Name: "/dev/ttyACM0", IsUSB: true, VID: "zz", PID: "1016"}, false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, target.Matches(tc.port))
		})
	}
}

func TestUSBBoardDetect(t *testing.T) {
	target := cubeTarget(t)
	cube := &enumerator.PortDetails{Name: "/dev/ttyACM0", IsUSB: true, VID: "2dae", PID: "1016"}

	b := target.Bind("/dev/ttyACM0", fakePortLister{ports: []*enumerator.PortDetails{cube}})
	present, err := b.Detect(context.Background())
	require.NoError(t, err)
	assert.True(t, present)

	b = target.Bind("/dev/ttyACM0", fakePortLister{})
	present, err = b.Detect(context.Background())
	require.NoError(t, err)
	assert.False(t, present, "unplugged board must read as absent")

	b = target.Bind("/dev/ttyACM0", fakePortLister{err: errors.New("udev down")})
	_, err = b.Detect(context.Background())
	require.Error(t, err, "enumeration failure must not read as absence")
}

func TestUSBBoardSerials(t *testing.T) {
	b := cubeTarget(t).Bind("/dev/ttyACM1", fakePortLister{})

	assert.Equal(t, "CubePilot", b.Manufacturer())
	assert.Equal(t, PlatformCubeOrange, b.Platform())
	assert.Equal(t, []Serial{{Port: "A", Endpoint: "/dev/ttyACM1"}}, b.Serials())
}

func TestNewSITLValidatesEndpoint(t *testing.T) {
	_, err := NewSITL("udp://127.0.0.1:5760", 0)
	require.Error(t, err)

	_, err = NewSITL("tcp://nowhere", 0)
	require.Error(t, err)

	b, err := NewSITL("tcp://127.0.0.1:5760", 0)
	require.NoError(t, err)
	assert.Equal(t, []Serial{{Port: "A", Endpoint: "tcp://127.0.0.1:5760"}}, b.Serials())
}

func TestSITLDetect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	b, err := NewSITL("tcp://"+ln.Addr().String(), time.Second)
	require.NoError(t, err)

	present, err := b.Detect(context.Background())
	require.NoError(t, err)
	assert.True(t, present)

	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	b, err = NewSITL("tcp://"+addr, 200*time.Millisecond)
	require.NoError(t, err)
	present, err = b.Detect(context.Background())
	require.NoError(t, err)
	assert.False(t, present, "nothing listening means no simulator")
}
