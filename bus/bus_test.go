package bus

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestCheckArgs(t *testing.T) {
	tests := []struct {
		name    string
		bus     int
		address uint16
		wantErr error
	}{
		{name: "Valid", bus: 1, address: 0x66, wantErr: nil},
		{name: "ValidLowBoundary", bus: 0, address: MinAddress, wantErr: nil},
		{name: "ValidHighBoundary", bus: 4, address: MaxAddress, wantErr: nil},
		{name: "NegativeBus", bus: -1, address: 0x66, wantErr: ErrInvalidBus},
		{name: "AddressBelowRange", bus: 1, address: 0x07, wantErr: ErrInvalidAddress},
		{name: "AddressReservedZero", bus: 1, address: 0x00, wantErr: ErrInvalidAddress},
		{name: "AddressAboveRange", bus: 1, address: 0x78, wantErr: ErrInvalidAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkArgs(tt.bus, tt.address)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDeviceAbsentClassification(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		absent bool
	}{
		{name: "ENXIO", err: unix.ENXIO, absent: true},
		{name: "EREMOTEIO", err: unix.EREMOTEIO, absent: true},
		{name: "ENODEV", err: unix.ENODEV, absent: true},
		{name: "WrappedENXIO", err: fmt.Errorf("i2c tx: %w", unix.ENXIO), absent: true},
		{name: "EACCES", err: unix.EACCES, absent: false},
		{name: "ETIMEDOUT", err: unix.ETIMEDOUT, absent: false},
		{name: "AbsentMessage", err: errors.New("i2c1: no such device or address"), absent: true},
		{name: "RemoteIOMessage", err: errors.New("sysfs-i2c: Remote I/O error"), absent: true},
		{name: "OtherMessage", err: errors.New("permission denied"), absent: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.absent, deviceAbsent(tt.err))
		})
	}
}

func TestAccessError(t *testing.T) {
	cause := errors.New("open /dev/i2c-1: permission denied")
	err := &AccessError{Bus: 1, Op: "open", Err: cause}

	assert.Equal(t, "i2c bus 1: open: open /dev/i2c-1: permission denied", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsAccessError(err))
	assert.True(t, IsAccessError(fmt.Errorf("detect: %w", err)))
	assert.False(t, IsAccessError(cause))
}

func TestMockProberDefaultsToAbsent(t *testing.T) {
	var m MockProber

	present, err := m.Exists(context.Background(), 1, 0x66)
	require.NoError(t, err)
	assert.False(t, present)
	assert.Equal(t, 1, m.Calls())
}

func TestMockProberScriptedPresence(t *testing.T) {
	var m MockProber
	m.SetPresent(1, 0x66, true)

	present, err := m.Exists(context.Background(), 1, 0x66)
	require.NoError(t, err)
	assert.True(t, present)

	present, err = m.Exists(context.Background(), 1, 0x48)
	require.NoError(t, err)
	assert.False(t, present)

	assert.Equal(t, 2, m.Calls())
}

func TestMockProberFailures(t *testing.T) {
	var m MockProber
	m.SetPresent(1, 0x66, true)
	m.FailAt(1, 0x48, &AccessError{Bus: 1, Op: "tx", Err: unix.EIO})

	_, err := m.Exists(context.Background(), 1, 0x48)
	assert.True(t, IsAccessError(err))

	// Global failure takes precedence over scripted presence.
	m.FailWith(&AccessError{Bus: 1, Op: "open", Err: unix.EACCES})
	_, err = m.Exists(context.Background(), 1, 0x66)
	assert.True(t, IsAccessError(err))
}

func TestMockProberValidatesArguments(t *testing.T) {
	var m MockProber

	_, err := m.Exists(context.Background(), -1, 0x66)
	assert.ErrorIs(t, err, ErrInvalidBus)

	_, err = m.Exists(context.Background(), 1, 0x02)
	assert.ErrorIs(t, err, ErrInvalidAddress)

	// Argument checks happen before the call counter.
	assert.Equal(t, 0, m.Calls())
}

func TestMockProberHonorsContext(t *testing.T) {
	var m MockProber
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Exists(ctx, 1, 0x66)
	assert.True(t, IsAccessError(err))
	assert.ErrorIs(t, err, context.Canceled)
}
