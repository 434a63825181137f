package bus

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestI2CProberClassifiesTransaction(t *testing.T) {
	tests := []struct {
		name    string
		txErr   error
		present bool
		access  bool
	}{
		{name: "Acknowledged", txErr: nil, present: true},
		{name: "Absent", txErr: unix.ENXIO, present: false},
		{name: "Fault", txErr: unix.EACCES, present: false, access: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewI2CProber(0)
			p.txFn = func(int, uint16) error { return tt.txErr }

			present, err := p.Exists(context.Background(), 1, 0x66)
			if tt.access {
				require.True(t, IsAccessError(err))
				assert.ErrorIs(t, err, tt.txErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.present, present)
		})
	}
}

func TestI2CProberTimesOutStuckTransaction(t *testing.T) {
	hang := make(chan struct{})
	defer close(hang)

	p := NewI2CProber(20 * time.Millisecond)
	p.txFn = func(int, uint16) error {
		<-hang
		return nil
	}

	start := time.Now()
	present, err := p.Exists(context.Background(), 1, 0x66)
	elapsed := time.Since(start)

	require.True(t, IsAccessError(err))
	assert.ErrorIs(t, err, ErrProbeTimeout)
	assert.False(t, present)
	assert.Less(t, elapsed, 2*time.Second)
}

func TestI2CProberHonorsContext(t *testing.T) {
	hang := make(chan struct{})
	defer close(hang)

	p := NewI2CProber(time.Minute)
	p.txFn = func(int, uint16) error {
		<-hang
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Exists(ctx, 1, 0x66)
	require.True(t, IsAccessError(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestI2CProberValidatesArguments(t *testing.T) {
	var calls atomic.Int32
	p := NewI2CProber(0)
	p.txFn = func(int, uint16) error {
		calls.Add(1)
		return nil
	}

	_, err := p.Exists(context.Background(), -1, 0x66)
	assert.ErrorIs(t, err, ErrInvalidBus)

	_, err = p.Exists(context.Background(), 1, 0x00)
	assert.ErrorIs(t, err, ErrInvalidAddress)

	// Argument checks happen before any transaction is attempted.
	assert.Equal(t, int32(0), calls.Load())
}
