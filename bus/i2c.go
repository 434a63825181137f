package bus

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// Prober checks whether a device answers at an address on a bus.
// Implementations must be safe for concurrent use.
type Prober interface {
	// Exists returns true if a device acknowledges address on bus busIndex,
	// false if the transaction completed without an acknowledgement. Any
	// failure to perform the transaction at all is returned as an AccessError.
	Exists(ctx context.Context, busIndex int, address uint16) (bool, error)
}

// DefaultProbeTimeout bounds a single bus transaction. A transfer that takes
// longer than this is reported as an access fault rather than blocking the
// detection pass.
const DefaultProbeTimeout = 500 * time.Millisecond

// I2CProber probes the host's I2C buses through periph.io. Opened buses are
// cached for the prober's lifetime and transactions on the same bus are
// serialized, so one prober can be shared across concurrent detections.
type I2CProber struct {
	timeout time.Duration

	// txFn overrides the bus transaction in tests. When nil the prober
	// opens the real bus through periph.
	txFn func(busIndex int, address uint16) error

	initOnce sync.Once
	initErr  error

	mu    sync.Mutex
	buses map[int]*openBus
}

type openBus struct {
	txMu sync.Mutex
	bus  i2c.BusCloser
}

var _ Prober = (*I2CProber)(nil)

// NewI2CProber returns a prober with the given per-transaction timeout.
// A zero timeout selects DefaultProbeTimeout.
func NewI2CProber(timeout time.Duration) *I2CProber {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &I2CProber{
		timeout: timeout,
		buses:   make(map[int]*openBus),
	}
}

// Exists performs a one-byte read transaction, the same convention i2cdetect
// uses: an acknowledged address means a device is present.
func (p *I2CProber) Exists(ctx context.Context, busIndex int, address uint16) (bool, error) {
	if err := checkArgs(busIndex, address); err != nil {
		return false, err
	}

	tx := p.txFn
	if tx == nil {
		ob, err := p.open(busIndex)
		if err != nil {
			return false, &AccessError{Bus: busIndex, Op: "open", Err: err}
		}
		tx = func(_ int, addr uint16) error {
			// A timed-out transfer keeps the per-bus lock until the
			// kernel returns; later probes on the same bus then time
			// out too, which reports a stuck bus consistently instead
			// of piling up transfers.
			ob.txMu.Lock()
			defer ob.txMu.Unlock()
			var scratch [1]byte
			return ob.bus.Tx(addr, nil, scratch[:])
		}
	}

	err := timedTx(ctx, p.timeout, func() error { return tx(busIndex, address) })
	switch {
	case err == nil:
		return true, nil
	case deviceAbsent(err):
		return false, nil
	default:
		return false, &AccessError{Bus: busIndex, Op: "tx", Err: err}
	}
}

// timedTx bounds a single transaction. The ioctl has no cancellation hook, so
// the transfer runs in its own goroutine; on timeout it is abandoned and
// ErrProbeTimeout reported instead of blocking the detection pass.
func timedTx(ctx context.Context, timeout time.Duration, tx func() error) error {
	done := make(chan error, 1)
	go func() { done <- tx() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrProbeTimeout
	}
}

// Close releases all cached bus handles.
func (p *I2CProber) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for idx, ob := range p.buses {
		if err := ob.bus.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.buses, idx)
	}
	return firstErr
}

func (p *I2CProber) open(busIndex int) (*openBus, error) {
	p.initOnce.Do(func() {
		_, p.initErr = host.Init()
	})
	if p.initErr != nil {
		return nil, p.initErr
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if ob, ok := p.buses[busIndex]; ok {
		return ob, nil
	}
	b, err := i2creg.Open(strconv.Itoa(busIndex))
	if err != nil {
		return nil, err
	}
	ob := &openBus{bus: b}
	p.buses[busIndex] = ob
	return ob, nil
}

// deviceAbsent reports whether err is the kernel's way of saying "nothing
// acknowledged that address", as opposed to a bus-level fault. periph does not
// always preserve the errno through its wrapping, hence the string fallback.
func deviceAbsent(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case unix.ENXIO, unix.EREMOTEIO, unix.ENODEV:
			return true
		}
		return false
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such device or address") ||
		strings.Contains(msg, "remote i/o error")
}
