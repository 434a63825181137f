package bus

import (
	"context"
	"sync"
)

// Key identifies one probed location.
type Key struct {
	Bus     int
	Address uint16
}

// MockProber is a scripted Prober for tests and bench runs without hardware.
// The zero value reports every address as absent.
type MockProber struct {
	mu      sync.Mutex
	present map[Key]bool
	errAt   map[Key]error
	err     error
	calls   int
}

var _ Prober = (*MockProber)(nil)

// SetPresent marks an address as present or absent.
func (m *MockProber) SetPresent(busIndex int, address uint16, present bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.present == nil {
		m.present = make(map[Key]bool)
	}
	m.present[Key{busIndex, address}] = present
}

// FailWith makes every probe return err until cleared with nil.
func (m *MockProber) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// FailAt makes probes of one location return err.
func (m *MockProber) FailAt(busIndex int, address uint16, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errAt == nil {
		m.errAt = make(map[Key]error)
	}
	m.errAt[Key{busIndex, address}] = err
}

// Calls returns how many times Exists was invoked.
func (m *MockProber) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Exists implements Prober against the scripted state.
func (m *MockProber) Exists(ctx context.Context, busIndex int, address uint16) (bool, error) {
	if err := checkArgs(busIndex, address); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, &AccessError{Bus: busIndex, Op: "tx", Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if m.err != nil {
		return false, m.err
	}
	if err, ok := m.errAt[Key{busIndex, address}]; ok && err != nil {
		return false, err
	}
	return m.present[Key{busIndex, address}], nil
}
