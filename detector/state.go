package detector

import (
	"sync"
	"time"
)

// State is the phase the detection service is currently in.
type State int

const (
	StateIdle State = iota
	StateScanning
	StateProbing
	StateValidating
	StateDetected
	StateNotFound
	StateBusError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateScanning:
		return "SCANNING"
	case StateProbing:
		return "PROBING"
	case StateValidating:
		return "VALIDATING"
	case StateDetected:
		return "DETECTED"
	case StateNotFound:
		return "NOT_FOUND"
	case StateBusError:
		return "BUS_ERROR"
	default:
		return "UNKNOWN"
	}
}

// StatusInfo is the broadcastable snapshot of the service state.
type StatusInfo struct {
	State        string    `json:"state"`
	Message      string    `json:"message"`
	Platform     string    `json:"platform,omitempty"`
	Manufacturer string    `json:"manufacturer,omitempty"`
	PassID       string    `json:"pass_id,omitempty"`
	StartedAt    time.Time `json:"started_at,omitempty"`
	ElapsedMs    int64     `json:"elapsed_ms"`
	LastError    string    `json:"last_error,omitempty"`
	Detected     bool      `json:"detected"`
}

// StateChangeCallback is invoked on every state transition.
type StateChangeCallback func(info StatusInfo)

// StateMachine tracks detection progress with thread-safety. Transitions
// notify the registered callback so the websocket hub and the mDNS announcer
// can follow along without polling.
type StateMachine struct {
	mu sync.RWMutex

	current      State
	stateStarted time.Time
	lastError    string
	platform     string
	manufacturer string
	passID       string
	detected     bool

	onStateChange StateChangeCallback
}

func NewStateMachine() *StateMachine {
	return &StateMachine{current: StateIdle}
}

// SetCallback registers the state change callback.
func (sm *StateMachine) SetCallback(cb StateChangeCallback) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.onStateChange = cb
}

// Current returns the current state.
func (sm *StateMachine) Current() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.current
}

// Status returns the current status snapshot.
func (sm *StateMachine) Status() StatusInfo {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.statusLocked()
}

func (sm *StateMachine) statusLocked() StatusInfo {
	info := StatusInfo{
		State:        sm.current.String(),
		Platform:     sm.platform,
		Manufacturer: sm.manufacturer,
		PassID:       sm.passID,
		LastError:    sm.lastError,
		Detected:     sm.detected,
	}

	if sm.current != StateIdle {
		info.StartedAt = sm.stateStarted
		info.ElapsedMs = time.Since(sm.stateStarted).Milliseconds()
	}

	switch sm.current {
	case StateIdle:
		info.Message = "Waiting for first detection pass"
	case StateScanning:
		info.Message = "Assembling candidate boards..."
	case StateProbing:
		info.Message = "Probing candidate boards..."
	case StateValidating:
		info.Message = "Validating serial endpoints..."
	case StateDetected:
		info.Message = "Board detected: " + sm.platform
	case StateNotFound:
		info.Message = "No supported board found"
	case StateBusError:
		info.Message = "Detection impaired: " + sm.lastError
	}

	return info
}

// transitionTo changes the phase within a pass.
func (sm *StateMachine) transitionTo(state State, passID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.current = state
	sm.stateStarted = time.Now()
	sm.passID = passID
	if state != StateBusError {
		sm.lastError = ""
	}

	if sm.onStateChange != nil {
		sm.onStateChange(sm.statusLocked())
	}
}

// finishDetected records the winning board.
func (sm *StateMachine) finishDetected(passID, platform, manufacturer string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.current = StateDetected
	sm.stateStarted = time.Now()
	sm.passID = passID
	sm.platform = platform
	sm.manufacturer = manufacturer
	sm.detected = true
	sm.lastError = ""

	if sm.onStateChange != nil {
		sm.onStateChange(sm.statusLocked())
	}
}

// finishNotFound records a pass that probed everything and found nothing.
func (sm *StateMachine) finishNotFound(passID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.current = StateNotFound
	sm.stateStarted = time.Now()
	sm.passID = passID
	sm.platform = ""
	sm.manufacturer = ""
	sm.detected = false
	sm.lastError = ""

	if sm.onStateChange != nil {
		sm.onStateChange(sm.statusLocked())
	}
}

// finishBusError records a pass that found nothing while at least one
// candidate could not be probed. The distinction matters: the board may well
// be there behind a broken bus.
func (sm *StateMachine) finishBusError(passID, errMsg string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.current = StateBusError
	sm.stateStarted = time.Now()
	sm.passID = passID
	sm.platform = ""
	sm.manufacturer = ""
	sm.detected = false
	sm.lastError = errMsg

	if sm.onStateChange != nil {
		sm.onStateChange(sm.statusLocked())
	}
}
