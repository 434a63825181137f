// Package detector runs detection passes over the supported board models and
// publishes which board this host carries. One pass walks the candidates in
// priority order and stops at the first present board; the background loop
// repeats passes until something is found, then goes quiet until asked again.
package detector

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tummler-rov/autopilot-manager/board"
	"github.com/tummler-rov/autopilot-manager/bus"
	"github.com/tummler-rov/autopilot-manager/link"
	"github.com/tummler-rov/autopilot-manager/logger"
	"github.com/tummler-rov/autopilot-manager/mavlink"
	"github.com/tummler-rov/autopilot-manager/metrics"
)

// ErrDetectionInProgress reports an attempt to start a pass while one runs.
var ErrDetectionInProgress = errors.New("detection pass already in progress")

// Outcome classifies a finished pass.
type Outcome string

const (
	// OutcomeDetected means a candidate answered all its probes.
	OutcomeDetected Outcome = "detected"
	// OutcomeNotFound means every candidate was probed and none matched.
	OutcomeNotFound Outcome = "not_found"
	// OutcomeBusError means nothing matched and at least one candidate
	// could not be probed. The host may still carry a board behind the
	// faulty bus, so this is not the same claim as OutcomeNotFound.
	OutcomeBusError Outcome = "bus_error"
)

// Fault records a candidate that could not be probed during a pass.
type Fault struct {
	Platform string `json:"platform"`
	Err      string `json:"error"`
}

// EndpointStatus is the validation verdict for one serial endpoint.
type EndpointStatus struct {
	Port     string `json:"port"`
	Endpoint string `json:"endpoint"`
	Valid    bool   `json:"valid"`
	Error    string `json:"error,omitempty"`
}

// TelemetryStatus reports the optional live-telemetry check.
type TelemetryStatus struct {
	Checked   bool   `json:"checked"`
	Alive     bool   `json:"alive"`
	Autopilot string `json:"autopilot,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Result is everything one detection pass established.
type Result struct {
	PassID       string           `json:"pass_id"`
	Outcome      Outcome          `json:"outcome"`
	Platform     board.Platform   `json:"platform,omitempty"`
	Manufacturer string           `json:"manufacturer,omitempty"`
	Serials      []board.Serial   `json:"serials,omitempty"`
	Endpoints    []EndpointStatus `json:"endpoints,omitempty"`
	Telemetry    *TelemetryStatus `json:"telemetry,omitempty"`
	Faults       []Fault          `json:"faults,omitempty"`
	StartedAt    time.Time        `json:"started_at"`
	ElapsedMs    int64            `json:"elapsed_ms"`

	winner board.Board
}

func (r *Result) clone() *Result {
	if r == nil {
		return nil
	}
	out := *r
	out.Serials = append([]board.Serial(nil), r.Serials...)
	out.Endpoints = append([]EndpointStatus(nil), r.Endpoints...)
	out.Faults = append([]Fault(nil), r.Faults...)
	if r.Telemetry != nil {
		t := *r.Telemetry
		out.Telemetry = &t
	}
	return &out
}

// Options configures a Service. Zero fields get working defaults.
type Options struct {
	// Prober backs the default I2C board table when Boards is nil.
	Prober bus.Prober
	// Boards overrides the candidate list, in probe priority order.
	Boards []board.Board
	// USBTargets are the USB models scanned for each pass.
	USBTargets []board.USBTarget
	// Ports enumerates serial ports for USB discovery.
	Ports board.PortLister
	// SITL, when set, is probed before everything else.
	SITL *board.SITLBoard

	ScanInterval    time.Duration
	TelemetryCheck  bool
	TelemetryWindow time.Duration

	Metrics *metrics.Metrics

	// OpenLink and ValidateEndpoint exist for tests; nil selects the
	// real link package.
	OpenLink         func(endpoint string, baudRate int) (link.Port, error)
	ValidateEndpoint func(endpoint string) error
}

// Service owns the detection loop and the latest Result.
type Service struct {
	boards          []board.Board
	usbTargets      []board.USBTarget
	ports           board.PortLister
	sitl            *board.SITLBoard
	scanInterval    time.Duration
	telemetryCheck  bool
	telemetryWindow time.Duration
	metrics         *metrics.Metrics
	openLink        func(string, int) (link.Port, error)
	validate        func(string) error

	sm  *StateMachine
	log *zap.SugaredLogger

	mu         sync.RWMutex
	result     *Result
	inProgress bool

	trigger  chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
}

func New(opts Options) *Service {
	log := logger.Named("detector")

	boards := opts.Boards
	if boards == nil && opts.Prober != nil {
		for _, b := range board.LinuxBoards(opts.Prober) {
			boards = append(boards, b)
		}
	}
	// An I2C descriptor with no devices would match unconditionally and
	// shadow every real model behind it. That is a configuration bug; drop
	// the candidate here instead of letting it win a pass.
	kept := make([]board.Board, 0, len(boards))
	for _, b := range boards {
		if ib, ok := b.(*board.I2CBoard); ok && len(ib.Devices()) == 0 {
			log.Warnf("dropping candidate %s: empty device table", b.Platform())
			continue
		}
		kept = append(kept, b)
	}
	boards = kept

	ports := opts.Ports
	if ports == nil {
		ports = board.SystemPortLister{}
	}
	usb := opts.USBTargets
	if usb == nil {
		usb = board.USBTargets()
	}
	if opts.ScanInterval <= 0 {
		opts.ScanInterval = 20 * time.Second
	}
	if opts.TelemetryWindow <= 0 {
		opts.TelemetryWindow = 5 * time.Second
	}
	openLink := opts.OpenLink
	if openLink == nil {
		openLink = link.Open
	}
	validate := opts.ValidateEndpoint
	if validate == nil {
		validate = link.Validate
	}

	return &Service{
		boards:          boards,
		usbTargets:      usb,
		ports:           ports,
		sitl:            opts.SITL,
		scanInterval:    opts.ScanInterval,
		telemetryCheck:  opts.TelemetryCheck,
		telemetryWindow: opts.TelemetryWindow,
		metrics:         opts.Metrics,
		openLink:        openLink,
		validate:        validate,
		sm:              NewStateMachine(),
		log:             log,
		trigger:         make(chan struct{}, 1),
		stop:            make(chan struct{}),
	}
}

// SetCallback registers the state change callback.
func (s *Service) SetCallback(cb StateChangeCallback) {
	s.sm.SetCallback(cb)
}

// Status returns the current state snapshot.
func (s *Service) Status() StatusInfo {
	return s.sm.Status()
}

// Result returns a copy of the latest pass result, or nil before the first
// pass completes.
func (s *Service) Result() *Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result.clone()
}

// Board returns the currently detected board, or nil.
func (s *Service) Board() board.Board {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.result == nil || s.result.Outcome != OutcomeDetected {
		return nil
	}
	return s.result.winner
}

// Candidates returns the static candidate boards in probe priority order,
// SITL first when configured. USB models are bound per pass and therefore
// not listed here.
func (s *Service) Candidates() []board.Board {
	out := make([]board.Board, 0, len(s.boards)+1)
	if s.sitl != nil {
		out = append(out, s.sitl)
	}
	out = append(out, s.boards...)
	return out
}

// USBTargets returns the USB models each pass scans for.
func (s *Service) USBTargets() []board.USBTarget {
	return append([]board.USBTarget(nil), s.usbTargets...)
}

// DetectOnce runs one full detection pass. Only one pass may run at a time;
// concurrent calls get ErrDetectionInProgress.
func (s *Service) DetectOnce(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	if s.inProgress {
		s.mu.Unlock()
		return nil, ErrDetectionInProgress
	}
	s.inProgress = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inProgress = false
		s.mu.Unlock()
	}()

	passID := uuid.NewString()
	started := time.Now()
	res := &Result{PassID: passID, StartedAt: started}

	s.sm.transitionTo(StateScanning, passID)
	candidates, faults := s.assembleCandidates()
	res.Faults = faults
	s.log.Debugf("pass %s: %d candidates", passID, len(candidates))

	s.sm.transitionTo(StateProbing, passID)
	var winner board.Board
	for _, cand := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		present, err := cand.Detect(ctx)
		if err != nil {
			s.metrics.ProbeObserved(string(cand.Platform()), "error")
			s.log.Warnf("probe %s: %v", cand.Platform(), err)
			res.Faults = append(res.Faults, Fault{Platform: string(cand.Platform()), Err: err.Error()})
			continue
		}
		if !present {
			s.metrics.ProbeObserved(string(cand.Platform()), "absent")
			continue
		}
		s.metrics.ProbeObserved(string(cand.Platform()), "present")
		winner = cand
		break
	}

	if winner == nil {
		if len(res.Faults) > 0 {
			res.Outcome = OutcomeBusError
			s.sm.finishBusError(passID, res.Faults[0].Err)
			s.log.Warnf("pass %s: no board found, %d candidates unprobeable", passID, len(res.Faults))
		} else {
			res.Outcome = OutcomeNotFound
			s.sm.finishNotFound(passID)
			s.log.Infof("pass %s: no supported board found", passID)
		}
		s.metrics.ClearBoard()
	} else {
		res.Outcome = OutcomeDetected
		res.Platform = winner.Platform()
		res.Manufacturer = winner.Manufacturer()
		res.Serials = winner.Serials()
		res.winner = winner

		s.sm.transitionTo(StateValidating, passID)
		res.Endpoints = s.validateEndpoints(res.Serials)
		if s.telemetryCheck {
			res.Telemetry = s.checkTelemetry(ctx, res.Endpoints)
		}

		s.sm.finishDetected(passID, string(res.Platform), res.Manufacturer)
		s.metrics.SetBoard(string(res.Platform), res.Manufacturer)
		s.log.Infof("pass %s: detected %s (%s)", passID, res.Platform, res.Manufacturer)
	}

	res.ElapsedMs = time.Since(started).Milliseconds()
	s.metrics.PassFinished(string(res.Outcome), time.Since(started))

	s.mu.Lock()
	s.result = res
	s.mu.Unlock()
	return res.clone(), nil
}

// assembleCandidates builds this pass's probe list: SITL first, then the
// fixed I2C models, then every USB port matching a known model. A failed USB
// enumeration is recorded as a fault and skips only the USB candidates.
func (s *Service) assembleCandidates() ([]board.Board, []Fault) {
	candidates := s.Candidates()

	var faults []Fault
	if len(s.usbTargets) > 0 {
		ports, err := s.ports.DetailedPorts()
		if err != nil {
			s.log.Warnf("enumerate usb ports: %v", err)
			faults = append(faults, Fault{Platform: "USB", Err: err.Error()})
			return candidates, faults
		}
		for _, pd := range ports {
			for _, target := range s.usbTargets {
				if target.Matches(pd) {
					b := target.Bind(pd.Name, s.ports)
					s.log.Debugf("usb candidate %s at %s", b.Platform(), b.Endpoint())
					candidates = append(candidates, b)
					break
				}
			}
		}
	}
	return candidates, faults
}

func (s *Service) validateEndpoints(serials []board.Serial) []EndpointStatus {
	out := make([]EndpointStatus, 0, len(serials))
	for _, ser := range serials {
		st := EndpointStatus{Port: ser.Port, Endpoint: ser.Endpoint, Valid: true}
		if err := s.validate(ser.Endpoint); err != nil {
			st.Valid = false
			st.Error = err.Error()
			s.log.Warnf("endpoint %s (%s): %v", ser.Endpoint, ser.Port, err)
		}
		out = append(out, st)
	}
	return out
}

// checkTelemetry opens the first valid endpoint and listens for a heartbeat.
// The link is read only and closed before returning; a silent link downgrades
// nothing, it is merely reported.
func (s *Service) checkTelemetry(ctx context.Context, endpoints []EndpointStatus) *TelemetryStatus {
	ts := &TelemetryStatus{Checked: true}

	var endpoint string
	for _, ep := range endpoints {
		if ep.Valid {
			endpoint = ep.Endpoint
			break
		}
	}
	if endpoint == "" {
		ts.Error = "no valid endpoint to listen on"
		return ts
	}

	port, err := s.openLink(endpoint, link.DefaultBaudRate)
	if err != nil {
		ts.Error = err.Error()
		return ts
	}
	defer port.Close()
	port.ResetInputBuffer()

	hb, err := mavlink.WaitHeartbeat(ctx, port, s.telemetryWindow)
	if err != nil {
		ts.Error = err.Error()
		return ts
	}
	ts.Alive = true
	ts.Autopilot = hb.AutopilotName()
	s.log.Infof("heartbeat on %s: %s", endpoint, ts.Autopilot)
	return ts
}

// Start launches the background detection loop: a short burst of passes at
// startup, then periodic rescans while nothing is detected. A detected board
// is considered stable until a rescan is requested.
func (s *Service) Start() {
	go s.run()
}

// Stop terminates the background loop. Safe to call more than once.
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Trigger requests an asynchronous rescan. Requests arriving while a rescan
// is already queued coalesce into one.
func (s *Service) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

func (s *Service) run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-s.stop
		cancel()
	}()

	s.log.Infof("starting board detection loop")

	for i := 0; i < 3; i++ {
		if s.runPass(ctx) {
			break
		}
		select {
		case <-s.stop:
			return
		case <-time.After(1 * time.Second):
		}
	}

	ticker := time.NewTicker(s.scanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			s.log.Infof("detection loop stopped")
			return
		case <-s.trigger:
			s.runPass(ctx)
		case <-ticker.C:
			if !s.detected() {
				s.runPass(ctx)
			}
		}
	}
}

func (s *Service) runPass(ctx context.Context) bool {
	res, err := s.DetectOnce(ctx)
	if err != nil {
		if !errors.Is(err, ErrDetectionInProgress) && !errors.Is(err, context.Canceled) {
			s.log.Warnf("detection pass: %v", err)
		}
		return false
	}
	return res.Outcome == OutcomeDetected
}

func (s *Service) detected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result != nil && s.result.Outcome == OutcomeDetected
}
