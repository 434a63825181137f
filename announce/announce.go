// Package announce advertises the service over mDNS so topside tools can
// find the vehicle without knowing its address. The TXT record mirrors the
// detection result and is re-published whenever it changes.
package announce

import (
	"fmt"
	"sync"

	"github.com/enbility/zeroconf/v3"
	"go.uber.org/zap"

	"github.com/tummler-rov/autopilot-manager/detector"
	"github.com/tummler-rov/autopilot-manager/logger"
)

const (
	// ServiceType is the DNS-SD service type topside tools browse for.
	ServiceType = "_autopilot-mgr._tcp"
	Domain      = "local."
)

// Announcer owns one registered mDNS service instance.
type Announcer struct {
	instance string
	port     int
	log      *zap.SugaredLogger

	mu      sync.Mutex
	server  *zeroconf.Server
	lastTXT string
}

// New prepares an announcer for the given instance name and API port.
// Nothing is published until the first Update.
func New(instance string, port int) *Announcer {
	return &Announcer{
		instance: instance,
		port:     port,
		log:      logger.Named("announce"),
	}
}

// Update publishes the detection status. Mid-pass states are skipped so the
// record only flips on settled results; re-publishing an unchanged record is
// a no-op.
func (a *Announcer) Update(info detector.StatusInfo) error {
	if !settled(info.State) {
		return nil
	}

	txt := []string{
		"state=" + info.State,
		fmt.Sprintf("detected=%t", info.Detected),
	}
	if info.Platform != "" {
		txt = append(txt, "platform="+info.Platform)
	}
	if info.Manufacturer != "" {
		txt = append(txt, "manufacturer="+info.Manufacturer)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	key := fmt.Sprint(txt)
	if a.server != nil && key == a.lastTXT {
		return nil
	}

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	server, err := zeroconf.Register(a.instance, ServiceType, Domain, a.port, txt, nil)
	if err != nil {
		return fmt.Errorf("register %s: %w", ServiceType, err)
	}
	a.server = server
	a.lastTXT = key
	a.log.Infof("announcing %q as %s (%s)", a.instance, ServiceType, info.State)
	return nil
}

// Stop withdraws the advertisement.
func (a *Announcer) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// settled reports whether a state is a pass result rather than a phase.
func settled(state string) bool {
	switch state {
	case detector.StateDetected.String(), detector.StateNotFound.String(), detector.StateBusError.String():
		return true
	}
	return false
}
