package board

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"
)

// DefaultSITLTimeout bounds the connection attempt of a SITL probe.
const DefaultSITLTimeout = 2 * time.Second

// SITLBoard is the software-in-the-loop autopilot reached over TCP. It has no
// hardware to probe; presence means something is accepting connections on the
// configured endpoint.
type SITLBoard struct {
	endpoint string
	hostport string
	timeout  time.Duration
}

var _ Board = (*SITLBoard)(nil)

// NewSITL builds the SITL descriptor for a "tcp://host:port" endpoint.
// A timeout of zero selects DefaultSITLTimeout.
func NewSITL(endpoint string, timeout time.Duration) (*SITLBoard, error) {
	hostport, ok := strings.CutPrefix(endpoint, "tcp://")
	if !ok {
		return nil, fmt.Errorf("sitl endpoint %q: expected tcp://host:port", endpoint)
	}
	if _, _, err := net.SplitHostPort(hostport); err != nil {
		return nil, fmt.Errorf("sitl endpoint %q: %w", endpoint, err)
	}
	if timeout <= 0 {
		timeout = DefaultSITLTimeout
	}
	return &SITLBoard{endpoint: endpoint, hostport: hostport, timeout: timeout}, nil
}

func (b *SITLBoard) Manufacturer() string { return "ArduPilot Team" }

func (b *SITLBoard) Platform() Platform { return PlatformSITL }

// Detect dials the endpoint and immediately closes the connection. Any dial
// failure, refused or timed out alike, simply means no simulator is running
// and reads as absent; there is no bus to be faulty here.
func (b *SITLBoard) Detect(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("detect %s: %w", PlatformSITL, err)
	}
	dialer := net.Dialer{Timeout: b.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", b.hostport)
	if err != nil {
		if ctx.Err() != nil {
			return false, fmt.Errorf("detect %s: %w", PlatformSITL, ctx.Err())
		}
		return false, nil
	}
	conn.Close()
	return true, nil
}

// Serials exposes the simulator's TCP endpoint as the primary link.
func (b *SITLBoard) Serials() []Serial {
	return []Serial{{Port: "A", Endpoint: b.endpoint}}
}
