package mavlink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrNoHeartbeat reports that the window elapsed without a valid heartbeat.
var ErrNoHeartbeat = errors.New("no heartbeat received")

// pollInterval paces reads on links whose Read reports (0, nil) when idle.
const pollInterval = 20 * time.Millisecond

// WaitHeartbeat reads r until a valid HEARTBEAT arrives or the window
// elapses. r is expected to behave like a link.Port: a Read with nothing
// pending returns (0, nil). The link is never written to.
func WaitHeartbeat(ctx context.Context, r io.Reader, window time.Duration) (*Heartbeat, error) {
	scanner := NewScanner()
	buf := make([]byte, 512)
	deadline := time.NewTimer(window)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, fmt.Errorf("%w within %s", ErrNoHeartbeat, window)
		default:
		}

		n, err := r.Read(buf)
		if n > 0 {
			scanner.Feed(buf[:n])
			for f := scanner.Next(); f != nil; f = scanner.Next() {
				if f.MessageID != MsgIDHeartbeat {
					continue
				}
				hb, decErr := DecodeHeartbeat(f)
				if decErr != nil {
					continue
				}
				return hb, nil
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read link: %w", err)
		}
		time.Sleep(pollInterval)
	}
}
