// Package link opens and validates the serial endpoints a detected board
// exposes. Physical UARTs and serial-over-TCP endpoints are handled behind
// one Port interface so the telemetry check and the CLI do not care which
// kind they got.
package link

import (
	"fmt"
	"net"
	"strings"
	"time"

	"go.bug.st/serial"

	"github.com/tummler-rov/autopilot-manager/logger"
)

// DefaultBaudRate is the conventional autopilot telemetry rate.
const DefaultBaudRate = 115200

// readTimeout bounds a single Read so pollers never block forever. A timed
// out Read reports (0, nil), callers treat it as "nothing yet".
const readTimeout = 100 * time.Millisecond

// Port is a byte link to an autopilot.
type Port interface {
	Read([]byte) (int, error)
	Write([]byte) (int, error)
	Close() error
	ResetInputBuffer() error
}

// Open connects to an endpoint. "tcp://host:port" endpoints dial out,
// anything else is treated as a serial device path and opened 8N1 at
// baudRate.
func Open(endpoint string, baudRate int) (Port, error) {
	if addr, ok := strings.CutPrefix(endpoint, "tcp://"); ok {
		return openTCP(addr)
	}
	return openSerial(endpoint, baudRate)
}

// SerialPort wraps go.bug.st/serial for physical UARTs.
type SerialPort struct {
	serial.Port
}

var _ Port = (*SerialPort)(nil)

func openSerial(endpoint string, baudRate int) (Port, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(endpoint, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", endpoint, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", endpoint, err)
	}

	logger.Debug("opened %s at %d bps (8N1)", endpoint, baudRate)
	return &SerialPort{Port: port}, nil
}

// TCPPort wraps a TCP connection as a Port. Used for SITL and
// serial-over-TCP bridges.
type TCPPort struct {
	conn net.Conn
}

var _ Port = (*TCPPort)(nil)

func openTCP(address string) (Port, error) {
	conn, err := net.DialTimeout("tcp", address, 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", address, err)
	}

	logger.Debug("connected to %s (tcp)", address)
	return &TCPPort{conn: conn}, nil
}

func (t *TCPPort) Read(p []byte) (n int, err error) {
	t.conn.SetReadDeadline(time.Now().Add(readTimeout))
	n, err = t.conn.Read(p)
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return n, nil
	}
	return n, err
}

func (t *TCPPort) Write(p []byte) (n int, err error) {
	return t.conn.Write(p)
}

func (t *TCPPort) Close() error {
	return t.conn.Close()
}

// ResetInputBuffer drains whatever the peer already sent.
func (t *TCPPort) ResetInputBuffer() error {
	buf := make([]byte, 1024)
	t.conn.SetReadDeadline(time.Now().Add(10 * time.Millisecond))
	for {
		n, _ := t.conn.Read(buf)
		if n == 0 {
			break
		}
	}
	return nil
}
