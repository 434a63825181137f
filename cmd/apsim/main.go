// Command apsim emulates the TCP side of an ArduPilot SITL instance: it
// accepts connections and streams HEARTBEAT frames, which is all the
// detection pass and the listen command need from a live flight stack.
package main

import (
	"flag"
	"fmt"
	"net"
	"time"

	"github.com/tummler-rov/autopilot-manager/mavlink"
)

// MAV_STATE_ACTIVE
const mavStateActive byte = 4

var (
	addr  = flag.String("addr", ":5760", "TCP listen address")
	rate  = flag.Duration("rate", time.Second, "heartbeat interval")
	v1    = flag.Bool("v1", false, "emit MAVLink 1 frames instead of MAVLink 2")
	sysID = flag.Int("sysid", 1, "MAVLink system id")
)

func main() {
	flag.Parse()

	listener, err := net.Listen("tcp", *addr)
	if err != nil {
		fmt.Println("Failed to start simulator:", err)
		return
	}
	defer listener.Close()

	fmt.Println("=== ArduPilot Heartbeat Simulator ===")
	fmt.Println("Listening on TCP", *addr)
	fmt.Println("Waiting for connections...")

	for {
		conn, err := listener.Accept()
		if err != nil {
			fmt.Println("Accept error:", err)
			continue
		}
		fmt.Println("[apsim] Client connected:", conn.RemoteAddr())
		go handleConnection(conn)
	}
}

func handleConnection(conn net.Conn) {
	defer conn.Close()

	version := 2
	if *v1 {
		version = 1
	}
	hb := &mavlink.Heartbeat{
		Type:           mavlink.VehicleSubmarine,
		Autopilot:      mavlink.AutopilotArduPilot,
		SystemStatus:   mavStateActive,
		MavlinkVersion: 3,
	}

	ticker := time.NewTicker(*rate)
	defer ticker.Stop()

	var seq byte
	for {
		frame, err := hb.Encode(version, seq, byte(*sysID), 1)
		if err != nil {
			fmt.Println("[apsim] Encode error:", err)
			return
		}
		if _, err := conn.Write(frame); err != nil {
			fmt.Println("[apsim] Client disconnected:", conn.RemoteAddr())
			return
		}
		seq++
		<-ticker.C
	}
}
