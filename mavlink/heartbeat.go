package mavlink

import (
	"encoding/binary"
	"fmt"
)

// HEARTBEAT is the only message this service interprets: seeing one proves a
// flight stack is alive on the link.
const (
	MsgIDHeartbeat uint32 = 0

	heartbeatLen      = 9
	heartbeatCRCExtra = 50
)

// crcExtras lists the CRC_EXTRA byte of every message the scanner accepts.
var crcExtras = map[uint32]byte{
	MsgIDHeartbeat: heartbeatCRCExtra,
}

// MAV_AUTOPILOT values this service cares to name.
const (
	AutopilotGeneric   byte = 0
	AutopilotArduPilot byte = 3
	AutopilotPX4       byte = 12
)

// MAV_TYPE values this service cares to name.
const (
	VehicleGeneric   byte = 0
	VehicleSubmarine byte = 12
)

// Heartbeat is the decoded HEARTBEAT payload.
type Heartbeat struct {
	CustomMode     uint32
	Type           byte
	Autopilot      byte
	BaseMode       byte
	SystemStatus   byte
	MavlinkVersion byte
}

// DecodeHeartbeat extracts the heartbeat from a frame. Version 2 frames may
// arrive with trailing zero bytes truncated; the payload is zero-extended
// back to its wire length before decoding, so short payloads are legal.
func DecodeHeartbeat(f *Frame) (*Heartbeat, error) {
	if f.MessageID != MsgIDHeartbeat {
		return nil, fmt.Errorf("message %d is not a heartbeat", f.MessageID)
	}
	if len(f.Payload) > heartbeatLen {
		return nil, fmt.Errorf("heartbeat payload %d bytes, want at most %d", len(f.Payload), heartbeatLen)
	}
	var payload [heartbeatLen]byte
	copy(payload[:], f.Payload)

	return &Heartbeat{
		CustomMode:     binary.LittleEndian.Uint32(payload[0:4]),
		Type:           payload[4],
		Autopilot:      payload[5],
		BaseMode:       payload[6],
		SystemStatus:   payload[7],
		MavlinkVersion: payload[8],
	}, nil
}

// Frame packs the heartbeat into a frame of the given version.
func (h *Heartbeat) Frame(version int, seq, systemID, componentID byte) *Frame {
	var payload [heartbeatLen]byte
	binary.LittleEndian.PutUint32(payload[0:4], h.CustomMode)
	payload[4] = h.Type
	payload[5] = h.Autopilot
	payload[6] = h.BaseMode
	payload[7] = h.SystemStatus
	payload[8] = h.MavlinkVersion

	return &Frame{
		Version:     version,
		SeqID:       seq,
		SystemID:    systemID,
		ComponentID: componentID,
		MessageID:   MsgIDHeartbeat,
		Payload:     payload[:],
	}
}

// Encode is a convenience wrapper that frames and serializes the heartbeat.
func (h *Heartbeat) Encode(version int, seq, systemID, componentID byte) ([]byte, error) {
	return h.Frame(version, seq, systemID, componentID).Encode(heartbeatCRCExtra)
}

// AutopilotName maps the autopilot enum to a readable name.
func (h *Heartbeat) AutopilotName() string {
	switch h.Autopilot {
	case AutopilotArduPilot:
		return "ArduPilot"
	case AutopilotPX4:
		return "PX4"
	default:
		return fmt.Sprintf("autopilot(%d)", h.Autopilot)
	}
}
