package mavlink

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	MagicV1 byte = 0xFE
	MagicV2 byte = 0xFD

	// incompatFlagSigned marks a v2 frame carrying a 13-byte signature
	// after the checksum. Signed frames are framed and checksummed the
	// same way; the signature itself is ignored here.
	incompatFlagSigned byte = 0x01

	headerLenV1  = 6
	headerLenV2  = 10
	checksumLen  = 2
	signatureLen = 13

	maxPayloadLen = 255
)

// Frame is a decoded MAVLink frame, version 1 or 2.
type Frame struct {
	Version     int
	SeqID       byte
	SystemID    byte
	ComponentID byte
	MessageID   uint32
	Payload     []byte
}

// Encode serializes the frame. The message's CRC_EXTRA must match MessageID
// or no compliant receiver will accept the result. Version 2 frames are
// emitted unsigned and without payload truncation.
func (f *Frame) Encode(crcExtra byte) ([]byte, error) {
	if len(f.Payload) > maxPayloadLen {
		return nil, fmt.Errorf("payload %d bytes exceeds %d", len(f.Payload), maxPayloadLen)
	}

	buf := new(bytes.Buffer)
	switch f.Version {
	case 1:
		if f.MessageID > 0xFF {
			return nil, fmt.Errorf("message id %d does not fit a v1 frame", f.MessageID)
		}
		buf.WriteByte(MagicV1)
		buf.WriteByte(byte(len(f.Payload)))
		buf.WriteByte(f.SeqID)
		buf.WriteByte(f.SystemID)
		buf.WriteByte(f.ComponentID)
		buf.WriteByte(byte(f.MessageID))
		buf.Write(f.Payload)
	case 2:
		if f.MessageID > 0xFFFFFF {
			return nil, fmt.Errorf("message id %d does not fit a v2 frame", f.MessageID)
		}
		buf.WriteByte(MagicV2)
		buf.WriteByte(byte(len(f.Payload)))
		buf.WriteByte(0) // incompat flags
		buf.WriteByte(0) // compat flags
		buf.WriteByte(f.SeqID)
		buf.WriteByte(f.SystemID)
		buf.WriteByte(f.ComponentID)
		buf.WriteByte(byte(f.MessageID))
		buf.WriteByte(byte(f.MessageID >> 8))
		buf.WriteByte(byte(f.MessageID >> 16))
		buf.Write(f.Payload)
	default:
		return nil, fmt.Errorf("unsupported frame version %d", f.Version)
	}

	crc := Checksum(buf.Bytes()[1:], crcExtra)
	var ck [checksumLen]byte
	binary.LittleEndian.PutUint16(ck[:], crc)
	buf.Write(ck[:])
	return buf.Bytes(), nil
}

// Scanner extracts valid frames from a raw byte stream. Bytes that do not
// start a well-formed frame, frames with bad checksums and messages with no
// known CRC_EXTRA are skipped, so the scanner can be pointed at a noisy or
// half-synchronized link and will lock on by itself.
type Scanner struct {
	buf bytes.Buffer
}

func NewScanner() *Scanner {
	return &Scanner{}
}

// Feed appends raw bytes from the link.
func (s *Scanner) Feed(p []byte) {
	s.buf.Write(p)
}

// Next returns the next complete valid frame, or nil if the buffered bytes
// do not contain one yet.
func (s *Scanner) Next() *Frame {
	for {
		data := s.buf.Bytes()

		start := -1
		for i, b := range data {
			if b == MagicV1 || b == MagicV2 {
				start = i
				break
			}
		}
		if start < 0 {
			s.buf.Reset()
			return nil
		}
		if start > 0 {
			s.buf.Next(start)
			data = s.buf.Bytes()
		}

		frame, size := decodeFrame(data)
		if size == 0 {
			return nil
		}
		if frame == nil {
			// Bad frame. Drop only the magic byte: a real frame may
			// start inside what we just tried to decode.
			s.buf.Next(1)
			continue
		}
		s.buf.Next(size)
		return frame
	}
}

// decodeFrame tries to decode one frame at the start of data, which must
// begin with a magic byte. It returns (nil, 0) when more bytes are needed and
// (nil, -1) when the candidate is not a valid frame.
func decodeFrame(data []byte) (*Frame, int) {
	if len(data) < 2 {
		return nil, 0
	}
	payloadLen := int(data[1])

	switch data[0] {
	case MagicV1:
		total := headerLenV1 + payloadLen + checksumLen
		if len(data) < total {
			return nil, 0
		}
		msgID := uint32(data[5])
		if !verify(data[1:total-checksumLen], data[total-checksumLen:total], msgID) {
			return nil, -1
		}
		return &Frame{
			Version:     1,
			SeqID:       data[2],
			SystemID:    data[3],
			ComponentID: data[4],
			MessageID:   msgID,
			Payload:     append([]byte(nil), data[headerLenV1:headerLenV1+payloadLen]...),
		}, total

	case MagicV2:
		if len(data) < 3 {
			return nil, 0
		}
		total := headerLenV2 + payloadLen + checksumLen
		if data[2]&incompatFlagSigned != 0 {
			total += signatureLen
		}
		if data[2]&^incompatFlagSigned != 0 {
			// Unknown incompatibility flag: we must not interpret
			// this frame.
			return nil, -1
		}
		if len(data) < total {
			return nil, 0
		}
		crcEnd := headerLenV2 + payloadLen
		msgID := uint32(data[7]) | uint32(data[8])<<8 | uint32(data[9])<<16
		if !verify(data[1:crcEnd], data[crcEnd:crcEnd+checksumLen], msgID) {
			return nil, -1
		}
		return &Frame{
			Version:     2,
			SeqID:       data[4],
			SystemID:    data[5],
			ComponentID: data[6],
			MessageID:   msgID,
			Payload:     append([]byte(nil), data[headerLenV2:headerLenV2+payloadLen]...),
		}, total
	}
	return nil, -1
}

func verify(region, checksum []byte, msgID uint32) bool {
	crcExtra, known := crcExtras[msgID]
	if !known {
		return false
	}
	want := binary.LittleEndian.Uint16(checksum)
	return Checksum(region, crcExtra) == want
}
