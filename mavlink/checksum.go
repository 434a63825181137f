// Package mavlink implements just enough MAVLink framing to recognize a live
// autopilot on a link: frame encode/decode for v1 and v2 and the HEARTBEAT
// message. It is deliberately not a dialect library.
package mavlink

// X.25 checksum (CRC-16/MCRF4XX) as used by MAVLink. The checksummed region
// starts after the magic byte and ends before the checksum itself; the
// message's CRC_EXTRA byte is accumulated last.

const crcInit uint16 = 0xFFFF

func crcAccumulate(b byte, crc uint16) uint16 {
	tmp := b ^ byte(crc&0xFF)
	tmp ^= tmp << 4
	return (crc >> 8) ^ (uint16(tmp) << 8) ^ (uint16(tmp) << 3) ^ (uint16(tmp) >> 4)
}

// Checksum computes the frame checksum over the given region with the
// message's CRC_EXTRA appended.
func Checksum(region []byte, crcExtra byte) uint16 {
	crc := crcInit
	for _, b := range region {
		crc = crcAccumulate(b, crc)
	}
	return crcAccumulate(crcExtra, crc)
}
