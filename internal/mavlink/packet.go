// Package mavlink implements incremental framing of MAVLink v2 packets
// over byte streams and datagrams.
package mavlink

import (
	"fmt"
	"time"
)

// StartByteV2 is the MAVLink v2 frame magic byte.
const StartByteV2 = 0xFD

// StartByteV1 marks a MAVLink v1 frame, rejected by this router.
const StartByteV1 = 0xFE

// HeaderLen is the length of a v2 header including the magic byte:
// magic, len, incompat, compat, seq, sysid, compid, msgid(3).
const HeaderLen = 10

// CRCLen is the trailing checksum length.
const CRCLen = 2

// SignatureLen is the optional trailing signature length.
const SignatureLen = 13

// IncompatFlagSigned marks a frame as carrying a trailing signature.
const IncompatFlagSigned = 0x01

// MaxFrameLen is the largest possible v2 frame (header + 255B payload + crc + signature).
const MaxFrameLen = HeaderLen + 255 + CRCLen + SignatureLen

// Header exposes the identifying fields of a MAVLink v2 frame.
type Header struct {
	SystemID    uint8
	ComponentID uint8
	MessageID   uint32
	Sequence    uint8
}

// Packet is an immutable owner of raw MAVLink v2 frame bytes.
type Packet struct {
	raw []byte
}

// NewPacket wraps raw bytes as a Packet. raw must already contain exactly
// one complete, well-formed v2 frame; NewPacket does not validate it.
func NewPacket(raw []byte) Packet {
	return Packet{raw: raw}
}

// RawBytes returns the frame's wire bytes.
func (p Packet) RawBytes() []byte {
	return p.raw
}

// Len reports the frame length in bytes.
func (p Packet) Len() int {
	return len(p.raw)
}

// Header decodes the frame's header fields.
func (p Packet) Header() Header {
	if len(p.raw) < HeaderLen {
		return Header{}
	}
	return Header{
		SystemID:    p.raw[5],
		ComponentID: p.raw[6],
		MessageID:   uint32(p.raw[7]) | uint32(p.raw[8])<<8 | uint32(p.raw[9])<<16,
		Sequence:    p.raw[4],
	}
}

func (p Packet) String() string {
	h := p.Header()
	return fmt.Sprintf("Packet{sys=%d comp=%d msg=%d seq=%d len=%d}", h.SystemID, h.ComponentID, h.MessageID, h.Sequence, len(p.raw))
}

// Protocol is the unit exchanged on the bus: a Packet annotated with the
// identity of its ingress driver/peer and an ingress timestamp.
type Protocol struct {
	Origin    string
	Timestamp int64 // microseconds, UTC
	packet    Packet
}

// NewProtocol stamps packet with the current time as its ingress timestamp.
func NewProtocol(origin string, packet Packet) *Protocol {
	return &Protocol{
		Origin:    origin,
		Timestamp: time.Now().UTC().UnixMicro(),
		packet:    packet,
	}
}

// NewProtocolWithTimestamp builds a Protocol with an explicit timestamp,
// used by tests and by drivers replaying captured traffic.
func NewProtocolWithTimestamp(timestamp int64, origin string, packet Packet) *Protocol {
	return &Protocol{Origin: origin, Timestamp: timestamp, packet: packet}
}

// RawBytes returns the underlying packet's wire bytes.
func (p *Protocol) RawBytes() []byte {
	return p.packet.RawBytes()
}

// Header returns the underlying packet's header.
func (p *Protocol) Header() Header {
	return p.packet.Header()
}

// Packet returns the underlying immutable packet.
func (p *Protocol) Packet() Packet {
	return p.packet
}
