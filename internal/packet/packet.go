package packet

import (
	"encoding/binary"
	"fmt"
)

// Packet Types
const (
	PKT_HELLO uint8 = 0x01 //1
	PKT_ACK   uint8 = 0x02 //2
	PKT_DATA  uint8 = 0x03 //3
)

const (
	HeaderSize = 22 // bytes on the wire, fits a BLE characteristic write

	BROADCAST_ADDR uint32 = 0xFFFFFFFF // everyone hears; nextHopId of HELLO frames

	MAX_TTL    uint8 = 31 // 5-bit field
	DATA_TTL   uint8 = 15 // initial ttl of originated DATA
	BEACON_TTL uint8 = 1  // HELLO/ACK never travel more than one hop
)

// flagsAndTTL bit layout (offset 1 in the header):
//
//	bit 7     myInternet
//	bit 6     visited
//	bit 5     intNeighbour
//	bits 0..4 ttl
const (
	flagMyInternet   = 0x80
	flagVisited      = 0x40
	flagIntNeighbour = 0x20
	ttlMask          = 0x1F
)

// Header is the fixed 22-byte THOR wire header. Multi-byte fields are
// little-endian on the wire.
type Header struct {
	Type          uint8
	TTL           uint8 // 0..31
	IntNeighbour  bool  // sender has a neighbour with direct internet
	Visited       bool  // packet already routed via a marked hop
	MyInternet    bool  // sender itself has direct internet
	DestinationID uint32
	SenderID      uint32
	OriginID      uint32
	NextHopID     uint32 // 0 = unset, BROADCAST_ADDR in HELLO
	Sequence      uint32
}

// Packet is a header plus an opaque payload. There is no length field; the
// payload runs to the end of the frame.
type Packet struct {
	Header  Header
	Payload []byte
}

func packFlags(h *Header) uint8 {
	b := h.TTL & ttlMask
	if h.IntNeighbour {
		b |= flagIntNeighbour
	}
	if h.Visited {
		b |= flagVisited
	}
	if h.MyInternet {
		b |= flagMyInternet
	}
	return b
}

func unpackFlags(h *Header, b uint8) {
	h.TTL = b & ttlMask
	h.IntNeighbour = b&flagIntNeighbour != 0
	h.Visited = b&flagVisited != 0
	h.MyInternet = b&flagMyInternet != 0
}

func validType(t uint8) bool {
	return t == PKT_HELLO || t == PKT_ACK || t == PKT_DATA
}

func (h *Header) SerialiseHeader() []byte {
	buf := make([]byte, HeaderSize)
	buf[0] = h.Type
	buf[1] = packFlags(h)
	binary.LittleEndian.PutUint32(buf[2:6], h.DestinationID)
	binary.LittleEndian.PutUint32(buf[6:10], h.SenderID)
	binary.LittleEndian.PutUint32(buf[10:14], h.OriginID)
	binary.LittleEndian.PutUint32(buf[14:18], h.NextHopID)
	binary.LittleEndian.PutUint32(buf[18:22], h.Sequence)
	return buf
}

func (h *Header) DeserialiseHeader(buf []byte) error {
	if len(buf) < HeaderSize {
		return fmt.Errorf("buffer too short for Header: need %d, got %d", HeaderSize, len(buf))
	}
	if !validType(buf[0]) {
		return fmt.Errorf("unknown packet type 0x%02X", buf[0])
	}
	h.Type = buf[0]
	unpackFlags(h, buf[1])
	h.DestinationID = binary.LittleEndian.Uint32(buf[2:6])
	h.SenderID = binary.LittleEndian.Uint32(buf[6:10])
	h.OriginID = binary.LittleEndian.Uint32(buf[10:14])
	h.NextHopID = binary.LittleEndian.Uint32(buf[14:18])
	h.Sequence = binary.LittleEndian.Uint32(buf[18:22])
	return nil
}

// Serialise concatenates the header and payload into one frame.
func (p *Packet) Serialise() []byte {
	buf := make([]byte, 0, HeaderSize+len(p.Payload))
	buf = append(buf, p.Header.SerialiseHeader()...)
	buf = append(buf, p.Payload...)
	return buf
}

// Deserialise splits a frame into header and payload. The payload is copied,
// so the caller may reuse buf.
func (p *Packet) Deserialise(buf []byte) error {
	if err := p.Header.DeserialiseHeader(buf); err != nil {
		return err
	}
	if len(buf) > HeaderSize {
		p.Payload = append([]byte(nil), buf[HeaderSize:]...)
	} else {
		p.Payload = nil
	}
	return nil
}

// CreateHello builds a one-hop HELLO beacon addressed to everyone. All flag
// bits are clear; capability bits travel in ACKs, not HELLOs.
func CreateHello(destID, senderID, originID, sequence uint32) []byte {
	h := Header{
		Type:          PKT_HELLO,
		TTL:           BEACON_TTL,
		DestinationID: destID,
		SenderID:      senderID,
		OriginID:      originID,
		NextHopID:     BROADCAST_ADDR,
		Sequence:      sequence,
	}
	return h.SerialiseHeader()
}

// CreateACK builds a one-hop ACK carrying the sender's internet capability
// bits. nextHopID is the senderId of the HELLO being answered.
func CreateACK(destID, senderID, originID, nextHopID, sequence uint32, myInternet, intNeighbour bool) []byte {
	h := Header{
		Type:          PKT_ACK,
		TTL:           BEACON_TTL,
		MyInternet:    myInternet,
		IntNeighbour:  intNeighbour,
		DestinationID: destID,
		SenderID:      senderID,
		OriginID:      originID,
		NextHopID:     nextHopID,
		Sequence:      sequence,
	}
	return h.SerialiseHeader()
}
