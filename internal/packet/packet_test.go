package packet

import (
	"bytes"
	"testing"
)

func TestHeaderRoundtrip(t *testing.T) {
	h := Header{
		Type:          PKT_DATA,
		TTL:           15,
		IntNeighbour:  true,
		Visited:       true,
		MyInternet:    false,
		DestinationID: 9999,
		SenderID:      1,
		OriginID:      1,
		NextHopID:     2,
		Sequence:      42,
	}

	b := h.SerialiseHeader()
	if len(b) != HeaderSize {
		t.Fatalf("header size = %d, want %d", len(b), HeaderSize)
	}

	var h2 Header
	if err := h2.DeserialiseHeader(b); err != nil {
		t.Fatalf("deserialise: %v", err)
	}
	if h2 != h {
		t.Fatalf("headers differ: %#v vs %#v", h2, h)
	}
}

func TestHeaderWireLayout(t *testing.T) {
	h := Header{
		Type:          PKT_DATA,
		TTL:           5,
		IntNeighbour:  true,
		Visited:       false,
		MyInternet:    true,
		DestinationID: 0x04030201,
		SenderID:      0x08070605,
		OriginID:      0x0C0B0A09,
		NextHopID:     0x100F0E0D,
		Sequence:      0x14131211,
	}
	b := h.SerialiseHeader()

	if b[0] != PKT_DATA {
		t.Fatalf("type byte = 0x%02X", b[0])
	}
	// myInternet<<7 | visited<<6 | intneighbour<<5 | ttl
	if b[1] != 0x80|0x20|5 {
		t.Fatalf("flags byte = 0x%02X, want 0x%02X", b[1], 0x80|0x20|5)
	}
	want := []byte{
		0x01, 0x02, 0x03, 0x04, // destinationId LE
		0x05, 0x06, 0x07, 0x08, // senderId LE
		0x09, 0x0A, 0x0B, 0x0C, // originId LE
		0x0D, 0x0E, 0x0F, 0x10, // nextHopId LE
		0x11, 0x12, 0x13, 0x14, // sequence LE
	}
	if !bytes.Equal(b[2:], want) {
		t.Fatalf("id fields = % X, want % X", b[2:], want)
	}
}

func TestPacketRoundtrip(t *testing.T) {
	p := Packet{
		Header: Header{
			Type:          PKT_DATA,
			TTL:           15,
			DestinationID: 9999,
			SenderID:      1,
			OriginID:      1,
			Sequence:      1,
		},
		Payload: []byte("Help Me"),
	}

	b := p.Serialise()
	if len(b) != HeaderSize+len(p.Payload) {
		t.Fatalf("frame length = %d", len(b))
	}

	var p2 Packet
	if err := p2.Deserialise(b); err != nil {
		t.Fatalf("deserialise: %v", err)
	}
	if p2.Header != p.Header {
		t.Fatalf("headers differ: %#v vs %#v", p2.Header, p.Header)
	}
	if !bytes.Equal(p2.Payload, p.Payload) {
		t.Fatalf("payload = %q, want %q", p2.Payload, p.Payload)
	}

	// and the other direction: bytes -> packet -> bytes
	if !bytes.Equal(p2.Serialise(), b) {
		t.Fatalf("reserialised frame differs")
	}
}

func TestPacketNoPayload(t *testing.T) {
	p := Packet{Header: Header{Type: PKT_DATA, TTL: 3, SenderID: 7}}
	var p2 Packet
	if err := p2.Deserialise(p.Serialise()); err != nil {
		t.Fatalf("deserialise: %v", err)
	}
	if p2.Payload != nil {
		t.Fatalf("payload = %v, want nil", p2.Payload)
	}
}

func TestDeserialiseShortBuffer(t *testing.T) {
	var h Header
	if err := h.DeserialiseHeader(make([]byte, HeaderSize-1)); err == nil {
		t.Fatalf("expected error for %d-byte buffer", HeaderSize-1)
	}
	var p Packet
	if err := p.Deserialise(nil); err == nil {
		t.Fatalf("expected error for empty buffer")
	}
}

func TestDeserialiseUnknownType(t *testing.T) {
	b := make([]byte, HeaderSize)
	b[0] = 0x09
	var h Header
	if err := h.DeserialiseHeader(b); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}

func TestCreateHello(t *testing.T) {
	b := CreateHello(0, 2, 2, 10)
	var h Header
	if err := h.DeserialiseHeader(b); err != nil {
		t.Fatalf("deserialise: %v", err)
	}
	if h.Type != PKT_HELLO || h.TTL != 1 || h.NextHopID != BROADCAST_ADDR {
		t.Fatalf("bad hello header: %#v", h)
	}
	if h.MyInternet || h.Visited || h.IntNeighbour {
		t.Fatalf("hello flags must be clear: %#v", h)
	}
	if h.SenderID != 2 || h.OriginID != 2 || h.Sequence != 10 || h.DestinationID != 0 {
		t.Fatalf("bad hello ids: %#v", h)
	}
}

func TestCreateACK(t *testing.T) {
	b := CreateACK(1, 2, 2, 1, 11, false, true)
	var h Header
	if err := h.DeserialiseHeader(b); err != nil {
		t.Fatalf("deserialise: %v", err)
	}
	if h.Type != PKT_ACK || h.TTL != 1 || h.Visited {
		t.Fatalf("bad ack header: %#v", h)
	}
	if h.MyInternet || !h.IntNeighbour {
		t.Fatalf("bad ack capability bits: %#v", h)
	}
	if h.DestinationID != 1 || h.SenderID != 2 || h.NextHopID != 1 || h.Sequence != 11 {
		t.Fatalf("bad ack ids: %#v", h)
	}
}
