package routing

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"thor-mesh/internal/packet"
)

func TestSendPacketQueuesWithoutNeighbours(t *testing.T) {
	e := NewEngine(1, nil)
	out := e.SendPacket(9999, 1, 1, 1, []byte("Help Me"))
	if out != nil {
		t.Fatalf("expected nil, got %d bytes", len(out))
	}
	if e.QueueLen() != 1 {
		t.Fatalf("queue len = %d, want 1", e.QueueLen())
	}
}

func TestQueueFlushAfterNeighbourLearned(t *testing.T) {
	e := NewEngine(1, nil)
	if out := e.SendPacket(9999, 1, 1, 1, []byte("Help Me")); out != nil {
		t.Fatalf("expected queueing, got bytes")
	}

	// Two-hop inference: the host decoded an ACK with intneighbour=1 and
	// stores node 2 as indirect-internet.
	e.NeighbourStore(2, -65, false, true, false)

	batch := e.ProcessQueue()
	if len(batch) != 1 {
		t.Fatalf("batch len = %d, want 1", len(batch))
	}

	var p packet.Packet
	if err := p.Deserialise(batch[0]); err != nil {
		t.Fatalf("deserialise: %v", err)
	}
	h := p.Header
	if h.Type != packet.PKT_DATA || h.DestinationID != 9999 || h.SenderID != 1 {
		t.Fatalf("bad flushed header: %#v", h)
	}
	if h.NextHopID != 2 || h.TTL != 15 || !h.Visited {
		t.Fatalf("bad routing fields: %#v", h)
	}
	if !bytes.Equal(p.Payload, []byte("Help Me")) {
		t.Fatalf("payload = %q", p.Payload)
	}

	if e.QueueLen() != 0 {
		t.Fatalf("queue not cleared")
	}
	info, _ := e.Neighbour(2)
	if !info.IsVisited {
		t.Fatalf("chosen hop not marked visited")
	}
}

func TestForwardDecrementsTTL(t *testing.T) {
	a := NewEngine(1, nil)
	a.NeighbourStore(2, -65, false, true, false)
	frame := a.SendPacket(9999, 1, 1, 1, []byte("Help Me"))
	if frame == nil {
		t.Fatalf("expected immediate send")
	}

	b := NewEngine(2, nil)
	b.NeighbourStore(3, -72, true, false, false)
	out, delivered := b.HandleData(frame, 2)
	if delivered != nil {
		t.Fatalf("unexpected local delivery")
	}
	if out == nil {
		t.Fatalf("expected forward")
	}

	var h packet.Header
	if err := h.DeserialiseHeader(out); err != nil {
		t.Fatalf("deserialise: %v", err)
	}
	if h.NextHopID != 3 || h.TTL != 14 || !h.Visited {
		t.Fatalf("bad forwarded header: %#v", h)
	}
	if h.OriginID != 1 || h.SenderID != 1 {
		t.Fatalf("forwarder rewrote origin/sender: %#v", h)
	}
}

func TestDestinationConsumedLocally(t *testing.T) {
	a := NewEngine(1, nil)
	a.NeighbourStore(2, -65, false, true, false)
	frame := a.SendPacket(2, 1, 1, 1, []byte("hi"))

	b := NewEngine(2, nil)
	b.NeighbourStore(3, -72, true, false, false)
	out, delivered := b.HandleData(frame, 2)
	if out != nil {
		t.Fatalf("destination must not forward")
	}
	if delivered == nil || !bytes.Equal(delivered.Payload, []byte("hi")) {
		t.Fatalf("payload not handed off: %#v", delivered)
	}
	if b.QueueLen() != 0 {
		t.Fatalf("delivery must not queue")
	}
}

func TestTTLExhaustionDrops(t *testing.T) {
	p := packet.Packet{
		Header: packet.Header{
			Type: packet.PKT_DATA, TTL: 1,
			DestinationID: 9999, SenderID: 5, OriginID: 5, Sequence: 1,
		},
		Payload: []byte("x"),
	}

	e := NewEngine(2, nil)
	e.NeighbourStore(3, -72, true, false, false)
	out, delivered := e.HandleData(p.Serialise(), 2)
	if out != nil || delivered != nil {
		t.Fatalf("ttl=1 frame must be dropped")
	}
	if e.QueueLen() != 0 {
		t.Fatalf("ttl drop must not queue")
	}
}

func TestHandleDataDecodeFailure(t *testing.T) {
	e := NewEngine(2, nil)
	out, delivered := e.HandleData([]byte{0x01, 0x02}, 2)
	if out != nil || delivered != nil {
		t.Fatalf("short frame must be rejected")
	}
}

func TestQueueCap(t *testing.T) {
	e := NewEngine(1, nil)
	for i := 0; i < maxQueue; i++ {
		if out := e.SendPacket(9999, 1, 1, uint32(i), []byte("x")); out != nil {
			t.Fatalf("unexpected send at %d", i)
		}
	}
	if e.QueueLen() != maxQueue {
		t.Fatalf("queue len = %d, want %d", e.QueueLen(), maxQueue)
	}

	// 51st is dropped silently
	if out := e.SendPacket(9999, 1, 1, 50, []byte("x")); out != nil {
		t.Fatalf("overflow packet must not be sent")
	}
	if e.QueueLen() != maxQueue {
		t.Fatalf("queue grew past cap: %d", e.QueueLen())
	}
}

func TestFlushIsFIFOAndSingleHop(t *testing.T) {
	e := NewEngine(1, nil)
	for i := 0; i < 5; i++ {
		e.SendPacket(9999, 1, 1, uint32(i), []byte(fmt.Sprintf("m%d", i)))
	}
	e.NeighbourStore(2, -65, false, true, false)

	batch := e.ProcessQueue()
	if len(batch) != 5 {
		t.Fatalf("batch len = %d, want 5", len(batch))
	}
	for i, frame := range batch {
		var p packet.Packet
		if err := p.Deserialise(frame); err != nil {
			t.Fatalf("deserialise %d: %v", i, err)
		}
		if p.Header.Sequence != uint32(i) {
			t.Fatalf("batch out of order: got seq %d at %d", p.Header.Sequence, i)
		}
		if p.Header.NextHopID != 2 {
			t.Fatalf("batch split across hops: %d", p.Header.NextHopID)
		}
	}
}

func TestProcessQueueKeepsPacketsWithoutRoute(t *testing.T) {
	e := NewEngine(1, nil)
	e.SendPacket(9999, 1, 1, 1, []byte("x"))
	if batch := e.ProcessQueue(); batch != nil {
		t.Fatalf("expected nil batch with no neighbours")
	}
	if e.QueueLen() != 1 {
		t.Fatalf("queue must be retained")
	}
}

func TestNeighbourExpiry(t *testing.T) {
	e := NewEngine(1, nil)
	now := time.Unix(1000, 0)
	e.SetClock(func() time.Time { return now })

	e.NeighbourStore(2, -65, false, false, false)
	e.NeighbourStore(3, -70, true, false, false)

	now = now.Add(20 * time.Second)
	e.NeighbourStore(3, -70, true, false, false) // refresh only node 3

	now = now.Add(11 * time.Second) // node 2 is now 31s stale, node 3 11s
	e.RemoveOld()

	if _, ok := e.Neighbour(2); ok {
		t.Fatalf("stale neighbour survived RemoveOld")
	}
	if _, ok := e.Neighbour(3); !ok {
		t.Fatalf("fresh neighbour removed")
	}
}

func TestNeighbourStoreRejectsReservedIDs(t *testing.T) {
	e := NewEngine(1, nil)
	e.NeighbourStore(0, -65, false, false, false)
	e.NeighbourStore(packet.BROADCAST_ADDR, -65, false, false, false)
	if e.NeighbourCount() != 0 {
		t.Fatalf("reserved ids stored")
	}
}

func TestTwoHopInferencePromotesNeighbour(t *testing.T) {
	a := NewEngine(1, nil)
	if hop := a.GetBestNextHop(); hop != 0 {
		t.Fatalf("hop = %d before discovery, want 0", hop)
	}

	// Node 2 ACKs with intneighbour=1, myInternet=0.
	ack := packet.CreateACK(1, 2, 2, 1, 11, false, true)
	h, err := a.HandleAck(ack)
	if err != nil {
		t.Fatalf("handle ack: %v", err)
	}
	if h.MyInternet || !h.IntNeighbour {
		t.Fatalf("bad decoded capability bits: %#v", h)
	}

	// Host maps intneighbour to indirect internet.
	a.NeighbourStore(h.SenderID, -65, h.MyInternet, h.IntNeighbour, false)
	if hop := a.GetBestNextHop(); hop != 2 {
		t.Fatalf("hop = %d after inference, want 2", hop)
	}
}

func TestHandleHelloDoesNotInsertNeighbour(t *testing.T) {
	e := NewEngine(1, nil)
	hello := packet.CreateHello(0, 2, 2, 10)
	h, err := e.HandleHello(hello)
	if err != nil {
		t.Fatalf("handle hello: %v", err)
	}
	if h.SenderID != 2 || h.NextHopID != packet.BROADCAST_ADDR {
		t.Fatalf("bad hello header: %#v", h)
	}
	if e.NeighbourCount() != 0 {
		t.Fatalf("hello must not insert a neighbour; that is the host's call")
	}
}

func TestBacktrackResetReenablesNeighbour(t *testing.T) {
	e := NewEngine(2, nil)
	e.NeighbourStore(3, -72, true, false, false)
	e.SendPacket(9999, 2, 2, 1, []byte("x"))

	info, _ := e.Neighbour(3)
	if !info.IsVisited {
		t.Fatalf("hop not marked visited after send")
	}

	// Delivery evidence: ACK from 3 with myInternet=1; host re-stores with
	// visited=false.
	e.NeighbourStore(3, -72, true, false, false)
	info, _ = e.Neighbour(3)
	if info.IsVisited {
		t.Fatalf("visited bit not cleared by backtrack reset")
	}
}
