package routing

import (
	"time"

	eb "thor-mesh/internal/eventBus"
	"thor-mesh/internal/packet"
)

const (
	maxQueue        = 50               // pending DATA packets per node
	neighbourExpiry = 30 * time.Second // drop neighbours not heard from in this window
)

// Engine is the per-node THOR decision core. It owns the neighbour table and
// the pending queue exclusively and performs no I/O: bytes go in, bytes (or
// nothing) come out, and the host transmits whatever comes back. All methods
// are synchronous and must be serialised by the caller.
type Engine struct {
	ownerID        uint32
	neighbourTable map[uint32]*NeighbourInfo
	packetQueue    []packet.Packet

	now func() time.Time

	eventBus *eb.EventBus
}

// NewEngine constructs an engine for one node. bus may be nil.
func NewEngine(ownerID uint32, bus *eb.EventBus) *Engine {
	return &Engine{
		ownerID:        ownerID,
		neighbourTable: make(map[uint32]*NeighbourInfo),
		now:            time.Now,
		eventBus:       bus,
	}
}

// SetClock replaces the engine's time source. Tests use this to drive
// neighbour expiry without sleeping.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// OwnerID returns the node id this engine routes for.
func (e *Engine) OwnerID() uint32 {
	return e.ownerID
}

// HandleHello decodes a HELLO beacon header. The engine does not insert a
// neighbour here: capability bits and measured RSSI come from the radio
// layer, which follows up with NeighbourStore.
func (e *Engine) HandleHello(data []byte) (packet.Header, error) {
	var h packet.Header
	err := h.DeserialiseHeader(data)
	return h, err
}

// HandleAck decodes an ACK beacon header. The caller reads MyInternet and
// IntNeighbour off the result and stores the neighbour accordingly; that is
// the two-hop inference path.
func (e *Engine) HandleAck(data []byte) (packet.Header, error) {
	var h packet.Header
	err := h.DeserialiseHeader(data)
	return h, err
}

// SendPacket originates a DATA packet. If a next hop exists the serialised
// frame is returned for transmission; otherwise the packet is queued (or
// silently dropped when the queue is full) and nil is returned.
func (e *Engine) SendPacket(destID, senderID, originID, sequence uint32, payload []byte) []byte {
	p := packet.Packet{
		Header: packet.Header{
			Type:          packet.PKT_DATA,
			TTL:           packet.DATA_TTL,
			DestinationID: destID,
			SenderID:      senderID,
			OriginID:      originID,
			NextHopID:     0,
			Sequence:      sequence,
		},
		Payload: payload,
	}

	bestHop := e.GetBestNextHop()
	if bestHop != 0 {
		e.markVisited(bestHop)
		p.Header.NextHopID = bestHop
		p.Header.Visited = true
		e.eventBus.Publish(eb.Event{
			Type: eb.EventPacketSent, NodeID: e.ownerID, OtherID: bestHop,
			Sequence: sequence, TTL: p.Header.TTL,
		})
		return p.Serialise()
	}

	e.enqueue(p)
	return nil
}

// HandleData processes a received DATA frame. It returns the frame to
// transmit towards the chosen next hop, or nil when the packet was dropped,
// delivered locally, or queued. On local delivery the payload is handed back
// through the second return so the host can consume it.
func (e *Engine) HandleData(data []byte, myNodeID uint32) ([]byte, *packet.Packet) {
	var p packet.Packet
	if err := p.Deserialise(data); err != nil {
		return nil, nil
	}

	if p.Header.TTL <= 1 {
		e.eventBus.Publish(eb.Event{
			Type: eb.EventTTLExpired, NodeID: myNodeID,
			OtherID: p.Header.OriginID, Sequence: p.Header.Sequence,
		})
		return nil, nil
	}

	if p.Header.DestinationID == myNodeID {
		e.eventBus.Publish(eb.Event{
			Type: eb.EventDelivered, NodeID: myNodeID,
			OtherID: p.Header.OriginID, Sequence: p.Header.Sequence,
			TTL: p.Header.TTL, Payload: string(p.Payload),
		})
		return nil, &p
	}

	p.Header.TTL--

	bestHop := e.GetBestNextHop()
	if bestHop != 0 {
		e.markVisited(bestHop)
		p.Header.NextHopID = bestHop
		p.Header.Visited = true
		e.eventBus.Publish(eb.Event{
			Type: eb.EventPacketForwarded, NodeID: myNodeID, OtherID: bestHop,
			Sequence: p.Header.Sequence, TTL: p.Header.TTL,
		})
		return p.Serialise(), nil
	}

	e.enqueue(p)
	return nil, nil
}

// ProcessQueue retries every queued packet against the current neighbour
// table. The whole batch targets one hop; if no hop qualifies the queue is
// left untouched. Frames come out in the order they were queued.
func (e *Engine) ProcessQueue() [][]byte {
	if len(e.packetQueue) == 0 {
		return nil
	}

	bestHop := e.GetBestNextHop()
	if bestHop == 0 {
		return nil
	}

	e.markVisited(bestHop)

	batch := make([][]byte, 0, len(e.packetQueue))
	for i := range e.packetQueue {
		e.packetQueue[i].Header.NextHopID = bestHop
		e.packetQueue[i].Header.Visited = true
		batch = append(batch, e.packetQueue[i].Serialise())
	}
	e.packetQueue = e.packetQueue[:0]

	e.eventBus.Publish(eb.Event{
		Type: eb.EventQueueFlushed, NodeID: e.ownerID, OtherID: bestHop,
	})
	return batch
}

// QueueLen reports the number of packets waiting for a route.
func (e *Engine) QueueLen() int {
	return len(e.packetQueue)
}

func (e *Engine) enqueue(p packet.Packet) {
	if len(e.packetQueue) >= maxQueue {
		e.eventBus.Publish(eb.Event{
			Type: eb.EventQueueOverflow, NodeID: e.ownerID, Sequence: p.Header.Sequence,
		})
		return
	}
	e.packetQueue = append(e.packetQueue, p)
	e.eventBus.Publish(eb.Event{
		Type: eb.EventPacketQueued, NodeID: e.ownerID, Sequence: p.Header.Sequence,
	})
}
