package node

import (
	"log"
	"sync"
	"time"

	eb "thor-mesh/internal/eventBus"
	"thor-mesh/internal/mesh"
	"thor-mesh/internal/packet"
	"thor-mesh/internal/routing"
)

const (
	helloInterval       = 5 * time.Second
	maintenanceInterval = 1 * time.Second // RemoveOld + ProcessQueue cadence
)

// Uplink hands locally delivered payloads to the internet. Gateway nodes get
// one; everyone else leaves it nil.
type Uplink interface {
	Publish(nodeID, originID, sequence uint32, ttl uint8, payload []byte) error
}

// nodeImpl is the host wrapper around the routing engine: it owns the radio
// side (beaconing, ACK replies, RSSI measurements) and the timers the engine
// itself deliberately does not run.
type nodeImpl struct {
	id          uint32
	coordinates mesh.Coordinates
	frames      chan mesh.ReceivedFrame
	quit        chan struct{}

	hasInternet bool
	uplink      Uplink

	mu     sync.Mutex // serialises engine access; the engine itself is not thread-safe
	engine *routing.Engine
	seq    uint32

	eventBus *eb.EventBus
}

// NewNode creates a node at the given position. gateway marks it as having
// direct internet.
func NewNode(id uint32, lat, long float64, gateway bool, bus *eb.EventBus) mesh.INode {
	log.Printf("[sim] Created new node ID: %d, x: %f, y: %f, gateway: %v", id, lat, long, gateway)
	return &nodeImpl{
		id:          id,
		coordinates: mesh.CreateCoordinates(lat, long),
		frames:      make(chan mesh.ReceivedFrame, 20),
		quit:        make(chan struct{}),
		hasInternet: gateway,
		engine:      routing.NewEngine(id, bus),
		eventBus:    bus,
	}
}

// SetUplink attaches an internet bridge. Only meaningful on gateways.
func (n *nodeImpl) SetUplink(u Uplink) {
	n.uplink = u
}

func (n *nodeImpl) GetID() uint32 {
	return n.id
}

func (n *nodeImpl) HasInternet() bool {
	return n.hasInternet
}

// Engine exposes the decision core, for inspection from tests and commands.
func (n *nodeImpl) Engine() *routing.Engine {
	return n.engine
}

// Run is the main goroutine for the node: incoming frames, beacon cadence,
// and the 1 Hz maintenance tick driving neighbour expiry and queue flush.
func (n *nodeImpl) Run(net mesh.INetwork) {
	log.Printf("Node %d: started.\n", n.id)
	defer log.Printf("Node %d: stopped.\n", n.id)

	helloTick := time.NewTicker(helloInterval)
	defer helloTick.Stop()
	maintTick := time.NewTicker(maintenanceInterval)
	defer maintTick.Stop()

	for {
		select {
		case rx := <-n.frames:
			n.HandleFrame(net, rx.Data, rx.RSSI)
		case <-helloTick.C:
			n.SendHello(net)
		case <-maintTick.C:
			n.maintain(net)
		case <-n.quit:
			return
		}
	}
}

// SendHello broadcasts a HELLO beacon announcing the node's presence.
func (n *nodeImpl) SendHello(net mesh.INetwork) {
	n.mu.Lock()
	n.seq++
	frame := packet.CreateHello(0, n.id, n.id, n.seq)
	n.mu.Unlock()
	net.BroadcastFrame(frame, n)
}

// SendData originates a DATA packet towards destID. If no hop is known yet
// the engine queues it and a later maintenance tick retries.
func (n *nodeImpl) SendData(net mesh.INetwork, destID uint32, payload string) {
	n.mu.Lock()
	n.seq++
	frame := n.engine.SendPacket(destID, n.id, n.id, n.seq, []byte(payload))
	n.mu.Unlock()

	if frame == nil {
		log.Printf("[sim] Node %d: no route for %d, packet queued.\n", n.id, destID)
		return
	}
	net.BroadcastFrame(frame, n)
}

// HandleFrame processes one received frame with its measured RSSI.
func (n *nodeImpl) HandleFrame(net mesh.INetwork, frame []byte, rssi int) {
	var h packet.Header
	if err := h.DeserialiseHeader(frame); err != nil {
		log.Printf("Node %d: failed to deserialise header: %v", n.id, err)
		return
	}

	switch h.Type {
	case packet.PKT_HELLO:
		n.handleHello(net, frame, rssi)
	case packet.PKT_ACK:
		if h.NextHopID == n.id || h.DestinationID == n.id {
			n.handleAck(frame, rssi)
		}
	case packet.PKT_DATA:
		// Everyone in range hears the frame; only the chosen hop (or the
		// destination itself) acts on it.
		if h.NextHopID == n.id || h.DestinationID == n.id {
			n.handleData(net, frame)
		}
	default:
		log.Printf("Node %d: unknown packet type %d from %d\n", n.id, h.Type, h.SenderID)
	}
}

// handleHello stores the sender with the measured RSSI and answers with an
// ACK carrying this node's internet capability bits.
func (n *nodeImpl) handleHello(net mesh.INetwork, frame []byte, rssi int) {
	n.mu.Lock()
	h, err := n.engine.HandleHello(frame)
	if err != nil {
		n.mu.Unlock()
		log.Printf("Node %d: bad HELLO: %v", n.id, err)
		return
	}

	// A HELLO says nothing about capabilities; keep whatever the last ACK
	// taught us and refresh signal strength and lastSeen only.
	prev, known := n.engine.Neighbour(h.SenderID)
	n.engine.NeighbourStore(h.SenderID, rssi,
		known && prev.HasInternetDirect,
		known && prev.HasInternetIndirect,
		known && prev.IsVisited)

	n.seq++
	ack := packet.CreateACK(h.SenderID, n.id, n.id, h.SenderID, h.Sequence+1,
		n.hasInternet, n.engine.HasDirectInternetNeighbour())
	n.mu.Unlock()

	log.Printf("[sim] Node %d: HELLO from %d (rssi %d), sending ACK.\n", n.id, h.SenderID, rssi)
	net.BroadcastFrame(ack, n)
}

// handleAck runs the two-hop inference: the sender's myInternet bit makes it
// a direct-internet neighbour, its intneighbour bit an indirect one. An ACK
// from a gateway is delivery evidence, so the visited mark is cleared.
func (n *nodeImpl) handleAck(frame []byte, rssi int) {
	n.mu.Lock()
	defer n.mu.Unlock()

	h, err := n.engine.HandleAck(frame)
	if err != nil {
		log.Printf("Node %d: bad ACK: %v", n.id, err)
		return
	}

	visited := false
	if !h.MyInternet {
		if prev, known := n.engine.Neighbour(h.SenderID); known {
			visited = prev.IsVisited
		}
	}
	n.engine.NeighbourStore(h.SenderID, rssi, h.MyInternet, h.IntNeighbour, visited)
	log.Printf("[sim] Node %d: ACK from %d (internet=%v, intneighbour=%v).\n",
		n.id, h.SenderID, h.MyInternet, h.IntNeighbour)
}

func (n *nodeImpl) handleData(net mesh.INetwork, frame []byte) {
	n.mu.Lock()
	out, delivered := n.engine.HandleData(frame, n.id)
	n.mu.Unlock()

	if delivered != nil {
		log.Printf("[sim] Node %d: delivered payload %q from %d.\n",
			n.id, delivered.Payload, delivered.Header.OriginID)
		if n.uplink != nil {
			if err := n.uplink.Publish(n.id, delivered.Header.OriginID,
				delivered.Header.Sequence, delivered.Header.TTL, delivered.Payload); err != nil {
				log.Printf("Node %d: uplink publish failed: %v", n.id, err)
			} else {
				n.eventBus.Publish(eb.Event{
					Type: eb.EventUplinked, NodeID: n.id,
					OtherID: delivered.Header.OriginID, Sequence: delivered.Header.Sequence,
				})
			}
		}
		return
	}

	if out != nil {
		net.BroadcastFrame(out, n)
	}
}

// maintain runs the host-controlled cadence from a 1 Hz ticker: expire stale
// neighbours, then retry the pending queue.
func (n *nodeImpl) maintain(net mesh.INetwork) {
	n.mu.Lock()
	n.engine.RemoveOld()
	batch := n.engine.ProcessQueue()
	n.mu.Unlock()

	if len(batch) > 0 {
		log.Printf("[sim] Node %d: flushing %d queued packet(s).\n", n.id, len(batch))
		for _, frame := range batch {
			net.BroadcastFrame(frame, n)
		}
	}
}

func (n *nodeImpl) GetFrameChan() chan mesh.ReceivedFrame {
	return n.frames
}

func (n *nodeImpl) GetQuitChan() chan struct{} {
	return n.quit
}

func (n *nodeImpl) GetPosition() mesh.Coordinates {
	return n.coordinates
}

func (n *nodeImpl) SetPosition(coord mesh.Coordinates) {
	n.coordinates = coord
}
