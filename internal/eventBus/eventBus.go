package eventBus

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventNodeJoined      EventType = "NODE_JOINED"
	EventNodeLeft        EventType = "NODE_LEFT"
	EventNeighbourStored EventType = "NEIGHBOUR_STORED"
	EventNeighbourAged   EventType = "NEIGHBOUR_AGED"
	EventPacketSent      EventType = "PACKET_SENT"
	EventPacketForwarded EventType = "PACKET_FORWARDED"
	EventPacketQueued    EventType = "PACKET_QUEUED"
	EventQueueFlushed    EventType = "QUEUE_FLUSHED"
	EventQueueOverflow   EventType = "QUEUE_OVERFLOW"
	EventTTLExpired      EventType = "TTL_EXPIRED"
	EventDelivered       EventType = "DELIVERED"
	EventUplinked        EventType = "UPLINKED"
)

// Event holds details that the front end and the metrics collector need.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Type      EventType `json:"type"`
	NodeID    uint32    `json:"node_id"`
	OtherID   uint32    `json:"other_id,omitempty"` // next hop, neighbour, or origin depending on Type
	Sequence  uint32    `json:"sequence,omitempty"`
	TTL       uint8     `json:"ttl,omitempty"`
	RSSI      int       `json:"rssi,omitempty"`
	Payload   string    `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventBus manages a set of subscribers and publishes events to them.
type EventBus struct {
	subscribers []chan Event
	mu          sync.RWMutex
}

// NewEventBus creates a new EventBus instance.
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make([]chan Event, 0),
	}
}

// Publish sends an event to all subscribers. Safe to call on a nil bus so
// that engine code can run without observability wired up.
func (eb *EventBus) Publish(e Event) {
	if eb == nil {
		return
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	for _, sub := range eb.subscribers {
		// Use a non-blocking send in case a subscriber is busy.
		select {
		case sub <- e:
		default:
			log.Println("Dropping event: subscriber channel is full")
		}
	}
}

// Subscribe returns a new channel that will receive published events.
func (eb *EventBus) Subscribe() chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	ch := make(chan Event, 100)
	eb.subscribers = append(eb.subscribers, ch)
	return ch
}
