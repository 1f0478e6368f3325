package routing

import (
	"time"

	eb "thor-mesh/internal/eventBus"
	"thor-mesh/internal/packet"
)

// NeighbourInfo is the per-peer state learned from beacons. It never goes on
// the wire.
type NeighbourInfo struct {
	LastSeen            time.Time
	RSSI                int // dBm, typically -100..0
	HasInternetDirect   bool
	HasInternetIndirect bool
	IsVisited           bool // set when chosen as next hop, cleared on delivery evidence
}

// NeighbourStore upserts a neighbour. The whole entry is overwritten and
// LastSeen refreshed; the reserved ids 0 and the broadcast address are never
// stored.
func (e *Engine) NeighbourStore(nodeID uint32, rssi int, hasDirect, hasIndirect, visited bool) {
	if nodeID == 0 || nodeID == packet.BROADCAST_ADDR {
		return
	}
	e.neighbourTable[nodeID] = &NeighbourInfo{
		LastSeen:            e.now(),
		RSSI:                rssi,
		HasInternetDirect:   hasDirect,
		HasInternetIndirect: hasIndirect,
		IsVisited:           visited,
	}
	e.eventBus.Publish(eb.Event{
		Type: eb.EventNeighbourStored, NodeID: e.ownerID, OtherID: nodeID, RSSI: rssi,
	})
}

// RemoveOld drops every neighbour not heard from within the expiry window.
func (e *Engine) RemoveOld() {
	now := e.now()
	for id, info := range e.neighbourTable {
		if now.Sub(info.LastSeen) > neighbourExpiry {
			delete(e.neighbourTable, id)
			e.eventBus.Publish(eb.Event{
				Type: eb.EventNeighbourAged, NodeID: e.ownerID, OtherID: id,
			})
		}
	}
}

// Neighbour returns a copy of the stored entry, if any.
func (e *Engine) Neighbour(nodeID uint32) (NeighbourInfo, bool) {
	info, ok := e.neighbourTable[nodeID]
	if !ok {
		return NeighbourInfo{}, false
	}
	return *info, true
}

// NeighbourCount reports the current table size.
func (e *Engine) NeighbourCount() int {
	return len(e.neighbourTable)
}

// HasDirectInternetNeighbour reports whether any current neighbour is a
// gateway. Hosts use this to set the intneighbour bit in outgoing ACKs.
func (e *Engine) HasDirectInternetNeighbour() bool {
	for _, info := range e.neighbourTable {
		if info.HasInternetDirect {
			return true
		}
	}
	return false
}

func (e *Engine) markVisited(nodeID uint32) {
	if info, ok := e.neighbourTable[nodeID]; ok {
		info.IsVisited = true
	}
}
