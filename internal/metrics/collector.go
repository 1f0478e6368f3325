package metrics

import (
	"encoding/json"
	"os"
	"sync"

	eb "thor-mesh/internal/eventBus"
)

// Global is set by the batch entry point; nil-safe methods let library code
// record unconditionally.
var Global *Collector

type Counters struct {
	TotalSent      uint64 `json:"total_sent"`
	TotalForwarded uint64 `json:"total_forwarded"`
	TotalQueued    uint64 `json:"total_queued"`
	TotalFlushed   uint64 `json:"total_flushed"`
	QueueOverflows uint64 `json:"queue_overflows"`
	TTLDrops       uint64 `json:"ttl_drops"`
	TotalDelivered uint64 `json:"total_delivered"`
	TotalUplinked  uint64 `json:"total_uplinked"`
	NeighboursAged uint64 `json:"neighbours_aged"`
	HopSum         uint64 `json:"hop_sum"`
	HopSamples     uint64 `json:"hop_samples"`
}

type Collector struct {
	mu sync.Mutex
	Counters
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) AddSent() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.TotalSent++
	c.mu.Unlock()
}

func (c *Collector) AddForwarded() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.TotalForwarded++
	c.mu.Unlock()
}

func (c *Collector) AddQueued() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.TotalQueued++
	c.mu.Unlock()
}

func (c *Collector) AddFlushed(n int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.TotalFlushed += uint64(n)
	c.mu.Unlock()
}

func (c *Collector) AddQueueOverflow() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.QueueOverflows++
	c.mu.Unlock()
}

func (c *Collector) AddTTLDrop() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.TTLDrops++
	c.mu.Unlock()
}

// AddDelivered records a local delivery; ev.TTL is the remaining ttl, from
// which the number of relays that forwarded the packet (15 - ttl) is derived.
func (c *Collector) AddDelivered(ev eb.Event) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.TotalDelivered++
	if ev.TTL > 0 && ev.TTL <= 15 {
		c.HopSum += uint64(15 - ev.TTL)
		c.HopSamples++
	}
	c.mu.Unlock()
}

func (c *Collector) AddUplinked() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.TotalUplinked++
	c.mu.Unlock()
}

func (c *Collector) AddNeighbourAged() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.NeighboursAged++
	c.mu.Unlock()
}

func (c *Collector) Flush(file string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, err := os.Create(file)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c.Counters)
}
