package sim

import (
	"context"
	"log"
	"math"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"

	eb "thor-mesh/internal/eventBus"
	"thor-mesh/internal/mesh"
	"thor-mesh/internal/metrics"
	"thor-mesh/internal/node"
	"thor-mesh/internal/uplink"
)

type nodeLister interface {
	Nodes() []mesh.INode
}

type Runner struct {
	sc   *Scenario
	bus  *eb.EventBus
	net  mesh.INetwork
	coll *metrics.Collector

	cancel context.CancelFunc
}

func NewRunner(sc *Scenario, bus *eb.EventBus, net mesh.INetwork, coll *metrics.Collector) *Runner {
	return &Runner{sc: sc, bus: bus, net: net, coll: coll}
}

func (r *Runner) Run() error {
	rng := rand.New(rand.NewSource(r.sc.Seed))
	go r.net.Run()

	// ── metrics wire-up ───────────────────────────────────────────────────
	sub := r.bus.Subscribe()
	go r.consumeEvents(sub)

	// ── optional gateway uplink ───────────────────────────────────────────
	var up node.Uplink
	if r.sc.Uplink.Broker != "" {
		u, err := uplink.New(r.sc.Uplink.Broker, "thor-batch", r.sc.Uplink.Topic)
		if err != nil {
			log.Printf("uplink disabled: %v", err)
		} else {
			up = u
			defer u.Disconnect()
		}
	}

	// ── build nodes on a grid ─────────────────────────────────────────────
	rows := int(math.Ceil(math.Sqrt(float64(r.sc.Nodes.Count))))
	cols := rows
	side := math.Sqrt(r.sc.AreaM2)

	idx := 0
	for row := 0; row < rows && idx < r.sc.Nodes.Count; row++ {
		for col := 0; col < cols && idx < r.sc.Nodes.Count; col++ {
			lat := float64(row) * side / math.Max(float64(rows-1), 1)
			lng := float64(col) * side / math.Max(float64(cols-1), 1)
			gateway := idx < r.sc.Nodes.Gateways
			n := node.NewNode(uint32(idx+1), lat, lng, gateway, r.bus)
			if gateway && up != nil {
				if setter, ok := n.(interface{ SetUplink(node.Uplink) }); ok {
					setter.SetUplink(up)
				}
			}
			r.net.Join(n)
			idx++
			if d := r.sc.Nodes.JoinDelay.Std(); d > 0 {
				time.Sleep(d)
			}
		}
	}

	if d := r.sc.StartupDelay.Std(); d > 0 {
		log.Printf("Startup delay: waiting %s before traffic…", d)
		time.Sleep(d)
	}

	// ── traffic generator ─────────────────────────────────────────────────
	rate := r.sc.Traffic.MsgPerNodePerMin / 60.0 // per-sec rate per node
	if rate == 0 {
		rate = 0.1
	}
	interval := time.Duration(1e9 / (rate * float64(r.sc.Nodes.Count))) // ns

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		tick := time.NewTicker(interval)
		defer tick.Stop()
		done := time.After(r.sc.Duration.Std())
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-done:
				return nil
			case <-tick.C:
				r.emitTraffic(rng)
			}
		}
	})

	err := g.Wait()
	if leaver, ok := r.net.(interface{ LeaveAll() }); ok {
		leaver.LeaveAll()
	}
	return err
}

// Stop asks the runner to wind down early.
func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *Runner) consumeEvents(ch chan eb.Event) {
	for ev := range ch {
		switch ev.Type {
		case eb.EventPacketSent:
			r.coll.AddSent()
		case eb.EventPacketForwarded:
			r.coll.AddForwarded()
		case eb.EventPacketQueued:
			r.coll.AddQueued()
		case eb.EventQueueFlushed:
			r.coll.AddFlushed(1)
		case eb.EventQueueOverflow:
			r.coll.AddQueueOverflow()
		case eb.EventTTLExpired:
			r.coll.AddTTLDrop()
		case eb.EventDelivered:
			r.coll.AddDelivered(ev)
		case eb.EventUplinked:
			r.coll.AddUplinked()
		case eb.EventNeighbourAged:
			r.coll.AddNeighbourAged()
		}
	}
}

// emitTraffic has a random non-gateway node push a payload towards the
// internet sink.
func (r *Runner) emitTraffic(rng *rand.Rand) {
	lister, ok := r.net.(nodeLister)
	if !ok {
		return
	}
	nodes := lister.Nodes()
	if len(nodes) == 0 {
		return
	}

	from := nodes[rng.Intn(len(nodes))]
	if from.HasInternet() {
		return // gateways originate nothing in this workload
	}
	from.SendData(r.net, r.sc.Traffic.SinkID, "sensor-reading")
}
