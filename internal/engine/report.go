package engine

import (
	"encoding/binary"
	"hash/fnv"
	"math"

	"github.com/talgya/pedsim/internal/agents"
)

// TickReport summarizes one tick.
type TickReport struct {
	Tick          uint64 `json:"tick" db:"tick"`
	Alive         int    `json:"alive" db:"alive"`
	Moving        int    `json:"moving" db:"moving"`
	Collisions    int    `json:"collisions" db:"collisions"`
	PedCollisions int    `json:"ped_collisions" db:"ped_collisions"`
	Arrivals      int    `json:"arrivals" db:"arrivals"`
	Reroutes      int    `json:"reroutes" db:"reroutes"`
	PartialRoutes int    `json:"partial_routes" db:"partial_routes"`
	NoRoutes      int    `json:"no_routes" db:"no_routes"`
	Stuck         int    `json:"stuck" db:"stuck"`
	Destroyed     int    `json:"destroyed" db:"destroyed"`
	PlotChanges   int    `json:"plot_changes" db:"plot_changes"`
	Crosswalks    int    `json:"crosswalks" db:"crosswalks"`
	Digest        uint64 `json:"digest" db:"-"` // FNV-1a over identity and position of every pedestrian
}

func (r *TickReport) add(ev agents.Event) {
	count := func(e agents.Event, n *int) {
		if ev.Has(e) {
			*n++
		}
	}
	count(agents.EventMoved, &r.Moving)
	count(agents.EventCollided, &r.Collisions)
	count(agents.EventPedColl, &r.PedCollisions)
	count(agents.EventArrived, &r.Arrivals)
	count(agents.EventRerouted, &r.Reroutes)
	count(agents.EventPartialRoute, &r.PartialRoutes)
	count(agents.EventNoRoute, &r.NoRoutes)
	count(agents.EventStuck, &r.Stuck)
	count(agents.EventPlotChange, &r.PlotChanges)
	count(agents.EventCrosswalk, &r.Crosswalks)
}

// Merge accumulates the event counters of o into r and takes o's tick,
// population and digest.
func (r *TickReport) Merge(o TickReport) {
	r.Tick, r.Alive, r.Digest = o.Tick, o.Alive, o.Digest
	r.Moving += o.Moving
	r.Collisions += o.Collisions
	r.PedCollisions += o.PedCollisions
	r.Arrivals += o.Arrivals
	r.Reroutes += o.Reroutes
	r.PartialRoutes += o.PartialRoutes
	r.NoRoutes += o.NoRoutes
	r.Stuck += o.Stuck
	r.Destroyed += o.Destroyed
	r.PlotChanges += o.PlotChanges
	r.Crosswalks += o.Crosswalks
}

// Digest hashes every pedestrian's identity and position in array order.
// Two runs with the same seed and world produce the same digest.
func (m *Manager) Digest() uint64 {
	h := fnv.New64a()
	var buf [8]byte
	put := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	for i := range m.peds {
		p := &m.peds[i]
		put(uint64(p.SSN))
		put(math.Float64bits(p.Pos.X))
		put(math.Float64bits(p.Pos.Y))
		put(math.Float64bits(p.Pos.Z))
	}
	return h.Sum64()
}
