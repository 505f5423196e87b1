// Package agents provides the pedestrian data model and its per-tick state
// machine: movement, plot transitions, collision checks and recovery, and
// route refresh through the path finder.
package agents

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/talgya/pedsim/internal/geom"
	"github.com/talgya/pedsim/internal/pathfind"
	"github.com/talgya/pedsim/internal/world"
)

// SSN is a pedestrian's permanent identity: its creation order. It never
// changes when the pedestrian array is re-sorted and is never reused.
type SSN uint32

// TicksPerSecond converts per-tick velocity into the collision lookahead.
const TicksPerSecond = 33

// Pedestrian is a single simulated walker.
type Pedestrian struct {
	SSN SSN `json:"ssn"`

	Pos    geom.Vec3 `json:"pos"`
	Vel    geom.Vec3 `json:"vel"` // distance per tick
	Dir    geom.Vec3 `json:"dir"` // facing, unit length
	Radius float64   `json:"radius"`

	City     int `json:"city"`
	Plot     int `json:"plot"`
	NextPlot int `json:"next_plot"`
	DestPlot int `json:"dest_plot"`
	DestBldg int `json:"dest_bldg"`
	ModelID  int `json:"model_id"`

	// Cached intermediate route target; refreshed periodically.
	TargetPos geom.Vec3 `json:"target_pos"`
	HasTarget bool      `json:"has_target"`

	// Per-tick state.
	CollidingSSN SSN   `json:"colliding_ssn"` // valid while PedColl is set
	StuckCount   uint8 `json:"stuck_count"`
	Collided     bool  `json:"collided"`
	PedColl      bool  `json:"ped_coll"`
	InTheRoad    bool  `json:"in_the_road"`
	AtDest       bool  `json:"at_dest"`
	AtCrosswalk  bool  `json:"at_crosswalk"`
	IsStopped    bool  `json:"is_stopped"`
	Destroyed    bool  `json:"destroyed"`
}

// Navigator is the manager-side context a pedestrian consults while it
// updates. It owns the shared path finder, random source, and plot index.
type Navigator interface {
	World() world.World
	Rand() *rand.Rand
	Frame() uint64
	Focus() geom.Vec3
	Finder() *pathfind.Finder
	FirstPedAtPlot(plot int) int
	PedIndex(ssn SSN) (int, bool)
	ChooseDestBuilding(p *Pedestrian)
	MovePedToNextPlot(p *Pedestrian)
	MarkCrosswalkInUse(p *Pedestrian)
}

// Event is a bit set of what happened to a pedestrian during one tick.
type Event uint16

const (
	EventMoved Event = 1 << iota
	EventCollided
	EventPedColl
	EventArrived
	EventRerouted
	EventPartialRoute
	EventNoRoute
	EventPlotChange
	EventStuck
	EventCrosswalk
)

// Has reports whether all bits of o are set.
func (e Event) Has(o Event) bool { return e&o == o }

// Speed is the velocity magnitude per tick.
func (p *Pedestrian) Speed() float64 { return p.Vel.Mag() }

// TargetValid reports whether a cached route target is available.
func (p *Pedestrian) TargetValid() bool { return p.HasTarget }

func (p *Pedestrian) invalidateTarget() {
	p.TargetPos = geom.Vec3{}
	p.HasTarget = false
}

// Destroy marks the pedestrian for removal at the start of the next tick.
func (p *Pedestrian) Destroy() { p.Destroyed = true }

// String is a one-line human-readable state dump.
func (p *Pedestrian) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: ssn=%d speed=%.3f radius=%.3f\n", Name(p.SSN), p.SSN, p.Speed(), p.Radius)
	fmt.Fprintf(&b, "city=%d plot=%d next_plot=%d dest_plot=%d dest_bldg=%d\n",
		p.City, p.Plot, p.NextPlot, p.DestPlot, p.DestBldg)
	fmt.Fprintf(&b, "stuck_count=%d collided=%t in_the_road=%t at_dest=%t target_valid=%t",
		p.StuckCount, p.Collided, p.InTheRoad, p.AtDest, p.TargetValid())
	return b.String()
}
