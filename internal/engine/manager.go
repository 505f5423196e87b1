package engine

import (
	"errors"
	"log/slog"
	"math/rand"

	"github.com/samber/lo"

	"github.com/talgya/pedsim/internal/agents"
	"github.com/talgya/pedsim/internal/geom"
	"github.com/talgya/pedsim/internal/pathfind"
	"github.com/talgya/pedsim/internal/world"
)

// ErrUnknownPed is returned by lookups for an identity that does not exist
// or has been removed.
var ErrUnknownPed = errors.New("unknown pedestrian")

// pedHeightScale is the pedestrian height as a multiple of radius.
const pedHeightScale = 2.5

// Manager owns the pedestrian array and its spatial index and drives the
// per-tick update. It is the Navigator every pedestrian consults.
type Manager struct {
	w      world.World
	rng    *rand.Rand
	finder *pathfind.Finder

	peds  []agents.Pedestrian
	index map[agents.SSN]int // identity → array position, rebuilt after every reorder

	// Spatial index. cityPed[c] is the first pedestrian of city c and
	// plotPed[p] the first of plot p; both carry a trailing end sentinel.
	cityPed   []int
	plotPed   []int
	dirty     []bool // per city: needs re-sort by plot
	needSort  bool
	firstSort bool

	frame            uint64
	firstFrame       bool
	destroyedPending bool
	focus            geom.Vec3
	maxRadius        float64
	selected         agents.SSN
	hasSelected      bool
	crosswalkTick    []uint64 // per plot: frame+1 of last use
}

var _ agents.Navigator = (*Manager)(nil)

// NewManager creates an empty manager for w.
func NewManager(w world.World, seed int64) *Manager {
	m := &Manager{
		w:             w,
		rng:           rand.New(rand.NewSource(seed + 500)),
		finder:        pathfind.NewFinder(),
		index:         make(map[agents.SSN]int),
		dirty:         make([]bool, w.NumCities()),
		firstSort:     true,
		firstFrame:    true,
		crosswalkTick: make([]uint64, w.NumPlots()),
	}
	if w.NumCities() > 0 {
		m.focus = w.CityBCube(0).Center()
	}
	m.rebuildRanges()
	return m
}

// Init populates count pedestrians and builds the spatial index.
func (m *Manager) Init(count int, seed int64, cfg agents.SpawnConfig) {
	if count <= 0 {
		return
	}
	m.peds = agents.NewSpawner(seed).Spawn(m.w, count, cfg)
	for i := range m.peds {
		m.maxRadius = max(m.maxRadius, m.peds[i].Radius)
	}
	m.firstSort = true
	m.sortByCityAndPlot()
	slog.Info("pedestrians placed", "requested", count, "placed", len(m.peds))
}

// NextFrame advances every pedestrian by one tick of fticks frames.
func (m *Manager) NextFrame(fticks float64) TickReport {
	rep := TickReport{Tick: m.frame}
	if m.destroyedPending {
		rep.Destroyed = m.removeDestroyed()
	}
	deltaDir := agents.DeltaDir(fticks)

	if m.firstFrame {
		for i := range m.peds {
			m.ChooseDestBuilding(&m.peds[i])
		}
		m.firstFrame = false
	}
	for i := range m.peds {
		rep.add(m.peds[i].NextFrame(m, m.peds, i, deltaDir, fticks))
	}
	if m.needSort {
		m.sortByCityAndPlot()
	}
	m.frame++
	rep.Alive = len(m.peds)
	rep.Digest = m.Digest()
	return rep
}

// removeDestroyed compacts tombstoned pedestrians out of the array. Order is
// preserved, so only the range tables and identity map need rebuilding.
func (m *Manager) removeDestroyed() int {
	before := len(m.peds)
	m.peds = lo.Reject(m.peds, func(p agents.Pedestrian, _ int) bool { return p.Destroyed })
	m.destroyedPending = false
	m.rebuildRanges()
	if m.hasSelected {
		_, m.hasSelected = m.index[m.selected]
	}
	return before - len(m.peds)
}

// Navigator implementation.

func (m *Manager) World() world.World        { return m.w }
func (m *Manager) Rand() *rand.Rand          { return m.rng }
func (m *Manager) Frame() uint64             { return m.frame }
func (m *Manager) Focus() geom.Vec3          { return m.focus }
func (m *Manager) Finder() *pathfind.Finder  { return m.finder }
func (m *Manager) SetFocus(pos geom.Vec3)    { m.focus = pos }
func (m *Manager) Len() int                  { return len(m.peds) }
func (m *Manager) Peds() []agents.Pedestrian { return m.peds }

// FirstPedAtPlot returns the array position of the first pedestrian bucketed
// on plot, or the end of its range if there are none.
func (m *Manager) FirstPedAtPlot(plot int) int {
	if plot < 0 || plot+1 >= len(m.plotPed) {
		panic("engine: plot id out of range")
	}
	return m.plotPed[plot]
}

// PedIndex resolves an identity to its current array position.
func (m *Manager) PedIndex(ssn agents.SSN) (int, bool) {
	ix, ok := m.index[ssn]
	return ix, ok
}

// ChooseDestBuilding assigns a new destination in the pedestrian's city.
func (m *Manager) ChooseDestBuilding(p *agents.Pedestrian) {
	if p.AtDest {
		slog.Debug("pedestrian arrived", "ssn", p.SSN, "name", agents.Name(p.SSN), "bldg", p.DestBldg, "plot", p.DestPlot)
	}
	p.DestPlot, p.DestBldg = m.w.ChooseDestination(m.rng, p.City)
	p.NextPlot = m.w.NextPlot(p.Plot, p.DestPlot)
	p.AtDest = false
	p.HasTarget = false
}

// MovePedToNextPlot registers a plot crossing; the array is re-sorted at the
// end of the tick.
func (m *Manager) MovePedToNextPlot(p *agents.Pedestrian) {
	if p.NextPlot == p.Plot {
		return
	}
	p.Plot = p.NextPlot
	m.needSort = true
	m.dirty[p.City] = true
}

func (m *Manager) MarkCrosswalkInUse(p *agents.Pedestrian) {
	m.crosswalkTick[p.Plot] = m.frame + 1
}

// CrosswalkInUse reports whether a pedestrian waited at one of plot's
// crosswalks during the last completed tick.
func (m *Manager) CrosswalkInUse(plot int) bool {
	return m.frame > 0 && m.crosswalkTick[plot] == m.frame
}
