package engine

import (
	"fmt"

	"github.com/talgya/pedsim/internal/agents"
	"github.com/talgya/pedsim/internal/geom"
	"github.com/talgya/pedsim/internal/pathfind"
)

// Bounds used to cull whole cities and plots before testing pedestrians.
// Pedestrians walking in the road remain bucketed on their plot, so plot
// bounds grow by the road width.

func (m *Manager) expandForPeds(c geom.Cube) geom.Cube {
	c = c.ExpandXY(m.w.RoadWidth() + m.maxRadius)
	c.Max.Z += (pedHeightScale + 1) * m.maxRadius
	return c
}

func (m *Manager) cityBCubeForPeds(city int) geom.Cube { return m.expandForPeds(m.w.CityBCube(city)) }
func (m *Manager) plotBCubeForPeds(plot int) geom.Cube { return m.expandForPeds(m.w.PlotBCube(plot)) }

// eachPlot calls fn with the pedestrian range of every plot whose expanded
// bounds pass keep. Iteration stops when fn returns false.
func (m *Manager) eachPlot(keep func(geom.Cube) bool, fn func(start, end int) bool) {
	for city := 0; city < m.w.NumCities(); city++ {
		if m.cityPed[city] == m.cityPed[city+1] || !keep(m.cityBCubeForPeds(city)) {
			continue
		}
		first, end := m.w.CityPlots(city)
		for plot := first; plot < end; plot++ {
			if m.plotPed[plot] == m.plotPed[plot+1] || !keep(m.plotBCubeForPeds(plot)) {
				continue
			}
			if !fn(m.plotPed[plot], m.plotPed[plot+1]) {
				return
			}
		}
	}
}

// ProcSphereColl tests a sphere against all pedestrians and returns the
// contact normal, pointing from the pedestrian toward pos, of the first hit.
func (m *Manager) ProcSphereColl(pos geom.Vec3, radius float64) (geom.Vec3, bool) {
	var normal geom.Vec3
	hit := false
	keep := func(c geom.Cube) bool {
		return pos.Z <= c.Max.Z+radius && c.SphereIntersectsXY(pos, radius)
	}
	m.eachPlot(keep, func(start, end int) bool {
		for i := start; i < end; i++ {
			p := &m.peds[i]
			if p.Destroyed || !geom.DistLessThan(pos, p.Pos, radius+p.Radius) {
				continue
			}
			normal, hit = pos.Sub(p.Pos).Norm(), true
			return false
		}
		return true
	})
	return normal, hit
}

// LineIntersect returns the parametric distance along p1→p2 of the nearest
// pedestrian hit and that pedestrian's identity.
func (m *Manager) LineIntersect(p1, p2 geom.Vec3) (t float64, ssn agents.SSN, ok bool) {
	t = 1
	keep := func(c geom.Cube) bool { return c.LineIntersects(p1, p2) }
	m.eachPlot(keep, func(start, end int) bool {
		for i := start; i < end; i++ {
			p := &m.peds[i]
			if p.Destroyed {
				continue
			}
			if pt, hit := geom.LineSphereClosestT(p1, p2, p.Pos, p.Radius); hit && (!ok || pt < t) {
				t, ssn, ok = pt, p.SSN, true
			}
		}
		return true
	})
	return t, ssn, ok
}

// DestroyInRadius marks every pedestrian within radius of pos for removal at
// the start of the next tick. A zero radius destroys only pedestrians whose
// sphere contains pos.
func (m *Manager) DestroyInRadius(pos geom.Vec3, radius float64) int {
	isPt := radius == 0
	keep := func(c geom.Cube) bool {
		if pos.Z > c.Max.Z+radius {
			return false
		}
		if isPt {
			return c.ContainsPtXY(pos)
		}
		return c.SphereIntersectsXY(pos, radius)
	}
	n := 0
	m.eachPlot(keep, func(start, end int) bool {
		for i := start; i < end; i++ {
			p := &m.peds[i]
			if p.Destroyed || !geom.DistLessThan(pos, p.Pos, radius+p.Radius) {
				continue
			}
			p.Destroy()
			n++
		}
		return true
	})
	if n > 0 {
		m.destroyedPending = true
	}
	return n
}

// PedAt returns the first pedestrian whose sphere the segment p1→p2 touches,
// for picking under a cursor.
func (m *Manager) PedAt(p1, p2 geom.Vec3) (agents.SSN, bool) {
	var ssn agents.SSN
	found := false
	keep := func(c geom.Cube) bool { return c.LineIntersects(p1, p2) }
	m.eachPlot(keep, func(start, end int) bool {
		for i := start; i < end; i++ {
			p := &m.peds[i]
			if _, hit := geom.LineSphereClosestT(p1, p2, p.Pos, p.Radius); hit && !p.Destroyed {
				ssn, found = p.SSN, true
				return false
			}
		}
		return true
	})
	return ssn, found
}

// Ped returns a copy of the pedestrian with the given identity.
func (m *Manager) Ped(ssn agents.SSN) (agents.Pedestrian, error) {
	ix, ok := m.index[ssn]
	if !ok {
		return agents.Pedestrian{}, fmt.Errorf("ssn %d: %w", ssn, ErrUnknownPed)
	}
	return m.peds[ix], nil
}

// PedsOnPlot returns copies of the pedestrians bucketed on plot.
func (m *Manager) PedsOnPlot(plot int) []agents.Pedestrian {
	if plot < 0 || plot >= m.w.NumPlots() {
		return nil
	}
	return append([]agents.Pedestrian(nil), m.peds[m.plotPed[plot]:m.plotPed[plot+1]]...)
}

// Select marks a pedestrian for inspection. The selection follows the
// identity across re-sorts and is dropped when the pedestrian is removed.
func (m *Manager) Select(ssn agents.SSN) error {
	if _, ok := m.index[ssn]; !ok {
		return fmt.Errorf("select ssn %d: %w", ssn, ErrUnknownPed)
	}
	m.selected, m.hasSelected = ssn, true
	return nil
}

// Selected returns the selected pedestrian, if any.
func (m *Manager) Selected() (agents.Pedestrian, bool) {
	if !m.hasSelected {
		return agents.Pedestrian{}, false
	}
	p, err := m.Ped(m.selected)
	return p, err == nil
}

// DebugString is a human-readable state dump keyed by identity.
func (m *Manager) DebugString(ssn agents.SSN) (string, error) {
	p, err := m.Ped(ssn)
	if err != nil {
		return "", err
	}
	return p.String(), nil
}

// PathKind classifies a debug route.
type PathKind string

const (
	PathNone     PathKind = "none"     // nowhere to go, or no route at all
	PathStraight PathKind = "straight" // direct line is clear
	PathComplete PathKind = "complete"
	PathPartial  PathKind = "partial"
)

// PathInfo is a pedestrian's current route as the path finder sees it.
type PathInfo struct {
	SSN        agents.SSN  `json:"ssn"`
	Kind       PathKind    `json:"kind"`
	FromClamp  bool        `json:"from_clamp"` // route starts from a point pushed out of an obstacle or into the plot
	OnDestPlot bool        `json:"on_dest_plot"`
	Points     []geom.Vec3 `json:"points"`
	Length     float64     `json:"length"`
}

// DebugPath recomputes the route for one pedestrian with a finer clearance
// than the live update uses. It does not modify the pedestrian.
func (m *Manager) DebugPath(ssn agents.SSN) (PathInfo, error) {
	p, err := m.Ped(ssn)
	if err != nil {
		return PathInfo{}, err
	}
	info := PathInfo{SSN: ssn, Kind: PathNone, OnDestPlot: p.Plot == p.DestPlot}
	plotBCube := m.w.PlotBCube(p.Plot)
	dest := p.DestPos(m.w, plotBCube, m.w.PlotBCube(p.NextPlot))
	if dest == p.Pos {
		return info, nil
	}
	f := pathfind.NewFinder()
	f.Avoid = p.AvoidCubes(m.w, m.w.Colliders(p.Plot), dest, nil)

	_, res := f.Run(p.Pos, dest, plotBCube, 0.05*p.Radius)
	switch {
	case res.Changed():
		best := f.BestPath().Clone()
		info.Points, info.Length = best.Points, best.Length
		info.FromClamp = res == pathfind.ReroutedFromClamp
		info.Kind = PathPartial
		if f.FoundCompletePath() {
			info.Kind = PathComplete
		}
	case res == pathfind.NoPathNeeded:
		var straight pathfind.Path
		straight.Init(p.Pos, dest)
		info.Kind, info.Points, info.Length = PathStraight, straight.Points, straight.Length
	}
	return info, nil
}
