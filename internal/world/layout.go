package world

import (
	"fmt"
	"math/rand"

	"github.com/talgya/pedsim/internal/geom"
)

// Layout is a generated set of cities. It implements World.
type Layout struct {
	cfg       GenConfig
	cities    []City
	plots     []Plot
	buildings []Building
}

var _ World = (*Layout)(nil)

func (l *Layout) Config() GenConfig         { return l.cfg }
func (l *Layout) Cities() []City            { return l.cities }
func (l *Layout) Plots() []Plot             { return l.plots }
func (l *Layout) Buildings() []Building     { return l.buildings }
func (l *Layout) NumCities() int            { return len(l.cities) }
func (l *Layout) NumPlots() int             { return len(l.plots) }
func (l *Layout) RoadWidth() float64        { return l.cfg.RoadWidth }
func (l *Layout) PoleRadius() float64       { return l.cfg.PoleRadius }
func (l *Layout) Plot(id int) *Plot         { return &l.plots[id] }
func (l *Layout) PlotCity(plot int) int     { return l.plots[plot].City }
func (l *Layout) CityBCube(c int) geom.Cube { return l.cities[c].BCube }
func (l *Layout) PlotBCube(p int) geom.Cube { return l.plots[p].BCube }

// CityPlots returns the half-open range of plot ids owned by city.
func (l *Layout) CityPlots(city int) (first, end int) {
	c := l.cities[city]
	return c.FirstPlot, c.FirstPlot + c.Side*c.Side
}

func (l *Layout) Colliders(plot int) []geom.Cube {
	return l.plots[plot].Colliders
}

// BuildingsInRegion appends to out the bounding cube of every building whose
// footprint overlaps region.
func (l *Layout) BuildingsInRegion(region geom.Cube, out []geom.Cube) []geom.Cube {
	for i := range l.plots {
		p := &l.plots[i]
		if !p.BCube.IntersectsXY(region) {
			continue
		}
		for _, id := range p.Buildings {
			if bc := l.buildings[id].BCube; bc.IntersectsXY(region) {
				out = append(out, bc)
			}
		}
	}
	return out
}

func (l *Layout) BuildingBCube(id int) geom.Cube {
	if id < 0 || id >= len(l.buildings) {
		panic(fmt.Sprintf("world: building id %d out of range [0,%d)", id, len(l.buildings)))
	}
	return l.buildings[id].BCube
}

// CheckBuildingColl returns the first building on plot overlapping a circle
// of radius at pos.
func (l *Layout) CheckBuildingColl(pos geom.Vec3, radius float64, plot int) (int, bool) {
	for _, id := range l.plots[plot].Buildings {
		if l.buildings[id].BCube.SphereIntersectsXY(pos, radius) {
			return id, true
		}
	}
	return -1, false
}

func (l *Layout) StreetlightReach() float64 {
	return l.cfg.StreetlightAt*l.cfg.PlotSize + l.cfg.PoleRadius
}

func (l *Layout) CheckIntersectionSphereColl(pos geom.Vec3, radius float64, plot int) bool {
	return polesHit(l.plots[plot].TrafficPoles, pos, radius)
}

func (l *Layout) CheckStreetlightSphereColl(pos geom.Vec3, radius float64, plot int) bool {
	return polesHit(l.plots[plot].Streetlights, pos, radius)
}

func polesHit(poles []Pole, pos geom.Vec3, radius float64) bool {
	for _, p := range poles {
		if geom.DistXYLessThan(pos, p.Pos, radius+p.Radius) {
			return true
		}
	}
	return false
}

// NextPlot returns the neighbor of plot one grid step closer to destPlot,
// moving along X first. Plots in different cities are never connected.
func (l *Layout) NextPlot(plot, destPlot int) int {
	if plot == destPlot {
		return plot
	}
	a, b := &l.plots[plot], &l.plots[destPlot]
	if a.City != b.City {
		return plot
	}
	gx, gy := a.GX, a.GY
	switch {
	case b.GX > gx:
		gx++
	case b.GX < gx:
		gx--
	case b.GY > gy:
		gy++
	default:
		gy--
	}
	c := l.cities[a.City]
	return c.FirstPlot + gy*c.Side + gx
}

// ChooseDestination picks a random building in city.
func (l *Layout) ChooseDestination(rng *rand.Rand, city int) (plot, bldg int) {
	first, end := l.CityPlots(city)
	plot = first + rng.Intn(end-first)
	blds := l.plots[plot].Buildings
	return plot, blds[rng.Intn(len(blds))]
}

// PlotAt returns the plot whose footprint contains pos.
func (l *Layout) PlotAt(pos geom.Vec3) (int, bool) {
	for i := range l.plots {
		if l.plots[i].BCube.ContainsPtXY(pos) {
			return i, true
		}
	}
	return -1, false
}
