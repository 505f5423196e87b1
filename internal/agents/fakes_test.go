package agents

import (
	"math/rand"

	"github.com/talgya/pedsim/internal/geom"
	"github.com/talgya/pedsim/internal/pathfind"
	"github.com/talgya/pedsim/internal/world"
)

// testWorld is a single city with two plots side by side along X.
type testWorld struct {
	plots     []geom.Cube
	buildings []geom.Cube
	bldgPlot  []int
	colliders [][]geom.Cube
	poles     []geom.Vec3
}

var _ world.World = (*testWorld)(nil)

func newTestWorld() *testWorld {
	return &testWorld{
		plots: []geom.Cube{
			geom.C(0, 50, 0, 50, 0, 0),
			geom.C(60, 110, 0, 50, 0, 0),
		},
		buildings: []geom.Cube{geom.C(80, 90, 20, 30, 0, 20)},
		bldgPlot:  []int{1},
		colliders: make([][]geom.Cube, 2),
	}
}

func (w *testWorld) NumCities() int                 { return 1 }
func (w *testWorld) NumPlots() int                  { return len(w.plots) }
func (w *testWorld) CityPlots(int) (int, int)       { return 0, len(w.plots) }
func (w *testWorld) CityBCube(int) geom.Cube        { return geom.C(0, 110, 0, 50, 0, 0) }
func (w *testWorld) PlotBCube(p int) geom.Cube      { return w.plots[p] }
func (w *testWorld) PlotCity(int) int               { return 0 }
func (w *testWorld) RoadWidth() float64             { return 10 }
func (w *testWorld) Colliders(p int) []geom.Cube    { return w.colliders[p] }
func (w *testWorld) BuildingBCube(id int) geom.Cube { return w.buildings[id] }
func (w *testWorld) StreetlightReach() float64      { return 0.5 }
func (w *testWorld) PoleRadius() float64            { return 0.1 }
func (w *testWorld) NextPlot(plot, dest int) int    { return dest }

func (w *testWorld) BuildingsInRegion(region geom.Cube, out []geom.Cube) []geom.Cube {
	for _, b := range w.buildings {
		if b.IntersectsXY(region) {
			out = append(out, b)
		}
	}
	return out
}

func (w *testWorld) CheckBuildingColl(pos geom.Vec3, radius float64, plot int) (int, bool) {
	for id, b := range w.buildings {
		if w.bldgPlot[id] == plot && b.SphereIntersectsXY(pos, radius) {
			return id, true
		}
	}
	return -1, false
}

func (w *testWorld) CheckIntersectionSphereColl(pos geom.Vec3, radius float64, _ int) bool {
	for _, p := range w.poles {
		if geom.DistXYLessThan(pos, p, radius+w.PoleRadius()) {
			return true
		}
	}
	return false
}

func (w *testWorld) CheckStreetlightSphereColl(geom.Vec3, float64, int) bool {
	return false
}

func (w *testWorld) ChooseDestination(rng *rand.Rand, _ int) (int, int) {
	id := rng.Intn(len(w.buildings))
	return w.bldgPlot[id], id
}

// testNav is a minimal Navigator over a fixed pedestrian slice.
type testNav struct {
	w          world.World
	rng        *rand.Rand
	frame      uint64
	focus      geom.Vec3
	finder     *pathfind.Finder
	peds       []Pedestrian
	moves      int
	dests      int
	crosswalks int
}

func newTestNav(w world.World, peds []Pedestrian) *testNav {
	return &testNav{w: w, rng: rand.New(rand.NewSource(1)), finder: pathfind.NewFinder(), peds: peds}
}

func (n *testNav) World() world.World             { return n.w }
func (n *testNav) Rand() *rand.Rand               { return n.rng }
func (n *testNav) Frame() uint64                  { return n.frame }
func (n *testNav) Focus() geom.Vec3               { return n.focus }
func (n *testNav) Finder() *pathfind.Finder       { return n.finder }
func (n *testNav) MarkCrosswalkInUse(*Pedestrian) { n.crosswalks++ }

func (n *testNav) FirstPedAtPlot(plot int) int {
	for i := range n.peds {
		if n.peds[i].Plot >= plot {
			return i
		}
	}
	return len(n.peds)
}

func (n *testNav) PedIndex(ssn SSN) (int, bool) {
	for i := range n.peds {
		if n.peds[i].SSN == ssn {
			return i, true
		}
	}
	return -1, false
}

func (n *testNav) ChooseDestBuilding(p *Pedestrian) {
	p.DestPlot, p.DestBldg = n.w.ChooseDestination(n.rng, p.City)
	p.NextPlot = n.w.NextPlot(p.Plot, p.DestPlot)
	p.AtDest = false
	n.dests++
}

func (n *testNav) MovePedToNextPlot(p *Pedestrian) {
	p.Plot = p.NextPlot
	n.moves++
}
