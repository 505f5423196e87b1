package world

import (
	"math/rand"
	"testing"

	"github.com/talgya/pedsim/internal/geom"
)

func TestGenerateShape(t *testing.T) {
	cfg := DefaultGenConfig()
	l := Generate(cfg)

	if l.NumCities() != cfg.Cities {
		t.Fatalf("expected %d cities, got %d", cfg.Cities, l.NumCities())
	}
	want := cfg.Cities * cfg.PlotsPerSide * cfg.PlotsPerSide
	if l.NumPlots() != want {
		t.Fatalf("expected %d plots, got %d", want, l.NumPlots())
	}
	next := 0
	for c := 0; c < l.NumCities(); c++ {
		first, end := l.CityPlots(c)
		if first != next {
			t.Errorf("city %d: expected first plot %d, got %d", c, next, first)
		}
		for p := first; p < end; p++ {
			if l.PlotCity(p) != c {
				t.Errorf("plot %d: expected city %d, got %d", p, c, l.PlotCity(p))
			}
		}
		next = end
	}
}

func TestEveryPlotHasBuildingsInside(t *testing.T) {
	l := Generate(DefaultGenConfig())
	for _, p := range l.Plots() {
		if len(p.Buildings) == 0 {
			t.Fatalf("plot %d has no buildings", p.ID)
		}
		for _, id := range p.Buildings {
			bc := l.BuildingBCube(id)
			if bc.IsDegenerateXY() {
				t.Errorf("building %d is degenerate: %v", id, bc)
			}
			if !p.BCube.ContainsPtXY(bc.Min) || !p.BCube.ContainsPtXY(bc.Max) {
				t.Errorf("building %d %v outside plot %v", id, bc, p.BCube)
			}
		}
	}
}

func TestObstaclesAreSeparated(t *testing.T) {
	l := Generate(DefaultGenConfig())
	for _, p := range l.Plots() {
		var cubes []geom.Cube
		for _, id := range p.Buildings {
			cubes = append(cubes, l.BuildingBCube(id))
		}
		cubes = append(cubes, p.Colliders...)
		for i := range cubes {
			for j := i + 1; j < len(cubes); j++ {
				if cubes[i].ExpandXY(1).IntersectsXY(cubes[j]) {
					t.Fatalf("plot %d: obstacles %v and %v closer than 1", p.ID, cubes[i], cubes[j])
				}
			}
		}
	}
}

func TestCollidersSortedByX(t *testing.T) {
	l := Generate(DefaultGenConfig())
	for p := 0; p < l.NumPlots(); p++ {
		cs := l.Colliders(p)
		for i := 1; i < len(cs); i++ {
			if cs[i].Min.X < cs[i-1].Min.X {
				t.Fatalf("plot %d: colliders out of order at %d: %v", p, i, cs)
			}
		}
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	a := Generate(DefaultGenConfig())
	b := Generate(DefaultGenConfig())
	if len(a.Buildings()) != len(b.Buildings()) {
		t.Fatalf("expected %d buildings, got %d", len(a.Buildings()), len(b.Buildings()))
	}
	for i := range a.Buildings() {
		if a.Buildings()[i] != b.Buildings()[i] {
			t.Fatalf("building %d differs: %v vs %v", i, a.Buildings()[i], b.Buildings()[i])
		}
	}
}

func TestNextPlotReachesDestination(t *testing.T) {
	l := Generate(DefaultGenConfig())
	first, end := l.CityPlots(1)
	for from := first; from < end; from++ {
		for to := first; to < end; to++ {
			cur, steps := from, 0
			for cur != to {
				n := l.NextPlot(cur, to)
				if n == cur {
					t.Fatalf("NextPlot(%d, %d) made no progress", cur, to)
				}
				if !l.PlotBCube(cur).ExpandXY(l.RoadWidth()).IntersectsXY(l.PlotBCube(n)) {
					t.Fatalf("NextPlot(%d, %d) = %d is not adjacent", cur, to, n)
				}
				cur = n
				if steps++; steps > 2*l.Cities()[1].Side {
					t.Fatalf("route %d -> %d did not converge", from, to)
				}
			}
		}
	}
	if l.NextPlot(0, end-1) != 0 {
		t.Error("expected no route between cities")
	}
}

func TestChooseDestinationStaysInCity(t *testing.T) {
	l := Generate(DefaultGenConfig())
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		plot, bldg := l.ChooseDestination(rng, 1)
		if l.PlotCity(plot) != 1 {
			t.Fatalf("expected city 1, got plot %d in city %d", plot, l.PlotCity(plot))
		}
		if !l.PlotBCube(plot).ContainsPtXY(l.BuildingBCube(bldg).Center()) {
			t.Fatalf("building %d is not on plot %d", bldg, plot)
		}
	}
}

func TestBuildingAndPoleCollisions(t *testing.T) {
	l := Generate(SmallTestConfig())
	p := l.Plot(0)
	bc := l.BuildingBCube(p.Buildings[0])

	if id, hit := l.CheckBuildingColl(bc.Center(), 0.5, 0); !hit || id != p.Buildings[0] {
		t.Errorf("expected hit on building %d, got %d %v", p.Buildings[0], id, hit)
	}
	if _, hit := l.CheckBuildingColl(geom.V(bc.Max.X+1, bc.Center().Y, 0), 0.5, 0); hit {
		t.Error("expected no building hit one unit outside")
	}

	pole := p.TrafficPoles[0].Pos
	if !l.CheckIntersectionSphereColl(pole, 0.1, 0) {
		t.Error("expected traffic pole hit")
	}
	light := p.Streetlights[0].Pos
	if !l.CheckStreetlightSphereColl(light, 0.1, 0) {
		t.Error("expected streetlight hit")
	}
	if l.CheckStreetlightSphereColl(p.BCube.Center(), 0.5, 0) {
		t.Error("expected no streetlight at plot center")
	}
	if d := p.BCube.Min.Y - light.Y; d <= 0 || d >= l.StreetlightReach() {
		t.Errorf("expected streetlight within reach outside the plot, got offset %f", d)
	}
}

func TestBuildingsInRegion(t *testing.T) {
	l := Generate(SmallTestConfig())
	all := l.BuildingsInRegion(l.CityBCube(0), nil)
	if len(all) != len(l.Buildings()) {
		t.Fatalf("expected %d buildings in city, got %d", len(l.Buildings()), len(all))
	}
	one := l.BuildingsInRegion(l.PlotBCube(0), nil)
	if len(one) != len(l.Plot(0).Buildings) {
		t.Errorf("expected %d buildings on plot 0, got %d", len(l.Plot(0).Buildings), len(one))
	}
}
