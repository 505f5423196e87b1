// Pedestrian spawning: places the initial population on random plots,
// rejecting positions that overlap buildings or static colliders.
package agents

import (
	"math/rand"

	"github.com/talgya/pedsim/internal/geom"
	"github.com/talgya/pedsim/internal/world"
)

// maxPlaceAttempts bounds rejection sampling per pedestrian.
const maxPlaceAttempts = 100

// Model is an appearance class. Scale multiplies the base radius.
type Model struct {
	Name  string  `yaml:"name" json:"name"`
	Scale float64 `yaml:"scale" json:"scale"`
}

// SpawnConfig controls initial population generation.
type SpawnConfig struct {
	Radius float64 // base radius before model scale
	Speed  float64 // per tick; actual speed is drawn from [0.5, 1] of this
	Models []Model
}

// Spawner creates pedestrians for the simulation.
type Spawner struct {
	rng     *rand.Rand
	nextSSN SSN
}

// NewSpawner creates a pedestrian spawner with the given seed.
func NewSpawner(seed int64) *Spawner {
	return &Spawner{rng: rand.New(rand.NewSource(seed + 300))}
}

// Spawn places up to count pedestrians. Pedestrians that cannot be placed
// after repeated attempts are skipped, so fewer may be returned. Identity
// numbers are assigned in creation order.
func (s *Spawner) Spawn(w world.World, count int, cfg SpawnConfig) []Pedestrian {
	if count <= 0 || w.NumPlots() == 0 {
		return nil
	}
	peds := make([]Pedestrian, 0, count)
	for n := 0; n < count; n++ {
		p := Pedestrian{Radius: cfg.Radius, DestBldg: -1}
		if len(cfg.Models) > 0 {
			p.ModelID = s.rng.Intn(len(cfg.Models))
			scale := cfg.Models[p.ModelID].Scale
			if scale <= 0 {
				panic("agents: model scale must be positive")
			}
			p.Radius *= scale
		}
		if !s.place(w, &p) {
			continue
		}
		if cfg.Speed > 0 {
			speed := cfg.Speed * (0.5 + 0.5*s.rng.Float64())
			p.Vel = randUnitXY(s.rng).Scale(speed)
			p.Dir = p.Vel.Norm()
		}
		p.SSN = s.nextSSN
		s.nextSSN++
		peds = append(peds, p)
	}
	return peds
}

func (s *Spawner) place(w world.World, p *Pedestrian) bool {
	for attempt := 0; attempt < maxPlaceAttempts; attempt++ {
		plot := s.rng.Intn(w.NumPlots())
		if s.tryPlaceInPlot(w, p, plot) {
			return true
		}
	}
	return false
}

func (s *Spawner) tryPlaceInPlot(w world.World, p *Pedestrian, plot int) bool {
	bc := w.PlotBCube(plot)
	p.Pos = bc.RandPtXY(p.Radius, s.rng)
	p.Pos.Z += p.Radius
	p.City = w.PlotCity(plot)
	p.Plot, p.NextPlot, p.DestPlot = plot, plot, plot
	return p.isValidPos(w, w.Colliders(plot))
}

func randUnitXY(rng *rand.Rand) geom.Vec3 {
	return geom.RandVecXY(rng).Norm()
}
