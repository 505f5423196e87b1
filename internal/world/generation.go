// City generation using simplex noise for building density and height.
package world

import (
	"math/rand"
	"slices"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/pedsim/internal/geom"
)

// GenConfig holds city generation parameters.
type GenConfig struct {
	Seed          int64   `yaml:"seed" json:"seed"`
	Cities        int     `yaml:"cities" json:"cities"`
	PlotsPerSide  int     `yaml:"plots_per_side" json:"plots_per_side"`
	PlotSize      float64 `yaml:"plot_size" json:"plot_size"`
	RoadWidth     float64 `yaml:"road_width" json:"road_width"`
	CityGap       float64 `yaml:"city_gap" json:"city_gap"`
	LotsPerSide   int     `yaml:"lots_per_side" json:"lots_per_side"`
	Density       float64 `yaml:"density" json:"density"` // 0–1 share of lots with a building
	MaxHeight     float64 `yaml:"max_height" json:"max_height"`
	ColliderOdds  float64 `yaml:"collider_odds" json:"collider_odds"` // chance of a planter at each lot-grid crossing
	PoleRadius    float64 `yaml:"pole_radius" json:"pole_radius"`
	StreetlightAt float64 `yaml:"streetlight_at" json:"streetlight_at"` // distance outside the plot edge, as a fraction of plot size
}

// DefaultGenConfig returns a reasonable starting configuration.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Seed:          42,
		Cities:        2,
		PlotsPerSide:  4,
		PlotSize:      60,
		RoadWidth:     10,
		CityGap:       200,
		LotsPerSide:   3,
		Density:       0.7,
		MaxHeight:     60,
		ColliderOdds:  0.5,
		PoleRadius:    0.15,
		StreetlightAt: 0.02,
	}
}

// SmallTestConfig returns a tiny world for rapid iteration.
func SmallTestConfig() GenConfig {
	cfg := DefaultGenConfig()
	cfg.Cities = 1
	cfg.PlotsPerSide = 2
	return cfg
}

// Generate creates a complete city layout.
func Generate(cfg GenConfig) *Layout {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	if cfg.LotsPerSide < 1 {
		cfg.LotsPerSide = 1
	}
	rng := rand.New(rand.NewSource(seed + 100))
	densityNoise := opensimplex.NewNormalized(seed)
	heightNoise := opensimplex.NewNormalized(seed + 1)

	l := &Layout{cfg: cfg}
	pitch := cfg.PlotSize + cfg.RoadWidth
	citySpan := float64(cfg.PlotsPerSide)*pitch - cfg.RoadWidth

	for c := 0; c < cfg.Cities; c++ {
		ox := float64(c) * (citySpan + cfg.CityGap)
		city := City{
			ID:        c,
			FirstPlot: len(l.plots),
			Side:      cfg.PlotsPerSide,
			BCube:     geom.C(ox, ox+citySpan, 0, citySpan, 0, 0).ExpandXY(cfg.RoadWidth),
		}
		for gy := 0; gy < cfg.PlotsPerSide; gy++ {
			for gx := 0; gx < cfg.PlotsPerSide; gx++ {
				x1 := ox + float64(gx)*pitch
				y1 := float64(gy) * pitch
				plot := Plot{
					ID:    len(l.plots),
					City:  c,
					GX:    gx,
					GY:    gy,
					BCube: geom.C(x1, x1+cfg.PlotSize, y1, y1+cfg.PlotSize, 0, 0),
				}
				l.placeBuildings(&plot, densityNoise, heightNoise, rng)
				l.placeColliders(&plot, rng)
				l.placeStreetFurniture(&plot)
				l.plots = append(l.plots, plot)
			}
		}
		l.cities = append(l.cities, city)
	}
	return l
}

// placeBuildings fills the plot's lot grid. Every plot gets at least one
// building so destinations can always be chosen.
func (l *Layout) placeBuildings(p *Plot, density, height opensimplex.Noise, rng *rand.Rand) {
	cfg := l.cfg
	lot := cfg.PlotSize / float64(cfg.LotsPerSide)
	margin := 0.15 * lot

	add := func(lx, ly int, h float64) {
		x1 := p.BCube.Min.X + float64(lx)*lot + margin
		y1 := p.BCube.Min.Y + float64(ly)*lot + margin
		w := (lot - 2*margin) * (0.7 + 0.3*rng.Float64())
		d := (lot - 2*margin) * (0.7 + 0.3*rng.Float64())
		b := Building{
			ID:    len(l.buildings),
			Plot:  p.ID,
			BCube: geom.C(x1, x1+w, y1, y1+d, 0, 10+h*cfg.MaxHeight),
		}
		l.buildings = append(l.buildings, b)
		p.Buildings = append(p.Buildings, b.ID)
	}

	for ly := 0; ly < cfg.LotsPerSide; ly++ {
		for lx := 0; lx < cfg.LotsPerSide; lx++ {
			cx := p.BCube.Min.X + (float64(lx)+0.5)*lot
			cy := p.BCube.Min.Y + (float64(ly)+0.5)*lot
			if octaveNoise(density, cx, cy, 3, 0.01, 0.5) > cfg.Density {
				continue
			}
			add(lx, ly, octaveNoise(height, cx, cy, 2, 0.005, 0.5))
		}
	}
	if len(p.Buildings) == 0 {
		mid := cfg.LotsPerSide / 2
		add(mid, mid, 0.5)
	}
}

// placeColliders drops small planters where lot boundaries cross, which is
// always between buildings.
func (l *Layout) placeColliders(p *Plot, rng *rand.Rand) {
	cfg := l.cfg
	lot := cfg.PlotSize / float64(cfg.LotsPerSide)
	half := 0.025 * lot
	for ly := 1; ly < cfg.LotsPerSide; ly++ {
		for lx := 1; lx < cfg.LotsPerSide; lx++ {
			if rng.Float64() >= cfg.ColliderOdds {
				continue
			}
			x := p.BCube.Min.X + float64(lx)*lot
			y := p.BCube.Min.Y + float64(ly)*lot
			p.Colliders = append(p.Colliders, geom.C(x-half, x+half, y-half, y+half, 0, 1))
		}
	}
	slices.SortFunc(p.Colliders, func(a, b geom.Cube) int {
		switch {
		case a.Min.X < b.Min.X:
			return -1
		case a.Min.X > b.Min.X:
			return 1
		}
		return 0
	})
}

// placeStreetFurniture puts a traffic-light pole off each plot corner and a
// streetlight at the middle of each edge, both just outside the plot.
func (l *Layout) placeStreetFurniture(p *Plot) {
	cfg := l.cfg
	off := cfg.StreetlightAt * cfg.PlotSize
	b := p.BCube.ExpandXY(off)
	c := p.BCube.Center()
	for _, pt := range []geom.Vec3{
		{X: b.Min.X, Y: b.Min.Y}, {X: b.Min.X, Y: b.Max.Y},
		{X: b.Max.X, Y: b.Max.Y}, {X: b.Max.X, Y: b.Min.Y},
	} {
		p.TrafficPoles = append(p.TrafficPoles, Pole{Pos: pt, Radius: cfg.PoleRadius, Height: 6})
	}
	for _, pt := range []geom.Vec3{
		{X: c.X, Y: b.Min.Y}, {X: c.X, Y: b.Max.Y},
		{X: b.Min.X, Y: c.Y}, {X: b.Max.X, Y: c.Y},
	} {
		p.Streetlights = append(p.Streetlights, Pole{Pos: pt, Radius: cfg.PoleRadius, Height: 8})
	}
}

// octaveNoise samples layered simplex noise, normalized to [0, 1].
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
