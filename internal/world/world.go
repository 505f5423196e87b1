// Package world provides the city layout that pedestrians walk through:
// cities made of plots (city blocks) separated by roads, with buildings,
// small static colliders, and street furniture.
//
// The pedestrian manager only talks to the World interface. Layout is the
// procedurally generated implementation used by the simulator and tests.
package world

import (
	"math/rand"

	"github.com/talgya/pedsim/internal/geom"
)

// World is the set of city queries the pedestrian simulation consumes.
// Plot ids are global and contiguous per city.
type World interface {
	NumCities() int
	NumPlots() int
	CityPlots(city int) (first, end int)
	CityBCube(city int) geom.Cube
	PlotBCube(plot int) geom.Cube
	PlotCity(plot int) int
	RoadWidth() float64

	// Colliders returns the plot's static colliders sorted by Min.X.
	Colliders(plot int) []geom.Cube

	BuildingsInRegion(region geom.Cube, out []geom.Cube) []geom.Cube
	BuildingBCube(id int) geom.Cube
	CheckBuildingColl(pos geom.Vec3, radius float64, plot int) (bldg int, hit bool)

	// StreetlightReach is how far outside a plot edge street furniture extends.
	StreetlightReach() float64
	PoleRadius() float64
	CheckIntersectionSphereColl(pos geom.Vec3, radius float64, plot int) bool
	CheckStreetlightSphereColl(pos geom.Vec3, radius float64, plot int) bool

	NextPlot(plot, destPlot int) int
	ChooseDestination(rng *rand.Rand, city int) (plot, bldg int)
}

// Building is a single building footprint owned by a plot.
type Building struct {
	ID    int       `json:"id"`
	Plot  int       `json:"plot"`
	BCube geom.Cube `json:"bcube"`
}

// Pole is a vertical cylinder of street furniture.
type Pole struct {
	Pos    geom.Vec3 `json:"pos"`
	Radius float64   `json:"radius"`
	Height float64   `json:"height"`
}

// Plot is one city block.
type Plot struct {
	ID           int         `json:"id"`
	City         int         `json:"city"`
	GX, GY       int         `json:"-"` // grid position within the city
	BCube        geom.Cube   `json:"bcube"`
	Buildings    []int       `json:"buildings"`
	Colliders    []geom.Cube `json:"colliders"`
	Streetlights []Pole      `json:"streetlights"`
	TrafficPoles []Pole      `json:"traffic_poles"`
}

// City is a square grid of plots.
type City struct {
	ID        int       `json:"id"`
	FirstPlot int       `json:"first_plot"`
	Side      int       `json:"side"` // plots per side
	BCube     geom.Cube `json:"bcube"`
}
