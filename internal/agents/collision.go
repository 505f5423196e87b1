package agents

import (
	"github.com/talgya/pedsim/internal/geom"
	"github.com/talgya/pedsim/internal/world"
)

// pedCollScale shrinks the summed radii so pedestrians can pass close by.
const pedCollScale = 0.6

// checkInsidePlot commits a plot transition when the pedestrian has crossed
// into its next plot, and lets it walk freely in the road between plots.
// It returns false only when the pedestrian left a plot it has no reason to
// leave.
func (p *Pedestrian) checkInsidePlot(nav Navigator, plotBCube, nextPlotBCube geom.Cube) bool {
	if plotBCube.ContainsPtXY(p.Pos) {
		return true
	}
	p.StuckCount = 0
	if p.NextPlot == p.Plot {
		return false
	}
	if nextPlotBCube.ContainsPtXY(p.Pos) {
		nav.MovePedToNextPlot(p)
		p.NextPlot = nav.World().NextPlot(p.Plot, p.DestPlot)
		return true
	}
	p.InTheRoad = true
	p.AtCrosswalk = nearCorner(plotBCube, p.Pos, nav.World().RoadWidth())
	return true
}

func nearCorner(c geom.Cube, pos geom.Vec3, d float64) bool {
	for dim := 0; dim < 2; dim++ {
		a, b := c.Min.Get(dim), c.Max.Get(dim)
		if v := pos.Get(dim); v > a+d && v < b-d {
			return false // alongside an edge, away from both corners
		}
	}
	return true
}

// isValidPos checks buildings and the plot's static colliders. Touching the
// destination building counts as arriving, and is valid only on the tick of
// arrival.
func (p *Pedestrian) isValidPos(w world.World, colliders []geom.Cube) bool {
	if p.InTheRoad {
		return true
	}
	if id, hit := w.CheckBuildingColl(p.Pos, p.Radius, p.Plot); hit {
		if id != p.DestBldg {
			return false
		}
		arrived := !p.AtDest
		p.AtDest = true
		return arrived
	}
	xmin, xmax := p.Pos.X-p.Radius, p.Pos.X+p.Radius
	for _, c := range colliders {
		if c.Max.X < xmin {
			continue
		}
		if c.Min.X > xmax {
			break // sorted by Min.X
		}
		if c.SphereIntersects(p.Pos, p.Radius) {
			return false
		}
	}
	return true
}

// checkRoadColl tests street furniture, which only matters while crossing
// and close to a plot edge.
func (p *Pedestrian) checkRoadColl(w world.World, plotBCube, nextPlotBCube geom.Cube) bool {
	if !p.InTheRoad {
		return false
	}
	reach := w.StreetlightReach() + p.Radius
	if !plotBCube.ExpandXY(reach).ContainsPtXY(p.Pos) && !nextPlotBCube.ExpandXY(reach).ContainsPtXY(p.Pos) {
		return false
	}
	for _, plot := range [2]int{p.Plot, p.NextPlot} {
		if w.CheckIntersectionSphereColl(p.Pos, p.Radius, plot) || w.CheckStreetlightSphereColl(p.Pos, p.Radius, plot) {
			return true
		}
	}
	return false
}

// CheckPedPedColl tests peds[ix] against pedestrians later in the array on
// the same plot, and, while crossing the road, against those already on the
// next plot. A hit is registered on both pedestrians.
func (p *Pedestrian) CheckPedPedColl(nav Navigator, peds []Pedestrian, ix int) bool {
	if ix < 0 || ix >= len(peds) {
		panic("agents: pedestrian index out of range")
	}
	lookahead := 2 * TicksPerSecond * p.Vel.Mag()
	proxRadius := 1.2*p.Radius + lookahead

	for i := ix + 1; i < len(peds); i++ {
		o := &peds[i]
		if o.Plot != p.Plot {
			break // plot ids are global, so this also ends the city
		}
		if o.SSN == p.SSN || o.Destroyed {
			continue
		}
		if !geom.DistXYLessThan(p.Pos, o.Pos, proxRadius) {
			continue
		}
		if geom.DistXYLessThan(p.Pos, o.Pos, pedCollScale*(p.Radius+o.Radius)) {
			registerPedColl(p, o)
			return true
		}
	}
	if !p.InTheRoad || p.NextPlot == p.Plot {
		return false
	}
	// Pedestrians crossing toward each other from opposite sides are
	// bucketed on different plots.
	start := nav.FirstPedAtPlot(p.NextPlot)
	if start > len(peds) {
		panic("agents: plot range past end of pedestrians")
	}
	for i := start; i < len(peds); i++ {
		o := &peds[i]
		if o.Plot != p.NextPlot {
			break
		}
		if o.SSN == p.SSN || o.Destroyed {
			continue
		}
		if geom.DistXYLessThan(p.Pos, o.Pos, pedCollScale*(p.Radius+o.Radius)) {
			registerPedColl(p, o)
			return true
		}
	}
	return false
}

func registerPedColl(a, b *Pedestrian) {
	a.Collided, a.PedColl, a.CollidingSSN = true, true, b.SSN
	b.Collided, b.PedColl, b.CollidingSSN = true, true, a.SSN
}

// DestPos is where the pedestrian is currently heading: the center of its
// destination building once on the destination plot, else the nearest point
// of the next plot. It returns Pos when there is nowhere to go.
func (p *Pedestrian) DestPos(w world.World, plotBCube, nextPlotBCube geom.Cube) geom.Vec3 {
	switch {
	case p.Plot == p.DestPlot:
		if p.AtDest || p.DestBldg < 0 {
			return p.Pos
		}
		dest := w.BuildingBCube(p.DestBldg).Center()
		dest.Z = p.Pos.Z
		return dest
	case p.NextPlot != p.Plot && !nextPlotBCube.ContainsPtXY(p.Pos):
		dest := nextPlotBCube.ClosestPt(p.Pos)
		if !plotBCube.ContainsPtXY(p.Pos) {
			// Left the current plot on the wrong side: head back in.
			back := plotBCube.ClosestPt(p.Pos)
			if p.Pos.Sub(dest).Dot(p.Pos.Sub(back)) > 0 {
				dest = back
			}
		}
		dest.Z = p.Pos.Z
		return dest
	}
	return p.Pos
}

// AvoidCubes appends to avoid the obstacles for a route toward dest: nearby
// buildings and the plot's colliders, grown by slightly more than the radius.
// The destination building is left out on the destination plot.
func (p *Pedestrian) AvoidCubes(w world.World, colliders []geom.Cube, dest geom.Vec3, avoid []geom.Cube) []geom.Cube {
	start := len(avoid)
	avoid = w.BuildingsInRegion(w.PlotBCube(p.Plot), avoid)
	expand := 1.1 * p.Radius
	geom.ExpandAllXY(avoid[start:], expand)
	if p.Plot == p.DestPlot {
		var tail []geom.Cube
		tail, _ = geom.RemoveContainingXY(avoid[start:], dest)
		avoid = avoid[:start+len(tail)]
	}
	nb := len(avoid)
	avoid = append(avoid, colliders...)
	geom.ExpandAllXY(avoid[nb:], expand)
	return avoid
}
