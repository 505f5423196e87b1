// Per-tick pedestrian update: integrate, validate, steer, recover.
package agents

import (
	"math"

	"github.com/samber/lo"

	"github.com/talgya/pedsim/internal/geom"
	"github.com/talgya/pedsim/internal/pathfind"
)

const (
	stuckNudgeAfter  = 8   // consecutive collisions before position nudges start
	stuckToDestAfter = 100 // consecutive collisions before nudging toward the raw destination
	focusRadiusScale = 1000.0
)

// DeltaDir is the turning-rate blend factor for a tick of fticks frames.
func DeltaDir(fticks float64) float64 {
	return 1.2 * (1 - math.Pow(0.7, fticks))
}

// NextFrame advances the pedestrian at peds[ix] by one tick.
func (p *Pedestrian) NextFrame(nav Navigator, peds []Pedestrian, ix int, deltaDir, fticks float64) Event {
	if p.Destroyed {
		return 0
	}
	var ev Event
	w := nav.World()

	if p.AtDest {
		// Pause at the door for a tick while a new destination is chosen.
		ev |= EventArrived
		nav.ChooseDestBuilding(p)
		p.IsStopped = true
	}
	if p.AtCrosswalk {
		nav.MarkCrosswalkInUse(p)
		ev |= EventCrosswalk
	}
	if p.Vel.IsZero() {
		p.IsStopped, p.AtCrosswalk = false, false
		return ev
	}
	plotBCube := w.PlotBCube(p.Plot)
	nextPlotBCube := w.PlotBCube(p.NextPlot)
	prevPos := p.Pos
	if !p.IsStopped {
		p.Pos = p.Pos.Add(p.Vel.Scale(fticks))
		ev |= EventMoved
	}
	p.IsStopped, p.AtCrosswalk, p.InTheRoad = false, false, false
	plotBefore := p.Plot
	colliders := w.Colliders(p.Plot)

	switch {
	case p.Collided:
		// already hit by an earlier pedestrian this tick
	case !p.checkInsidePlot(nav, plotBCube, nextPlotBCube):
		p.Collided = true
	case !p.isValidPos(w, colliders):
		p.Collided = true
	case p.checkRoadColl(w, plotBCube, nextPlotBCube):
		p.Collided = true
	case p.CheckPedPedColl(nav, peds, ix):
		p.Collided = true
	default:
		ev |= p.steer(nav, colliders, plotBCube, nextPlotBCube, deltaDir)
		p.StuckCount = 0
	}
	if p.Plot != plotBefore {
		ev |= EventPlotChange
	}

	if p.Collided {
		ev |= EventCollided
		if p.PedColl {
			ev |= EventPedColl
		}
		p.recover(nav, peds, prevPos, plotBCube, nextPlotBCube)
		if p.StuckCount > stuckNudgeAfter {
			ev |= EventStuck
		}
	}
	if !p.Vel.IsZero() {
		dd := deltaDir
		if !p.Collided && p.TargetValid() {
			dd = lo.Clamp(4*dd, 0, 1) // tighter turns toward an unobstructed target
		}
		p.Dir = p.Vel.Scale(dd / p.Vel.Mag()).Add(p.Dir.Scale(1 - dd)).Norm()
	}
	p.Collided, p.PedColl = false, false
	return ev
}

// steer refreshes the route target when due and blends the velocity toward
// it, keeping speed constant.
func (p *Pedestrian) steer(nav Navigator, colliders []geom.Cube, plotBCube, nextPlotBCube geom.Cube, deltaDir float64) Event {
	var ev Event
	w := nav.World()
	dest := p.DestPos(w, plotBCube, nextPlotBCube)
	if dest == p.Pos {
		return 0
	}
	if p.AtDest || p.routeRefreshDue(nav) {
		f := nav.Finder()
		f.Avoid = p.AvoidCubes(w, colliders, dest, f.Avoid[:0])
		p.invalidateTarget()
		next, res := f.Run(p.Pos, dest, plotBCube, 0.1*p.Radius)
		switch {
		case res.Changed() && f.FoundCompletePath():
			ev |= EventRerouted
		case res.Changed():
			ev |= EventPartialRoute
		case res == pathfind.NoRoute:
			ev |= EventNoRoute
		}
		if res.Changed() {
			dest = next
			p.TargetPos, p.HasTarget = next, true
		}
	} else if p.TargetValid() {
		dest = p.TargetPos
	}

	destDir := geom.V(dest.X-p.Pos.X, dest.Y-p.Pos.Y, 0)
	vmag, dmag := p.Vel.Mag(), destDir.Mag()
	if vmag <= geom.Tolerance || dmag <= geom.Tolerance {
		return ev
	}
	destDir = destDir.Scale(1 / dmag)
	if destDir.Dot(p.Vel)/vmag < -0.99 {
		// Straight behind: turn to a side chosen by identity parity.
		destDir = p.Vel.PerpXY().Norm()
		if p.SSN&1 == 0 {
			destDir = destDir.Neg()
		}
	}
	v := destDir.Scale(0.1 * deltaDir).Add(p.Vel.Scale((1 - deltaDir) / vmag))
	p.Vel = v.Scale(vmag / v.Mag())
	return ev
}

// routeRefreshDue staggers path finding across ticks by identity. Pedestrians
// near the focus point refresh more often, and whenever they reach their
// cached target.
func (p *Pedestrian) routeRefreshDue(nav Navigator) bool {
	phase := nav.Frame() + uint64(p.SSN)
	if geom.DistLessThan(p.Pos, nav.Focus(), focusRadiusScale*p.Radius) {
		return phase&15 == 0 || (p.TargetValid() && geom.DistLessThan(p.Pos, p.TargetPos, p.Radius))
	}
	return phase&63 == 0
}

// recover undoes a colliding move and picks a new heading at the same speed.
// A long collision streak escalates to small nudges toward the route target,
// then toward the raw destination, else in a random direction.
func (p *Pedestrian) recover(nav Navigator, peds []Pedestrian, prevPos geom.Vec3, plotBCube, nextPlotBCube geom.Cube) {
	rng := nav.Rand()
	p.Pos = prevPos
	step := 0.1 * p.Radius

	if p.StuckCount < math.MaxUint8 {
		p.StuckCount++
	}
	if p.StuckCount > stuckNudgeAfter {
		switch {
		case p.TargetValid():
			p.Pos = p.Pos.Add(p.TargetPos.Sub(p.Pos).Norm().Scale(step))
		case p.StuckCount > stuckToDestAfter:
			dest := p.DestPos(nav.World(), plotBCube, nextPlotBCube)
			p.Pos = p.Pos.Add(dest.Sub(p.Pos).Norm().Scale(step))
		default:
			p.Pos = p.Pos.Add(geom.RandVecXY(rng).Scale(step))
		}
	}

	var newDir geom.Vec3
	other, ok := -1, false
	if p.PedColl {
		other, ok = nav.PedIndex(p.CollidingSSN)
	}
	if ok {
		newDir = p.Vel.PerpXY()
		if newDir.Dot(peds[other].Pos.Sub(p.Pos)) > 0 {
			newDir = newDir.Neg() // away from the other pedestrian
		}
	} else {
		newDir = geom.RandVecXY(rng)
		if p.Vel.Dot(newDir) > 0 {
			newDir = newDir.Neg()
		}
	}
	if m := newDir.Mag(); m > 0 {
		p.Vel = newDir.Scale(p.Vel.Mag() / m)
	}
	p.invalidateTarget()
}
