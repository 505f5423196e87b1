package pathfind

import (
	"math"

	"github.com/talgya/pedsim/internal/geom"
)

// DefaultMaxDepth bounds the number of obstacles a single route may detour
// around. Each level at most doubles the work.
const DefaultMaxDepth = 8

// Result describes the outcome of Finder.Run.
type Result uint8

const (
	NoPathNeeded      Result = iota // straight line is clear; destination unchanged
	Rerouted                        // next waypoint of a detour returned
	ReroutedFromClamp               // start was outside the plot or inside an obstacle
	NoRoute                         // no complete or partial route; destination unchanged
)

// Changed reports whether Run replaced the destination.
func (r Result) Changed() bool {
	return r == Rerouted || r == ReroutedFromClamp
}

func (r Result) String() string {
	switch r {
	case NoPathNeeded:
		return "no_path_needed"
	case Rerouted:
		return "rerouted"
	case ReroutedFromClamp:
		return "rerouted_from_clamp"
	default:
		return "no_route"
	}
}

// Finder searches for short routes around a set of obstacle cubes.
//
// Avoid must be mutually non-overlapping and should leave gaps of at least
// two agent radii between cubes; violating this degrades route quality but
// never correctness.
type Finder struct {
	Avoid    []geom.Cube
	MaxDepth int

	pos, dest geom.Vec3
	plot      geom.Cube
	gap       float64

	cur          Path
	best         Path
	partial      Path
	partialScore float64 // traveled + 2*shortfall of partial
	stack        []Path  // one scratch path per recursion depth
}

// NewFinder returns a Finder with the default depth bound.
func NewFinder() *Finder {
	return &Finder{MaxDepth: DefaultMaxDepth}
}

// Run finds a route from pos toward dest inside plot, keeping detour
// waypoints gap outside each obstacle corner. It returns the point the
// caller should head for next.
func (f *Finder) Run(pos, dest geom.Vec3, plot geom.Cube, gap float64) (geom.Vec3, Result) {
	if !geom.LineIntersectsAnyXY(pos, dest, f.Avoid) {
		return dest, NoPathNeeded
	}
	f.dest, f.plot, f.gap = dest, plot, gap
	nextIx := 1

	if !plot.ContainsPtXY(pos) {
		pos = plot.ClampPtXY(pos)
		nextIx = 0
	} else {
		for _, c := range f.Avoid {
			if !c.ContainsPtXY(pos) {
				continue
			}
			pos = pushToNearestEdgeXY(pos, c)
			nextIx = 0
			break // at most one cube contains pos
		}
	}
	f.pos = pos

	if !f.findBestPath() {
		return dest, NoRoute
	}
	path := f.BestPath()
	if nextIx >= len(path.Points) {
		panic("pathfind: route shorter than next waypoint index")
	}
	if nextIx == 0 {
		return path.Points[0], ReroutedFromClamp
	}
	return path.Points[nextIx], Rerouted
}

// FoundCompletePath reports whether the last search reached the destination.
func (f *Finder) FoundCompletePath() bool {
	return !f.best.Empty()
}

// FoundPath reports whether the last search produced any usable route.
func (f *Finder) FoundPath() bool {
	return f.FoundCompletePath() || !f.partial.Empty()
}

// BestPath returns the complete route if one was found, else the best
// partial route. The result is owned by the Finder.
func (f *Finder) BestPath() *Path {
	if f.FoundCompletePath() {
		return &f.best
	}
	return &f.partial
}

func pushToNearestEdgeXY(pos geom.Vec3, c geom.Cube) geom.Vec3 {
	best := pos
	dmin := math.Inf(1)
	for dim := 0; dim < 2; dim++ {
		for dir := 0; dir < 2; dir++ {
			edge := c.Edge(dim, dir)
			if d := math.Abs(pos.Get(dim) - edge); d < dmin {
				best = pos
				best.Set(dim, edge)
				dmin = d
			}
		}
	}
	return best
}

func (f *Finder) findBestPath() bool {
	maxDepth := f.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if len(f.stack) < maxDepth {
		f.stack = make([]Path, maxDepth)
	}
	f.best.Clear()
	f.partial.Clear()
	f.cur.Init(f.pos, f.dest)
	// Upper bound on acceptable length; also limits how far the search wanders.
	f.best.Length = 5 * f.cur.Length
	f.partialScore = f.best.Length

	f.search(&f.cur, make([]bool, len(f.Avoid)), 0, maxDepth)
	f.ShortenPath(&f.best)
	f.ShortenPath(&f.partial)
	f.partial.CalcLength()
	return f.FoundPath()
}

// search extends cur around the first obstacle it crosses. used is owned by
// the caller; each level that consumes an obstacle works on its own copy.
func (f *Finder) search(cur *Path, used []bool, depth, maxDepth int) {
	if depth >= maxDepth {
		return
	}
	if cur.Length >= f.best.Length {
		return
	}
	bc := cur.BCube()
	first, hit := -1, -1
	tmin := 1.0

	for ix, c := range f.Avoid {
		if used[ix] || !c.IntersectsXY(bc) {
			continue
		}
		for p := 0; p+1 < len(cur.Points) && (first < 0 || p <= first); p++ {
			ct, _, ok := geom.LineClipXY(cur.Points[p], cur.Points[p+1], c)
			if !ok {
				continue
			}
			if first < 0 || p < first || ct < tmin {
				first, tmin, hit = p, ct, ix
			}
		}
	}
	if hit < 0 {
		if cur.Length < f.best.Length && !f.crossesUsed(cur, used) {
			f.best.CopyFrom(cur)
			f.partial.Clear()
			f.partialScore = 0
		}
		return
	}

	childUsed := make([]bool, len(used))
	copy(childUsed, used)
	childUsed[hit] = true
	next := &f.stack[depth]

	for _, dir := range [2]bool{false, true} {
		if f.detour(next, cur, first, f.Avoid[hit], dir) {
			f.search(next, childUsed, depth+1, maxDepth)
		}
	}
	if first == 0 || f.FoundCompletePath() {
		return
	}
	// Score partial routes by distance covered plus twice the shortfall.
	score := cur.LengthUpTo(first+1) + 2*geom.Dist(cur.Points[first], f.dest)
	if score >= f.partialScore {
		return
	}
	f.partial.Points = append(f.partial.Points[:0], cur.Points[:first+1]...)
	f.partialScore = score
}

// crossesUsed reports whether any segment of cur passes back through an
// obstacle consumed higher up the search.
func (f *Finder) crossesUsed(cur *Path, used []bool) bool {
	for ix, u := range used {
		if !u {
			continue
		}
		for p := 0; p+1 < len(cur.Points); p++ {
			if geom.LineIntersectsXY(cur.Points[p], cur.Points[p+1], f.Avoid[ix]) {
				return true
			}
		}
	}
	return false
}

// detour writes into out a copy of cur with one to three expanded corners of
// c inserted after waypoint p, passing c on the side selected by dir.
func (f *Finder) detour(out, cur *Path, p int, c geom.Cube, dir bool) bool {
	a, n := cur.Points[p], cur.Points[p+1]
	if c.StrictlyContainsPtXY(a) || c.StrictlyContainsPtXY(n) {
		return false // likely overlapping or adjacent cubes
	}
	ec := c.ExpandXY(f.gap)
	// Clockwise from the low corner.
	corners := [4]geom.Vec3{
		{X: c.Min.X, Y: c.Min.Y, Z: a.Z}, {X: c.Min.X, Y: c.Max.Y, Z: a.Z},
		{X: c.Max.X, Y: c.Max.Y, Z: a.Z}, {X: c.Max.X, Y: c.Min.Y, Z: a.Z},
	}
	ecorners := [4]geom.Vec3{
		{X: ec.Min.X, Y: ec.Min.Y, Z: a.Z}, {X: ec.Min.X, Y: ec.Max.Y, Z: a.Z},
		{X: ec.Max.X, Y: ec.Max.Y, Z: a.Z}, {X: ec.Max.X, Y: ec.Min.Y, Z: a.Z},
	}
	delta := n.Sub(a)

	// Silhouette corners: the widest angle from the direction of travel on
	// each side.
	right, left := -1, -1
	var minRight, minLeft float64
	for i, corner := range corners {
		d2 := corner.Sub(a)
		dp := delta.DotXY(d2) / d2.MagXY()
		if delta.CrossXY(d2) < 0 {
			if right < 0 || dp < minRight {
				right, minRight = i, dp
			}
		} else if left < 0 || dp < minLeft {
			left, minLeft = i, dp
		}
	}
	if right < 0 || left < 0 {
		return false // floating-point trouble
	}
	cix, other := right, left
	if dir {
		cix, other = left, right
	}
	step := 1 // walk the corners the long way around, away from other
	if (cix+1)&3 == other {
		step = 3
	}
	if geom.LineIntersectsXY(a, ecorners[cix], c) {
		return false
	}
	out.Points = append(out.Points[:0], cur.Points[:p+1]...)
	if !f.addPoint(out, ecorners[cix]) {
		return false
	}
	for extra := 0; extra < 2 && geom.LineIntersectsXY(n, ecorners[cix], c); extra++ {
		cix = (cix + step) & 3
		if cix == other && extra == 0 {
			return false
		}
		if !f.addPoint(out, ecorners[cix]) {
			return false
		}
	}
	if geom.LineIntersectsXY(n, ecorners[cix], c) {
		return false
	}
	// The remainder of the route must not come back through c, since c is
	// not checked again below this level.
	for i := p + 1; i+1 < len(cur.Points); i++ {
		if geom.LineIntersectsXY(cur.Points[i], cur.Points[i+1], c) {
			return false
		}
	}
	out.Points = append(out.Points, cur.Points[p+1:]...)
	out.CalcLength()
	return true
}

func (f *Finder) addPoint(path *Path, p geom.Vec3) bool {
	if !f.plot.ContainsPtXY(p) {
		return false
	}
	path.Points = append(path.Points, p)
	return true
}

// ShortenPath drops interior waypoints whose removal does not create a new
// crossing with the avoid set. Each pass checks a waypoint against the last
// kept point and its successor; passes repeat until nothing changes, so a
// second call is always a no-op. It reports whether the path changed.
func (f *Finder) ShortenPath(path *Path) bool {
	changed := false
	for len(path.Points) > 2 {
		pts := path.Points
		o := 1
		for i := 1; i < len(pts); i++ {
			if i+1 == len(pts) {
				pts[o] = pts[i] // always keep the last point
				o++
				continue
			}
			if geom.LineIntersectsAnyXY(pts[o-1], pts[i+1], f.Avoid) {
				pts[o] = pts[i]
				o++
			}
		}
		if o == len(pts) {
			break
		}
		path.Points = pts[:o]
		changed = true
	}
	if changed {
		path.CalcLength()
	}
	return changed
}
