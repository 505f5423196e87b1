// Package pathfind routes a pedestrian around the obstacle cubes of a single
// plot. Routes are piecewise-linear and found by a depth-bounded search that
// detours around the corners of each obstacle it hits.
package pathfind

import (
	"github.com/talgya/pedsim/internal/geom"
)

// Path is an ordered list of waypoints with a cached total length.
type Path struct {
	Points []geom.Vec3
	Length float64
}

// Init resets the path to the straight segment a→b.
func (p *Path) Init(a, b geom.Vec3) {
	p.Points = append(p.Points[:0], a, b)
	p.CalcLength()
}

// Clear empties the path without releasing its storage.
func (p *Path) Clear() {
	p.Points = p.Points[:0]
	p.Length = 0
}

// Empty reports whether the path has no points.
func (p *Path) Empty() bool {
	return len(p.Points) == 0
}

// CalcLength recomputes and caches the total length.
func (p *Path) CalcLength() float64 {
	p.Length = p.LengthUpTo(len(p.Points))
	return p.Length
}

// LengthUpTo returns the length of the first n points of the path.
func (p *Path) LengthUpTo(n int) float64 {
	if n > len(p.Points) {
		panic("pathfind: length requested past end of path")
	}
	var l float64
	for i := 0; i+1 < n; i++ {
		l += geom.Dist(p.Points[i], p.Points[i+1])
	}
	return l
}

// BCube returns the bounding cube of all points.
func (p *Path) BCube() geom.Cube {
	if p.Empty() {
		panic("pathfind: bounding cube of empty path")
	}
	bc := geom.CubeFromPoint(p.Points[0])
	for _, pt := range p.Points[1:] {
		bc = bc.UnionPt(pt)
	}
	return bc
}

// CopyFrom makes p an independent copy of o.
func (p *Path) CopyFrom(o *Path) {
	p.Points = append(p.Points[:0], o.Points...)
	p.Length = o.Length
}

// Clone returns an independent copy of the path.
func (p *Path) Clone() Path {
	var c Path
	c.CopyFrom(p)
	return c
}
