package geom

import (
	"fmt"
	"math"
	"math/rand"
)

// Cube is an axis-aligned bounding box.
type Cube struct {
	Min Vec3 `json:"min"`
	Max Vec3 `json:"max"`
}

// C returns the cube spanning [x1,x2]×[y1,y2]×[z1,z2].
func C(x1, x2, y1, y2, z1, z2 float64) Cube {
	return Cube{Min: Vec3{x1, y1, z1}, Max: Vec3{x2, y2, z2}}
}

// CubeFromPoint returns a zero-size cube at p.
func CubeFromPoint(p Vec3) Cube {
	return Cube{Min: p, Max: p}
}

func (c Cube) DX() float64 { return c.Max.X - c.Min.X }
func (c Cube) DY() float64 { return c.Max.Y - c.Min.Y }

// Center returns the cube's center point.
func (c Cube) Center() Vec3 {
	return c.Min.Add(c.Max).Scale(0.5)
}

// Edge returns the bound for dim on the low (dir=0) or high (dir=1) side.
func (c Cube) Edge(dim, dir int) float64 {
	if dir == 0 {
		return c.Min.Get(dim)
	}
	return c.Max.Get(dim)
}

// IsDegenerateXY reports whether the cube has no area in the XY plane.
func (c Cube) IsDegenerateXY() bool {
	return c.Max.X <= c.Min.X || c.Max.Y <= c.Min.Y
}

// ContainsPtXY reports whether p lies inside the cube's XY footprint,
// boundary included.
func (c Cube) ContainsPtXY(p Vec3) bool {
	return p.X >= c.Min.X && p.X <= c.Max.X && p.Y >= c.Min.Y && p.Y <= c.Max.Y
}

// StrictlyContainsPtXY reports whether p lies in the open interior of the
// cube's XY footprint.
func (c Cube) StrictlyContainsPtXY(p Vec3) bool {
	return p.X > c.Min.X && p.X < c.Max.X && p.Y > c.Min.Y && p.Y < c.Max.Y
}

// IntersectsXY reports whether the XY footprints overlap, touching included.
func (c Cube) IntersectsXY(o Cube) bool {
	return c.Min.X <= o.Max.X && c.Max.X >= o.Min.X && c.Min.Y <= o.Max.Y && c.Max.Y >= o.Min.Y
}

// ExpandXY grows the cube by d on each horizontal side.
func (c Cube) ExpandXY(d float64) Cube {
	c.Min.X -= d
	c.Min.Y -= d
	c.Max.X += d
	c.Max.Y += d
	return c
}

// UnionPt grows the cube to include p.
func (c Cube) UnionPt(p Vec3) Cube {
	c.Min = Vec3{math.Min(c.Min.X, p.X), math.Min(c.Min.Y, p.Y), math.Min(c.Min.Z, p.Z)}
	c.Max = Vec3{math.Max(c.Max.X, p.X), math.Max(c.Max.Y, p.Y), math.Max(c.Max.Z, p.Z)}
	return c
}

// ClampPtXY moves p onto the cube's XY footprint.
func (c Cube) ClampPtXY(p Vec3) Vec3 {
	p.X = math.Max(c.Min.X, math.Min(c.Max.X, p.X))
	p.Y = math.Max(c.Min.Y, math.Min(c.Max.Y, p.Y))
	return p
}

// ClosestPt returns the point of the cube nearest to p.
func (c Cube) ClosestPt(p Vec3) Vec3 {
	p = c.ClampPtXY(p)
	p.Z = math.Max(c.Min.Z, math.Min(c.Max.Z, p.Z))
	return p
}

// RandPtXY returns a uniformly random point whose distance from every XY
// edge is at least margin. Z is set to the cube's floor.
func (c Cube) RandPtXY(margin float64, rng *rand.Rand) Vec3 {
	x1, x2 := c.Min.X+margin, c.Max.X-margin
	y1, y2 := c.Min.Y+margin, c.Max.Y-margin
	if x2 < x1 {
		x1, x2 = c.Center().X, c.Center().X
	}
	if y2 < y1 {
		y1, y2 = c.Center().Y, c.Center().Y
	}
	return Vec3{X: x1 + rng.Float64()*(x2-x1), Y: y1 + rng.Float64()*(y2-y1), Z: c.Min.Z}
}

func (c Cube) String() string {
	return fmt.Sprintf("[%.2f,%.2f]x[%.2f,%.2f]x[%.2f,%.2f]",
		c.Min.X, c.Max.X, c.Min.Y, c.Max.Y, c.Min.Z, c.Max.Z)
}

// clipHelper narrows [tmin, tmax] against one slab boundary.
func clipHelper(p, q float64, tmin, tmax *float64) bool {
	if p == 0 {
		return q >= 0
	}
	r := q / p
	if p < 0 {
		if r > *tmax {
			return false
		}
		if r > *tmin {
			*tmin = r
		}
	} else {
		if r < *tmin {
			return false
		}
		if r < *tmax {
			*tmax = r
		}
	}
	return true
}

// LineClipXY clips segment p1→p2 against the cube's XY footprint. It
// returns the parametric interval [tmin, tmax] within [0,1] and whether the
// segment passes through the interior. Segments that only graze an edge or
// corner report no intersection.
func LineClipXY(p1, p2 Vec3, c Cube) (tmin, tmax float64, ok bool) {
	tmin, tmax = 0, 1
	dx, dy := p2.X-p1.X, p2.Y-p1.Y
	if !clipHelper(-dx, p1.X-c.Min.X, &tmin, &tmax) ||
		!clipHelper(dx, c.Max.X-p1.X, &tmin, &tmax) ||
		!clipHelper(-dy, p1.Y-c.Min.Y, &tmin, &tmax) ||
		!clipHelper(dy, c.Max.Y-p1.Y, &tmin, &tmax) {
		return 0, 0, false
	}
	if tmax <= tmin {
		return 0, 0, false
	}
	// Running exactly along an edge is contact, not crossing.
	if (dx == 0 && (p1.X <= c.Min.X || p1.X >= c.Max.X)) || (dy == 0 && (p1.Y <= c.Min.Y || p1.Y >= c.Max.Y)) {
		return 0, 0, false
	}
	return tmin, tmax, true
}

// LineIntersectsXY reports whether segment p1→p2 crosses the cube's interior
// in the XY plane.
func LineIntersectsXY(p1, p2 Vec3, c Cube) bool {
	_, _, ok := LineClipXY(p1, p2, c)
	return ok
}

// LineIntersects reports whether segment p1→p2 touches the cube in 3D.
func (c Cube) LineIntersects(p1, p2 Vec3) bool {
	tmin, tmax := 0.0, 1.0
	d := p2.Sub(p1)
	for dim := 0; dim < 3; dim++ {
		if !clipHelper(-d.Get(dim), p1.Get(dim)-c.Min.Get(dim), &tmin, &tmax) ||
			!clipHelper(d.Get(dim), c.Max.Get(dim)-p1.Get(dim), &tmin, &tmax) {
			return false
		}
	}
	return tmin <= tmax
}

// SphereIntersectsXY reports whether a circle of radius r at p overlaps
// the cube's XY footprint.
func (c Cube) SphereIntersectsXY(p Vec3, r float64) bool {
	return DistXYLessThan(p, c.ClampPtXY(p), r) || c.ContainsPtXY(p)
}

// SphereIntersects reports whether a sphere of radius r at p overlaps the cube.
func (c Cube) SphereIntersects(p Vec3, r float64) bool {
	return DistLessThan(p, c.ClosestPt(p), r) || (c.ContainsPtXY(p) && p.Z >= c.Min.Z && p.Z <= c.Max.Z)
}

// AnyContainsPtXY reports whether any cube contains p in the XY plane.
func AnyContainsPtXY(cubes []Cube, p Vec3) bool {
	for _, c := range cubes {
		if c.ContainsPtXY(p) {
			return true
		}
	}
	return false
}

// LineIntersectsAnyXY reports whether segment p1→p2 crosses any cube.
func LineIntersectsAnyXY(p1, p2 Vec3, cubes []Cube) bool {
	for _, c := range cubes {
		if LineIntersectsXY(p1, p2, c) {
			return true
		}
	}
	return false
}

// ExpandAllXY grows every cube in place by d.
func ExpandAllXY(cubes []Cube, d float64) {
	for i := range cubes {
		cubes[i] = cubes[i].ExpandXY(d)
	}
}

// RemoveContainingXY removes the first cube containing p (swap with last,
// order not preserved) and reports whether one was removed.
func RemoveContainingXY(cubes []Cube, p Vec3) ([]Cube, bool) {
	for i := range cubes {
		if cubes[i].ContainsPtXY(p) {
			last := len(cubes) - 1
			cubes[i] = cubes[last]
			return cubes[:last], true
		}
	}
	return cubes, false
}

// LineSphereClosestT returns the parametric distance along p1→p2 of the first
// intersection with the sphere at center with radius r.
func LineSphereClosestT(p1, p2, center Vec3, r float64) (float64, bool) {
	d := p2.Sub(p1)
	a := d.Dot(d)
	if a < Tolerance*Tolerance {
		return 0, DistLessThan(p1, center, r)
	}
	f := p1.Sub(center)
	b := 2 * f.Dot(d)
	cc := f.Dot(f) - r*r
	disc := b*b - 4*a*cc
	if disc < 0 {
		return 0, false
	}
	sq := math.Sqrt(disc)
	t := (-b - sq) / (2 * a)
	if t < 0 {
		if cc <= 0 {
			return 0, true // p1 inside the sphere
		}
		return 0, false
	}
	if t > 1 {
		return 0, false
	}
	return t, true
}
