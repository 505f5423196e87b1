// Package geom provides the 3D points and axis-aligned cubes used by the
// pedestrian simulation. Most predicates only look at the horizontal (XY)
// plane, since pedestrians never leave the ground.
package geom

import (
	"fmt"
	"math"
	"math/rand"
)

// Tolerance is the smallest magnitude treated as non-zero.
const Tolerance = 1.0e-6

// Vec3 is a point or direction in world space.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// V returns a Vec3.
func V(x, y, z float64) Vec3 {
	return Vec3{X: x, Y: y, Z: z}
}

// Get returns the component for dim (0=x, 1=y, 2=z).
func (v Vec3) Get(dim int) float64 {
	switch dim {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// Set assigns the component for dim.
func (v *Vec3) Set(dim int, val float64) {
	switch dim {
	case 0:
		v.X = val
	case 1:
		v.Y = val
	default:
		v.Z = val
	}
}

func (v Vec3) Add(o Vec3) Vec3        { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3        { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(s float64) Vec3   { return Vec3{v.X * s, v.Y * s, v.Z * s} }
func (v Vec3) Neg() Vec3              { return Vec3{-v.X, -v.Y, -v.Z} }
func (v Vec3) Dot(o Vec3) float64     { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }
func (v Vec3) DotXY(o Vec3) float64   { return v.X*o.X + v.Y*o.Y }
func (v Vec3) CrossXY(o Vec3) float64 { return v.X*o.Y - v.Y*o.X }
func (v Vec3) Mag() float64           { return math.Sqrt(v.Dot(v)) }
func (v Vec3) MagXY() float64         { return math.Hypot(v.X, v.Y) }
func (v Vec3) IsZero() bool           { return v.X == 0 && v.Y == 0 && v.Z == 0 }

// Cross returns the 3D cross product.
func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		X: v.Y*o.Z - v.Z*o.Y,
		Y: v.Z*o.X - v.X*o.Z,
		Z: v.X*o.Y - v.Y*o.X,
	}
}

// Norm returns v scaled to unit length, or v unchanged if it is too short.
func (v Vec3) Norm() Vec3 {
	m := v.Mag()
	if m < Tolerance {
		return v
	}
	return v.Scale(1 / m)
}

// PerpXY returns v rotated 90 degrees clockwise about +Z. This equals
// v × (0,0,1) for the horizontal components.
func (v Vec3) PerpXY() Vec3 {
	return Vec3{X: v.Y, Y: -v.X}
}

func (v Vec3) String() string {
	return fmt.Sprintf("(%.3f, %.3f, %.3f)", v.X, v.Y, v.Z)
}

// Dist returns the 3D distance between a and b.
func Dist(a, b Vec3) float64 {
	return a.Sub(b).Mag()
}

// DistXY returns the distance between a and b in the XY plane.
func DistXY(a, b Vec3) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// DistLessThan reports whether a and b are closer than d in 3D.
func DistLessThan(a, b Vec3, d float64) bool {
	return a.Sub(b).Dot(a.Sub(b)) < d*d
}

// DistXYLessThan reports whether a and b are closer than d in the XY plane.
func DistXYLessThan(a, b Vec3, d float64) bool {
	dx, dy := a.X-b.X, a.Y-b.Y
	return dx*dx+dy*dy < d*d
}

// RandVecXY returns a random vector inside the unit disk in the XY plane,
// excluding the near-zero center so the result can be normalized.
func RandVecXY(rng *rand.Rand) Vec3 {
	for {
		v := Vec3{X: 2*rng.Float64() - 1, Y: 2*rng.Float64() - 1}
		m := v.X*v.X + v.Y*v.Y
		if m <= 1 && m > 0.01 {
			return v
		}
	}
}
