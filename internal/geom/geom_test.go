package geom

import (
	"math"
	"math/rand"
	"testing"
)

const tolerance = 1e-9

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) < tol
}

func TestContainsPtXY(t *testing.T) {
	c := C(0, 10, 0, 10, 0, 5)
	cases := []struct {
		p    Vec3
		want bool
	}{
		{V(5, 5, 100), true}, // z ignored
		{V(0, 0, 0), true},   // boundary
		{V(10.01, 5, 0), false},
		{V(5, -1, 0), false},
	}
	for _, tc := range cases {
		if got := c.ContainsPtXY(tc.p); got != tc.want {
			t.Errorf("ContainsPtXY(%v): expected %v, got %v", tc.p, tc.want, got)
		}
	}
}

func TestLineClipXY(t *testing.T) {
	c := C(40, 60, 40, 60, 0, 10)

	tmin, tmax, ok := LineClipXY(V(10, 50, 0), V(90, 50, 0), c)
	if !ok {
		t.Fatal("expected straight line through the cube to intersect")
	}
	if !approxEqual(tmin, 0.375, tolerance) || !approxEqual(tmax, 0.625, tolerance) {
		t.Errorf("expected clip [0.375, 0.625], got [%f, %f]", tmin, tmax)
	}

	if LineIntersectsXY(V(35, 35, 0), V(65, 35, 0), c) {
		t.Error("expected segment below the cube to miss")
	}
	if LineIntersectsXY(V(30, 40, 0), V(70, 40, 0), c) {
		t.Error("expected segment along an edge to count as contact only")
	}
	if LineIntersectsXY(V(30, 50, 0), V(50, 70, 0), c) {
		t.Error("expected segment through a corner point only to miss")
	}
	if !LineIntersectsXY(V(50, 50, 0), V(50, 50, 0), c) {
		t.Error("expected a point inside the cube to intersect")
	}
}

func TestClampAndClosest(t *testing.T) {
	c := C(0, 10, 0, 10, 0, 2)
	p := c.ClampPtXY(V(-3, 15, 7))
	if p != V(0, 10, 7) {
		t.Errorf("expected (0,10,7), got %v", p)
	}
	q := c.ClosestPt(V(-3, 15, 7))
	if q != V(0, 10, 2) {
		t.Errorf("expected (0,10,2), got %v", q)
	}
}

func TestSphereIntersectsXY(t *testing.T) {
	c := C(0, 10, 0, 10, 0, 2)
	if !c.SphereIntersectsXY(V(11, 5, 0), 1.5) {
		t.Error("expected circle overlapping the right edge to intersect")
	}
	if c.SphereIntersectsXY(V(12, 12, 0), 2) {
		t.Error("expected circle near the corner to miss")
	}
	if !c.SphereIntersectsXY(V(5, 5, 0), 0.1) {
		t.Error("expected circle inside the cube to intersect")
	}
}

func TestRemoveContainingXY(t *testing.T) {
	cubes := []Cube{C(0, 1, 0, 1, 0, 1), C(5, 6, 5, 6, 0, 1), C(8, 9, 8, 9, 0, 1)}
	out, removed := RemoveContainingXY(cubes, V(5.5, 5.5, 0))
	if !removed || len(out) != 2 {
		t.Fatalf("expected one cube removed, got removed=%v len=%d", removed, len(out))
	}
	if AnyContainsPtXY(out, V(5.5, 5.5, 0)) {
		t.Error("expected containing cube to be gone")
	}
}

func TestLineSphereClosestT(t *testing.T) {
	tv, ok := LineSphereClosestT(V(0, 0, 0), V(10, 0, 0), V(5, 0, 0), 1)
	if !ok || !approxEqual(tv, 0.4, tolerance) {
		t.Errorf("expected hit at t=0.4, got ok=%v t=%f", ok, tv)
	}
	if _, ok := LineSphereClosestT(V(0, 5, 0), V(10, 5, 0), V(5, 0, 0), 1); ok {
		t.Error("expected a miss for a line passing above the sphere")
	}
	if _, ok := LineSphereClosestT(V(0, 0, 0), V(3, 0, 0), V(5, 0, 0), 1); ok {
		t.Error("expected a miss for a segment ending before the sphere")
	}
}

func TestRandVecXY(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		v := RandVecXY(rng)
		m := v.MagXY()
		if m > 1 || m <= 0.1 || v.Z != 0 {
			t.Fatalf("expected vector in unit disk annulus, got %v (mag %f)", v, m)
		}
	}
}

func TestPerpXY(t *testing.T) {
	v := V(1, 0, 0)
	want := v.Cross(V(0, 0, 1))
	if got := v.PerpXY(); got != want {
		t.Errorf("expected %v, got %v", want, got)
	}
}
