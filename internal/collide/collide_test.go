package collide

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/veloxphys/velox/internal/geom"
	"github.com/veloxphys/velox/internal/shape"
)

func at(x, y, z float64) geom.Transform {
	return geom.Transform{Position: mgl64.Vec3{x, y, z}, Orientation: mgl64.QuatIdent()}
}

func TestSphereSphereOverlap(t *testing.T) {
	s, _ := shape.NewSphere(1)

	r := Collide(s, at(0, 0, 0), s, at(1.5, 0, 0), 0.1)
	if len(r.Candidates) != 1 {
		t.Fatalf("expected 1 contact, got %d", len(r.Candidates))
	}
	if math.Abs(r.Candidates[0].Penetration-0.5) > 1e-9 {
		t.Errorf("expected penetration 0.5, got %f", r.Candidates[0].Penetration)
	}
	want := mgl64.Vec3{1, 0, 0}
	if r.Normal.Sub(want).Len() > 1e-9 {
		t.Errorf("expected normal %v, got %v", want, r.Normal)
	}
}

func TestSphereSphereSpeculative(t *testing.T) {
	s, _ := shape.NewSphere(1)

	// Separated by 0.05, inside the prediction margin.
	r := Collide(s, at(0, 0, 0), s, at(2.05, 0, 0), 0.1)
	if len(r.Candidates) != 1 {
		t.Fatalf("expected speculative contact, got %d", len(r.Candidates))
	}
	if r.Candidates[0].Penetration > 0 {
		t.Errorf("speculative contact has positive penetration %f", r.Candidates[0].Penetration)
	}
	if math.Abs(r.Candidates[0].Penetration+0.05) > 1e-9 {
		t.Errorf("expected penetration -0.05, got %f", r.Candidates[0].Penetration)
	}

	// Beyond the margin: nothing.
	r = Collide(s, at(0, 0, 0), s, at(2.2, 0, 0), 0.1)
	if len(r.Candidates) != 0 {
		t.Errorf("contact beyond prediction margin")
	}
}

func TestSphereBox(t *testing.T) {
	s, _ := shape.NewSphere(1)
	b, _ := shape.NewBox(mgl64.Vec3{2, 0.5, 2})

	// Sphere resting 0.1 into the top face of the box.
	r := Collide(s, at(0, 1.4, 0), b, at(0, 0, 0), 0.1)
	if len(r.Candidates) != 1 {
		t.Fatalf("expected 1 contact, got %d", len(r.Candidates))
	}
	if math.Abs(r.Candidates[0].Penetration-0.1) > 1e-9 {
		t.Errorf("expected penetration 0.1, got %f", r.Candidates[0].Penetration)
	}
	// Normal from sphere toward box.
	if r.Normal.Sub(mgl64.Vec3{0, -1, 0}).Len() > 1e-9 {
		t.Errorf("unexpected normal %v", r.Normal)
	}
}

func TestBoxBoxFaceManifold(t *testing.T) {
	ground, _ := shape.NewBox(mgl64.Vec3{10, 1, 10})
	cube, _ := shape.NewBox(mgl64.Vec3{0.5, 0.5, 0.5})

	// Cube overlapping the ground top face by 0.02.
	r := Collide(cube, at(0, 1.48, 0), ground, at(0, 0, 0), 0.05)
	if len(r.Candidates) < 3 {
		t.Fatalf("expected a face manifold (>=3 points), got %d", len(r.Candidates))
	}
	if math.Abs(math.Abs(r.Normal.Y())-1) > 1e-6 {
		t.Errorf("expected vertical normal, got %v", r.Normal)
	}
	for _, c := range r.Candidates {
		if math.Abs(c.Penetration-0.02) > 5e-3 {
			t.Errorf("expected ~0.02 penetration, got %f", c.Penetration)
		}
	}
}

func TestGJKDistanceBoxes(t *testing.T) {
	b, _ := shape.NewBox(mgl64.Vec3{1, 1, 1})

	res := Distance(b, at(0, 0, 0), b, at(5, 0, 0))
	if res.Overlapping {
		t.Fatal("separated boxes reported overlapping")
	}
	if math.Abs(res.Distance-3) > 1e-6 {
		t.Errorf("expected distance 3, got %f", res.Distance)
	}
	if math.Abs(res.PointA.X()-1) > 1e-6 || math.Abs(res.PointB.X()-4) > 1e-6 {
		t.Errorf("unexpected witness points %v %v", res.PointA, res.PointB)
	}

	if res := Distance(b, at(0, 0, 0), b, at(1.5, 0, 0)); !res.Overlapping {
		t.Error("overlapping boxes reported separated")
	}
}

func TestGJKDistanceRotated(t *testing.T) {
	b, _ := shape.NewBox(mgl64.Vec3{1, 1, 1})
	s, _ := shape.NewSphere(0.5)

	// Box rotated 45 degrees about Z; sphere beside its edge.
	xfA := geom.Transform{Orientation: mgl64.QuatRotate(math.Pi/4, mgl64.Vec3{0, 0, 1})}
	xfB := at(math.Sqrt2+1, 0, 0)

	res := Distance(b, xfA, s, xfB)
	if res.Overlapping {
		t.Fatal("expected separation")
	}
	if math.Abs(res.Distance-0.5) > 1e-4 {
		t.Errorf("expected distance 0.5, got %f", res.Distance)
	}
}

func TestEPADepth(t *testing.T) {
	b, _ := shape.NewBox(mgl64.Vec3{1, 1, 1})

	// Boxes overlapping by 0.4 along X.
	res := Distance(b, at(0, 0, 0), b, at(1.6, 0, 0))
	if !res.Overlapping {
		t.Fatal("expected overlap")
	}
	normal, depth := Penetration(b, at(0, 0, 0), b, at(1.6, 0, 0), res.simplex)
	if math.Abs(depth-0.4) > 1e-3 {
		t.Errorf("expected depth 0.4, got %f", depth)
	}
	if normal.Sub(mgl64.Vec3{1, 0, 0}).Len() > 1e-3 {
		t.Errorf("expected +X normal, got %v", normal)
	}
}

// Symmetric pairs make GJK stop on a sub-tetrahedron simplex through
// the origin; depth must still come from polytope expansion, not the
// coincident-shape fallback.
func TestEPADepthDegenerateSimplex(t *testing.T) {
	b, _ := shape.NewBox(mgl64.Vec3{1, 1, 1})

	for _, overlap := range []float64{0.1, 0.25, 0.4} {
		xfB := at(2-overlap, 0, 0)
		res := Distance(b, at(0, 0, 0), b, xfB)
		if !res.Overlapping {
			t.Fatalf("overlap %v: expected overlap", overlap)
		}
		normal, depth := Penetration(b, at(0, 0, 0), b, xfB, res.simplex)
		if math.Abs(depth-overlap) > 1e-3 {
			t.Errorf("overlap %v: depth = %f", overlap, depth)
		}
		if normal.Sub(mgl64.Vec3{1, 0, 0}).Len() > 1e-3 {
			t.Errorf("overlap %v: normal = %v, want +X", overlap, normal)
		}
	}

	// Spheres in deep overlap still resolve along the center line.
	s, _ := shape.NewSphere(0.5)
	res := Distance(s, at(0, 0, 0), s, at(0.2, 0, 0))
	if !res.Overlapping {
		t.Fatal("expected overlap")
	}
	normal, depth := Penetration(s, at(0, 0, 0), s, at(0.2, 0, 0), res.simplex)
	if math.Abs(depth-0.8) > 1e-3 {
		t.Errorf("sphere depth = %f, want 0.8", depth)
	}
	if normal.Sub(mgl64.Vec3{1, 0, 0}).Len() > 1e-3 {
		t.Errorf("sphere normal = %v, want +X", normal)
	}
}

func TestCapsuleCapsule(t *testing.T) {
	c, _ := shape.NewCapsule(0.5, 1)

	// Crossed capsules: one along Y, one along X (rotated), centers
	// 0.8 apart in Z.
	xfB := geom.Transform{
		Position:    mgl64.Vec3{0, 0, 0.8},
		Orientation: mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 0, 1}),
	}
	r := Collide(c, at(0, 0, 0), c, xfB, 0.1)
	if len(r.Candidates) != 1 {
		t.Fatalf("expected 1 contact, got %d", len(r.Candidates))
	}
	if math.Abs(r.Candidates[0].Penetration-0.2) > 1e-9 {
		t.Errorf("expected penetration 0.2, got %f", r.Candidates[0].Penetration)
	}
}

func TestManifoldWarmStartCarry(t *testing.T) {
	var m Manifold
	inv := func(p mgl64.Vec3) mgl64.Vec3 { return p }

	m.Update(mgl64.Vec3{0, 1, 0}, []Candidate{
		{Position: mgl64.Vec3{0, 0, 0}, Penetration: 0.01},
		{Position: mgl64.Vec3{1, 0, 0}, Penetration: 0.01},
	}, inv)

	if len(m.Points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(m.Points))
	}
	id0, id1 := m.Points[0].ID, m.Points[1].ID
	if id0 == id1 {
		t.Fatal("point ids not unique")
	}
	m.Points[0].NormalImpulse = 3
	m.Points[1].NormalImpulse = 5

	// Points drift slightly: identity and impulses must carry.
	m.Update(mgl64.Vec3{0, 1, 0}, []Candidate{
		{Position: mgl64.Vec3{0.01, 0, 0}, Penetration: 0.012},
		{Position: mgl64.Vec3{1.01, 0, 0}, Penetration: 0.012},
	}, inv)

	if m.Points[0].ID != id0 || m.Points[1].ID != id1 {
		t.Error("point identity lost across small drift")
	}
	if m.Points[0].NormalImpulse != 3 || m.Points[1].NormalImpulse != 5 {
		t.Error("warm-start impulses not carried")
	}

	// A far jump breaks correspondence and resets impulses.
	m.Update(mgl64.Vec3{0, 1, 0}, []Candidate{
		{Position: mgl64.Vec3{5, 0, 0}, Penetration: 0.01},
	}, inv)
	if m.Points[0].NormalImpulse != 0 {
		t.Error("impulse survived lost correspondence")
	}
	if m.Points[0].ID == id0 || m.Points[0].ID == id1 {
		t.Error("new point reused an old id")
	}
}

func TestManifoldTouching(t *testing.T) {
	var m Manifold
	inv := func(p mgl64.Vec3) mgl64.Vec3 { return p }

	m.Update(mgl64.Vec3{0, 1, 0}, []Candidate{{Penetration: -0.05}}, inv)
	if m.Touching() {
		t.Error("speculative-only manifold reported touching")
	}

	m.Update(mgl64.Vec3{0, 1, 0}, []Candidate{{Penetration: 0.001}}, inv)
	if !m.Touching() {
		t.Error("penetrating manifold not touching")
	}
}

func TestCompoundDeepestChild(t *testing.T) {
	s, _ := shape.NewSphere(0.5)
	comp, _ := shape.NewCompound([]shape.Child{
		{Shape: s, Transform: at(-2, 0, 0)},
		{Shape: s, Transform: at(2, 0, 0)},
	})
	ground, _ := shape.NewBox(mgl64.Vec3{10, 1, 10})

	// Tilted so only the +X child touches the ground.
	xf := geom.Transform{
		Position:    mgl64.Vec3{0, 1.6, 0},
		Orientation: mgl64.QuatRotate(-0.1, mgl64.Vec3{0, 0, 1}),
	}
	r := Collide(comp, xf, ground, at(0, 0, 0), 0.05)
	if len(r.Candidates) == 0 {
		t.Fatal("expected contact from compound child")
	}
	// Deepest contact should be near x=+2 (the lower child).
	if r.Candidates[0].Position.X() < 1 {
		t.Errorf("contact from wrong child at %v", r.Candidates[0].Position)
	}
}
