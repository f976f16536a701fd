package ccd

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/veloxphys/velox/internal/geom"
	"github.com/veloxphys/velox/internal/shape"
)

func sphere(t *testing.T, r float64) shape.Shape {
	t.Helper()
	s, err := shape.NewSphere(r)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func box(t *testing.T, hx, hy, hz float64) shape.Shape {
	t.Helper()
	s, err := shape.NewBox(mgl64.Vec3{hx, hy, hz})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func at(pos mgl64.Vec3) geom.Transform {
	return geom.Transform{Position: pos, Orientation: mgl64.QuatIdent()}
}

func TestTimeOfImpactFastSphereVsThinWall(t *testing.T) {
	dt := 1.0 / 60.0
	bullet := Motion{
		Shape:  sphere(t, 0.05),
		From:   at(mgl64.Vec3{-1, 0, 0}),
		LinVel: mgl64.Vec3{100, 0, 0}, // crosses the wall within one step
	}
	wall := Motion{
		Shape: box(t, 0.05, 1, 1),
		From:  at(mgl64.Vec3{0, 0, 0}),
	}

	res := TimeOfImpact(bullet, wall, dt, 0.005)
	if !res.Hit {
		t.Fatal("fast mover must hit the wall")
	}
	// Surfaces start 0.9 apart and close at 100 m/s.
	wantT := 0.9 / (100 * dt)
	if math.Abs(res.T-wantT) > 0.02 {
		t.Fatalf("impact at t = %v, want ~%v", res.T, wantT)
	}
	if res.Normal.X() < 0.99 {
		t.Fatalf("impact normal = %v, want +X", res.Normal)
	}
	if math.Abs(res.Point.X()) > 0.2 {
		t.Fatalf("impact point = %v, want near the wall face", res.Point)
	}
}

func TestTimeOfImpactMiss(t *testing.T) {
	dt := 1.0 / 60.0
	bullet := Motion{
		Shape:  sphere(t, 0.05),
		From:   at(mgl64.Vec3{-1, 5, 0}), // passes well above
		LinVel: mgl64.Vec3{100, 0, 0},
	}
	wall := Motion{
		Shape: box(t, 0.05, 1, 1),
		From:  at(mgl64.Vec3{0, 0, 0}),
	}

	if res := TimeOfImpact(bullet, wall, dt, 0.005); res.Hit {
		t.Fatalf("separated trajectory reported hit at t = %v", res.T)
	}
}

func TestTimeOfImpactRecedingMiss(t *testing.T) {
	dt := 1.0 / 60.0
	a := Motion{
		Shape:  sphere(t, 0.5),
		From:   at(mgl64.Vec3{-2, 0, 0}),
		LinVel: mgl64.Vec3{-10, 0, 0},
	}
	b := Motion{Shape: sphere(t, 0.5), From: at(mgl64.Vec3{2, 0, 0})}

	if res := TimeOfImpact(a, b, dt, 0.005); res.Hit {
		t.Fatal("receding pair reported hit")
	}
}

func TestTimeOfImpactInitialOverlap(t *testing.T) {
	a := Motion{Shape: sphere(t, 1), From: at(mgl64.Vec3{0, 0, 0})}
	b := Motion{Shape: sphere(t, 1), From: at(mgl64.Vec3{0.5, 0, 0})}

	res := TimeOfImpact(a, b, 1.0/60.0, 0.005)
	if !res.Hit || res.T != 0 {
		t.Fatalf("overlapping pair: hit=%v t=%v, want hit at t=0", res.Hit, res.T)
	}
}

func TestShapeCastHitsBox(t *testing.T) {
	res := ShapeCast(
		sphere(t, 0.25), at(mgl64.Vec3{-3, 0, 0}), mgl64.Vec3{10, 0, 0},
		box(t, 0.5, 0.5, 0.5), at(mgl64.Vec3{0, 0, 0}), 0.005,
	)
	if !res.Hit {
		t.Fatal("cast along +X must hit the box")
	}
	// Surfaces are 2.25 apart; the cast covers 10.
	if want := 2.25 / 10.0; math.Abs(res.T-want) > 0.01 {
		t.Fatalf("cast hit at t = %v, want ~%v", res.T, want)
	}
}

func TestShouldSweep(t *testing.T) {
	dt := 1.0 / 60.0
	s := sphere(t, 0.05)

	if ShouldSweep(s, mgl64.Vec3{0.5, 0, 0}, dt) {
		t.Fatal("slow mover flagged for sweeping")
	}
	if !ShouldSweep(s, mgl64.Vec3{100, 0, 0}, dt) {
		t.Fatal("fast mover not flagged for sweeping")
	}

	thin := box(t, 2, 0.01, 2)
	if !ShouldSweep(thin, mgl64.Vec3{5, 0, 0}, dt) {
		t.Fatal("thin shape should sweep at moderate speed")
	}
}
