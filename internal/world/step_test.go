package world

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/veloxphys/velox/internal/arena"
	"github.com/veloxphys/velox/internal/body"
	"github.com/veloxphys/velox/internal/config"
	"github.com/veloxphys/velox/internal/geom"
	"github.com/veloxphys/velox/internal/joint"
	"github.com/veloxphys/velox/internal/shape"
)

func at(x, y, z float64) geom.Transform {
	return geom.Transform{Position: mgl64.Vec3{x, y, z}, Orientation: mgl64.QuatIdent()}
}

func mustSphere(t *testing.T, r float64) shape.Shape {
	t.Helper()
	s, err := shape.NewSphere(r)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func mustBox(t *testing.T, hx, hy, hz float64) shape.Shape {
	t.Helper()
	s, err := shape.NewBox(mgl64.Vec3{hx, hy, hz})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func attach(t *testing.T, w *World, b arena.Handle, c body.Collider) arena.Handle {
	t.Helper()
	h, err := w.AttachCollider(b, c)
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func addGround(t *testing.T, w *World) arena.Handle {
	t.Helper()
	g := w.CreateBody(body.Fixed, at(0, -0.5, 0))
	attach(t, w, g, body.Collider{Shape: mustBox(t, 20, 0.5, 20), Local: geom.Identity(), Friction: 0.6})
	return g
}

func TestSphereDropComesToRest(t *testing.T) {
	w := New(config.DefaultStep())
	addGround(t, w)
	b := w.CreateBody(body.Dynamic, at(0, 1, 0))
	attach(t, w, b, body.Collider{Shape: mustSphere(t, 0.5), Local: geom.Identity(), Density: 1, Friction: 0.5})

	slept := false
	for i := 0; i < 360; i++ {
		for _, ev := range w.Step() {
			if ev.Kind == EventSleep && ev.BodyA == b {
				slept = true
			}
		}
	}

	bb := w.Body(b)
	if got := bb.Transform.Position.Y(); math.Abs(got-0.5) > 1e-3 {
		t.Errorf("rest height = %v, want 0.5 within 1e-3", got)
	}
	if v := bb.Velocity.Len(); v > 0.01 {
		t.Errorf("rest speed = %v, want near zero", v)
	}
	if !slept {
		t.Error("body never slept")
	}
	if !bb.Sleeping {
		t.Error("body not sleeping after settling")
	}
}

func TestContactBeginAndEnd(t *testing.T) {
	cfg := config.DefaultStep()
	cfg.Gravity = [3]float64{}
	w := New(cfg)

	wall := w.CreateBody(body.Fixed, at(0, 0, 0))
	attach(t, w, wall, body.Collider{Shape: mustBox(t, 0.5, 2, 2), Local: geom.Identity()})

	b := w.CreateBody(body.Dynamic, at(-2, 0, 0))
	attach(t, w, b, body.Collider{Shape: mustSphere(t, 0.5), Local: geom.Identity(), Density: 1, Restitution: 1})
	w.Body(b).Velocity = mgl64.Vec3{2, 0, 0}

	var began, ended bool
	for i := 0; i < 120; i++ {
		for _, ev := range w.Step() {
			switch ev.Kind {
			case EventContactBegin:
				if began {
					continue
				}
				began = true
				if ev.BodyA != wall && ev.BodyB != wall {
					t.Errorf("begin event does not involve the wall: %+v", ev)
				}
			case EventContactEnd:
				if began {
					ended = true
				}
			}
		}
	}
	if !began {
		t.Fatal("no contact begin event")
	}
	if !ended {
		t.Fatal("no contact end event after bounce")
	}
	if vx := w.Body(b).Velocity.X(); vx > -1 {
		t.Errorf("vx = %v after elastic bounce, want strongly negative", vx)
	}
}

// Fully elastic equal-mass spheres must swap velocities no matter how
// the approach speed lines up with the step grid. Gap aligned contacts
// land as barely negative penetrations and must still restitute at the
// full pre-impact speed.
func TestElasticBounceAcrossSpeeds(t *testing.T) {
	for _, speed := range []float64{2, 4, 5, 8, 20} {
		cfg := config.DefaultStep()
		cfg.Gravity = [3]float64{}
		w := New(cfg)

		a := w.CreateBody(body.Dynamic, at(-2, 0, 0))
		attach(t, w, a, body.Collider{Shape: mustSphere(t, 0.5), Local: geom.Identity(), Density: 1, Restitution: 1})
		b := w.CreateBody(body.Dynamic, at(2, 0, 0))
		attach(t, w, b, body.Collider{Shape: mustSphere(t, 0.5), Local: geom.Identity(), Density: 1, Restitution: 1})
		w.Body(a).Velocity = mgl64.Vec3{speed, 0, 0}
		w.Body(b).Velocity = mgl64.Vec3{-speed, 0, 0}

		for i := 0; i < 120; i++ {
			w.Step()
		}

		va, vb := w.Body(a).Velocity.X(), w.Body(b).Velocity.X()
		if math.Abs(va+speed) > 1e-9 || math.Abs(vb-speed) > 1e-9 {
			t.Errorf("speed %v: exit velocities (%v, %v), want (%v, %v)", speed, va, vb, -speed, speed)
		}
	}
}

func TestNonFiniteForceFreezesBody(t *testing.T) {
	w := New(config.DefaultStep())
	b := w.CreateBody(body.Dynamic, at(0, 5, 0))
	attach(t, w, b, body.Collider{Shape: mustSphere(t, 0.5), Local: geom.Identity(), Density: 1})

	w.Body(b).Force = mgl64.Vec3{math.NaN(), 0, 0}
	events := w.Step()

	frozen := false
	for _, ev := range events {
		if ev.Kind == EventFrozen && ev.BodyA == b {
			frozen = true
		}
	}
	if !frozen {
		t.Fatal("no frozen event")
	}
	if !w.Body(b).Frozen {
		t.Fatal("body not flagged frozen")
	}

	pos := w.Body(b).Transform.Position
	w.Step()
	if w.Body(b).Transform.Position != pos {
		t.Error("frozen body moved")
	}

	if err := w.Unfreeze(b); err != nil {
		t.Fatal(err)
	}
	w.Step()
	if w.Body(b).Transform.Position == pos {
		t.Error("unfrozen body did not resume falling")
	}
}

func buildTwoSphereWorld() *World {
	cfg := config.DefaultStep()
	w := New(cfg)
	ground := w.CreateBody(body.Fixed, at(0, -0.5, 0))
	slab, _ := shape.NewBox(mgl64.Vec3{20, 0.5, 20})
	ball, _ := shape.NewSphere(0.5)
	w.AttachCollider(ground, body.Collider{Shape: slab, Local: geom.Identity(), Friction: 0.6})
	for _, x := range []float64{-1, 1} {
		b := w.CreateBody(body.Dynamic, at(x, 2, 0))
		w.AttachCollider(b, body.Collider{Shape: ball, Local: geom.Identity(), Density: 1, Friction: 0.4, Restitution: 0.2})
	}
	return w
}

func TestStepDeterminism(t *testing.T) {
	run := func() []BodyState {
		w := buildTwoSphereWorld()
		for i := 0; i < 90; i++ {
			w.Step()
		}
		return w.Snapshot()
	}
	a, b := run(), run()
	if !reflect.DeepEqual(a, b) {
		t.Fatal("two identical runs diverged")
	}
}

func TestSnapshotRestore(t *testing.T) {
	w := buildTwoSphereWorld()
	for i := 0; i < 30; i++ {
		w.Step()
	}
	snap := w.Snapshot()
	for i := 0; i < 30; i++ {
		w.Step()
	}
	if reflect.DeepEqual(w.Snapshot(), snap) {
		t.Fatal("world did not evolve past the snapshot")
	}
	if err := w.Restore(snap); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(w.Snapshot(), snap) {
		t.Fatal("restore did not reproduce the snapshot")
	}
}

func TestRestoreUnknownBody(t *testing.T) {
	w := New(config.DefaultStep())
	err := w.Restore([]BodyState{{Body: arena.Handle{Index: 42, Generation: 7}}})
	if !errors.Is(err, ErrUnknownBody) {
		t.Fatalf("err = %v, want ErrUnknownBody", err)
	}
}

func TestRayCastClosest(t *testing.T) {
	w := New(config.DefaultStep())
	near := w.CreateBody(body.Fixed, at(2, 0, 0))
	nearCol := attach(t, w, near, body.Collider{Shape: mustBox(t, 0.5, 0.5, 0.5), Local: geom.Identity()})
	far := w.CreateBody(body.Fixed, at(4, 0, 0))
	farCol := attach(t, w, far, body.Collider{Shape: mustBox(t, 0.5, 0.5, 0.5), Local: geom.Identity()})
	w.Step()

	ray := geom.Ray{Origin: mgl64.Vec3{0, 0, 0}, Direction: mgl64.Vec3{1, 0, 0}, MaxT: 100}

	hit, ok := w.RayCast(ray, nil)
	if !ok {
		t.Fatal("ray missed")
	}
	if hit.Collider != nearCol {
		t.Errorf("hit collider %v, want the near box", hit.Collider)
	}
	if math.Abs(hit.T-1.5) > 1e-6 {
		t.Errorf("T = %v, want 1.5", hit.T)
	}
	if math.Abs(hit.Normal.X()+1) > 1e-6 {
		t.Errorf("normal = %v, want -X", hit.Normal)
	}

	hit, ok = w.RayCast(ray, func(h arena.Handle) bool { return h != nearCol })
	if !ok || hit.Collider != farCol {
		t.Fatalf("filtered cast: hit %v ok=%v, want the far box", hit.Collider, ok)
	}
	if math.Abs(hit.T-3.5) > 1e-6 {
		t.Errorf("filtered T = %v, want 3.5", hit.T)
	}

	back := geom.Ray{Origin: mgl64.Vec3{0, 0, 0}, Direction: mgl64.Vec3{-1, 0, 0}, MaxT: 100}
	if _, ok := w.RayCast(back, nil); ok {
		t.Error("backward ray should miss")
	}
}

func TestOverlapAABB(t *testing.T) {
	w := New(config.DefaultStep())
	a := w.CreateBody(body.Fixed, at(0, 0, 0))
	aCol := attach(t, w, a, body.Collider{Shape: mustBox(t, 0.5, 0.5, 0.5), Local: geom.Identity()})
	bBody := w.CreateBody(body.Fixed, at(5, 0, 0))
	attach(t, w, bBody, body.Collider{Shape: mustBox(t, 0.5, 0.5, 0.5), Local: geom.Identity()})
	w.Step()

	got := w.OverlapAABB(geom.AABB{Min: mgl64.Vec3{-1, -1, -1}, Max: mgl64.Vec3{1, 1, 1}})
	if len(got) != 1 || got[0] != aCol {
		t.Fatalf("overlap = %v, want only the origin box", got)
	}
	if got := w.OverlapAABB(geom.AABB{Min: mgl64.Vec3{-9, -9, -9}, Max: mgl64.Vec3{9, 9, 9}}); len(got) != 2 {
		t.Fatalf("wide overlap found %d colliders, want 2", len(got))
	}
}

func TestOverlapShape(t *testing.T) {
	w := New(config.DefaultStep())
	a := w.CreateBody(body.Fixed, at(0, 0, 0))
	aCol := attach(t, w, a, body.Collider{Shape: mustBox(t, 0.5, 0.5, 0.5), Local: geom.Identity()})
	bBody := w.CreateBody(body.Fixed, at(5, 0, 0))
	attach(t, w, bBody, body.Collider{Shape: mustBox(t, 0.5, 0.5, 0.5), Local: geom.Identity()})
	w.Step()

	probe := mustSphere(t, 0.6)
	if got := w.OverlapShape(probe, at(1, 0, 0)); len(got) != 1 || got[0] != aCol {
		t.Fatalf("overlap = %v, want only the origin box", got)
	}
	// Probe AABB reaches the box but the sphere surface does not.
	if got := w.OverlapShape(probe, at(1.2, 1.2, 0)); len(got) != 0 {
		t.Fatalf("corner probe overlapped %v, want none", got)
	}
}

func TestShapeCastNearest(t *testing.T) {
	w := New(config.DefaultStep())
	target := w.CreateBody(body.Fixed, at(0, 0, 0))
	targetCol := attach(t, w, target, body.Collider{Shape: mustBox(t, 0.5, 0.5, 0.5), Local: geom.Identity()})
	w.Step()

	probe := mustSphere(t, 0.5)
	hit, ok := w.ShapeCast(probe, at(-3, 0, 0), mgl64.Vec3{10, 0, 0}, nil)
	if !ok {
		t.Fatal("cast missed")
	}
	if hit.Collider != targetCol {
		t.Errorf("hit %v, want the target box", hit.Collider)
	}
	// Surfaces start 2 apart along a 10 unit sweep.
	if math.Abs(hit.T-0.2) > 0.01 {
		t.Errorf("T = %v, want about 0.2", hit.T)
	}

	if _, ok := w.ShapeCast(probe, at(-3, 5, 0), mgl64.Vec3{10, 0, 0}, nil); ok {
		t.Error("offset cast should miss")
	}
}

func buildBulletWorld(t *testing.T, ccdOn bool) (*World, arena.Handle) {
	t.Helper()
	cfg := config.DefaultStep()
	cfg.Gravity = [3]float64{}
	cfg.CCD = ccdOn
	w := New(cfg)

	wall := w.CreateBody(body.Fixed, at(5, 0, 0))
	attach(t, w, wall, body.Collider{Shape: mustBox(t, 0.05, 3, 3), Local: geom.Identity()})

	b := w.CreateBody(body.Dynamic, at(0.3, 0, 0))
	attach(t, w, b, body.Collider{Shape: mustSphere(t, 0.1), Local: geom.Identity(), Density: 1})
	w.Body(b).Velocity = mgl64.Vec3{60, 0, 0}
	return w, b
}

func TestCCDStopsFastBullet(t *testing.T) {
	w, b := buildBulletWorld(t, true)
	for i := 0; i < 20; i++ {
		w.Step()
	}
	if x := w.Body(b).Transform.Position.X(); x > 5 {
		t.Errorf("bullet at x = %v, tunneled through the wall", x)
	}
}

func TestFastBulletTunnelsWithoutCCD(t *testing.T) {
	w, b := buildBulletWorld(t, false)
	for i := 0; i < 20; i++ {
		w.Step()
	}
	if x := w.Body(b).Transform.Position.X(); x < 6 {
		t.Errorf("bullet at x = %v, expected it to pass the wall at this speed", x)
	}
}

func TestMovingKinematicWakesSleeper(t *testing.T) {
	cfg := config.DefaultStep()
	cfg.Gravity = [3]float64{}
	w := New(cfg)

	sleeper := w.CreateBody(body.Dynamic, at(0, 0, 0))
	attach(t, w, sleeper, body.Collider{Shape: mustSphere(t, 0.5), Local: geom.Identity(), Density: 1})

	pusher := w.CreateBody(body.Kinematic, at(-2, 0, 0))
	attach(t, w, pusher, body.Collider{Shape: mustBox(t, 0.5, 0.5, 0.5), Local: geom.Identity()})
	w.Body(pusher).Velocity = mgl64.Vec3{1, 0, 0}

	woke := false
	for i := 0; i < 120; i++ {
		for _, ev := range w.Step() {
			if ev.Kind == EventWake && ev.BodyA == sleeper {
				woke = true
			}
		}
	}
	if !w.Body(sleeper).Sleeping && !woke {
		t.Fatal("sleeper never went to sleep before contact, test premise broken")
	}
	if !woke {
		t.Fatal("kinematic contact did not wake the body")
	}
	if vx := w.Body(sleeper).Velocity.X(); vx <= 0 {
		t.Errorf("vx = %v after push, want positive", vx)
	}
}

func TestSleepingIslandsStayIsolated(t *testing.T) {
	w := New(config.DefaultStep())
	addGround(t, w)
	ball := mustSphere(t, 0.5)

	a := w.CreateBody(body.Dynamic, at(-5, 0.5, 0))
	attach(t, w, a, body.Collider{Shape: ball, Local: geom.Identity(), Density: 1, Friction: 0.5})
	b := w.CreateBody(body.Dynamic, at(5, 0.5, 0))
	attach(t, w, b, body.Collider{Shape: ball, Local: geom.Identity(), Density: 1, Friction: 0.5})

	for i := 0; i < 240; i++ {
		w.Step()
	}
	if !w.Body(a).Sleeping || !w.Body(b).Sleeping {
		t.Fatal("bodies did not fall asleep at rest")
	}

	w.WakeBody(a)
	w.Body(a).Velocity = mgl64.Vec3{3, 0, 0}
	for i := 0; i < 10; i++ {
		w.Step()
	}
	if w.Body(a).Sleeping {
		t.Error("woken body fell back asleep immediately")
	}
	if !w.Body(b).Sleeping {
		t.Error("distant body was woken by an unrelated island")
	}
}

func TestJointedBodiesShareAnIsland(t *testing.T) {
	cfg := config.DefaultStep()
	w := New(cfg)

	anchor := w.CreateBody(body.Fixed, at(0, 3, 0))
	bob := w.CreateBody(body.Dynamic, at(1, 3, 0))
	attach(t, w, bob, body.Collider{Shape: mustSphere(t, 0.2), Local: geom.Identity(), Density: 1})

	if _, err := w.AddJoint(joint.Descriptor{
		Kind:         joint.KindSpherical,
		BodyA:        anchor,
		BodyB:        bob,
		LocalAnchorB: mgl64.Vec3{-1, 0, 0},
	}); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 180; i++ {
		w.Step()
	}

	// The bob must stay pinned at unit distance from the anchor while
	// it swings.
	j := w.Joint(w.JointHandles()[0])
	pa := w.Body(anchor).Transform.Apply(j.LocalAnchorA)
	pb := w.Body(bob).Transform.Apply(j.LocalAnchorB)
	if drift := pa.Sub(pb).Len(); drift > 1e-3 {
		t.Errorf("anchor drift = %v, want under 1e-3", drift)
	}
}

func TestManifoldsExposeWarmStartState(t *testing.T) {
	w := New(config.DefaultStep())
	ground := addGround(t, w)
	b := w.CreateBody(body.Dynamic, at(0, 0.5, 0))
	attach(t, w, b, body.Collider{Shape: mustSphere(t, 0.5), Local: geom.Identity(), Density: 1, Friction: 0.5})

	for i := 0; i < 90; i++ {
		w.Step()
	}

	ms := w.Manifolds()
	if len(ms) != 1 {
		t.Fatalf("len(Manifolds) = %d, want 1", len(ms))
	}
	m := ms[0]
	if !m.Contacting {
		t.Error("resting pair not reported as contacting")
	}
	if (m.BodyA != b && m.BodyB != b) || (m.BodyA != ground && m.BodyB != ground) {
		t.Errorf("manifold pair (%v, %v) does not match the resting pair", m.BodyA, m.BodyB)
	}
	if math.Abs(math.Abs(m.Normal.Y())-1) > 1e-6 {
		t.Errorf("normal = %v, want along Y", m.Normal)
	}
	if len(m.Points) == 0 {
		t.Fatal("no contact points")
	}
	total := 0.0
	for _, p := range m.Points {
		total += p.NormalImpulse
	}
	// A supported body accumulates the weight-balancing impulse.
	if total <= 0 {
		t.Errorf("accumulated normal impulse = %v, want positive", total)
	}
}

func TestRemoveBodyEndsContacts(t *testing.T) {
	w := New(config.DefaultStep())
	addGround(t, w)
	b := w.CreateBody(body.Dynamic, at(0, 0.5, 0))
	attach(t, w, b, body.Collider{Shape: mustSphere(t, 0.5), Local: geom.Identity(), Density: 1})

	touching := false
	for i := 0; i < 30 && !touching; i++ {
		for _, ev := range w.Step() {
			if ev.Kind == EventContactBegin {
				touching = true
			}
		}
	}
	if !touching {
		t.Fatal("sphere never touched the ground")
	}

	if err := w.RemoveBody(b); err != nil {
		t.Fatal(err)
	}
	if w.Body(b) != nil {
		t.Fatal("removed body still resolvable")
	}
	w.Step()
	if w.BodyCount() != 1 {
		t.Errorf("BodyCount = %d, want only the ground", w.BodyCount())
	}
}
