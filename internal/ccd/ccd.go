// Package ccd implements continuous collision detection by
// conservative advancement. A pair of moving shapes is advanced
// through the step in distance-bounded increments until they come
// within a target separation or the step ends, which catches contacts
// that discrete stepping would tunnel through.
package ccd

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/veloxphys/velox/internal/collide"
	"github.com/veloxphys/velox/internal/geom"
	"github.com/veloxphys/velox/internal/mathx"
	"github.com/veloxphys/velox/internal/shape"
)

const (
	maxIterations = 32
	// tolerance is the slack around the target separation at which
	// advancement stops.
	tolerance = 1e-4
)

// Motion is one shape's trajectory over a step: the pose at the start
// and the velocities it moves with.
type Motion struct {
	Shape  shape.Shape
	From   geom.Transform
	LinVel mgl64.Vec3
	AngVel mgl64.Vec3
}

// At returns the interpolated pose at normalized time t in [0, 1] of
// a step of length dt.
func (m Motion) At(t, dt float64) geom.Transform {
	return geom.Transform{
		Position:    m.From.Position.Add(m.LinVel.Mul(t * dt)),
		Orientation: mathx.IntegrateOrientation(m.From.Orientation, m.AngVel, t*dt),
	}
}

// Result is the outcome of a time-of-impact query.
type Result struct {
	Hit bool
	// T is the normalized impact time in [0, 1].
	T float64
	// Normal points from A to B at impact. Zero when the shapes
	// already overlapped at t = 0.
	Normal mgl64.Vec3
	// Point is the world-space contact estimate at impact.
	Point mgl64.Vec3
}

// TimeOfImpact advances two moving shapes through a step of length dt
// and returns the earliest time their separation drops to target.
// Advancement is conservative: each increment is bounded by the
// current distance over the fastest possible approach speed, so the
// pair can never tunnel past each other between samples.
func TimeOfImpact(a, b Motion, dt, target float64) Result {
	rmaxA := a.Shape.BoundingRadius()
	rmaxB := b.Shape.BoundingRadius()

	t := 0.0
	for iter := 0; iter < maxIterations; iter++ {
		xfA := a.At(t, dt)
		xfB := b.At(t, dt)
		d := collide.Distance(a.Shape, xfA, b.Shape, xfB)

		if d.Overlapping {
			return Result{Hit: true, T: t, Point: xfA.Position.Add(xfB.Position).Mul(0.5)}
		}
		if d.Distance <= target+tolerance {
			n := safeDir(d.PointB.Sub(d.PointA))
			return Result{
				Hit:    true,
				T:      t,
				Normal: n,
				Point:  d.PointA.Add(d.PointB).Mul(0.5),
			}
		}

		n := safeDir(d.PointB.Sub(d.PointA))
		approach := -n.Dot(b.LinVel.Sub(a.LinVel)) +
			a.AngVel.Len()*rmaxA + b.AngVel.Len()*rmaxB
		if approach <= 0 {
			return Result{}
		}

		t += (d.Distance - target) / (approach * dt)
		if t >= 1 {
			return Result{}
		}
	}

	// Iteration budget exhausted with the pair still closing. Treat
	// the current time as the impact to stay conservative.
	xfA := a.At(t, dt)
	xfB := b.At(t, dt)
	d := collide.Distance(a.Shape, xfA, b.Shape, xfB)
	return Result{
		Hit:    true,
		T:      t,
		Normal: safeDir(d.PointB.Sub(d.PointA)),
		Point:  d.PointA.Add(d.PointB).Mul(0.5),
	}
}

// ShapeCast sweeps a shape along a translation against a stationary
// shape and reports the first contact, if any.
func ShapeCast(s shape.Shape, from geom.Transform, translation mgl64.Vec3, target shape.Shape, at geom.Transform, skin float64) Result {
	mover := Motion{Shape: s, From: from, LinVel: translation}
	still := Motion{Shape: target, From: at}
	return TimeOfImpact(mover, still, 1, skin)
}

// ShouldSweep reports whether a body's displacement this step is
// large enough relative to its collider size that discrete stepping
// could tunnel. The threshold is half the shape's smallest extent.
func ShouldSweep(s shape.Shape, linVel mgl64.Vec3, dt float64) bool {
	return linVel.Len()*dt > 0.5*minExtent(s)
}

// minExtent is the smallest half-width of a shape, the thinnest
// feature a sweep has to catch.
func minExtent(s shape.Shape) float64 {
	switch s.Kind() {
	case shape.KindSphere, shape.KindCapsule:
		return s.Radius()
	case shape.KindBox:
		e := s.HalfExtents()
		return math.Min(e.X(), math.Min(e.Y(), e.Z()))
	case shape.KindCompound:
		m := math.Inf(1)
		for _, c := range s.Children() {
			if e := minExtent(c.Shape); e < m {
				m = e
			}
		}
		return m
	}
	return 0
}

func safeDir(v mgl64.Vec3) mgl64.Vec3 {
	if l := v.Len(); l > 1e-12 {
		return v.Mul(1 / l)
	}
	return mgl64.Vec3{}
}
