// Package geom holds the shared geometric primitives of the engine:
// axis-aligned bounding boxes, rigid transforms and rays.
package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

func (a AABB) Overlaps(b AABB) bool {
	if a.Min.X() > b.Max.X() || b.Min.X() > a.Max.X() {
		return false
	}
	if a.Min.Y() > b.Max.Y() || b.Min.Y() > a.Max.Y() {
		return false
	}
	if a.Min.Z() > b.Max.Z() || b.Min.Z() > a.Max.Z() {
		return false
	}
	return true
}

// Contains reports whether b lies entirely inside a.
func (a AABB) Contains(b AABB) bool {
	return a.Min.X() <= b.Min.X() && a.Min.Y() <= b.Min.Y() && a.Min.Z() <= b.Min.Z() &&
		b.Max.X() <= a.Max.X() && b.Max.Y() <= a.Max.Y() && b.Max.Z() <= a.Max.Z()
}

func (a AABB) Union(b AABB) AABB {
	return AABB{
		Min: mgl64.Vec3{
			math.Min(a.Min.X(), b.Min.X()),
			math.Min(a.Min.Y(), b.Min.Y()),
			math.Min(a.Min.Z(), b.Min.Z()),
		},
		Max: mgl64.Vec3{
			math.Max(a.Max.X(), b.Max.X()),
			math.Max(a.Max.Y(), b.Max.Y()),
			math.Max(a.Max.Z(), b.Max.Z()),
		},
	}
}

// Expand grows the box by margin on every side.
func (a AABB) Expand(margin float64) AABB {
	r := mgl64.Vec3{margin, margin, margin}
	return AABB{Min: a.Min.Sub(r), Max: a.Max.Add(r)}
}

// Sweep grows the box along a displacement, covering the whole motion.
func (a AABB) Sweep(d mgl64.Vec3) AABB {
	out := a
	for i := 0; i < 3; i++ {
		if d[i] < 0 {
			out.Min[i] += d[i]
		} else {
			out.Max[i] += d[i]
		}
	}
	return out
}

func (a AABB) Center() mgl64.Vec3 {
	return a.Min.Add(a.Max).Mul(0.5)
}

func (a AABB) Extents() mgl64.Vec3 {
	return a.Max.Sub(a.Min).Mul(0.5)
}

// SurfaceArea is the cost metric used by the broad-phase tree.
func (a AABB) SurfaceArea() float64 {
	d := a.Max.Sub(a.Min)
	return 2 * (d.X()*d.Y() + d.Y()*d.Z() + d.Z()*d.X())
}

// IntersectRay performs the slab test against the segment origin +
// t*dir for t in [0, tmax]. It returns the entry time and whether the
// segment hits the box.
func (a AABB) IntersectRay(origin, dir mgl64.Vec3, tmax float64) (float64, bool) {
	tmin := 0.0
	for i := 0; i < 3; i++ {
		if math.Abs(dir[i]) < 1e-12 {
			if origin[i] < a.Min[i] || origin[i] > a.Max[i] {
				return 0, false
			}
			continue
		}
		inv := 1.0 / dir[i]
		t1 := (a.Min[i] - origin[i]) * inv
		t2 := (a.Max[i] - origin[i]) * inv
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = math.Max(tmin, t1)
		tmax = math.Min(tmax, t2)
		if tmin > tmax {
			return 0, false
		}
	}
	return tmin, true
}

// Transform is a rigid placement: rotation followed by translation.
type Transform struct {
	Position    mgl64.Vec3
	Orientation mgl64.Quat
}

func Identity() Transform {
	return Transform{Orientation: mgl64.QuatIdent()}
}

// Apply maps a local point to world space.
func (t Transform) Apply(p mgl64.Vec3) mgl64.Vec3 {
	return t.Position.Add(t.Orientation.Rotate(p))
}

// ApplyInverse maps a world point to local space.
func (t Transform) ApplyInverse(p mgl64.Vec3) mgl64.Vec3 {
	return t.Orientation.Conjugate().Rotate(p.Sub(t.Position))
}

// RotateVec maps a local direction to world space.
func (t Transform) RotateVec(v mgl64.Vec3) mgl64.Vec3 {
	return t.Orientation.Rotate(v)
}

// RotateVecInverse maps a world direction to local space.
func (t Transform) RotateVecInverse(v mgl64.Vec3) mgl64.Vec3 {
	return t.Orientation.Conjugate().Rotate(v)
}

// Mul composes two transforms: (t * u)(p) == t(u(p)).
func (t Transform) Mul(u Transform) Transform {
	return Transform{
		Position:    t.Apply(u.Position),
		Orientation: t.Orientation.Mul(u.Orientation).Normalize(),
	}
}

// Ray is a directed segment: origin + t*Direction for t in [0, MaxT].
type Ray struct {
	Origin    mgl64.Vec3
	Direction mgl64.Vec3
	MaxT      float64
}
