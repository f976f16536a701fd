// Package shape defines the closed set of collision shapes and their
// geometric capabilities: bounding volume, support mapping, mass
// properties, ray intersection and contact features.
//
// Shapes are a tagged variant rather than an interface hierarchy so
// that pairwise collision dispatch can switch exhaustively on
// (Kind, Kind).
package shape

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/veloxphys/velox/internal/geom"
)

// ErrDegenerate rejects shapes with non-positive extents at
// construction time, before they can reach the solver.
var ErrDegenerate = errors.New("shape: degenerate geometry")

type Kind int

const (
	KindSphere Kind = iota
	KindBox
	KindCapsule
	KindCompound
)

func (k Kind) String() string {
	switch k {
	case KindSphere:
		return "sphere"
	case KindBox:
		return "box"
	case KindCapsule:
		return "capsule"
	case KindCompound:
		return "compound"
	}
	return "unknown"
}

// Child places a convex shape inside a compound.
type Child struct {
	Shape     Shape
	Transform geom.Transform
}

// Shape is one collision shape. The meaning of the fields depends on
// the kind: spheres and capsules use Radius, capsules additionally use
// HalfHeight (along local Y), boxes use HalfExtents, compounds use
// Children.
type Shape struct {
	kind        Kind
	radius      float64
	halfHeight  float64
	halfExtents mgl64.Vec3
	children    []Child
}

func NewSphere(radius float64) (Shape, error) {
	if radius <= 0 || !finite(radius) {
		return Shape{}, fmt.Errorf("%w: sphere radius %v", ErrDegenerate, radius)
	}
	return Shape{kind: KindSphere, radius: radius}, nil
}

func NewBox(halfExtents mgl64.Vec3) (Shape, error) {
	for i := 0; i < 3; i++ {
		if halfExtents[i] <= 0 || !finite(halfExtents[i]) {
			return Shape{}, fmt.Errorf("%w: box half extents %v", ErrDegenerate, halfExtents)
		}
	}
	return Shape{kind: KindBox, halfExtents: halfExtents}, nil
}

// NewCapsule creates a capsule along the local Y axis. halfHeight is
// half the distance between the two cap centers.
func NewCapsule(radius, halfHeight float64) (Shape, error) {
	if radius <= 0 || halfHeight <= 0 || !finite(radius) || !finite(halfHeight) {
		return Shape{}, fmt.Errorf("%w: capsule radius %v half height %v", ErrDegenerate, radius, halfHeight)
	}
	return Shape{kind: KindCapsule, radius: radius, halfHeight: halfHeight}, nil
}

func NewCompound(children []Child) (Shape, error) {
	if len(children) == 0 {
		return Shape{}, fmt.Errorf("%w: compound with no children", ErrDegenerate)
	}
	for i := range children {
		if children[i].Shape.kind == KindCompound {
			return Shape{}, fmt.Errorf("%w: nested compound", ErrDegenerate)
		}
	}
	out := make([]Child, len(children))
	copy(out, children)
	return Shape{kind: KindCompound, children: out}, nil
}

func (s Shape) Kind() Kind              { return s.kind }
func (s Shape) Radius() float64         { return s.radius }
func (s Shape) HalfHeight() float64     { return s.halfHeight }
func (s Shape) HalfExtents() mgl64.Vec3 { return s.halfExtents }
func (s Shape) Children() []Child       { return s.children }

// BoundingRadius is the radius of the smallest origin-centered sphere
// enclosing the shape in local space. CCD uses it to size sweeps.
func (s Shape) BoundingRadius() float64 {
	switch s.kind {
	case KindSphere:
		return s.radius
	case KindBox:
		return s.halfExtents.Len()
	case KindCapsule:
		return s.halfHeight + s.radius
	case KindCompound:
		r := 0.0
		for _, c := range s.children {
			r = math.Max(r, c.Transform.Position.Len()+c.Shape.BoundingRadius())
		}
		return r
	}
	return 0
}

// AABB returns the world-space bounding box of the shape under t.
func (s Shape) AABB(t geom.Transform) geom.AABB {
	switch s.kind {
	case KindSphere:
		r := mgl64.Vec3{s.radius, s.radius, s.radius}
		return geom.AABB{Min: t.Position.Sub(r), Max: t.Position.Add(r)}
	case KindBox:
		// Extent of a rotated box along each axis is the absolute
		// rotation matrix applied to the half extents.
		m := t.Orientation.Mat4().Mat3()
		var ext mgl64.Vec3
		for row := 0; row < 3; row++ {
			ext[row] = math.Abs(m.At(row, 0))*s.halfExtents.X() +
				math.Abs(m.At(row, 1))*s.halfExtents.Y() +
				math.Abs(m.At(row, 2))*s.halfExtents.Z()
		}
		return geom.AABB{Min: t.Position.Sub(ext), Max: t.Position.Add(ext)}
	case KindCapsule:
		a := t.Apply(mgl64.Vec3{0, s.halfHeight, 0})
		b := t.Apply(mgl64.Vec3{0, -s.halfHeight, 0})
		r := mgl64.Vec3{s.radius, s.radius, s.radius}
		seg := geom.AABB{Min: minVec(a, b), Max: maxVec(a, b)}
		return geom.AABB{Min: seg.Min.Sub(r), Max: seg.Max.Add(r)}
	case KindCompound:
		out := s.children[0].Shape.AABB(t.Mul(s.children[0].Transform))
		for _, c := range s.children[1:] {
			out = out.Union(c.Shape.AABB(t.Mul(c.Transform)))
		}
		return out
	}
	return geom.AABB{}
}

// Support returns the local-space point of the shape furthest along
// dir. dir need not be normalized. Compounds have no single support
// map; callers dispatch per child.
func (s Shape) Support(dir mgl64.Vec3) mgl64.Vec3 {
	switch s.kind {
	case KindSphere:
		n := safeNormalize(dir)
		return n.Mul(s.radius)
	case KindBox:
		return mgl64.Vec3{
			math.Copysign(s.halfExtents.X(), dir.X()),
			math.Copysign(s.halfExtents.Y(), dir.Y()),
			math.Copysign(s.halfExtents.Z(), dir.Z()),
		}
	case KindCapsule:
		n := safeNormalize(dir)
		p := n.Mul(s.radius)
		if dir.Y() >= 0 {
			return p.Add(mgl64.Vec3{0, s.halfHeight, 0})
		}
		return p.Add(mgl64.Vec3{0, -s.halfHeight, 0})
	}
	return mgl64.Vec3{}
}

// MassProperties computes mass, center of mass and the local inertia
// tensor about that center for the given density.
func (s Shape) MassProperties(density float64) (mass float64, com mgl64.Vec3, inertia mgl64.Mat3) {
	switch s.kind {
	case KindSphere:
		mass = density * 4.0 / 3.0 * math.Pi * s.radius * s.radius * s.radius
		i := 2.0 / 5.0 * mass * s.radius * s.radius
		return mass, mgl64.Vec3{}, mgl64.Diag3(mgl64.Vec3{i, i, i})
	case KindBox:
		w := s.halfExtents.Mul(2)
		mass = density * w.X() * w.Y() * w.Z()
		f := mass / 12.0
		return mass, mgl64.Vec3{}, mgl64.Diag3(mgl64.Vec3{
			f * (w.Y()*w.Y() + w.Z()*w.Z()),
			f * (w.X()*w.X() + w.Z()*w.Z()),
			f * (w.X()*w.X() + w.Y()*w.Y()),
		})
	case KindCapsule:
		r, h := s.radius, 2*s.halfHeight
		cylMass := density * math.Pi * r * r * h
		capMass := density * 4.0 / 3.0 * math.Pi * r * r * r
		mass = cylMass + capMass

		// Cylinder about its center.
		iy := cylMass * r * r / 2
		ix := cylMass * (3*r*r + h*h) / 12

		// Two hemispheres shifted to the cap centers (parallel axis).
		capI := 2.0 / 5.0 * capMass * r * r
		shift := s.halfHeight + 3.0/8.0*r
		ix += capI + capMass*shift*shift
		iyCaps := capI

		return mass, mgl64.Vec3{}, mgl64.Diag3(mgl64.Vec3{ix, iy + iyCaps, ix})
	case KindCompound:
		for _, c := range s.children {
			m, childCom, _ := c.Shape.MassProperties(density)
			mass += m
			com = com.Add(c.Transform.Apply(childCom).Mul(m))
		}
		if mass > 0 {
			com = com.Mul(1 / mass)
		}
		var total mgl64.Mat3
		for _, c := range s.children {
			m, childCom, childI := c.Shape.MassProperties(density)
			r := c.Transform.Orientation.Mat4().Mat3()
			rotated := r.Mul3(childI).Mul3(r.Transpose())

			// Parallel axis to the compound center of mass.
			d := c.Transform.Apply(childCom).Sub(com)
			d2 := d.Dot(d)
			shift := mgl64.Ident3().Mul(d2).Sub(outer(d, d)).Mul(m)
			total = total.Add(rotated).Add(shift)
		}
		return mass, com, total
	}
	return 0, mgl64.Vec3{}, mgl64.Ident3()
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func safeNormalize(v mgl64.Vec3) mgl64.Vec3 {
	if v.Len() < 1e-12 {
		return mgl64.Vec3{0, 1, 0}
	}
	return v.Normalize()
}

func outer(a, b mgl64.Vec3) mgl64.Mat3 {
	return mgl64.Mat3{
		a.X() * b.X(), a.Y() * b.X(), a.Z() * b.X(),
		a.X() * b.Y(), a.Y() * b.Y(), a.Z() * b.Y(),
		a.X() * b.Z(), a.Y() * b.Z(), a.Z() * b.Z(),
	}
}

func minVec(a, b mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{math.Min(a.X(), b.X()), math.Min(a.Y(), b.Y()), math.Min(a.Z(), b.Z())}
}

func maxVec(a, b mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{math.Max(a.X(), b.X()), math.Max(a.Y(), b.Y()), math.Max(a.Z(), b.Z())}
}
