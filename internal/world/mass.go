package world

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/veloxphys/velox/internal/arena"
)

// recomputeMass rebuilds a body's mass and inertia from its attached
// colliders. Shape inertias are taken about each shape's center of
// mass and shifted to the body origin, which the simulation treats as
// the center of rotation.
func (w *World) recomputeMass(h arena.Handle) {
	b := w.bodies.Get(h)
	if b == nil {
		return
	}

	var mass float64
	var inertia mgl64.Mat3
	for _, ch := range b.Colliders {
		c := w.colliders.Get(ch)
		if c == nil {
			continue
		}
		m, com, in := c.Shape.MassProperties(c.Density)
		r := c.Local.Orientation.Mat4().Mat3()
		in = r.Mul3(in).Mul3(r.Transpose())

		d := c.Local.Apply(com)
		shift := mgl64.Ident3().Mul(d.Dot(d)).Sub(outer(d, d)).Mul(m)
		inertia = inertia.Add(in).Add(shift)
		mass += m
	}

	b.Mass = mass
	b.InvMass = 0
	b.LocalInvInertia = mgl64.Mat3{}
	if mass > 0 {
		b.InvMass = 1 / mass
		if inertia.Det() != 0 {
			b.LocalInvInertia = inertia.Inv()
		}
	}
}

func outer(a, b mgl64.Vec3) mgl64.Mat3 {
	return mgl64.Mat3{
		a.X() * b.X(), a.Y() * b.X(), a.Z() * b.X(),
		a.X() * b.Y(), a.Y() * b.Y(), a.Z() * b.Y(),
		a.X() * b.Z(), a.Y() * b.Z(), a.Z() * b.Z(),
	}
}
