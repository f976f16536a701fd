// Package body defines rigid bodies and the colliders attached to
// them. Bodies own motion state; colliders own geometry and material.
// Both live in arenas and reference each other by handle only.
package body

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/veloxphys/velox/internal/arena"
	"github.com/veloxphys/velox/internal/geom"
	"github.com/veloxphys/velox/internal/mathx"
	"github.com/veloxphys/velox/internal/shape"
)

// Kind classifies how a body participates in simulation.
type Kind int

const (
	// Dynamic bodies integrate forces and respond to constraints.
	Dynamic Kind = iota
	// Kinematic bodies follow externally-set velocity and push dynamic
	// bodies but are never pushed back.
	Kinematic
	// Fixed bodies never move. They own no velocity and are skipped by
	// the integrator entirely.
	Fixed
)

func (k Kind) String() string {
	switch k {
	case Dynamic:
		return "dynamic"
	case Kinematic:
		return "kinematic"
	case Fixed:
		return "fixed"
	}
	return "unknown"
}

// Body is one rigid body. Position state lives in Transform; the
// solver works on Velocity/AngularVelocity between the two integrator
// halves of a step.
type Body struct {
	Kind      Kind
	Transform geom.Transform

	Velocity        mgl64.Vec3
	AngularVelocity mgl64.Vec3

	Force  mgl64.Vec3
	Torque mgl64.Vec3

	Mass            float64
	InvMass         float64
	LocalInvInertia mgl64.Mat3

	LinearDamping  float64
	AngularDamping float64
	GravityScale   float64

	Sleeping  bool
	SleepTime float64

	// Frozen marks a body whose state went non-finite. It is excluded
	// from integration and solving until cleared so the corruption
	// cannot spread through its island.
	Frozen bool

	Colliders []arena.Handle
}

// New returns a body of the given kind at t with unit gravity scale.
// Mass properties start at zero and are accumulated when colliders
// attach.
func New(kind Kind, t geom.Transform) Body {
	return Body{
		Kind:         kind,
		Transform:    t,
		GravityScale: 1,
	}
}

// IsAwakeDynamic reports whether the body needs solving this step.
func (b *Body) IsAwakeDynamic() bool {
	return b.Kind == Dynamic && !b.Sleeping && !b.Frozen
}

// Moves reports whether the integrator advances this body at all.
func (b *Body) Moves() bool {
	return b.Kind != Fixed && !b.Sleeping && !b.Frozen
}

// InvInertiaWorld returns the inverse inertia tensor in world space.
// Fixed and kinematic bodies report zero so constraints treat them as
// infinite mass.
func (b *Body) InvInertiaWorld() mgl64.Mat3 {
	if b.Kind != Dynamic {
		return mgl64.Mat3{}
	}
	return mathx.RotateInertia(b.LocalInvInertia, b.Transform.Orientation)
}

// EffectiveInvMass is zero for anything the solver must not push.
func (b *Body) EffectiveInvMass() float64 {
	if b.Kind != Dynamic || b.Frozen {
		return 0
	}
	return b.InvMass
}

// ApplyForce accumulates a force through the center of mass for the
// next step.
func (b *Body) ApplyForce(f mgl64.Vec3) {
	if b.Kind != Dynamic {
		return
	}
	b.Force = b.Force.Add(f)
}

// ApplyTorque accumulates a torque for the next step.
func (b *Body) ApplyTorque(t mgl64.Vec3) {
	if b.Kind != Dynamic {
		return
	}
	b.Torque = b.Torque.Add(t)
}

// ApplyImpulse changes velocity immediately.
func (b *Body) ApplyImpulse(imp mgl64.Vec3) {
	if b.Kind != Dynamic {
		return
	}
	b.Velocity = b.Velocity.Add(imp.Mul(b.InvMass))
}

// ApplyImpulseAt changes linear and angular velocity for an impulse
// applied at a world-space point.
func (b *Body) ApplyImpulseAt(imp, point mgl64.Vec3) {
	if b.Kind != Dynamic {
		return
	}
	b.Velocity = b.Velocity.Add(imp.Mul(b.InvMass))
	r := point.Sub(b.Transform.Position)
	b.AngularVelocity = b.AngularVelocity.Add(b.InvInertiaWorld().Mul3x1(r.Cross(imp)))
}

// ClearForces zeroes the accumulators after the velocity half of the
// integrator has consumed them.
func (b *Body) ClearForces() {
	b.Force = mgl64.Vec3{}
	b.Torque = mgl64.Vec3{}
}

// VelocityAt returns the velocity of the body's material point at a
// world-space position.
func (b *Body) VelocityAt(point mgl64.Vec3) mgl64.Vec3 {
	r := point.Sub(b.Transform.Position)
	return b.Velocity.Add(b.AngularVelocity.Cross(r))
}

// Filter is a collision group assignment: a pair collides when each
// side's membership intersects the other side's mask.
type Filter struct {
	Group uint32
	Mask  uint32
}

// DefaultFilter collides with everything.
var DefaultFilter = Filter{Group: 1, Mask: ^uint32(0)}

func (f Filter) ShouldCollide(other Filter) bool {
	return f.Group&other.Mask != 0 && other.Group&f.Mask != 0
}

// Collider attaches a shape to a body at a local offset.
type Collider struct {
	Shape    shape.Shape
	Local    geom.Transform
	Body     arena.Handle
	Density  float64
	Friction float64
	// Restitution is the coefficient of bounce; contacts use the
	// larger of the two colliders' values.
	Restitution float64
	Filter      Filter
}

// WorldTransform is the collider placement in world space given its
// owning body's transform.
func (c *Collider) WorldTransform(bodyTransform geom.Transform) geom.Transform {
	return bodyTransform.Mul(c.Local)
}
