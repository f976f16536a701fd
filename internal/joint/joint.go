// Package joint defines the typed constraints that can connect two
// bodies: fixed welds, revolute hinges, prismatic sliders, spherical
// ball joints and distance springs. Joints are created from
// descriptors at insertion time and keep their accumulated impulses
// across steps for warm-starting.
package joint

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/veloxphys/velox/internal/arena"
)

var ErrInvalid = errors.New("joint: invalid descriptor")

type Kind int

const (
	KindFixed Kind = iota
	KindRevolute
	KindPrismatic
	KindSpherical
	KindSpring
)

func (k Kind) String() string {
	switch k {
	case KindFixed:
		return "fixed"
	case KindRevolute:
		return "revolute"
	case KindPrismatic:
		return "prismatic"
	case KindSpherical:
		return "spherical"
	case KindSpring:
		return "spring"
	}
	return "unknown"
}

// Limits restricts joint travel: radians for revolute, meters for
// prismatic.
type Limits struct {
	Enabled bool
	Min     float64
	Max     float64
}

// Motor drives the joint's free axis toward a target velocity with a
// bounded force.
type Motor struct {
	Enabled        bool
	TargetVelocity float64
	MaxForce       float64
}

// Descriptor declares a joint between two bodies. LocalAnchorA/B are
// attachment points in each body's frame; LocalAxisA is the hinge or
// slide axis in A's frame where applicable.
type Descriptor struct {
	Kind Kind

	BodyA arena.Handle
	BodyB arena.Handle

	LocalAnchorA mgl64.Vec3
	LocalAnchorB mgl64.Vec3
	LocalAxisA   mgl64.Vec3

	Limits Limits
	Motor  Motor

	// Spring parameters (KindSpring only).
	RestLength float64
	Stiffness  float64
	Damping    float64
}

// Validate rejects descriptors the solver cannot handle before they
// are inserted into a world.
func (d *Descriptor) Validate() error {
	if d.BodyA.IsNil() || d.BodyB.IsNil() {
		return fmt.Errorf("%w: missing body handle", ErrInvalid)
	}
	if d.BodyA == d.BodyB {
		return fmt.Errorf("%w: joint connects a body to itself", ErrInvalid)
	}
	switch d.Kind {
	case KindRevolute, KindPrismatic:
		if d.LocalAxisA.Len() < 1e-9 {
			return fmt.Errorf("%w: %s joint needs an axis", ErrInvalid, d.Kind)
		}
	case KindSpring:
		if d.RestLength < 0 || d.Stiffness < 0 || d.Damping < 0 {
			return fmt.Errorf("%w: negative spring parameter", ErrInvalid)
		}
	case KindFixed, KindSpherical:
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrInvalid, d.Kind)
	}
	if d.Limits.Enabled && d.Limits.Min > d.Limits.Max {
		return fmt.Errorf("%w: limit min %v above max %v", ErrInvalid, d.Limits.Min, d.Limits.Max)
	}
	return nil
}

// Joint is a live constraint instance. The impulse fields are the
// warm-start state accumulated by the solver.
type Joint struct {
	Descriptor

	// ReferenceRotation is inverse(qA)*qB captured at attachment. Fixed and
	// prismatic joints drive the relative orientation back to it;
	// revolute joints measure their limit angle against it.
	ReferenceRotation mgl64.Quat
	// LocalAxisB mirrors LocalAxisA into B's frame at attachment.
	LocalAxisB mgl64.Vec3

	// LinearImpulse is the accumulated point-constraint impulse.
	LinearImpulse mgl64.Vec3
	// AngularImpulse accumulates the angular locking rows.
	AngularImpulse mgl64.Vec3
	// MotorImpulse and LimitImpulse accumulate along the free axis.
	MotorImpulse float64
	LimitImpulse float64
	// SpringImpulse accumulates along the spring direction.
	SpringImpulse float64
}

// New instantiates a joint from a validated descriptor.
func New(d Descriptor) (Joint, error) {
	if err := d.Validate(); err != nil {
		return Joint{}, err
	}
	if d.Kind == KindRevolute || d.Kind == KindPrismatic {
		d.LocalAxisA = d.LocalAxisA.Normalize()
	}
	return Joint{Descriptor: d, ReferenceRotation: mgl64.QuatIdent()}, nil
}

// InitFrames captures the bodies' relative pose at attachment time.
// Must be called once with the orientations the bodies have when the
// joint is inserted.
func (j *Joint) InitFrames(qA, qB mgl64.Quat) {
	j.ReferenceRotation = qA.Inverse().Mul(qB)
	j.LocalAxisB = qB.Inverse().Rotate(qA.Rotate(j.LocalAxisA))
}

// ResetImpulses clears warm-start state, e.g. after a body teleport.
func (j *Joint) ResetImpulses() {
	j.LinearImpulse = mgl64.Vec3{}
	j.AngularImpulse = mgl64.Vec3{}
	j.MotorImpulse = 0
	j.LimitImpulse = 0
	j.SpringImpulse = 0
}

// Other returns the body across the joint from h, or Nil.
func (j *Joint) Other(h arena.Handle) arena.Handle {
	switch h {
	case j.BodyA:
		return j.BodyB
	case j.BodyB:
		return j.BodyA
	}
	return arena.Nil
}
