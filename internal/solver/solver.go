// Package solver resolves contact and joint constraints with
// sequential impulses. It operates on island-local copies of body
// state so an island can be solved independently of the rest of the
// world; callers copy velocities and poses in, run Solve, and copy
// the results back.
//
// Velocity constraints iterate to convergence with accumulated,
// clamped impulses and are warm-started from the previous step.
// Residual penetration is removed by a non-linear position pass by
// default, or folded into the velocity bias when Baumgarte
// stabilization is selected.
package solver

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/veloxphys/velox/internal/collide"
	"github.com/veloxphys/velox/internal/joint"
	"github.com/veloxphys/velox/internal/mathx"
)

// Body is the island-local view of one rigid body. InvMass and
// InvInertia are zero for fixed and kinematic bodies, which makes
// every impulse against them a no-op.
type Body struct {
	Position    mgl64.Vec3
	Orientation mgl64.Quat
	LinVel      mgl64.Vec3
	AngVel      mgl64.Vec3
	InvMass     float64
	InvInertia  mgl64.Mat3
}

func (b *Body) velocityAt(r mgl64.Vec3) mgl64.Vec3 {
	return b.LinVel.Add(b.AngVel.Cross(r))
}

func (b *Body) applyImpulse(p, r mgl64.Vec3) {
	b.LinVel = b.LinVel.Add(p.Mul(b.InvMass))
	b.AngVel = b.AngVel.Add(b.InvInertia.Mul3x1(r.Cross(p)))
}

func (b *Body) applyAngularImpulse(l mgl64.Vec3) {
	b.AngVel = b.AngVel.Add(b.InvInertia.Mul3x1(l))
}

// applyPositionImpulse moves the pose directly, bypassing velocity.
// Used by the position pass.
func (b *Body) applyPositionImpulse(p, r mgl64.Vec3) {
	b.Position = b.Position.Add(p.Mul(b.InvMass))
	w := b.InvInertia.Mul3x1(r.Cross(p))
	b.Orientation = mathx.IntegrateOrientation(b.Orientation, w, 1)
}

func (b *Body) applyAngularPositionImpulse(l mgl64.Vec3) {
	w := b.InvInertia.Mul3x1(l)
	b.Orientation = mathx.IntegrateOrientation(b.Orientation, w, 1)
}

// Contact binds a manifold to island-local body indices.
type Contact struct {
	Manifold *collide.Manifold
	A, B     int
}

// JointRef binds a joint to island-local body indices.
type JointRef struct {
	Joint *joint.Joint
	A, B  int
}

// Options tunes the solver. Zero values are not useful; start from
// DefaultOptions.
type Options struct {
	Dt                 float64
	VelocityIterations int
	PositionIterations int

	// AllowedLinearError is the penetration depth tolerated when
	// judging convergence and when biasing Baumgarte pushes. The
	// position pass itself corrects toward zero separation.
	AllowedLinearError float64
	// AllowedAngularError bounds accepted joint orientation error.
	AllowedAngularError float64
	// MaxCorrection caps the positional push of one iteration.
	MaxCorrection float64

	// Baumgarte folds position error into the velocity bias instead
	// of running the position pass for contacts.
	Baumgarte       bool
	BaumgarteFactor float64

	// RestitutionThreshold is the approach speed below which impacts
	// are treated as inelastic.
	RestitutionThreshold float64
}

func DefaultOptions() Options {
	return Options{
		Dt:                   1.0 / 60.0,
		VelocityIterations:   8,
		PositionIterations:   4,
		AllowedLinearError:   0.005,
		AllowedAngularError:  0.035,
		MaxCorrection:        0.2,
		BaumgarteFactor:      0.2,
		RestitutionThreshold: 1.0,
	}
}

// positionBeta is the NGS relaxation factor per iteration.
const positionBeta = 0.2

// IslandSolver holds the prepared constraints of one island across
// the phases of a step. Anchors are captured in body-local space at
// preparation, so the position pass stays valid after poses move.
type IslandSolver struct {
	bodies []Body
	cc     []contactConstraint
	jc     []jointConstraint
	opts   Options
}

// NewIslandSolver prepares constraints against the bodies' current
// state. The bodies slice is retained and mutated by the solve
// phases.
func NewIslandSolver(bodies []Body, contacts []Contact, joints []JointRef, opts Options) *IslandSolver {
	return &IslandSolver{
		bodies: bodies,
		cc:     prepareContacts(bodies, contacts, opts),
		jc:     prepareJoints(bodies, joints, opts),
		opts:   opts,
	}
}

// SolveVelocity warm-starts and iterates the velocity constraints.
func (s *IslandSolver) SolveVelocity() {
	for i := range s.jc {
		s.jc[i].warmStart(s.bodies)
	}
	for i := range s.cc {
		s.cc[i].warmStart(s.bodies)
	}
	for it := 0; it < s.opts.VelocityIterations; it++ {
		for i := range s.jc {
			s.jc[i].solveVelocity(s.bodies, s.opts)
		}
		for i := range s.cc {
			s.cc[i].solveVelocity(s.bodies)
		}
	}
}

// IntegratePoses advances every movable island body by the solved
// velocities. Boundary bodies carry zero inverse mass and stay put.
func (s *IslandSolver) IntegratePoses() {
	for i := range s.bodies {
		b := &s.bodies[i]
		if b.InvMass == 0 {
			continue
		}
		b.Position = b.Position.Add(b.LinVel.Mul(s.opts.Dt))
		b.Orientation = mathx.IntegrateOrientation(b.Orientation, b.AngVel, s.opts.Dt)
	}
}

// SolvePositions removes residual penetration and joint drift.
func (s *IslandSolver) SolvePositions() {
	for it := 0; it < s.opts.PositionIterations; it++ {
		done := true
		if !s.opts.Baumgarte {
			for i := range s.cc {
				if !s.cc[i].solvePosition(s.bodies, s.opts) {
					done = false
				}
			}
		}
		for i := range s.jc {
			if !s.jc[i].solvePosition(s.bodies, s.opts) {
				done = false
			}
		}
		if done {
			break
		}
	}
}

// Solve runs the velocity and position phases back to back without
// integrating poses, mutating the bodies in place. Accumulated
// impulses are read from and written back to the manifolds and
// joints for warm-starting the next step.
func Solve(bodies []Body, contacts []Contact, joints []JointRef, opts Options) {
	s := NewIslandSolver(bodies, contacts, joints, opts)
	s.SolveVelocity()
	s.SolvePositions()
}

// pointMass builds the 3x3 effective mass of a point-to-point row
// pair with arms rA and rB.
func pointMass(a, b *Body, rA, rB mgl64.Vec3) mgl64.Mat3 {
	k := mgl64.Ident3().Mul(a.InvMass + b.InvMass)
	sa := mathx.Skew(rA)
	sb := mathx.Skew(rB)
	k = k.Sub(sa.Mul3(a.InvInertia).Mul3(sa))
	k = k.Sub(sb.Mul3(b.InvInertia).Mul3(sb))
	return k
}

// scalarMass is the effective mass of one row along direction n with
// angular arms rnA = rA x n, rnB = rB x n.
func scalarMass(a, b *Body, rnA, rnB mgl64.Vec3) float64 {
	return a.InvMass + b.InvMass +
		rnA.Dot(a.InvInertia.Mul3x1(rnA)) +
		rnB.Dot(b.InvInertia.Mul3x1(rnB))
}

func invert(k float64) float64 {
	if k > 0 {
		return 1 / k
	}
	return 0
}
