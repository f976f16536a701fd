package solver

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/veloxphys/velox/internal/collide"
	"github.com/veloxphys/velox/internal/mathx"
)

type contactPoint struct {
	point *collide.Point

	rA, rB mgl64.Vec3
	// Anchors in each body's frame, captured at prepare time so the
	// position pass can re-evaluate separation as poses move.
	localA, localB mgl64.Vec3

	normalMass  float64
	tangentMass [2]float64

	// bias is the target normal velocity: negative for speculative
	// contacts (bounded approach), positive for restitution or
	// Baumgarte push-out.
	bias float64

	penetration float64
}

type contactConstraint struct {
	a, b int

	normal mgl64.Vec3
	// localNormal keeps the contact normal attached to body A's frame
	// during the position pass.
	localNormal mgl64.Vec3
	tangent     [2]mgl64.Vec3

	friction float64
	points   []contactPoint
}

func prepareContacts(bodies []Body, contacts []Contact, opts Options) []contactConstraint {
	out := make([]contactConstraint, 0, len(contacts))
	for _, c := range contacts {
		m := c.Manifold
		if len(m.Points) == 0 {
			continue
		}
		bA, bB := &bodies[c.A], &bodies[c.B]

		cc := contactConstraint{
			a:           c.A,
			b:           c.B,
			normal:      m.Normal,
			localNormal: bA.Orientation.Inverse().Rotate(m.Normal),
			friction:    m.Friction,
			points:      make([]contactPoint, 0, len(m.Points)),
		}
		cc.tangent[0], cc.tangent[1] = mathx.TangentBasis(m.Normal)

		for i := range m.Points {
			p := &m.Points[i]
			cp := contactPoint{
				point:       p,
				rA:          p.Position.Sub(bA.Position),
				rB:          p.Position.Sub(bB.Position),
				penetration: p.Penetration,
			}
			cp.localA = bA.Orientation.Inverse().Rotate(cp.rA)
			cp.localB = bB.Orientation.Inverse().Rotate(cp.rB)

			rnA := cp.rA.Cross(m.Normal)
			rnB := cp.rB.Cross(m.Normal)
			cp.normalMass = invert(scalarMass(bA, bB, rnA, rnB))
			for t := 0; t < 2; t++ {
				rtA := cp.rA.Cross(cc.tangent[t])
				rtB := cp.rB.Cross(cc.tangent[t])
				cp.tangentMass[t] = invert(scalarMass(bA, bB, rtA, rtB))
			}

			vn := m.Normal.Dot(bB.velocityAt(cp.rB).Sub(bA.velocityAt(cp.rA)))
			if p.Penetration < 0 {
				// Speculative: permit closing exactly the gap this step.
				// Once the approach outruns the gap the impact lands
				// within this step, so restitution applies at the full
				// pre-impact speed instead of the gap-braked one.
				cp.bias = p.Penetration / opts.Dt
				if vn < -opts.RestitutionThreshold && p.Penetration >= vn*opts.Dt {
					cp.bias = math.Max(cp.bias, -m.Restitution*vn)
				}
			} else {
				if vn < -opts.RestitutionThreshold {
					cp.bias = -m.Restitution * vn
				}
				if opts.Baumgarte {
					push := opts.BaumgarteFactor / opts.Dt *
						math.Max(p.Penetration-opts.AllowedLinearError, 0)
					cp.bias = math.Max(cp.bias, push)
				}
			}
			cc.points = append(cc.points, cp)
		}
		out = append(out, cc)
	}
	return out
}

func (c *contactConstraint) warmStart(bodies []Body) {
	bA, bB := &bodies[c.a], &bodies[c.b]
	for i := range c.points {
		cp := &c.points[i]
		p := c.normal.Mul(cp.point.NormalImpulse).
			Add(c.tangent[0].Mul(cp.point.TangentImpulse[0])).
			Add(c.tangent[1].Mul(cp.point.TangentImpulse[1]))
		bA.applyImpulse(p.Mul(-1), cp.rA)
		bB.applyImpulse(p, cp.rB)
	}
}

func (c *contactConstraint) solveVelocity(bodies []Body) {
	bA, bB := &bodies[c.a], &bodies[c.b]

	for i := range c.points {
		cp := &c.points[i]

		// Friction first, clamped by the normal impulse accumulated
		// so far.
		maxFriction := c.friction * cp.point.NormalImpulse
		for t := 0; t < 2; t++ {
			dv := bB.velocityAt(cp.rB).Sub(bA.velocityAt(cp.rA))
			vt := c.tangent[t].Dot(dv)
			lambda := -cp.tangentMass[t] * vt

			old := cp.point.TangentImpulse[t]
			cp.point.TangentImpulse[t] = mathx.Clamp(old+lambda, -maxFriction, maxFriction)
			lambda = cp.point.TangentImpulse[t] - old

			p := c.tangent[t].Mul(lambda)
			bA.applyImpulse(p.Mul(-1), cp.rA)
			bB.applyImpulse(p, cp.rB)
		}

		dv := bB.velocityAt(cp.rB).Sub(bA.velocityAt(cp.rA))
		vn := c.normal.Dot(dv)
		lambda := -cp.normalMass * (vn - cp.bias)

		old := cp.point.NormalImpulse
		cp.point.NormalImpulse = math.Max(old+lambda, 0)
		lambda = cp.point.NormalImpulse - old

		p := c.normal.Mul(lambda)
		bA.applyImpulse(p.Mul(-1), cp.rA)
		bB.applyImpulse(p, cp.rB)
	}
}

// solvePosition pushes overlapping points apart by moving poses
// directly. Speculative points are skipped; they never overlapped.
// Reports whether residual penetration is within tolerance.
func (c *contactConstraint) solvePosition(bodies []Body, opts Options) bool {
	bA, bB := &bodies[c.a], &bodies[c.b]
	ok := true

	for i := range c.points {
		cp := &c.points[i]
		if cp.penetration <= 0 {
			continue
		}

		n := bA.Orientation.Rotate(c.localNormal)
		pA := bA.Position.Add(bA.Orientation.Rotate(cp.localA))
		pB := bB.Position.Add(bB.Orientation.Rotate(cp.localB))

		// Anchors coincided at prepare time while the bodies
		// overlapped by cp.penetration, so current separation is the
		// anchor drift along the normal minus that initial overlap.
		sep := pB.Sub(pA).Dot(n) - cp.penetration
		if sep < -3*opts.AllowedLinearError {
			ok = false
		}

		// Correct toward zero separation so resting penetration decays
		// to numerical noise rather than parking at the slop depth.
		corr := mathx.Clamp(positionBeta*sep, -opts.MaxCorrection, 0)
		if corr >= 0 {
			continue
		}

		rA := pA.Sub(bA.Position)
		rB := pB.Sub(bB.Position)
		k := scalarMass(bA, bB, rA.Cross(n), rB.Cross(n))
		if k <= 0 {
			continue
		}

		p := n.Mul(-corr / k)
		bA.applyPositionImpulse(p.Mul(-1), rA)
		bB.applyPositionImpulse(p, rB)
	}
	return ok
}
