package solver

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/veloxphys/velox/internal/joint"
	"github.com/veloxphys/velox/internal/mathx"
)

const (
	limitInactive = iota
	limitAtLower
	limitAtUpper
)

// mass2 is the symmetric 2x2 effective mass of a constraint row pair.
type mass2 struct {
	k11, k12, k22 float64
}

func (m mass2) solve(b1, b2 float64) (float64, float64) {
	det := m.k11*m.k22 - m.k12*m.k12
	if det == 0 {
		return 0, 0
	}
	det = 1 / det
	return det * (m.k22*b1 - m.k12*b2), det * (m.k11*b2 - m.k12*b1)
}

type jointConstraint struct {
	j    *joint.Joint
	a, b int

	rA, rB mgl64.Vec3
	// armA is the lever arm for linear rows on body A. It equals rA
	// except for prismatic joints, whose rows act through rA+d.
	armA mgl64.Vec3

	invPointMass mgl64.Mat3
	invAngMass   mgl64.Mat3

	axis      mgl64.Vec3
	perp      [2]mgl64.Vec3
	perpK     mass2
	axialMass float64

	limitState int
	// limitC is the signed limit violation, zero or negative.
	limitC float64

	springU     mgl64.Vec3
	springMass  float64
	springGamma float64
	springBias  float64
	springOK    bool
}

func prepareJoints(bodies []Body, joints []JointRef, opts Options) []jointConstraint {
	out := make([]jointConstraint, 0, len(joints))
	for _, jr := range joints {
		j := jr.Joint
		bA, bB := &bodies[jr.A], &bodies[jr.B]

		jc := jointConstraint{j: j, a: jr.A, b: jr.B}
		jc.rA = bA.Orientation.Rotate(j.LocalAnchorA)
		jc.rB = bB.Orientation.Rotate(j.LocalAnchorB)
		jc.armA = jc.rA

		switch j.Kind {
		case joint.KindSpherical:
			jc.invPointMass = pointMass(bA, bB, jc.rA, jc.rB).Inv()

		case joint.KindFixed:
			jc.invPointMass = pointMass(bA, bB, jc.rA, jc.rB).Inv()
			jc.invAngMass = bA.InvInertia.Add(bB.InvInertia).Inv()

		case joint.KindRevolute:
			jc.invPointMass = pointMass(bA, bB, jc.rA, jc.rB).Inv()
			jc.axis = bA.Orientation.Rotate(j.LocalAxisA)
			jc.perp[0], jc.perp[1] = mathx.TangentBasis(jc.axis)
			isum := bA.InvInertia.Add(bB.InvInertia)
			jc.perpK = mass2{
				k11: jc.perp[0].Dot(isum.Mul3x1(jc.perp[0])),
				k12: jc.perp[0].Dot(isum.Mul3x1(jc.perp[1])),
				k22: jc.perp[1].Dot(isum.Mul3x1(jc.perp[1])),
			}
			jc.axialMass = invert(jc.axis.Dot(isum.Mul3x1(jc.axis)))
			if j.Limits.Enabled {
				jc.setLimitState(relativeTwist(bA.Orientation, bB.Orientation, j), j.Limits)
			}

		case joint.KindPrismatic:
			jc.axis = bA.Orientation.Rotate(j.LocalAxisA)
			d := bB.Position.Add(jc.rB).Sub(bA.Position.Add(jc.rA))
			jc.armA = jc.rA.Add(d)
			jc.perp[0], jc.perp[1] = mathx.TangentBasis(jc.axis)
			jc.perpK = jc.linearRowPair(bA, bB, jc.perp[0], jc.perp[1])
			jc.invAngMass = bA.InvInertia.Add(bB.InvInertia).Inv()
			a1 := jc.armA.Cross(jc.axis)
			a2 := jc.rB.Cross(jc.axis)
			jc.axialMass = invert(scalarMass(bA, bB, a1, a2))
			if j.Limits.Enabled {
				jc.setLimitState(d.Dot(jc.axis), j.Limits)
			}

		case joint.KindSpring:
			u := bB.Position.Add(jc.rB).Sub(bA.Position.Add(jc.rA))
			length := u.Len()
			if length > 1e-9 {
				jc.springOK = true
				jc.springU = u.Mul(1 / length)
				crA := jc.rA.Cross(jc.springU)
				crB := jc.rB.Cross(jc.springU)
				kEff := scalarMass(bA, bB, crA, crB)
				c := length - j.RestLength
				if j.Stiffness > 0 {
					gamma := opts.Dt * (j.Damping + opts.Dt*j.Stiffness)
					if gamma > 0 {
						gamma = 1 / gamma
					}
					jc.springGamma = gamma
					jc.springBias = c * opts.Dt * j.Stiffness * gamma
					jc.springMass = invert(kEff + gamma)
				} else {
					// Zero stiffness degenerates to a rigid rod.
					jc.springBias = positionBeta / opts.Dt * c
					jc.springMass = invert(kEff)
				}
			}
		}

		out = append(out, jc)
	}
	return out
}

func (c *jointConstraint) linearRowPair(bA, bB *Body, p1, p2 mgl64.Vec3) mass2 {
	s11 := c.armA.Cross(p1)
	s12 := c.armA.Cross(p2)
	s21 := c.rB.Cross(p1)
	s22 := c.rB.Cross(p2)
	m := bA.InvMass + bB.InvMass
	return mass2{
		k11: m + s11.Dot(bA.InvInertia.Mul3x1(s11)) + s21.Dot(bB.InvInertia.Mul3x1(s21)),
		k12: s11.Dot(bA.InvInertia.Mul3x1(s12)) + s21.Dot(bB.InvInertia.Mul3x1(s22)),
		k22: m + s12.Dot(bA.InvInertia.Mul3x1(s12)) + s22.Dot(bB.InvInertia.Mul3x1(s22)),
	}
}

func (c *jointConstraint) setLimitState(pos float64, lim joint.Limits) {
	switch {
	case pos <= lim.Min:
		c.limitState = limitAtLower
		c.limitC = pos - lim.Min
	case pos >= lim.Max:
		c.limitState = limitAtUpper
		c.limitC = lim.Max - pos
	default:
		c.limitState = limitInactive
		c.j.LimitImpulse = 0
	}
}

// relativeTwist measures the joint angle about the hinge axis
// relative to the attachment pose, in (-pi, pi].
func relativeTwist(qA, qB mgl64.Quat, j *joint.Joint) float64 {
	rel := qA.Inverse().Mul(qB)
	err := j.ReferenceRotation.Inverse().Mul(rel)
	w, v := err.W, err.V.Dot(j.LocalAxisA)
	if w < 0 {
		w, v = -w, -v
	}
	return 2 * math.Atan2(v, w)
}

func (c *jointConstraint) warmStart(bodies []Body) {
	bA, bB := &bodies[c.a], &bodies[c.b]
	j := c.j

	switch j.Kind {
	case joint.KindSpherical:
		c.applyLinear(bA, bB, j.LinearImpulse)

	case joint.KindFixed:
		c.applyLinear(bA, bB, j.LinearImpulse)
		c.applyAngular(bA, bB, j.AngularImpulse)

	case joint.KindRevolute:
		c.applyLinear(bA, bB, j.LinearImpulse)
		l := j.AngularImpulse.Add(c.axis.Mul(j.MotorImpulse + j.LimitImpulse))
		c.applyAngular(bA, bB, l)

	case joint.KindPrismatic:
		p := j.LinearImpulse.Add(c.axis.Mul(j.MotorImpulse + j.LimitImpulse))
		c.applyLinear(bA, bB, p)
		c.applyAngular(bA, bB, j.AngularImpulse)

	case joint.KindSpring:
		if c.springOK {
			c.applyLinear(bA, bB, c.springU.Mul(j.SpringImpulse))
		}
	}
}

func (c *jointConstraint) applyLinear(bA, bB *Body, p mgl64.Vec3) {
	bA.applyImpulse(p.Mul(-1), c.armA)
	bB.applyImpulse(p, c.rB)
}

func (c *jointConstraint) applyAngular(bA, bB *Body, l mgl64.Vec3) {
	bA.applyAngularImpulse(l.Mul(-1))
	bB.applyAngularImpulse(l)
}

func (c *jointConstraint) solveVelocity(bodies []Body, opts Options) {
	bA, bB := &bodies[c.a], &bodies[c.b]
	j := c.j

	switch j.Kind {
	case joint.KindSpherical:
		c.solvePointRows(bA, bB)

	case joint.KindFixed:
		c.solveAngularLock(bA, bB)
		c.solvePointRows(bA, bB)

	case joint.KindRevolute:
		if j.Motor.Enabled {
			cdot := c.axis.Dot(bB.AngVel.Sub(bA.AngVel)) - j.Motor.TargetVelocity
			lambda := -c.axialMass * cdot
			maxImpulse := j.Motor.MaxForce * opts.Dt
			old := j.MotorImpulse
			j.MotorImpulse = mathx.Clamp(old+lambda, -maxImpulse, maxImpulse)
			c.applyAngular(bA, bB, c.axis.Mul(j.MotorImpulse-old))
		}
		if c.limitState != limitInactive {
			c.solveAngularLimit(bA, bB, opts)
		}
		w := bB.AngVel.Sub(bA.AngVel)
		l1, l2 := c.perpK.solve(-c.perp[0].Dot(w), -c.perp[1].Dot(w))
		l := c.perp[0].Mul(l1).Add(c.perp[1].Mul(l2))
		j.AngularImpulse = j.AngularImpulse.Add(l)
		c.applyAngular(bA, bB, l)
		c.solvePointRows(bA, bB)

	case joint.KindPrismatic:
		if j.Motor.Enabled {
			cdot := c.axialSpeed(bA, bB) - j.Motor.TargetVelocity
			lambda := -c.axialMass * cdot
			maxImpulse := j.Motor.MaxForce * opts.Dt
			old := j.MotorImpulse
			j.MotorImpulse = mathx.Clamp(old+lambda, -maxImpulse, maxImpulse)
			c.applyLinear(bA, bB, c.axis.Mul(j.MotorImpulse-old))
		}
		if c.limitState != limitInactive {
			c.solveLinearLimit(bA, bB, opts)
		}
		c.solveAngularLock(bA, bB)
		dv := bB.velocityAt(c.rB).Sub(bA.velocityAt(c.armA))
		l1, l2 := c.perpK.solve(-c.perp[0].Dot(dv), -c.perp[1].Dot(dv))
		p := c.perp[0].Mul(l1).Add(c.perp[1].Mul(l2))
		j.LinearImpulse = j.LinearImpulse.Add(p)
		c.applyLinear(bA, bB, p)

	case joint.KindSpring:
		if !c.springOK {
			return
		}
		cdot := c.springU.Dot(bB.velocityAt(c.rB).Sub(bA.velocityAt(c.rA)))
		lambda := -c.springMass * (cdot + c.springBias + c.springGamma*j.SpringImpulse)
		j.SpringImpulse += lambda
		c.applyLinear(bA, bB, c.springU.Mul(lambda))
	}
}

func (c *jointConstraint) solvePointRows(bA, bB *Body) {
	cdot := bB.velocityAt(c.rB).Sub(bA.velocityAt(c.rA))
	p := c.invPointMass.Mul3x1(cdot.Mul(-1))
	c.j.LinearImpulse = c.j.LinearImpulse.Add(p)
	bA.applyImpulse(p.Mul(-1), c.rA)
	bB.applyImpulse(p, c.rB)
}

func (c *jointConstraint) solveAngularLock(bA, bB *Body) {
	w := bB.AngVel.Sub(bA.AngVel)
	l := c.invAngMass.Mul3x1(w.Mul(-1))
	c.j.AngularImpulse = c.j.AngularImpulse.Add(l)
	c.applyAngular(bA, bB, l)
}

func (c *jointConstraint) axialSpeed(bA, bB *Body) float64 {
	return c.axis.Dot(bB.velocityAt(c.rB).Sub(bA.velocityAt(c.armA)))
}

// solveAngularLimit handles one active revolute limit. The impulse is
// accumulated in axis space: positive holds the lower limit, negative
// the upper.
func (c *jointConstraint) solveAngularLimit(bA, bB *Body, opts Options) {
	s := 1.0
	if c.limitState == limitAtUpper {
		s = -1
	}
	cdot := s * c.axis.Dot(bB.AngVel.Sub(bA.AngVel))
	bias := positionBeta / opts.Dt * c.limitC
	lambda := -c.axialMass * (cdot + bias)

	old := s * c.j.LimitImpulse
	total := math.Max(old+lambda, 0)
	c.j.LimitImpulse = s * total
	c.applyAngular(bA, bB, c.axis.Mul(s*(total-old)))
}

func (c *jointConstraint) solveLinearLimit(bA, bB *Body, opts Options) {
	s := 1.0
	if c.limitState == limitAtUpper {
		s = -1
	}
	cdot := s * c.axialSpeed(bA, bB)
	bias := positionBeta / opts.Dt * c.limitC
	lambda := -c.axialMass * (cdot + bias)

	old := s * c.j.LimitImpulse
	total := math.Max(old+lambda, 0)
	c.j.LimitImpulse = s * total
	c.applyLinear(bA, bB, c.axis.Mul(s*(total-old)))
}

// solvePosition removes joint drift by adjusting poses directly.
// Reports whether the joint error is within tolerance.
func (c *jointConstraint) solvePosition(bodies []Body, opts Options) bool {
	bA, bB := &bodies[c.a], &bodies[c.b]
	j := c.j

	switch j.Kind {
	case joint.KindSpherical:
		return c.solveAnchorPosition(bA, bB, opts)

	case joint.KindFixed:
		okAng := c.solveLockedOrientation(bA, bB, opts)
		return c.solveAnchorPosition(bA, bB, opts) && okAng

	case joint.KindRevolute:
		okAng := c.solveAxisAlignment(bA, bB, opts)
		return c.solveAnchorPosition(bA, bB, opts) && okAng

	case joint.KindPrismatic:
		okAng := c.solveLockedOrientation(bA, bB, opts)
		return c.solvePerpPosition(bA, bB, opts) && okAng

	case joint.KindSpring:
		return true
	}
	return true
}

func (c *jointConstraint) solveAnchorPosition(bA, bB *Body, opts Options) bool {
	rA := bA.Orientation.Rotate(c.j.LocalAnchorA)
	rB := bB.Orientation.Rotate(c.j.LocalAnchorB)
	errv := bB.Position.Add(rB).Sub(bA.Position.Add(rA))

	p := pointMass(bA, bB, rA, rB).Inv().Mul3x1(errv.Mul(-1))
	bA.applyPositionImpulse(p.Mul(-1), rA)
	bB.applyPositionImpulse(p, rB)
	return errv.Len() <= opts.AllowedLinearError
}

// solvePerpPosition corrects the anchor error orthogonal to a
// prismatic joint's slide axis.
func (c *jointConstraint) solvePerpPosition(bA, bB *Body, opts Options) bool {
	rA := bA.Orientation.Rotate(c.j.LocalAnchorA)
	rB := bB.Orientation.Rotate(c.j.LocalAnchorB)
	axis := bA.Orientation.Rotate(c.j.LocalAxisA)
	d := bB.Position.Add(rB).Sub(bA.Position.Add(rA))
	errv := d.Sub(axis.Mul(axis.Dot(d)))

	armA := rA.Add(d)
	p := pointMass(bA, bB, armA, rB).Inv().Mul3x1(errv.Mul(-1))
	p = p.Sub(axis.Mul(axis.Dot(p)))
	bA.applyPositionImpulse(p.Mul(-1), armA)
	bB.applyPositionImpulse(p, rB)
	return errv.Len() <= opts.AllowedLinearError
}

func (c *jointConstraint) solveLockedOrientation(bA, bB *Body, opts Options) bool {
	target := bA.Orientation.Mul(c.j.ReferenceRotation)
	qe := bB.Orientation.Mul(target.Inverse())
	if qe.W < 0 {
		qe = qe.Scale(-1)
	}
	rotvec := qe.V.Mul(2)

	l := bA.InvInertia.Add(bB.InvInertia).Inv().Mul3x1(rotvec.Mul(-1))
	bA.applyAngularPositionImpulse(l.Mul(-1))
	bB.applyAngularPositionImpulse(l)
	return rotvec.Len() <= opts.AllowedAngularError
}

func (c *jointConstraint) solveAxisAlignment(bA, bB *Body, opts Options) bool {
	aA := bA.Orientation.Rotate(c.j.LocalAxisA)
	aB := bB.Orientation.Rotate(c.j.LocalAxisB)
	errv := aB.Cross(aA)

	l := bA.InvInertia.Add(bB.InvInertia).Inv().Mul3x1(errv)
	bA.applyAngularPositionImpulse(l.Mul(-1))
	bB.applyAngularPositionImpulse(l)
	return errv.Len() <= opts.AllowedAngularError
}
