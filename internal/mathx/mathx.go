// Package mathx adds the small set of rigid-body helpers that
// mathgl does not ship: skew matrices, inertia frame changes,
// tangent bases and finiteness checks.
package mathx

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Skew returns the cross-product matrix of v, so Skew(v).Mul3x1(w) == v x w.
func Skew(v mgl64.Vec3) mgl64.Mat3 {
	return mgl64.Mat3{
		0, v.Z(), -v.Y(),
		-v.Z(), 0, v.X(),
		v.Y(), -v.X(), 0,
	}
}

// RotateInertia transforms an inverse inertia tensor from local to world
// space: R * I * R^T.
func RotateInertia(inertia mgl64.Mat3, orientation mgl64.Quat) mgl64.Mat3 {
	r := orientation.Mat4().Mat3()
	return r.Mul3(inertia).Mul3(r.Transpose())
}

// TangentBasis builds two unit tangents orthogonal to a unit normal.
// The pair is deterministic for a given normal.
func TangentBasis(normal mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	ref := mgl64.Vec3{1, 0, 0}
	if math.Abs(normal.X()) > 0.9 {
		ref = mgl64.Vec3{0, 1, 0}
	}
	t1 := ref.Sub(normal.Mul(ref.Dot(normal))).Normalize()
	t2 := normal.Cross(t1)
	return t1, t2
}

// IntegrateOrientation advances q by angular velocity omega over dt and
// renormalizes, which keeps floating-point drift out of the rotation.
func IntegrateOrientation(q mgl64.Quat, omega mgl64.Vec3, dt float64) mgl64.Quat {
	w := mgl64.Quat{W: 0, V: omega}
	dq := w.Mul(q).Scale(0.5 * dt)
	return q.Add(dq).Normalize()
}

// IsFinite reports whether every component of v is a finite number.
func IsFinite(v mgl64.Vec3) bool {
	return finite(v.X()) && finite(v.Y()) && finite(v.Z())
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Clamp limits x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
