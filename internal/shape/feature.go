package shape

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ContactFeature returns the local-space vertices of the shape feature
// most anti-parallel to the contact direction: a face for boxes, an
// edge for side-on capsules, a single point otherwise. The narrow
// phase clips incident against reference features to build multi-point
// manifolds.
func (s Shape) ContactFeature(dir mgl64.Vec3) []mgl64.Vec3 {
	switch s.kind {
	case KindSphere:
		return []mgl64.Vec3{s.Support(dir)}
	case KindBox:
		return s.boxFace(dir)
	case KindCapsule:
		// Side contact exposes the whole segment shifted by the radius;
		// end-on contact is a single cap point.
		n := safeNormalize(dir)
		if math.Abs(n.Y()) < 0.7 {
			offset := n.Mul(s.radius)
			return []mgl64.Vec3{
				mgl64.Vec3{0, s.halfHeight, 0}.Add(offset),
				mgl64.Vec3{0, -s.halfHeight, 0}.Add(offset),
			}
		}
		return []mgl64.Vec3{s.Support(dir)}
	}
	return nil
}

func (s Shape) boxFace(dir mgl64.Vec3) []mgl64.Vec3 {
	he := s.halfExtents

	// Pick the face whose normal best matches dir.
	axis := 0
	sign := math.Copysign(1, dir.X())
	best := math.Abs(dir.X())
	if math.Abs(dir.Y()) > best {
		axis, sign, best = 1, math.Copysign(1, dir.Y()), math.Abs(dir.Y())
	}
	if math.Abs(dir.Z()) > best {
		axis, sign = 2, math.Copysign(1, dir.Z())
	}

	u := (axis + 1) % 3
	v := (axis + 2) % 3

	verts := make([]mgl64.Vec3, 4)
	for i, uv := range [4][2]float64{{1, 1}, {-1, 1}, {-1, -1}, {1, -1}} {
		var p mgl64.Vec3
		p[axis] = sign * he[axis]
		p[u] = uv[0] * he[u]
		p[v] = uv[1] * he[v]
		verts[i] = p
	}
	return verts
}
