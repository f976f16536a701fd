package shape

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/veloxphys/velox/internal/geom"
)

// RayHit describes the first intersection of a ray with a shape.
type RayHit struct {
	T      float64
	Point  mgl64.Vec3
	Normal mgl64.Vec3
}

// RayIntersect intersects a world-space ray with the shape placed at t.
// It returns the nearest hit within [0, ray.MaxT].
func (s Shape) RayIntersect(t geom.Transform, ray geom.Ray) (RayHit, bool) {
	if s.kind == KindCompound {
		best := RayHit{T: math.Inf(1)}
		found := false
		for _, c := range s.children {
			if hit, ok := c.Shape.RayIntersect(t.Mul(c.Transform), ray); ok && hit.T < best.T {
				best = hit
				found = true
			}
		}
		return best, found
	}

	localOrigin := t.ApplyInverse(ray.Origin)
	localDir := t.RotateVecInverse(ray.Direction)

	var hitT float64
	var localNormal mgl64.Vec3
	var ok bool

	switch s.kind {
	case KindSphere:
		hitT, localNormal, ok = raySphere(localOrigin, localDir, mgl64.Vec3{}, s.radius, ray.MaxT)
	case KindBox:
		hitT, localNormal, ok = rayBox(localOrigin, localDir, s.halfExtents, ray.MaxT)
	case KindCapsule:
		hitT, localNormal, ok = rayCapsule(localOrigin, localDir, s.radius, s.halfHeight, ray.MaxT)
	}
	if !ok {
		return RayHit{}, false
	}

	return RayHit{
		T:      hitT,
		Point:  ray.Origin.Add(ray.Direction.Mul(hitT)),
		Normal: t.RotateVec(localNormal),
	}, true
}

func raySphere(origin, dir, center mgl64.Vec3, radius, maxT float64) (float64, mgl64.Vec3, bool) {
	m := origin.Sub(center)
	a := dir.Dot(dir)
	if a < 1e-12 {
		return 0, mgl64.Vec3{}, false
	}
	b := m.Dot(dir)
	c := m.Dot(m) - radius*radius
	if c > 0 && b > 0 {
		return 0, mgl64.Vec3{}, false
	}
	disc := b*b - a*c
	if disc < 0 {
		return 0, mgl64.Vec3{}, false
	}
	t := (-b - math.Sqrt(disc)) / a
	if t < 0 {
		t = 0 // origin inside
	}
	if t > maxT {
		return 0, mgl64.Vec3{}, false
	}
	p := origin.Add(dir.Mul(t))
	n := p.Sub(center)
	if n.Len() > 1e-12 {
		n = n.Normalize()
	} else {
		n = mgl64.Vec3{0, 1, 0}
	}
	return t, n, true
}

func rayBox(origin, dir mgl64.Vec3, he mgl64.Vec3, maxT float64) (float64, mgl64.Vec3, bool) {
	tmin, tmax := 0.0, maxT
	axis := -1
	sign := 1.0
	for i := 0; i < 3; i++ {
		if math.Abs(dir[i]) < 1e-12 {
			if origin[i] < -he[i] || origin[i] > he[i] {
				return 0, mgl64.Vec3{}, false
			}
			continue
		}
		inv := 1.0 / dir[i]
		t1 := (-he[i] - origin[i]) * inv
		t2 := (he[i] - origin[i]) * inv
		s := -1.0
		if t1 > t2 {
			t1, t2 = t2, t1
			s = 1.0
		}
		if t1 > tmin {
			tmin = t1
			axis = i
			sign = s
		}
		tmax = math.Min(tmax, t2)
		if tmin > tmax {
			return 0, mgl64.Vec3{}, false
		}
	}
	var n mgl64.Vec3
	if axis >= 0 {
		n[axis] = sign
	} else {
		// Origin inside the box.
		n = mgl64.Vec3{0, 1, 0}
	}
	return tmin, n, true
}

func rayCapsule(origin, dir mgl64.Vec3, radius, halfHeight, maxT float64) (float64, mgl64.Vec3, bool) {
	best := math.Inf(1)
	var bestN mgl64.Vec3
	found := false

	// Infinite cylinder about the local Y axis, clipped to the segment.
	a := dir.X()*dir.X() + dir.Z()*dir.Z()
	if a > 1e-12 {
		b := origin.X()*dir.X() + origin.Z()*dir.Z()
		c := origin.X()*origin.X() + origin.Z()*origin.Z() - radius*radius
		disc := b*b - a*c
		if disc >= 0 {
			t := (-b - math.Sqrt(disc)) / a
			if t >= 0 && t <= maxT {
				y := origin.Y() + dir.Y()*t
				if y >= -halfHeight && y <= halfHeight {
					best = t
					bestN = mgl64.Vec3{origin.X() + dir.X()*t, 0, origin.Z() + dir.Z()*t}.Normalize()
					found = true
				}
			}
		}
	}

	// Cap spheres.
	for _, cy := range []float64{halfHeight, -halfHeight} {
		center := mgl64.Vec3{0, cy, 0}
		if t, n, ok := raySphere(origin, dir, center, radius, maxT); ok && t < best {
			best = t
			bestN = n
			found = true
		}
	}

	if !found {
		return 0, mgl64.Vec3{}, false
	}
	return best, bestN, true
}
