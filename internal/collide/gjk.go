package collide

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/veloxphys/velox/internal/geom"
	"github.com/veloxphys/velox/internal/shape"
)

const gjkMaxIterations = 32

// supportVertex is one vertex of the simplex: a point of the
// Minkowski difference A-B together with the world-space support
// points it came from, so witness points can be recovered from
// barycentric weights.
type supportVertex struct {
	p mgl64.Vec3 // supportA - supportB
	a mgl64.Vec3
	b mgl64.Vec3
}

type simplex struct {
	verts [4]supportVertex
	bary  [4]float64
	count int
}

func minkowskiSupport(sa shape.Shape, xfA geom.Transform, sb shape.Shape, xfB geom.Transform, dir mgl64.Vec3) supportVertex {
	a := xfA.Apply(sa.Support(xfA.RotateVecInverse(dir)))
	b := xfB.Apply(sb.Support(xfB.RotateVecInverse(dir.Mul(-1))))
	return supportVertex{p: a.Sub(b), a: a, b: b}
}

// DistanceResult is the outcome of a GJK distance query between two
// convex shapes.
type DistanceResult struct {
	// Overlapping is true when the shapes interpenetrate; the witness
	// points and distance are then meaningless and EPA takes over.
	Overlapping bool

	// PointA and PointB are the closest world-space points on each
	// shape when not overlapping.
	PointA mgl64.Vec3
	PointB mgl64.Vec3

	Distance float64

	// simplex seeds EPA when overlapping.
	simplex simplex
}

// Distance runs GJK between two convex shapes. Compound shapes are
// not accepted here; callers dispatch per child.
func Distance(sa shape.Shape, xfA geom.Transform, sb shape.Shape, xfB geom.Transform) DistanceResult {
	var s simplex

	dir := xfB.Position.Sub(xfA.Position)
	if dir.Dot(dir) < 1e-12 {
		dir = mgl64.Vec3{1, 0, 0}
	}
	s.verts[0] = minkowskiSupport(sa, xfA, sb, xfB, dir)
	s.bary[0] = 1
	s.count = 1

	for iter := 0; iter < gjkMaxIterations; iter++ {
		closest, inside := s.solve()
		if inside {
			return DistanceResult{Overlapping: true, simplex: s}
		}

		distSq := closest.Dot(closest)
		if distSq < 1e-18 {
			// Touching: treat as overlap with zero depth.
			return DistanceResult{Overlapping: true, simplex: s}
		}

		dir := closest.Mul(-1)
		w := minkowskiSupport(sa, xfA, sb, xfB, dir)

		// No progress toward the origin: converged.
		if distSq-closest.Dot(w.p) <= 1e-10*distSq {
			break
		}
		// Duplicate support point: converged.
		dup := false
		for i := 0; i < s.count; i++ {
			if s.verts[i].p.Sub(w.p).Dot(s.verts[i].p.Sub(w.p)) < 1e-16 {
				dup = true
				break
			}
		}
		if dup {
			break
		}

		s.verts[s.count] = w
		s.count++
	}

	closest, inside := s.solve()
	if inside {
		return DistanceResult{Overlapping: true, simplex: s}
	}

	var pa, pb mgl64.Vec3
	for i := 0; i < s.count; i++ {
		pa = pa.Add(s.verts[i].a.Mul(s.bary[i]))
		pb = pb.Add(s.verts[i].b.Mul(s.bary[i]))
	}
	return DistanceResult{
		PointA:   pa,
		PointB:   pb,
		Distance: closest.Len(),
	}
}

// solve finds the point of the simplex closest to the origin, reduces
// the simplex to the supporting feature and fills in barycentric
// weights. It reports containment of the origin (tetrahedron only).
func (s *simplex) solve() (mgl64.Vec3, bool) {
	switch s.count {
	case 1:
		s.bary[0] = 1
		return s.verts[0].p, false
	case 2:
		return s.solveSegment(), false
	case 3:
		return s.solveTriangle(), false
	case 4:
		return s.solveTetrahedron()
	}
	return mgl64.Vec3{}, false
}

func (s *simplex) solveSegment() mgl64.Vec3 {
	a := s.verts[0].p
	b := s.verts[1].p
	ab := b.Sub(a)

	t := -a.Dot(ab)
	denom := ab.Dot(ab)
	if denom < 1e-16 || t <= 0 {
		s.count = 1
		s.bary[0] = 1
		return a
	}
	if t >= denom {
		s.verts[0] = s.verts[1]
		s.count = 1
		s.bary[0] = 1
		return b
	}
	u := t / denom
	s.bary[0] = 1 - u
	s.bary[1] = u
	return a.Add(ab.Mul(u))
}

// solveTriangle is the point-to-triangle Voronoi region walk.
func (s *simplex) solveTriangle() mgl64.Vec3 {
	a := s.verts[0].p
	b := s.verts[1].p
	c := s.verts[2].p

	ab := b.Sub(a)
	ac := c.Sub(a)
	ap := a.Mul(-1)

	d1 := ab.Dot(ap)
	d2 := ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		s.count = 1
		s.bary[0] = 1
		return a
	}

	bp := b.Mul(-1)
	d3 := ab.Dot(bp)
	d4 := ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		s.verts[0] = s.verts[1]
		s.count = 1
		s.bary[0] = 1
		return b
	}

	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		v := d1 / (d1 - d3)
		s.count = 2
		s.bary[0] = 1 - v
		s.bary[1] = v
		return a.Add(ab.Mul(v))
	}

	cp := c.Mul(-1)
	d5 := ab.Dot(cp)
	d6 := ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		s.verts[0] = s.verts[2]
		s.count = 1
		s.bary[0] = 1
		return c
	}

	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		w := d2 / (d2 - d6)
		s.verts[1] = s.verts[2]
		s.count = 2
		s.bary[0] = 1 - w
		s.bary[1] = w
		return a.Add(ac.Mul(w))
	}

	va := d3*d6 - d5*d4
	if va <= 0 && d4-d3 >= 0 && d5-d6 >= 0 {
		w := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		s.verts[0] = s.verts[1]
		s.verts[1] = s.verts[2]
		s.count = 2
		s.bary[0] = 1 - w
		s.bary[1] = w
		return b.Add(c.Sub(b).Mul(w))
	}

	denom := 1.0 / (va + vb + vc)
	v := vb * denom
	w := vc * denom
	s.count = 3
	s.bary[0] = 1 - v - w
	s.bary[1] = v
	s.bary[2] = w
	return a.Add(ab.Mul(v)).Add(ac.Mul(w))
}

func (s *simplex) solveTetrahedron() (mgl64.Vec3, bool) {
	a := s.verts[0].p
	b := s.verts[1].p
	c := s.verts[2].p
	d := s.verts[3].p

	// Signed-volume tests against each face.
	outsideABC := pointOutsidePlane(a, b, c, d)
	outsideACD := pointOutsidePlane(a, c, d, b)
	outsideADB := pointOutsidePlane(a, d, b, c)
	outsideBDC := pointOutsidePlane(b, d, c, a)

	if !outsideABC && !outsideACD && !outsideADB && !outsideBDC {
		return mgl64.Vec3{}, true
	}

	// Walk the faces the origin is outside of and keep the closest.
	bestDist := -1.0
	var bestSimplex simplex
	var bestPoint mgl64.Vec3

	try := func(i, j, k int) {
		var sub simplex
		sub.verts[0] = s.verts[i]
		sub.verts[1] = s.verts[j]
		sub.verts[2] = s.verts[k]
		sub.count = 3
		p := sub.solveTriangle()
		d := p.Dot(p)
		if bestDist < 0 || d < bestDist {
			bestDist = d
			bestSimplex = sub
			bestPoint = p
		}
	}

	if outsideABC {
		try(0, 1, 2)
	}
	if outsideACD {
		try(0, 2, 3)
	}
	if outsideADB {
		try(0, 3, 1)
	}
	if outsideBDC {
		try(1, 3, 2)
	}

	*s = bestSimplex
	return bestPoint, false
}

// pointOutsidePlane reports whether the origin lies on the opposite
// side of the plane abc from the reference point ref.
func pointOutsidePlane(a, b, c, ref mgl64.Vec3) bool {
	n := b.Sub(a).Cross(c.Sub(a))
	signRef := n.Dot(ref.Sub(a))
	signOrigin := n.Dot(a.Mul(-1))
	if signRef*signRef < 1e-24 {
		// Degenerate tetrahedron: treat as outside so the triangle
		// path resolves it.
		return true
	}
	return signOrigin*signRef < 0
}
