package collide

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/veloxphys/velox/internal/geom"
	"github.com/veloxphys/velox/internal/shape"
)

const (
	epaMaxIterations = 48
	epaTolerance     = 1e-4
)

type epaFace struct {
	v0, v1, v2 int
	normal     mgl64.Vec3
	dist       float64
}

// Penetration computes the minimum translation normal (from A to B)
// and depth for two overlapping convex shapes, expanding the polytope
// seeded by the GJK simplex. Sub-tetrahedron seeds from touching
// contacts are blown up into a full tetrahedron first; only seeds that
// cannot span a volume (effectively coincident shapes) fall back to a
// center-difference estimate.
func Penetration(sa shape.Shape, xfA geom.Transform, sb shape.Shape, xfB geom.Transform, seed simplex) (mgl64.Vec3, float64) {
	if seed.count < 4 && !blowUpSimplex(sa, xfA, sb, xfB, &seed) {
		return degeneratePenetration(xfA, xfB)
	}

	verts := make([]mgl64.Vec3, 0, 16)
	for i := 0; i < 4; i++ {
		verts = append(verts, seed.verts[i].p)
	}

	faces := make([]epaFace, 0, 32)
	for _, idx := range [4][3]int{{0, 1, 2}, {0, 2, 3}, {0, 3, 1}, {1, 3, 2}} {
		f, ok := makeFace(verts, idx[0], idx[1], idx[2])
		if !ok {
			return degeneratePenetration(xfA, xfB)
		}
		faces = append(faces, f)
	}

	for iter := 0; iter < epaMaxIterations; iter++ {
		best := closestFace(faces)
		if best < 0 {
			break
		}
		f := faces[best]

		w := minkowskiSupport(sa, xfA, sb, xfB, f.normal)
		grow := w.p.Dot(f.normal) - f.dist
		if grow < epaTolerance {
			return f.normal, f.dist
		}

		verts = append(verts, w.p)
		faces = expand(faces, verts, len(verts)-1)
		if len(faces) == 0 {
			return f.normal, f.dist
		}
	}

	best := closestFace(faces)
	if best >= 0 {
		return faces[best].normal, faces[best].dist
	}
	return degeneratePenetration(xfA, xfB)
}

// blowUpSimplex grows a point, segment, or triangle seed into a
// tetrahedron using further support samples. Reports failure when the
// support mapping cannot supply any spread in some direction, which
// happens only for effectively coincident shapes.
func blowUpSimplex(sa shape.Shape, xfA geom.Transform, sb shape.Shape, xfB geom.Transform, s *simplex) bool {
	const eps = 1e-10

	if s.count == 1 {
		dirs := []mgl64.Vec3{
			{1, 0, 0}, {-1, 0, 0}, {0, 1, 0}, {0, -1, 0}, {0, 0, 1}, {0, 0, -1},
		}
		for _, dir := range dirs {
			w := minkowskiSupport(sa, xfA, sb, xfB, dir)
			d := w.p.Sub(s.verts[0].p)
			if d.Dot(d) > eps {
				s.verts[1] = w
				s.count = 2
				break
			}
		}
		if s.count < 2 {
			return false
		}
	}

	if s.count == 2 {
		e := s.verts[1].p.Sub(s.verts[0].p)
		axis := mgl64.Vec3{1, 0, 0}
		ax, ay, az := math.Abs(e.X()), math.Abs(e.Y()), math.Abs(e.Z())
		if ay <= ax && ay <= az {
			axis = mgl64.Vec3{0, 1, 0}
		} else if az <= ax && az <= ay {
			axis = mgl64.Vec3{0, 0, 1}
		}
		perp := e.Cross(axis)
		for _, dir := range []mgl64.Vec3{perp, perp.Mul(-1), e.Cross(perp), perp.Cross(e)} {
			w := minkowskiSupport(sa, xfA, sb, xfB, dir)
			area := e.Cross(w.p.Sub(s.verts[0].p))
			if area.Dot(area) > eps {
				s.verts[2] = w
				s.count = 3
				break
			}
		}
		if s.count < 3 {
			return false
		}
	}

	n := s.verts[1].p.Sub(s.verts[0].p).Cross(s.verts[2].p.Sub(s.verts[0].p))
	for _, dir := range []mgl64.Vec3{n, n.Mul(-1)} {
		w := minkowskiSupport(sa, xfA, sb, xfB, dir)
		if math.Abs(w.p.Sub(s.verts[0].p).Dot(n)) > eps*n.Len() {
			s.verts[3] = w
			s.count = 4
			return true
		}
	}
	return false
}

func degeneratePenetration(xfA, xfB geom.Transform) (mgl64.Vec3, float64) {
	n := xfB.Position.Sub(xfA.Position)
	if n.Len() < 1e-9 {
		n = mgl64.Vec3{0, 1, 0}
	} else {
		n = n.Normalize()
	}
	return n, 1e-3
}

// makeFace builds a face with its normal oriented away from the
// origin. Degenerate (near-zero area) faces are rejected.
func makeFace(verts []mgl64.Vec3, i0, i1, i2 int) (epaFace, bool) {
	a, b, c := verts[i0], verts[i1], verts[i2]
	n := b.Sub(a).Cross(c.Sub(a))
	if n.Dot(n) < 1e-20 {
		return epaFace{}, false
	}
	n = n.Normalize()
	d := n.Dot(a)
	if d < 0 {
		n = n.Mul(-1)
		d = -d
		i1, i2 = i2, i1
	}
	return epaFace{v0: i0, v1: i1, v2: i2, normal: n, dist: d}, true
}

func closestFace(faces []epaFace) int {
	best := -1
	bestDist := math.Inf(1)
	for i := range faces {
		if faces[i].dist < bestDist {
			bestDist = faces[i].dist
			best = i
		}
	}
	return best
}

type epaEdge struct {
	a, b int
}

// expand removes every face visible from the new vertex and stitches
// the horizon with fresh faces containing it.
func expand(faces []epaFace, verts []mgl64.Vec3, newIdx int) []epaFace {
	w := verts[newIdx]

	// Horizon edges kept in a slice, not a map, so face order (and
	// with it any tie-breaking downstream) is reproducible.
	var edges []epaEdge
	addEdge := func(a, b int) {
		// A shared edge appears once in each winding direction.
		for i, e := range edges {
			if e.a == b && e.b == a {
				edges = append(edges[:i], edges[i+1:]...)
				return
			}
		}
		edges = append(edges, epaEdge{a, b})
	}

	kept := faces[:0]
	for _, f := range faces {
		if f.normal.Dot(w.Sub(verts[f.v0])) > 1e-12 {
			addEdge(f.v0, f.v1)
			addEdge(f.v1, f.v2)
			addEdge(f.v2, f.v0)
		} else {
			kept = append(kept, f)
		}
	}

	for _, e := range edges {
		if f, ok := makeFace(verts, e.a, e.b, newIdx); ok {
			kept = append(kept, f)
		}
	}
	return kept
}
