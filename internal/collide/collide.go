package collide

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/veloxphys/velox/internal/geom"
	"github.com/veloxphys/velox/internal/mathx"
	"github.com/veloxphys/velox/internal/shape"
)

// Result is a fresh contact between two shapes: a shared normal
// (pointing from A to B) and up to four candidate points. Candidates
// with negative penetration are speculative, within the prediction
// margin but not yet touching.
type Result struct {
	Normal     mgl64.Vec3
	Candidates []Candidate
}

// Collide computes contact geometry for a shape pair. prediction is
// the speculative margin: pairs separated by more than it produce no
// contact.
func Collide(sa shape.Shape, xfA geom.Transform, sb shape.Shape, xfB geom.Transform, prediction float64) Result {
	// Compounds decompose into their convex children; the deepest
	// child pair wins since a manifold carries a single normal.
	if sa.Kind() == shape.KindCompound || sb.Kind() == shape.KindCompound {
		return collideCompound(sa, xfA, sb, xfB, prediction)
	}

	// Canonical kind order keeps the pair matrix triangular.
	if sb.Kind() < sa.Kind() {
		r := Collide(sb, xfB, sa, xfA, prediction)
		r.Normal = r.Normal.Mul(-1)
		return r
	}

	switch {
	case sa.Kind() == shape.KindSphere && sb.Kind() == shape.KindSphere:
		return collideSpheres(xfA.Position, sa.Radius(), xfB.Position, sb.Radius(), prediction)
	case sa.Kind() == shape.KindSphere && sb.Kind() == shape.KindBox:
		return collideSphereBox(sa, xfA, sb, xfB, prediction)
	case sa.Kind() == shape.KindSphere && sb.Kind() == shape.KindCapsule:
		a, b := capsuleSegment(sb, xfB)
		q := closestOnSegment(xfA.Position, a, b)
		return collideSpheres(xfA.Position, sa.Radius(), q, sb.Radius(), prediction)
	case sa.Kind() == shape.KindCapsule && sb.Kind() == shape.KindCapsule:
		a1, b1 := capsuleSegment(sa, xfA)
		a2, b2 := capsuleSegment(sb, xfB)
		p, q := closestSegmentSegment(a1, b1, a2, b2)
		return collideSpheres(p, sa.Radius(), q, sb.Radius(), prediction)
	default:
		return collideConvex(sa, xfA, sb, xfB, prediction)
	}
}

func collideCompound(sa shape.Shape, xfA geom.Transform, sb shape.Shape, xfB geom.Transform, prediction float64) Result {
	childrenA := []shape.Child{{Shape: sa, Transform: geom.Identity()}}
	if sa.Kind() == shape.KindCompound {
		childrenA = sa.Children()
	}
	childrenB := []shape.Child{{Shape: sb, Transform: geom.Identity()}}
	if sb.Kind() == shape.KindCompound {
		childrenB = sb.Children()
	}

	var best Result
	bestDepth := math.Inf(-1)
	for _, ca := range childrenA {
		for _, cb := range childrenB {
			r := Collide(ca.Shape, xfA.Mul(ca.Transform), cb.Shape, xfB.Mul(cb.Transform), prediction)
			if len(r.Candidates) == 0 {
				continue
			}
			depth := math.Inf(-1)
			for _, c := range r.Candidates {
				depth = math.Max(depth, c.Penetration)
			}
			if depth > bestDepth {
				bestDepth = depth
				best = r
			}
		}
	}
	return best
}

// collideSpheres is the shared sphere-sphere core; capsules reduce to
// it via closest points on their segments.
func collideSpheres(pa mgl64.Vec3, ra float64, pb mgl64.Vec3, rb float64, prediction float64) Result {
	d := pb.Sub(pa)
	dist := d.Len()

	var normal mgl64.Vec3
	if dist > 1e-9 {
		normal = d.Mul(1 / dist)
	} else {
		normal = mgl64.Vec3{0, 1, 0}
	}

	pen := ra + rb - dist
	if pen < -prediction {
		return Result{}
	}

	surfaceA := pa.Add(normal.Mul(ra))
	pos := surfaceA.Sub(normal.Mul(pen / 2))
	return Result{
		Normal:     normal,
		Candidates: []Candidate{{Position: pos, Penetration: pen}},
	}
}

func collideSphereBox(sa shape.Shape, xfA geom.Transform, sb shape.Shape, xfB geom.Transform, prediction float64) Result {
	he := sb.HalfExtents()
	local := xfB.ApplyInverse(xfA.Position)

	clamped := mgl64.Vec3{
		mathx.Clamp(local.X(), -he.X(), he.X()),
		mathx.Clamp(local.Y(), -he.Y(), he.Y()),
		mathx.Clamp(local.Z(), -he.Z(), he.Z()),
	}

	inside := clamped == local
	if inside {
		// Center inside the box: push out through the nearest face.
		minGap := math.Inf(1)
		axis, sign := 0, 1.0
		for i := 0; i < 3; i++ {
			for _, s := range []float64{1, -1} {
				gap := he[i] - s*local[i]
				if gap < minGap {
					minGap = gap
					axis, sign = i, s
				}
			}
		}
		clamped[axis] = sign * he[axis]
	}

	q := xfB.Apply(clamped)
	delta := xfA.Position.Sub(q)
	dist := delta.Len()

	var normal mgl64.Vec3 // sphere -> box
	var pen float64
	if inside {
		if dist > 1e-9 {
			normal = delta.Mul(1 / dist)
		} else {
			normal = mgl64.Vec3{0, 1, 0}
		}
		pen = sa.Radius() + dist
	} else {
		if dist > 1e-9 {
			normal = delta.Mul(-1 / dist)
		} else {
			normal = mgl64.Vec3{0, -1, 0}
		}
		pen = sa.Radius() - dist
	}

	if pen < -prediction {
		return Result{}
	}
	pos := q.Add(normal.Mul(pen / 2))
	return Result{
		Normal:     normal,
		Candidates: []Candidate{{Position: pos, Penetration: pen}},
	}
}

// collideConvex is the general convex-convex path: GJK distance for
// separated and speculative contacts, EPA plus reference-face clipping
// for overlapping pairs.
func collideConvex(sa shape.Shape, xfA geom.Transform, sb shape.Shape, xfB geom.Transform, prediction float64) Result {
	res := Distance(sa, xfA, sb, xfB)

	if !res.Overlapping {
		if res.Distance > prediction {
			return Result{}
		}
		normal := res.PointB.Sub(res.PointA)
		if normal.Len() < 1e-9 {
			normal = mgl64.Vec3{0, 1, 0}
		} else {
			normal = normal.Normalize()
		}
		mid := res.PointA.Add(res.PointB).Mul(0.5)
		return Result{
			Normal:     normal,
			Candidates: []Candidate{{Position: mid, Penetration: -res.Distance}},
		}
	}

	normal, depth := Penetration(sa, xfA, sb, xfB, res.simplex)
	candidates := clipFeatures(sa, xfA, sb, xfB, normal, depth, prediction)
	return Result{Normal: normal, Candidates: candidates}
}

// clipFeatures builds a multi-point manifold by clipping the incident
// contact feature against the reference feature's side planes
// (Sutherland-Hodgman), keeping points within the prediction margin.
func clipFeatures(sa shape.Shape, xfA geom.Transform, sb shape.Shape, xfB geom.Transform, normal mgl64.Vec3, depth, prediction float64) []Candidate {
	featA := sa.ContactFeature(xfA.RotateVecInverse(normal))
	featureA := make([]mgl64.Vec3, len(featA))
	for i, p := range featA {
		featureA[i] = xfA.Apply(p)
	}
	featB := sb.ContactFeature(xfB.RotateVecInverse(normal.Mul(-1)))
	featureB := make([]mgl64.Vec3, len(featB))
	for i, p := range featB {
		featureB[i] = xfB.Apply(p)
	}

	// Reference is the feature with more vertices; incident gets
	// clipped against it.
	incident, reference := featureA, featureB
	refOutward := normal.Mul(-1) // outward from reference (B) toward A
	if len(featureB) <= len(featureA) {
		incident, reference = featureB, featureA
		refOutward = normal
	}

	if len(incident) == 1 {
		return []Candidate{{Position: incident[0], Penetration: depth}}
	}
	if len(reference) < 3 {
		// Edge-edge: clip incident segment onto the reference segment
		// span, then fall back to the midpoint.
		p, q := closestSegmentSegment(incident[0], incident[len(incident)-1], reference[0], reference[len(reference)-1])
		return []Candidate{{Position: p.Add(q).Mul(0.5), Penetration: depth}}
	}

	clipped := clipPolygon(incident, reference, normal)
	if len(clipped) == 0 {
		return []Candidate{{Position: incident[0], Penetration: depth}}
	}

	// Measure per-point separation against the reference plane.
	refNormal := reference[1].Sub(reference[0]).Cross(reference[2].Sub(reference[0]))
	if refNormal.Len() < 1e-12 {
		refNormal = refOutward
	} else {
		refNormal = refNormal.Normalize()
		if refNormal.Dot(refOutward) < 0 {
			refNormal = refNormal.Mul(-1)
		}
	}
	offset := reference[0].Dot(refNormal)

	var out []Candidate
	for _, p := range clipped {
		gap := p.Dot(refNormal) - offset
		pen := -gap
		if pen < -prediction {
			continue
		}
		out = append(out, Candidate{
			Position:    p.Sub(refNormal.Mul(gap / 2)),
			Penetration: pen,
		})
	}
	if len(out) == 0 {
		return []Candidate{{Position: incident[0], Penetration: depth}}
	}
	if len(out) > 4 {
		out = reduceCandidates(out, normal)
	}
	return out
}

// clipPolygon clips the incident polygon against the side planes of
// the reference polygon.
func clipPolygon(incident, reference []mgl64.Vec3, normal mgl64.Vec3) []mgl64.Vec3 {
	center := polygonCenter(reference)
	current := incident

	for i := 0; i < len(reference) && len(current) > 0; i++ {
		v1 := reference[i]
		v2 := reference[(i+1)%len(reference)]

		edge := v2.Sub(v1)
		clipNormal := edge.Cross(normal)
		if clipNormal.Len() < 1e-12 {
			continue
		}
		clipNormal = clipNormal.Normalize()
		if center.Sub(v1).Dot(clipNormal) < 0 {
			clipNormal = clipNormal.Mul(-1)
		}

		current = clipAgainstPlane(current, v1, clipNormal)
	}
	return current
}

func clipAgainstPlane(polygon []mgl64.Vec3, planePoint, planeNormal mgl64.Vec3) []mgl64.Vec3 {
	if len(polygon) == 0 {
		return nil
	}
	const tol = 1e-9

	out := make([]mgl64.Vec3, 0, len(polygon)+1)
	prev := polygon[len(polygon)-1]
	prevDist := prev.Sub(planePoint).Dot(planeNormal)

	for _, cur := range polygon {
		curDist := cur.Sub(planePoint).Dot(planeNormal)

		switch {
		case curDist >= -tol && prevDist >= -tol:
			out = append(out, cur)
		case curDist >= -tol:
			out = append(out, intersectPlane(prev, cur, prevDist, curDist), cur)
		case prevDist >= -tol:
			out = append(out, intersectPlane(prev, cur, prevDist, curDist))
		}
		prev, prevDist = cur, curDist
	}
	return out
}

func intersectPlane(p1, p2 mgl64.Vec3, d1, d2 float64) mgl64.Vec3 {
	t := d1 / (d1 - d2)
	return p1.Add(p2.Sub(p1).Mul(mathx.Clamp(t, 0, 1)))
}

func polygonCenter(points []mgl64.Vec3) mgl64.Vec3 {
	var sum mgl64.Vec3
	for _, p := range points {
		sum = sum.Add(p)
	}
	return sum.Mul(1 / float64(len(points)))
}

// reduceCandidates keeps the four extreme points in the contact
// tangent plane, preserving the support footprint of the manifold.
func reduceCandidates(points []Candidate, normal mgl64.Vec3) []Candidate {
	t1, t2 := mathx.TangentBasis(normal)

	minX, maxX, minY, maxY := 0, 0, 0, 0
	minXv, maxXv := math.Inf(1), math.Inf(-1)
	minYv, maxYv := math.Inf(1), math.Inf(-1)
	for i, p := range points {
		x := p.Position.Dot(t1)
		y := p.Position.Dot(t2)
		if x < minXv {
			minXv, minX = x, i
		}
		if x > maxXv {
			maxXv, maxX = x, i
		}
		if y < minYv {
			minYv, minY = y, i
		}
		if y > maxYv {
			maxYv, maxY = y, i
		}
	}

	picked := []int{minX}
	for _, idx := range []int{maxX, minY, maxY} {
		dup := false
		for _, p := range picked {
			if p == idx {
				dup = true
				break
			}
		}
		if !dup {
			picked = append(picked, idx)
		}
	}

	out := make([]Candidate, 0, 4)
	for _, idx := range picked {
		out = append(out, points[idx])
	}
	return out
}

func capsuleSegment(s shape.Shape, xf geom.Transform) (mgl64.Vec3, mgl64.Vec3) {
	return xf.Apply(mgl64.Vec3{0, s.HalfHeight(), 0}), xf.Apply(mgl64.Vec3{0, -s.HalfHeight(), 0})
}

func closestOnSegment(p, a, b mgl64.Vec3) mgl64.Vec3 {
	ab := b.Sub(a)
	denom := ab.Dot(ab)
	if denom < 1e-12 {
		return a
	}
	t := mathx.Clamp(p.Sub(a).Dot(ab)/denom, 0, 1)
	return a.Add(ab.Mul(t))
}

// closestSegmentSegment returns the closest points between segments
// [p1,q1] and [p2,q2].
func closestSegmentSegment(p1, q1, p2, q2 mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	d1 := q1.Sub(p1)
	d2 := q2.Sub(p2)
	r := p1.Sub(p2)

	a := d1.Dot(d1)
	e := d2.Dot(d2)
	f := d2.Dot(r)

	var s, t float64
	switch {
	case a < 1e-12 && e < 1e-12:
		return p1, p2
	case a < 1e-12:
		t = mathx.Clamp(f/e, 0, 1)
	case e < 1e-12:
		s = mathx.Clamp(-d1.Dot(r)/a, 0, 1)
	default:
		c := d1.Dot(r)
		b := d1.Dot(d2)
		denom := a*e - b*b
		if denom > 1e-12 {
			s = mathx.Clamp((b*f-c*e)/denom, 0, 1)
		}
		t = (b*s + f) / e
		if t < 0 {
			t = 0
			s = mathx.Clamp(-c/a, 0, 1)
		} else if t > 1 {
			t = 1
			s = mathx.Clamp((b-c)/a, 0, 1)
		}
	}
	return p1.Add(d1.Mul(s)), p2.Add(d2.Mul(t))
}
