package world

import (
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/veloxphys/velox/internal/arena"
	"github.com/veloxphys/velox/internal/ccd"
	"github.com/veloxphys/velox/internal/collide"
	"github.com/veloxphys/velox/internal/geom"
	"github.com/veloxphys/velox/internal/shape"
)

// RayHit describes the closest collider intersected by a ray cast.
type RayHit struct {
	Collider arena.Handle
	Body     arena.Handle
	T        float64
	Point    mgl64.Vec3
	Normal   mgl64.Vec3
}

// SweepHit describes the earliest collider struck by a shape cast.
type SweepHit struct {
	Collider arena.Handle
	Body     arena.Handle
	// T is the normalized fraction of the translation at impact.
	T      float64
	Point  mgl64.Vec3
	Normal mgl64.Vec3
}

// RayCast returns the closest collider hit along the ray, or false
// when nothing within ray.MaxT matches the filter.
func (w *World) RayCast(ray geom.Ray, filter func(arena.Handle) bool) (RayHit, bool) {
	var best RayHit
	found := false

	w.bp.QueryRay(ray, func(ch arena.Handle, maxT float64) float64 {
		c := w.colliders.Get(ch)
		if c == nil || (filter != nil && !filter(ch)) {
			return -1
		}
		b := w.bodies.Get(c.Body)
		if b == nil {
			return -1
		}
		clipped := ray
		clipped.MaxT = maxT
		hit, ok := c.Shape.RayIntersect(c.WorldTransform(b.Transform), clipped)
		if !ok {
			return -1
		}
		best = RayHit{
			Collider: ch,
			Body:     c.Body,
			T:        hit.T,
			Point:    hit.Point,
			Normal:   hit.Normal,
		}
		found = true
		return hit.T
	})
	return best, found
}

// OverlapAABB returns the colliders whose exact bounds intersect box,
// sorted by handle.
func (w *World) OverlapAABB(box geom.AABB) []arena.Handle {
	var out []arena.Handle
	w.bp.QueryAABB(box, func(ch arena.Handle) bool {
		c := w.colliders.Get(ch)
		if c == nil {
			return true
		}
		b := w.bodies.Get(c.Body)
		if b == nil {
			return true
		}
		// The tree stores fattened bounds, so recheck the tight box.
		if c.Shape.AABB(c.WorldTransform(b.Transform)).Overlaps(box) {
			out = append(out, ch)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// OverlapShape returns the colliders whose shapes intersect the given
// shape at the given pose, sorted by handle.
func (w *World) OverlapShape(s shape.Shape, at geom.Transform) []arena.Handle {
	var out []arena.Handle
	w.bp.QueryAABB(s.AABB(at), func(ch arena.Handle) bool {
		c := w.colliders.Get(ch)
		if c == nil {
			return true
		}
		b := w.bodies.Get(c.Body)
		if b == nil {
			return true
		}
		res := collide.Collide(s, at, c.Shape, c.WorldTransform(b.Transform), 0)
		for _, cand := range res.Candidates {
			if cand.Penetration >= 0 {
				out = append(out, ch)
				break
			}
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// ShapeCast sweeps a shape from a pose along a translation and
// returns the earliest hit among tracked colliders. The optional
// filter can exclude colliders, for instance those of the casting
// body.
func (w *World) ShapeCast(s shape.Shape, from geom.Transform, translation mgl64.Vec3, filter func(arena.Handle) bool) (SweepHit, bool) {
	start := s.AABB(from)
	end := s.AABB(geom.Transform{
		Position:    from.Position.Add(translation),
		Orientation: from.Orientation,
	})
	swept := start.Union(end)

	var candidates []arena.Handle
	w.bp.QueryAABB(swept, func(ch arena.Handle) bool {
		if filter == nil || filter(ch) {
			candidates = append(candidates, ch)
		}
		return true
	})
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Less(candidates[j]) })

	var best SweepHit
	found := false
	for _, ch := range candidates {
		c := w.colliders.Get(ch)
		if c == nil {
			continue
		}
		b := w.bodies.Get(c.Body)
		if b == nil {
			continue
		}
		res := ccd.ShapeCast(s, from, translation, c.Shape, c.WorldTransform(b.Transform), w.cfg.AllowedLinearError)
		if !res.Hit {
			continue
		}
		if !found || res.T < best.T {
			best = SweepHit{
				Collider: ch,
				Body:     c.Body,
				T:        res.T,
				Point:    res.Point,
				Normal:   res.Normal,
			}
			found = true
		}
	}
	return best, found
}
