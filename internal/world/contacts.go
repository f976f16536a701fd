package world

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/veloxphys/velox/internal/arena"
)

// ManifoldPoint is a read-only view of one persistent contact point,
// including the accumulated impulses the solver warm-starts from.
type ManifoldPoint struct {
	ID             uint32
	Position       mgl64.Vec3
	Penetration    float64
	NormalImpulse  float64
	TangentImpulse [2]float64
}

// ManifoldState is a read-only view of one contact manifold.
type ManifoldState struct {
	BodyA     arena.Handle
	BodyB     arena.Handle
	ColliderA arena.Handle
	ColliderB arena.Handle

	// Normal points from A to B in world space.
	Normal      mgl64.Vec3
	Friction    float64
	Restitution float64
	Contacting  bool
	Points      []ManifoldPoint
}

// Manifolds returns a snapshot of every persistent contact manifold in
// deterministic collider-pair order.
func (w *World) Manifolds() []ManifoldState {
	keys := w.sortedManifoldKeys()
	out := make([]ManifoldState, 0, len(keys))
	for _, key := range keys {
		m := w.manifolds[key]
		st := ManifoldState{
			BodyA:       m.BodyA,
			BodyB:       m.BodyB,
			ColliderA:   m.ColliderA,
			ColliderB:   m.ColliderB,
			Normal:      m.Normal,
			Friction:    m.Friction,
			Restitution: m.Restitution,
			Contacting:  m.Contacting,
			Points:      make([]ManifoldPoint, len(m.Points)),
		}
		for i := range m.Points {
			p := &m.Points[i]
			st.Points[i] = ManifoldPoint{
				ID:             p.ID,
				Position:       p.Position,
				Penetration:    p.Penetration,
				NormalImpulse:  p.NormalImpulse,
				TangentImpulse: p.TangentImpulse,
			}
		}
		out = append(out, st)
	}
	return out
}

// TouchingContacts counts manifolds with at least one actual contact
// point.
func (w *World) TouchingContacts() int {
	n := 0
	for _, m := range w.manifolds {
		if m.Touching() {
			n++
		}
	}
	return n
}

// MaxPenetration returns the deepest overlap across all current
// contact points. Speculative points count as zero.
func (w *World) MaxPenetration() float64 {
	max := 0.0
	for _, m := range w.manifolds {
		for i := range m.Points {
			if p := m.Points[i].Penetration; p > max {
				max = p
			}
		}
	}
	return max
}
