// Package collide implements the narrow phase: exact contact geometry
// for candidate collider pairs, persistent contact manifolds with
// stable point identity, and the GJK/EPA machinery behind convex pair
// queries and speculative contacts.
package collide

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/veloxphys/velox/internal/arena"
)

// matchTolerance bounds how far (in body-local space of A) a contact
// point may drift between steps and still be considered the same
// point. Beyond it the point is new and warm-start impulses reset.
const matchTolerance = 0.08

// Point is one persistent contact point of a manifold.
type Point struct {
	// ID is stable while geometric correspondence holds across steps.
	ID uint32

	// Position is the world-space contact position.
	Position mgl64.Vec3

	// Penetration is positive when overlapping. Speculative contacts
	// within the prediction margin carry a negative value (the
	// separation) so the solver can stop them one step ahead.
	Penetration float64

	// LocalA is the contact position in collider A's body frame, used
	// for cross-step matching.
	LocalA mgl64.Vec3

	// Accumulated impulses for warm-starting.
	NormalImpulse  float64
	TangentImpulse [2]float64
}

// Manifold is the persistent contact state of one collider pair.
// It exists only while the pair's fat AABBs overlap.
type Manifold struct {
	ColliderA arena.Handle
	ColliderB arena.Handle
	BodyA     arena.Handle
	BodyB     arena.Handle

	// Normal points from A to B in world space.
	Normal mgl64.Vec3

	Points []Point

	Friction    float64
	Restitution float64

	// Contacting is the event state of the pair: true between the
	// ContactBegin and ContactEnd the world has emitted for it. The
	// world maintains it; collision code never touches it.
	Contacting bool

	nextID uint32
}

// Touching reports whether any point actually overlaps (speculative
// points do not count).
func (m *Manifold) Touching() bool {
	for i := range m.Points {
		if m.Points[i].Penetration >= 0 {
			return true
		}
	}
	return false
}

// Candidate is a freshly generated contact point before matching.
type Candidate struct {
	Position    mgl64.Vec3
	Penetration float64
}

// Update replaces the manifold's points with fresh candidates,
// carrying accumulated impulses over to candidates that correspond to
// a previous point. Correspondence is nearest-neighbour in A's body
// frame within matchTolerance; unmatched candidates start cold.
func (m *Manifold) Update(normal mgl64.Vec3, candidates []Candidate, invA func(mgl64.Vec3) mgl64.Vec3) {
	m.Normal = normal

	old := m.Points
	next := make([]Point, 0, len(candidates))
	claimed := make([]bool, len(old))

	for _, c := range candidates {
		local := invA(c.Position)
		p := Point{
			Position:    c.Position,
			Penetration: c.Penetration,
			LocalA:      local,
		}

		bestIdx := -1
		bestDist := matchTolerance * matchTolerance
		for i := range old {
			if claimed[i] {
				continue
			}
			d := old[i].LocalA.Sub(local).Dot(old[i].LocalA.Sub(local))
			if d < bestDist {
				bestDist = d
				bestIdx = i
			}
		}

		if bestIdx >= 0 {
			claimed[bestIdx] = true
			p.ID = old[bestIdx].ID
			p.NormalImpulse = old[bestIdx].NormalImpulse
			p.TangentImpulse = old[bestIdx].TangentImpulse
		} else {
			p.ID = m.nextID
			m.nextID++
		}
		next = append(next, p)
	}

	m.Points = next
}

// Key orders a collider pair canonically for manifold lookup.
type Key struct {
	A arena.Handle
	B arena.Handle
}

func MakeKey(a, b arena.Handle) Key {
	if b.Less(a) {
		a, b = b, a
	}
	return Key{A: a, B: b}
}

func (k Key) Less(other Key) bool {
	if k.A != other.A {
		return k.A.Less(other.A)
	}
	return k.B.Less(other.B)
}
