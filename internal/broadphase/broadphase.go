package broadphase

import (
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/veloxphys/velox/internal/arena"
	"github.com/veloxphys/velox/internal/geom"
)

// Pair is a candidate overlap between two colliders, ordered so that
// A < B by handle.
type Pair struct {
	A arena.Handle
	B arena.Handle
}

// BroadPhase tracks collider AABBs and produces the deduplicated,
// deterministically ordered candidate pair set.
type BroadPhase struct {
	tree    *tree
	proxies map[arena.Handle]int
	handles []arena.Handle // slot index -> handle, mirrors tree data
	moved   map[arena.Handle]bool
}

func New() *BroadPhase {
	return &BroadPhase{
		tree:    newTree(),
		proxies: make(map[arena.Handle]int),
		moved:   make(map[arena.Handle]bool),
	}
}

func (bp *BroadPhase) Len() int {
	return len(bp.proxies)
}

// Insert starts tracking a collider. New proxies are treated as moved
// so they get paired on the next update.
func (bp *BroadPhase) Insert(h arena.Handle, box geom.AABB) {
	slot := int32(len(bp.handles))
	bp.handles = append(bp.handles, h)
	bp.proxies[h] = bp.tree.createLeaf(box, slot)
	bp.moved[h] = true
}

// Remove stops tracking a collider. Unknown handles are ignored.
func (bp *BroadPhase) Remove(h arena.Handle) {
	id, ok := bp.proxies[h]
	if !ok {
		return
	}
	bp.handles[bp.tree.nodes[id].data] = arena.Nil
	bp.tree.destroyLeaf(id)
	delete(bp.proxies, h)
	delete(bp.moved, h)
}

// Update refreshes a collider's box, expanding the stored bounds by
// the predicted displacement. Colliders whose fat box still contains
// the new bounds are left in place.
func (bp *BroadPhase) Update(h arena.Handle, box geom.AABB, displacement mgl64.Vec3) {
	id, ok := bp.proxies[h]
	if !ok {
		return
	}
	if bp.tree.moveLeaf(id, box, displacement) {
		bp.moved[h] = true
	}
}

// Touch forces a collider to be re-paired on the next Pairs call even
// if its bounds did not change.
func (bp *BroadPhase) Touch(h arena.Handle) {
	if _, ok := bp.proxies[h]; ok {
		bp.moved[h] = true
	}
}

// Pairs returns every candidate pair involving a collider moved since
// the previous call, sorted by handle so downstream processing is
// reproducible. The moved set is cleared.
func (bp *BroadPhase) Pairs() []Pair {
	if len(bp.moved) == 0 {
		return nil
	}

	movedList := make([]arena.Handle, 0, len(bp.moved))
	for h := range bp.moved {
		movedList = append(movedList, h)
	}
	sort.Slice(movedList, func(i, j int) bool { return movedList[i].Less(movedList[j]) })

	seen := make(map[Pair]bool)
	var pairs []Pair
	for _, h := range movedList {
		id, ok := bp.proxies[h]
		if !ok {
			continue
		}
		fat := bp.tree.nodes[id].box
		bp.tree.query(fat, func(otherID int, data int32) bool {
			if otherID == id {
				return true
			}
			other := bp.handles[data]
			if other.IsNil() {
				return true
			}
			// When both proxies moved, keep the pair only once.
			if bp.moved[other] && other.Less(h) {
				return true
			}
			p := makePair(h, other)
			if !seen[p] {
				seen[p] = true
				pairs = append(pairs, p)
			}
			return true
		})
	}

	bp.moved = make(map[arena.Handle]bool)

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].A != pairs[j].A {
			return pairs[i].A.Less(pairs[j].A)
		}
		return pairs[i].B.Less(pairs[j].B)
	})
	return pairs
}

// Overlaps reports whether the fat boxes of two tracked colliders
// still overlap. Manifolds are dropped when this turns false.
func (bp *BroadPhase) Overlaps(a, b arena.Handle) bool {
	ia, ok := bp.proxies[a]
	if !ok {
		return false
	}
	ib, ok := bp.proxies[b]
	if !ok {
		return false
	}
	return bp.tree.nodes[ia].box.Overlaps(bp.tree.nodes[ib].box)
}

// QueryAABB calls fn for every tracked collider whose fat box overlaps
// box.
func (bp *BroadPhase) QueryAABB(box geom.AABB, fn func(arena.Handle) bool) {
	bp.tree.query(box, func(_ int, data int32) bool {
		h := bp.handles[data]
		if h.IsNil() {
			return true
		}
		return fn(h)
	})
}

// QueryRay calls fn for every tracked collider whose fat box the ray
// passes through. fn returns a new clip fraction (or a negative value
// to leave it unchanged); returning 0 stops the query.
func (bp *BroadPhase) QueryRay(ray geom.Ray, fn func(arena.Handle, float64) float64) {
	bp.tree.rayQuery(ray, func(data int32, maxT float64) float64 {
		h := bp.handles[data]
		if h.IsNil() {
			return -1
		}
		return fn(h, maxT)
	})
}

func makePair(a, b arena.Handle) Pair {
	if b.Less(a) {
		a, b = b, a
	}
	return Pair{A: a, B: b}
}
