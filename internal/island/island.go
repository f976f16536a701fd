// Package island partitions the constraint graph into independent
// groups. Two dynamic bodies belong to the same island when a chain of
// contacts or joints connects them; fixed and kinematic bodies act as
// boundaries and never merge the islands touching them. Each island
// can be solved and put to sleep on its own.
package island

import (
	"sort"

	"github.com/veloxphys/velox/internal/arena"
)

// Island is one independent group: the dynamic bodies in it and the
// indices of the contacts and joints that act on them.
type Island struct {
	Bodies   []arena.Handle
	Contacts []int
	Joints   []int
}

type edge struct {
	index int
	a, b  arena.Handle
}

// Builder accumulates bodies and constraint edges for one step.
// Reuse a Builder across steps to avoid reallocation.
type Builder struct {
	index   map[arena.Handle]int
	handles []arena.Handle
	parent  []int
	rank    []int

	contacts []edge
	joints   []edge
}

func NewBuilder() *Builder {
	return &Builder{index: make(map[arena.Handle]int)}
}

// Reset clears the builder for a new step.
func (b *Builder) Reset() {
	for h := range b.index {
		delete(b.index, h)
	}
	b.handles = b.handles[:0]
	b.parent = b.parent[:0]
	b.rank = b.rank[:0]
	b.contacts = b.contacts[:0]
	b.joints = b.joints[:0]
}

// AddBody registers a dynamic body as an island member. Insertion
// order fixes the order islands are emitted in, so callers must add
// bodies in a deterministic order.
func (b *Builder) AddBody(h arena.Handle) {
	if _, ok := b.index[h]; ok {
		return
	}
	b.index[h] = len(b.handles)
	b.handles = append(b.handles, h)
	b.parent = append(b.parent, len(b.parent))
	b.rank = append(b.rank, 0)
}

// AddContact records a contact edge by index. Endpoints that were not
// registered with AddBody (fixed or kinematic bodies) do not link
// islands; an edge touching no registered body is dropped.
func (b *Builder) AddContact(index int, bodyA, bodyB arena.Handle) {
	b.addEdge(&b.contacts, index, bodyA, bodyB)
}

// AddJoint records a joint edge by index.
func (b *Builder) AddJoint(index int, bodyA, bodyB arena.Handle) {
	b.addEdge(&b.joints, index, bodyA, bodyB)
}

func (b *Builder) addEdge(dst *[]edge, index int, bodyA, bodyB arena.Handle) {
	ia, okA := b.index[bodyA]
	ib, okB := b.index[bodyB]
	if !okA && !okB {
		return
	}
	*dst = append(*dst, edge{index: index, a: bodyA, b: bodyB})
	if okA && okB {
		b.union(ia, ib)
	}
}

func (b *Builder) find(i int) int {
	for b.parent[i] != i {
		b.parent[i] = b.parent[b.parent[i]]
		i = b.parent[i]
	}
	return i
}

func (b *Builder) union(i, j int) {
	ri, rj := b.find(i), b.find(j)
	if ri == rj {
		return
	}
	if b.rank[ri] < b.rank[rj] {
		ri, rj = rj, ri
	}
	b.parent[rj] = ri
	if b.rank[ri] == b.rank[rj] {
		b.rank[ri]++
	}
}

// Build resolves the recorded edges into islands. Islands appear in
// the order their first body was added, and bodies within an island
// keep their AddBody order, so output is deterministic for a given
// input sequence.
func (b *Builder) Build() []Island {
	roots := make(map[int]int, len(b.handles))
	var islands []Island
	for i, h := range b.handles {
		r := b.find(i)
		at, ok := roots[r]
		if !ok {
			at = len(islands)
			roots[r] = at
			islands = append(islands, Island{})
		}
		islands[at].Bodies = append(islands[at].Bodies, h)
	}
	for _, e := range b.contacts {
		at := b.islandOf(roots, e)
		islands[at].Contacts = append(islands[at].Contacts, e.index)
	}
	for _, e := range b.joints {
		at := b.islandOf(roots, e)
		islands[at].Joints = append(islands[at].Joints, e.index)
	}
	for i := range islands {
		sort.Ints(islands[i].Contacts)
		sort.Ints(islands[i].Joints)
	}
	return islands
}

func (b *Builder) islandOf(roots map[int]int, e edge) int {
	if i, ok := b.index[e.a]; ok {
		return roots[b.find(i)]
	}
	i := b.index[e.b]
	return roots[b.find(i)]
}
