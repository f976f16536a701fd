// Package broadphase maintains fat AABBs for all colliders in a
// dynamic bounding-volume tree and reports candidate overlapping
// pairs. All true overlaps are reported; false positives are filtered
// by the narrow phase, false negatives never occur for boxes inside
// their fat bounds.
package broadphase

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/veloxphys/velox/internal/geom"
)

const nullNode = -1

// aabbMargin fattens stored AABBs so small movements do not force a
// tree update every frame.
const aabbMargin = 0.1

// displacementFactor scales predicted motion into the fat AABB.
const displacementFactor = 2.0

type treeNode struct {
	box    geom.AABB
	parent int
	child1 int
	child2 int
	// leaf = 0, free = -1
	height int
	next   int
	data   int32
}

func (n *treeNode) isLeaf() bool {
	return n.child1 == nullNode
}

// tree is a balanced dynamic AABB tree with a pooled node array,
// following the classic broad-phase design of box2d/btDbvt. Nodes are
// addressed by index so the pool can grow without invalidating links.
type tree struct {
	nodes    []treeNode
	root     int
	count    int
	freeList int
}

func newTree() *tree {
	t := &tree{root: nullNode, freeList: nullNode}
	t.grow(16)
	return t
}

func (t *tree) grow(capacity int) {
	start := len(t.nodes)
	t.nodes = append(t.nodes, make([]treeNode, capacity-start)...)
	for i := start; i < len(t.nodes)-1; i++ {
		t.nodes[i].next = i + 1
		t.nodes[i].height = -1
	}
	t.nodes[len(t.nodes)-1].next = t.freeList
	t.nodes[len(t.nodes)-1].height = -1
	t.freeList = start
}

func (t *tree) allocate() int {
	if t.freeList == nullNode {
		t.grow(2 * len(t.nodes))
	}
	id := t.freeList
	t.freeList = t.nodes[id].next
	n := &t.nodes[id]
	n.parent = nullNode
	n.child1 = nullNode
	n.child2 = nullNode
	n.height = 0
	n.data = 0
	t.count++
	return id
}

func (t *tree) release(id int) {
	t.nodes[id].next = t.freeList
	t.nodes[id].height = -1
	t.freeList = id
	t.count--
}

// createLeaf inserts a fat leaf for box and returns its node id.
func (t *tree) createLeaf(box geom.AABB, data int32) int {
	id := t.allocate()
	t.nodes[id].box = box.Expand(aabbMargin)
	t.nodes[id].data = data
	t.insertLeaf(id)
	return id
}

func (t *tree) destroyLeaf(id int) {
	t.removeLeaf(id)
	t.release(id)
}

// moveLeaf updates a leaf for a new tight box and predicted
// displacement. It reports whether the leaf was actually reinserted.
func (t *tree) moveLeaf(id int, box geom.AABB, displacement mgl64.Vec3) bool {
	if t.nodes[id].box.Contains(box) {
		return false
	}
	t.removeLeaf(id)

	fat := box.Expand(aabbMargin).Sweep(displacement.Mul(displacementFactor))
	t.nodes[id].box = fat
	t.insertLeaf(id)
	return true
}

func (t *tree) insertLeaf(leaf int) {
	if t.root == nullNode {
		t.root = leaf
		t.nodes[leaf].parent = nullNode
		return
	}

	// Descend to the cheapest sibling by surface-area cost.
	leafBox := t.nodes[leaf].box
	index := t.root
	for !t.nodes[index].isLeaf() {
		child1 := t.nodes[index].child1
		child2 := t.nodes[index].child2

		area := t.nodes[index].box.SurfaceArea()
		combinedArea := t.nodes[index].box.Union(leafBox).SurfaceArea()

		cost := 2 * combinedArea
		inheritance := 2 * (combinedArea - area)

		cost1 := descendCost(t.nodes[child1], leafBox) + inheritance
		cost2 := descendCost(t.nodes[child2], leafBox) + inheritance

		if cost < cost1 && cost < cost2 {
			break
		}
		if cost1 < cost2 {
			index = child1
		} else {
			index = child2
		}
	}

	sibling := index
	oldParent := t.nodes[sibling].parent
	newParent := t.allocate()
	t.nodes[newParent].parent = oldParent
	t.nodes[newParent].box = leafBox.Union(t.nodes[sibling].box)
	t.nodes[newParent].height = t.nodes[sibling].height + 1

	if oldParent != nullNode {
		if t.nodes[oldParent].child1 == sibling {
			t.nodes[oldParent].child1 = newParent
		} else {
			t.nodes[oldParent].child2 = newParent
		}
	} else {
		t.root = newParent
	}
	t.nodes[newParent].child1 = sibling
	t.nodes[newParent].child2 = leaf
	t.nodes[sibling].parent = newParent
	t.nodes[leaf].parent = newParent

	t.refit(t.nodes[leaf].parent)
}

func descendCost(child treeNode, leafBox geom.AABB) float64 {
	combined := child.box.Union(leafBox).SurfaceArea()
	if child.isLeaf() {
		return combined
	}
	return combined - child.box.SurfaceArea()
}

func (t *tree) removeLeaf(leaf int) {
	if leaf == t.root {
		t.root = nullNode
		return
	}

	parent := t.nodes[leaf].parent
	grandParent := t.nodes[parent].parent
	var sibling int
	if t.nodes[parent].child1 == leaf {
		sibling = t.nodes[parent].child2
	} else {
		sibling = t.nodes[parent].child1
	}

	if grandParent != nullNode {
		if t.nodes[grandParent].child1 == parent {
			t.nodes[grandParent].child1 = sibling
		} else {
			t.nodes[grandParent].child2 = sibling
		}
		t.nodes[sibling].parent = grandParent
		t.release(parent)
		t.refit(grandParent)
	} else {
		t.root = sibling
		t.nodes[sibling].parent = nullNode
		t.release(parent)
	}
}

// refit walks to the root rebalancing and tightening ancestor boxes.
func (t *tree) refit(index int) {
	for index != nullNode {
		index = t.balance(index)
		child1 := t.nodes[index].child1
		child2 := t.nodes[index].child2
		t.nodes[index].height = 1 + max(t.nodes[child1].height, t.nodes[child2].height)
		t.nodes[index].box = t.nodes[child1].box.Union(t.nodes[child2].box)
		index = t.nodes[index].parent
	}
}

// balance performs an AVL-style rotation at iA if its children differ
// in height by more than one. Returns the index of the subtree root.
func (t *tree) balance(iA int) int {
	a := &t.nodes[iA]
	if a.isLeaf() || a.height < 2 {
		return iA
	}

	iB := a.child1
	iC := a.child2
	b := &t.nodes[iB]
	c := &t.nodes[iC]

	balance := c.height - b.height

	if balance > 1 {
		return t.rotateUp(iA, iC, iB)
	}
	if balance < -1 {
		return t.rotateUp(iA, iB, iC)
	}
	return iA
}

// rotateUp swaps child iUp above iA, keeping iKeep as iA's other child.
func (t *tree) rotateUp(iA, iUp, iKeep int) int {
	a := &t.nodes[iA]
	up := &t.nodes[iUp]

	iF := up.child1
	iG := up.child2
	f := &t.nodes[iF]
	g := &t.nodes[iG]

	up.child1 = iA
	up.parent = a.parent
	a.parent = iUp

	if up.parent != nullNode {
		if t.nodes[up.parent].child1 == iA {
			t.nodes[up.parent].child1 = iUp
		} else {
			t.nodes[up.parent].child2 = iUp
		}
	} else {
		t.root = iUp
	}

	keep := &t.nodes[iKeep]
	if f.height > g.height {
		up.child2 = iF
		t.replaceChild(iA, iUp, iG)
		g.parent = iA
		a.box = keep.box.Union(g.box)
		up.box = a.box.Union(f.box)
		a.height = 1 + max(keep.height, g.height)
		up.height = 1 + max(a.height, f.height)
	} else {
		up.child2 = iG
		t.replaceChild(iA, iUp, iF)
		f.parent = iA
		a.box = keep.box.Union(f.box)
		up.box = a.box.Union(g.box)
		a.height = 1 + max(keep.height, f.height)
		up.height = 1 + max(a.height, g.height)
	}
	return iUp
}

func (t *tree) replaceChild(iA, old, with int) {
	a := &t.nodes[iA]
	if a.child1 == old {
		a.child1 = with
	} else {
		a.child2 = with
	}
}

// query calls fn for every leaf whose fat box overlaps box. fn
// returning false stops the traversal.
func (t *tree) query(box geom.AABB, fn func(id int, data int32) bool) {
	stack := make([]int, 0, 64)
	stack = append(stack, t.root)

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == nullNode {
			continue
		}
		n := &t.nodes[id]
		if !n.box.Overlaps(box) {
			continue
		}
		if n.isLeaf() {
			if !fn(id, n.data) {
				return
			}
		} else {
			stack = append(stack, n.child1, n.child2)
		}
	}
}

// rayQuery calls fn for every leaf whose fat box intersects the ray.
// fn returns a new maximum fraction; 0 stops the traversal.
func (t *tree) rayQuery(ray geom.Ray, fn func(data int32, maxT float64) float64) {
	maxT := ray.MaxT
	stack := make([]int, 0, 64)
	stack = append(stack, t.root)

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == nullNode {
			continue
		}
		n := &t.nodes[id]
		if _, hit := n.box.IntersectRay(ray.Origin, ray.Direction, maxT); !hit {
			continue
		}
		if n.isLeaf() {
			value := fn(n.data, maxT)
			if value == 0 {
				return
			}
			if value > 0 {
				maxT = math.Min(maxT, value)
			}
		} else {
			stack = append(stack, n.child1, n.child2)
		}
	}
}
