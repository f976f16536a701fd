// Package arena provides generation-counted index arenas.
//
// Entities reference each other by [Handle] instead of pointers. A handle
// holds a slot index and the generation the slot had at insertion time.
// Removing an entity bumps the slot generation, so any handle issued before
// the removal is detectably stale and lookups through it fail cleanly.
package arena

// Handle identifies one slot in an Arena.
type Handle struct {
	Index      uint32
	Generation uint32
}

// Nil is the zero handle. It never resolves to a live entity.
var Nil = Handle{}

func (h Handle) IsNil() bool {
	return h == Nil
}

// Less orders handles by index, then generation. Used to keep pair and
// iteration order stable regardless of map traversal.
func (h Handle) Less(other Handle) bool {
	if h.Index != other.Index {
		return h.Index < other.Index
	}
	return h.Generation < other.Generation
}

type slot[T any] struct {
	value      T
	generation uint32
	live       bool
}

// Arena stores values in reusable slots addressed by handles.
type Arena[T any] struct {
	slots []slot[T]
	free  []uint32
	count int
}

func New[T any]() *Arena[T] {
	return &Arena[T]{}
}

// Insert stores v and returns its handle.
func (a *Arena[T]) Insert(v T) Handle {
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
		a.slots[idx].value = v
		a.slots[idx].live = true
	} else {
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, slot[T]{value: v, live: true})
	}
	a.count++
	// Generation 0 is reserved for the nil handle.
	if a.slots[idx].generation == 0 {
		a.slots[idx].generation = 1
	}
	return Handle{Index: idx, Generation: a.slots[idx].generation}
}

// Get returns a pointer to the value for h, or nil if h is stale or unknown.
func (a *Arena[T]) Get(h Handle) *T {
	if int(h.Index) >= len(a.slots) {
		return nil
	}
	s := &a.slots[h.Index]
	if !s.live || s.generation != h.Generation {
		return nil
	}
	return &s.value
}

// Contains reports whether h resolves to a live entity.
func (a *Arena[T]) Contains(h Handle) bool {
	return a.Get(h) != nil
}

// Remove frees the slot for h and invalidates every copy of the handle.
// It reports whether anything was removed.
func (a *Arena[T]) Remove(h Handle) bool {
	if a.Get(h) == nil {
		return false
	}
	s := &a.slots[h.Index]
	var zero T
	s.value = zero
	s.live = false
	s.generation++
	a.free = append(a.free, h.Index)
	a.count--
	return true
}

// Len returns the number of live entities.
func (a *Arena[T]) Len() int {
	return a.count
}

// Each calls fn for every live entity in slot order.
func (a *Arena[T]) Each(fn func(Handle, *T)) {
	for i := range a.slots {
		s := &a.slots[i]
		if s.live {
			fn(Handle{Index: uint32(i), Generation: s.generation}, &s.value)
		}
	}
}

// Handles returns the live handles in slot order.
func (a *Arena[T]) Handles() []Handle {
	out := make([]Handle, 0, a.count)
	for i := range a.slots {
		if a.slots[i].live {
			out = append(out, Handle{Index: uint32(i), Generation: a.slots[i].generation})
		}
	}
	return out
}
