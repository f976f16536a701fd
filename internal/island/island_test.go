package island

import (
	"testing"

	"github.com/veloxphys/velox/internal/arena"
)

func h(i uint32) arena.Handle { return arena.Handle{Index: i, Generation: 1} }

func TestTwoSeparateIslands(t *testing.T) {
	b := NewBuilder()
	for i := uint32(1); i <= 4; i++ {
		b.AddBody(h(i))
	}
	b.AddContact(0, h(1), h(2))
	b.AddContact(1, h(3), h(4))

	islands := b.Build()
	if len(islands) != 2 {
		t.Fatalf("got %d islands, want 2", len(islands))
	}
	if len(islands[0].Bodies) != 2 || len(islands[1].Bodies) != 2 {
		t.Fatalf("island sizes = %d, %d, want 2, 2", len(islands[0].Bodies), len(islands[1].Bodies))
	}
	if islands[0].Contacts[0] != 0 || islands[1].Contacts[0] != 1 {
		t.Fatal("contacts assigned to wrong islands")
	}
}

func TestChainMergesIntoOne(t *testing.T) {
	b := NewBuilder()
	for i := uint32(1); i <= 5; i++ {
		b.AddBody(h(i))
	}
	for i := uint32(1); i < 5; i++ {
		b.AddContact(int(i), h(i), h(i+1))
	}
	islands := b.Build()
	if len(islands) != 1 {
		t.Fatalf("got %d islands, want 1", len(islands))
	}
	if len(islands[0].Bodies) != 5 || len(islands[0].Contacts) != 4 {
		t.Fatalf("island = %d bodies %d contacts, want 5 and 4",
			len(islands[0].Bodies), len(islands[0].Contacts))
	}
}

func TestStaticBodyDoesNotMerge(t *testing.T) {
	// Two dynamic bodies each resting on the same unregistered
	// (fixed) ground must stay in separate islands.
	b := NewBuilder()
	b.AddBody(h(1))
	b.AddBody(h(2))
	ground := h(10)
	b.AddContact(0, h(1), ground)
	b.AddContact(1, ground, h(2))

	islands := b.Build()
	if len(islands) != 2 {
		t.Fatalf("got %d islands, want 2", len(islands))
	}
	if len(islands[0].Contacts) != 1 || len(islands[1].Contacts) != 1 {
		t.Fatal("each island should carry its own ground contact")
	}
}

func TestEdgeBetweenUnregisteredBodiesDropped(t *testing.T) {
	b := NewBuilder()
	b.AddBody(h(1))
	b.AddContact(0, h(8), h(9))
	islands := b.Build()
	if len(islands) != 1 || len(islands[0].Contacts) != 0 {
		t.Fatal("static-static edge must be dropped")
	}
}

func TestJointLinksIslands(t *testing.T) {
	b := NewBuilder()
	for i := uint32(1); i <= 3; i++ {
		b.AddBody(h(i))
	}
	b.AddJoint(0, h(1), h(2))
	b.AddJoint(1, h(2), h(3))
	islands := b.Build()
	if len(islands) != 1 {
		t.Fatalf("got %d islands, want 1", len(islands))
	}
	if len(islands[0].Joints) != 2 {
		t.Fatalf("got %d joints, want 2", len(islands[0].Joints))
	}
}

func TestDeterministicOrder(t *testing.T) {
	build := func() []Island {
		b := NewBuilder()
		for i := uint32(1); i <= 6; i++ {
			b.AddBody(h(i))
		}
		b.AddContact(2, h(5), h(6))
		b.AddContact(0, h(1), h(2))
		b.AddContact(1, h(2), h(3))
		return b.Build()
	}
	a, c := build(), build()
	if len(a) != len(c) {
		t.Fatal("island count differs between runs")
	}
	for i := range a {
		if len(a[i].Bodies) != len(c[i].Bodies) {
			t.Fatalf("island %d sizes differ", i)
		}
		for k := range a[i].Bodies {
			if a[i].Bodies[k] != c[i].Bodies[k] {
				t.Fatalf("island %d body order differs", i)
			}
		}
		for k := range a[i].Contacts {
			if a[i].Contacts[k] != c[i].Contacts[k] {
				t.Fatalf("island %d contact order differs", i)
			}
		}
	}
}

func TestResetReuse(t *testing.T) {
	b := NewBuilder()
	b.AddBody(h(1))
	b.AddBody(h(2))
	b.AddContact(0, h(1), h(2))
	if got := len(b.Build()); got != 1 {
		t.Fatalf("got %d islands, want 1", got)
	}
	b.Reset()
	b.AddBody(h(3))
	islands := b.Build()
	if len(islands) != 1 || len(islands[0].Bodies) != 1 || islands[0].Bodies[0] != h(3) {
		t.Fatal("builder state leaked across Reset")
	}
}
