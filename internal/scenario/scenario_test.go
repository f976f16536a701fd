package scenario

import (
	"errors"
	"sort"
	"testing"

	"github.com/veloxphys/velox/internal/config"
	"github.com/veloxphys/velox/internal/world"
)

func TestAllScenariosBuild(t *testing.T) {
	for _, name := range List() {
		s, err := Get(name)
		if err != nil {
			t.Fatalf("Get(%q): %v", name, err)
		}
		w := world.New(config.DefaultStep())
		if err := s.Build(w); err != nil {
			t.Fatalf("%s: build: %v", name, err)
		}
		if w.BodyCount() == 0 {
			t.Errorf("%s: built an empty world", name)
		}
		if w.ColliderCount() == 0 {
			t.Errorf("%s: no colliders attached", name)
		}
	}
}

func TestGetUnknown(t *testing.T) {
	_, err := Get("does_not_exist")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListSorted(t *testing.T) {
	names := List()
	if len(names) != len(registry) {
		t.Fatalf("List returned %d names, want %d", len(names), len(registry))
	}
	if !sort.StringsAreSorted(names) {
		t.Errorf("List not sorted: %v", names)
	}
}

func TestPendulumChainHasJoints(t *testing.T) {
	w := world.New(config.DefaultStep())
	s, _ := Get("pendulum_chain")
	if err := s.Build(w); err != nil {
		t.Fatal(err)
	}
	if w.JointCount() != 4 {
		t.Errorf("JointCount = %d, want 4", w.JointCount())
	}
}

func TestScenarioSteps(t *testing.T) {
	// Every scenario must survive a short run without freezing bodies.
	for _, name := range List() {
		s, _ := Get(name)
		w := world.New(config.DefaultStep())
		if err := s.Build(w); err != nil {
			t.Fatal(err)
		}
		for i := 0; i < 30; i++ {
			for _, ev := range w.Step() {
				if ev.Kind == world.EventFrozen {
					t.Fatalf("%s: body %v froze at step %d", name, ev.BodyA, i)
				}
			}
		}
	}
}
