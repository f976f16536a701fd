package world

import "github.com/veloxphys/velox/internal/arena"

// EventKind classifies step events.
type EventKind int

const (
	// EventContactBegin fires when a pair first touches, or first
	// approaches fast enough to touch within the step. Idle
	// speculative manifolds do not count.
	EventContactBegin EventKind = iota
	EventContactEnd
	EventSleep
	EventWake
	// EventFrozen fires when a body's state went non-finite and it
	// was taken out of simulation.
	EventFrozen
)

func (k EventKind) String() string {
	switch k {
	case EventContactBegin:
		return "contact_begin"
	case EventContactEnd:
		return "contact_end"
	case EventSleep:
		return "sleep"
	case EventWake:
		return "wake"
	case EventFrozen:
		return "frozen"
	}
	return "unknown"
}

// Event is one state transition observed during a step. Contact
// events carry both sides; body events carry only BodyA.
type Event struct {
	Kind      EventKind
	BodyA     arena.Handle
	BodyB     arena.Handle
	ColliderA arena.Handle
	ColliderB arena.Handle
}

// Listener receives every event at the end of the step that produced
// it, in emission order.
type Listener interface {
	HandleEvent(Event)
}
