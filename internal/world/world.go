// Package world owns the simulation state and the step pipeline:
// bodies, colliders and joints in handle arenas, persistent contact
// manifolds, island construction, constraint solving, integration,
// continuous collision handling and sleep management.
package world

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/veloxphys/velox/internal/arena"
	"github.com/veloxphys/velox/internal/body"
	"github.com/veloxphys/velox/internal/broadphase"
	"github.com/veloxphys/velox/internal/collide"
	"github.com/veloxphys/velox/internal/config"
	"github.com/veloxphys/velox/internal/geom"
	"github.com/veloxphys/velox/internal/island"
	"github.com/veloxphys/velox/internal/joint"
	"github.com/veloxphys/velox/internal/task"
)

// World is a simulation instance. It is not safe for concurrent use;
// one Step call owns all state.
type World struct {
	cfg config.StepConfig

	bodies    *arena.Arena[body.Body]
	colliders *arena.Arena[body.Collider]
	joints    *arena.Arena[joint.Joint]

	bp        *broadphase.BroadPhase
	manifolds map[collide.Key]*collide.Manifold
	builder   *island.Builder
	exec      task.Executor

	gravity mgl64.Vec3

	steps uint64
	time  float64

	events    []Event
	listeners []Listener
}

// New builds an empty world with the given step configuration.
func New(cfg config.StepConfig) *World {
	var exec task.Executor = task.Serial{}
	if cfg.Workers > 1 && !cfg.EnhancedDeterminism {
		exec = task.NewPool(cfg.Workers, 1)
	}
	return &World{
		cfg:       cfg,
		bodies:    arena.New[body.Body](),
		colliders: arena.New[body.Collider](),
		joints:    arena.New[joint.Joint](),
		bp:        broadphase.New(),
		manifolds: make(map[collide.Key]*collide.Manifold),
		builder:   island.NewBuilder(),
		exec:      exec,
		gravity:   mgl64.Vec3{cfg.Gravity[0], cfg.Gravity[1], cfg.Gravity[2]},
	}
}

func (w *World) Config() config.StepConfig { return w.cfg }

func (w *World) Time() float64      { return w.time }
func (w *World) Steps() uint64      { return w.steps }
func (w *World) BodyCount() int     { return w.bodies.Len() }
func (w *World) ColliderCount() int { return w.colliders.Len() }
func (w *World) JointCount() int    { return w.joints.Len() }

func (w *World) SetGravity(g mgl64.Vec3) { w.gravity = g }
func (w *World) Gravity() mgl64.Vec3     { return w.gravity }

// AddListener registers an event listener for all future steps.
func (w *World) AddListener(l Listener) {
	w.listeners = append(w.listeners, l)
}

// CreateBody inserts a body and returns its handle.
func (w *World) CreateBody(kind body.Kind, t geom.Transform) arena.Handle {
	return w.bodies.Insert(body.New(kind, t))
}

// Body resolves a handle, or nil when it is stale.
func (w *World) Body(h arena.Handle) *body.Body { return w.bodies.Get(h) }

// Collider resolves a collider handle, or nil when it is stale.
func (w *World) Collider(h arena.Handle) *body.Collider { return w.colliders.Get(h) }

// Joint resolves a joint handle, or nil when it is stale.
func (w *World) Joint(h arena.Handle) *joint.Joint { return w.joints.Get(h) }

// BodyHandles returns live body handles in deterministic order.
func (w *World) BodyHandles() []arena.Handle { return w.bodies.Handles() }

// JointHandles returns every joint handle in deterministic order.
func (w *World) JointHandles() []arena.Handle { return w.joints.Handles() }

// RemoveBody removes a body together with its colliders, its joints
// and their manifolds.
func (w *World) RemoveBody(h arena.Handle) error {
	b := w.bodies.Get(h)
	if b == nil {
		return fmt.Errorf("%w: %v", ErrUnknownBody, h)
	}
	for _, ch := range append([]arena.Handle(nil), b.Colliders...) {
		w.detachCollider(ch)
	}
	for _, jh := range w.joints.Handles() {
		if j := w.joints.Get(jh); j != nil && (j.BodyA == h || j.BodyB == h) {
			w.joints.Remove(jh)
		}
	}
	w.bodies.Remove(h)
	return nil
}

// AttachCollider attaches c to the body it names, registers it with
// the broad phase and refreshes the body's mass properties.
func (w *World) AttachCollider(bodyHandle arena.Handle, c body.Collider) (arena.Handle, error) {
	b := w.bodies.Get(bodyHandle)
	if b == nil {
		return arena.Nil, fmt.Errorf("%w: %v", ErrUnknownBody, bodyHandle)
	}
	c.Body = bodyHandle
	if c.Density <= 0 {
		c.Density = 1
	}
	if c.Filter == (body.Filter{}) {
		c.Filter = body.DefaultFilter
	}
	h := w.colliders.Insert(c)
	b.Colliders = append(b.Colliders, h)

	w.bp.Insert(h, c.Shape.AABB(c.WorldTransform(b.Transform)))
	w.recomputeMass(bodyHandle)
	w.WakeBody(bodyHandle)
	return h, nil
}

// DetachCollider removes a collider and refreshes the owning body's
// mass properties.
func (w *World) DetachCollider(h arena.Handle) error {
	c := w.colliders.Get(h)
	if c == nil {
		return fmt.Errorf("%w: %v", ErrUnknownCollider, h)
	}
	owner := c.Body
	w.detachCollider(h)
	if w.bodies.Contains(owner) {
		w.recomputeMass(owner)
	}
	return nil
}

func (w *World) detachCollider(h arena.Handle) {
	c := w.colliders.Get(h)
	if c == nil {
		return
	}
	if b := w.bodies.Get(c.Body); b != nil {
		for i, ch := range b.Colliders {
			if ch == h {
				b.Colliders = append(b.Colliders[:i], b.Colliders[i+1:]...)
				break
			}
		}
	}
	w.dropManifoldsOf(h)
	w.bp.Remove(h)
	w.colliders.Remove(h)
}

// AddJoint validates and inserts a joint, capturing the bodies'
// relative pose as its reference frame.
func (w *World) AddJoint(d joint.Descriptor) (arena.Handle, error) {
	bA := w.bodies.Get(d.BodyA)
	bB := w.bodies.Get(d.BodyB)
	if bA == nil || bB == nil {
		return arena.Nil, fmt.Errorf("%w: joint endpoints %v, %v", ErrUnknownBody, d.BodyA, d.BodyB)
	}
	j, err := joint.New(d)
	if err != nil {
		return arena.Nil, err
	}
	j.InitFrames(bA.Transform.Orientation, bB.Transform.Orientation)
	h := w.joints.Insert(j)
	w.WakeBody(d.BodyA)
	w.WakeBody(d.BodyB)
	return h, nil
}

// RemoveJoint removes a joint and wakes the bodies it connected.
func (w *World) RemoveJoint(h arena.Handle) error {
	j := w.joints.Get(h)
	if j == nil {
		return fmt.Errorf("%w: %v", ErrUnknownJoint, h)
	}
	a, b := j.BodyA, j.BodyB
	w.joints.Remove(h)
	w.WakeBody(a)
	w.WakeBody(b)
	return nil
}

// WakeBody clears a body's sleep state, emitting a wake event if it
// was asleep.
func (w *World) WakeBody(h arena.Handle) {
	b := w.bodies.Get(h)
	if b == nil {
		return
	}
	if b.Sleeping {
		b.Sleeping = false
		w.emit(Event{Kind: EventWake, BodyA: h})
	}
	b.SleepTime = 0
}

// Unfreeze clears the non-finite flag and resets the body to a sane
// state at its current position.
func (w *World) Unfreeze(h arena.Handle) error {
	b := w.bodies.Get(h)
	if b == nil {
		return fmt.Errorf("%w: %v", ErrUnknownBody, h)
	}
	b.Frozen = false
	b.Velocity = mgl64.Vec3{}
	b.AngularVelocity = mgl64.Vec3{}
	w.WakeBody(h)
	return nil
}

func (w *World) emit(e Event) {
	w.events = append(w.events, e)
}

// dropManifoldsOf deletes every manifold involving collider h,
// emitting contact-end events for contacting ones.
func (w *World) dropManifoldsOf(h arena.Handle) {
	for _, key := range w.sortedManifoldKeys() {
		if key.A != h && key.B != h {
			continue
		}
		m := w.manifolds[key]
		if m.Contacting {
			w.emit(Event{
				Kind:      EventContactEnd,
				BodyA:     m.BodyA,
				BodyB:     m.BodyB,
				ColliderA: m.ColliderA,
				ColliderB: m.ColliderB,
			})
		}
		delete(w.manifolds, key)
	}
}

func (w *World) sortedManifoldKeys() []collide.Key {
	keys := make([]collide.Key, 0, len(w.manifolds))
	for k := range w.manifolds {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}
