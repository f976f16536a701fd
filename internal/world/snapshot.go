package world

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/veloxphys/velox/internal/arena"
	"github.com/veloxphys/velox/internal/geom"
)

// BodyState is the dynamic state of one body at a point in time.
type BodyState struct {
	Body            arena.Handle
	Transform       geom.Transform
	Velocity        mgl64.Vec3
	AngularVelocity mgl64.Vec3
	Sleeping        bool
}

// Snapshot captures the dynamic state of every body, ordered by
// handle so two equal worlds produce identical snapshots.
func (w *World) Snapshot() []BodyState {
	handles := w.bodies.Handles()
	out := make([]BodyState, 0, len(handles))
	for _, h := range handles {
		b := w.bodies.Get(h)
		out = append(out, BodyState{
			Body:            h,
			Transform:       b.Transform,
			Velocity:        b.Velocity,
			AngularVelocity: b.AngularVelocity,
			Sleeping:        b.Sleeping,
		})
	}
	return out
}

// Restore rewinds bodies to a previously captured snapshot. Contacts
// involving restored bodies are discarded so stale accumulated
// impulses cannot leak into the resumed timeline.
func (w *World) Restore(states []BodyState) error {
	for _, s := range states {
		b := w.bodies.Get(s.Body)
		if b == nil {
			return fmt.Errorf("%w: %v", ErrUnknownBody, s.Body)
		}
		b.Transform = s.Transform
		b.Velocity = s.Velocity
		b.AngularVelocity = s.AngularVelocity
		b.Sleeping = s.Sleeping
		b.SleepTime = 0

		for _, ch := range b.Colliders {
			c := w.colliders.Get(ch)
			if c == nil {
				continue
			}
			w.bp.Update(ch, c.Shape.AABB(c.WorldTransform(b.Transform)), mgl64.Vec3{})
			w.bp.Touch(ch)
			w.dropManifoldsOf(ch)
		}
	}
	return nil
}
