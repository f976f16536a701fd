package world

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/veloxphys/velox/internal/arena"
	"github.com/veloxphys/velox/internal/body"
	"github.com/veloxphys/velox/internal/ccd"
	"github.com/veloxphys/velox/internal/collide"
	"github.com/veloxphys/velox/internal/geom"
	"github.com/veloxphys/velox/internal/island"
	"github.com/veloxphys/velox/internal/mathx"
	"github.com/veloxphys/velox/internal/solver"
)

// Step advances the world by one fixed increment and returns the
// events that occurred, in emission order. The same events are also
// delivered to registered listeners before Step returns.
func (w *World) Step() []Event {
	w.events = w.events[:0]
	dt := w.cfg.Dt

	w.integrateVelocities(dt)
	w.syncBroadPhase(dt)
	w.refreshManifolds()
	manifolds := w.narrowPhase()
	w.propagateWake(manifolds)

	var sweeps map[arena.Handle]geom.Transform
	if w.cfg.CCD {
		sweeps = w.captureSweepPoses()
	}

	islands, jointHandles := w.buildIslands(manifolds)
	w.solveIslands(islands, manifolds, jointHandles, dt)
	w.integrateKinematic(dt)

	if w.cfg.CCD {
		w.continuousPass(sweeps, dt)
	}
	w.updateSleep(islands, dt)

	w.steps++
	w.time += dt

	out := append([]Event(nil), w.events...)
	for _, l := range w.listeners {
		for _, e := range out {
			l.HandleEvent(e)
		}
	}
	return out
}

func (w *World) integrateVelocities(dt float64) {
	for _, h := range w.bodies.Handles() {
		b := w.bodies.Get(h)
		if !b.IsAwakeDynamic() {
			continue
		}

		accel := w.gravity.Mul(b.GravityScale).Add(b.Force.Mul(b.InvMass))
		v := b.Velocity.Add(accel.Mul(dt))
		omega := b.AngularVelocity.Add(b.InvInertiaWorld().Mul3x1(b.Torque).Mul(dt))
		v = v.Mul(1 / (1 + dt*b.LinearDamping))
		omega = omega.Mul(1 / (1 + dt*b.AngularDamping))

		if !mathx.IsFinite(v) || !mathx.IsFinite(omega) {
			w.freezeBody(h, b)
			continue
		}
		b.Velocity = v
		b.AngularVelocity = omega
		b.ClearForces()
	}
}

func (w *World) freezeBody(h arena.Handle, b *body.Body) {
	b.Frozen = true
	b.Velocity = mgl64.Vec3{}
	b.AngularVelocity = mgl64.Vec3{}
	b.ClearForces()
	w.emit(Event{Kind: EventFrozen, BodyA: h})
}

func (w *World) syncBroadPhase(dt float64) {
	for _, h := range w.bodies.Handles() {
		b := w.bodies.Get(h)
		if !b.Moves() {
			continue
		}
		displacement := b.Velocity.Mul(dt)
		for _, ch := range b.Colliders {
			c := w.colliders.Get(ch)
			if c == nil {
				continue
			}
			w.bp.Update(ch, c.Shape.AABB(c.WorldTransform(b.Transform)), displacement)
		}
	}
}

// refreshManifolds creates manifolds for new candidate pairs and
// drops manifolds whose fat bounds separated.
func (w *World) refreshManifolds() {
	for _, p := range w.bp.Pairs() {
		cA := w.colliders.Get(p.A)
		cB := w.colliders.Get(p.B)
		if cA == nil || cB == nil || cA.Body == cB.Body {
			continue
		}
		if !cA.Filter.ShouldCollide(cB.Filter) {
			continue
		}
		bA := w.bodies.Get(cA.Body)
		bB := w.bodies.Get(cB.Body)
		if bA == nil || bB == nil {
			continue
		}
		if bA.Kind != body.Dynamic && bB.Kind != body.Dynamic {
			continue
		}
		key := collide.MakeKey(p.A, p.B)
		if _, ok := w.manifolds[key]; ok {
			continue
		}
		w.manifolds[key] = &collide.Manifold{
			ColliderA:   key.A,
			ColliderB:   key.B,
			BodyA:       w.colliders.Get(key.A).Body,
			BodyB:       w.colliders.Get(key.B).Body,
			Friction:    math.Sqrt(cA.Friction * cB.Friction),
			Restitution: math.Max(cA.Restitution, cB.Restitution),
		}
	}

	for _, key := range w.sortedManifoldKeys() {
		m := w.manifolds[key]
		if w.colliders.Contains(key.A) && w.colliders.Contains(key.B) && w.bp.Overlaps(key.A, key.B) {
			continue
		}
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

// narrowPhase recomputes contact geometry for every manifold whose
// pair is not fully asleep and returns the manifold list in
// deterministic key order. Collision queries run on the executor;
// manifold updates and event emission stay sequential.
func (w *World) narrowPhase() []*collide.Manifold {
	keys := w.sortedManifoldKeys()
	list := make([]*collide.Manifold, len(keys))
	results := make([]*collide.Result, len(keys))

	w.exec.ForEach(len(keys), func(i int) {
		m := w.manifolds[keys[i]]
		list[i] = m
		cA := w.colliders.Get(m.ColliderA)
		cB := w.colliders.Get(m.ColliderB)
		bA := w.bodies.Get(m.BodyA)
		bB := w.bodies.Get(m.BodyB)
		if !bA.Moves() && !bB.Moves() {
			return
		}
		res := collide.Collide(
			cA.Shape, cA.WorldTransform(bA.Transform),
			cB.Shape, cB.WorldTransform(bB.Transform),
			w.cfg.PredictionDistance,
		)
		results[i] = &res
	})

	for i, m := range list {
		if results[i] == nil {
			continue
		}
		bA := w.bodies.Get(m.BodyA)
		m.Update(results[i].Normal, results[i].Candidates, bA.Transform.ApplyInverse)
		now := w.inContact(m)
		if now && !m.Contacting {
			m.Contacting = true
			w.emit(Event{
				Kind:      EventContactBegin,
				BodyA:     m.BodyA,
				BodyB:     m.BodyB,
				ColliderA: m.ColliderA,
				ColliderB: m.ColliderB,
			})
			w.WakeBody(m.BodyA)
			w.WakeBody(m.BodyB)
		} else if m.Contacting && !now {
			m.Contacting = false
			w.emit(Event{
				Kind:      EventContactEnd,
				BodyA:     m.BodyA,
				BodyB:     m.BodyB,
				ColliderA: m.ColliderA,
				ColliderB: m.ColliderB,
			})
		}
	}
	return list
}

// inContact reports whether a manifold counts as a live contact for
// event purposes: some point overlaps, or the pair is approaching
// fast enough to close its gap within the next step. The second
// clause matches the solver's restitution window, so bounce impulses
// and begin events land on the same step.
func (w *World) inContact(m *collide.Manifold) bool {
	if len(m.Points) == 0 {
		return false
	}
	bA := w.bodies.Get(m.BodyA)
	bB := w.bodies.Get(m.BodyB)
	for i := range m.Points {
		p := &m.Points[i]
		if p.Penetration >= -1e-9 {
			return true
		}
		vn := m.Normal.Dot(bB.VelocityAt(p.Position).Sub(bA.VelocityAt(p.Position)))
		if vn < 0 && p.Penetration >= vn*w.cfg.Dt {
			return true
		}
	}
	return false
}

// propagateWake wakes sleeping dynamic bodies connected to awake ones
// through touching contacts or joints, repeating until the wave
// settles so chains wake as a unit.
func (w *World) propagateWake(manifolds []*collide.Manifold) {
	jointHandles := w.joints.Handles()
	for changed := true; changed; {
		changed = false
		for _, m := range manifolds {
			if m.Contacting && w.wakeAcross(m.BodyA, m.BodyB) {
				changed = true
			}
		}
		for _, jh := range jointHandles {
			j := w.joints.Get(jh)
			if w.wakeAcross(j.BodyA, j.BodyB) {
				changed = true
			}
		}
	}
}

func (w *World) wakeAcross(a, b arena.Handle) bool {
	bA := w.bodies.Get(a)
	bB := w.bodies.Get(b)
	if bA == nil || bB == nil {
		return false
	}
	if disturbs(bA) && bB.Kind == body.Dynamic && bB.Sleeping {
		w.WakeBody(b)
		return true
	}
	if disturbs(bB) && bA.Kind == body.Dynamic && bA.Sleeping {
		w.WakeBody(a)
		return true
	}
	return false
}

// disturbs reports whether a body can pull a sleeping neighbor back
// into simulation: an awake dynamic body, or a kinematic one that is
// actually moving.
func disturbs(b *body.Body) bool {
	if b.IsAwakeDynamic() {
		return true
	}
	return b.Kind == body.Kinematic && !b.Sleeping &&
		(b.Velocity.Dot(b.Velocity) > 0 || b.AngularVelocity.Dot(b.AngularVelocity) > 0)
}

func (w *World) buildIslands(manifolds []*collide.Manifold) ([]island.Island, []arena.Handle) {
	w.builder.Reset()
	for _, h := range w.bodies.Handles() {
		if w.bodies.Get(h).IsAwakeDynamic() {
			w.builder.AddBody(h)
		}
	}
	for i, m := range manifolds {
		if len(m.Points) > 0 {
			w.builder.AddContact(i, m.BodyA, m.BodyB)
		}
	}
	jointHandles := w.joints.Handles()
	for i, jh := range jointHandles {
		j := w.joints.Get(jh)
		w.builder.AddJoint(i, j.BodyA, j.BodyB)
	}
	return w.builder.Build(), jointHandles
}

func (w *World) solverOptions(dt float64) solver.Options {
	return solver.Options{
		Dt:                   dt,
		VelocityIterations:   w.cfg.VelocityIterations,
		PositionIterations:   w.cfg.PositionIterations,
		AllowedLinearError:   w.cfg.AllowedLinearError,
		AllowedAngularError:  w.cfg.AllowedAngularError,
		MaxCorrection:        0.2,
		Baumgarte:            w.cfg.UseBaumgarte,
		BaumgarteFactor:      0.2,
		RestitutionThreshold: w.cfg.RestitutionThreshold,
	}
}

// solveIslands runs every island through the constraint solver on the
// executor. Islands share no dynamic bodies, and boundary copies are
// never written back, so they are safe to solve concurrently.
func (w *World) solveIslands(islands []island.Island, manifolds []*collide.Manifold, jointHandles []arena.Handle, dt float64) {
	opts := w.solverOptions(dt)
	frozen := make([][]arena.Handle, len(islands))
	w.exec.ForEach(len(islands), func(i int) {
		frozen[i] = w.solveIsland(&islands[i], manifolds, jointHandles, opts)
	})
	for _, hs := range frozen {
		for _, h := range hs {
			w.emit(Event{Kind: EventFrozen, BodyA: h})
		}
	}
}

func (w *World) solveIsland(isl *island.Island, manifolds []*collide.Manifold, jointHandles []arena.Handle, opts solver.Options) []arena.Handle {
	members := len(isl.Bodies)
	local := make(map[arena.Handle]int, members)
	bodies := make([]solver.Body, 0, members+2)

	for _, h := range isl.Bodies {
		b := w.bodies.Get(h)
		local[h] = len(bodies)
		bodies = append(bodies, solver.Body{
			Position:    b.Transform.Position,
			Orientation: b.Transform.Orientation,
			LinVel:      b.Velocity,
			AngVel:      b.AngularVelocity,
			InvMass:     b.InvMass,
			InvInertia:  b.InvInertiaWorld(),
		})
	}

	// Boundary bodies join with zero inverse mass; kinematic ones
	// keep their velocity so contacts feel the push.
	boundary := func(h arena.Handle) int {
		if idx, ok := local[h]; ok {
			return idx
		}
		b := w.bodies.Get(h)
		sb := solver.Body{
			Position:    b.Transform.Position,
			Orientation: b.Transform.Orientation,
		}
		if b.Kind == body.Kinematic && !b.Sleeping {
			sb.LinVel = b.Velocity
			sb.AngVel = b.AngularVelocity
		}
		local[h] = len(bodies)
		bodies = append(bodies, sb)
		return local[h]
	}

	contacts := make([]solver.Contact, 0, len(isl.Contacts))
	for _, idx := range isl.Contacts {
		m := manifolds[idx]
		contacts = append(contacts, solver.Contact{
			Manifold: m,
			A:        boundary(m.BodyA),
			B:        boundary(m.BodyB),
		})
	}
	joints := make([]solver.JointRef, 0, len(isl.Joints))
	for _, idx := range isl.Joints {
		j := w.joints.Get(jointHandles[idx])
		joints = append(joints, solver.JointRef{
			Joint: j,
			A:     boundary(j.BodyA),
			B:     boundary(j.BodyB),
		})
	}

	s := solver.NewIslandSolver(bodies, contacts, joints, opts)
	s.SolveVelocity()
	s.IntegratePoses()
	s.SolvePositions()

	var frozen []arena.Handle
	for i, h := range isl.Bodies {
		b := w.bodies.Get(h)
		sb := &bodies[i]
		if !mathx.IsFinite(sb.Position) || !mathx.IsFinite(sb.LinVel) ||
			!mathx.IsFinite(sb.AngVel) || !finiteQuat(sb.Orientation) {
			b.Frozen = true
			b.Velocity = mgl64.Vec3{}
			b.AngularVelocity = mgl64.Vec3{}
			frozen = append(frozen, h)
			continue
		}
		b.Transform.Position = sb.Position
		b.Transform.Orientation = sb.Orientation
		b.Velocity = sb.LinVel
		b.AngularVelocity = sb.AngVel
	}
	return frozen
}

func finiteQuat(q mgl64.Quat) bool {
	return mathx.IsFinite(q.V) && !math.IsNaN(q.W) && !math.IsInf(q.W, 0)
}

func (w *World) integrateKinematic(dt float64) {
	for _, h := range w.bodies.Handles() {
		b := w.bodies.Get(h)
		if b.Kind != body.Kinematic || b.Sleeping {
			continue
		}
		b.Transform.Position = b.Transform.Position.Add(b.Velocity.Mul(dt))
		b.Transform.Orientation = mathx.IntegrateOrientation(b.Transform.Orientation, b.AngularVelocity, dt)
	}
}

// captureSweepPoses records the start-of-step transforms of bodies
// moving fast enough to need a sweep, before the solver advances
// them.
func (w *World) captureSweepPoses() map[arena.Handle]geom.Transform {
	var poses map[arena.Handle]geom.Transform
	for _, h := range w.bodies.Handles() {
		b := w.bodies.Get(h)
		if !b.IsAwakeDynamic() {
			continue
		}
		for _, ch := range b.Colliders {
			c := w.colliders.Get(ch)
			if c != nil && ccd.ShouldSweep(c.Shape, b.Velocity, w.cfg.Dt) {
				if poses == nil {
					poses = make(map[arena.Handle]geom.Transform)
				}
				poses[h] = b.Transform
				break
			}
		}
	}
	return poses
}

// continuousPass rewinds fast movers to their earliest time of impact
// so the next step's narrow phase sees them in contact instead of on
// the far side of whatever they crossed.
func (w *World) continuousPass(sweeps map[arena.Handle]geom.Transform, dt float64) {
	if len(sweeps) == 0 {
		return
	}
	handles := make([]arena.Handle, 0, len(sweeps))
	for h := range sweeps {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i].Less(handles[j]) })

	for _, h := range handles {
		b := w.bodies.Get(h)
		if b == nil || !b.IsAwakeDynamic() {
			continue
		}
		from := sweeps[h]
		minT := 1.0
		hit := false

		for _, ch := range b.Colliders {
			c := w.colliders.Get(ch)
			if c == nil {
				continue
			}
			motion := ccd.Motion{
				Shape:  c.Shape,
				From:   from.Mul(c.Local),
				LinVel: b.Velocity,
				AngVel: b.AngularVelocity,
			}
			swept := c.Shape.AABB(motion.From).Union(c.Shape.AABB(c.WorldTransform(b.Transform)))

			w.bp.QueryAABB(swept, func(other arena.Handle) bool {
				if other == ch {
					return true
				}
				oc := w.colliders.Get(other)
				if oc == nil || oc.Body == h || !c.Filter.ShouldCollide(oc.Filter) {
					return true
				}
				ob := w.bodies.Get(oc.Body)
				if ob == nil {
					return true
				}
				res := ccd.TimeOfImpact(motion, ccd.Motion{
					Shape: oc.Shape,
					From:  oc.WorldTransform(ob.Transform),
				}, dt, w.cfg.AllowedLinearError)
				if res.Hit && res.T < minT {
					minT = res.T
					hit = true
				}
				return true
			})
		}

		if !hit || minT >= 1 {
			continue
		}
		b.Transform.Position = from.Position.Add(b.Velocity.Mul(minT * dt))
		b.Transform.Orientation = mathx.IntegrateOrientation(from.Orientation, b.AngularVelocity, minT*dt)
		for _, ch := range b.Colliders {
			if c := w.colliders.Get(ch); c != nil {
				w.bp.Update(ch, c.Shape.AABB(c.WorldTransform(b.Transform)), mgl64.Vec3{})
				w.bp.Touch(ch)
			}
		}
	}
}

// updateSleep advances per-body sleep timers and puts entire islands
// to sleep once every member has been slow for long enough.
func (w *World) updateSleep(islands []island.Island, dt float64) {
	linSq := w.cfg.SleepLinearThreshold * w.cfg.SleepLinearThreshold
	angSq := w.cfg.SleepAngularThreshold * w.cfg.SleepAngularThreshold

	for i := range islands {
		minTime := math.Inf(1)
		for _, h := range islands[i].Bodies {
			b := w.bodies.Get(h)
			if b.Velocity.Dot(b.Velocity) < linSq && b.AngularVelocity.Dot(b.AngularVelocity) < angSq {
				b.SleepTime += dt
			} else {
				b.SleepTime = 0
			}
			if b.SleepTime < minTime {
				minTime = b.SleepTime
			}
		}
		if minTime < w.cfg.SleepTime {
			continue
		}
		for _, h := range islands[i].Bodies {
			b := w.bodies.Get(h)
			b.Sleeping = true
			b.Velocity = mgl64.Vec3{}
			b.AngularVelocity = mgl64.Vec3{}
			w.emit(Event{Kind: EventSleep, BodyA: h})
		}
	}
}
