// Package metrics provides per-step observers that summarize a
// running world: energy, momentum and contact quality.
package metrics

import (
	"math"

	"github.com/veloxphys/velox/internal/body"
	"github.com/veloxphys/velox/internal/world"
)

// Metric samples the world once per step and reduces the samples to a
// single reported value.
type Metric interface {
	Name() string
	Observe(w *world.World, t float64)
	Value() float64
	Reset()
}

// totalEnergy sums kinetic and gravitational potential energy over
// the dynamic bodies.
func totalEnergy(w *world.World) float64 {
	g := w.Gravity()
	e := 0.0
	for _, h := range w.BodyHandles() {
		b := w.Body(h)
		if b.Kind != body.Dynamic || b.InvMass == 0 {
			continue
		}
		e += 0.5 * b.Mass * b.Velocity.Dot(b.Velocity)
		e += angularEnergy(b)
		e -= b.Mass * b.GravityScale * g.Dot(b.Transform.Position)
	}
	return e
}

func angularEnergy(b *body.Body) float64 {
	if b.LocalInvInertia.Det() == 0 {
		return 0
	}
	inertia := b.LocalInvInertia.Inv()
	local := b.Transform.Orientation.Inverse().Rotate(b.AngularVelocity)
	return 0.5 * local.Dot(inertia.Mul3x1(local))
}

// Energy reports the mean total energy over the run.
type Energy struct {
	sum     float64
	samples int
}

func NewEnergy() *Energy { return &Energy{} }

func (e *Energy) Name() string { return "energy" }

func (e *Energy) Observe(w *world.World, t float64) {
	e.sum += totalEnergy(w)
	e.samples++
}

func (e *Energy) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.sum / float64(e.samples)
}

func (e *Energy) Reset() {
	e.sum = 0
	e.samples = 0
}

// EnergyDrift reports the largest relative deviation from the first
// sampled energy. Dissipative scenes legitimately drift; this is a
// stability probe for elastic and constrained ones.
type EnergyDrift struct {
	initial  float64
	maxDrift float64
	samples  int
}

func NewEnergyDrift() *EnergyDrift { return &EnergyDrift{} }

func (e *EnergyDrift) Name() string { return "energy_drift" }

func (e *EnergyDrift) Observe(w *world.World, t float64) {
	energy := totalEnergy(w)
	if e.samples == 0 {
		e.initial = energy
	}
	e.samples++
	if e.initial != 0 {
		drift := math.Abs(energy-e.initial) / math.Abs(e.initial)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *EnergyDrift) Value() float64 { return e.maxDrift }

func (e *EnergyDrift) Reset() {
	e.initial = 0
	e.maxDrift = 0
	e.samples = 0
}
