package metrics

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/veloxphys/velox/internal/body"
	"github.com/veloxphys/velox/internal/world"
)

// Momentum reports the magnitude of the latest total linear momentum
// of the dynamic bodies.
type Momentum struct {
	latest float64
}

func NewMomentum() *Momentum { return &Momentum{} }

func (m *Momentum) Name() string { return "momentum" }

func (m *Momentum) Observe(w *world.World, t float64) {
	sum := mgl64.Vec3{}
	for _, h := range w.BodyHandles() {
		b := w.Body(h)
		if b.Kind != body.Dynamic {
			continue
		}
		sum = sum.Add(b.Velocity.Mul(b.Mass))
	}
	m.latest = sum.Len()
}

func (m *Momentum) Value() float64 { return m.latest }

func (m *Momentum) Reset() { m.latest = 0 }
