package scenario

import (
	"reflect"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/veloxphys/velox/internal/arena"
	"github.com/veloxphys/velox/internal/body"
	"github.com/veloxphys/velox/internal/config"
	"github.com/veloxphys/velox/internal/world"
)

func runPreset(scenarioName, presetName string, steps int) *world.World {
	cfg := config.GetPreset(scenarioName, presetName)
	Expect(cfg).NotTo(BeNil())
	w := world.New(cfg.Step)
	s, err := Get(scenarioName)
	Expect(err).NotTo(HaveOccurred())
	Expect(s.Build(w)).To(Succeed())
	for i := 0; i < steps; i++ {
		w.Step()
	}
	return w
}

func dynamicBodies(w *world.World) []arena.Handle {
	var out []arena.Handle
	for _, h := range w.BodyHandles() {
		if w.Body(h).Kind == body.Dynamic {
			out = append(out, h)
		}
	}
	return out
}

var _ = Describe("sphere_drop", func() {
	It("settles on the ground and goes to sleep", func() {
		w := runPreset("sphere_drop", "default", 300)
		dyn := dynamicBodies(w)
		Expect(dyn).To(HaveLen(1))
		b := w.Body(dyn[0])
		Expect(b.Transform.Position.Y()).To(BeNumerically("~", 0.5, 1e-3))
		Expect(b.Velocity.Len()).To(BeNumerically("<", 0.01))
		Expect(b.Sleeping).To(BeTrue())
	})
})

var _ = Describe("elastic_pair", func() {
	It("conserves momentum and reverses both velocities", func() {
		w := runPreset("elastic_pair", "default", 240)
		dyn := dynamicBodies(w)
		Expect(dyn).To(HaveLen(2))

		momentum := mgl64.Vec3{}
		for _, h := range dyn {
			b := w.Body(h)
			momentum = momentum.Add(b.Velocity.Mul(b.Mass))
		}
		Expect(momentum.Len()).To(BeNumerically("<", 1e-6))

		left := w.Body(dyn[0])
		right := w.Body(dyn[1])
		Expect(left.Velocity.X()).To(BeNumerically("<", -3.5))
		Expect(right.Velocity.X()).To(BeNumerically(">", 3.5))
	})
})

var _ = Describe("pendulum_chain", func() {
	It("keeps every joint anchor pinned while swinging", func() {
		w := runPreset("pendulum_chain", "default", 300)
		for _, jh := range w.JointHandles() {
			j := w.Joint(jh)
			pa := w.Body(j.BodyA).Transform.Apply(j.LocalAnchorA)
			pb := w.Body(j.BodyB).Transform.Apply(j.LocalAnchorB)
			Expect(pa.Sub(pb).Len()).To(BeNumerically("<", 1e-3))
		}
	})
})

var _ = Describe("projectile_wall", func() {
	It("stops the bullet when sweeps are enabled", func() {
		w := runPreset("projectile_wall", "ccd", 120)
		dyn := dynamicBodies(w)
		Expect(dyn).To(HaveLen(1))
		Expect(w.Body(dyn[0]).Transform.Position.X()).To(BeNumerically("<", 5))
	})

	It("tunnels through the thin wall when sweeps are disabled", func() {
		w := runPreset("projectile_wall", "tunnel", 120)
		dyn := dynamicBodies(w)
		Expect(dyn).To(HaveLen(1))
		Expect(w.Body(dyn[0]).Transform.Position.X()).To(BeNumerically(">", 6))
	})
})

var _ = Describe("stack", func() {
	It("settles without toppling and falls asleep", func() {
		w := runPreset("stack", "default", 600)
		for _, h := range dynamicBodies(w) {
			b := w.Body(h)
			Expect(b.Sleeping).To(BeTrue())
			Expect(b.Transform.Position.X()).To(BeNumerically("~", 0, 0.1))
			Expect(b.Transform.Position.Z()).To(BeNumerically("~", 0, 0.1))
		}
	})

	It("reproduces bit-identical runs in deterministic mode", func() {
		a := runPreset("stack", "deterministic", 120).Snapshot()
		b := runPreset("stack", "deterministic", 120).Snapshot()
		Expect(reflect.DeepEqual(a, b)).To(BeTrue())
	})
})
