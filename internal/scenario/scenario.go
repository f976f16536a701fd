// Package scenario provides the built-in simulation setups used by
// the CLI and the verification suite.
package scenario

import (
	"errors"
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/veloxphys/velox/internal/body"
	"github.com/veloxphys/velox/internal/geom"
	"github.com/veloxphys/velox/internal/joint"
	"github.com/veloxphys/velox/internal/shape"
	"github.com/veloxphys/velox/internal/world"
)

var ErrNotFound = errors.New("scenario: not found")

// Scenario populates an empty world with a named setup.
type Scenario struct {
	Name        string
	Description string
	Build       func(w *world.World) error
}

var registry = map[string]Scenario{
	"sphere_drop": {
		Name:        "sphere_drop",
		Description: "a sphere falls onto a static ground slab and settles",
		Build:       buildSphereDrop,
	},
	"elastic_pair": {
		Name:        "elastic_pair",
		Description: "two equal spheres collide head on with restitution 1",
		Build:       buildElasticPair,
	},
	"pendulum_chain": {
		Name:        "pendulum_chain",
		Description: "a chain of links swings from a fixed anchor",
		Build:       buildPendulumChain,
	},
	"projectile_wall": {
		Name:        "projectile_wall",
		Description: "a fast sphere is fired at a thin static wall",
		Build:       buildProjectileWall,
	},
	"stack": {
		Name:        "stack",
		Description: "a column of boxes settles on the ground and sleeps",
		Build:       buildStack,
	},
}

// Get looks up a scenario by name.
func Get(name string) (Scenario, error) {
	s, ok := registry[name]
	if !ok {
		return Scenario{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return s, nil
}

// List returns the registered scenario names in sorted order.
func List() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func at(x, y, z float64) geom.Transform {
	return geom.Transform{Position: mgl64.Vec3{x, y, z}, Orientation: mgl64.QuatIdent()}
}

func addGround(w *world.World) error {
	slab, err := shape.NewBox(mgl64.Vec3{20, 0.5, 20})
	if err != nil {
		return err
	}
	ground := w.CreateBody(body.Fixed, at(0, -0.5, 0))
	_, err = w.AttachCollider(ground, body.Collider{
		Shape:    slab,
		Local:    geom.Identity(),
		Friction: 0.6,
	})
	return err
}

func buildSphereDrop(w *world.World) error {
	if err := addGround(w); err != nil {
		return err
	}
	ball, err := shape.NewSphere(0.5)
	if err != nil {
		return err
	}
	b := w.CreateBody(body.Dynamic, at(0, 3, 0))
	_, err = w.AttachCollider(b, body.Collider{
		Shape:       ball,
		Local:       geom.Identity(),
		Density:     1,
		Friction:    0.4,
		Restitution: 0.3,
	})
	return err
}

func buildElasticPair(w *world.World) error {
	w.SetGravity(mgl64.Vec3{})
	ball, err := shape.NewSphere(0.5)
	if err != nil {
		return err
	}
	left := w.CreateBody(body.Dynamic, at(-2, 0, 0))
	right := w.CreateBody(body.Dynamic, at(2, 0, 0))
	w.Body(left).Velocity = mgl64.Vec3{4, 0, 0}
	w.Body(right).Velocity = mgl64.Vec3{-4, 0, 0}
	_, err = w.AttachCollider(left, body.Collider{
		Shape:       ball,
		Local:       geom.Identity(),
		Density:     1,
		Restitution: 1,
	})
	if err != nil {
		return err
	}
	_, err = w.AttachCollider(right, body.Collider{
		Shape:       ball,
		Local:       geom.Identity(),
		Density:     1,
		Restitution: 1,
	})
	return err
}

func buildPendulumChain(w *world.World) error {
	const (
		links      = 4
		linkLength = 1.0
	)
	anchor := w.CreateBody(body.Fixed, at(0, float64(links), 0))
	link, err := shape.NewCapsule(0.1, linkLength/2-0.1)
	if err != nil {
		return err
	}

	prev := anchor
	for i := 0; i < links; i++ {
		y := float64(links) - linkLength/2 - float64(i)*linkLength
		b := w.CreateBody(body.Dynamic, at(0, y, 0))
		if _, err := w.AttachCollider(b, body.Collider{
			Shape:   link,
			Local:   geom.Identity(),
			Density: 1,
		}); err != nil {
			return err
		}
		anchorA := mgl64.Vec3{0, -linkLength / 2, 0}
		if prev == anchor {
			anchorA = mgl64.Vec3{}
		}
		if _, err := w.AddJoint(joint.Descriptor{
			Kind:         joint.KindSpherical,
			BodyA:        prev,
			BodyB:        b,
			LocalAnchorA: anchorA,
			LocalAnchorB: mgl64.Vec3{0, linkLength / 2, 0},
		}); err != nil {
			return err
		}
		prev = b
	}
	// Start displaced so the chain swings.
	w.Body(prev).Velocity = mgl64.Vec3{2, 0, 0}
	return nil
}

func buildProjectileWall(w *world.World) error {
	w.SetGravity(mgl64.Vec3{})
	wall, err := shape.NewBox(mgl64.Vec3{0.05, 3, 3})
	if err != nil {
		return err
	}
	fixed := w.CreateBody(body.Fixed, at(5, 0, 0))
	if _, err := w.AttachCollider(fixed, body.Collider{
		Shape: wall,
		Local: geom.Identity(),
	}); err != nil {
		return err
	}

	bullet, err := shape.NewSphere(0.1)
	if err != nil {
		return err
	}
	b := w.CreateBody(body.Dynamic, at(0.3, 0, 0))
	w.Body(b).Velocity = mgl64.Vec3{60, 0, 0}
	_, err = w.AttachCollider(b, body.Collider{
		Shape:   bullet,
		Local:   geom.Identity(),
		Density: 1,
	})
	return err
}

func buildStack(w *world.World) error {
	if err := addGround(w); err != nil {
		return err
	}
	const (
		boxes = 5
		half  = 0.25
	)
	box, err := shape.NewBox(mgl64.Vec3{half, half, half})
	if err != nil {
		return err
	}
	for i := 0; i < boxes; i++ {
		b := w.CreateBody(body.Dynamic, at(0, half+2*half*float64(i), 0))
		if _, err := w.AttachCollider(b, body.Collider{
			Shape:    box,
			Local:    geom.Identity(),
			Density:  1,
			Friction: 0.7,
		}); err != nil {
			return err
		}
	}
	return nil
}
