package metrics

import (
	"math"

	"github.com/veloxphys/velox/internal/world"
)

// Penetration reports the worst contact overlap seen during the run.
// A healthy solver keeps this near the allowed linear slop.
type Penetration struct {
	worst float64
}

func NewPenetration() *Penetration { return &Penetration{} }

func (p *Penetration) Name() string { return "max_penetration" }

func (p *Penetration) Observe(w *world.World, t float64) {
	p.worst = math.Max(p.worst, w.MaxPenetration())
}

func (p *Penetration) Value() float64 { return p.worst }

func (p *Penetration) Reset() { p.worst = 0 }

// Contacts reports the mean number of touching manifolds per step.
type Contacts struct {
	sum     int
	samples int
}

func NewContacts() *Contacts { return &Contacts{} }

func (c *Contacts) Name() string { return "contacts" }

func (c *Contacts) Observe(w *world.World, t float64) {
	c.sum += w.TouchingContacts()
	c.samples++
}

func (c *Contacts) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return float64(c.sum) / float64(c.samples)
}

func (c *Contacts) Reset() {
	c.sum = 0
	c.samples = 0
}
