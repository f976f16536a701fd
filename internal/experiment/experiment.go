// Package experiment runs a scenario across a grid of solver settings
// and reports how the tracked metrics respond. Its main use is timestep
// sensitivity: the same scene stepped at several dt values, compared on
// energy drift and penetration depth.
package experiment

import (
	"context"
	"fmt"

	"github.com/veloxphys/velox/internal/config"
	"github.com/veloxphys/velox/internal/metrics"
	"github.com/veloxphys/velox/internal/scenario"
	"github.com/veloxphys/velox/internal/sim"
	"github.com/veloxphys/velox/internal/world"
)

// Sweep describes one scenario stepped at each dt in Dts.
type Sweep struct {
	Scenario string
	Preset   string
	Dts      []float64
	Duration float64
}

// Point is the outcome of one sweep cell.
type Point struct {
	Dt      float64
	Steps   int
	Metrics map[string]float64
}

func (s *Sweep) baseConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if s.Preset != "" {
		p := config.GetPreset(s.Scenario, s.Preset)
		if p == nil {
			return nil, fmt.Errorf("experiment: unknown preset %q for scenario %q", s.Preset, s.Scenario)
		}
		copied := *p
		cfg = &copied
	}
	cfg.Scenario = s.Scenario
	if s.Duration > 0 {
		cfg.Duration = s.Duration
	}
	return cfg, nil
}

func (s *Sweep) buildRunner(cfg config.StepConfig) (*sim.Runner, error) {
	w := world.New(cfg)
	sc, err := scenario.Get(s.Scenario)
	if err != nil {
		return nil, err
	}
	if err := sc.Build(w); err != nil {
		return nil, err
	}

	r := sim.New(w)
	r.AddMetric(metrics.NewEnergyDrift())
	r.AddMetric(metrics.NewPenetration())
	r.AddMetric(metrics.NewMomentum())
	return r, nil
}

// Run executes every cell of the sweep concurrently. Cells share
// nothing, each builds its own world from the scenario.
func (s *Sweep) Run(ctx context.Context) ([]Point, error) {
	if len(s.Dts) == 0 {
		return nil, fmt.Errorf("experiment: sweep has no dt values")
	}
	cfg, err := s.baseConfig()
	if err != nil {
		return nil, err
	}

	results, err := sim.RunEnsemble(ctx, len(s.Dts), cfg.Duration, func(i int) (*sim.Runner, error) {
		step := cfg.Step
		step.Dt = s.Dts[i]
		if err := step.Validate(); err != nil {
			return nil, err
		}
		return s.buildRunner(step)
	})
	if err != nil {
		return nil, err
	}

	points := make([]Point, len(results))
	for i, res := range results {
		points[i] = Point{
			Dt:      s.Dts[i],
			Steps:   res.Steps,
			Metrics: res.Metrics,
		}
	}
	return points, nil
}
