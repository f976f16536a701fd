// Package sim drives a world through a timed run, sampling metrics
// and collecting the per-step series the storage and plot layers
// consume.
package sim

import (
	"context"
	"fmt"
	"time"

	"github.com/veloxphys/velox/internal/metrics"
	"github.com/veloxphys/velox/internal/world"
)

// Observer is notified after every completed step.
type Observer interface {
	OnStep(w *world.World, t float64)
}

// Result holds everything a finished run produced.
type Result struct {
	Steps   int
	Elapsed time.Duration
	// Times holds the simulation clock at each sample.
	Times []float64
	// Tracks maps metric name to its per-step series.
	Tracks map[string][]float64
	// Metrics maps metric name to its final reduced value.
	Metrics map[string]float64
	// Events counts emitted events by kind.
	Events map[world.EventKind]int
}

type Runner struct {
	w         *world.World
	metrics   []metrics.Metric
	observers []Observer
}

func New(w *world.World) *Runner {
	return &Runner{w: w}
}

func (r *Runner) AddMetric(m metrics.Metric) { r.metrics = append(r.metrics, m) }
func (r *Runner) AddObserver(o Observer)     { r.observers = append(r.observers, o) }

// World exposes the underlying world for observers that need direct
// access.
func (r *Runner) World() *world.World { return r.w }

// Run advances the world for the given simulated duration. The
// context is checked between steps; on cancellation the partial
// result is returned alongside the context error.
func (r *Runner) Run(ctx context.Context, duration float64) (*Result, error) {
	dt := r.w.Config().Dt
	if duration <= 0 {
		return nil, fmt.Errorf("sim: duration %v must be positive", duration)
	}
	steps := int(duration/dt + 0.5)

	result := &Result{
		Times:   make([]float64, 0, steps),
		Tracks:  make(map[string][]float64, len(r.metrics)),
		Metrics: make(map[string]float64, len(r.metrics)),
		Events:  make(map[world.EventKind]int),
	}
	for _, m := range r.metrics {
		m.Reset()
		result.Tracks[m.Name()] = make([]float64, 0, steps)
	}

	start := time.Now()
	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			result.Elapsed = time.Since(start)
			return result, ctx.Err()
		default:
		}

		for _, ev := range r.w.Step() {
			result.Events[ev.Kind]++
		}
		result.Steps++

		t := r.w.Time()
		result.Times = append(result.Times, t)
		for _, m := range r.metrics {
			m.Observe(r.w, t)
			result.Tracks[m.Name()] = append(result.Tracks[m.Name()], m.Value())
		}
		for _, o := range r.observers {
			o.OnStep(r.w, t)
		}
	}
	result.Elapsed = time.Since(start)

	for _, m := range r.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	return result, nil
}

// RunWithCallback steps until the duration elapses or the callback
// returns false. Metrics are not sampled; the callback owns all
// observation.
func (r *Runner) RunWithCallback(ctx context.Context, duration float64, callback func(t float64) bool) error {
	dt := r.w.Config().Dt
	if duration <= 0 {
		return fmt.Errorf("sim: duration %v must be positive", duration)
	}
	steps := int(duration/dt + 0.5)

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		r.w.Step()
		if !callback(r.w.Time()) {
			return nil
		}
	}
	return nil
}
