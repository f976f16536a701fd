package experiment

import (
	"context"
	"testing"
)

func TestSweepRunsEveryCell(t *testing.T) {
	s := &Sweep{
		Scenario: "sphere_drop",
		Dts:      []float64{1.0 / 30.0, 1.0 / 60.0, 1.0 / 120.0},
		Duration: 1.0,
	}

	points, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}

	for i, p := range points {
		if p.Dt != s.Dts[i] {
			t.Errorf("point %d: dt %v, want %v", i, p.Dt, s.Dts[i])
		}
		wantSteps := int(s.Duration/s.Dts[i] + 0.5)
		if p.Steps != wantSteps {
			t.Errorf("point %d: %d steps, want %d", i, p.Steps, wantSteps)
		}
		if _, ok := p.Metrics["energy_drift"]; !ok {
			t.Errorf("point %d: missing energy_drift metric", i)
		}
	}
}

func TestSweepRejectsEmptyGrid(t *testing.T) {
	s := &Sweep{Scenario: "sphere_drop", Duration: 1.0}
	if _, err := s.Run(context.Background()); err == nil {
		t.Fatal("expected error for empty dt grid")
	}
}

func TestSweepUnknownScenario(t *testing.T) {
	s := &Sweep{
		Scenario: "nope",
		Dts:      []float64{1.0 / 60.0},
		Duration: 0.5,
	}
	if _, err := s.Run(context.Background()); err == nil {
		t.Fatal("expected error for unknown scenario")
	}
}

func TestSweepUnknownPreset(t *testing.T) {
	s := &Sweep{
		Scenario: "sphere_drop",
		Preset:   "nope",
		Dts:      []float64{1.0 / 60.0},
		Duration: 0.5,
	}
	if _, err := s.Run(context.Background()); err == nil {
		t.Fatal("expected error for unknown preset")
	}
}
