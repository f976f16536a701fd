package sim

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/veloxphys/velox/internal/config"
	"github.com/veloxphys/velox/internal/metrics"
	"github.com/veloxphys/velox/internal/scenario"
	"github.com/veloxphys/velox/internal/world"
)

func buildRunner(t *testing.T, scenarioName string) *Runner {
	t.Helper()
	w := world.New(config.DefaultStep())
	s, err := scenario.Get(scenarioName)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Build(w); err != nil {
		t.Fatal(err)
	}
	return New(w)
}

func TestRunProducesSeries(t *testing.T) {
	r := buildRunner(t, "sphere_drop")
	r.AddMetric(metrics.NewEnergy())
	r.AddMetric(metrics.NewPenetration())

	result, err := r.Run(context.Background(), 1.0)
	if err != nil {
		t.Fatal(err)
	}
	if result.Steps != 60 {
		t.Errorf("Steps = %d, want 60", result.Steps)
	}
	if len(result.Times) != 60 {
		t.Errorf("len(Times) = %d, want 60", len(result.Times))
	}
	for _, name := range []string{"energy", "max_penetration"} {
		if len(result.Tracks[name]) != 60 {
			t.Errorf("track %q has %d samples, want 60", name, len(result.Tracks[name]))
		}
		if _, ok := result.Metrics[name]; !ok {
			t.Errorf("final metrics missing %q", name)
		}
	}
	if result.Events[world.EventContactBegin] == 0 {
		t.Error("no contact events recorded for a dropped sphere")
	}
}

func TestRunRejectsBadDuration(t *testing.T) {
	r := buildRunner(t, "sphere_drop")
	if _, err := r.Run(context.Background(), 0); err == nil {
		t.Fatal("expected error for zero duration")
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	r := buildRunner(t, "stack")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := r.Run(ctx, 10)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if result.Steps != 0 {
		t.Errorf("Steps = %d after immediate cancel", result.Steps)
	}
}

func TestRunWithCallbackStopsEarly(t *testing.T) {
	r := buildRunner(t, "sphere_drop")
	calls := 0
	err := r.RunWithCallback(context.Background(), 10, func(t float64) bool {
		calls++
		return calls < 5
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 5 {
		t.Errorf("callback ran %d times, want 5", calls)
	}
}

func TestEnsembleRunsAreIndependent(t *testing.T) {
	results, err := RunEnsemble(context.Background(), 4, 1.0, func(i int) (*Runner, error) {
		w := world.New(config.DefaultStep())
		s, err := scenario.Get("stack")
		if err != nil {
			return nil, err
		}
		if err := s.Build(w); err != nil {
			return nil, err
		}
		return New(w), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 4 {
		t.Fatalf("got %d results, want 4", len(results))
	}
	for i := 1; i < len(results); i++ {
		if !reflect.DeepEqual(results[0].Events, results[i].Events) {
			t.Errorf("run %d diverged from run 0", i)
		}
	}
}
