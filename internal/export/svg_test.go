package export

import (
	"context"
	"strings"
	"testing"

	"github.com/veloxphys/velox/internal/config"
	"github.com/veloxphys/velox/internal/scenario"
	"github.com/veloxphys/velox/internal/sim"
	"github.com/veloxphys/velox/internal/world"
)

func traceScenario(t *testing.T, name string, duration float64) *Tracer {
	t.Helper()
	cfg := config.DefaultConfig()
	w := world.New(cfg.Step)
	s, err := scenario.Get(name)
	if err != nil {
		t.Fatalf("get scenario: %v", err)
	}
	if err := s.Build(w); err != nil {
		t.Fatalf("build scenario: %v", err)
	}

	tr := NewTracer()
	r := sim.New(w)
	r.AddObserver(tr)
	if _, err := r.Run(context.Background(), duration); err != nil {
		t.Fatalf("run: %v", err)
	}
	return tr
}

func TestTracerRecordsDynamicBodies(t *testing.T) {
	tr := traceScenario(t, "sphere_drop", 0.5)
	if len(tr.paths) != 1 {
		t.Fatalf("expected 1 traced body, got %d", len(tr.paths))
	}
	for _, pts := range tr.paths {
		if len(pts) != 30 {
			t.Errorf("expected 30 samples, got %d", len(pts))
		}
	}
}

func TestSVGContainsPathPerBody(t *testing.T) {
	tr := traceScenario(t, "elastic_pair", 0.5)
	svg := tr.SVG(400, 300)

	if !strings.HasPrefix(svg, `<?xml version="1.0"`) {
		t.Error("missing xml header")
	}
	if got := strings.Count(svg, "<path"); got != 2 {
		t.Errorf("expected 2 paths, got %d", got)
	}
	if !strings.Contains(svg, `width="400"`) || !strings.Contains(svg, `height="300"`) {
		t.Error("dimensions not applied")
	}
}

func TestSVGEmptyTracer(t *testing.T) {
	svg := NewTracer().SVG(100, 100)
	if strings.Contains(svg, "<path") {
		t.Error("empty tracer should draw no paths")
	}
	if !strings.HasSuffix(svg, "</svg>") {
		t.Error("malformed document")
	}
}
