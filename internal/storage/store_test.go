package storage

import (
	"bytes"
	"encoding/json"
	"math"
	"testing"

	"github.com/veloxphys/velox/internal/sim"
)

func sampleResult() *sim.Result {
	return &sim.Result{
		Steps: 3,
		Times: []float64{0.1, 0.2, 0.3},
		Tracks: map[string][]float64{
			"energy":   {5.0, 4.5, 4.25},
			"momentum": {1.0, 1.0, 1.0},
		},
		Metrics: map[string]float64{"energy": 4.25, "momentum": 1.0},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatal(err)
	}

	runID, err := st.Save("sphere_drop", "default", 1.0/60.0, 0.05, 42, sampleResult())
	if err != nil {
		t.Fatal(err)
	}

	meta, err := st.Load(runID)
	if err != nil {
		t.Fatal(err)
	}
	if meta.Scenario != "sphere_drop" || meta.Preset != "default" {
		t.Errorf("meta = %+v, want sphere_drop/default", meta)
	}
	if meta.Seed != 42 || meta.Steps != 3 {
		t.Errorf("seed/steps = %d/%d, want 42/3", meta.Seed, meta.Steps)
	}
	if math.Abs(meta.Metrics["energy"]-4.25) > 1e-9 {
		t.Errorf("stored energy metric = %v", meta.Metrics["energy"])
	}

	header, rows, err := st.LoadSeries(runID)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"time", "energy", "momentum"}
	if len(header) != len(want) {
		t.Fatalf("header = %v, want %v", header, want)
	}
	for i := range want {
		if header[i] != want[i] {
			t.Fatalf("header = %v, want %v", header, want)
		}
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if math.Abs(rows[1][1]-4.5) > 1e-6 {
		t.Errorf("rows[1] energy = %v, want 4.5", rows[1][1])
	}
}

func TestListSkipsJunk(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Save("stack", "default", 1.0/60.0, 1, 0, sampleResult()); err != nil {
		t.Fatal(err)
	}

	runs, err := st.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
}

func TestListEmptyDir(t *testing.T) {
	st := New(t.TempDir() + "/missing")
	runs, err := st.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 0 {
		t.Fatalf("got %d runs from a missing dir", len(runs))
	}
}

func TestExportStoredJSON(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatal(err)
	}
	runID, err := st.Save("elastic_pair", "default", 1.0/60.0, 0.05, 7, sampleResult())
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := st.ExportStoredJSON(&buf, runID); err != nil {
		t.Fatal(err)
	}

	var data ExportData
	if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
		t.Fatal(err)
	}
	if data.Scenario != "elastic_pair" {
		t.Errorf("scenario = %q", data.Scenario)
	}
	if len(data.Tracks["energy"]) != 3 {
		t.Errorf("exported energy track has %d samples, want 3", len(data.Tracks["energy"]))
	}
}
