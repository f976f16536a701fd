package storage

import (
	"encoding/json"
	"io"

	"github.com/veloxphys/velox/internal/sim"
)

type ExportData struct {
	ID       string               `json:"id"`
	Scenario string               `json:"scenario"`
	Preset   string               `json:"preset"`
	Dt       float64              `json:"dt"`
	Duration float64              `json:"duration"`
	Steps    int                  `json:"steps"`
	Times    []float64            `json:"times"`
	Tracks   map[string][]float64 `json:"tracks"`
	Metrics  map[string]float64   `json:"metrics"`
}

// ExportJSON writes a run as a single indented JSON document.
func ExportJSON(w io.Writer, meta *RunMetadata, result *sim.Result) error {
	data := ExportData{
		ID:       meta.ID,
		Scenario: meta.Scenario,
		Preset:   meta.Preset,
		Dt:       meta.Dt,
		Duration: meta.Duration,
		Steps:    result.Steps,
		Times:    result.Times,
		Tracks:   result.Tracks,
		Metrics:  result.Metrics,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// ExportStoredJSON rebuilds the export document from a stored run.
func (s *Store) ExportStoredJSON(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	header, rows, err := s.LoadSeries(runID)
	if err != nil {
		return err
	}

	result := &sim.Result{
		Steps:   meta.Steps,
		Times:   make([]float64, len(rows)),
		Tracks:  make(map[string][]float64, len(header)),
		Metrics: meta.Metrics,
	}
	for col := 1; col < len(header); col++ {
		result.Tracks[header[col]] = make([]float64, len(rows))
	}
	for i, row := range rows {
		result.Times[i] = row[0]
		for col := 1; col < len(header) && col < len(row); col++ {
			result.Tracks[header[col]][i] = row[col]
		}
	}
	return ExportJSON(w, meta, result)
}
