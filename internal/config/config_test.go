package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Scenario != "sphere_drop" {
		t.Errorf("expected scenario sphere_drop, got %s", cfg.Scenario)
	}
	if cfg.Step.Dt <= 0 {
		t.Error("dt should be positive")
	}
	if cfg.Duration <= 0 {
		t.Error("duration should be positive")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero dt", func(c *Config) { c.Step.Dt = 0 }},
		{"negative duration", func(c *Config) { c.Duration = -1 }},
		{"no velocity iterations", func(c *Config) { c.Step.VelocityIterations = 0 }},
		{"negative prediction", func(c *Config) { c.Step.PredictionDistance = -0.1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")

	cfg := DefaultConfig()
	cfg.Scenario = "stack"
	cfg.Step.Workers = 4
	cfg.Step.CCD = false
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Scenario != "stack" || got.Step.Workers != 4 || got.Step.CCD {
		t.Errorf("round trip lost fields: %+v", got)
	}
	if got.Step.Dt != cfg.Step.Dt {
		t.Errorf("dt changed in round trip: %v vs %v", got.Step.Dt, cfg.Step.Dt)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("step:\n  dt: -1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for negative dt")
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("projectile_wall", "tunnel")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.Step.CCD {
		t.Error("tunnel preset should disable ccd")
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if cfg := GetPreset("sphere_drop", "nonexistent"); cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}
	if cfg := GetPreset("nonexistent", "default"); cfg != nil {
		t.Error("expected nil for nonexistent scenario")
	}
}

func TestListPresets(t *testing.T) {
	presets := ListPresets("stack")
	if len(presets) == 0 {
		t.Error("expected presets for stack")
	}
	if presets := ListPresets("nonexistent"); presets != nil {
		t.Error("expected nil for nonexistent scenario")
	}
}

func TestPresetsValidate(t *testing.T) {
	for scenario, byName := range Presets {
		for name, cfg := range byName {
			if err := cfg.Validate(); err != nil {
				t.Errorf("preset %s/%s invalid: %v", scenario, name, err)
			}
		}
	}
}
