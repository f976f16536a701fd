// Package config holds the YAML-backed run configuration: stepping
// and solver tuning plus the scenario selection used by the CLI.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultDt                  = 1.0 / 60.0
	DefaultDuration            = 10.0
	DefaultGravityY            = -9.81
	DefaultVelocityIterations  = 8
	DefaultPositionIterations  = 4
	DefaultAllowedLinearError  = 0.005
	DefaultAllowedAngularError = 0.035
	DefaultPredictionDistance  = 0.05
	DefaultRestitutionCutoff   = 1.0
	DefaultSleepLinear         = 0.05
	DefaultSleepAngular        = 0.05
	DefaultSleepTime           = 0.5
)

type Config struct {
	Scenario string     `yaml:"scenario"`
	Duration float64    `yaml:"duration"`
	Seed     int64      `yaml:"seed"`
	Step     StepConfig `yaml:"step"`
}

// StepConfig tunes one World step.
type StepConfig struct {
	Dt      float64    `yaml:"dt"`
	Gravity [3]float64 `yaml:"gravity"`

	VelocityIterations int `yaml:"velocity_iterations"`
	PositionIterations int `yaml:"position_iterations"`

	AllowedLinearError  float64 `yaml:"allowed_linear_error"`
	AllowedAngularError float64 `yaml:"allowed_angular_error"`
	// PredictionDistance is how far ahead of actual touch the narrow
	// phase emits speculative contacts.
	PredictionDistance   float64 `yaml:"prediction_distance"`
	RestitutionThreshold float64 `yaml:"restitution_threshold"`
	// UseBaumgarte selects velocity-bias drift correction instead of
	// the positional pass.
	UseBaumgarte bool `yaml:"use_baumgarte"`

	SleepLinearThreshold  float64 `yaml:"sleep_linear_threshold"`
	SleepAngularThreshold float64 `yaml:"sleep_angular_threshold"`
	SleepTime             float64 `yaml:"sleep_time"`

	CCD bool `yaml:"ccd_enabled"`

	// Workers > 1 solves islands on a pool. EnhancedDeterminism
	// forces serial execution and sorted iteration everywhere so two
	// identical runs match bit for bit.
	Workers             int  `yaml:"workers"`
	EnhancedDeterminism bool `yaml:"enhanced_determinism"`
}

func DefaultConfig() *Config {
	return &Config{
		Scenario: "sphere_drop",
		Duration: DefaultDuration,
		Step:     DefaultStep(),
	}
}

func DefaultStep() StepConfig {
	return StepConfig{
		Dt:                    DefaultDt,
		Gravity:               [3]float64{0, DefaultGravityY, 0},
		VelocityIterations:    DefaultVelocityIterations,
		PositionIterations:    DefaultPositionIterations,
		AllowedLinearError:    DefaultAllowedLinearError,
		AllowedAngularError:   DefaultAllowedAngularError,
		PredictionDistance:    DefaultPredictionDistance,
		RestitutionThreshold:  DefaultRestitutionCutoff,
		SleepLinearThreshold:  DefaultSleepLinear,
		SleepAngularThreshold: DefaultSleepAngular,
		SleepTime:             DefaultSleepTime,
		CCD:                   true,
		Workers:               1,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if c.Duration <= 0 {
		return fmt.Errorf("config: duration %v must be positive", c.Duration)
	}
	return c.Step.Validate()
}

func (s *StepConfig) Validate() error {
	if s.Dt <= 0 {
		return fmt.Errorf("config: dt %v must be positive", s.Dt)
	}
	if s.VelocityIterations < 1 {
		return fmt.Errorf("config: velocity_iterations %d must be at least 1", s.VelocityIterations)
	}
	if s.PositionIterations < 0 {
		return fmt.Errorf("config: position_iterations %d must not be negative", s.PositionIterations)
	}
	if s.PredictionDistance < 0 {
		return fmt.Errorf("config: prediction_distance %v must not be negative", s.PredictionDistance)
	}
	if s.AllowedLinearError < 0 || s.AllowedAngularError < 0 {
		return fmt.Errorf("config: error tolerances must not be negative")
	}
	return nil
}
