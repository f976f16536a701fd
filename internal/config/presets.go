package config

func preset(scenario string, duration float64, mutate func(*Config)) *Config {
	c := DefaultConfig()
	c.Scenario = scenario
	c.Duration = duration
	if mutate != nil {
		mutate(c)
	}
	return c
}

// Presets are ready-made configurations per scenario.
var Presets = map[string]map[string]*Config{
	"sphere_drop": {
		"default": preset("sphere_drop", 5, nil),
		"bouncy": preset("sphere_drop", 8, func(c *Config) {
			c.Step.RestitutionThreshold = 0.2
		}),
		"baumgarte": preset("sphere_drop", 5, func(c *Config) {
			c.Step.UseBaumgarte = true
		}),
	},
	"elastic_pair": {
		"default": preset("elastic_pair", 4, func(c *Config) {
			c.Step.Gravity = [3]float64{}
		}),
	},
	"pendulum_chain": {
		"default": preset("pendulum_chain", 10, func(c *Config) {
			c.Step.PositionIterations = 8
		}),
	},
	"projectile_wall": {
		"ccd": preset("projectile_wall", 2, nil),
		"tunnel": preset("projectile_wall", 2, func(c *Config) {
			c.Step.CCD = false
		}),
	},
	"stack": {
		"default": preset("stack", 10, nil),
		"parallel": preset("stack", 10, func(c *Config) {
			c.Step.Workers = 4
		}),
		"deterministic": preset("stack", 10, func(c *Config) {
			c.Step.EnhancedDeterminism = true
		}),
	},
}

func GetPreset(scenario, name string) *Config {
	scenarioPresets, ok := Presets[scenario]
	if !ok {
		return nil
	}
	cfg, ok := scenarioPresets[name]
	if !ok {
		return nil
	}
	return cfg
}

func ListPresets(scenario string) []string {
	scenarioPresets, ok := Presets[scenario]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(scenarioPresets))
	for name := range scenarioPresets {
		names = append(names, name)
	}
	return names
}
