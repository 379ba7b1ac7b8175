package config

import "sort"

var Presets = map[string]*Config{
	"default": DefaultConfig(),
	"web": withDefaults(func(c *Config) {
		c.SmoothingRadius = 0.2
		c.Gravity = -100
	}),
	"calm": withDefaults(func(c *Config) {
		c.Gravity = 0
	}),
	"small": withDefaults(func(c *Config) {
		c.NumParticles = 200
		c.SmoothingRadius = 0.4
		c.Frames = 100
	}),
	"stiff": withDefaults(func(c *Config) {
		c.TaitC = 20
		c.Timestep = 1.0 / 4000.0
		c.StepsPerFrame = 10
	}),
}

func withDefaults(apply func(*Config)) *Config {
	c := DefaultConfig()
	apply(c)
	return c
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	c := *p
	c.Name = name
	return &c
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
