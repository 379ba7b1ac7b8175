package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/sphsim/internal/sph"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Params() != sph.DefaultParams() {
		t.Errorf("expected default params %+v, got %+v", sph.DefaultParams(), cfg.Params())
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.yaml")

	cfg := DefaultConfig()
	cfg.NumParticles = 321
	cfg.Gravity = -9.81
	cfg.Dim = 3

	if err := Save(path, cfg); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if *got != *cfg {
		t.Errorf("expected %+v, got %+v", cfg, got)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	partial := []byte("num_particles: 50\ngravity: -1\n")
	if err := os.WriteFile(path, partial, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.NumParticles != 50 || cfg.Gravity != -1 {
		t.Errorf("expected overrides applied, got %+v", cfg)
	}
	if cfg.SmoothingRadius != DefaultSmoothingRadius {
		t.Errorf("expected default smoothing radius, got %f", cfg.SmoothingRadius)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadRejectsNonFiniteValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"nan timestep", "timestep: .nan\n"},
		{"nan smoothing radius", "smoothing_radius: .nan\n"},
		{"infinite box", "box_max: .inf\n"},
		{"infinite gravity", "gravity: -.inf\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.body), 0644); err != nil {
				t.Fatal(err)
			}
			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("load failed: %v", err)
			}
			if err := cfg.Validate(); !errors.Is(err, sph.ErrInvalidParams) {
				t.Errorf("expected ErrInvalidParams, got %v", err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"no particles", func(c *Config) { c.NumParticles = 0 }, sph.ErrNoParticles},
		{"bad dim", func(c *Config) { c.Dim = 4 }, sph.ErrInvalidParams},
		{"no frames", func(c *Config) { c.Frames = 0 }, nil},
		{"negative record", func(c *Config) { c.RecordUntil = -1 }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("web")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.SmoothingRadius != 0.2 || cfg.Gravity != -100 {
		t.Errorf("unexpected web preset: %+v", cfg)
	}
	if cfg.Name != "web" {
		t.Errorf("expected name web, got %q", cfg.Name)
	}

	cfg.Gravity = 5
	if Presets["web"].Gravity != -100 {
		t.Error("GetPreset returned a shared pointer")
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if cfg := GetPreset("nonexistent"); cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}
}

func TestListPresets(t *testing.T) {
	names := ListPresets()
	if len(names) != len(Presets) {
		t.Fatalf("expected %d presets, got %d", len(Presets), len(names))
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Errorf("presets not sorted: %v", names)
		}
	}
	for _, name := range names {
		if err := GetPreset(name).Validate(); err != nil {
			t.Errorf("preset %s invalid: %v", name, err)
		}
	}
}

func TestSetParam(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.SetParam("gravity", -1); err != nil {
		t.Fatal(err)
	}
	if cfg.GetParams()["gravity"] != -1 {
		t.Errorf("expected gravity -1, got %f", cfg.Gravity)
	}
	if err := cfg.SetParam("viscosity", 1); err == nil {
		t.Error("expected error for unknown parameter")
	}
}
