package automation

import (
	"context"
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"github.com/san-kum/sphsim/internal/config"
	"github.com/san-kum/sphsim/internal/metrics"
	"github.com/san-kum/sphsim/internal/sim"
	"github.com/san-kum/sphsim/internal/sph"
	"gopkg.in/yaml.v3"
)

// Scenario defines a scripted sequence of runs
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep is one run of a scenario. It starts from Preset (or the
// defaults) and applies Params on top.
type ScenarioStep struct {
	Preset    string             `yaml:"preset"`
	Particles int                `yaml:"particles"`
	Frames    int                `yaml:"frames"`
	Params    map[string]float64 `yaml:"params"`
	SaveAs    string             `yaml:"save_as"`
}

// StepResult pairs a finished step with its final state.
type StepResult struct {
	Name   string
	Config *config.Config
	Result *sim.Result
	Final  *sph.State
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("scenario %s has no steps", path)
	}
	return &scenario, nil
}

// Config resolves the configuration a step runs with.
func (s ScenarioStep) Config() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if s.Preset != "" {
		if cfg = config.GetPreset(s.Preset); cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s", s.Preset)
		}
	}
	if s.Particles > 0 {
		cfg.NumParticles = s.Particles
	}
	if s.Frames > 0 {
		cfg.Frames = s.Frames
	}
	for k, v := range s.Params {
		if err := cfg.SetParam(k, v); err != nil {
			return nil, err
		}
	}
	return cfg, cfg.Validate()
}

// RunScenario executes the steps in order, stopping at the first error.
// onStep, when non-nil, is called after each successful step.
func RunScenario(ctx context.Context, scenario *Scenario, log logr.Logger, onStep func(int, StepResult) error) ([]StepResult, error) {
	results := make([]StepResult, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		cfg, err := step.Config()
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		st, err := sph.New(cfg.Params())
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}

		name := step.SaveAs
		if name == "" {
			name = fmt.Sprintf("%s_step%d", scenario.Name, i+1)
		}
		log.Info("running step", "step", i+1, "of", len(scenario.Steps), "name", name)

		s := sim.New(log.WithValues("step", i+1))
		s.AddMetric(metrics.NewPeakSpeed())
		s.AddMetric(metrics.NewDensityError())

		result, err := s.Run(ctx, st, sim.Config{Frames: cfg.Frames, ValidateState: true})
		if err != nil {
			return results, fmt.Errorf("step %d run: %w", i+1, err)
		}

		sr := StepResult{Name: name, Config: cfg, Result: result, Final: st}
		results = append(results, sr)
		if onStep != nil {
			if err := onStep(i, sr); err != nil {
				return results, err
			}
		}
	}

	return results, nil
}
