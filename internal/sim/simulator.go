package sim

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/san-kum/sphsim/internal/metrics"
	"github.com/san-kum/sphsim/internal/sph"
)

// Simulator drives a State frame by frame, advancing StepsPerFrame
// timesteps between observations.
type Simulator struct {
	metrics   []Metric
	observers []Observer
	log       logr.Logger
}

func New(log logr.Logger) *Simulator {
	return &Simulator{
		metrics:   make([]Metric, 0),
		observers: make([]Observer, 0),
		log:       log,
	}
}

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

// Run advances st by cfg.Frames frames. The returned Result is non-nil
// whenever the configuration is valid, including on cancellation and
// divergence.
func (s *Simulator) Run(ctx context.Context, st *sph.State, cfg Config) (*Result, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	recorded := cfg.Frames + 1
	if cfg.RecordUntil > 0 && cfg.RecordUntil < recorded {
		recorded = cfg.RecordUntil
	}
	result := &Result{
		Frames:  make([]Frame, 0, recorded),
		Metrics: make(map[string]float64),
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	record := func(f Frame) {
		if cfg.RecordUntil == 0 || len(result.Frames) < cfg.RecordUntil {
			result.Frames = append(result.Frames, f)
		}
	}
	record(summarize(st, 0))

	perFrame := st.Params().StepsPerFrame
	s.log.V(1).Info("run started", "particles", st.Len(), "frames", cfg.Frames, "stepsPerFrame", perFrame)

	for i := 1; i <= cfg.Frames; i++ {
		select {
		case <-ctx.Done():
			s.finish(result)
			return result, ctx.Err()
		default:
		}

		if err := step(st, perFrame, cfg.ValidateState); err != nil {
			result.Errors = append(result.Errors, err)
			s.finish(result)
			return result, err
		}

		f := summarize(st, i)
		for _, m := range s.metrics {
			m.Observe(st, f.Time)
		}
		for _, obs := range s.observers {
			obs.OnFrame(st, f)
		}
		record(f)
		result.FramesTaken++
	}

	s.finish(result)
	s.log.V(1).Info("run finished", "frames", result.FramesTaken, "steps", st.Steps())
	return result, nil
}

func (s *Simulator) finish(result *Result) {
	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
}

func unstable(st *sph.State, msg string) error {
	return SimError{Time: st.Time(), Step: st.Steps(), Message: msg, Err: ErrUnstable}
}

// advance runs k steps, stopping at the first one that leaves a
// particle where the next grid rebuild cannot place it.
func advance(st *sph.State, k int) error {
	if !st.InGrid() {
		return unstable(st, "particle outside the grid")
	}
	for i := 0; i < k; i++ {
		st.Step()
		if !st.InGrid() {
			return unstable(st, "particle left the grid")
		}
	}
	return nil
}

// step advances one frame. Unvalidated runs trust the state to stay in
// the grid.
func step(st *sph.State, k int, validate bool) error {
	if !validate {
		st.Advance(k)
		return nil
	}
	if err := advance(st, k); err != nil {
		return err
	}
	if !metrics.Finite(st) {
		return unstable(st, "invalid state (NaN/Inf)")
	}
	return nil
}

func validateConfig(cfg Config) error {
	if cfg.Frames <= 0 {
		return fmt.Errorf("%w: frames must be positive, got %d", ErrInvalidConfig, cfg.Frames)
	}
	if cfg.RecordUntil < 0 {
		return fmt.Errorf("%w: record horizon must not be negative, got %d", ErrInvalidConfig, cfg.RecordUntil)
	}
	return nil
}

func summarize(st *sph.State, index int) Frame {
	return Frame{
		Index:         index,
		Step:          st.Steps(),
		Time:          st.Time(),
		KineticEnergy: metrics.KineticEnergy(st),
		MeanDensity:   metrics.MeanDensity(st),
		MaxSpeed:      metrics.MaxSpeed(st),
	}
}

// RunWithCallback advances frame by frame until cfg.Frames is reached,
// the context ends, or callback returns false.
func (s *Simulator) RunWithCallback(ctx context.Context, st *sph.State, cfg Config, callback func(*sph.State, Frame) bool) error {
	if err := validateConfig(cfg); err != nil {
		return err
	}

	perFrame := st.Params().StepsPerFrame
	for i := 1; i <= cfg.Frames; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := step(st, perFrame, cfg.ValidateState); err != nil {
			return err
		}
		if !callback(st, summarize(st, i)) {
			return nil
		}
	}
	return nil
}
