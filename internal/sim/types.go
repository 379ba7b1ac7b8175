package sim

import (
	"errors"
	"fmt"

	"github.com/san-kum/sphsim/internal/sph"
)

var (
	ErrInvalidConfig = errors.New("sim: invalid run configuration")
	ErrUnstable      = errors.New("sim: state diverged")
)

// Metric accumulates a scalar over the frames of one run.
type Metric interface {
	Name() string
	Observe(st *sph.State, t float64)
	Value() float64
	Reset()
}

// Observer is notified after every completed frame.
type Observer interface {
	OnFrame(st *sph.State, f Frame)
}

type Config struct {
	Frames int
	// RecordUntil stops recording frames after this many; zero records
	// every frame. The run itself still covers Frames.
	RecordUntil   int
	ValidateState bool
}

// Frame is the per-frame summary recorded during a run.
type Frame struct {
	Index         int     `json:"frame"`
	Step          int     `json:"step"`
	Time          float64 `json:"time"`
	KineticEnergy float64 `json:"kinetic_energy"`
	MeanDensity   float64 `json:"mean_density"`
	MaxSpeed      float64 `json:"max_speed"`
}

type Result struct {
	Frames      []Frame
	Metrics     map[string]float64
	FramesTaken int
	Errors      []error
}

// SimError locates a failure within a run.
type SimError struct {
	Time    float64
	Step    int
	Message string
	Err     error
}

func (e SimError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %s", e.Step, e.Time, e.Message)
}

func (e SimError) Unwrap() error { return e.Err }
