package sph

import (
	"fmt"
	"math"
)

// Params is the fixed configuration of a simulation.
type Params struct {
	Timestep        float64
	StepsPerFrame   int
	NumParticles    int
	SmoothingRadius float64
	Dim             int
	BoxMin          float64
	BoxMax          float64
	Gravity         float64
	TaitC           float64
	TaitGamma       float64
}

func DefaultParams() Params {
	return Params{
		Timestep:        1.0 / 2000.0,
		StepsPerFrame:   5,
		NumParticles:    1000,
		SmoothingRadius: 0.3,
		Dim:             2,
		BoxMin:          -1.6,
		BoxMax:          1.6,
		Gravity:         -200.0,
		TaitC:           10.0,
		TaitGamma:       7.0,
	}
}

// maxCells bounds the grid a smoothing radius may produce.
const maxCells = 1 << 22

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Validate rejects configurations that cannot produce a State. The
// comparisons are written so that NaN fails them.
func (p Params) Validate() error {
	if p.NumParticles <= 0 {
		return fmt.Errorf("%w: got %d", ErrNoParticles, p.NumParticles)
	}
	if !(p.Timestep > 0) || !finite(p.Timestep) {
		return fmt.Errorf("%w: timestep must be positive and finite, got %g", ErrInvalidParams, p.Timestep)
	}
	if p.StepsPerFrame <= 0 {
		return fmt.Errorf("%w: steps per frame must be positive, got %d", ErrInvalidParams, p.StepsPerFrame)
	}
	if p.Dim != 2 && p.Dim != 3 {
		return fmt.Errorf("%w: dim must be 2 or 3, got %d", ErrInvalidParams, p.Dim)
	}
	if !finite(p.BoxMin) || !finite(p.BoxMax) {
		return fmt.Errorf("%w: box bounds must be finite, got [%g, %g]", ErrInvalidParams, p.BoxMin, p.BoxMax)
	}
	if !(p.BoxMax > p.BoxMin) {
		return fmt.Errorf("%w: box max %g must exceed box min %g", ErrInvalidParams, p.BoxMax, p.BoxMin)
	}
	if !(p.SmoothingRadius > 0) || !finite(p.SmoothingRadius) {
		return fmt.Errorf("%w: smoothing radius must be positive and finite, got %g", ErrInvalidParams, p.SmoothingRadius)
	}
	if cells := p.gridCells(); cells > maxCells {
		return fmt.Errorf("%w: smoothing radius %g needs %.0f grid cells, limit %d", ErrInvalidParams, p.SmoothingRadius, cells, maxCells)
	}
	if !finite(p.Gravity) {
		return fmt.Errorf("%w: gravity must be finite, got %g", ErrInvalidParams, p.Gravity)
	}
	if !(p.TaitC > 0) || !finite(p.TaitC) {
		return fmt.Errorf("%w: tait c must be positive and finite, got %g", ErrInvalidParams, p.TaitC)
	}
	if !(p.TaitGamma > 0) || !finite(p.TaitGamma) {
		return fmt.Errorf("%w: tait gamma must be positive and finite, got %g", ErrInvalidParams, p.TaitGamma)
	}
	return nil
}

// gridCells estimates the cell count of the grid fill would build, in
// floating point so absurd radii cannot overflow.
func (p Params) gridCells() float64 {
	perAxis := math.Ceil(p.DomainWidth()/p.SmoothingRadius) + 3
	z := 3.0
	if p.Dim > 2 {
		z = perAxis
	}
	return perAxis * perAxis * z
}

// DomainWidth is the edge length of the square box.
func (p Params) DomainWidth() float64 { return p.BoxMax - p.BoxMin }
