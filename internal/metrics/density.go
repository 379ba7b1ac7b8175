package metrics

import (
	"math"

	"github.com/san-kum/sphsim/internal/sph"
)

// DensityError is the worst relative deviation of the mean density from
// the reference density over a run.
type DensityError struct {
	worst float64
}

func NewDensityError() *DensityError { return &DensityError{} }

func (d *DensityError) Name() string { return "density_error" }

func (d *DensityError) Observe(st *sph.State, t float64) {
	ref := st.ReferenceDensity()
	if ref == 0 {
		return
	}
	d.worst = math.Max(d.worst, math.Abs(MeanDensity(st)-ref)/ref)
}

func (d *DensityError) Value() float64 { return d.worst }
func (d *DensityError) Reset()         { d.worst = 0 }

// PeakSpeed is the fastest particle seen during a run.
type PeakSpeed struct {
	peak float64
}

func NewPeakSpeed() *PeakSpeed { return &PeakSpeed{} }

func (p *PeakSpeed) Name() string { return "peak_speed" }

func (p *PeakSpeed) Observe(st *sph.State, t float64) {
	p.peak = math.Max(p.peak, MaxSpeed(st))
}

func (p *PeakSpeed) Value() float64 { return p.peak }
func (p *PeakSpeed) Reset()         { p.peak = 0 }

// CellLoad is the most crowded grid cell seen during a run.
type CellLoad struct {
	peak int
}

func NewCellLoad() *CellLoad { return &CellLoad{} }

func (c *CellLoad) Name() string { return "cell_load" }

func (c *CellLoad) Observe(st *sph.State, t float64) {
	c.peak = max(c.peak, MaxCellLoad(st))
}

func (c *CellLoad) Value() float64 { return float64(c.peak) }
func (c *CellLoad) Reset()         { c.peak = 0 }
