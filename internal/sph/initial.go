package sph

import (
	"math"

	"github.com/san-kum/sphsim/internal/spatial"
)

// wedgeMargin keeps the initial layout off the walls.
const wedgeMargin = 0.1

// extents returns the per-axis domain the grid has to cover. The z
// axis collapses to a plane unless the simulation is 3D.
func (p Params) extents() [][2]float64 {
	z := [2]float64{0, 0}
	if p.Dim > 2 {
		z = [2]float64{p.BoxMin, p.BoxMax}
	}
	return [][2]float64{
		{p.BoxMin, p.BoxMax},
		{p.BoxMin, p.BoxMax},
		z,
	}
}

// fill derives grid geometry and physical constants and places the
// particles. Identical Params always produce an identical State.
func (s *State) fill() {
	p := s.params

	s.grid = spatial.ComputeGrid(p.extents(), p.SmoothingRadius)
	s.cellContents = spatial.NewCellContents(s.grid)

	width := p.DomainWidth()
	s.particleMass = 1.0 / float64(s.n)
	s.invH = 1.0 / p.SmoothingRadius
	s.referenceDensity = 2.0 / (width * width)
	s.invReferenceDensity = 1.0 / s.referenceDensity
	s.taitB = s.referenceDensity * p.TaitC * p.TaitC / p.TaitGamma

	for i := range s.buf {
		s.buf[i] = 0
	}
	s.placeWedge()
	s.steps = 0
}

// placeWedge lays particles out row by row on a right triangle whose
// base sits on the floor and whose vertical edge hugs the left wall.
// Rows get shorter with height; placement stops once N particles exist.
func (s *State) placeWedge() {
	p := s.params

	baseY := p.BoxMin + wedgeMargin
	topY := p.BoxMax - wedgeMargin
	height := topY - baseY
	baseWidth := p.DomainWidth() - 2*wedgeMargin

	aspect := baseWidth / height
	approxRows := math.Sqrt(float64(s.n) / (0.5 * aspect))
	rows := max(int(math.Ceil(approxRows)), 1)

	idx := 0
	for row := 0; row < rows && idx < s.n; row++ {
		progress := 0.0
		if rows > 1 {
			progress = float64(row) / float64(rows-1)
		}
		y := baseY + progress*height
		rowWidth := baseWidth * (1 - progress)

		perRow := max(int(math.Ceil(rowWidth/height*approxRows)), 1)
		spacing := 0.0
		if perRow > 1 {
			spacing = rowWidth / float64(perRow-1)
		}

		for col := 0; col < perRow && idx < s.n; col++ {
			s.x[idx] = p.BoxMin + wedgeMargin + float64(col)*spacing
			s.y[idx] = y
			idx++
		}
	}
}

// Reset restores the initial layout, discarding all motion.
func (s *State) Reset() {
	if s.n == 0 {
		return
	}
	s.fill()
}
