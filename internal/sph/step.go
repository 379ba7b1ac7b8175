package sph

import (
	"math"

	"github.com/san-kum/sphsim/internal/kernel"
	"github.com/san-kum/sphsim/internal/spatial"
)

// nearFieldCutoff is the fraction of the smoothing radius below which
// pair forces are skipped; the pressure gradient diverges as r -> 0.
const nearFieldCutoff = 0.2

// Step advances the state by exactly one timestep.
func (s *State) Step() {
	if s.n == 0 {
		return
	}

	s.rebuildGrid()
	s.beginStep()
	s.accumulateDensity()
	s.computePressure()
	s.applyGravity()
	s.accumulatePressureForces()
	// Walls act on the positions left by the previous integration, so
	// reflection has to run before this step's displacement.
	s.reflect()
	s.leapfrog()

	s.steps++
}

// Advance runs k steps.
func (s *State) Advance(k int) {
	for i := 0; i < k; i++ {
		s.Step()
	}
}

func (s *State) rebuildGrid() {
	spatial.Populate(s.grid, s.x, s.y, s.z, s.invH, s.cellContents, s.pointToCell)
	spatial.FindNeighbors(s.grid, s.cellContents, s.neighbors)
}

func (s *State) beginStep() {
	copy(s.pax, s.ax)
	copy(s.pay, s.ay)
	copy(s.paz, s.az)
	clear(s.ax)
	clear(s.ay)
	clear(s.az)
	clear(s.rho)
}

func (s *State) accumulateDensity() {
	h := s.params.SmoothingRadius
	h2 := h * h
	m := s.particleMass

	self := m * kernel.Kernel(0, s.invH)
	for i := 0; i < s.n; i++ {
		s.rho[i] += self

		for _, j := range s.neighbors[i] {
			dx := s.x[i] - s.x[j]
			dy := s.y[i] - s.y[j]
			dz := s.z[i] - s.z[j]
			r2 := dx*dx + dy*dy + dz*dz
			if r2 > h2 {
				continue
			}

			w := m * kernel.Kernel(math.Sqrt(r2), s.invH)
			s.rho[i] += w
			s.rho[j] += w
		}
	}
}

// computePressure applies the Tait equation of state.
func (s *State) computePressure() {
	gamma := s.params.TaitGamma
	for i := 0; i < s.n; i++ {
		s.p[i] = s.taitB * (math.Pow(s.rho[i]*s.invReferenceDensity, gamma) - 1)
	}
}

func (s *State) applyGravity() {
	g := s.params.Gravity
	for i := 0; i < s.n; i++ {
		s.ay[i] += g
	}
}

// accumulatePressureForces adds the symmetric pressure-gradient
// acceleration for each candidate pair; i and j receive equal and
// opposite contributions from a single kernel derivative evaluation.
func (s *State) accumulatePressureForces() {
	h := s.params.SmoothingRadius
	h2 := h * h
	minR := nearFieldCutoff * h
	m := s.particleMass

	for i := 0; i < s.n; i++ {
		rhoI := s.rho[i]
		if rhoI <= 0 {
			continue
		}
		termI := s.p[i] / (rhoI * rhoI)

		for _, j := range s.neighbors[i] {
			rhoJ := s.rho[j]
			if rhoJ <= 0 {
				continue
			}

			dx := s.x[i] - s.x[j]
			dy := s.y[i] - s.y[j]
			dz := s.z[i] - s.z[j]
			r2 := dx*dx + dy*dy + dz*dz
			if r2 > h2 {
				continue
			}
			r := math.Sqrt(r2)
			if r < minR {
				continue
			}

			f := m * (termI + s.p[j]/(rhoJ*rhoJ)) * kernel.DKernel(r, s.invH) / r
			s.ax[i] -= f * dx
			s.ay[i] -= f * dy
			s.az[i] -= f * dz
			s.ax[j] += f * dx
			s.ay[j] += f * dy
			s.az[j] += f * dz
		}
	}
}

// reflect clamps each particle into the box and reverses the velocity
// component of every axis it crossed. The z axis only takes part in 3D.
func (s *State) reflect() {
	lo, hi := s.params.BoxMin, s.params.BoxMax
	for i := 0; i < s.n; i++ {
		reflectAxis(&s.x[i], &s.vx[i], lo, hi)
		reflectAxis(&s.y[i], &s.vy[i], lo, hi)
		if s.params.Dim > 2 {
			reflectAxis(&s.z[i], &s.vz[i], lo, hi)
		}
	}
}

func reflectAxis(pos, vel *float64, lo, hi float64) {
	switch {
	case *pos < lo:
		*pos = lo
		*vel = -*vel
	case *pos > hi:
		*pos = hi
		*vel = -*vel
	}
}

// leapfrog is the velocity-Verlet update using last step's
// acceleration for the drift and the average for the kick.
func (s *State) leapfrog() {
	dt := s.params.Timestep
	halfDt2 := 0.5 * dt * dt
	halfDt := 0.5 * dt

	for i := 0; i < s.n; i++ {
		s.x[i] += s.vx[i]*dt + s.pax[i]*halfDt2
		s.y[i] += s.vy[i]*dt + s.pay[i]*halfDt2
		s.vx[i] += (s.pax[i] + s.ax[i]) * halfDt
		s.vy[i] += (s.pay[i] + s.ay[i]) * halfDt

		if s.params.Dim > 2 {
			s.z[i] += s.vz[i]*dt + s.paz[i]*halfDt2
			s.vz[i] += (s.paz[i] + s.az[i]) * halfDt
		}
	}
}
