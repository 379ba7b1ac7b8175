package metrics

import (
	"math"

	"github.com/san-kum/sphsim/internal/sph"
	"github.com/san-kum/sphsim/internal/spatial"
)

// KineticEnergy returns sum(0.5 m |v|^2) over all particles.
func KineticEnergy(st *sph.State) float64 {
	vx, vy, vz := st.Field(sph.FieldVX), st.Field(sph.FieldVY), st.Field(sph.FieldVZ)
	var sum float64
	for i := range vx {
		sum += vx[i]*vx[i] + vy[i]*vy[i] + vz[i]*vz[i]
	}
	return 0.5 * st.ParticleMass() * sum
}

// PotentialEnergy is the gravitational energy relative to the floor.
func PotentialEnergy(st *sph.State) float64 {
	p := st.Params()
	var sum float64
	for _, y := range st.Y() {
		sum += y - p.BoxMin
	}
	return -p.Gravity * st.ParticleMass() * sum
}

func MeanDensity(st *sph.State) float64 {
	rho := st.Rho()
	if len(rho) == 0 {
		return 0
	}
	var sum float64
	for _, r := range rho {
		sum += r
	}
	return sum / float64(len(rho))
}

func MaxSpeed(st *sph.State) float64 {
	vx, vy, vz := st.Field(sph.FieldVX), st.Field(sph.FieldVY), st.Field(sph.FieldVZ)
	var peak float64
	for i := range vx {
		peak = math.Max(peak, vx[i]*vx[i]+vy[i]*vy[i]+vz[i]*vz[i])
	}
	return math.Sqrt(peak)
}

// MaxCellLoad returns the most particles sharing one grid cell at the
// last rebuild.
func MaxCellLoad(st *sph.State) int {
	peak, _ := spatial.Occupancy(st.CellContents())
	return peak
}

// Finite reports whether every value in the flat buffer is finite.
func Finite(st *sph.State) bool {
	for _, v := range st.Flat() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
