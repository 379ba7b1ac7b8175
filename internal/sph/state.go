package sph

import (
	"fmt"

	"github.com/san-kum/sphsim/internal/spatial"
)

// Field names one per-particle block of the flat buffer. The numeric
// order is the export order and must not change.
type Field int

const (
	FieldX Field = iota
	FieldY
	FieldZ
	FieldVX
	FieldVY
	FieldVZ
	FieldAX
	FieldAY
	FieldAZ
	FieldPrevAX
	FieldPrevAY
	FieldPrevAZ
	FieldRho
	FieldP

	// NumFields is the number of blocks in the flat buffer.
	NumFields
)

var fieldNames = [NumFields]string{
	"x", "y", "z", "vx", "vy", "vz", "ax", "ay", "az", "pax", "pay", "paz", "rho", "p",
}

func (f Field) String() string {
	if f < 0 || f >= NumFields {
		return fmt.Sprintf("Field(%d)", int(f))
	}
	return fieldNames[f]
}

// Fields lists every block in export order.
func Fields() []Field {
	out := make([]Field, NumFields)
	for i := range out {
		out[i] = Field(i)
	}
	return out
}

// Particle is a copy of one particle's quantities.
type Particle struct {
	X, Y, Z                float64
	VX, VY, VZ             float64
	AX, AY, AZ             float64
	PrevAX, PrevAY, PrevAZ float64
	Rho, P                 float64
}

// State is the complete simulation state. The zero value holds no
// particles and steps as a no-op.
type State struct {
	n   int
	buf []float64

	x, y, z       []float64
	vx, vy, vz    []float64
	ax, ay, az    []float64
	pax, pay, paz []float64
	rho, p        []float64

	params Params

	grid         spatial.Grid
	cellContents [][]int
	pointToCell  []int
	neighbors    [][]int

	particleMass        float64
	invH                float64
	referenceDensity    float64
	invReferenceDensity float64
	taitB               float64

	steps int
}

// New allocates a State for p and fills it with the initial layout.
func New(p Params) (*State, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	s := allocate(p)
	s.fill()
	return s, nil
}

func allocate(p Params) *State {
	n := p.NumParticles
	s := &State{
		n:      n,
		buf:    make([]float64, int(NumFields)*n),
		params: p,
	}

	s.x, s.y, s.z = s.block(FieldX), s.block(FieldY), s.block(FieldZ)
	s.vx, s.vy, s.vz = s.block(FieldVX), s.block(FieldVY), s.block(FieldVZ)
	s.ax, s.ay, s.az = s.block(FieldAX), s.block(FieldAY), s.block(FieldAZ)
	s.pax, s.pay, s.paz = s.block(FieldPrevAX), s.block(FieldPrevAY), s.block(FieldPrevAZ)
	s.rho, s.p = s.block(FieldRho), s.block(FieldP)

	s.pointToCell = make([]int, n)
	s.neighbors = make([][]int, n)
	return s
}

// block slices one field out of the backing buffer with its capacity
// capped so appends can never spill into the next block.
func (s *State) block(f Field) []float64 {
	lo, hi := int(f)*s.n, (int(f)+1)*s.n
	return s.buf[lo:hi:hi]
}

// Len returns the particle count.
func (s *State) Len() int { return s.n }

// Field returns the live block for f. It panics on an unknown field.
func (s *State) Field(f Field) []float64 {
	if f < 0 || f >= NumFields {
		panic(fmt.Sprintf("sph: unknown field %d", int(f)))
	}
	return s.block(f)
}

func (s *State) X() []float64   { return s.x }
func (s *State) Y() []float64   { return s.y }
func (s *State) Z() []float64   { return s.z }
func (s *State) Rho() []float64 { return s.rho }

// Flat returns the whole state as one contiguous buffer in Fields
// order. The slice aliases the State.
func (s *State) Flat() []float64 {
	return s.buf[:len(s.buf):len(s.buf)]
}

// ExportTo copies the flat buffer into dst and returns the number of
// values written.
func (s *State) ExportTo(dst []float64) (int, error) {
	if len(dst) < len(s.buf) {
		return 0, fmt.Errorf("%w: need %d values, got %d", ErrBufferTooSmall, len(s.buf), len(dst))
	}
	return copy(dst, s.buf), nil
}

func (s *State) checkIndex(i int) {
	if i < 0 || i >= s.n {
		panic(fmt.Sprintf("sph: particle index %d out of range [0, %d)", i, s.n))
	}
}

// At returns a copy of particle i. It panics when i is out of range.
func (s *State) At(i int) Particle {
	s.checkIndex(i)
	return Particle{
		X: s.x[i], Y: s.y[i], Z: s.z[i],
		VX: s.vx[i], VY: s.vy[i], VZ: s.vz[i],
		AX: s.ax[i], AY: s.ay[i], AZ: s.az[i],
		PrevAX: s.pax[i], PrevAY: s.pay[i], PrevAZ: s.paz[i],
		Rho: s.rho[i], P: s.p[i],
	}
}

// SetPosition moves particle i.
func (s *State) SetPosition(i int, x, y, z float64) {
	s.checkIndex(i)
	s.x[i], s.y[i], s.z[i] = x, y, z
}

// SetVelocity overrides the velocity of particle i.
func (s *State) SetVelocity(i int, vx, vy, vz float64) {
	s.checkIndex(i)
	s.vx[i], s.vy[i], s.vz[i] = vx, vy, vz
}

// Neighbors returns the candidate neighbors (all > i) found by the
// last grid rebuild.
func (s *State) Neighbors(i int) []int {
	s.checkIndex(i)
	return s.neighbors[i]
}

// CellOf returns the linear grid cell particle i occupied at the last
// grid rebuild.
func (s *State) CellOf(i int) int {
	s.checkIndex(i)
	return s.pointToCell[i]
}

// InGrid reports whether every particle can be placed by the next grid
// rebuild. Step panics on a State for which this is false.
func (s *State) InGrid() bool {
	for i := 0; i < s.n; i++ {
		if !s.grid.ContainsPoint(s.x[i], s.y[i], s.z[i], s.invH) {
			return false
		}
	}
	return true
}

// CellContents exposes the buckets of the last grid rebuild.
func (s *State) CellContents() [][]int { return s.cellContents }

func (s *State) Params() Params            { return s.params }
func (s *State) Grid() spatial.Grid        { return s.grid }
func (s *State) ParticleMass() float64     { return s.particleMass }
func (s *State) InvH() float64             { return s.invH }
func (s *State) TaitB() float64            { return s.taitB }
func (s *State) ReferenceDensity() float64 { return s.referenceDensity }

// Steps returns the number of completed steps.
func (s *State) Steps() int { return s.steps }

// Time returns the simulated time elapsed since creation.
func (s *State) Time() float64 { return float64(s.steps) * s.params.Timestep }
