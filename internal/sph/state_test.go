package sph

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Params", func() {
	It("accepts the defaults", func() {
		Expect(DefaultParams().Validate()).To(Succeed())
	})

	DescribeTable("rejects invalid configurations",
		func(mutate func(*Params), want error) {
			p := DefaultParams()
			mutate(&p)
			_, err := New(p)
			Expect(err).To(MatchError(want))
		},
		Entry("zero particles", func(p *Params) { p.NumParticles = 0 }, ErrNoParticles),
		Entry("negative particles", func(p *Params) { p.NumParticles = -4 }, ErrNoParticles),
		Entry("zero timestep", func(p *Params) { p.Timestep = 0 }, ErrInvalidParams),
		Entry("zero steps per frame", func(p *Params) { p.StepsPerFrame = 0 }, ErrInvalidParams),
		Entry("zero smoothing radius", func(p *Params) { p.SmoothingRadius = 0 }, ErrInvalidParams),
		Entry("one dimension", func(p *Params) { p.Dim = 1 }, ErrInvalidParams),
		Entry("inverted box", func(p *Params) { p.BoxMin, p.BoxMax = 1, -1 }, ErrInvalidParams),
		Entry("zero gamma", func(p *Params) { p.TaitGamma = 0 }, ErrInvalidParams),
		Entry("NaN timestep", func(p *Params) { p.Timestep = math.NaN() }, ErrInvalidParams),
		Entry("infinite timestep", func(p *Params) { p.Timestep = math.Inf(1) }, ErrInvalidParams),
		Entry("NaN smoothing radius", func(p *Params) { p.SmoothingRadius = math.NaN() }, ErrInvalidParams),
		Entry("infinite smoothing radius", func(p *Params) { p.SmoothingRadius = math.Inf(1) }, ErrInvalidParams),
		Entry("grid-exploding smoothing radius", func(p *Params) { p.SmoothingRadius = 1e-6 }, ErrInvalidParams),
		Entry("NaN box min", func(p *Params) { p.BoxMin = math.NaN() }, ErrInvalidParams),
		Entry("infinite box max", func(p *Params) { p.BoxMax = math.Inf(1) }, ErrInvalidParams),
		Entry("NaN gravity", func(p *Params) { p.Gravity = math.NaN() }, ErrInvalidParams),
		Entry("infinite gravity", func(p *Params) { p.Gravity = math.Inf(-1) }, ErrInvalidParams),
		Entry("zero tait c", func(p *Params) { p.TaitC = 0 }, ErrInvalidParams),
		Entry("NaN tait c", func(p *Params) { p.TaitC = math.NaN() }, ErrInvalidParams),
		Entry("NaN gamma", func(p *Params) { p.TaitGamma = math.NaN() }, ErrInvalidParams),
	)

	It("accepts the finest radius the grid limit allows in 3D", func() {
		p := DefaultParams()
		p.Dim = 3
		p.SmoothingRadius = p.DomainWidth() / 150
		Expect(p.Validate()).To(Succeed())
	})
})

var _ = Describe("State", func() {
	var (
		p  Params
		st *State
	)

	BeforeEach(func() {
		p = DefaultParams()
		var err error
		st, err = New(p)
		Expect(err).NotTo(HaveOccurred())
	})

	It("derives the physical constants", func() {
		width := p.BoxMax - p.BoxMin
		rho0 := 2 / (width * width)

		Expect(st.ParticleMass()).To(BeNumerically("~", 1.0/float64(p.NumParticles), 1e-15))
		Expect(st.InvH()).To(BeNumerically("~", 1/p.SmoothingRadius, 1e-12))
		Expect(st.ReferenceDensity()).To(BeNumerically("~", rho0, 1e-12))
		Expect(st.TaitB()).To(BeNumerically("~", rho0*p.TaitC*p.TaitC/p.TaitGamma, 1e-12))
	})

	It("exposes fourteen contiguous blocks in export order", func() {
		n := st.Len()
		flat := st.Flat()
		Expect(flat).To(HaveLen(14 * n))
		Expect(Fields()).To(HaveLen(14))

		st.Field(FieldRho)[3] = 42
		Expect(flat[int(FieldRho)*n+3]).To(Equal(42.0))
		Expect(st.At(3).Rho).To(Equal(42.0))

		for i := 0; i < n; i++ {
			Expect(flat[int(FieldY)*n+i]).To(Equal(st.Y()[i]))
		}
		Expect(FieldPrevAX.String()).To(Equal("pax"))
		Expect(FieldP.String()).To(Equal("p"))
	})

	It("caps block capacity at the block boundary", func() {
		xs := st.Field(FieldX)
		Expect(cap(xs)).To(Equal(st.Len()))
	})

	It("panics on out-of-range access", func() {
		Expect(func() { st.At(-1) }).To(Panic())
		Expect(func() { st.At(st.Len()) }).To(Panic())
		Expect(func() { st.SetPosition(st.Len(), 0, 0, 0) }).To(Panic())
		Expect(func() { st.Field(NumFields) }).To(Panic())
	})

	It("exports into a caller-owned buffer", func() {
		dst := make([]float64, len(st.Flat()))
		n, err := st.ExportTo(dst)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(len(dst)))
		Expect(dst).To(Equal(st.Flat()))

		_, err = st.ExportTo(make([]float64, 3))
		Expect(err).To(MatchError(ErrBufferTooSmall))
	})

	It("places particles deterministically inside the wedge", func() {
		other, err := New(p)
		Expect(err).NotTo(HaveOccurred())
		Expect(other.Flat()).To(Equal(st.Flat()))

		lo, hi := p.BoxMin+wedgeMargin-1e-12, p.BoxMax-wedgeMargin+1e-12
		for i := 0; i < st.Len(); i++ {
			pt := st.At(i)
			Expect(pt.X).To(BeNumerically(">=", lo))
			Expect(pt.X).To(BeNumerically("<=", hi))
			Expect(pt.Y).To(BeNumerically(">=", lo))
			Expect(pt.Y).To(BeNumerically("<=", hi))
			Expect(pt.Z).To(BeZero())
			Expect(pt.VX).To(BeZero())
			Expect(pt.VY).To(BeZero())
			Expect(pt.Rho).To(BeZero())
			Expect(pt.P).To(BeZero())
		}
	})

	It("fills rows from the floor upward with shrinking width", func() {
		ys := st.Y()
		Expect(ys[0]).To(BeNumerically("~", p.BoxMin+wedgeMargin, 1e-12))
		for i := 1; i < st.Len(); i++ {
			Expect(ys[i]).To(BeNumerically(">=", ys[i-1]))
		}
	})

	It("restores the initial layout on Reset", func() {
		before := append([]float64(nil), st.Flat()...)
		st.Advance(3)
		Expect(st.Steps()).To(Equal(3))
		st.Reset()
		Expect(st.Steps()).To(BeZero())
		Expect(st.Flat()).To(Equal(before))
	})

	It("reports elapsed time from the step count", func() {
		st.Advance(4)
		Expect(st.Time()).To(BeNumerically("~", 4*p.Timestep, 1e-15))
		Expect(math.IsNaN(st.Time())).To(BeFalse())
	})
})
