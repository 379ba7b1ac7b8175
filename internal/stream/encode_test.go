package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/san-kum/sphsim/internal/sph"
)

func TestEncodePositions(t *testing.T) {
	n := 3
	flat := make([]float64, n*int(sph.NumFields))
	for i := range flat {
		flat[i] = float64(i) + 0.5
	}

	b := EncodePositions(nil, n, flat)
	assert.Len(t, b, 8*n)
	assert.Equal(t, []float32{0.5, 1.5, 2.5, 3.5, 4.5, 5.5}, DecodeFloat32s(b))
}

func TestEncodePositionsLayout(t *testing.T) {
	// 1.0 as little-endian float32 is 00 00 80 3f.
	b := EncodePositions(nil, 1, []float64{1, -2})
	assert.Equal(t, []byte{0x00, 0x00, 0x80, 0x3f, 0x00, 0x00, 0x00, 0xc0}, b)
}

func TestEncodeFlat(t *testing.T) {
	p := sph.DefaultParams()
	p.NumParticles = 10
	st, err := sph.New(p)
	if err != nil {
		t.Fatal(err)
	}
	st.Step()

	b := EncodeFlat([]byte{0xff}, st.Flat())
	assert.Len(t, b, 1+4*len(st.Flat()))

	got := DecodeFloat32s(b[1:])
	for i, v := range st.Flat() {
		assert.InDelta(t, v, float64(got[i]), 1e-5*(1+abs(v)), "value %d", i)
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
