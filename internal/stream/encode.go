package stream

import (
	"encoding/binary"
	"math"
)

// EncodePositions appends the x block followed by the y block of a flat
// buffer to dst as little-endian float32, 8·n bytes in total with no
// header.
func EncodePositions(dst []byte, n int, flat []float64) []byte {
	return appendFloat32s(dst, flat[:2*n])
}

// EncodeFlat appends the whole flat buffer to dst as little-endian
// float32 in block order.
func EncodeFlat(dst []byte, flat []float64) []byte {
	return appendFloat32s(dst, flat)
}

func appendFloat32s(dst []byte, vals []float64) []byte {
	for _, v := range vals {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(float32(v)))
	}
	return dst
}

// DecodeFloat32s reads back a frame produced by either encoder.
func DecodeFloat32s(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out
}
