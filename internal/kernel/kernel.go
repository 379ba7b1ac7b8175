// Package kernel implements the 2D cubic-spline smoothing kernel.
//
// The kernel is written in terms of the inverse smoothing radius invH.
// Its support ends at r = 1/invH (q = 2 in the usual spline notation)
// and it integrates to one over the plane.
package kernel

import "math"

// norm returns the 2D cubic-spline normalization 10/(7*pi*h^2) with
// the spline half-width folded in.
func norm(invH float64) float64 {
	return 10.0 * invH * invH / (7.0 * math.Pi)
}

// Kernel returns the weight of a neighbor at distance r.
func Kernel(r, invH float64) float64 {
	n := norm(invH)
	q := 2.0 * r * invH

	switch {
	case q >= 2.0:
		return 0
	case q < 1.0:
		return n * (4.0 - 6.0*q*q + 3.0*q*q*q)
	default:
		t := 2.0 - q
		return n * t * t * t
	}
}

// DKernel returns dW/dr at distance r.
func DKernel(r, invH float64) float64 {
	n := norm(invH)
	q := 2.0 * r * invH

	switch {
	case q >= 2.0:
		return 0
	case q < 1.0:
		return n * (-12.0*q + 9.0*q*q) * 2.0 * invH
	default:
		t := 2.0 - q
		return -6.0 * n * t * t * invH
	}
}
