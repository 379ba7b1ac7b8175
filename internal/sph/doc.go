// Package sph implements a 2D weakly-compressible smoothed particle
// hydrodynamics core.
//
// A [State] owns every per-particle quantity as one contiguous buffer
// laid out as fourteen blocks of length N:
//
//	x, y, z, vx, vy, vz, ax, ay, az, pax, pay, paz, rho, p
//
// Each call to [State.Step] rebuilds the spatial hash grid, accumulates
// density and pressure, applies gravity and symmetric pressure forces,
// reflects particles off the box walls and integrates with leapfrog.
//
// # Example
//
//	st, err := sph.New(sph.DefaultParams())
//	if err != nil {
//		return err
//	}
//	for i := 0; i < 100; i++ {
//		st.Step()
//	}
//	xs, ys := st.X(), st.Y()
//
// # Thread Safety
//
// A State is NOT safe for concurrent use. Callers sharing one State
// between goroutines must serialize whole steps and reads, see
// sim.Shared.
package sph
