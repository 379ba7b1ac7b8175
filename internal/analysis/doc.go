// Package analysis characterizes the scalar series recorded during a
// run.
//
//   - [PowerSpectrum]: one-sided amplitude spectrum of a series
//   - [DominantFrequency]: strongest non-DC oscillation, in Hz
//   - [Describe]: mean, spread and extremes
//   - [SettlingFrame]: first frame after which a series stays in band
//
// # Sloshing
//
// After the wedge collapses, the kinetic energy oscillates as the fluid
// sloshes between the walls:
//
//	freq, _ := analysis.DominantFrequency(ke, frameInterval)
package analysis
