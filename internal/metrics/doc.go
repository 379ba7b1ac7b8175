// Package metrics computes scalar diagnostics over a particle state.
//
// The free functions evaluate one snapshot. The Metric types accumulate
// those values over a run and are reset between runs by the simulator.
package metrics
