// Package viz renders particle simulations in the terminal.
//
// The package implements an interactive TUI using the Bubble Tea framework:
//
//   - [Model]: live view of a [sim.Shared] state with tunable parameters
//   - [Canvas]: Braille-based pixel canvas, 2x4 sub-pixels per cell
//   - Theme selection with 3 built-in color schemes
//
// # Key Bindings
//
//	Space - Pause/Resume simulation
//	N     - Advance one frame while paused
//	R     - Reset parameters and layout
//	Tab   - Select parameter, Up/Down to tune it
//	T     - Cycle color themes
//	?     - Show help overlay
//
// Tuning a parameter restarts the simulation from the initial layout.
package viz
