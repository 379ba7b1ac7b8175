package sph

import "errors"

// Configuration errors returned by Params.Validate and New.
var (
	// ErrNoParticles indicates a particle count that leaves the particle
	// mass undefined.
	ErrNoParticles = errors.New("sph: particle count must be positive")

	// ErrInvalidParams indicates a parameter outside its valid range.
	ErrInvalidParams = errors.New("sph: invalid parameters")

	// ErrBufferTooSmall indicates an export destination shorter than the
	// flat state buffer.
	ErrBufferTooSmall = errors.New("sph: export buffer too small")
)
