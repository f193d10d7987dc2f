package ports

import (
	"math/rand/v2"
)

// RNGPort provides seeded random number generation for deterministic operations
type RNGPort interface {
	// Stream creates a deterministic generator for a named operation, so two
	// operations sharing a base seed never share a stream.
	Stream(seed uint64, name string) *rand.Rand
}
