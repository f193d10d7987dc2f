package inference

import (
	"hash/fnv"
	"math/rand/v2"

	"gobayes/ports"
)

// SeededRNG derives independent PCG streams from a base seed and a name.
type SeededRNG struct{}

var _ ports.RNGPort = SeededRNG{}

// Stream returns a generator whose sequence depends only on (seed, name).
func (SeededRNG) Stream(seed uint64, name string) *rand.Rand {
	return NewRNG(DeriveSeed(seed, name))
}

// NewRNG wraps a PCG source seeded from a single 64-bit value.
func NewRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// DeriveSeed mixes name into seed with FNV-1a.
func DeriveSeed(seed uint64, name string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return seed ^ h.Sum64()
}
