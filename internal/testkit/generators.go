// Package testkit generates seeded synthetic experiment data for tests.
package testkit

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// GaussianSpec describes one mixture component of generated data.
type GaussianSpec struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Weight float64 `json:"weight"`
}

// MixtureConfig configures the Gaussian mixture generator
type MixtureConfig struct {
	Count      int            `json:"count"`
	Components []GaussianSpec `json:"components"`
	Seed       uint64         `json:"seed"`
}

// DefaultMixtureConfig returns two well separated groups at -5 and +5.
func DefaultMixtureConfig() MixtureConfig {
	return MixtureConfig{
		Count: 500,
		Components: []GaussianSpec{
			{Mean: -5, StdDev: 1, Weight: 0.4},
			{Mean: 5, StdDev: 1, Weight: 0.6},
		},
		Seed: 42,
	}
}

// ZeroInflatedConfig configures the revenue-per-visitor generator
type ZeroInflatedConfig struct {
	Count    int     `json:"count"`
	ZeroRate float64 `json:"zero_rate"`
	LogMean  float64 `json:"log_mean"`
	LogStd   float64 `json:"log_std"`
	Seed     uint64  `json:"seed"`
	// ExactZeros forces round(Count*ZeroRate) zeros instead of Bernoulli draws.
	ExactZeros bool `json:"exact_zeros"`
}

// DefaultZeroInflatedConfig returns 30% non-purchasers and log-normal(2, 0.5) spend.
func DefaultZeroInflatedConfig() ZeroInflatedConfig {
	return ZeroInflatedConfig{
		Count:      500,
		ZeroRate:   0.3,
		LogMean:    2,
		LogStd:     0.5,
		Seed:       42,
		ExactZeros: true,
	}
}

func newRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed+1))
}

// GaussianMixture draws Count values, choosing each component by weight.
func GaussianMixture(cfg MixtureConfig) []float64 {
	rng := newRNG(cfg.Seed)
	total := 0.0
	for _, c := range cfg.Components {
		total += c.Weight
	}

	out := make([]float64, cfg.Count)
	for i := range out {
		u := rng.Float64() * total
		chosen := cfg.Components[len(cfg.Components)-1]
		acc := 0.0
		for _, c := range cfg.Components {
			acc += c.Weight
			if u < acc {
				chosen = c
				break
			}
		}
		out[i] = distuv.Normal{Mu: chosen.Mean, Sigma: chosen.StdDev, Src: rng}.Rand()
	}
	return out
}

// ZeroInflatedLogNormal draws values that are exactly zero with probability
// ZeroRate and log-normal otherwise.
func ZeroInflatedLogNormal(cfg ZeroInflatedConfig) []float64 {
	rng := newRNG(cfg.Seed)
	positive := distuv.LogNormal{Mu: cfg.LogMean, Sigma: cfg.LogStd, Src: rng}

	out := make([]float64, cfg.Count)
	if cfg.ExactZeros {
		zeros := int(math.Round(float64(cfg.Count) * cfg.ZeroRate))
		for i := zeros; i < cfg.Count; i++ {
			out[i] = positive.Rand()
		}
		rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
		return out
	}

	for i := range out {
		if rng.Float64() < cfg.ZeroRate {
			continue
		}
		out[i] = positive.Rand()
	}
	return out
}

// Conversions simulates trials Bernoulli(rate) visits and returns the successes.
func Conversions(trials int, rate float64, seed uint64) int {
	rng := newRNG(seed)
	successes := 0
	for i := 0; i < trials; i++ {
		if rng.Float64() < rate {
			successes++
		}
	}
	return successes
}
