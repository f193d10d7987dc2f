// Package inference implements the tiered posterior approximation engine:
// exact conjugate updates, EM for Gaussian mixtures and gradient-based
// mean-field VI for zero-inflated log-normal data, behind one dispatcher.
package inference

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	domain "gobayes/domain/inference"
)

// Posterior kinds reported by Kind() and stored in snapshots.
const (
	KindBeta    = "beta"
	KindMixture = "mixture"
	KindZILN    = "zero-inflated-lognormal"
)

var (
	_ domain.Posterior = BetaPosterior{}
	_ domain.Posterior = MixturePosterior{}
	_ domain.Posterior = ZILNPosterior{}
)

const defaultCredibleLevel = 0.95

// normalizeLevel maps out-of-range levels onto the default 95%.
func normalizeLevel(level float64) float64 {
	if !(level > 0 && level < 1) {
		return defaultCredibleLevel
	}
	return level
}

// tailProbabilities returns the equal-tailed quantile positions for level.
func tailProbabilities(level float64) (lower, upper float64) {
	alpha := 1 - normalizeLevel(level)
	return alpha / 2, 1 - alpha/2
}

// criticalZ is the standard-normal quantile bounding the central mass level.
func criticalZ(level float64) float64 {
	_, upper := tailProbabilities(level)
	return distuv.UnitNormal.Quantile(upper)
}

// empiricalInterval sorts draws in place and indexes them at the tail quantiles.
func empiricalInterval(draws []float64, level float64) domain.Interval {
	if len(draws) == 0 {
		return domain.Interval{0, 0}
	}
	sort.Float64s(draws)
	lower, upper := tailProbabilities(level)
	last := float64(len(draws) - 1)
	lo := int(math.Round(lower * last))
	hi := int(math.Round(upper * last))
	if hi >= len(draws) {
		hi = len(draws) - 1
	}
	return domain.Interval{draws[lo], draws[hi]}
}
