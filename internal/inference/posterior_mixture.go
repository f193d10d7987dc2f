package inference

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	domain "gobayes/domain/inference"
)

// Component is one Gaussian in a fitted mixture.
type Component struct {
	Mean     float64 `json:"mean"`
	Variance float64 `json:"variance"`
	Weight   float64 `json:"weight"`
}

// MixturePosterior is a weighted Gaussian mixture over a single observation
// dimension. Weights are non-negative and sum to one.
type MixturePosterior struct {
	Components []Component `json:"components"`
	// LogScale marks mixtures fitted to log-transformed observations.
	LogScale bool `json:"logScale,omitempty"`
}

// NewMixturePosterior copies comps, orders them by mean and renormalizes weights.
func NewMixturePosterior(comps []Component, logScale bool) MixturePosterior {
	out := make([]Component, len(comps))
	copy(out, comps)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Mean < out[j].Mean })

	total := 0.0
	for i := range out {
		if out[i].Weight < 0 || math.IsNaN(out[i].Weight) {
			out[i].Weight = 0
		}
		total += out[i].Weight
	}
	// Already-normalized weights are kept bit for bit so snapshots round-trip.
	if math.Abs(total-1) > 1e-12 {
		for i := range out {
			if total > 0 {
				out[i].Weight /= total
			} else {
				out[i].Weight = 1 / float64(len(out))
			}
		}
	}
	return MixturePosterior{Components: out, LogScale: logScale}
}

func (p MixturePosterior) Kind() string { return KindMixture }

func (p MixturePosterior) mean() float64 {
	m := 0.0
	for _, c := range p.Components {
		m += c.Weight * c.Mean
	}
	return m
}

func (p MixturePosterior) Mean() []float64 {
	return []float64{p.mean()}
}

// Variance follows the law of total variance.
func (p MixturePosterior) Variance() []float64 {
	m := p.mean()
	second := 0.0
	for _, c := range p.Components {
		second += c.Weight * (c.Variance + c.Mean*c.Mean)
	}
	return []float64{math.Max(second-m*m, 0)}
}

// Sample picks a component by weight, then draws from its Gaussian.
func (p MixturePosterior) Sample(rng *rand.Rand) []float64 {
	if len(p.Components) == 0 {
		return []float64{0}
	}
	c := p.Components[p.pick(rng.Float64())]
	d := distuv.Normal{Mu: c.Mean, Sigma: math.Sqrt(c.Variance), Src: rng}
	return []float64{d.Rand()}
}

// pick scans cumulative weights against a uniform draw u.
func (p MixturePosterior) pick(u float64) int {
	cumulative := 0.0
	for i, c := range p.Components {
		cumulative += c.Weight
		if u < cumulative {
			return i
		}
	}
	return len(p.Components) - 1
}

// CDF is the mixture distribution function at x.
func (p MixturePosterior) CDF(x float64) float64 {
	total := 0.0
	for _, c := range p.Components {
		total += c.Weight * distuv.Normal{Mu: c.Mean, Sigma: math.Sqrt(c.Variance)}.CDF(x)
	}
	return total
}

// Quantile inverts CDF by bisection.
func (p MixturePosterior) Quantile(q float64) float64 {
	if len(p.Components) == 0 {
		return 0
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, c := range p.Components {
		sd := math.Sqrt(c.Variance)
		lo = math.Min(lo, c.Mean-12*sd)
		hi = math.Max(hi, c.Mean+12*sd)
	}
	for i := 0; i < 200 && hi-lo > 1e-12*math.Max(1, math.Abs(lo)+math.Abs(hi)); i++ {
		mid := 0.5 * (lo + hi)
		if p.CDF(mid) < q {
			lo = mid
		} else {
			hi = mid
		}
	}
	return 0.5 * (lo + hi)
}

func (p MixturePosterior) CredibleInterval(level float64) []domain.Interval {
	lower, upper := tailProbabilities(level)
	return []domain.Interval{{p.Quantile(lower), p.Quantile(upper)}}
}
