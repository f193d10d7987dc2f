package inference

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	domain "gobayes/domain/inference"
)

// BetaPosterior is the exact Beta(Alpha, Beta) posterior of a success rate.
// Every query is recomputed from the two parameters.
type BetaPosterior struct {
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
}

func (p BetaPosterior) Kind() string { return KindBeta }

func (p BetaPosterior) Mean() []float64 {
	return []float64{p.Alpha / (p.Alpha + p.Beta)}
}

func (p BetaPosterior) Variance() []float64 {
	s := p.Alpha + p.Beta
	return []float64{p.Alpha * p.Beta / (s * s * (s + 1))}
}

func (p BetaPosterior) Sample(rng *rand.Rand) []float64 {
	d := distuv.Beta{Alpha: p.Alpha, Beta: p.Beta, Src: rng}
	return []float64{d.Rand()}
}

func (p BetaPosterior) CredibleInterval(level float64) []domain.Interval {
	d := distuv.Beta{Alpha: p.Alpha, Beta: p.Beta}
	lower, upper := tailProbabilities(level)
	return []domain.Interval{{d.Quantile(lower), d.Quantile(upper)}}
}
