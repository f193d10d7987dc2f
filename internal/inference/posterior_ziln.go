package inference

import (
	"math"
	"math/rand/v2"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"

	domain "gobayes/domain/inference"
	"gobayes/internal/numerics"
)

// Monte Carlo sizes for the queries without a closed form.
const (
	zilnVarianceDraws = 1000
	zilnIntervalDraws = 10000
)

// ZILNPosterior is the mean-field Gaussian approximation for a zero-inflated
// log-normal model. Its three dimensions are the zero probability, a
// non-zero value and the overall (zero or non-zero) value.
type ZILNPosterior struct {
	ZeroLogitMean   float64 `json:"zeroLogitMean"`
	ZeroLogitLogVar float64 `json:"zeroLogitLogVar"`
	ValueMean       float64 `json:"valueMean"`
	ValueLogVar     float64 `json:"valueLogVar"`
	// NonZeroCount scales the location uncertainty: N(ValueMean, sigma²/n).
	NonZeroCount int `json:"nonZeroCount"`
	// MCSeed fixes the private generator behind Variance and CredibleInterval.
	MCSeed uint64 `json:"mcSeed"`
}

func (p ZILNPosterior) Kind() string { return KindZILN }

// ValueSigma is the log-scale standard deviation of non-zero values.
func (p ZILNPosterior) ValueSigma() float64 {
	return math.Exp(0.5 * p.ValueLogVar)
}

func (p ZILNPosterior) zeroLogitSD() float64 {
	return math.Exp(0.5 * p.ZeroLogitLogVar)
}

func (p ZILNPosterior) locationSD() float64 {
	n := p.NonZeroCount
	if n < 1 {
		n = 1
	}
	return p.ValueSigma() / math.Sqrt(float64(n))
}

// ZeroProb is the posterior mean of the zero probability, using the probit
// approximation E[σ(x)] ≈ σ(μ / sqrt(1 + πv/8)) for x ~ N(μ, v).
func (p ZILNPosterior) ZeroProb() float64 {
	v := math.Exp(p.ZeroLogitLogVar)
	return numerics.Sigmoid(p.ZeroLogitMean / math.Sqrt(1+math.Pi*v/8))
}

// Mean returns [zeroProb, meanOfNonZeros, overallMean].
func (p ZILNPosterior) Mean() []float64 {
	zeroProb := p.ZeroProb()
	sigma2 := math.Exp(p.ValueLogVar)
	meanNonZero := math.Exp(p.ValueMean + sigma2/2)
	return []float64{zeroProb, meanNonZero, meanNonZero * (1 - zeroProb)}
}

// Variance is estimated from a fixed number of posterior draws.
func (p ZILNPosterior) Variance() []float64 {
	cols := p.draws(zilnVarianceDraws, DeriveSeed(p.MCSeed, "ziln/variance"))
	out := make([]float64, len(cols))
	for i, col := range cols {
		v, err := stats.SampleVariance(col)
		if err != nil || math.IsNaN(v) {
			v = 0
		}
		out[i] = v
	}
	return out
}

// Sample draws the zero probability from its logit-normal posterior, a
// non-zero value from a doubly-sampled log-normal, and the overall value
// from a Bernoulli on the sampled probability.
func (p ZILNPosterior) Sample(rng *rand.Rand) []float64 {
	logit := distuv.Normal{Mu: p.ZeroLogitMean, Sigma: p.zeroLogitSD(), Src: rng}.Rand()
	zeroProb := numerics.Sigmoid(logit)

	location := distuv.Normal{Mu: p.ValueMean, Sigma: p.locationSD(), Src: rng}.Rand()
	value := math.Exp(location + p.ValueSigma()*rng.NormFloat64())

	overall := value
	if rng.Float64() < zeroProb {
		overall = 0
	}
	return []float64{zeroProb, value, overall}
}

// CredibleInterval uses logit-normal and log-normal transforms for the first
// two dimensions and an empirical quantile for the point-mass mixture.
func (p ZILNPosterior) CredibleInterval(level float64) []domain.Interval {
	z := criticalZ(level)

	zeroSD := p.zeroLogitSD()
	zeroIv := domain.Interval{
		numerics.Sigmoid(p.ZeroLogitMean - z*zeroSD),
		numerics.Sigmoid(p.ZeroLogitMean + z*zeroSD),
	}

	sigma := p.ValueSigma()
	logSD := math.Sqrt(sigma*sigma + p.locationSD()*p.locationSD())
	valueIv := domain.Interval{
		math.Exp(p.ValueMean - z*logSD),
		math.Exp(p.ValueMean + z*logSD),
	}

	cols := p.draws(zilnIntervalDraws, DeriveSeed(p.MCSeed, "ziln/interval"))
	overallIv := empiricalInterval(cols[2], level)

	return []domain.Interval{zeroIv, valueIv, overallIv}
}

// draws returns n samples per dimension from a private generator.
func (p ZILNPosterior) draws(n int, seed uint64) [3][]float64 {
	rng := NewRNG(seed)
	var cols [3][]float64
	for i := range cols {
		cols[i] = make([]float64, n)
	}
	for j := 0; j < n; j++ {
		s := p.Sample(rng)
		for i := range cols {
			cols[i][j] = s[i]
		}
	}
	return cols
}
