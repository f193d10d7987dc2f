package inference

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/montanaflynn/stats"

	"gobayes/domain/core"
	domain "gobayes/domain/inference"
	"gobayes/internal"
	"gobayes/internal/numerics"
)

const defaultNumComponents = 2

// validateObservations rejects empty or non-finite inputs.
func validateObservations(values []float64) error {
	if len(values) == 0 {
		return core.NewInvalidDataError("data", "at least one observation is required")
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return core.NewInvalidDataError(fmt.Sprintf("data[%d]", i), fmt.Sprintf("must be finite (got %g)", v))
		}
	}
	return nil
}

// resolveComponents applies the default cardinality and checks 1 <= k <= n.
func resolveComponents(k, n int, explicit bool) (int, error) {
	if !explicit {
		return min(defaultNumComponents, n), nil
	}
	if k < 1 {
		return 0, core.NewInvalidDataError("config.numComponents", fmt.Sprintf("must be >= 1 (got %d)", k))
	}
	if k > n {
		return 0, core.NewInvalidDataError("config.numComponents", fmt.Sprintf("must be <= number of observations (got %d > %d)", k, n))
	}
	return k, nil
}

// FitGaussianMixture runs EM for a k-component univariate Gaussian mixture.
// values must already be on the modelling scale; logScale only tags the
// resulting posterior.
func FitGaussianMixture(values []float64, in domain.DataInput, opts domain.FitOptions, rng *rand.Rand, logScale bool, logger *internal.Logger) (*domain.VIResult, error) {
	if err := validateObservations(values); err != nil {
		return nil, err
	}
	k, err := resolveComponents(in.NumComponents(), len(values), in.Config != nil && in.Config.NumComponents != 0)
	if err != nil {
		return nil, err
	}

	comps := initComponents(values, k, rng)
	history := make([]float64, 0, min(opts.MaxIterations, 256))
	prevLL := math.Inf(-1)
	converged := false
	iterations := 0
	ll := math.Inf(-1)
	trace := logger.GetLevel() >= internal.LogLevelTrace

	for iterations < opts.MaxIterations {
		iterations++
		resp, _ := eStep(values, comps)
		comps = mStep(values, resp, comps)
		ll = logLikelihood(values, comps)
		history = append(history, ll)
		if trace {
			logger.Trace("EM iteration %d: log-likelihood %.6f", iterations, ll)
		}

		if math.Abs(ll-prevLL) < opts.Tolerance {
			converged = true
			break
		}
		prevLL = ll
	}

	if !converged {
		logger.Warn("mixture EM stopped at max iterations (%d) without reaching tolerance %g; last log-likelihood %.6f", iterations, opts.Tolerance, ll)
	} else {
		logger.Debug("mixture EM converged after %d iterations (k=%d, n=%d, log-likelihood %.6f)", iterations, k, len(values), ll)
	}

	return &domain.VIResult{
		Posterior: NewMixturePosterior(comps, logScale),
		Diagnostics: domain.Diagnostics{
			Converged:  converged,
			Iterations: iterations,
			FinalELBO:  ll,
			Objective:  domain.ObjectiveLogLikelihood,
			History:    history,
		},
	}, nil
}

// initComponents seeds means with K-means++, shares the pooled variance and
// starts from uniform weights.
func initComponents(values []float64, k int, rng *rand.Rand) []Component {
	pooled, err := stats.PopulationVariance(values)
	if err != nil || pooled < numerics.VarianceFloor {
		pooled = math.Max(numerics.VarianceFloor, 1)
	}
	centers := kMeansPlusPlus(values, k, rng)
	comps := make([]Component, k)
	for j, c := range centers {
		comps[j] = Component{Mean: c, Variance: pooled, Weight: 1 / float64(k)}
	}
	return comps
}

// kMeansPlusPlus picks the first center uniformly, then each further center
// with probability proportional to its squared distance to the nearest
// chosen center.
func kMeansPlusPlus(values []float64, k int, rng *rand.Rand) []float64 {
	centers := make([]float64, 0, k)
	centers = append(centers, values[rng.IntN(len(values))])

	dist := make([]float64, len(values))
	for len(centers) < k {
		total := 0.0
		for i, x := range values {
			best := math.Inf(1)
			for _, c := range centers {
				d := (x - c) * (x - c)
				if d < best {
					best = d
				}
			}
			dist[i] = best
			total += best
		}

		// Every point coincides with a center: fall back to a uniform pick.
		if total == 0 {
			centers = append(centers, values[rng.IntN(len(values))])
			continue
		}

		target := rng.Float64() * total
		chosen := len(values) - 1
		cumulative := 0.0
		for i, d := range dist {
			cumulative += d
			if target < cumulative {
				chosen = i
				break
			}
		}
		centers = append(centers, values[chosen])
	}
	return centers
}

// logJoint fills buf with logWeight_j + log N(x; mean_j, var_j).
func logJoint(x float64, comps []Component, buf []float64) {
	for j, c := range comps {
		buf[j] = numerics.SafeLog(c.Weight) + numerics.LogNormalDensity(x, c.Mean, c.Variance)
	}
}

// eStep computes responsibilities in log space. Each row sums to one.
func eStep(values []float64, comps []Component) ([][]float64, float64) {
	k := len(comps)
	resp := make([][]float64, len(values))
	buf := make([]float64, k)
	total := 0.0
	for i, x := range values {
		logJoint(x, comps, buf)
		norm := numerics.LogSumExp(buf)
		total += norm
		row := make([]float64, k)
		if math.IsInf(norm, -1) {
			for j := range row {
				row[j] = 1 / float64(k)
			}
		} else {
			for j := range row {
				row[j] = math.Exp(buf[j] - norm)
			}
		}
		resp[i] = row
	}
	return resp, total
}

// mStep re-estimates weights, means and floored variances from responsibilities.
// A component that owns no mass keeps its previous location and spread.
func mStep(values []float64, resp [][]float64, prev []Component) []Component {
	n := float64(len(values))
	next := make([]Component, len(prev))
	for j := range prev {
		nk, sum := 0.0, 0.0
		for i, x := range values {
			nk += resp[i][j]
			sum += resp[i][j] * x
		}
		if nk < 1e-12 {
			next[j] = Component{Mean: prev[j].Mean, Variance: prev[j].Variance, Weight: nk / n}
			continue
		}
		mean := sum / nk
		ss := 0.0
		for i, x := range values {
			d := x - mean
			ss += resp[i][j] * d * d
		}
		next[j] = Component{
			Mean:     mean,
			Variance: math.Max(ss/nk, numerics.VarianceFloor),
			Weight:   nk / n,
		}
	}
	return next
}

// logLikelihood is Σ_i logSumExp_j(logWeight_j + logDensity_j(x_i)).
func logLikelihood(values []float64, comps []Component) float64 {
	buf := make([]float64, len(comps))
	total := 0.0
	for _, x := range values {
		logJoint(x, comps, buf)
		total += numerics.LogSumExp(buf)
	}
	return total
}
