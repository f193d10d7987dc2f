package inference

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"gobayes/domain/core"
	domain "gobayes/domain/inference"
	"gobayes/internal"
	"gobayes/internal/numerics"
)

// Packed parameter layout.
const (
	idxZeroLogitMean = iota
	idxZeroLogitLogVar
	idxValueMean
	idxValueLogVar
	zilnParamCount
)

const (
	zeroRateClamp = 0.01
	// Log-variances are kept inside this band so exp() never overflows.
	logVarBound = 20.0
)

// zilnData holds the sufficient statistics the ELBO needs.
type zilnData struct {
	n      float64
	zeros  float64
	logs   []float64
	nonZ   float64
	nonEff float64
}

func newZILNData(values []float64) (zilnData, error) {
	if len(values) == 0 {
		return zilnData{}, core.NewInvalidDataError("data", "at least one observation is required")
	}
	d := zilnData{n: float64(len(values))}
	for i, v := range values {
		switch {
		case math.IsNaN(v) || math.IsInf(v, 0):
			return zilnData{}, core.NewInvalidDataError(fmt.Sprintf("data[%d]", i), fmt.Sprintf("must be finite (got %g)", v))
		case v < 0:
			return zilnData{}, core.NewInvalidDataError(fmt.Sprintf("data[%d]", i), fmt.Sprintf("must be >= 0 (got %g)", v))
		case v == 0:
			d.zeros++
		default:
			d.logs = append(d.logs, math.Log(v))
		}
	}
	if d.zeros == 0 {
		return zilnData{}, core.NewInvalidDataError("data", "no zeros found; use plain LogNormal")
	}
	d.nonZ = float64(len(d.logs))
	d.nonEff = math.Max(d.nonZ, 1)
	return d, nil
}

// initParams starts from the empirical zero rate and log-moments.
func (d zilnData) initParams() []float64 {
	params := make([]float64, zilnParamCount)
	if d.nonZ == 0 {
		params[idxZeroLogitMean] = numerics.Logit(1-zeroRateClamp, zeroRateClamp)
		params[idxZeroLogitLogVar] = math.Log(0.01)
		return params
	}

	rate := numerics.Clamp(d.zeros/d.n, zeroRateClamp, 1-zeroRateClamp)
	params[idxZeroLogitMean] = numerics.Logit(rate, zeroRateClamp)
	params[idxZeroLogitLogVar] = -math.Log(d.n*rate*(1-rate) + 1)

	mean, _ := stats.Mean(d.logs)
	variance, err := stats.PopulationVariance(d.logs)
	if err != nil || variance < numerics.VarianceFloor {
		variance = numerics.VarianceFloor
	}
	params[idxValueMean] = mean
	params[idxValueLogVar] = math.Log(variance)
	return params
}

// log σ(x) and log(1-σ(x)) without overflow.
func logSigmoid(x float64) float64 {
	if x >= 0 {
		return -math.Log1p(math.Exp(-x))
	}
	return x - math.Log1p(math.Exp(x))
}

// elbo returns the evidence lower bound at params and its analytical gradient.
func (d zilnData) elbo(params []float64) (float64, []float64) {
	grad := make([]float64, zilnParamCount)

	zm := params[idxZeroLogitMean]
	zs := params[idxZeroLogitLogVar]
	vm := params[idxValueMean]
	vs := params[idxValueLogVar]

	// Bernoulli term with a second-order correction for logit uncertainty.
	p := numerics.Sigmoid(zm)
	vz := math.Exp(zs)
	curv := d.n * p * (1 - p)
	bern := d.zeros*logSigmoid(zm) + (d.n-d.zeros)*logSigmoid(-zm) - 0.5*vz*curv
	grad[idxZeroLogitMean] = d.zeros - d.n*p - 0.5*vz*curv*(1-2*p)
	grad[idxZeroLogitLogVar] = -0.5 * vz * curv

	// Log-normal term over non-zero values.
	sigma2 := math.Exp(vs)
	sigma := math.Sqrt(sigma2)
	lognormal := 0.0
	for _, lx := range d.logs {
		z := (lx - vm) / sigma
		lognormal += -lx - 0.5*log2Pi - 0.5*vs - 0.5*z*z
		grad[idxValueMean] += z / sigma
		grad[idxValueLogVar] += -0.5 + 0.5*z*z
	}
	// Expected penalty from location uncertainty N(vm, sigma²/n).
	lognormal -= 0.5 * d.nonZ / d.nonEff

	// KL of each mean-field Gaussian against N(0, 1).
	locLogVar := vs - math.Log(d.nonEff)
	kl := numerics.KLStdNormal(zm, zs) + numerics.KLStdNormal(vm, locLogVar)
	grad[idxZeroLogitMean] -= zm
	grad[idxZeroLogitLogVar] -= 0.5 * (vz - 1)
	grad[idxValueMean] -= vm
	grad[idxValueLogVar] -= 0.5 * (math.Exp(locLogVar) - 1)

	return bern + lognormal - kl, grad
}

const log2Pi = 1.8378770664093453

// FitZeroInflatedLogNormal fits the four variational parameters by
// clipped, adaptive gradient ascent on the ELBO.
func FitZeroInflatedLogNormal(values []float64, opts domain.FitOptions, mcSeed uint64, logger *internal.Logger) (*domain.VIResult, error) {
	data, err := newZILNData(values)
	if err != nil {
		return nil, err
	}

	params := data.initParams()
	moments := NewMoments(zilnParamCount)
	history := make([]float64, 0, min(opts.MaxIterations, 1024))
	converged := false
	iterations := 0
	trace := logger.GetLevel() >= internal.LogLevelTrace

	for iterations < opts.MaxIterations {
		iterations++
		value, grad := data.elbo(params)
		history = append(history, value)
		if trace && iterations%50 == 1 {
			logger.Trace("VI iteration %d: ELBO %.6f, params %v", iterations, value, params)
		}

		grad = numerics.ClipGradient(grad, numerics.DefaultMaxGradNorm)
		next, nextMoments := DefaultAdam.Step(params, grad, moments)
		next[idxZeroLogitLogVar] = numerics.Clamp(next[idxZeroLogitLogVar], -logVarBound, logVarBound)
		next[idxValueLogVar] = numerics.Clamp(next[idxValueLogVar], -logVarBound, logVarBound)

		change := numerics.RelativeChange(params, next)
		params, moments = next, nextMoments
		if change < opts.Tolerance {
			converged = true
			break
		}
	}

	final, _ := data.elbo(params)
	if !converged {
		logger.Warn("zero-inflated VI stopped at max iterations (%d) without reaching tolerance %g; ELBO %.6f", iterations, opts.Tolerance, final)
	} else {
		logger.Debug("zero-inflated VI converged after %d iterations (n=%.0f, zeros=%.0f, ELBO %.6f)", iterations, data.n, data.zeros, final)
	}

	return &domain.VIResult{
		Posterior: ZILNPosterior{
			ZeroLogitMean:   params[idxZeroLogitMean],
			ZeroLogitLogVar: params[idxZeroLogitLogVar],
			ValueMean:       params[idxValueMean],
			ValueLogVar:     params[idxValueLogVar],
			NonZeroCount:    int(data.nonZ),
			MCSeed:          mcSeed,
		},
		Diagnostics: domain.Diagnostics{
			Converged:  converged,
			Iterations: iterations,
			FinalELBO:  final,
			Objective:  domain.ObjectiveELBO,
			History:    history,
		},
	}, nil
}
