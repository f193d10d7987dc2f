package inference

import (
	"fmt"
	"math"

	"gobayes/domain/core"
	domain "gobayes/domain/inference"
	"gobayes/internal/numerics"
)

// Uniform Beta(1, 1) prior used when no prior is supplied.
const (
	defaultPriorAlpha = 1.0
	defaultPriorBeta  = 1.0
)

// betaPrior resolves the Beta prior from options.
func betaPrior(opts domain.FitOptions) (alpha, beta float64, err error) {
	pp := opts.PriorParams
	if pp == nil {
		return defaultPriorAlpha, defaultPriorBeta, nil
	}
	if pp.Family != "" && pp.Family != "beta" {
		return 0, 0, core.NewInvalidDataError("priorParams.family", fmt.Sprintf("beta-binomial requires a beta prior (got %q)", pp.Family))
	}
	alpha, beta = pp.Alpha, pp.Beta
	if alpha == 0 && beta == 0 {
		return defaultPriorAlpha, defaultPriorBeta, nil
	}
	if !(alpha > 0) || math.IsInf(alpha, 0) {
		return 0, 0, core.NewInvalidDataError("priorParams.alpha", fmt.Sprintf("must be a positive finite number (got %g)", alpha))
	}
	if !(beta > 0) || math.IsInf(beta, 0) {
		return 0, 0, core.NewInvalidDataError("priorParams.beta", fmt.Sprintf("must be a positive finite number (got %g)", beta))
	}
	return alpha, beta, nil
}

// FitBetaBinomial performs the closed-form conjugate update of a Beta prior
// with binomial counts. The reported objective is the exact log-evidence
// ratio log B(α', β') - log B(α0, β0).
func FitBetaBinomial(in domain.DataInput, opts domain.FitOptions) (*domain.VIResult, error) {
	if in.Binomial == nil {
		return nil, core.NewInvalidDataError("data", "beta-binomial requires a {successes, trials} summary")
	}
	s, n := in.Binomial.Successes, in.Binomial.Trials
	if s < 0 {
		return nil, core.NewInvalidDataError("successes", fmt.Sprintf("must be >= 0 (got %d)", s))
	}
	if n < s {
		return nil, core.NewInvalidDataError("successes", fmt.Sprintf("must be <= trials (got %d > %d)", s, n))
	}

	alpha0, beta0, err := betaPrior(opts)
	if err != nil {
		return nil, err
	}

	alpha := alpha0 + float64(s)
	beta := beta0 + float64(n-s)
	logEvidence := numerics.LogBeta(alpha, beta) - numerics.LogBeta(alpha0, beta0)

	return &domain.VIResult{
		Posterior: BetaPosterior{Alpha: alpha, Beta: beta},
		Diagnostics: domain.Diagnostics{
			Converged:  true,
			Iterations: 1,
			FinalELBO:  logEvidence,
			Objective:  domain.ObjectiveLogEvidence,
			History:    []float64{logEvidence},
		},
	}, nil
}
