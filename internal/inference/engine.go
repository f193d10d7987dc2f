package inference

import (
	"fmt"
	"math"
	"time"

	"gobayes/domain/core"
	domain "gobayes/domain/inference"
	"gobayes/internal"
	"gobayes/internal/metrics"
	"gobayes/ports"
)

// Defaults fills unset FitOptions fields.
type Defaults struct {
	MaxIterations int
	Tolerance     float64
	Seed          uint64
}

// DefaultDefaults mirrors the configuration defaults.
var DefaultDefaults = Defaults{
	MaxIterations: domain.DefaultMaxIterations,
	Tolerance:     domain.DefaultTolerance,
	Seed:          42,
}

// Engine routes a model-type tag to its tier. It holds no per-fit state and
// is safe for concurrent use.
type Engine struct {
	logger   *internal.Logger
	rng      ports.RNGPort
	defaults Defaults
}

// EngineOption customises an Engine.
type EngineOption func(*Engine)

func WithLogger(l *internal.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

func WithRNG(r ports.RNGPort) EngineOption {
	return func(e *Engine) { e.rng = r }
}

func WithDefaults(d Defaults) EngineOption {
	return func(e *Engine) { e.defaults = d }
}

// NewEngine creates a dispatcher with seeded PCG streams and quiet logging.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		logger:   internal.NewDiscardLogger(),
		rng:      SeededRNG{},
		defaults: DefaultDefaults,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("inference")
	return e
}

// Fit validates the input for modelType, runs the matching tier and returns
// its posterior with diagnostics. Non-convergence is reported through
// Diagnostics.Converged, never as an error.
func (e *Engine) Fit(modelType domain.ModelType, in domain.DataInput, opts domain.FitOptions) (*domain.VIResult, error) {
	start := time.Now()
	opts = opts.WithDefaults(e.defaults.MaxIterations, e.defaults.Tolerance, e.defaults.Seed)

	result, err := e.dispatch(modelType, in, opts)
	if err == nil {
		err = requireFiniteMean(result.Posterior)
	}

	outcome := metrics.OutcomeConverged
	iterations := 0
	switch {
	case core.IsInvalidData(err) || core.IsUnknownModelType(err):
		outcome = metrics.OutcomeInvalid
	case err != nil:
		outcome = metrics.OutcomeError
	default:
		iterations = result.Diagnostics.Iterations
		if !result.Diagnostics.Converged {
			outcome = metrics.OutcomeNotConverged
		}
	}
	label := string(modelType)
	if core.IsUnknownModelType(err) {
		label = "unknown"
	}
	metrics.ObserveFit(label, outcome, time.Since(start), iterations)

	if err != nil {
		e.logger.Debug("fit %s rejected: %v", modelType, err)
		return nil, err
	}
	return result, nil
}

func (e *Engine) dispatch(modelType domain.ModelType, in domain.DataInput, opts domain.FitOptions) (*domain.VIResult, error) {
	switch modelType {
	case domain.ModelBetaBinomial:
		return FitBetaBinomial(in, opts)

	case domain.ModelNormalMixture:
		if err := requireValues(in); err != nil {
			return nil, err
		}
		rng := e.rng.Stream(opts.Seed, "em/kmeans++")
		return FitGaussianMixture(in.Values, in, opts, rng, false, e.logger.With("em"))

	case domain.ModelLogNormalMixture:
		if err := requireValues(in); err != nil {
			return nil, err
		}
		logs, err := logTransform(in.Values)
		if err != nil {
			return nil, err
		}
		rng := e.rng.Stream(opts.Seed, "em/kmeans++")
		return FitGaussianMixture(logs, in, opts, rng, true, e.logger.With("em"))

	case domain.ModelZeroInflatedLogNormal:
		if err := requireValues(in); err != nil {
			return nil, err
		}
		return FitZeroInflatedLogNormal(in.Values, opts, DeriveSeed(opts.Seed, "ziln/mc"), e.logger.With("vi"))

	default:
		return nil, core.NewUnknownModelTypeError(string(modelType))
	}
}

// requireFiniteMean rejects posteriors whose moments overflow float64, which
// valid but extremely spread observations can produce on the log scale.
func requireFiniteMean(p domain.Posterior) error {
	for i, m := range p.Mean() {
		if math.IsInf(m, 0) || math.IsNaN(m) {
			return core.NewInvalidDataError("data", fmt.Sprintf("posterior mean of dimension %d overflows (%g); rescale the observations", i, m))
		}
	}
	return nil
}

func requireValues(in domain.DataInput) error {
	if in.Binomial != nil {
		return core.NewInvalidDataError("data", "expected a sequence of observations, got a binomial summary")
	}
	return nil
}

// logTransform maps strictly positive observations onto the log scale.
func logTransform(values []float64) ([]float64, error) {
	out := make([]float64, len(values))
	for i, v := range values {
		if !(v > 0) || math.IsInf(v, 0) {
			return nil, core.NewInvalidDataError(fmt.Sprintf("data[%d]", i), fmt.Sprintf("log-normal mixture requires positive finite values (got %g)", v))
		}
		out[i] = math.Log(v)
	}
	return out, nil
}
