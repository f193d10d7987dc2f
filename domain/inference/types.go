package inference

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand/v2"
)

// ModelType tags the inference tier a fit request is routed to.
type ModelType string

const (
	ModelBetaBinomial          ModelType = "beta-binomial"
	ModelNormalMixture         ModelType = "normal-mixture"
	ModelLogNormalMixture      ModelType = "lognormal-mixture"
	ModelZeroInflatedLogNormal ModelType = "zero-inflated-lognormal"
)

// ModelTypes lists every recognized tag in dispatch order.
func ModelTypes() []ModelType {
	return []ModelType{
		ModelBetaBinomial,
		ModelNormalMixture,
		ModelLogNormalMixture,
		ModelZeroInflatedLogNormal,
	}
}

func (m ModelType) String() string { return string(m) }

// BinomialData is a success/trial count summary.
type BinomialData struct {
	Successes int `json:"successes"`
	Trials    int `json:"trials"`
}

// InputConfig carries per-input model hints.
type InputConfig struct {
	NumComponents int `json:"numComponents,omitempty" yaml:"numComponents,omitempty"`
}

// DataInput is either a binomial summary or a sequence of observations.
// It is treated as read-only by every fit.
type DataInput struct {
	Binomial *BinomialData
	Values   []float64
	Config   *InputConfig
}

// NewBinomialInput builds a DataInput from counts.
func NewBinomialInput(successes, trials int) DataInput {
	return DataInput{Binomial: &BinomialData{Successes: successes, Trials: trials}}
}

// NewValuesInput builds a DataInput from observations and an optional component count.
func NewValuesInput(values []float64, numComponents int) DataInput {
	in := DataInput{Values: values}
	if numComponents > 0 {
		in.Config = &InputConfig{NumComponents: numComponents}
	}
	return in
}

// NumComponents returns the configured mixture cardinality, or 0 if unset.
func (d DataInput) NumComponents() int {
	if d.Config == nil {
		return 0
	}
	return d.Config.NumComponents
}

type dataInputWire struct {
	Data   json.RawMessage `json:"data"`
	Config *InputConfig    `json:"config,omitempty"`
}

// MarshalJSON encodes the input as {data: {successes,trials} | number[], config?}.
func (d DataInput) MarshalJSON() ([]byte, error) {
	var (
		raw []byte
		err error
	)
	if d.Binomial != nil {
		raw, err = json.Marshal(d.Binomial)
	} else {
		values := d.Values
		if values == nil {
			values = []float64{}
		}
		raw, err = json.Marshal(values)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(dataInputWire{Data: raw, Config: d.Config})
}

// UnmarshalJSON accepts both wire shapes of the data field.
func (d *DataInput) UnmarshalJSON(b []byte) error {
	var wire dataInputWire
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	out := DataInput{Config: wire.Config}
	trimmed := bytes.TrimSpace(wire.Data)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
	case trimmed[0] == '[':
		if err := json.Unmarshal(trimmed, &out.Values); err != nil {
			return fmt.Errorf("data: %w", err)
		}
	case trimmed[0] == '{':
		var bin BinomialData
		if err := json.Unmarshal(trimmed, &bin); err != nil {
			return fmt.Errorf("data: %w", err)
		}
		out.Binomial = &bin
	default:
		return fmt.Errorf("data: expected object or array")
	}
	*d = out
	return nil
}

// PriorParams names a prior family and its parameters.
type PriorParams struct {
	Family string  `json:"family,omitempty" yaml:"family,omitempty"`
	Alpha  float64 `json:"alpha,omitempty" yaml:"alpha,omitempty"`
	Beta   float64 `json:"beta,omitempty" yaml:"beta,omitempty"`
}

// FitOptions tunes a single fit call. Zero values mean "use default".
type FitOptions struct {
	PriorParams   *PriorParams `json:"priorParams,omitempty" yaml:"priorParams,omitempty"`
	MaxIterations int          `json:"maxIterations,omitempty" yaml:"maxIterations,omitempty"`
	Tolerance     float64      `json:"tolerance,omitempty" yaml:"tolerance,omitempty"`
	// WarmStart is accepted for contract compatibility; no tier reads it.
	WarmStart bool   `json:"warmStart,omitempty" yaml:"warmStart,omitempty"`
	Seed      uint64 `json:"seed,omitempty" yaml:"seed,omitempty"`
}

const (
	DefaultMaxIterations = 1000
	DefaultTolerance     = 1e-6
)

// WithDefaults fills unset fields from the supplied defaults.
func (o FitOptions) WithDefaults(maxIterations int, tolerance float64, seed uint64) FitOptions {
	if o.MaxIterations <= 0 {
		o.MaxIterations = maxIterations
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.Tolerance <= 0 {
		o.Tolerance = tolerance
	}
	if o.Tolerance <= 0 {
		o.Tolerance = DefaultTolerance
	}
	if o.Seed == 0 {
		o.Seed = seed
	}
	return o
}

// Objective names the quantity reported in Diagnostics.FinalELBO.
type Objective string

const (
	ObjectiveLogEvidence   Objective = "log_evidence"
	ObjectiveLogLikelihood Objective = "log_likelihood"
	ObjectiveELBO          Objective = "elbo"
)

// Diagnostics describes how a fit terminated.
type Diagnostics struct {
	Converged  bool      `json:"converged"`
	Iterations int       `json:"iterations"`
	FinalELBO  float64   `json:"finalELBO"`
	Objective  Objective `json:"objective"`
	History    []float64 `json:"history,omitempty"`
	// AcceptanceRate only exists for sampler-era consumers; VI and EM never set it.
	AcceptanceRate *float64 `json:"acceptanceRate,omitempty"`
}

// Interval is a [lower, upper] pair.
type Interval [2]float64

func (i Interval) Lower() float64 { return i[0] }
func (i Interval) Upper() float64 { return i[1] }

// Contains reports whether x lies within the closed interval.
func (i Interval) Contains(x float64) bool { return x >= i[0] && x <= i[1] }

// Posterior is the uniform query contract shared by every tier's result.
// Implementations are immutable; Sample draws from the caller's generator.
type Posterior interface {
	Kind() string
	Mean() []float64
	Variance() []float64
	Sample(rng *rand.Rand) []float64
	CredibleInterval(level float64) []Interval
}

// VIResult pairs a posterior with the diagnostics of the fit that produced it.
type VIResult struct {
	Posterior   Posterior   `json:"-"`
	Diagnostics Diagnostics `json:"diagnostics"`
}

// SummaryLevels are the credible levels pre-computed for cached summaries.
var SummaryLevels = []float64{0.5, 0.8, 0.95}

// LevelIntervals holds the per-dimension intervals at one credible level.
type LevelIntervals struct {
	Level     float64    `json:"level"`
	Intervals []Interval `json:"intervals"`
}

// Summary is the cheap, cacheable view of a posterior.
type Summary struct {
	Kind      string           `json:"kind"`
	Mean      []float64        `json:"mean"`
	Variance  []float64        `json:"variance"`
	Intervals []LevelIntervals `json:"intervals"`
}

// Summarize evaluates the posterior at the given credible levels.
func Summarize(p Posterior, levels []float64) Summary {
	s := Summary{
		Kind:     p.Kind(),
		Mean:     p.Mean(),
		Variance: p.Variance(),
	}
	for _, level := range levels {
		s.Intervals = append(s.Intervals, LevelIntervals{
			Level:     level,
			Intervals: p.CredibleInterval(level),
		})
	}
	return s
}

// Interval returns the cached intervals at level, if present.
func (s Summary) Interval(level float64) ([]Interval, bool) {
	for _, li := range s.Intervals {
		if li.Level == level {
			return li.Intervals, true
		}
	}
	return nil, false
}
