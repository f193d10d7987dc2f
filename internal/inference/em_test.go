package inference

import (
	"bytes"
	"errors"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gobayes/domain/core"
	domain "gobayes/domain/inference"
	"gobayes/internal"
	"gobayes/internal/numerics"
	"gobayes/internal/testkit"
)

func fitMixture(t *testing.T, values []float64, k int, opts domain.FitOptions, seed uint64) (*domain.VIResult, MixturePosterior) {
	t.Helper()
	opts = opts.WithDefaults(500, 1e-8, seed)
	res, err := FitGaussianMixture(values, domain.NewValuesInput(values, k), opts, NewRNG(seed), false, internal.NewDiscardLogger())
	require.NoError(t, err)
	post, ok := res.Posterior.(MixturePosterior)
	require.True(t, ok)
	return res, post
}

func TestFitGaussianMixture_ScenarioB(t *testing.T) {
	values := testkit.GaussianMixture(testkit.DefaultMixtureConfig())
	res, post := fitMixture(t, values, 2, domain.FitOptions{}, 42)

	require.Len(t, post.Components, 2)
	means := []float64{post.Components[0].Mean, post.Components[1].Mean}
	sort.Float64s(means)
	assert.InDelta(t, -5.0, means[0], 1.0)
	assert.InDelta(t, 5.0, means[1], 1.0)

	// Components are ordered by mean, so weights line up with {0.4, 0.6}.
	assert.InDelta(t, 0.4, post.Components[0].Weight, 0.1)
	assert.InDelta(t, 0.6, post.Components[1].Weight, 0.1)

	assert.True(t, res.Diagnostics.Converged)
	assert.Equal(t, domain.ObjectiveLogLikelihood, res.Diagnostics.Objective)
	assert.Len(t, res.Diagnostics.History, res.Diagnostics.Iterations)
	assert.Equal(t, res.Diagnostics.History[len(res.Diagnostics.History)-1], res.Diagnostics.FinalELBO)
}

func TestFitGaussianMixture_LogLikelihoodNeverDecreases(t *testing.T) {
	values := testkit.GaussianMixture(testkit.DefaultMixtureConfig())
	res, _ := fitMixture(t, values, 3, domain.FitOptions{}, 9)

	h := res.Diagnostics.History
	for i := 1; i < len(h); i++ {
		assert.GreaterOrEqual(t, h[i], h[i-1]-1e-6, "EM log-likelihood dropped at iteration %d", i)
	}
}

func TestFitGaussianMixture_SimplexInvariant(t *testing.T) {
	for seed := uint64(1); seed <= 5; seed++ {
		cfg := testkit.DefaultMixtureConfig()
		cfg.Seed = seed
		cfg.Count = 120
		values := testkit.GaussianMixture(cfg)
		for k := 1; k <= 4; k++ {
			_, post := fitMixture(t, values, k, domain.FitOptions{}, seed)
			total := 0.0
			for _, c := range post.Components {
				assert.GreaterOrEqual(t, c.Weight, 0.0)
				assert.GreaterOrEqual(t, c.Variance, numerics.VarianceFloor)
				total += c.Weight
			}
			assert.InDelta(t, 1.0, total, 1e-6, "seed %d k %d", seed, k)
		}
	}
}

func TestEStep_ResponsibilitiesSumToOne(t *testing.T) {
	values := []float64{-1000, -5, 0, 3, 7.5, 1000}
	comps := []Component{
		{Mean: -5, Variance: 0.01, Weight: 0.2},
		{Mean: 5, Variance: 1, Weight: 0.5},
		{Mean: 900, Variance: 4, Weight: 0.3},
	}
	resp, total := eStep(values, comps)

	require.Len(t, resp, len(values))
	for i, row := range resp {
		sum := 0.0
		for _, r := range row {
			assert.False(t, math.IsNaN(r))
			assert.GreaterOrEqual(t, r, 0.0)
			sum += r
		}
		assert.InDelta(t, 1.0, sum, 1e-9, "row %d", i)
	}
	assert.InDelta(t, logLikelihood(values, comps), total, 1e-9)
}

func TestFitGaussianMixture_DuplicatePoints(t *testing.T) {
	values := []float64{3, 3, 3, 3, 3, 3}
	res, post := fitMixture(t, values, 2, domain.FitOptions{}, 1)

	for _, c := range post.Components {
		assert.InDelta(t, 3.0, c.Mean, 1e-9)
		assert.GreaterOrEqual(t, c.Variance, numerics.VarianceFloor)
	}
	requireFinite(t, post.Mean())
	requireFinite(t, post.Variance())
	requireFiniteIntervals(t, post.CredibleInterval(0.95))
	assert.False(t, math.IsNaN(res.Diagnostics.FinalELBO))
}

func TestFitGaussianMixture_CollapsedComponentsAreAccepted(t *testing.T) {
	cfg := testkit.DefaultMixtureConfig()
	cfg.Components = []testkit.GaussianSpec{{Mean: 2, StdDev: 1, Weight: 1}}
	values := testkit.GaussianMixture(cfg)

	_, post := fitMixture(t, values, 2, domain.FitOptions{}, 3)
	assert.InDelta(t, 2.0, post.Mean()[0], 0.3)
}

func TestFitGaussianMixture_MaxIterationsIsNotAnError(t *testing.T) {
	values := testkit.GaussianMixture(testkit.DefaultMixtureConfig())
	res, _ := fitMixture(t, values, 2, domain.FitOptions{MaxIterations: 1, Tolerance: 1e-12}, 42)

	assert.False(t, res.Diagnostics.Converged)
	assert.Equal(t, 1, res.Diagnostics.Iterations)
}

func TestFitGaussianMixture_Validation(t *testing.T) {
	opts := domain.FitOptions{}.WithDefaults(10, 1e-6, 1)
	logger := internal.NewDiscardLogger()

	cases := map[string]struct {
		values []float64
		input  domain.DataInput
	}{
		"empty":             {nil, domain.NewValuesInput(nil, 0)},
		"k above n":         {[]float64{1, 2}, domain.NewValuesInput([]float64{1, 2}, 3)},
		"negative k":        {[]float64{1, 2}, domain.DataInput{Values: []float64{1, 2}, Config: &domain.InputConfig{NumComponents: -1}}},
		"non-finite sample": {[]float64{1, math.NaN()}, domain.NewValuesInput([]float64{1, math.NaN()}, 1)},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FitGaussianMixture(tc.values, tc.input, opts, NewRNG(1), false, logger)
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrInvalidData))
		})
	}
}

func TestFitGaussianMixture_DefaultComponentCount(t *testing.T) {
	values := []float64{1}
	res, err := FitGaussianMixture(values, domain.NewValuesInput(values, 0), domain.FitOptions{}.WithDefaults(10, 1e-6, 1), NewRNG(1), false, internal.NewDiscardLogger())
	require.NoError(t, err)
	assert.Len(t, res.Posterior.(MixturePosterior).Components, 1)
}

func TestKMeansPlusPlus_SpreadsCenters(t *testing.T) {
	values := []float64{0, 0.1, 0.2, 100, 100.1, 100.2}
	for seed := uint64(0); seed < 20; seed++ {
		centers := kMeansPlusPlus(values, 2, NewRNG(seed))
		require.Len(t, centers, 2)
		sort.Float64s(centers)
		assert.Less(t, centers[0], 1.0)
		assert.Greater(t, centers[1], 99.0)
	}

	same := kMeansPlusPlus([]float64{4, 4, 4}, 3, NewRNG(1))
	assert.Equal(t, []float64{4, 4, 4}, same)
}

func TestFitGaussianMixture_SampleRoundTrip(t *testing.T) {
	values := testkit.GaussianMixture(testkit.DefaultMixtureConfig())
	_, post := fitMixture(t, values, 2, domain.FitOptions{}, 42)
	assertSampleMeans(t, post, 10000, 6)
}

func TestFitGaussianMixture_TracesIterations(t *testing.T) {
	var buf bytes.Buffer
	values := []float64{-2, -2.1, -1.9, 3, 3.2, 2.8}
	opts := domain.FitOptions{}.WithDefaults(50, 1e-8, 3)
	_, err := FitGaussianMixture(values, domain.NewValuesInput(values, 2), opts, NewRNG(3), false, internal.NewLoggerTo(&buf, internal.LogLevelTrace))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "[TRACE] EM iteration 1: log-likelihood")
}
