package inference

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gobayes/domain/core"
	domain "gobayes/domain/inference"
	"gobayes/internal/numerics"
)

func TestFitBetaBinomial_ConjugacyIsExact(t *testing.T) {
	priors := []domain.PriorParams{
		{Family: "beta", Alpha: 1, Beta: 1},
		{Family: "beta", Alpha: 2.5, Beta: 0.5},
		{Alpha: 10, Beta: 3},
	}
	for _, prior := range priors {
		for _, n := range []int{0, 1, 7, 20} {
			for s := 0; s <= n; s++ {
				prior := prior
				res, err := FitBetaBinomial(domain.NewBinomialInput(s, n), domain.FitOptions{PriorParams: &prior})
				require.NoError(t, err)

				post, ok := res.Posterior.(BetaPosterior)
				require.True(t, ok)
				assert.Equal(t, prior.Alpha+float64(s), post.Alpha)
				assert.Equal(t, prior.Beta+float64(n-s), post.Beta)
			}
		}
	}
}

func TestFitBetaBinomial_ScenarioA(t *testing.T) {
	res, err := FitBetaBinomial(domain.NewBinomialInput(50, 100), domain.FitOptions{})
	require.NoError(t, err)

	mean := res.Posterior.Mean()[0]
	assert.GreaterOrEqual(t, mean, 0.45)
	assert.LessOrEqual(t, mean, 0.55)
	assert.Equal(t, 1, res.Diagnostics.Iterations)
	assert.True(t, res.Diagnostics.Converged)
	assert.Equal(t, domain.ObjectiveLogEvidence, res.Diagnostics.Objective)
	assert.Len(t, res.Diagnostics.History, 1)
	assert.Nil(t, res.Diagnostics.AcceptanceRate)

	want := numerics.LogBeta(51, 51) - numerics.LogBeta(1, 1)
	assert.InDelta(t, want, res.Diagnostics.FinalELBO, 1e-12)
}

func TestFitBetaBinomial_Validation(t *testing.T) {
	tests := []struct {
		name    string
		input   domain.DataInput
		opts    domain.FitOptions
		wantMsg string
	}{
		{"successes above trials", domain.NewBinomialInput(7, 5), domain.FitOptions{}, "successes: must be <= trials (got 7 > 5)"},
		{"negative successes", domain.NewBinomialInput(-1, 5), domain.FitOptions{}, "successes: must be >= 0"},
		{"missing summary", domain.NewValuesInput([]float64{1, 0}, 0), domain.FitOptions{}, "data"},
		{"wrong prior family", domain.NewBinomialInput(1, 5), domain.FitOptions{PriorParams: &domain.PriorParams{Family: "gamma", Alpha: 1, Beta: 1}}, "priorParams.family"},
		{"non-positive alpha", domain.NewBinomialInput(1, 5), domain.FitOptions{PriorParams: &domain.PriorParams{Alpha: -1, Beta: 1}}, "priorParams.alpha"},
		{"non-positive beta", domain.NewBinomialInput(1, 5), domain.FitOptions{PriorParams: &domain.PriorParams{Alpha: 1, Beta: 0}}, "priorParams.beta"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := FitBetaBinomial(tt.input, tt.opts)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, errors.Is(err, core.ErrInvalidData))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestFitBetaBinomial_SampleRoundTrip(t *testing.T) {
	res, err := FitBetaBinomial(domain.NewBinomialInput(120, 1000), domain.FitOptions{})
	require.NoError(t, err)
	assertSampleMeans(t, res.Posterior, 10000, 5)
}
