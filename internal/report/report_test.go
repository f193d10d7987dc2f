package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gobayes/domain/core"
	domain "gobayes/domain/inference"
	"gobayes/internal/inference"
)

func record(t *testing.T, modelType domain.ModelType, in domain.DataInput, opts domain.FitOptions) *domain.FitRecord {
	t.Helper()
	res, err := inference.NewEngine().Fit(modelType, in, opts)
	require.NoError(t, err)
	return &domain.FitRecord{
		ID:          core.FitID("0195f0a2-7d1c-7c3e-8d55-2a4b6c8e0f11"),
		ModelType:   modelType,
		Diagnostics: res.Diagnostics,
		Posterior:   res.Posterior,
		Summary:     domain.Summarize(res.Posterior, domain.SummaryLevels),
	}
}

func TestMarkdown_Beta(t *testing.T) {
	md := Markdown(record(t, domain.ModelBetaBinomial, domain.NewBinomialInput(50, 100), domain.FitOptions{}))

	assert.Contains(t, md, "# Fit 0195f0a2-7d1c-7c3e-8d55-2a4b6c8e0f11")
	assert.Contains(t, md, "`beta-binomial`")
	assert.Contains(t, md, "| success rate | 0.5 |")
	assert.Contains(t, md, "95% interval")
	assert.Contains(t, md, "| true | 1 | log_evidence |")
	assert.NotContains(t, md, "Warning")
	assert.NotContains(t, md, "## Components")
}

func TestMarkdown_MixtureAndWarning(t *testing.T) {
	values := []float64{-5.2, -4.8, -5.1, 4.9, 5.3, 5.0, 4.7}
	md := Markdown(record(t, domain.ModelNormalMixture, domain.NewValuesInput(values, 2), domain.FitOptions{MaxIterations: 1, Tolerance: 1e-12}))

	assert.Contains(t, md, "**Warning:**")
	assert.Contains(t, md, "## Components")
	assert.Equal(t, 2, strings.Count(md, "\n| 1 |")+strings.Count(md, "\n| 2 |"))
}

func TestDimensionLabels_ZILN(t *testing.T) {
	values := []float64{0, 0, 1.2, 3.4, 0, 2.2}
	rec := record(t, domain.ModelZeroInflatedLogNormal, domain.NewValuesInput(values, 0), domain.FitOptions{})
	assert.Equal(t, []string{"zero probability", "non-zero value", "overall value"}, DimensionLabels(rec.Posterior))
	assert.Contains(t, Markdown(rec), "| overall value |")
}

func TestHTML(t *testing.T) {
	out := string(HTML(record(t, domain.ModelBetaBinomial, domain.NewBinomialInput(3, 10), domain.FitOptions{})))
	assert.Contains(t, out, "<html")
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "<title>Fit 0195f0a2-7d1c-7c3e-8d55-2a4b6c8e0f11</title>")
	assert.Contains(t, out, "success rate")
}
