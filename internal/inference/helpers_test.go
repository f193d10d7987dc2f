package inference

import (
	"math"
	"testing"

	"github.com/montanaflynn/stats"
	"github.com/stretchr/testify/require"

	domain "gobayes/domain/inference"
)

// assertSampleMeans draws n samples and checks every dimension's empirical
// mean against Mean() within 4 standard errors.
func assertSampleMeans(t *testing.T, p domain.Posterior, n int, seed uint64) {
	t.Helper()
	rng := NewRNG(seed)
	want := p.Mean()
	cols := make([][]float64, len(want))
	for i := 0; i < n; i++ {
		s := p.Sample(rng)
		require.Len(t, s, len(want))
		for d, v := range s {
			cols[d] = append(cols[d], v)
		}
	}
	for d, col := range cols {
		mean, err := stats.Mean(col)
		require.NoError(t, err)
		sd, err := stats.StandardDeviationSample(col)
		require.NoError(t, err)
		se := sd / math.Sqrt(float64(n))
		require.InDelta(t, want[d], mean, 4*se+1e-12, "dimension %d: empirical mean %.6f vs %.6f (se %.6f)", d, mean, want[d], se)
	}
}

func requireFinite(t *testing.T, xs []float64) {
	t.Helper()
	for i, x := range xs {
		require.False(t, math.IsNaN(x) || math.IsInf(x, 0), "index %d is %v", i, x)
	}
}

func requireFiniteIntervals(t *testing.T, ivs []domain.Interval) {
	t.Helper()
	for i, iv := range ivs {
		requireFinite(t, iv[:])
		require.LessOrEqual(t, iv.Lower(), iv.Upper(), "interval %d inverted", i)
	}
}
