package container

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "gobayes/domain/inference"
	"gobayes/internal/config"
	"gobayes/internal/worker"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", ":memory:")
	t.Setenv("WORKER_COUNT", "3")
	t.Setenv("LOG_LEVEL", "ERROR")
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func TestNew_WiresEverything(t *testing.T) {
	ctx := context.Background()
	c, err := New(ctx, testConfig(t))
	require.NoError(t, err)
	defer c.Shutdown(ctx)

	require.NotNil(t, c.DB)
	require.NotNil(t, c.FitRepo)
	assert.Equal(t, 3, c.Pool.Size())

	rec, err := c.FitService.Fit(ctx, worker.FitRequest{
		ModelType: domain.ModelBetaBinomial,
		Input:     domain.NewBinomialInput(4, 10),
	}, true)
	require.NoError(t, err)

	stored, err := c.FitService.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, stored.ID)
}

func TestNew_WithoutDatabase(t *testing.T) {
	ctx := context.Background()
	c, err := New(ctx, testConfig(t), WithoutDatabase())
	require.NoError(t, err)
	defer c.Shutdown(ctx)

	assert.Nil(t, c.DB)
	assert.Nil(t, c.FitRepo)
	_, err = c.FitService.Fit(ctx, worker.FitRequest{
		ModelType: domain.ModelBetaBinomial,
		Input:     domain.NewBinomialInput(1, 2),
	}, false)
	assert.NoError(t, err)
}

func TestNew_RejectsNilConfig(t *testing.T) {
	_, err := New(context.Background(), nil)
	assert.Error(t, err)
}
