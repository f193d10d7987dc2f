package app

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gobayes/adapters/store"
	"gobayes/domain/core"
	domain "gobayes/domain/inference"
	"gobayes/internal/inference"
	"gobayes/internal/worker"
	"gobayes/ports"
)

func newTestService(t *testing.T, withRepo bool) *FitService {
	t.Helper()
	pool := worker.NewPool(2, inference.NewEngine(), worker.ClientConfig{BatchSize: 100}, nil)
	t.Cleanup(pool.Close)

	var repo ports.FitRepository
	if withRepo {
		db, err := store.OpenMigrated(context.Background(), store.DriverSQLite, ":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		repo = store.NewFitRepository(db)
	}
	return NewFitService(pool, repo, nil)
}

func TestFitService_FitSaveAndSample(t *testing.T) {
	svc := newTestService(t, true)
	ctx := context.Background()

	rec, err := svc.Fit(ctx, worker.FitRequest{ModelType: domain.ModelBetaBinomial, Input: domain.NewBinomialInput(30, 100)}, true)
	require.NoError(t, err)
	assert.Equal(t, domain.ModelBetaBinomial, rec.ModelType)
	assert.False(t, rec.DataHash.IsEmpty())

	stored, err := svc.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Summary, stored.Summary)

	var last float64
	a, err := svc.Sample(ctx, rec.ID, 250, 9, func(f float64) { last = f })
	require.NoError(t, err)
	b, err := svc.Sample(ctx, rec.ID, 250, 9, nil)
	require.NoError(t, err)
	assert.Len(t, a, 250)
	assert.Equal(t, a, b)
	assert.Equal(t, 1.0, last)

	list, err := svc.List(ctx, ports.FitFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestFitService_SampleBounds(t *testing.T) {
	svc := newTestService(t, true)
	for _, n := range []int{0, -1, MaxSampleCount + 1} {
		_, err := svc.Sample(context.Background(), core.NewFitID(), n, 0, nil)
		assert.True(t, core.IsInvalidData(err), "count %d", n)
	}
	_, err := svc.Sample(context.Background(), core.NewFitID(), 10, 0, nil)
	assert.True(t, errors.Is(err, core.ErrFitNotFound))
}

func TestFitService_WithoutRepository(t *testing.T) {
	svc := newTestService(t, false)
	rec, err := svc.Fit(context.Background(), worker.FitRequest{ModelType: domain.ModelBetaBinomial, Input: domain.NewBinomialInput(1, 4)}, false)
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), rec.ID)
	assert.True(t, core.IsNotFoundError(err))
	assert.Error(t, svc.Save(context.Background(), rec))
}

func TestFitService_InvalidInput(t *testing.T) {
	svc := newTestService(t, true)
	_, err := svc.Fit(context.Background(), worker.FitRequest{ModelType: domain.ModelBetaBinomial, Input: domain.NewBinomialInput(5, 2)}, true)
	assert.True(t, core.IsInvalidData(err))

	list, err := svc.List(context.Background(), ports.FitFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestFitService_ConcurrentSamplesOfOneFit(t *testing.T) {
	pool := worker.NewPool(1, inference.NewEngine(), worker.ClientConfig{BatchSize: 100}, nil)
	t.Cleanup(pool.Close)
	db, err := store.OpenMigrated(context.Background(), store.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	svc := NewFitService(pool, store.NewFitRepository(db), nil)

	ctx := context.Background()
	rec, err := svc.Fit(ctx, worker.FitRequest{ModelType: domain.ModelBetaBinomial, Input: domain.NewBinomialInput(30, 100)}, true)
	require.NoError(t, err)

	want, err := svc.Sample(ctx, rec.ID, 1000, 21, nil)
	require.NoError(t, err)

	for round := 0; round < 10; round++ {
		var wg sync.WaitGroup
		errs := make([]error, 4)
		draws := make([][][]float64, 4)
		for i := range errs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				draws[i], errs[i] = svc.Sample(ctx, rec.ID, 1000, 21, nil)
			}()
		}
		wg.Wait()
		for i, err := range errs {
			require.NoError(t, err, "round %d caller %d", round, i)
			assert.Equal(t, want, draws[i], "round %d caller %d", round, i)
		}
	}
}
