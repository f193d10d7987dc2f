package app

import (
	"context"
	"fmt"
	"time"

	"gobayes/domain/core"
	domain "gobayes/domain/inference"
	"gobayes/internal"
	"gobayes/internal/worker"
	"gobayes/ports"
)

// MaxSampleCount bounds a single sampling request.
const MaxSampleCount = 100000

const releaseTimeout = 5 * time.Second

// FitService runs fits on the worker pool and persists their results.
type FitService struct {
	pool   *worker.Pool
	repo   ports.FitRepository
	logger *internal.Logger
}

// NewFitService wires the pool and repository. repo may be nil, in which
// case fits are never stored and lookups fail with not found.
func NewFitService(pool *worker.Pool, repo ports.FitRepository, logger *internal.Logger) *FitService {
	if logger == nil {
		logger = internal.NewDiscardLogger()
	}
	return &FitService{pool: pool, repo: repo, logger: logger.With("fit-service")}
}

// Fit runs one fit and, when persist is set, stores it.
func (s *FitService) Fit(ctx context.Context, req worker.FitRequest, persist bool) (*domain.FitRecord, error) {
	hash, err := domain.HashInput(req.Input)
	if err != nil {
		return nil, core.NewInvalidDataError("data", err.Error())
	}

	h, err := s.pool.Fit(ctx, req)
	if err != nil {
		return nil, err
	}
	defer s.release(h)

	rec := &domain.FitRecord{
		ID:          h.ID(),
		ModelType:   h.ModelType(),
		DataHash:    hash,
		Diagnostics: h.Diagnostics(),
		Posterior:   h.Posterior(),
		Summary:     h.Summary(),
		CreatedAt:   core.Now(),
	}
	if !rec.Diagnostics.Converged {
		s.logger.Warn("fit %s (%s) did not converge in %d iterations", rec.ID, rec.ModelType, rec.Diagnostics.Iterations)
	}

	if persist {
		if err := s.Save(ctx, rec); err != nil {
			return nil, err
		}
	}
	s.logger.Info("fit %s (%s) done: converged=%t iterations=%d", rec.ID, rec.ModelType, rec.Diagnostics.Converged, rec.Diagnostics.Iterations)
	return rec, nil
}

// Save stores a record produced by Fit.
func (s *FitService) Save(ctx context.Context, rec *domain.FitRecord) error {
	if s.repo == nil {
		return fmt.Errorf("no fit repository configured")
	}
	return s.repo.Save(ctx, rec)
}

// Get loads a stored fit.
func (s *FitService) Get(ctx context.Context, id core.FitID) (*domain.FitRecord, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("%w: %s", core.ErrFitNotFound, id)
	}
	return s.repo.Get(ctx, id)
}

// List returns stored fits, newest first.
func (s *FitService) List(ctx context.Context, filter ports.FitFilter) ([]*domain.FitRecord, error) {
	if s.repo == nil {
		return nil, nil
	}
	return s.repo.List(ctx, filter)
}

// Sample draws count samples from a stored fit. A non-zero seed makes the
// draw reproducible.
func (s *FitService) Sample(ctx context.Context, id core.FitID, count int, seed uint64, progress func(float64)) ([][]float64, error) {
	if count < 1 || count > MaxSampleCount {
		return nil, core.NewInvalidDataError("count", fmt.Sprintf("must be in [1, %d] (got %d)", MaxSampleCount, count))
	}
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	h, err := s.pool.Restore(ctx, rec.ID, rec.ModelType, rec.Posterior, rec.Diagnostics)
	if err != nil {
		return nil, err
	}
	defer s.release(h)
	return h.Sample(ctx, count, worker.SampleOptions{Seed: seed, Progress: progress})
}

func (s *FitService) release(h *worker.Handle) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	if err := h.Release(ctx); err != nil {
		s.logger.Warn("release fit %s: %v", h.ID(), err)
	}
}
