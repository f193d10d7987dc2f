package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"gobayes/domain/core"
	domain "gobayes/domain/inference"
	"gobayes/internal"
)

// Pool spreads fits across several hosts. Fits share no state, so they
// need no coordination beyond the bound on in-flight work.
type Pool struct {
	clients []*Client
	next    atomic.Uint64
	sem     *semaphore.Weighted
	logger  *internal.Logger
}

// NewPool starts size hosts running fitter.
func NewPool(size int, fitter Fitter, cfg ClientConfig, logger *internal.Logger, opts ...HostOption) *Pool {
	if size < 1 {
		size = 1
	}
	if logger == nil {
		logger = internal.NewDiscardLogger()
	}
	p := &Pool{
		sem:    semaphore.NewWeighted(int64(size)),
		logger: logger.With("worker-pool"),
	}
	hostOpts := append([]HostOption{WithHostLogger(logger)}, opts...)
	for i := 0; i < size; i++ {
		p.clients = append(p.clients, NewClient(NewHost(fitter, hostOpts...), cfg, logger))
	}
	p.logger.Info("started %d execution contexts", size)
	return p
}

// Size is the number of hosts.
func (p *Pool) Size() int { return len(p.clients) }

func (p *Pool) pick() *Client {
	return p.clients[p.next.Add(1)%uint64(len(p.clients))]
}

// Fit waits for a free host slot and runs fr there.
func (p *Pool) Fit(ctx context.Context, fr FitRequest) (*Handle, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: waiting for an execution context", core.ErrTimeout)
		}
		return nil, fmt.Errorf("%w: waiting for an execution context", core.ErrCancelled)
	}
	defer p.sem.Release(1)
	return p.pick().Fit(ctx, fr)
}

// FitAll runs independent fits concurrently. On error the returned slice
// still holds the handles of the fits that finished.
func (p *Pool) FitAll(ctx context.Context, reqs []FitRequest) ([]*Handle, error) {
	handles := make([]*Handle, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	for i, fr := range reqs {
		g.Go(func() error {
			h, err := p.Fit(gctx, fr)
			if err != nil {
				return fmt.Errorf("fit %d (%s): %w", i, fr.ModelType, err)
			}
			handles[i] = h
			return nil
		})
	}
	return handles, g.Wait()
}

// Restore places a stored posterior on one of the hosts.
func (p *Pool) Restore(ctx context.Context, id core.FitID, modelType domain.ModelType, posterior domain.Posterior, diag domain.Diagnostics) (*Handle, error) {
	return p.pick().Restore(ctx, id, modelType, posterior, diag)
}

// Close stops every host.
func (p *Pool) Close() {
	for _, c := range p.clients {
		c.Close()
	}
}
