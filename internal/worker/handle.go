package worker

import (
	"context"
	"fmt"

	"gobayes/domain/core"
	domain "gobayes/domain/inference"
	"gobayes/internal/metrics"
)

// Handle is the caller's view of a fit living on a host. Summary queries
// are answered from a cache filled once when the handle is created;
// sampling crosses the message boundary.
type Handle struct {
	client *Client
	id     core.FitID
	// key names the host's copy; it differs from id for restored fits.
	key         core.FitID
	modelType   domain.ModelType
	diagnostics domain.Diagnostics
	posterior   domain.Posterior
	summary     domain.Summary
}

func newHandle(c *Client, id, key core.FitID, modelType domain.ModelType, res *domain.VIResult) *Handle {
	return &Handle{
		client:      c,
		id:          id,
		key:         key,
		modelType:   modelType,
		diagnostics: res.Diagnostics,
		posterior:   res.Posterior,
		summary:     domain.Summarize(res.Posterior, domain.SummaryLevels),
	}
}

func (h *Handle) ID() core.FitID                  { return h.id }
func (h *Handle) ModelType() domain.ModelType     { return h.modelType }
func (h *Handle) Diagnostics() domain.Diagnostics { return h.diagnostics }

// Posterior returns the immutable posterior value, for persistence.
func (h *Handle) Posterior() domain.Posterior { return h.posterior }

// Summary returns the cached summary.
func (h *Handle) Summary() domain.Summary { return h.summary }

func (h *Handle) Mean() []float64 {
	return append([]float64(nil), h.summary.Mean...)
}

func (h *Handle) Variance() []float64 {
	return append([]float64(nil), h.summary.Variance...)
}

// CredibleInterval answers from the cache; levels outside
// domain.SummaryLevels report false.
func (h *Handle) CredibleInterval(level float64) ([]domain.Interval, bool) {
	ivs, ok := h.summary.Interval(level)
	if !ok {
		return nil, false
	}
	return append([]domain.Interval(nil), ivs...), true
}

// SampleOptions tunes a bulk draw.
type SampleOptions struct {
	// Seed, when non-zero, restarts the fit's sampling stream so the draw
	// is reproducible. Zero continues the stream.
	Seed uint64
	// Progress receives the completed fraction after each batch.
	Progress func(float64)
}

// Sample draws n samples in batches of the client's batch size. Batching
// does not change the draw: the host continues one stream across batches.
func (h *Handle) Sample(ctx context.Context, n int, opts SampleOptions) ([][]float64, error) {
	if n < 1 {
		return nil, core.NewInvalidDataError("count", fmt.Sprintf("must be >= 1 (got %d)", n))
	}
	batch := h.client.cfg.BatchSize
	out := make([][]float64, 0, n)
	for len(out) < n {
		size := min(batch, n-len(out))
		resp, err := h.client.roundTrip(ctx, Request{
			Kind:   KindSample,
			FitID:  h.key,
			Count:  size,
			Reseed: len(out) == 0 && opts.Seed != 0,
			Seed:   opts.Seed,
		}, h.client.cfg.SampleTimeout, nil)
		if err != nil {
			return nil, err
		}
		payload, ok := resp.Payload.(SamplePayload)
		if !ok {
			return nil, fmt.Errorf("sample request %s: unexpected payload %T", resp.ID, resp.Payload)
		}
		out = append(out, payload.Samples...)
		if opts.Progress != nil {
			opts.Progress(float64(len(out)) / float64(n))
		}
	}
	metrics.AddSamples(len(out))
	return out, nil
}

// Release frees the host's copy of the posterior. Cached queries keep working.
func (h *Handle) Release(ctx context.Context) error {
	_, err := h.client.roundTrip(ctx, Request{Kind: KindRelease, FitID: h.key}, h.client.cfg.SampleTimeout, nil)
	return err
}
