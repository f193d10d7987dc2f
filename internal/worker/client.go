package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gobayes/domain/core"
	domain "gobayes/domain/inference"
	"gobayes/internal"
	"gobayes/internal/metrics"
)

// Request outcomes recorded in metrics.
const (
	outcomeOK        = "ok"
	outcomeError     = "error"
	outcomeTimeout   = "timeout"
	outcomeCancelled = "cancelled"
	outcomeStale     = "stale"
)

// ClientConfig bounds how long a caller waits on its host.
type ClientConfig struct {
	FitTimeout    time.Duration
	SampleTimeout time.Duration
	BatchSize     int
}

// DefaultClientConfig matches the configuration defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		FitTimeout:    2 * time.Minute,
		SampleTimeout: 30 * time.Second,
		BatchSize:     1000,
	}
}

type pendingCall struct {
	reply    chan Response
	progress func(float64)
}

// Client is the caller-side proxy of one Host. Replies are matched to
// requests by ID; replies whose request was abandoned are dropped.
type Client struct {
	host   *Host
	cfg    ClientConfig
	logger *internal.Logger

	mu      sync.Mutex
	pending map[core.RequestID]*pendingCall
	closed  bool
	done    chan struct{}
}

// NewClient attaches a proxy to host and starts routing its replies.
func NewClient(host *Host, cfg ClientConfig, logger *internal.Logger) *Client {
	def := DefaultClientConfig()
	if cfg.FitTimeout <= 0 {
		cfg.FitTimeout = def.FitTimeout
	}
	if cfg.SampleTimeout <= 0 {
		cfg.SampleTimeout = def.SampleTimeout
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if logger == nil {
		logger = internal.NewDiscardLogger()
	}
	c := &Client{
		host:    host,
		cfg:     cfg,
		logger:  logger.With("worker-client"),
		pending: make(map[core.RequestID]*pendingCall),
		done:    make(chan struct{}),
	}
	go c.dispatch()
	return c
}

func (c *Client) dispatch() {
	defer close(c.done)
	for resp := range c.host.Responses() {
		c.mu.Lock()
		call, ok := c.pending[resp.ID]
		if ok && resp.Type != ResponseProgress {
			delete(c.pending, resp.ID)
		}
		c.mu.Unlock()

		if !ok {
			if resp.Type != ResponseProgress {
				c.logger.Debug("dropping stale %s reply for request %s", resp.Kind, resp.ID)
				metrics.ObserveWorkerRequest(string(resp.Kind), outcomeStale)
				if p, isFit := resp.Payload.(FitPayload); isFit && resp.Type == ResponseResult {
					// Nobody holds a handle to this fit; free it.
					go c.releaseOrphan(p.FitID)
				}
			}
			continue
		}
		if resp.Type == ResponseProgress {
			if p, ok := resp.Payload.(ProgressPayload); ok && call.progress != nil {
				call.progress(p.Fraction)
			}
			continue
		}
		call.reply <- resp
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for id, call := range c.pending {
		call.reply <- Response{ID: id, Type: ResponseError, Payload: ErrorPayload{Err: core.ErrClosed}}
		delete(c.pending, id)
	}
}

// releaseOrphan runs off the routing goroutine, which must keep draining
// replies while the release is queued.
func (c *Client) releaseOrphan(id core.FitID) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.SampleTimeout)
	defer cancel()
	if _, err := c.roundTrip(ctx, Request{Kind: KindRelease, FitID: id}, c.cfg.SampleTimeout, nil); err != nil && !errors.Is(err, core.ErrClosed) {
		c.logger.Warn("release of abandoned fit %s failed: %v", id, err)
	}
}

func (c *Client) forget(id core.RequestID) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// roundTrip sends req and waits for its reply, the timeout or ctx.
func (c *Client) roundTrip(ctx context.Context, req Request, timeout time.Duration, progress func(float64)) (Response, error) {
	req.ID = core.NewRequestID()
	call := &pendingCall{reply: make(chan Response, 1), progress: progress}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Response{}, core.ErrClosed
	}
	c.pending[req.ID] = call
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := c.host.Submit(ctx.Done(), req); err != nil {
		c.forget(req.ID)
		if errors.Is(err, errSubmitAbandoned) {
			return Response{}, c.abandoned(ctx, req, timeout)
		}
		metrics.ObserveWorkerRequest(string(req.Kind), outcomeError)
		return Response{}, err
	}

	select {
	case resp := <-call.reply:
		if resp.Type == ResponseError {
			metrics.ObserveWorkerRequest(string(req.Kind), outcomeError)
			if p, ok := resp.Payload.(ErrorPayload); ok {
				return resp, p.Err
			}
			return resp, fmt.Errorf("%s request failed", req.Kind)
		}
		metrics.ObserveWorkerRequest(string(req.Kind), outcomeOK)
		return resp, nil
	case <-ctx.Done():
		c.forget(req.ID)
		return Response{}, c.abandoned(ctx, req, timeout)
	}
}

func (c *Client) abandoned(ctx context.Context, req Request, timeout time.Duration) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		metrics.ObserveWorkerRequest(string(req.Kind), outcomeTimeout)
		return fmt.Errorf("%w: %s request %s after %s", core.ErrTimeout, req.Kind, req.ID, timeout)
	}
	metrics.ObserveWorkerRequest(string(req.Kind), outcomeCancelled)
	return fmt.Errorf("%w: %s request %s", core.ErrCancelled, req.Kind, req.ID)
}

// FitRequest is one fit to run through a Client or Pool.
type FitRequest struct {
	ModelType domain.ModelType
	Input     domain.DataInput
	Options   domain.FitOptions
	// Progress, if set, is called from the routing goroutine and must not block.
	Progress func(float64)
}

// Fit runs the request on the host and returns a handle whose summary is
// already cached.
func (c *Client) Fit(ctx context.Context, fr FitRequest) (*Handle, error) {
	resp, err := c.roundTrip(ctx, Request{
		Kind:      KindFit,
		ModelType: fr.ModelType,
		Data:      fr.Input,
		Options:   fr.Options,
	}, c.cfg.FitTimeout, fr.Progress)
	if err != nil {
		return nil, err
	}
	payload, ok := resp.Payload.(FitPayload)
	if !ok || payload.Result == nil {
		return nil, fmt.Errorf("fit request %s: unexpected payload %T", resp.ID, resp.Payload)
	}
	return newHandle(c, payload.FitID, payload.FitID, fr.ModelType, payload.Result), nil
}

// Restore places a private copy of a stored posterior on the host so it can
// be sampled again. The handle reports id; each call gets its own stream.
func (c *Client) Restore(ctx context.Context, id core.FitID, modelType domain.ModelType, posterior domain.Posterior, diag domain.Diagnostics) (*Handle, error) {
	resp, err := c.roundTrip(ctx, Request{Kind: KindRestore, FitID: id, Posterior: posterior}, c.cfg.SampleTimeout, nil)
	if err != nil {
		return nil, err
	}
	payload, ok := resp.Payload.(FitPayload)
	if !ok {
		return nil, fmt.Errorf("restore request %s: unexpected payload %T", resp.ID, resp.Payload)
	}
	return newHandle(c, id, payload.FitID, modelType, &domain.VIResult{Posterior: posterior, Diagnostics: diag}), nil
}

// Close stops the host and waits for the routing goroutine to finish.
// Pending requests fail with core.ErrClosed.
func (c *Client) Close() {
	c.host.Close()
	<-c.done
}
