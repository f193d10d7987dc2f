package worker

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"gobayes/domain/core"
	domain "gobayes/domain/inference"
	"gobayes/internal"
	"gobayes/internal/inference"
	"gobayes/internal/metrics"
)

// Fitter is the synchronous dispatcher a Host runs requests against.
// *inference.Engine satisfies it.
type Fitter interface {
	Fit(modelType domain.ModelType, in domain.DataInput, opts domain.FitOptions) (*domain.VIResult, error)
}

const (
	inboxSize  = 16
	outboxSize = 64
)

type fitState struct {
	posterior domain.Posterior
	rng       *rand.Rand
}

func newFitState(p domain.Posterior, seed uint64) *fitState {
	return &fitState{posterior: p, rng: samplingStream(seed)}
}

func samplingStream(seed uint64) *rand.Rand {
	return inference.NewRNG(inference.DeriveSeed(seed, "samples"))
}

// Host is a single execution context. It handles one request at a time and
// is never preempted; a caller that gives up simply ignores the reply.
type Host struct {
	fitter      Fitter
	logger      *internal.Logger
	defaultSeed uint64

	inbox     chan Request
	outbox    chan Response
	done      chan struct{}
	closeOnce sync.Once

	// fits is only touched by the run goroutine.
	fits     map[core.FitID]*fitState
	resident atomic.Int64
}

// HostOption customises a Host.
type HostOption func(*Host)

func WithHostLogger(l *internal.Logger) HostOption {
	return func(h *Host) { h.logger = l }
}

// WithSamplingSeed sets the stream seed for fits whose options carry none.
func WithSamplingSeed(seed uint64) HostOption {
	return func(h *Host) { h.defaultSeed = seed }
}

// NewHost starts the execution context goroutine.
func NewHost(fitter Fitter, opts ...HostOption) *Host {
	h := &Host{
		fitter:      fitter,
		logger:      internal.NewDiscardLogger(),
		defaultSeed: inference.DefaultDefaults.Seed,
		inbox:       make(chan Request, inboxSize),
		outbox:      make(chan Response, outboxSize),
		done:        make(chan struct{}),
		fits:        make(map[core.FitID]*fitState),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("worker")
	go h.run()
	return h
}

// Submit queues a request. It blocks while the inbox is full.
func (h *Host) Submit(done <-chan struct{}, req Request) error {
	select {
	case <-h.done:
		return core.ErrClosed
	default:
	}
	select {
	case h.inbox <- req:
		return nil
	case <-h.done:
		return core.ErrClosed
	case <-done:
		return errSubmitAbandoned
	}
}

var errSubmitAbandoned = errors.New("submit abandoned")

// Resident is the number of fits currently held by the host.
func (h *Host) Resident() int { return int(h.resident.Load()) }

func (h *Host) store(id core.FitID, st *fitState) {
	if _, ok := h.fits[id]; !ok {
		h.resident.Add(1)
		metrics.AddResidentFits(1)
	}
	h.fits[id] = st
}

func (h *Host) drop(id core.FitID) {
	if _, ok := h.fits[id]; ok {
		delete(h.fits, id)
		h.resident.Add(-1)
		metrics.AddResidentFits(-1)
	}
}

// Responses is closed once the host stops.
func (h *Host) Responses() <-chan Response { return h.outbox }

// Close stops the host after the request in progress, if any.
func (h *Host) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

func (h *Host) run() {
	defer close(h.outbox)
	defer func() { metrics.AddResidentFits(-len(h.fits)) }()
	for {
		select {
		case <-h.done:
			return
		case req := <-h.inbox:
			h.handle(req)
		}
	}
}

func (h *Host) emit(resp Response) {
	select {
	case h.outbox <- resp:
	case <-h.done:
	}
}

func (h *Host) reply(req Request, payload any) {
	h.emit(Response{ID: req.ID, Kind: req.Kind, Type: ResponseResult, Payload: payload})
}

func (h *Host) fail(req Request, err error) {
	h.emit(Response{ID: req.ID, Kind: req.Kind, Type: ResponseError, Payload: ErrorPayload{Err: err}})
}

func (h *Host) progress(req Request, fraction float64) {
	h.emit(Response{ID: req.ID, Kind: req.Kind, Type: ResponseProgress, Payload: ProgressPayload{Fraction: fraction}})
}

func (h *Host) handle(req Request) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("request %s (%s) panicked: %v", req.ID, req.Kind, r)
			h.fail(req, fmt.Errorf("%s request panicked: %v", req.Kind, r))
		}
	}()

	switch req.Kind {
	case KindFit:
		h.handleFit(req)
	case KindSample:
		h.handleSample(req)
	case KindRestore:
		if req.Posterior == nil {
			h.fail(req, core.NewInvalidDataError("posterior", "restore requires a posterior"))
			return
		}
		// Each restore gets its own key so concurrent callers of one
		// stored fit never share or release each other's stream.
		key := core.NewFitID()
		h.store(key, newFitState(req.Posterior, h.defaultSeed))
		h.logger.Debug("restored fit %s as %s", req.FitID, key)
		h.reply(req, FitPayload{FitID: key, Result: &domain.VIResult{Posterior: req.Posterior}})
	case KindRelease:
		h.drop(req.FitID)
		h.reply(req, nil)
	default:
		h.fail(req, fmt.Errorf("unknown request kind %q", req.Kind))
	}
}

func (h *Host) handleFit(req Request) {
	h.progress(req, 0)
	res, err := h.fitter.Fit(req.ModelType, req.Data, req.Options)
	if err != nil {
		h.fail(req, err)
		return
	}
	h.progress(req, 1)

	seed := req.Options.Seed
	if seed == 0 {
		seed = h.defaultSeed
	}
	id := core.NewFitID()
	h.store(id, newFitState(res.Posterior, seed))
	h.logger.Debug("fit %s (%s) ready after %d iterations", id, req.ModelType, res.Diagnostics.Iterations)
	h.reply(req, FitPayload{FitID: id, Result: res})
}

func (h *Host) handleSample(req Request) {
	st, ok := h.fits[req.FitID]
	if !ok {
		h.fail(req, fmt.Errorf("%w: %s", core.ErrFitNotFound, req.FitID))
		return
	}
	if req.Count < 1 {
		h.fail(req, core.NewInvalidDataError("count", fmt.Sprintf("must be >= 1 (got %d)", req.Count)))
		return
	}
	if req.Reseed {
		st.rng = samplingStream(req.Seed)
	}
	out := make([][]float64, req.Count)
	for i := range out {
		out[i] = st.posterior.Sample(st.rng)
	}
	h.reply(req, SamplePayload{Samples: out})
}
