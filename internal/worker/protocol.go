// Package worker runs fits off the caller's goroutine. A Host owns the
// posteriors it produced and talks to its Client only through request and
// response messages tagged with a correlation ID.
package worker

import (
	"gobayes/domain/core"
	domain "gobayes/domain/inference"
)

// Kind names the operation a request asks the host to perform.
type Kind string

const (
	KindFit     Kind = "fit"
	KindSample  Kind = "sample"
	KindRestore Kind = "restore"
	KindRelease Kind = "release"
)

// Request is the only way a caller reaches a Host.
type Request struct {
	ID        core.RequestID
	Kind      Kind
	ModelType domain.ModelType
	Data      domain.DataInput
	Options   domain.FitOptions

	// Sample, restore and release address an existing fit.
	FitID core.FitID
	Count int
	// Reseed restarts the fit's sampling stream from Seed before drawing.
	Reseed bool
	Seed   uint64

	// Posterior is only set on restore.
	Posterior domain.Posterior
}

// ResponseType tags a reply.
type ResponseType string

const (
	ResponseProgress ResponseType = "progress"
	ResponseResult   ResponseType = "result"
	ResponseError    ResponseType = "error"
)

// Response carries one of the payload types below.
type Response struct {
	ID      core.RequestID
	Kind    Kind
	Type    ResponseType
	Payload any
}

// FitPayload answers a fit or restore.
type FitPayload struct {
	FitID  core.FitID
	Result *domain.VIResult
}

// SamplePayload answers a sample request.
type SamplePayload struct {
	Samples [][]float64
}

// ProgressPayload reports the completed fraction of a request.
type ProgressPayload struct {
	Fraction float64
}

// ErrorPayload wraps the failure of a request.
type ErrorPayload struct {
	Err error
}

func (p ErrorPayload) Error() string { return p.Err.Error() }

func (p ErrorPayload) Unwrap() error { return p.Err }
