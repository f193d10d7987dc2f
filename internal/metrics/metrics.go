// Package metrics exposes Prometheus collectors for fits and the worker boundary.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// Fit outcomes.
const (
	OutcomeConverged    = "converged"
	OutcomeNotConverged = "not_converged"
	OutcomeInvalid      = "invalid"
	OutcomeError        = "error"
)

var (
	// fitsTotal counts fits by model type and outcome
	fitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gobayes_fits_total",
		Help: "Total fits by model type and outcome",
	}, []string{"model_type", "outcome"})

	// fitDuration tracks fit latency
	fitDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gobayes_fit_duration_seconds",
		Help:    "Fit duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.00005, 4, 10), // 50us to ~13s
	}, []string{"model_type"})

	// fitIterations tracks iterations used per fit
	fitIterations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gobayes_fit_iterations",
		Help:    "Iterations used per fit",
		Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
	}, []string{"model_type"})

	// workerRequests counts requests crossing the worker boundary
	workerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gobayes_worker_requests_total",
		Help: "Worker requests by kind and outcome",
	}, []string{"kind", "outcome"})

	residentFits = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gobayes_worker_resident_fits",
		Help: "Posteriors currently held by execution contexts",
	})

	samplesDrawn = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gobayes_samples_drawn_total",
		Help: "Posterior samples drawn through the worker boundary",
	})
)

// ObserveFit records one dispatcher call.
func ObserveFit(modelType, outcome string, elapsed time.Duration, iterations int) {
	fitsTotal.WithLabelValues(modelType, outcome).Inc()
	fitDuration.WithLabelValues(modelType).Observe(elapsed.Seconds())
	if iterations > 0 {
		fitIterations.WithLabelValues(modelType).Observe(float64(iterations))
	}
}

// ObserveWorkerRequest records one request/response exchange.
func ObserveWorkerRequest(kind, outcome string) {
	workerRequests.WithLabelValues(kind, outcome).Inc()
}

// AddResidentFits moves the resident-fit gauge by delta.
func AddResidentFits(delta int) {
	residentFits.Add(float64(delta))
}

// AddSamples counts draws returned to callers.
func AddSamples(n int) {
	samplesDrawn.Add(float64(n))
}

// FitCount reads the current counter value; used by tests.
func FitCount(modelType, outcome string) float64 {
	return testutil.ToFloat64(fitsTotal.WithLabelValues(modelType, outcome))
}

// WorkerRequestCount reads the current counter value; used by tests.
func WorkerRequestCount(kind, outcome string) float64 {
	return testutil.ToFloat64(workerRequests.WithLabelValues(kind, outcome))
}
