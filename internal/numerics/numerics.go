// Package numerics holds the numerically stable primitives shared by every
// inference tier.
package numerics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mathext"
)

// DefaultMaxGradNorm is the clipping threshold used by the gradient tier.
const DefaultMaxGradNorm = 10.0

// VarianceFloor keeps mixture components from collapsing onto a single point.
const VarianceFloor = 1e-6

const log2Pi = 1.8378770664093453

// LogSumExp returns log(Σ exp(v)). An empty input yields -Inf; a non-finite
// maximum is returned as-is so -Inf inputs never produce NaN.
func LogSumExp(values []float64) float64 {
	if len(values) == 0 {
		return math.Inf(-1)
	}
	return floats.LogSumExp(values)
}

// ClipGradient rescales grad to maxNorm when its Euclidean norm exceeds it.
// The input is never modified; a nil or empty gradient yields an empty slice.
func ClipGradient(grad []float64, maxNorm float64) []float64 {
	if len(grad) == 0 {
		return []float64{}
	}
	if maxNorm <= 0 {
		maxNorm = DefaultMaxGradNorm
	}
	norm := floats.Norm(grad, 2)
	if norm <= maxNorm || math.IsNaN(norm) {
		return grad
	}
	out := make([]float64, len(grad))
	floats.ScaleTo(out, maxNorm/norm, grad)
	return out
}

// LogGamma is log|Γ(x)|.
func LogGamma(x float64) float64 {
	lg, _ := math.Lgamma(x)
	return lg
}

// LogBeta is log B(a, b) = logΓ(a) + logΓ(b) - logΓ(a+b).
func LogBeta(a, b float64) float64 {
	return mathext.Lbeta(a, b)
}

// SafeLog returns log(x) for x > 0 and -Inf otherwise.
func SafeLog(x float64) float64 {
	if !(x > 0) {
		return math.Inf(-1)
	}
	return math.Log(x)
}

// LogNormalDensity is the log density of N(mean, variance) at x.
func LogNormalDensity(x, mean, variance float64) float64 {
	if variance < VarianceFloor {
		variance = VarianceFloor
	}
	d := x - mean
	return -0.5 * (log2Pi + math.Log(variance) + d*d/variance)
}

// Sigmoid is the logistic function, evaluated without overflow.
func Sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

// Logit is the inverse of Sigmoid; p is clamped to [lo, 1-lo].
func Logit(p, lo float64) float64 {
	p = Clamp(p, lo, 1-lo)
	return math.Log(p / (1 - p))
}

// KLStdNormal is KL(N(mean, exp(logVar)) || N(0, 1)).
func KLStdNormal(mean, logVar float64) float64 {
	return 0.5 * (math.Exp(logVar) + mean*mean - 1 - logVar)
}

// Clamp bounds x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

// RelativeChange is ||next - prev|| / max(||prev||, tiny).
func RelativeChange(prev, next []float64) float64 {
	denom := floats.Norm(prev, 2)
	if denom < 1e-12 {
		denom = 1e-12
	}
	return floats.Distance(next, prev, 2) / denom
}
