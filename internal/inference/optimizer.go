package inference

import "math"

// AdamConfig holds the step-size hyperparameters of the adaptive ascent rule.
type AdamConfig struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
}

// DefaultAdam is used by the gradient VI tier.
var DefaultAdam = AdamConfig{
	LearningRate: 0.02,
	Beta1:        0.9,
	Beta2:        0.999,
	Epsilon:      1e-8,
}

// Moments are the running first/second raw-moment averages of the gradient.
// They are threaded through the loop explicitly and never mutated in place.
type Moments struct {
	First  []float64
	Second []float64
	Step   int
}

// NewMoments returns zeroed accumulators for dim parameters.
func NewMoments(dim int) Moments {
	return Moments{First: make([]float64, dim), Second: make([]float64, dim)}
}

// Step performs one bias-corrected ascent update and returns the new
// parameters and moments; its inputs are left untouched.
func (c AdamConfig) Step(params, grad []float64, m Moments) ([]float64, Moments) {
	next := Moments{
		First:  make([]float64, len(params)),
		Second: make([]float64, len(params)),
		Step:   m.Step + 1,
	}
	out := make([]float64, len(params))
	bias1 := 1 - math.Pow(c.Beta1, float64(next.Step))
	bias2 := 1 - math.Pow(c.Beta2, float64(next.Step))
	for i := range params {
		g := grad[i]
		next.First[i] = c.Beta1*m.First[i] + (1-c.Beta1)*g
		next.Second[i] = c.Beta2*m.Second[i] + (1-c.Beta2)*g*g
		mHat := next.First[i] / bias1
		vHat := next.Second[i] / bias2
		out[i] = params[i] + c.LearningRate*mHat/(math.Sqrt(vHat)+c.Epsilon)
	}
	return out, next
}
