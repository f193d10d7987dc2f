package inference

import (
	"encoding/json"
	"fmt"

	domain "gobayes/domain/inference"
)

// Snapshot is the storable form of a posterior.
type Snapshot struct {
	Kind   string          `json:"kind"`
	Params json.RawMessage `json:"params"`
}

// EncodePosterior captures a posterior's parameters.
func EncodePosterior(p domain.Posterior) (Snapshot, error) {
	switch p.(type) {
	case BetaPosterior, MixturePosterior, ZILNPosterior:
	default:
		return Snapshot{}, fmt.Errorf("cannot encode posterior of type %T", p)
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return Snapshot{}, fmt.Errorf("encode %s posterior: %w", p.Kind(), err)
	}
	return Snapshot{Kind: p.Kind(), Params: raw}, nil
}

// DecodePosterior rebuilds the posterior a snapshot was taken from.
func DecodePosterior(s Snapshot) (domain.Posterior, error) {
	switch s.Kind {
	case KindBeta:
		var p BetaPosterior
		if err := json.Unmarshal(s.Params, &p); err != nil {
			return nil, fmt.Errorf("decode beta posterior: %w", err)
		}
		if !(p.Alpha > 0 && p.Beta > 0) {
			return nil, fmt.Errorf("decode beta posterior: non-positive shape (%g, %g)", p.Alpha, p.Beta)
		}
		return p, nil
	case KindMixture:
		var p MixturePosterior
		if err := json.Unmarshal(s.Params, &p); err != nil {
			return nil, fmt.Errorf("decode mixture posterior: %w", err)
		}
		if len(p.Components) == 0 {
			return nil, fmt.Errorf("decode mixture posterior: no components")
		}
		return NewMixturePosterior(p.Components, p.LogScale), nil
	case KindZILN:
		var p ZILNPosterior
		if err := json.Unmarshal(s.Params, &p); err != nil {
			return nil, fmt.Errorf("decode zero-inflated posterior: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown posterior kind %q", s.Kind)
	}
}
