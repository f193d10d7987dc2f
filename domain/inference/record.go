package inference

import "gobayes/domain/core"

// FitRecord is a completed fit as persisted and served.
type FitRecord struct {
	ID          core.FitID     `json:"id"`
	ModelType   ModelType      `json:"modelType"`
	DataHash    core.Hash      `json:"dataHash"`
	Diagnostics Diagnostics    `json:"diagnostics"`
	Posterior   Posterior      `json:"-"`
	Summary     Summary        `json:"summary"`
	CreatedAt   core.Timestamp `json:"createdAt"`
}

// HashInput fingerprints a DataInput so repeated fits of the same data can
// be recognised.
func HashInput(in DataInput) (core.Hash, error) {
	return core.HashJSON(in)
}
