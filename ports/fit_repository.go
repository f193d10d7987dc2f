package ports

import (
	"context"

	"gobayes/domain/core"
	"gobayes/domain/inference"
)

// FitFilter narrows a List call. Zero values mean "any" and the default limit.
type FitFilter struct {
	ModelType inference.ModelType
	DataHash  core.Hash
	Limit     int
}

// FitRepository persists completed fits.
type FitRepository interface {
	Save(ctx context.Context, rec *inference.FitRecord) error
	// Get returns an error wrapping core.ErrFitNotFound for unknown IDs.
	Get(ctx context.Context, id core.FitID) (*inference.FitRecord, error)
	// List returns the newest records first.
	List(ctx context.Context, filter FitFilter) ([]*inference.FitRecord, error)
}
