package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"gobayes/domain/core"
	domain "gobayes/domain/inference"
	apperrors "gobayes/internal/errors"
	"gobayes/internal/inference"
	"gobayes/ports"
)

// DefaultListLimit caps List when the filter sets no limit.
const DefaultListLimit = 50

type fitRow struct {
	ID          string  `db:"id"`
	ModelType   string  `db:"model_type"`
	DataHash    string  `db:"data_hash"`
	Converged   bool    `db:"converged"`
	Iterations  int     `db:"iterations"`
	FinalELBO   float64 `db:"final_elbo"`
	Diagnostics string  `db:"diagnostics"`
	Posterior   string  `db:"posterior"`
	Summary     string  `db:"summary"`
	CreatedAt   string  `db:"created_at"`
}

const fitColumns = `id, model_type, data_hash, converged, iterations, final_elbo, diagnostics, posterior, summary, created_at`

// fitRepository implements ports.FitRepository
type fitRepository struct {
	db *sqlx.DB
}

// NewFitRepository creates a new fit repository
func NewFitRepository(db *sqlx.DB) ports.FitRepository {
	return &fitRepository{db: db}
}

// Save inserts a new fit record
func (r *fitRepository) Save(ctx context.Context, rec *domain.FitRecord) error {
	row, err := toRow(rec)
	if err != nil {
		return err
	}
	_, err = r.db.NamedExecContext(ctx, `INSERT INTO fits (`+fitColumns+`) VALUES (
		:id, :model_type, :data_hash, :converged, :iterations, :final_elbo, :diagnostics, :posterior, :summary, :created_at
	)`, row)
	if err != nil {
		return apperrors.DatabaseError(fmt.Sprintf("failed to save fit %s", rec.ID), err)
	}
	return nil
}

// Get retrieves a fit by its ID
func (r *fitRepository) Get(ctx context.Context, id core.FitID) (*domain.FitRecord, error) {
	var row fitRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`SELECT `+fitColumns+` FROM fits WHERE id = ?`), id.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", core.ErrFitNotFound, id)
		}
		return nil, apperrors.DatabaseError(fmt.Sprintf("failed to get fit %s", id), err)
	}
	return fromRow(row)
}

// List returns fits newest first
func (r *fitRepository) List(ctx context.Context, filter ports.FitFilter) ([]*domain.FitRecord, error) {
	query := `SELECT ` + fitColumns + ` FROM fits WHERE 1 = 1`
	var args []interface{}
	if filter.ModelType != "" {
		query += ` AND model_type = ?`
		args = append(args, string(filter.ModelType))
	}
	if !filter.DataHash.IsEmpty() {
		query += ` AND data_hash = ?`
		args = append(args, filter.DataHash.String())
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	var rows []fitRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, apperrors.DatabaseError("failed to list fits", err)
	}
	out := make([]*domain.FitRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func toRow(rec *domain.FitRecord) (fitRow, error) {
	snap, err := inference.EncodePosterior(rec.Posterior)
	if err != nil {
		return fitRow{}, err
	}
	posterior, err := json.Marshal(snap)
	if err != nil {
		return fitRow{}, fmt.Errorf("failed to marshal posterior: %w", err)
	}
	diagnostics, err := json.Marshal(rec.Diagnostics)
	if err != nil {
		return fitRow{}, fmt.Errorf("failed to marshal diagnostics: %w", err)
	}
	summary, err := json.Marshal(rec.Summary)
	if err != nil {
		return fitRow{}, fmt.Errorf("failed to marshal summary: %w", err)
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = core.Now()
	}
	return fitRow{
		ID:          rec.ID.String(),
		ModelType:   string(rec.ModelType),
		DataHash:    rec.DataHash.String(),
		Converged:   rec.Diagnostics.Converged,
		Iterations:  rec.Diagnostics.Iterations,
		FinalELBO:   rec.Diagnostics.FinalELBO,
		Diagnostics: string(diagnostics),
		Posterior:   string(posterior),
		Summary:     string(summary),
		CreatedAt:   createdAt.String(),
	}, nil
}

func fromRow(row fitRow) (*domain.FitRecord, error) {
	rec := &domain.FitRecord{
		ID:        core.FitID(row.ID),
		ModelType: domain.ModelType(row.ModelType),
		DataHash:  core.Hash(row.DataHash),
	}
	if err := json.Unmarshal([]byte(row.Diagnostics), &rec.Diagnostics); err != nil {
		return nil, fmt.Errorf("fit %s: failed to unmarshal diagnostics: %w", row.ID, err)
	}
	if err := json.Unmarshal([]byte(row.Summary), &rec.Summary); err != nil {
		return nil, fmt.Errorf("fit %s: failed to unmarshal summary: %w", row.ID, err)
	}
	var snap inference.Snapshot
	if err := json.Unmarshal([]byte(row.Posterior), &snap); err != nil {
		return nil, fmt.Errorf("fit %s: failed to unmarshal posterior: %w", row.ID, err)
	}
	posterior, err := inference.DecodePosterior(snap)
	if err != nil {
		return nil, fmt.Errorf("fit %s: %w", row.ID, err)
	}
	rec.Posterior = posterior
	createdAt, err := core.ParseTimestamp(row.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("fit %s: bad created_at %q: %w", row.ID, row.CreatedAt, err)
	}
	rec.CreatedAt = createdAt
	return rec, nil
}
