package store

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"

	"gobayes/domain/core"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Migrator handles database schema migrations
type Migrator struct {
	db    *sqlx.DB
	files fs.FS
}

// NewMigrator uses the migrations compiled into the binary.
func NewMigrator(db *sqlx.DB) *Migrator {
	sub, _ := fs.Sub(embeddedMigrations, "migrations")
	return &Migrator{db: db, files: sub}
}

// NewMigratorFS reads migrations from files; used by tests.
func NewMigratorFS(db *sqlx.DB, files fs.FS) *Migrator {
	return &Migrator{db: db, files: files}
}

// MigrationFile represents a migration file
type MigrationFile struct {
	Version  string
	Name     string
	Checksum core.Hash
	SQL      string
}

// MigrationStatus reports whether a known migration has been applied.
type MigrationStatus struct {
	Version   string
	Name      string
	Applied   bool
	AppliedAt string
}

type appliedMigration struct {
	Version   string `db:"version"`
	Checksum  string `db:"checksum"`
	AppliedAt string `db:"applied_at"`
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			checksum TEXT NOT NULL,
			applied_at TEXT NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// Up executes all pending migrations and returns the versions it applied.
// A migration whose file changed after it was applied is an error.
func (m *Migrator) Up(ctx context.Context) ([]string, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	applied, err := m.getAppliedMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}
	files, err := m.findMigrationFiles()
	if err != nil {
		return nil, fmt.Errorf("failed to find migration files: %w", err)
	}

	var done []string
	for _, file := range files {
		if prev, ok := applied[file.Version]; ok {
			if prev.Checksum != file.Checksum.String() {
				return done, fmt.Errorf("migration %s (%s) was modified after it was applied", file.Version, file.Name)
			}
			continue
		}
		if err := m.applyMigration(ctx, file); err != nil {
			return done, fmt.Errorf("failed to apply migration %s: %w", file.Version, err)
		}
		done = append(done, file.Version)
	}
	return done, nil
}

// Status lists every known migration in version order.
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	applied, err := m.getAppliedMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}
	files, err := m.findMigrationFiles()
	if err != nil {
		return nil, fmt.Errorf("failed to find migration files: %w", err)
	}

	out := make([]MigrationStatus, 0, len(files))
	for _, file := range files {
		st := MigrationStatus{Version: file.Version, Name: file.Name}
		if prev, ok := applied[file.Version]; ok {
			st.Applied = true
			st.AppliedAt = prev.AppliedAt
		}
		out = append(out, st)
	}
	return out, nil
}

func (m *Migrator) getAppliedMigrations(ctx context.Context) (map[string]appliedMigration, error) {
	var rows []appliedMigration
	if err := m.db.SelectContext(ctx, &rows, "SELECT version, checksum, applied_at FROM schema_migrations"); err != nil {
		return nil, err
	}
	applied := make(map[string]appliedMigration, len(rows))
	for _, r := range rows {
		applied[r.Version] = r
	}
	return applied, nil
}

// findMigrationFiles reads NNN_name.sql files sorted by version.
func (m *Migrator) findMigrationFiles() ([]MigrationFile, error) {
	entries, err := fs.ReadDir(m.files, ".")
	if err != nil {
		return nil, err
	}

	var files []MigrationFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		parts := strings.SplitN(strings.TrimSuffix(e.Name(), ".sql"), "_", 2)
		if len(parts) < 2 {
			continue
		}
		raw, err := fs.ReadFile(m.files, path.Clean(e.Name()))
		if err != nil {
			return nil, err
		}
		files = append(files, MigrationFile{
			Version:  parts[0],
			Name:     parts[1],
			Checksum: core.NewHash(raw),
			SQL:      string(raw),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Version < files[j].Version })
	return files, nil
}

func (m *Migrator) applyMigration(ctx context.Context, file MigrationFile) error {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, file.SQL); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		tx.Rebind("INSERT INTO schema_migrations (version, checksum, applied_at) VALUES (?, ?, ?)"),
		file.Version, file.Checksum.String(), core.Now().String())
	if err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return tx.Commit()
}
