// Package container wires configuration, storage, the worker pool and the
// fit service together and owns their lifecycle.
package container

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"gobayes/adapters/store"
	"gobayes/app"
	"gobayes/internal"
	"gobayes/internal/config"
	"gobayes/internal/errors"
	"gobayes/internal/inference"
	"gobayes/internal/worker"
	"gobayes/ports"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Infrastructure
	DB *sqlx.DB

	// Repositories (data access layer)
	FitRepo ports.FitRepository

	// Inference
	Engine     *inference.Engine
	Pool       *worker.Pool
	FitService *app.FitService
}

// Option adjusts how New builds the container.
type Option func(*options)

type options struct {
	withoutDB bool
}

// WithoutDatabase skips opening storage; the fit service then only
// serves fits it has in hand.
func WithoutDatabase() Option {
	return func(o *options) { o.withoutDB = true }
}

// New creates a new dependency injection container
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := cfg.Logger()
	c := &Container{
		Config: cfg,
		Logger: logger,
	}

	if !o.withoutDB {
		if err := c.InitWithDatabase(ctx); err != nil {
			return nil, err
		}
	}

	c.Engine = inference.NewEngine(
		inference.WithLogger(logger.With("engine")),
		inference.WithDefaults(cfg.EngineDefaults()),
	)
	c.Pool = worker.NewPool(cfg.Worker.Count, c.Engine, cfg.ClientConfig(), logger,
		worker.WithHostLogger(logger.With("worker")),
		worker.WithSamplingSeed(cfg.Inference.DefaultSeed),
	)
	c.FitService = app.NewFitService(c.Pool, c.FitRepo, logger)

	logger.Info("container ready: %d workers, database=%t", c.Pool.Size(), c.DB != nil)
	return c, nil
}

// InitWithDatabase opens and migrates the configured database.
func (c *Container) InitWithDatabase(ctx context.Context) error {
	db, err := store.OpenMigrated(ctx, c.Config.Database.Driver, c.Config.Database.URL)
	if err != nil {
		return errors.Wrapf(err, "failed to initialize %s database", c.Config.Database.Driver)
	}
	c.DB = db
	c.FitRepo = store.NewFitRepository(db)
	return nil
}

// Shutdown gracefully shuts down all components
func (c *Container) Shutdown(ctx context.Context) error {
	if c.Pool != nil {
		c.Pool.Close()
	}
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
