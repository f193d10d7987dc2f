package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"gobayes/app"
	"gobayes/internal"
	"gobayes/internal/config"
)

const shutdownGrace = 10 * time.Second

// Serve runs the public API and the ops router until ctx is done.
func Serve(ctx context.Context, cfg config.ServerConfig, svc *app.FitService, logger *internal.Logger) error {
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}
	servers := []*http.Server{
		{Addr: net.JoinHostPort("", cfg.Port), Handler: NewRouter(svc, logger), ReadHeaderTimeout: 10 * time.Second},
		{Addr: net.JoinHostPort("", cfg.OpsPort), Handler: NewOpsRouter(), ReadHeaderTimeout: 10 * time.Second},
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			logger.Info("listening on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		var firstErr error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	})
	return g.Wait()
}
