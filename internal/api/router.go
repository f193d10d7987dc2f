// Package api serves fits over HTTP (gin) and exposes the ops endpoints (chi).
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gobayes/app"
	"gobayes/internal"
)

// NewRouter builds the public API.
func NewRouter(svc *app.FitService, logger *internal.Logger) *gin.Engine {
	if logger == nil {
		logger = internal.NewDiscardLogger()
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger.With("http")))

	h := NewFitHandler(svc)
	v1 := router.Group("/api/v1")
	{
		v1.POST("/fits", h.CreateFit)
		v1.GET("/fits", h.ListFits)
		v1.GET("/fits/:id", h.GetFit)
		v1.POST("/fits/:id/samples", h.SampleFit)
		v1.GET("/fits/:id/report", h.GetReport)
	}
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorBody("NOT_FOUND", "no route for "+c.Request.Method+" "+c.Request.URL.Path))
	})
	return router
}

// requestLogger logs one line per request at DEBUG, or WARN for 5xx.
func requestLogger(logger *internal.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		if status >= http.StatusInternalServerError {
			logger.Warn("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, status, time.Since(start))
			return
		}
		logger.Debug("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, status, time.Since(start))
	}
}

// NewOpsRouter serves health and metrics on the ops port.
func NewOpsRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}
