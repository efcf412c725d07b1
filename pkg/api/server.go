// Package api serves the loopback control API of a mounted DriftFS:
// liveness, store statistics and Prometheus metrics. It binds to localhost
// only; the mount itself is the data plane.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/driftfs/driftfs/internal/logger"
	"github.com/driftfs/driftfs/pkg/metadata"
	"github.com/driftfs/driftfs/pkg/metrics"
)

// Config configures the control API server.
type Config struct {
	// Port is the HTTP port, bound to 127.0.0.1.
	Port int

	// ReadTimeout and WriteTimeout bound request handling.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.Port <= 0 {
		c.Port = 8422
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
}

// Server is the control API HTTP server.
type Server struct {
	server       *http.Server
	config       Config
	shutdownOnce sync.Once
}

// NewServer builds the server over the metadata store. The store may be nil,
// in which case /api/v1/stats answers 503.
func NewServer(config Config, store metadata.Store) *Server {
	config.applyDefaults()

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf("127.0.0.1:%d", config.Port),
			Handler:      newRouter(store),
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
		},
		config: config,
	}
}

// newRouter wires the chi router: request id, logging, recovery, timeout,
// then the three endpoints.
func newRouter(store metadata.Store) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", handleHealthz)
	r.Get("/api/v1/stats", handleStats(store))

	if metrics.IsEnabled() {
		r.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	}

	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("control API listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("control API failed: %w", err)
	}
}

// Stop shuts the server down. Safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		err = s.server.Shutdown(ctx)
	})
	return err
}

// requestLogger logs completed requests through the internal logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logger.Debug("control API request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).String(),
		)
	})
}
