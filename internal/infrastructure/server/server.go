// Package server provides the shared HTTP scaffold every service binary
// builds on: the gin engine with the standard middleware chain, probe
// and metrics endpoints, and graceful shutdown.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vurksha/backend/internal/api/middleware"
	"github.com/vurksha/backend/internal/infrastructure/config"
	"github.com/vurksha/backend/internal/infrastructure/health"
	"github.com/vurksha/backend/internal/infrastructure/logging"
	"github.com/vurksha/backend/internal/infrastructure/monitoring"
)

// Version is stamped into health reports at build time via -ldflags.
var Version = "dev"

// Server hosts one service's HTTP surface.
type Server struct {
	// Router is where the service mounts its routes.
	Router *gin.Engine
	// Health is where the service registers dependency probes.
	Health *health.Checker
	// Metrics is the service's collector.
	Metrics *monitoring.Metrics

	name   string
	cfg    *config.Config
	logger *logging.Logger
	http   *http.Server
}

// New builds the scaffold for the named service: recovery, request IDs,
// request logging, metrics, CORS, optional process-local throttle, the
// health probes, and /metrics.
func New(name string, cfg *config.Config, logger *logging.Logger) *Server {
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	metrics := monitoring.New(name)
	checker := health.NewChecker(name, Version)

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(logger.Logger))
	router.Use(middleware.RequestLogger(logger.Logger))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.Throttle(middleware.DefaultThrottleConfig()))
	}

	checker.Routes(router)
	router.GET("/metrics", metrics.Handler())

	return &Server{
		Router:  router,
		Health:  checker,
		Metrics: metrics,
		name:    name,
		cfg:     cfg,
		logger:  logger.ForService(name),
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests for
// up to 15 seconds.
func (s *Server) Run(ctx context.Context) error {
	addr := s.cfg.Server.Host + ":" + s.cfg.Server.Port
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", zap.String("addr", addr))
		errc <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("shutdown did not complete cleanly", zap.Error(err))
		return err
	}
	_ = s.logger.Sync()
	return nil
}
