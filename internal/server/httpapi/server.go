// Package httpapi exposes the HTTP surface: the public leaderboard and
// join endpoints, the session introspection endpoint, and the
// token-guarded admin plane.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/typerank/internal/logging"
	"github.com/dmitrijs2005/typerank/internal/server/config"
	"github.com/dmitrijs2005/typerank/internal/server/join"
	"github.com/dmitrijs2005/typerank/internal/server/store"
)

// Joiner runs the join workflow for one request.
type Joiner interface {
	Join(ctx context.Context, username, credential string) (*join.Result, error)
}

// RegionGate decides whether a request's client is admitted.
type RegionGate interface {
	IsAdmitted(ctx context.Context, r *http.Request) bool
}

// SweepRunner executes one on-demand sweep.
type SweepRunner interface {
	Sweep(ctx context.Context) error
}

// Server wires the gin engine over the service layer.
type Server struct {
	config  *config.Config
	manager store.RepositoryManager
	joiner  Joiner
	gate    RegionGate
	sweeper SweepRunner
	logger  logging.Logger

	engine *gin.Engine
}

// NewServer constructs the HTTP server and registers all routes.
func NewServer(cfg *config.Config, m store.RepositoryManager, j Joiner, g RegionGate, sw SweepRunner, logger logging.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		config:  cfg,
		manager: m,
		joiner:  j,
		gate:    g,
		sweeper: sw,
		logger:  logger,
		engine:  gin.New(),
	}

	s.engine.Use(gin.Recovery(), s.requestID())

	s.engine.GET("/healthz", s.handleHealthz)
	s.engine.POST("/join", s.handleJoin)

	api := s.engine.Group("/api")
	{
		api.GET("/leaderboard", s.handleLeaderboard)
		api.POST("/join", s.handleJoin)
		api.GET("/me", s.handleMe)

		// The admin plane only exists when a token is configured; without
		// one the paths fall through to gin's default 404.
		if cfg.AdminToken != "" {
			admin := api.Group("/admin")
			admin.Use(s.adminAuth())
			{
				admin.GET("/bindings", s.handleAdminListBindings)
				admin.DELETE("/bindings/:username", s.handleAdminDeleteBinding)
				admin.POST("/sweep", s.handleAdminSweep)
			}
		}
	}

	return s
}

// Handler returns the underlying http.Handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.config.EndpointAddr,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "http server listening", "addr", s.config.EndpointAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
