package server

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/agentbridge/agentbridge/internal/agent"
	"github.com/agentbridge/agentbridge/internal/config"
	"github.com/agentbridge/agentbridge/internal/core/identity"
	"github.com/agentbridge/agentbridge/internal/core/ratelimit"
	apperrors "github.com/agentbridge/agentbridge/internal/errors"
	"github.com/agentbridge/agentbridge/internal/observability"
	"github.com/agentbridge/agentbridge/internal/server/handlers"
	servermw "github.com/agentbridge/agentbridge/internal/server/middleware"
)

// Options carries collaborators the caller may supply. Nil fields are
// built from the config.
type Options struct {
	Limiter ratelimit.Limiter
	Runner  handlers.AgentRunner
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	cfg    *config.Config
	ask    *handlers.AskHandler
}

// New creates the bridge HTTP server.
func New(cfg *config.Config, opts Options) *Server {
	r := chi.NewRouter()

	// Order: correlation id, fixed headers, metrics, panic recovery, CORS preflight.
	r.Use(servermw.RequestID)
	r.Use(servermw.SecurityHeaders)
	r.Use(servermw.RequestMetrics)
	r.Use(servermw.Recovery)
	r.Use(servermw.Preflight)

	// A wrong method on a known path is reported as not found too.
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewNotFoundError())
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewNotFoundError())
	})

	hasher := identity.NewHasher(cfg.Auth.APIKey)

	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.NewFixedWindow(ratelimit.Window{
			MaxRequests: cfg.RateLimit.Max,
			Duration:    cfg.RateLimit.Window(),
		}, hasher.Hash)
	}

	runner := opts.Runner
	if runner == nil {
		runner = agent.NewInvoker(cfg.Agent.CLICommand)
	}

	s := &Server{
		router: r,
		cfg:    cfg,
		ask: &handlers.AskHandler{
			Limiter:          limiter,
			Hasher:           hasher,
			Secret:           cfg.Auth.APIKey,
			MaxMessageLength: cfg.Limits.MaxMessageLength,
			AgentID:          cfg.Agent.ID,
			TimeoutSeconds:   cfg.Agent.Timeout,
			Runner:           runner,
		},
	}

	handlers.SetHTTPErrorResponder(HandleError)

	s.registerRoutes()

	return s
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Server.Host, fmt.Sprint(s.cfg.Server.Port))
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Starting HTTP server",
			zap.String("addr", s.server.Addr),
			zap.Duration("write_timeout", s.cfg.Server.WriteTimeout))
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Shutting down HTTP server")
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the underlying router for testing and instrumentation
func (s *Server) Handler() http.Handler {
	return s.router
}
