package server

import (
	"net/http"

	"github.com/agentbridge/agentbridge/internal/server/handlers"
)

// registerRoutes registers the bridge endpoints. Everything else is 404.
func (s *Server) registerRoutes() {
	s.router.Get("/health", handlers.HealthHandler)
	s.router.Method(http.MethodPost, "/ask", s.ask)
}
