// Package server exposes the assistant over HTTP. It is a thin shell:
// every conversational decision lives in the orchestrator.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/harborbank/teller/internal/auth"
	"github.com/harborbank/teller/internal/orchestrator"
)

// Server holds the HTTP handler dependencies.
type Server struct {
	orch    *orchestrator.Orchestrator
	auth    *auth.Service
	limiter *RateLimiter
	logger  *slog.Logger
}

// New creates a server over the orchestrator and auth service.
func New(orch *orchestrator.Orchestrator, authSvc *auth.Service, ratePerMinute int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if ratePerMinute <= 0 {
		ratePerMinute = 100
	}
	return &Server{
		orch:    orch,
		auth:    authSvc,
		limiter: NewRateLimiter(ratePerMinute, time.Minute, logger),
		logger:  logger,
	}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.limiter.Middleware)

		r.Post("/chat", s.handleChat)
		r.Post("/auth/request-otp", s.handleRequestOTP)
		r.Post("/auth/login", s.handleLogin)

		r.Post("/transactions/{id}/execute", s.handleExecute)
		r.Post("/transactions/{id}/cancel", s.handleCancel)
		r.Post("/transactions/{id}/clarify", s.handleClarify)

		r.Get("/sessions/{id}", s.handleSessionInfo)
		r.Delete("/sessions/{id}", s.handleSessionDelete)
	})

	return r
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
