package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/joescharf/issuetracker/internal/store"
)

// Options configures the HTTP surface around the issue handlers.
type Options struct {
	// AllowedOrigins for CORS. "*" allows any origin; empty disables CORS.
	AllowedOrigins []string
	// RateLimit per client IP in limiter format ("100-M"). Empty disables.
	RateLimit string
	// Metrics exposes /metrics and records request metrics.
	Metrics bool
	// Development relaxes the security header middleware.
	Development bool
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Only enable it behind a proxy that sets those headers; otherwise
	// clients can pick their own rate limit key.
	TrustProxy bool
}

// Server provides the REST API handlers.
type Server struct {
	store     store.Store
	log       *zap.Logger
	validate  *validator.Validate
	opts      Options
	rateLimit func(http.Handler) http.Handler
}

// NewServer creates a new API server over s.
func NewServer(s store.Store, log *zap.Logger, opts Options) (*Server, error) {
	limit, err := newRateLimiter(opts.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("rate limit %q: %w", opts.RateLimit, err)
	}
	return &Server{
		store:     s,
		log:       log,
		validate:  validator.New(),
		opts:      opts,
		rateLimit: limit,
	}, nil
}

// Router returns an http.Handler for the API routes wrapped in the
// middleware chain.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/issues/{project}", s.listIssues)
	mux.HandleFunc("POST /api/issues/{project}", s.createIssue)
	mux.HandleFunc("PUT /api/issues/{project}", s.updateIssue)
	mux.HandleFunc("DELETE /api/issues/{project}", s.deleteIssue)

	mux.HandleFunc("GET /api/projects", s.listProjects)
	mux.HandleFunc("GET /health", s.health)

	var h http.Handler = mux
	if s.opts.Metrics {
		mux.Handle("GET /metrics", promhttp.Handler())
		h = metricsMiddleware(h)
	}
	h = s.rateLimit(h)
	h = corsMiddleware(s.opts.AllowedOrigins)(h)
	h = secureMiddleware(s.opts.Development)(h)
	h = requestLogger(s.log)(h)
	if s.opts.TrustProxy {
		h = chimw.RealIP(h)
	}
	h = chimw.RequestID(h)
	h = recoverer(s.log)(h)
	return h
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
