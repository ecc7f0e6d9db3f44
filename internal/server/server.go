// Package server exposes the note pipeline over HTTP.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dativo-io/notescrub/internal/otel"
	"github.com/dativo-io/notescrub/internal/scrub"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultMaxBodyBytes = 512 * 1024
)

// Server holds the pipeline and HTTP settings.
type Server struct {
	router       *chi.Mux
	pipeline     *scrub.Pipeline
	limiter      *RateLimiter
	apiKeys      []string
	maxBodyBytes int64
	trustProxy   bool
	version      string
	startTime    time.Time
}

// Option configures the Server.
type Option func(*Server)

// WithRateLimiter enables per-client rate limiting.
func WithRateLimiter(rl *RateLimiter) Option {
	return func(s *Server) { s.limiter = rl }
}

// WithAPIKeys requires one of keys on every /v1 request.
func WithAPIKeys(keys []string) Option {
	return func(s *Server) { s.apiKeys = keys }
}

// WithMaxBodyBytes caps request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// WithTrustedProxy takes the client address from X-Forwarded-For / X-Real-IP.
// Enable only behind a proxy that overwrites those headers; otherwise
// clients are keyed on the connection's remote address.
func WithTrustedProxy(trust bool) Option {
	return func(s *Server) { s.trustProxy = trust }
}

// WithVersion sets the version reported by /health.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// NewServer builds a Server around p. A nil pipeline uses the default rules.
func NewServer(p *scrub.Pipeline, opts ...Option) *Server {
	if p == nil {
		p = scrub.Default()
	}
	s := &Server{
		router:       chi.NewRouter(),
		pipeline:     p,
		maxBodyBytes: defaultMaxBodyBytes,
		startTime:    time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the configured http.Handler.
func (s *Server) Routes() http.Handler {
	r := s.router
	r.Use(middleware.RequestID)
	if s.trustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)
	r.Use(otel.Middleware())

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.apiKeys))
		r.Use(RateLimitMiddleware(s.limiter))
		r.Use(middleware.Timeout(defaultTimeout))

		r.Post("/v1/notes/normalize", s.handleNormalize)
		r.Post("/v1/notes/explain", s.handleExplain)
		r.Get("/v1/rules", s.handleRules)
	})

	return r
}
