// Package api serves the HTTP interface.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sells-group/realty-ai/internal/engine"
)

// TenantHeader carries the tenant id on every /api/v1 request.
const TenantHeader = "X-Tenant-ID"

// Config holds the HTTP-layer settings.
type Config struct {
	AllowedOrigins []string
	RatePerMinute  int
	RateBurst      int
}

// Server holds the handler dependencies.
type Server struct {
	engine  *engine.Engine
	limiter *tenantLimiter
	cfg     Config
}

// New creates a Server.
func New(e *engine.Engine, cfg Config) *Server {
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	return &Server{
		engine:  e,
		limiter: newTenantLimiter(cfg.RatePerMinute, cfg.RateBurst),
		cfg:     cfg,
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", TenantHeader},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(requireTenant)
		r.Use(middleware.Timeout(2 * time.Minute))

		r.With(s.rateLimit).Post("/valuations", s.handleValuate)
		r.Get("/valuations", s.handleListValuations)

		r.With(s.rateLimit).Post("/leads/score", s.handleScoreLead)
		r.Get("/leads/{leadID}/scores", s.handleListLeadScores)

		r.Put("/settings/provider", s.handlePutSettings)
		r.Get("/settings/provider", s.handleGetSettings)
	})

	return r
}
