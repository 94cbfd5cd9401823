package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/znz-systems/emailfilter/internal/ratelimit"
	"github.com/znz-systems/emailfilter/internal/web/handlers"
	"github.com/znz-systems/emailfilter/internal/web/middleware"
)

// RouterDeps holds all dependencies needed to build the router.
type RouterDeps struct {
	CompanyHandler *handlers.CompanyHandler
	EmailHandler   *handlers.EmailHandler
	HealthHandler  *handlers.HealthHandler
	Limiter        *ratelimit.Limiter
	Metrics        func(http.Handler) http.Handler
	MetricsHandler http.Handler
}

// NewRouter wires all routes into a Chi router.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.Logger)
	if deps.Metrics != nil {
		r.Use(deps.Metrics)
	}
	r.Use(chiMiddleware.Recoverer)

	r.Get("/healthz", deps.HealthHandler.HandleReady)
	r.Get("/livez", deps.HealthHandler.HandleLive)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		// Reads
		r.Get("/companies", deps.CompanyHandler.HandleList)
		r.Get("/companies/{id}", deps.CompanyHandler.HandleGet)
		r.Get("/emails", deps.EmailHandler.HandleList)
		r.Get("/emails/search", deps.EmailHandler.HandleSearch)

		// Writes are rate limited per client IP
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(deps.Limiter))

			r.Post("/companies", deps.CompanyHandler.HandleCreate)
			r.Post("/emails", deps.EmailHandler.HandleCreate)
		})
	})

	return r
}
