package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/userhub/userhub/internal/config"
	"github.com/userhub/userhub/internal/handler"
	"github.com/userhub/userhub/internal/metrics"
	"github.com/userhub/userhub/internal/middleware"
)

type routerHandlers struct {
	root    *handler.Handler
	health  *handler.HealthHandler
	metrics http.Handler
	users   *handler.UserHandler
	emails  *handler.EmailHandler
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(
	h routerHandlers,
	limiter middleware.RateLimiter,
	recorder metrics.Recorder,
	cfg *config.Config,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger, recorder))
	r.Use(middleware.Recoverer(logger, cfg.AppDebug))
	r.Use(middleware.Security(middleware.SecurityConfig{
		IsDevelopment:      cfg.IsDevelopment(),
		MaxRequestBodySize: cfg.MaxRequestBodySize,
	}))
	r.Use(middleware.CORS(corsCfg))

	// Probes and metrics
	r.Get("/healthz", h.health.Healthz)
	r.Get("/readyz", h.health.Readyz)
	r.Method(http.MethodGet, "/metrics", h.metrics)

	// Root info endpoint
	r.Get("/", h.root.Info)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(middleware.RateLimitConfig{
			Logger:    logger,
			Limiter:   limiter,
			Enabled:   cfg.RateLimitEnabled,
			PerMinute: cfg.RateLimitPerMinute,
		}))
		r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))
		if cfg.SanitizeInput {
			r.Use(middleware.SanitizeJSON)
		}

		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.users.List)
			r.Post("/", h.users.Create)

			r.Route("/{user}", func(r chi.Router) {
				r.Get("/", h.users.Get)
				r.Put("/", h.users.Update)
				r.Patch("/", h.users.Update)
				r.Delete("/", h.users.Delete)
				r.Post("/send-welcome", h.users.SendWelcome)

				r.Route("/emails", func(r chi.Router) {
					r.Get("/", h.emails.List)
					r.Post("/", h.emails.Create)
					r.Put("/{email}", h.emails.Update)
					r.Patch("/{email}", h.emails.Update)
					r.Delete("/{email}", h.emails.Delete)
					r.Patch("/{email}/set-primary", h.emails.SetPrimary)
				})
			})
		})
	})

	// 404 and 405 handlers
	r.NotFound(h.root.NotFound)
	r.MethodNotAllowed(h.root.MethodNotAllowed)

	return r
}
