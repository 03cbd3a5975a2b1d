package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Service         AppointmentService
	Auth            Authenticator
	Health          *HealthHandler
	Logger          *zap.Logger
	AllowedOrigin   string
	RequestTimeout  time.Duration
	RateLimitPerMin int
	RateLimitBurst  int
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}

	r := chi.NewRouter()

	// Preflight is answered here, ahead of every other middleware.
	r.Use(CORSMiddleware(cfg.AllowedOrigin))
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(RecoverMiddleware(logger))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	// Health endpoints
	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.Liveness)
		r.Get("/health/ready", cfg.Health.Readiness)
	}

	h := &appointmentHandler{svc: cfg.Service, logger: logger}

	r.Group(func(r chi.Router) {
		r.Use(RateLimitMiddleware(cfg.RateLimitPerMin, cfg.RateLimitBurst, logger))
		r.Use(TimeoutMiddleware(cfg.RequestTimeout))
		r.Use(AuthMiddleware(cfg.Auth, logger))

		r.Post("/appointments", h.create)
		r.Get("/appointments", h.list)
		r.Put("/appointments", h.updateStatus)
		r.Delete("/appointments", h.remove)

		r.Get("/consultation-types", h.labels(cfg.Service.ConsultationTypes))
		r.Get("/modalities", h.labels(cfg.Service.Modalities))
	})

	return r
}
