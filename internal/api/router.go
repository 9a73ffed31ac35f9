package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/sungwon/esp-mailer/internal/archive"
	"github.com/sungwon/esp-mailer/internal/auth"
)

// DefaultWebhookPath is used when no webhook path is configured.
const DefaultWebhookPath = "/mailer/webhook"

// RouterConfig carries the collaborators served by the HTTP API. Archive, DB
// and JWT are optional; without JWT the send API is not mounted.
type RouterConfig struct {
	WebhookPath string
	Ingester    Ingester
	Emitter     RecordEmitter
	Archive     archive.Store
	Sender      Sender
	JWT         *auth.JWTService
	DB          Pinger
}

// NewRouter creates a chi.Mux with all routes, middleware, and handlers configured.
func NewRouter(cfg RouterConfig, log zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(CorrelationIDMiddleware)
	r.Use(LoggingMiddleware(log))
	r.Use(RecoverMiddleware(log))

	// Health endpoints (no auth required)
	r.Get("/healthz", HealthzHandler())
	r.Get("/readyz", ReadyzHandler(cfg.DB))
	r.Handle("/metrics", promhttp.Handler())

	// Webhook endpoint (no auth required - called by the ESP)
	path := cfg.WebhookPath
	if path == "" {
		path = DefaultWebhookPath
	}
	if cfg.Ingester != nil {
		r.Post(path, WebhookHandler(cfg.Ingester, cfg.Emitter, cfg.Archive, log))
	}

	if cfg.Sender != nil && cfg.JWT != nil {
		r.Route("/api/v1", func(r chi.Router) {
			r.Use(auth.RequireJWT(cfg.JWT))
			r.Post("/messages", SendMessageHandler(cfg.Sender, log))
		})
	}

	return r
}
