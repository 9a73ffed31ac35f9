package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/sungwon/esp-mailer/internal/archive"
	"github.com/sungwon/esp-mailer/internal/logger"
	"github.com/sungwon/esp-mailer/internal/metrics"
	"github.com/sungwon/esp-mailer/internal/provider"
	"github.com/sungwon/esp-mailer/internal/webhook"
)

// maxWebhookBody caps the size of an inbound webhook POST.
const maxWebhookBody = 10 << 20

// WebhookProcessedMessage is the body field returned for every accepted webhook.
const WebhookProcessedMessage = "Webhook processed"

// Ingester persists a provider webhook body as event records.
type Ingester interface {
	Provider() string
	Ingest(ctx context.Context, body []byte) ([]webhook.Record, error)
}

// RecordEmitter publishes typed notifications for persisted records.
type RecordEmitter interface {
	EmitRecords(ctx context.Context, records []webhook.Record) int
}

// WebhookHandler handles POST on the configured webhook path. The raw body is
// archived when an archive is configured, then ingested. Notifications are
// emitted for every record that was persisted, even when a later element
// failed to store.
func WebhookHandler(ingester Ingester, emitter RecordEmitter, store archive.Store, base zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		name := ingester.Provider()
		log := logger.FromContext(ctx, base).With().Str("provider", name).Logger()

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
		if err != nil {
			metrics.WebhookRequestsTotal.WithLabelValues(name, "bad_request").Inc()
			log.Warn().Err(err).Msg("webhook: read body failed")
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if store != nil {
			id := logger.CorrelationIDFromContext(ctx)
			if id == "" {
				id = logger.NewCorrelationID()
			}
			key := archive.Key(name, time.Now(), id)
			if err := store.Put(ctx, key, body); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("webhook: archive failed")
			}
		}

		records, err := ingester.Ingest(ctx, body)
		if len(records) > 0 && emitter != nil {
			emitter.EmitRecords(ctx, records)
		}

		if err != nil {
			var unsupported *provider.UnsupportedProviderError
			switch {
			case errors.As(err, &unsupported):
				metrics.WebhookRequestsTotal.WithLabelValues(name, "unsupported").Inc()
				log.Error().Err(err).Msg("webhook: no parser for provider")
				respondError(w, http.StatusInternalServerError, err.Error())
			case errors.Is(err, webhook.ErrMalformedPayload):
				metrics.WebhookRequestsTotal.WithLabelValues(name, "bad_request").Inc()
				log.Warn().Err(err).Msg("webhook: malformed payload")
				respondError(w, http.StatusBadRequest, "malformed webhook payload")
			default:
				metrics.WebhookRequestsTotal.WithLabelValues(name, "error").Inc()
				log.Error().Err(err).Int("persisted", len(records)).Msg("webhook: store failed")
				respondError(w, http.StatusInternalServerError, "failed to process webhook")
			}
			return
		}

		metrics.WebhookRequestsTotal.WithLabelValues(name, "ok").Inc()
		log.Info().Int("records", len(records)).Msg("webhook processed")
		respondJSON(w, http.StatusOK, map[string]string{"message": WebhookProcessedMessage})
	}
}
