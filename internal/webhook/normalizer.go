package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sungwon/esp-mailer/internal/logger"
	"github.com/sungwon/esp-mailer/internal/metrics"
	"github.com/sungwon/esp-mailer/internal/provider"
)

// Normalizer parses the active provider's webhook bodies and persists one
// record per event. It holds no per-call state and is safe for concurrent use.
type Normalizer struct {
	provider string
	parser   Parser
	store    EventStore
	now      func() time.Time
	log      zerolog.Logger
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithClock sets the clock used to stamp events that carry no timestamp.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) { n.now = now }
}

// NewNormalizer creates a Normalizer for providerName. An unknown name does
// not fail here; Ingest then returns *provider.UnsupportedProviderError.
func NewNormalizer(providerName string, parsers *Parsers, store EventStore, log zerolog.Logger, opts ...Option) *Normalizer {
	name := provider.NormalizeName(providerName)
	if name == "" {
		name = provider.DefaultProvider
	}
	n := &Normalizer{
		provider: name,
		store:    store,
		now:      time.Now,
		log:      log.With().Str("provider", name).Logger(),
	}
	if p, ok := parsers.Lookup(name); ok {
		n.parser = p
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Provider returns the normalized provider name.
func (n *Normalizer) Provider() string { return n.provider }

// Supported reports whether a webhook format is registered for the provider.
func (n *Normalizer) Supported() bool { return n.parser != nil }

// Ingest parses body and persists each event in payload order, one store
// call per event. Elements that cannot be decoded are skipped and logged.
// If the store fails, ingestion stops and the records persisted so far are
// returned together with the error.
func (n *Normalizer) Ingest(ctx context.Context, body []byte) ([]Record, error) {
	if n.parser == nil {
		return nil, &provider.UnsupportedProviderError{Provider: n.provider}
	}

	log := logger.FromContext(ctx, n.log)
	events, err := n.parser.Parse(body, func(index int, err error) {
		metrics.WebhookElementsSkippedTotal.WithLabelValues(n.provider).Inc()
		log.Warn().Err(err).Int("index", index).Msg("skipping malformed webhook element")
	})
	if err != nil {
		return nil, err
	}

	ingestedAt := n.now().UTC()
	records := make([]Record, 0, len(events))
	for _, ev := range events {
		rec := Record{
			ID:        uuid.New(),
			Provider:  n.provider,
			Email:     ev.Email,
			EventType: ev.EventType,
			Reason:    ev.Reason,
			MessageID: ev.MessageID,
			EventAt:   ingestedAt,
			CreatedAt: ingestedAt,
		}
		if ev.Timestamp != nil {
			rec.EventAt = *ev.Timestamp
		}

		stored, err := n.store.Create(ctx, rec)
		if err != nil {
			return records, fmt.Errorf("store webhook event %d: %w", len(records), err)
		}
		metrics.WebhookEventsTotal.WithLabelValues(n.provider, Value(stored.EventType)).Inc()
		records = append(records, stored)
	}

	log.Debug().Int("records", len(records)).Msg("webhook ingested")
	return records, nil
}
