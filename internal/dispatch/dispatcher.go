// Package dispatch routes outbound messages to the configured provider adapter.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sungwon/esp-mailer/internal/message"
	"github.com/sungwon/esp-mailer/internal/metrics"
	"github.com/sungwon/esp-mailer/internal/provider"
)

// Dispatcher holds the active provider selection and sends through it.
// It is safe for concurrent use; nothing is mutated after New returns.
type Dispatcher struct {
	name    string
	adapter provider.Adapter
	log     zerolog.Logger
}

// New resolves the active provider from settings. A missing credential fails
// here with *provider.ConfigurationError. A provider with no registered
// adapter does not fail construction; every Send then returns
// *provider.UnsupportedProviderError.
func New(ctx context.Context, settings provider.Settings, registry *provider.Registry, log zerolog.Logger) (*Dispatcher, error) {
	name, cfg := settings.Active()
	if err := cfg.Validate(name); err != nil {
		return nil, err
	}

	d := &Dispatcher{name: name, log: log.With().Str("provider", name).Logger()}

	factory, ok := registry.Lookup(name)
	if !ok {
		d.log.Warn().Strs("registered", registry.Names()).Msg("no adapter registered for provider; sends will fail")
		return d, nil
	}

	adapter, err := factory(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build %s adapter: %w", name, err)
	}
	d.adapter = adapter
	return d, nil
}

// Provider returns the normalized name of the active provider.
func (d *Dispatcher) Provider() string { return d.name }

// Supported reports whether an adapter exists for the active provider.
func (d *Dispatcher) Supported() bool { return d.adapter != nil }

// Send makes one synchronous delivery attempt. On success the provider's
// decoded response is returned untouched. Errors from the adapter are
// propagated as-is; there is no retry.
func (d *Dispatcher) Send(ctx context.Context, msg *message.OutboundMessage) (*provider.SendResult, error) {
	if d.adapter == nil {
		metrics.SendsTotal.WithLabelValues(d.name, "unsupported").Inc()
		return nil, &provider.UnsupportedProviderError{Provider: d.name}
	}

	start := time.Now()
	result, err := d.adapter.Deliver(ctx, msg)
	metrics.SendDuration.WithLabelValues(d.name).Observe(time.Since(start).Seconds())

	if err != nil {
		d.logFailure(ctx, msg, err)
		return nil, err
	}

	metrics.SendsTotal.WithLabelValues(d.name, "sent").Inc()
	d.log.Info().
		Str("to", msg.To.Email).
		Int("status_code", result.StatusCode).
		Str("provider_message_id", result.ProviderMessageID).
		Msg("message sent")
	return result, nil
}

func (d *Dispatcher) logFailure(_ context.Context, msg *message.OutboundMessage, err error) {
	var (
		invalid  *provider.InvalidMessageError
		delivery *provider.DeliveryError
	)
	switch {
	case errors.As(err, &invalid):
		metrics.SendsTotal.WithLabelValues(d.name, "invalid").Inc()
		d.log.Warn().Err(err).Msg("message rejected before send")
	case errors.As(err, &delivery):
		metrics.SendsTotal.WithLabelValues(d.name, "rejected").Inc()
		d.log.Error().
			Str("to", msg.To.Email).
			Int("status_code", delivery.StatusCode).
			Bool("permanent", delivery.Permanent).
			Str("reason", delivery.Message).
			Msg("provider rejected message")
	default:
		metrics.SendsTotal.WithLabelValues(d.name, "error").Inc()
		d.log.Error().Err(err).Msg("provider send failed")
	}
}
