package events

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/sungwon/esp-mailer/internal/logger"
)

// LogSubscriber writes each notification to the structured log. Bounces are
// logged at warn level.
type LogSubscriber struct {
	log zerolog.Logger
}

// NewLogSubscriber creates a LogSubscriber.
func NewLogSubscriber(log zerolog.Logger) *LogSubscriber {
	return &LogSubscriber{log: log}
}

func (s *LogSubscriber) Name() string { return "log" }

func (s *LogSubscriber) Handle(ctx context.Context, n Notification) error {
	log := logger.FromContext(ctx, s.log)

	var ev *zerolog.Event
	switch v := n.(type) {
	case EmailBounced:
		ev = log.Warn().Str("provider", v.Provider).Str("reason", v.Reason)
	case EmailDeferred:
		ev = log.Info().Str("provider", v.Provider).Str("reason", v.Reason)
	case EmailDelivered:
		ev = log.Info().Str("provider", v.Provider)
	default:
		ev = log.Info()
	}

	ev.Str("kind", string(n.Kind())).
		Str("email", n.Recipient()).
		Msg("email delivery notification")
	return nil
}
