// Package bridge adapts messages parsed from the SMTP front door into
// OutboundMessage values and hands them to the dispatcher.
package bridge

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sungwon/esp-mailer/internal/logger"
	"github.com/sungwon/esp-mailer/internal/message"
	"github.com/sungwon/esp-mailer/internal/mimeparse"
	"github.com/sungwon/esp-mailer/internal/provider"
)

// HostHeaderPrefix is the number of leading header fields injected by the
// host mail library. mimeparse always emits From, To and Subject first, and
// those are carried in dedicated OutboundMessage fields instead.
const HostHeaderPrefix = mimeparse.PrefixFields

// Sender sends one OutboundMessage. *dispatch.Dispatcher satisfies it.
type Sender interface {
	Send(ctx context.Context, msg *message.OutboundMessage) (*provider.SendResult, error)
}

// Bridge converts parsed host messages and forwards them to a Sender.
type Bridge struct {
	sender Sender
	log    zerolog.Logger
}

// New creates a Bridge that sends through sender.
func New(sender Sender, log zerolog.Logger) *Bridge {
	return &Bridge{sender: sender, log: log}
}

// Send converts parsed and sends it. Only the first recipient is delivered.
// Errors from the sender are returned unchanged; the bridge does not retry.
func (b *Bridge) Send(ctx context.Context, parsed *mimeparse.ParsedMessage) (*provider.SendResult, error) {
	msg, err := Convert(parsed)
	if err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx, b.log)
	if n := len(parsed.To); n > 1 {
		log.Warn().
			Str("to", msg.To.Email).
			Strs("dropped_recipients", message.Emails(message.FromMailAddresses(parsed.To[1:]))).
			Msg("message has several recipients; only the first is sent")
	}
	if parsed.SkippedParts > 0 {
		log.Warn().Int("skipped_parts", parsed.SkippedParts).Msg("non-body MIME parts are not forwarded")
	}

	res, err := b.sender.Send(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("bridge: %w", err)
	}
	return res, nil
}

// Convert builds an OutboundMessage from a parsed host message: the first To
// recipient, the first From address with its display name, the HTML body
// (or the text body when there is no HTML), the full cc/bcc/reply-to lists,
// and every header after the host prefix.
func Convert(parsed *mimeparse.ParsedMessage) (*message.OutboundMessage, error) {
	if parsed == nil {
		return nil, &provider.InvalidMessageError{Reason: "message is nil"}
	}

	to := message.FromMailAddresses(parsed.To)
	if len(to) == 0 {
		return nil, &provider.InvalidMessageError{Reason: "a To address is required"}
	}

	// Providers accept a single sender; the rest of the list is ignored.
	from := message.FromMailAddresses(parsed.From)
	if len(from) > 1 {
		from = from[:1]
	}

	body := parsed.HTMLBody
	if body == "" {
		body = parsed.TextBody
	}

	var headers map[string]string
	if len(parsed.Headers) > HostHeaderPrefix {
		headers = make(map[string]string, len(parsed.Headers)-HostHeaderPrefix)
		for _, f := range parsed.Headers[HostHeaderPrefix:] {
			headers[f.Name] = f.Value
		}
	}

	return &message.OutboundMessage{
		To:      to[0],
		From:    from,
		Subject: parsed.Subject,
		Body:    body,
		Cc:      message.FromMailAddresses(parsed.Cc),
		Bcc:     message.FromMailAddresses(parsed.Bcc),
		ReplyTo: message.FromMailAddresses(parsed.ReplyTo),
		Headers: headers,
	}, nil
}
