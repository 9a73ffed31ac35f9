// Package smtp is the authenticated SMTP front door. Each accepted message is
// parsed and handed to the transport bridge for a single provider send.
package smtp

import (
	"context"
	"sync/atomic"

	gosmtp "github.com/emersion/go-smtp"
	"github.com/rs/zerolog"

	"github.com/sungwon/esp-mailer/internal/logger"
	"github.com/sungwon/esp-mailer/internal/metrics"
	"github.com/sungwon/esp-mailer/internal/mimeparse"
	"github.com/sungwon/esp-mailer/internal/provider"
)

// Relay sends one parsed message. *bridge.Bridge satisfies it.
type Relay interface {
	Send(ctx context.Context, parsed *mimeparse.ParsedMessage) (*provider.SendResult, error)
}

// Credentials is the single account allowed to submit mail.
type Credentials struct {
	Username     string
	PasswordHash string // bcrypt
}

// Backend implements the go-smtp Backend interface.
// It manages session creation and enforces connection limits.
type Backend struct {
	relay    Relay
	creds    Credentials
	log      zerolog.Logger
	maxConns int
	active   atomic.Int64
}

// NewBackend creates a new SMTP backend that relays through relay and accepts
// the given credentials.
func NewBackend(relay Relay, creds Credentials, log zerolog.Logger, maxConns int) *Backend {
	return &Backend{
		relay:    relay,
		creds:    creds,
		log:      log,
		maxConns: maxConns,
	}
}

// NewSession is called after a client sends EHLO/HELO. It enforces connection
// limits and creates a new Session for the connection.
func (b *Backend) NewSession(conn *gosmtp.Conn) (gosmtp.Session, error) {
	remote := ""
	if conn != nil && conn.Conn() != nil {
		remote = conn.Conn().RemoteAddr().String()
	}
	return b.newSession(remote)
}

func (b *Backend) newSession(remote string) (*Session, error) {
	current := b.active.Add(1)
	if b.maxConns > 0 && int(current) > b.maxConns {
		b.active.Add(-1)
		metrics.SMTPConnectionsTotal.WithLabelValues("rejected").Inc()
		b.log.Warn().
			Int64("active", current-1).
			Int("max", b.maxConns).
			Msg("connection limit reached")
		return nil, &gosmtp.SMTPError{
			Code:         421,
			EnhancedCode: gosmtp.EnhancedCode{4, 7, 0},
			Message:      "Too many connections",
		}
	}
	metrics.SMTPConnectionsTotal.WithLabelValues("accepted").Inc()
	metrics.SMTPActiveSessions.Inc()

	correlationID := logger.NewCorrelationID()
	ctx := logger.WithCorrelationID(context.Background(), correlationID)

	sessionLog := b.log.With().
		Str("correlation_id", correlationID).
		Str("remote_addr", remote).
		Logger()
	ctx = logger.WithLogger(ctx, sessionLog)

	sessionLog.Info().Msg("new SMTP session")

	return &Session{
		ctx:     ctx,
		log:     sessionLog,
		backend: b,
	}, nil
}

// ActiveSessions returns the current number of active SMTP sessions.
func (b *Backend) ActiveSessions() int64 {
	return b.active.Load()
}
