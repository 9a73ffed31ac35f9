package smtp

import (
	"bytes"
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"net/mail"

	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"
	"github.com/rs/zerolog"

	"github.com/sungwon/esp-mailer/internal/auth"
	"github.com/sungwon/esp-mailer/internal/metrics"
	"github.com/sungwon/esp-mailer/internal/mimeparse"
	"github.com/sungwon/esp-mailer/internal/provider"
)

var (
	errAuthRequired = &gosmtp.SMTPError{
		Code:         530,
		EnhancedCode: gosmtp.EnhancedCode{5, 7, 0},
		Message:      "Authentication required",
	}
	errAuthFailed = &gosmtp.SMTPError{
		Code:         535,
		EnhancedCode: gosmtp.EnhancedCode{5, 7, 8},
		Message:      "Authentication failed",
	}
)

// Session handles a single SMTP connection and implements the go-smtp Session
// and AuthSession interfaces.
type Session struct {
	ctx           context.Context
	log           zerolog.Logger
	backend       *Backend
	authenticated bool
	sender        string
	recipients    []string
}

// AuthMechanisms advertises SASL PLAIN only.
func (s *Session) AuthMechanisms() []string {
	return []string{sasl.Plain}
}

// Auth returns the SASL server for mech.
func (s *Session) Auth(mech string) (sasl.Server, error) {
	if mech != sasl.Plain {
		return nil, gosmtp.ErrAuthUnknownMechanism
	}
	return sasl.NewPlainServer(func(identity, username, password string) error {
		return s.authPlain(username, password)
	}), nil
}

// authPlain checks username/password against the configured credentials.
func (s *Session) authPlain(username, password string) error {
	creds := s.backend.creds
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(creds.Username)) == 1
	if err := auth.VerifyPassword(creds.PasswordHash, password); err != nil || !userOK {
		metrics.SMTPAuthAttemptsTotal.WithLabelValues("failure").Inc()
		s.log.Warn().Str("username", username).Msg("auth failed")
		return errAuthFailed
	}

	s.authenticated = true
	metrics.SMTPAuthAttemptsTotal.WithLabelValues("success").Inc()
	s.log.Info().Str("username", username).Msg("auth successful")
	return nil
}

// Mail handles the MAIL FROM command.
func (s *Session) Mail(from string, opts *gosmtp.MailOptions) error {
	if !s.authenticated {
		return errAuthRequired
	}

	if err := ValidateEmailAddress(from); err != nil {
		s.log.Warn().Str("from", from).Msg("invalid sender address format")
		return &gosmtp.SMTPError{
			Code:         550,
			EnhancedCode: gosmtp.EnhancedCode{5, 1, 7},
			Message:      "Invalid sender address",
		}
	}

	s.sender = from
	s.log.Info().Str("from", from).Msg("MAIL FROM accepted")
	return nil
}

// Rcpt handles the RCPT TO command. It validates the recipient address format
// and appends it to the session's recipient list.
func (s *Session) Rcpt(to string, opts *gosmtp.RcptOptions) error {
	if !s.authenticated {
		return errAuthRequired
	}

	if err := ValidateEmailAddress(to); err != nil || !IsValidDomain(ExtractDomain(to)) {
		s.log.Warn().Str("to", to).Msg("invalid recipient address format")
		return &gosmtp.SMTPError{
			Code:         550,
			EnhancedCode: gosmtp.EnhancedCode{5, 1, 1},
			Message:      "Invalid recipient address",
		}
	}

	s.recipients = append(s.recipients, to)
	s.log.Info().Str("to", to).Msg("RCPT TO accepted")
	return nil
}

// Data handles the DATA command. The message is parsed and relayed
// synchronously; the SMTP reply reflects the provider's answer. Message body
// content is not logged.
func (s *Session) Data(r io.Reader) error {
	if !s.authenticated {
		return errAuthRequired
	}

	if len(s.recipients) == 0 {
		return &gosmtp.SMTPError{
			Code:         503,
			EnhancedCode: gosmtp.EnhancedCode{5, 5, 1},
			Message:      "No recipients specified",
		}
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		s.log.Error().Err(err).Msg("failed to read message data")
		metrics.SMTPMessagesTotal.WithLabelValues("deferred").Inc()
		return &gosmtp.SMTPError{
			Code:         451,
			EnhancedCode: gosmtp.EnhancedCode{4, 3, 0},
			Message:      "Error reading message",
		}
	}

	parsed, err := mimeparse.Parse(buf.Bytes())
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to parse message")
		metrics.SMTPMessagesTotal.WithLabelValues("rejected").Inc()
		return &gosmtp.SMTPError{
			Code:         554,
			EnhancedCode: gosmtp.EnhancedCode{5, 6, 0},
			Message:      "Message could not be parsed",
		}
	}
	s.applyEnvelope(parsed)

	res, err := s.backend.relay.Send(s.ctx, parsed)
	if err != nil {
		smtpErr, result := replyFor(err)
		metrics.SMTPMessagesTotal.WithLabelValues(result).Inc()
		s.log.Warn().Err(err).Int("reply_code", smtpErr.Code).Msg("relay failed")
		return smtpErr
	}

	metrics.SMTPMessagesTotal.WithLabelValues("relayed").Inc()
	s.log.Info().
		Str("from", s.sender).
		Str("provider", res.Provider).
		Str("provider_message_id", res.ProviderMessageID).
		Msg("message relayed")
	return nil
}

// applyEnvelope fills missing header addresses from the SMTP envelope.
func (s *Session) applyEnvelope(parsed *mimeparse.ParsedMessage) {
	if len(parsed.To) == 0 {
		for _, rcpt := range s.recipients {
			parsed.To = append(parsed.To, &mail.Address{Address: rcpt})
		}
	}
	if len(parsed.From) == 0 && s.sender != "" {
		parsed.From = []*mail.Address{{Address: s.sender}}
	}
}

// replyFor maps a relay error to the SMTP reply and a metrics result label.
func replyFor(err error) (*gosmtp.SMTPError, string) {
	var (
		invalid  *provider.InvalidMessageError
		delivery *provider.DeliveryError
	)
	switch {
	case errors.As(err, &invalid):
		return &gosmtp.SMTPError{
			Code:         550,
			EnhancedCode: gosmtp.EnhancedCode{5, 6, 0},
			Message:      invalid.Error(),
		}, "rejected"
	case errors.As(err, &delivery) && provider.IsPermanent(err):
		return &gosmtp.SMTPError{
			Code:         554,
			EnhancedCode: gosmtp.EnhancedCode{5, 0, 0},
			Message:      delivery.Error(),
		}, "rejected"
	case errors.As(err, &delivery):
		return &gosmtp.SMTPError{
			Code:         451,
			EnhancedCode: gosmtp.EnhancedCode{4, 4, 0},
			Message:      delivery.Error(),
		}, "deferred"
	}
	// Configuration and unsupported-provider errors are operator problems;
	// the client may retry once the relay is fixed.
	return &gosmtp.SMTPError{
		Code:         451,
		EnhancedCode: gosmtp.EnhancedCode{4, 3, 0},
		Message:      "Relay temporarily unavailable",
	}, "deferred"
}

// Reset is called between messages in the same session. It clears the sender
// and recipients but preserves the authentication state.
func (s *Session) Reset() {
	s.sender = ""
	s.recipients = nil
}

// Logout is called when the client disconnects. It decrements the backend's
// active session counter and logs the session closure.
func (s *Session) Logout() error {
	s.backend.active.Add(-1)
	metrics.SMTPActiveSessions.Dec()
	s.log.Info().Msg("session closed")
	return nil
}
