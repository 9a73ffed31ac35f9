package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/sungwon/esp-mailer/internal/auth"
	"github.com/sungwon/esp-mailer/internal/logger"
	"github.com/sungwon/esp-mailer/internal/message"
	"github.com/sungwon/esp-mailer/internal/provider"
)

const maxMessageBody = 25 << 20

// Sender performs one synchronous send through the active provider.
type Sender interface {
	Send(ctx context.Context, msg *message.OutboundMessage) (*provider.SendResult, error)
}

// sendMessageRequest is the JSON body of POST /api/v1/messages.
type sendMessageRequest struct {
	To      message.Address   `json:"to"`
	From    []message.Address `json:"from"`
	Subject string            `json:"subject"`
	HTML    string            `json:"html"`
	Cc      []message.Address `json:"cc,omitempty"`
	Bcc     []message.Address `json:"bcc,omitempty"`
	ReplyTo []message.Address `json:"reply_to,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

type sendMessageResponse struct {
	Provider          string         `json:"provider"`
	StatusCode        int            `json:"status_code"`
	ProviderMessageID string         `json:"provider_message_id,omitempty"`
	Response          map[string]any `json:"response,omitempty"`
	SentAt            time.Time      `json:"sent_at"`
}

// SendMessageHandler handles POST /api/v1/messages.
func SendMessageHandler(sender Sender, base zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context(), base).With().
			Str("subject_id", auth.SubjectFromContext(r.Context())).
			Logger()

		var req sendMessageRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBody))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		msg := &message.OutboundMessage{
			To:      req.To,
			From:    req.From,
			Subject: req.Subject,
			Body:    req.HTML,
			Cc:      req.Cc,
			Bcc:     req.Bcc,
			ReplyTo: req.ReplyTo,
			Headers: req.Headers,
		}

		result, err := sender.Send(r.Context(), msg)
		if err != nil {
			status, text := sendErrorStatus(err)
			log.Warn().Err(err).Int("status", status).Msg("send api: send failed")
			respondError(w, status, text)
			return
		}

		respondJSON(w, http.StatusOK, sendMessageResponse{
			Provider:          result.Provider,
			StatusCode:        result.StatusCode,
			ProviderMessageID: result.ProviderMessageID,
			Response:          result.Body,
			SentAt:            result.Timestamp,
		})
	}
}

// sendErrorStatus maps dispatcher errors onto HTTP status codes.
func sendErrorStatus(err error) (int, string) {
	var (
		invalid     *provider.InvalidMessageError
		delivery    *provider.DeliveryError
		unsupported *provider.UnsupportedProviderError
		config      *provider.ConfigurationError
	)
	switch {
	case errors.As(err, &invalid):
		return http.StatusUnprocessableEntity, invalid.Error()
	case errors.As(err, &delivery):
		return http.StatusBadGateway, delivery.Error()
	case errors.As(err, &unsupported):
		return http.StatusInternalServerError, unsupported.Error()
	case errors.As(err, &config):
		return http.StatusInternalServerError, config.Error()
	}
	return http.StatusInternalServerError, "internal server error"
}
