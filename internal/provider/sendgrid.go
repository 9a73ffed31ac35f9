package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sungwon/esp-mailer/internal/message"
)

const sendgridDefaultURL = "https://api.sendgrid.com/v3/mail/send"

// SendGrid implements the Adapter interface for the SendGrid v3 API.
type SendGrid struct {
	apiKey string
	url    string
	client HTTPClient
	now    func() time.Time
}

// NewSendGrid creates a SendGrid adapter from the given configuration.
func NewSendGrid(cfg Config, client HTTPClient) *SendGrid {
	url := cfg.APIURL
	if url == "" {
		url = sendgridDefaultURL
	}
	if client == nil {
		client = NewHTTPClient(cfg.TimeoutOrDefault())
	}
	return &SendGrid{
		apiKey: cfg.APIKey,
		url:    url,
		client: client,
		now:    time.Now,
	}
}

func (s *SendGrid) GetName() string { return "sendgrid" }

// Deliver sends a message via the SendGrid v3 Mail Send API.
func (s *SendGrid) Deliver(ctx context.Context, msg *message.OutboundMessage) (*SendResult, error) {
	sender, err := validateMessage(msg)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(s.buildPayload(msg, sender))
	if err != nil {
		return nil, fmt.Errorf("sendgrid: marshal request: %w", err)
	}

	resp, err := s.client.Do(ctx, &HTTPRequest{
		Method: http.MethodPost,
		URL:    s.url,
		Headers: map[string]string{
			"Authorization": "Bearer " + s.apiKey,
			"Content-Type":  "application/json",
		},
		Body: body,
	})
	if err != nil {
		return nil, newTransportError(s.GetName(), err)
	}

	if !isSuccess(resp.StatusCode) {
		return nil, ClassifyHTTPError(s.GetName(), resp.StatusCode, resp.Body, sendgridErrorMessage)
	}

	messageID := ""
	if resp.Headers != nil {
		messageID = resp.Headers["X-Message-Id"]
	}
	return &SendResult{
		Provider:          s.GetName(),
		StatusCode:        resp.StatusCode,
		ProviderMessageID: messageID,
		Body:              decodeBody(resp.Body),
		Timestamp:         s.now(),
	}, nil
}

// sendgridPayload matches the SendGrid v3 mail/send JSON schema.
type sendgridPayload struct {
	Personalizations []sendgridPersonalization `json:"personalizations"`
	From             sendgridEmail             `json:"from"`
	ReplyTo          *sendgridEmail            `json:"reply_to,omitempty"`
	ReplyToList      []sendgridEmail           `json:"reply_to_list,omitempty"`
	Subject          string                    `json:"subject"`
	Content          []sendgridContent         `json:"content"`
	Headers          map[string]string         `json:"headers,omitempty"`
}

type sendgridPersonalization struct {
	To  []sendgridEmail `json:"to"`
	Cc  []sendgridEmail `json:"cc,omitempty"`
	Bcc []sendgridEmail `json:"bcc,omitempty"`
}

type sendgridEmail struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendgridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendgridErrorBody struct {
	Errors []struct {
		Message *string `json:"message"`
	} `json:"errors"`
}

// sendgridErrorMessage reads errors[0].message from a rejection body.
func sendgridErrorMessage(body []byte) (string, bool) {
	var eb sendgridErrorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return "", false
	}
	if len(eb.Errors) == 0 || eb.Errors[0].Message == nil {
		return "", false
	}
	return *eb.Errors[0].Message, true
}

func (s *SendGrid) buildPayload(msg *message.OutboundMessage, sender message.Address) sendgridPayload {
	// SendGrid requires text/plain before text/html; both are always sent.
	content := []sendgridContent{
		{Type: "text/plain", Value: message.PlainText(msg.Body)},
		{Type: "text/html", Value: msg.Body},
	}

	payload := sendgridPayload{
		Personalizations: []sendgridPersonalization{{
			To:  []sendgridEmail{toSendgridEmail(msg.To)},
			Cc:  toSendgridEmails(msg.Cc),
			Bcc: toSendgridEmails(msg.Bcc),
		}},
		From:    toSendgridEmail(sender),
		Subject: msg.Subject,
		Content: content,
	}

	replyTo := toSendgridEmails(msg.ReplyTo)
	switch len(replyTo) {
	case 0:
	case 1:
		payload.ReplyTo = &replyTo[0]
	default:
		payload.ReplyToList = replyTo
	}

	payload.Headers = customHeaders(msg.Headers)

	return payload
}

func toSendgridEmail(a message.Address) sendgridEmail {
	return sendgridEmail{Email: a.Email, Name: a.Name}
}

func toSendgridEmails(addrs []message.Address) []sendgridEmail {
	var out []sendgridEmail
	for _, a := range addrs {
		if a.IsZero() {
			continue
		}
		out = append(out, toSendgridEmail(a))
	}
	return out
}
