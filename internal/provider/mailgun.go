package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sungwon/esp-mailer/internal/message"
)

const mailgunDefaultURLFmt = "https://api.mailgun.net/v3/%s/messages"

// Mailgun implements the Adapter interface for the Mailgun messages API.
type Mailgun struct {
	apiKey string
	url    string
	client HTTPClient
	now    func() time.Time
}

// NewMailgun creates a Mailgun adapter from the given configuration.
func NewMailgun(cfg Config, client HTTPClient) *Mailgun {
	u := cfg.APIURL
	if u == "" {
		u = fmt.Sprintf(mailgunDefaultURLFmt, cfg.Domain)
	}
	if client == nil {
		client = NewHTTPClient(cfg.TimeoutOrDefault())
	}
	return &Mailgun{
		apiKey: cfg.APIKey,
		url:    u,
		client: client,
		now:    time.Now,
	}
}

func (m *Mailgun) GetName() string { return "mailgun" }

// Deliver sends a message via the Mailgun messages API.
func (m *Mailgun) Deliver(ctx context.Context, msg *message.OutboundMessage) (*SendResult, error) {
	sender, err := validateMessage(msg)
	if err != nil {
		return nil, err
	}

	form := m.buildForm(msg, sender)
	resp, err := m.client.Do(ctx, &HTTPRequest{
		Method: http.MethodPost,
		URL:    m.url,
		Headers: map[string]string{
			"Authorization": "Basic " + basicAuth("api", m.apiKey),
			"Content-Type":  "application/x-www-form-urlencoded",
		},
		Body: []byte(form.Encode()),
	})
	if err != nil {
		return nil, newTransportError(m.GetName(), err)
	}

	if !isSuccess(resp.StatusCode) {
		return nil, ClassifyHTTPError(m.GetName(), resp.StatusCode, resp.Body, mailgunErrorMessage)
	}

	var mgResp mailgunResponse
	_ = json.Unmarshal(resp.Body, &mgResp)
	return &SendResult{
		Provider:          m.GetName(),
		StatusCode:        resp.StatusCode,
		ProviderMessageID: mgResp.ID,
		Body:              decodeBody(resp.Body),
		Timestamp:         m.now(),
	}, nil
}

type mailgunResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

func mailgunErrorMessage(body []byte) (string, bool) {
	var mgResp mailgunResponse
	if err := json.Unmarshal(body, &mgResp); err != nil || mgResp.Message == "" {
		return "", false
	}
	return mgResp.Message, true
}

func (m *Mailgun) buildForm(msg *message.OutboundMessage, sender message.Address) url.Values {
	form := url.Values{}
	form.Set("from", sender.String())
	form.Set("to", msg.To.String())
	form.Set("subject", msg.Subject)
	form.Set("text", message.PlainText(msg.Body))
	form.Set("html", msg.Body)

	if len(msg.Cc) > 0 {
		form.Set("cc", joinAddresses(msg.Cc))
	}
	if len(msg.Bcc) > 0 {
		form.Set("bcc", joinAddresses(msg.Bcc))
	}
	if len(msg.ReplyTo) > 0 {
		form.Set("h:Reply-To", joinAddresses(msg.ReplyTo))
	}
	for key, value := range customHeaders(msg.Headers) {
		form.Set("h:"+key, value)
	}
	return form
}

func joinAddresses(addrs []message.Address) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a.IsZero() {
			continue
		}
		parts = append(parts, a.String())
	}
	return strings.Join(parts, ",")
}

// basicAuth encodes credentials as base64 for HTTP Basic Authentication.
func basicAuth(username, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
}
