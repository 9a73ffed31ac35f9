package provider

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sungwon/esp-mailer/internal/message"
)

// Adapter translates an OutboundMessage into one ESP's wire format and
// performs a single synchronous send.
type Adapter interface {
	// Deliver sends the message and returns the provider's decoded response.
	// Failures are reported as *InvalidMessageError or *DeliveryError.
	Deliver(ctx context.Context, msg *message.OutboundMessage) (*SendResult, error)
	// GetName returns the provider's identifier (e.g., "sendgrid", "ses").
	GetName() string
}

// HTTPClient abstracts HTTP operations for testability.
type HTTPClient interface {
	Do(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error)
}

// HTTPRequest represents an outgoing HTTP request.
type HTTPRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// HTTPResponse represents an HTTP response from a provider API.
type HTTPResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

// SendResult is the outcome of an accepted send.
type SendResult struct {
	Provider          string
	StatusCode        int
	ProviderMessageID string
	// Body is the provider's response decoded as JSON, passed through untouched.
	// It is nil when the provider returned an empty or non-object body.
	Body      map[string]any
	Timestamp time.Time
}

// decodeBody decodes a JSON object response body. Anything else yields nil.
func decodeBody(data []byte) map[string]any {
	if len(data) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

func isSuccess(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
