package provider

import (
	"errors"
	"fmt"
	"strings"
)

// FallbackErrorMessage is used when a rejected send carries no readable error.
const FallbackErrorMessage = "Unknown error"

// ConfigurationError reports a missing required provider setting. It is
// returned when the dispatcher is built, never at send time.
type ConfigurationError struct {
	Provider string
	Field    string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("mailer provider [%s] is missing %s configuration", e.Provider, e.Field)
}

// UnsupportedProviderError reports a provider name with no registered
// adapter or webhook parser.
type UnsupportedProviderError struct {
	Provider string
}

func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("unsupported provider [%s]", e.Provider)
}

// InvalidMessageError reports a message that fails a structural precondition.
// It is raised before any network call.
type InvalidMessageError struct {
	Reason string
}

func (e *InvalidMessageError) Error() string {
	return "invalid message: " + e.Reason
}

// DeliveryError wraps an ESP rejection or transport failure.
type DeliveryError struct {
	// Provider is the name of the ESP that handled the send.
	Provider string
	// StatusCode is the HTTP status code from the ESP API, or 0 when no
	// response was received.
	StatusCode int
	// Message is the ESP's own error description, or FallbackErrorMessage.
	Message string
	// Permanent indicates the send will not succeed if repeated unchanged.
	Permanent bool
	Cause     error
}

// Error returns the provider's own description unchanged. The provider name
// is available on the Provider field for logging.
func (e *DeliveryError) Error() string {
	return e.Message
}

func (e *DeliveryError) Unwrap() error {
	return e.Cause
}

// IsPermanent returns true if err is a DeliveryError that should not be retried.
func IsPermanent(err error) bool {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Permanent
	}
	return false
}

// MessageExtractor pulls a provider-specific error description out of a
// response body.
type MessageExtractor func(body []byte) (string, bool)

// ClassifyHTTPError builds a DeliveryError from a non-2xx response. The
// message comes from extract when it finds one, else FallbackErrorMessage.
func ClassifyHTTPError(providerName string, statusCode int, body []byte, extract MessageExtractor) *DeliveryError {
	if isSuccess(statusCode) {
		return nil
	}

	de := &DeliveryError{
		Provider:   providerName,
		StatusCode: statusCode,
		Message:    FallbackErrorMessage,
	}
	if extract != nil {
		if msg, ok := extract(body); ok {
			de.Message = msg
		}
	}

	text := string(body)
	switch {
	case statusCode == 400:
		de.Permanent = containsPermanentIndicator(text)

	case statusCode == 401, statusCode == 403, statusCode == 404, statusCode == 413:
		de.Permanent = true

	case statusCode == 429:
		// Rate limited - always transient.
		de.Permanent = false

	case statusCode >= 500:
		de.Permanent = containsPermanentServerIndicator(text)

	default:
		de.Permanent = statusCode >= 400 && statusCode < 500
	}

	return de
}

// newTransportError wraps a failure that prevented any response.
func newTransportError(providerName string, err error) *DeliveryError {
	return &DeliveryError{
		Provider: providerName,
		Message:  err.Error(),
		Cause:    err,
	}
}

// containsPermanentIndicator checks if a 400 response body indicates a
// permanent failure (e.g., invalid recipient, bad request that won't change).
func containsPermanentIndicator(body string) bool {
	lower := strings.ToLower(body)
	permanentPatterns := []string{
		"invalid recipient",
		"invalid email",
		"does not exist",
		"mailbox not found",
		"recipient rejected",
		"bounced",
		"bad request",
		"validation error",
		"invalid address",
		"does not contain a valid address",
	}
	for _, pattern := range permanentPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// containsPermanentServerIndicator checks if a 5xx response body indicates
// a permanent server-side failure (e.g., invalid auth configuration).
func containsPermanentServerIndicator(body string) bool {
	lower := strings.ToLower(body)
	permanentPatterns := []string{
		"invalid api key",
		"authentication failed",
		"account suspended",
		"account disabled",
		"unauthorized",
	}
	for _, pattern := range permanentPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}
