// Package events classifies webhook records into typed notifications and
// broadcasts them to subscribers.
package events

import (
	"github.com/sungwon/esp-mailer/internal/webhook"
)

// Kind identifies a notification variant.
type Kind string

const (
	KindBounced   Kind = "email.bounced"
	KindDeferred  Kind = "email.deferred"
	KindDelivered Kind = "email.delivered"
)

// Notification is one of EmailBounced, EmailDeferred or EmailDelivered.
type Notification interface {
	Kind() Kind
	Recipient() string
	notification()
}

// EmailBounced reports a permanent delivery failure.
type EmailBounced struct {
	Email    string `json:"email"`
	Provider string `json:"provider"`
	Reason   string `json:"reason,omitempty"`
}

// EmailDeferred reports a temporary delivery failure the provider will retry.
type EmailDeferred struct {
	Email    string `json:"email"`
	Provider string `json:"provider"`
	Reason   string `json:"reason,omitempty"`
}

// EmailDelivered reports a successful delivery.
type EmailDelivered struct {
	Email    string `json:"email"`
	Provider string `json:"provider"`
}

func (EmailBounced) Kind() Kind   { return KindBounced }
func (EmailDeferred) Kind() Kind  { return KindDeferred }
func (EmailDelivered) Kind() Kind { return KindDelivered }

func (n EmailBounced) Recipient() string   { return n.Email }
func (n EmailDeferred) Recipient() string  { return n.Email }
func (n EmailDelivered) Recipient() string { return n.Email }

func (EmailBounced) notification()   {}
func (EmailDeferred) notification()  {}
func (EmailDelivered) notification() {}

// Classify maps a record's event type to a notification. The match is
// case-sensitive; any other type, or none, yields ok == false.
func Classify(rec webhook.Record) (n Notification, ok bool) {
	if rec.EventType == nil {
		return nil, false
	}
	email := webhook.Value(rec.Email)
	switch *rec.EventType {
	case "bounce":
		return EmailBounced{Email: email, Provider: rec.Provider, Reason: webhook.Value(rec.Reason)}, true
	case "deferred":
		return EmailDeferred{Email: email, Provider: rec.Provider, Reason: webhook.Value(rec.Reason)}, true
	case "delivered":
		return EmailDelivered{Email: email, Provider: rec.Provider}, true
	default:
		return nil, false
	}
}
