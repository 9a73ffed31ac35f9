package webhook

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// snsEnvelope is the Amazon SNS HTTP(S) delivery wrapper.
type snsEnvelope struct {
	Type         string `json:"Type"`
	Message      string `json:"Message"`
	SubscribeURL string `json:"SubscribeURL"`
}

// sesNotification covers both SES notification topics ("notificationType")
// and configuration-set event publishing ("eventType").
type sesNotification struct {
	NotificationType string `json:"notificationType"`
	EventType        string `json:"eventType"`

	Mail struct {
		MessageID   string   `json:"messageId"`
		Timestamp   string   `json:"timestamp"`
		Destination []string `json:"destination"`
	} `json:"mail"`

	Bounce *struct {
		BounceType        string         `json:"bounceType"`
		Timestamp         string         `json:"timestamp"`
		BouncedRecipients []sesRecipient `json:"bouncedRecipients"`
	} `json:"bounce"`

	Complaint *struct {
		ComplaintFeedbackType string         `json:"complaintFeedbackType"`
		Timestamp             string         `json:"timestamp"`
		ComplainedRecipients  []sesRecipient `json:"complainedRecipients"`
	} `json:"complaint"`

	Delivery *struct {
		Timestamp  string   `json:"timestamp"`
		Recipients []string `json:"recipients"`
	} `json:"delivery"`

	DeliveryDelay *struct {
		DelayType         string         `json:"delayType"`
		Timestamp         string         `json:"timestamp"`
		DelayedRecipients []sesRecipient `json:"delayedRecipients"`
	} `json:"deliveryDelay"`
}

type sesRecipient struct {
	EmailAddress string `json:"emailAddress"`
}

// ParseSES decodes an SES notification, either wrapped in an SNS envelope or
// posted bare. A notification yields one event per affected recipient.
// SNS subscription confirmations yield no events.
func ParseSES(body []byte, _ SkipFunc) ([]Event, error) {
	var env snsEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: expected a JSON object: %v", ErrMalformedPayload, err)
	}

	inner := body
	switch env.Type {
	case "SubscriptionConfirmation", "UnsubscribeConfirmation":
		return nil, nil
	case "Notification":
		inner = []byte(env.Message)
	}

	var n sesNotification
	if err := json.Unmarshal(inner, &n); err != nil {
		return nil, fmt.Errorf("%w: invalid SES notification: %v", ErrMalformedPayload, err)
	}

	kind := n.NotificationType
	if kind == "" {
		kind = n.EventType
	}
	if kind == "" {
		return nil, fmt.Errorf("%w: SES notification has no type", ErrMalformedPayload)
	}

	messageID := optional(n.Mail.MessageID)
	fallbackTS := n.Mail.Timestamp

	var events []Event
	add := func(email, eventType, reason, ts string) {
		events = append(events, Event{
			Email:     optional(email),
			EventType: ptr(eventType),
			Reason:    optional(reason),
			MessageID: messageID,
			Timestamp: parseRFC3339(ts, fallbackTS),
		})
	}

	switch {
	case kind == "Bounce" && n.Bounce != nil:
		for _, r := range n.Bounce.BouncedRecipients {
			add(r.EmailAddress, "bounce", n.Bounce.BounceType, n.Bounce.Timestamp)
		}
	case kind == "Complaint" && n.Complaint != nil:
		for _, r := range n.Complaint.ComplainedRecipients {
			add(r.EmailAddress, "complaint", n.Complaint.ComplaintFeedbackType, n.Complaint.Timestamp)
		}
	case kind == "Delivery" && n.Delivery != nil:
		for _, r := range n.Delivery.Recipients {
			add(r, "delivered", "", n.Delivery.Timestamp)
		}
	case kind == "DeliveryDelay" && n.DeliveryDelay != nil:
		for _, r := range n.DeliveryDelay.DelayedRecipients {
			add(r.EmailAddress, "deferred", n.DeliveryDelay.DelayType, n.DeliveryDelay.Timestamp)
		}
	default:
		// Other SES event types are recorded under their own lower-cased name.
		for _, r := range n.Mail.Destination {
			add(r, strings.ToLower(kind), "", "")
		}
	}
	return events, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// parseRFC3339 returns the first of the candidates that parses, or nil.
func parseRFC3339(candidates ...string) *time.Time {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339Nano, c); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
