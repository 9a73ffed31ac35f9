package webhook

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// sendgridEvent is one element of a SendGrid Event Webhook POST. Every field
// is optional.
type sendgridEvent struct {
	Email       *string      `json:"email"`
	Event       *string      `json:"event"`
	Reason      *string      `json:"reason"`
	SGMessageID *string      `json:"sg_message_id"`
	Timestamp   *json.Number `json:"timestamp"`
}

// ParseSendGrid decodes a SendGrid Event Webhook body: a JSON array of event
// objects. An element whose fields have the wrong JSON types is skipped.
func ParseSendGrid(body []byte, skip SkipFunc) ([]Event, error) {
	var elements []json.RawMessage
	if err := json.Unmarshal(body, &elements); err != nil {
		return nil, fmt.Errorf("%w: expected a JSON array: %v", ErrMalformedPayload, err)
	}

	events := make([]Event, 0, len(elements))
	for i, raw := range elements {
		var se sendgridEvent
		if err := json.Unmarshal(raw, &se); err != nil {
			skip(i, err)
			continue
		}

		ev := Event{
			Email:     se.Email,
			EventType: se.Event,
			Reason:    se.Reason,
			MessageID: se.SGMessageID,
		}
		if se.Timestamp != nil {
			ts, err := epochSeconds(*se.Timestamp)
			if err != nil {
				skip(i, err)
				continue
			}
			ev.Timestamp = &ts
		}
		events = append(events, ev)
	}
	return events, nil
}

// maxEpochSeconds is 9999-12-31T23:59:59Z, the last instant a timestamptz
// column and RFC 3339 can both represent.
const maxEpochSeconds = 253402300799

// epochSeconds converts a Unix timestamp in seconds, possibly fractional.
// Values before the epoch or past year 9999 are rejected.
func epochSeconds(n json.Number) (time.Time, error) {
	if sec, err := n.Int64(); err == nil {
		if sec < 0 || sec > maxEpochSeconds {
			return time.Time{}, fmt.Errorf("timestamp %q out of range", n.String())
		}
		return time.Unix(sec, 0).UTC(), nil
	}
	f, err := n.Float64()
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", n.String())
	}
	if f < 0 || f > maxEpochSeconds {
		return time.Time{}, fmt.Errorf("timestamp %q out of range", n.String())
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), nil
}
