package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sungwon/esp-mailer/internal/logger"
)

// envelope is the JSON shape written to external queues.
type envelope struct {
	Kind          Kind         `json:"kind"`
	Notification  Notification `json:"notification"`
	CorrelationID string       `json:"correlation_id,omitempty"`
	PublishedAt   time.Time    `json:"published_at"`
}

func marshalEnvelope(ctx context.Context, n Notification, now time.Time) ([]byte, error) {
	return json.Marshal(envelope{
		Kind:          n.Kind(),
		Notification:  n,
		CorrelationID: logger.CorrelationIDFromContext(ctx),
		PublishedAt:   now.UTC(),
	})
}
