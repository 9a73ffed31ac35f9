// Package webhook turns provider delivery-status callbacks into persisted
// event records.
package webhook

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Record is one persisted webhook event. Optional fields are nil when the
// provider payload did not carry them.
type Record struct {
	ID        uuid.UUID
	Provider  string
	Email     *string
	EventType *string
	Reason    *string
	MessageID *string
	EventAt   time.Time
	CreatedAt time.Time
}

// EventStore persists webhook records. Create returns the stored record
// with any store-assigned fields filled in.
type EventStore interface {
	Create(ctx context.Context, rec Record) (Record, error)
}

// Event is one provider event decoded from a webhook body, before it is
// stamped and persisted. A nil Timestamp means the provider sent none.
type Event struct {
	Email     *string
	EventType *string
	Reason    *string
	MessageID *string
	Timestamp *time.Time
}

// Value returns *p, or "" when p is nil.
func Value(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func ptr(s string) *string { return &s }
