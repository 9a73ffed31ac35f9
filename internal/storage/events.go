package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sungwon/esp-mailer/internal/metrics"
	"github.com/sungwon/esp-mailer/internal/webhook"
)

const createEventSQL = `INSERT INTO mailer_events
    (id, provider, email, event_type, reason, message_id, event_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, provider, email, event_type, reason, message_id, event_at, created_at`

// dbtx is the subset of pgxpool.Pool and pgx.Tx used by EventStore.
type dbtx interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// EventStore persists webhook records in the mailer_events table.
type EventStore struct {
	db dbtx
}

// NewEventStore creates an EventStore on a pool or transaction.
func NewEventStore(db dbtx) *EventStore {
	return &EventStore{db: db}
}

// Create inserts rec and returns the stored row. A zero ID is replaced with
// a new UUID.
func (s *EventStore) Create(ctx context.Context, rec webhook.Record) (webhook.Record, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	start := time.Now()
	var out webhook.Record
	err := s.db.QueryRow(ctx, createEventSQL,
		rec.ID, rec.Provider, rec.Email, rec.EventType, rec.Reason, rec.MessageID, rec.EventAt,
	).Scan(&out.ID, &out.Provider, &out.Email, &out.EventType, &out.Reason, &out.MessageID, &out.EventAt, &out.CreatedAt)
	metrics.DBQueryDuration.WithLabelValues("create_mailer_event").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.DBErrorsTotal.WithLabelValues("create_mailer_event").Inc()
		return webhook.Record{}, fmt.Errorf("insert mailer event: %w", err)
	}
	return out, nil
}
