//go:build integration

package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sungwon/esp-mailer/internal/storage"
	"github.com/sungwon/esp-mailer/internal/webhook"
)

func TestEventStore_CreatePersistsRow(t *testing.T) {
	ctx := context.Background()
	store := storage.NewEventStore(sharedDB.Pool)

	email, event, reason, msgID := "a@x.com", "bounce", "invalid_mailbox", "sg-1"
	at := time.Unix(1700000000, 0).UTC()

	rec, err := store.Create(ctx, webhook.Record{
		Provider:  "sendgrid",
		Email:     &email,
		EventType: &event,
		Reason:    &reason,
		MessageID: &msgID,
		EventAt:   at,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !rec.EventAt.Equal(at) {
		t.Errorf("EventAt = %v, want %v", rec.EventAt, at)
	}
	if rec.CreatedAt.IsZero() {
		t.Error("expected created_at from the database")
	}

	var count int
	if err := sharedDB.Pool.QueryRow(ctx, `SELECT count(*) FROM mailer_events WHERE id = $1`, rec.ID).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 row, got %d", count)
	}
}

func TestEventStore_NullableColumns(t *testing.T) {
	ctx := context.Background()
	store := storage.NewEventStore(sharedDB.Pool)

	rec, err := store.Create(ctx, webhook.Record{Provider: "sendgrid", EventAt: time.Now().UTC()})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.Email != nil || rec.EventType != nil || rec.Reason != nil || rec.MessageID != nil {
		t.Errorf("expected NULL columns to scan as nil, got %+v", rec)
	}
}

func TestNormalizer_WithPostgresStore(t *testing.T) {
	ctx := context.Background()
	store := storage.NewEventStore(sharedDB.Pool)
	n := webhook.NewNormalizer("sendgrid", webhook.DefaultParsers(), store, zerolog.Nop())

	body := `[{"email":"int-a@x.com","event":"bounce"},{"email":"int-b@x.com","event":"delivered"},{"email":"int-c@x.com"}]`
	records, err := n.Ingest(ctx, []byte(body))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}

	var count int
	if err := sharedDB.Pool.QueryRow(ctx, `SELECT count(*) FROM mailer_events WHERE email LIKE 'int-%'`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 rows, got %d", count)
	}
}

func TestDB_Ping(t *testing.T) {
	if err := sharedDB.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
