package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/sungwon/esp-mailer/internal/events"
	"github.com/sungwon/esp-mailer/internal/webhook"
)

func newWebhookRouter(t *testing.T, providerName string, store *memStore, emitter RecordEmitter, arch *memArchive) http.Handler {
	t.Helper()
	n := webhook.NewNormalizer(providerName, webhook.DefaultParsers(), store, zerolog.Nop())
	cfg := RouterConfig{Ingester: n, Emitter: emitter}
	if arch != nil {
		cfg.Archive = arch
	}
	return NewRouter(cfg, zerolog.Nop())
}

func postWebhook(h http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestWebhookHandler_SendGridBatch(t *testing.T) {
	store := &memStore{}
	emitter := &recordingEmitter{}
	h := newWebhookRouter(t, "sendgrid", store, emitter, nil)

	body := `[
		{"email":"a@x.com","event":"bounce","reason":"550 no such user","sg_message_id":"m1","timestamp":1700000000},
		{"email":"b@x.com","event":"delivered","sg_message_id":"m2"},
		{"email":"c@x.com","event":"open"}
	]`
	rec := postWebhook(h, DefaultWebhookPath, body)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d; body: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["message"] != "Webhook processed" {
		t.Errorf("expected message %q, got %q", "Webhook processed", resp["message"])
	}

	if len(store.records) != 3 {
		t.Fatalf("expected 3 stored records, got %d", len(store.records))
	}
	wantTypes := []string{"bounce", "delivered", "open"}
	for i, r := range store.records {
		if webhook.Value(r.EventType) != wantTypes[i] {
			t.Errorf("record %d: expected event %q, got %q", i, wantTypes[i], webhook.Value(r.EventType))
		}
		if r.Provider != "sendgrid" {
			t.Errorf("record %d: expected provider sendgrid, got %q", i, r.Provider)
		}
	}
	if len(emitter.records) != 3 {
		t.Errorf("expected 3 records handed to emitter, got %d", len(emitter.records))
	}
}

func TestWebhookHandler_EmptyArray(t *testing.T) {
	store := &memStore{}
	h := newWebhookRouter(t, "sendgrid", store, &recordingEmitter{}, nil)

	rec := postWebhook(h, DefaultWebhookPath, `[]`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if len(store.records) != 0 {
		t.Errorf("expected no records, got %d", len(store.records))
	}
}

func TestWebhookHandler_UnsupportedProvider(t *testing.T) {
	store := &memStore{}
	h := newWebhookRouter(t, "postmark", store, &recordingEmitter{}, nil)

	rec := postWebhook(h, DefaultWebhookPath, `[{"email":"a@x.com","event":"bounce"}]`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "unsupported provider [postmark]") {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
	if store.calls != 0 {
		t.Errorf("expected no store calls, got %d", store.calls)
	}
}

func TestWebhookHandler_MalformedPayload(t *testing.T) {
	h := newWebhookRouter(t, "sendgrid", &memStore{}, &recordingEmitter{}, nil)

	rec := postWebhook(h, DefaultWebhookPath, `{"email":"a@x.com"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestWebhookHandler_StoreFailureEmitsPersistedPrefix(t *testing.T) {
	store := &memStore{failAt: 2}
	emitter := &recordingEmitter{}
	h := newWebhookRouter(t, "sendgrid", store, emitter, nil)

	body := `[{"email":"a@x.com","event":"bounce"},{"email":"b@x.com","event":"delivered"}]`
	rec := postWebhook(h, DefaultWebhookPath, body)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}
	if len(emitter.records) != 1 || webhook.Value(emitter.records[0].Email) != "a@x.com" {
		t.Errorf("expected only the first record emitted, got %+v", emitter.records)
	}
}

func TestWebhookHandler_Archives(t *testing.T) {
	arch := &memArchive{}
	h := newWebhookRouter(t, "sendgrid", &memStore{}, &recordingEmitter{}, arch)

	req := httptest.NewRequest(http.MethodPost, DefaultWebhookPath, strings.NewReader(`[]`))
	req.Header.Set("X-Correlation-ID", "corr-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if len(arch.bodies) != 1 {
		t.Fatalf("expected one archived body, got %d", len(arch.bodies))
	}
	for key, data := range arch.bodies {
		if !strings.HasPrefix(key, "sendgrid/") || !strings.HasSuffix(key, "/corr-1.json") {
			t.Errorf("unexpected archive key %q", key)
		}
		if string(data) != `[]` {
			t.Errorf("unexpected archived body %q", data)
		}
	}
}

func TestWebhookHandler_ArchiveFailureDoesNotBlock(t *testing.T) {
	arch := &memArchive{err: errors.New("disk full")}
	store := &memStore{}
	h := newWebhookRouter(t, "sendgrid", store, &recordingEmitter{}, arch)

	rec := postWebhook(h, DefaultWebhookPath, `[{"email":"a@x.com","event":"delivered"}]`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if len(store.records) != 1 {
		t.Errorf("expected 1 stored record, got %d", len(store.records))
	}
}

func TestWebhookHandler_CustomPath(t *testing.T) {
	n := webhook.NewNormalizer("sendgrid", webhook.DefaultParsers(), &memStore{}, zerolog.Nop())
	h := NewRouter(RouterConfig{WebhookPath: "/hooks/esp", Ingester: n}, zerolog.Nop())

	if rec := postWebhook(h, "/hooks/esp", `[]`); rec.Code != http.StatusOK {
		t.Errorf("expected status 200 on custom path, got %d", rec.Code)
	}
	if rec := postWebhook(h, DefaultWebhookPath, `[]`); rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404 on default path, got %d", rec.Code)
	}
}

// countingSubscriber records the notification kinds it receives.
type countingSubscriber struct {
	kinds []events.Kind
}

func (s *countingSubscriber) Name() string { return "counting" }

func (s *countingSubscriber) Handle(_ context.Context, n events.Notification) error {
	s.kinds = append(s.kinds, n.Kind())
	return nil
}

func TestWebhookHandler_EmitsTypedNotifications(t *testing.T) {
	sub := &countingSubscriber{}
	emitter := events.NewEmitter(zerolog.Nop(), sub)
	h := newWebhookRouter(t, "sendgrid", &memStore{}, emitter, nil)

	body := `[
		{"email":"a@x.com","event":"bounce"},
		{"email":"b@x.com","event":"deferred"},
		{"email":"c@x.com","event":"delivered"},
		{"email":"d@x.com","event":"click"}
	]`
	rec := postWebhook(h, DefaultWebhookPath, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	want := []events.Kind{events.KindBounced, events.KindDeferred, events.KindDelivered}
	if len(sub.kinds) != len(want) {
		t.Fatalf("expected %d notifications, got %v", len(want), sub.kinds)
	}
	for i, k := range want {
		if sub.kinds[i] != k {
			t.Errorf("notification %d: expected %s, got %s", i, k, sub.kinds[i])
		}
	}
}
