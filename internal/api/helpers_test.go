package api

import (
	"context"
	"errors"
	"sync"

	"github.com/sungwon/esp-mailer/internal/message"
	"github.com/sungwon/esp-mailer/internal/provider"
	"github.com/sungwon/esp-mailer/internal/webhook"
)

// memStore is an in-memory webhook.EventStore.
type memStore struct {
	mu      sync.Mutex
	records []webhook.Record
	failAt  int // 1-based call that fails; 0 never fails
	calls   int
}

func (s *memStore) Create(_ context.Context, rec webhook.Record) (webhook.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failAt != 0 && s.calls == s.failAt {
		return webhook.Record{}, errors.New("connection reset")
	}
	s.records = append(s.records, rec)
	return rec, nil
}

// recordingEmitter captures the records handed to EmitRecords.
type recordingEmitter struct {
	records []webhook.Record
}

func (e *recordingEmitter) EmitRecords(_ context.Context, records []webhook.Record) int {
	e.records = append(e.records, records...)
	return len(records)
}

// memArchive captures archived bodies by key.
type memArchive struct {
	bodies map[string][]byte
	err    error
}

func (a *memArchive) Put(_ context.Context, key string, data []byte) error {
	if a.err != nil {
		return a.err
	}
	if a.bodies == nil {
		a.bodies = make(map[string][]byte)
	}
	a.bodies[key] = data
	return nil
}

// fakeSender implements Sender.
type fakeSender struct {
	got    *message.OutboundMessage
	result *provider.SendResult
	err    error
}

func (s *fakeSender) Send(_ context.Context, msg *message.OutboundMessage) (*provider.SendResult, error) {
	s.got = msg
	return s.result, s.err
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }
