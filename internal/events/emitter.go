package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/sungwon/esp-mailer/internal/logger"
	"github.com/sungwon/esp-mailer/internal/metrics"
	"github.com/sungwon/esp-mailer/internal/webhook"
)

// Subscriber consumes notifications. Handle errors are logged and counted;
// they never fail the publish.
type Subscriber interface {
	Name() string
	Handle(ctx context.Context, n Notification) error
}

// Emitter broadcasts notifications to its subscribers synchronously, in
// registration order. A failing or panicking subscriber does not stop the
// others.
type Emitter struct {
	mu   sync.RWMutex
	subs []Subscriber
	log  zerolog.Logger
}

// NewEmitter creates an Emitter with the given subscribers.
func NewEmitter(log zerolog.Logger, subs ...Subscriber) *Emitter {
	return &Emitter{subs: subs, log: log}
}

// Subscribe registers an additional subscriber.
func (e *Emitter) Subscribe(s Subscriber) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subs = append(e.subs, s)
}

// Publish hands n to every subscriber.
func (e *Emitter) Publish(ctx context.Context, n Notification) {
	e.mu.RLock()
	subs := make([]Subscriber, len(e.subs))
	copy(subs, e.subs)
	e.mu.RUnlock()

	metrics.NotificationsTotal.WithLabelValues(string(n.Kind())).Inc()

	log := logger.FromContext(ctx, e.log)
	for _, s := range subs {
		if err := e.deliver(ctx, s, n); err != nil {
			metrics.SubscriberFailuresTotal.WithLabelValues(s.Name()).Inc()
			log.Error().Err(err).
				Str("subscriber", s.Name()).
				Str("kind", string(n.Kind())).
				Msg("notification subscriber failed")
		}
	}
}

func (e *Emitter) deliver(ctx context.Context, s Subscriber, n Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.Handle(ctx, n)
}

// EmitRecords classifies each record and publishes the known kinds. It
// returns the number of notifications published.
func (e *Emitter) EmitRecords(ctx context.Context, records []webhook.Record) int {
	published := 0
	for _, rec := range records {
		n, ok := Classify(rec)
		if !ok {
			continue
		}
		e.Publish(ctx, n)
		published++
	}
	return published
}
