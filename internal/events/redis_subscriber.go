package events

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultStream is the Redis stream notifications are appended to.
const DefaultStream = "mailer:notifications"

// streamAdder is the subset of *redis.Client used by RedisStreamSubscriber.
type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisStreamSubscriber appends each notification to a Redis stream with
// XADD so out-of-process consumers can react to it.
type RedisStreamSubscriber struct {
	client streamAdder
	stream string
	maxLen int64
	now    func() time.Time
}

// NewRedisStreamSubscriber creates a subscriber writing to stream. A maxLen
// above zero caps the stream approximately at that length.
func NewRedisStreamSubscriber(client *redis.Client, stream string, maxLen int64) *RedisStreamSubscriber {
	return newRedisStreamSubscriber(client, stream, maxLen)
}

func newRedisStreamSubscriber(client streamAdder, stream string, maxLen int64) *RedisStreamSubscriber {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisStreamSubscriber{client: client, stream: stream, maxLen: maxLen, now: time.Now}
}

func (s *RedisStreamSubscriber) Name() string { return "redis" }

func (s *RedisStreamSubscriber) Handle(ctx context.Context, n Notification) error {
	data, err := marshalEnvelope(ctx, n, s.now())
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"kind": string(n.Kind()),
			"data": string(data),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd to stream %s: %w", s.stream, err)
	}
	return nil
}
