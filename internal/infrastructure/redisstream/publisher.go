package redisstream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/execution-hub/execution-tracker/internal/domain/execution"
)

const DefaultStreamPrefix = "tracker:execution:"

// Publisher appends events to one Redis stream per execution.
type Publisher struct {
	rdb    *redis.Client
	prefix string
}

// NewPublisher connects to redisURL and verifies the connection.
func NewPublisher(ctx context.Context, redisURL, prefix string) (*Publisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewPublisherWithClient(rdb, prefix), nil
}

func NewPublisherWithClient(rdb *redis.Client, prefix string) *Publisher {
	if prefix == "" {
		prefix = DefaultStreamPrefix
	}
	return &Publisher{rdb: rdb, prefix: prefix}
}

func (p *Publisher) Name() string {
	return "redis"
}

// StreamKey is the stream that holds events for executionID.
func (p *Publisher) StreamKey(executionID string) string {
	return p.prefix + executionID
}

func (p *Publisher) Send(ctx context.Context, event execution.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	stream := p.StreamKey(event.ExecutionID)
	_, err = p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"event_type": string(event.Type),
			"data":       string(data),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", stream, err)
	}
	return nil
}

// Read returns every event stored for executionID, oldest first.
func (p *Publisher) Read(ctx context.Context, executionID string) ([]execution.Event, error) {
	msgs, err := p.rdb.XRange(ctx, p.StreamKey(executionID), "-", "+").Result()
	if err != nil {
		return nil, err
	}
	out := make([]execution.Event, 0, len(msgs))
	for _, msg := range msgs {
		raw, ok := msg.Values["data"].(string)
		if !ok {
			continue
		}
		var e execution.Event
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("decode stream entry %s: %w", msg.ID, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (p *Publisher) Close() error {
	return p.rdb.Close()
}
