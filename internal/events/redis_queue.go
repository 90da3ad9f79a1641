package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoDelivery is returned by Receive when nothing arrived before the
// poll timeout.
var ErrNoDelivery = errors.New("no delivery")

// Delivery is an event taken from the queue. It stays on the in-flight list
// until acknowledged.
type Delivery struct {
	Event Event
	raw   string
}

// RedisQueue is an at-least-once queue on two Redis lists. Receive moves an
// entry from the pending list to the in-flight list; Ack removes it. Entries
// left in flight by a crashed consumer are put back by Recover.
type RedisQueue struct {
	client   *redis.Client
	pending  string
	inflight string
	poll     time.Duration
}

// NewRedisQueue uses key for pending entries and key+":inflight" for
// entries being processed.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	return &RedisQueue{
		client:   client,
		pending:  key,
		inflight: key + ":inflight",
		poll:     time.Second,
	}
}

// Publish implements Publisher.
func (q *RedisQueue) Publish(ctx context.Context, event Event) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return q.client.LPush(ctx, q.pending, raw).Err()
}

// Receive blocks for up to the poll interval waiting for an entry.
func (q *RedisQueue) Receive(ctx context.Context) (*Delivery, error) {
	raw, err := q.client.BRPopLPush(ctx, q.pending, q.inflight, q.poll).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoDelivery
	}
	if err != nil {
		return nil, err
	}

	var event Event
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		// a poison entry would be redelivered forever; drop it
		_ = q.client.LRem(ctx, q.inflight, 1, raw).Err()
		return nil, fmt.Errorf("decode queued event: %w", err)
	}
	return &Delivery{Event: event, raw: raw}, nil
}

// Ack removes a processed delivery from the in-flight list.
func (q *RedisQueue) Ack(ctx context.Context, d *Delivery) error {
	return q.client.LRem(ctx, q.inflight, 1, d.raw).Err()
}

// Recover moves every in-flight entry back to the pending list and returns
// how many were moved. Call it before consumers start.
func (q *RedisQueue) Recover(ctx context.Context) (int, error) {
	moved := 0
	for {
		err := q.client.RPopLPush(ctx, q.inflight, q.pending).Err()
		if errors.Is(err, redis.Nil) {
			return moved, nil
		}
		if err != nil {
			return moved, err
		}
		moved++
	}
}

// Len reports pending and in-flight counts.
func (q *RedisQueue) Len(ctx context.Context) (pending, inflight int64, err error) {
	pending, err = q.client.LLen(ctx, q.pending).Result()
	if err != nil {
		return 0, 0, err
	}
	inflight, err = q.client.LLen(ctx, q.inflight).Result()
	return pending, inflight, err
}
