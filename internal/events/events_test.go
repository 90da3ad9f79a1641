package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestQueue(t *testing.T) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	q := NewRedisQueue(client, "test:events")
	q.poll = 50 * time.Millisecond
	return q, mr
}

func mustEvent(t *testing.T, ticketID string) Event {
	t.Helper()
	event, err := NewEvent(EventTicketCreated, TicketCreatedPayload{TicketID: ticketID})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	return event
}

func TestNewEventDecode(t *testing.T) {
	event := mustEvent(t, "t-1")
	if event.ID == "" || event.Type != EventTicketCreated {
		t.Fatalf("unexpected envelope %+v", event)
	}
	var payload TicketCreatedPayload
	if err := event.Decode(&payload); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if payload.TicketID != "t-1" {
		t.Errorf("expected t-1, got %q", payload.TicketID)
	}
}

func TestInMemoryDispatcher(t *testing.T) {
	d := NewInMemoryDispatcher()
	var got []string
	d.Subscribe(EventTicketCreated, func(_ context.Context, e Event) error {
		got = append(got, "first")
		return errors.New("first failed")
	})
	d.Subscribe(EventTicketCreated, func(_ context.Context, e Event) error {
		got = append(got, "second")
		return nil
	})
	d.Subscribe(EventUserSignup, func(_ context.Context, e Event) error {
		got = append(got, "signup")
		return nil
	})

	err := d.Publish(context.Background(), mustEvent(t, "t-1"))
	if err == nil {
		t.Fatal("expected handler error to be returned")
	}
	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Errorf("expected both ticket handlers to run, got %v", got)
	}
}

func TestInMemoryDispatcher_NoSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()
	if err := d.Publish(context.Background(), mustEvent(t, "t-1")); !errors.Is(err, ErrNoSubscribers) {
		t.Errorf("expected ErrNoSubscribers, got %v", err)
	}
}

func TestInMemoryDispatcher_RecoversPanic(t *testing.T) {
	d := NewInMemoryDispatcher()
	ran := false
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error { panic("boom") })
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		ran = true
		return nil
	})

	if err := d.Publish(context.Background(), mustEvent(t, "t-1")); err == nil {
		t.Error("expected panic to surface as an error")
	}
	if !ran {
		t.Error("expected later handler to run after a panic")
	}
}

func TestRedisQueue_FIFOAndAck(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		if err := q.Publish(ctx, mustEvent(t, id)); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	first, err := q.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	var payload TicketCreatedPayload
	_ = first.Event.Decode(&payload)
	if payload.TicketID != "a" {
		t.Errorf("expected a first, got %q", payload.TicketID)
	}

	pending, inflight, err := q.Len(ctx)
	if err != nil {
		t.Fatalf("Len: %v", err)
	}
	if pending != 1 || inflight != 1 {
		t.Errorf("expected 1 pending and 1 in flight, got %d/%d", pending, inflight)
	}

	if err := q.Ack(ctx, first); err != nil {
		t.Fatalf("Ack: %v", err)
	}
	_, inflight, _ = q.Len(ctx)
	if inflight != 0 {
		t.Errorf("expected nothing in flight after ack, got %d", inflight)
	}
}

func TestRedisQueue_ReceiveEmpty(t *testing.T) {
	q, _ := newTestQueue(t)
	_, err := q.Receive(context.Background())
	if !errors.Is(err, ErrNoDelivery) {
		t.Fatalf("expected ErrNoDelivery, got %v", err)
	}
}

func TestRedisQueue_RecoverRedelivers(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	if err := q.Publish(ctx, mustEvent(t, "crashed")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	taken, err := q.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	// consumer dies without acking

	moved, err := q.Recover(ctx)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if moved != 1 {
		t.Errorf("expected 1 recovered entry, got %d", moved)
	}
	again, err := q.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive after recover: %v", err)
	}
	if again.Event.ID != taken.Event.ID {
		t.Errorf("expected redelivery of %s, got %s", taken.Event.ID, again.Event.ID)
	}
}

func TestRedisQueue_DropsUndecodableEntry(t *testing.T) {
	q, mr := newTestQueue(t)
	if _, err := mr.Lpush("test:events", "not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := q.Receive(context.Background()); err == nil {
		t.Fatal("expected decode error")
	}
	if mr.Exists("test:events:inflight") {
		items, _ := mr.List("test:events:inflight")
		if len(items) != 0 {
			t.Errorf("expected poison entry to be dropped, got %v", items)
		}
	}
}
