package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/events"
)

type countingIntake struct {
	mu      sync.Mutex
	seen    []string
	running int32
	peak    int32
	delay   time.Duration
	done    chan string
}

func (c *countingIntake) Run(_ context.Context, ticketID, eventID string) (*domain.WorkflowRun, error) {
	now := atomic.AddInt32(&c.running, 1)
	for {
		peak := atomic.LoadInt32(&c.peak)
		if now <= peak || atomic.CompareAndSwapInt32(&c.peak, peak, now) {
			break
		}
	}
	time.Sleep(c.delay)
	atomic.AddInt32(&c.running, -1)

	c.mu.Lock()
	c.seen = append(c.seen, ticketID)
	c.mu.Unlock()
	c.done <- ticketID
	return &domain.WorkflowRun{Status: domain.RunStatusSucceeded}, nil
}

type recordingSignup struct {
	emails chan string
}

func (r *recordingSignup) Run(_ context.Context, email, _ string) (*domain.WorkflowRun, error) {
	r.emails <- email
	return &domain.WorkflowRun{Status: domain.RunStatusSucceeded}, nil
}

func ticketEvent(t *testing.T, id string) events.Event {
	t.Helper()
	event, err := events.NewEvent(events.EventTicketCreated, events.TicketCreatedPayload{TicketID: id})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	return event
}

func waitFor(t *testing.T, ch <-chan string, n int) []string {
	t.Helper()
	var got []string
	timeout := time.After(5 * time.Second)
	for len(got) < n {
		select {
		case v := <-ch:
			got = append(got, v)
		case <-timeout:
			t.Fatalf("timed out after %d of %d results", len(got), n)
		}
	}
	return got
}

func TestWorker_DispatcherIsBounded(t *testing.T) {
	intake := &countingIntake{delay: 20 * time.Millisecond, done: make(chan string, 10)}
	w := New(Dependencies{Intake: intake, Concurrency: 2})
	d := events.NewInMemoryDispatcher()
	w.Register(d)
	w.Start(context.Background())
	defer w.Stop()

	for _, id := range []string{"t1", "t2", "t3", "t4", "t5", "t6"} {
		if err := d.Publish(context.Background(), ticketEvent(t, id)); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	got := waitFor(t, intake.done, 6)
	if len(got) != 6 {
		t.Fatalf("expected 6 runs, got %d", len(got))
	}
	if peak := atomic.LoadInt32(&intake.peak); peak > 2 {
		t.Errorf("expected at most 2 concurrent runs, got %d", peak)
	}
}

func TestWorker_HandleRoutesSignup(t *testing.T) {
	signup := &recordingSignup{emails: make(chan string, 1)}
	w := New(Dependencies{Signup: signup})

	event, err := events.NewEvent(events.EventUserSignup, events.UserSignupPayload{AccountID: "a-1", Email: "new@example.com"})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	if err := w.Handle(context.Background(), event); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got := <-signup.emails; got != "new@example.com" {
		t.Errorf("expected new@example.com, got %q", got)
	}
}

func TestWorker_HandleUnknownType(t *testing.T) {
	w := New(Dependencies{})
	if err := w.Handle(context.Background(), events.Event{Type: "ticket/deleted"}); err == nil {
		t.Fatal("expected error for unknown event type")
	}
}

func TestWorker_EnqueueAfterStop(t *testing.T) {
	w := New(Dependencies{})
	w.Start(context.Background())
	w.Stop()
	if err := w.Enqueue(context.Background(), ticketEvent(t, "late")); err != ErrStopped {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
}

func TestWorker_EnqueueRejectsWhenFull(t *testing.T) {
	w := New(Dependencies{Concurrency: 1})
	capacity := cap(w.jobs)
	for i := 0; i < capacity; i++ {
		if err := w.Enqueue(context.Background(), ticketEvent(t, fmt.Sprintf("t%d", i))); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}

	overflow := ticketEvent(t, "overflow")
	result := make(chan error, 1)
	go func() { result <- w.Enqueue(context.Background(), overflow) }()
	select {
	case err := <-result:
		if !errors.Is(err, ErrQueueFull) {
			t.Fatalf("expected ErrQueueFull, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("expected Enqueue to return without waiting for room")
	}
}

func TestWorker_PublishDoesNotBlockOnFullQueue(t *testing.T) {
	w := New(Dependencies{Concurrency: 1})
	d := events.NewInMemoryDispatcher()
	w.Register(d)
	for i := 0; i < cap(w.jobs); i++ {
		if err := d.Publish(context.Background(), ticketEvent(t, fmt.Sprintf("t%d", i))); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}

	start := time.Now()
	err := d.Publish(context.Background(), ticketEvent(t, "overflow"))
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull from publish, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("expected publish to return promptly, took %s", elapsed)
	}
}

func TestWorker_ConsumeRedisQueue(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	q := events.NewRedisQueue(client, "test:events")
	ctx := context.Background()

	// left over from a previous process
	if err := q.Publish(ctx, ticketEvent(t, "orphan")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if _, err := q.Receive(ctx); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if err := q.Publish(ctx, ticketEvent(t, "fresh")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	intake := &countingIntake{done: make(chan string, 4)}
	w := New(Dependencies{Intake: intake, Concurrency: 2})
	runCtx, cancel := context.WithCancel(ctx)
	if err := w.Consume(runCtx, q); err != nil {
		t.Fatalf("Consume: %v", err)
	}

	got := waitFor(t, intake.done, 2)
	seen := map[string]bool{}
	for _, id := range got {
		seen[id] = true
	}
	if !seen["orphan"] || !seen["fresh"] {
		t.Errorf("expected orphan and fresh, got %v", got)
	}

	cancel()
	w.Stop()
	pending, inflight, err := q.Len(ctx)
	if err != nil {
		t.Fatalf("Len: %v", err)
	}
	if pending != 0 || inflight != 0 {
		t.Errorf("expected empty queue, got %d pending, %d in flight", pending, inflight)
	}
}
