// Package worker runs workflows for queued events on a bounded pool.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/events"
)

var (
	// ErrStopped is returned by Enqueue after Stop.
	ErrStopped = errors.New("worker stopped")
	// ErrQueueFull is returned by Enqueue when the buffer has no room. The
	// event is dropped; `ticketctl intake` can replay a ticket by hand.
	ErrQueueFull = errors.New("worker queue full")
)

// IntakeRunner runs the ticket intake workflow.
type IntakeRunner interface {
	Run(ctx context.Context, ticketID, eventID string) (*domain.WorkflowRun, error)
}

// SignupRunner runs the signup workflow.
type SignupRunner interface {
	Run(ctx context.Context, email, eventID string) (*domain.WorkflowRun, error)
}

// Queue is a durable event source.
type Queue interface {
	Receive(ctx context.Context) (*events.Delivery, error)
	Ack(ctx context.Context, d *events.Delivery) error
	Recover(ctx context.Context) (int, error)
}

// Dependencies bundles the worker's collaborators.
type Dependencies struct {
	Intake      IntakeRunner
	Signup      SignupRunner
	Logger      *zap.Logger
	Concurrency int
}

// Worker routes events to workflows. At most Concurrency runs are in
// progress at once; runs for different tickets proceed in parallel.
type Worker struct {
	intake IntakeRunner
	signup SignupRunner
	logger *zap.Logger
	size   int

	jobs     chan events.Event
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopped  chan struct{}
}

// New builds a worker. Call Start or Consume to begin processing.
func New(deps Dependencies) *Worker {
	size := deps.Concurrency
	if size < 1 {
		size = 1
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		intake:  deps.Intake,
		signup:  deps.Signup,
		logger:  logger,
		size:    size,
		jobs:    make(chan events.Event, size*16),
		stopped: make(chan struct{}),
	}
}

// Handle runs the workflow for event and waits for it to finish.
func (w *Worker) Handle(ctx context.Context, event events.Event) error {
	switch event.Type {
	case events.EventTicketCreated:
		var payload events.TicketCreatedPayload
		if err := event.Decode(&payload); err != nil {
			return err
		}
		if w.intake == nil {
			return fmt.Errorf("no handler for %s", event.Type)
		}
		_, err := w.intake.Run(ctx, payload.TicketID, event.ID)
		return err
	case events.EventUserSignup:
		var payload events.UserSignupPayload
		if err := event.Decode(&payload); err != nil {
			return err
		}
		if w.signup == nil {
			return fmt.Errorf("no handler for %s", event.Type)
		}
		_, err := w.signup.Run(ctx, payload.Email, event.ID)
		return err
	default:
		return fmt.Errorf("unknown event type %q", event.Type)
	}
}

// Register subscribes the worker to d so that publishing only enqueues.
func (w *Worker) Register(d events.Dispatcher) {
	d.Subscribe(events.EventTicketCreated, w.Enqueue)
	d.Subscribe(events.EventUserSignup, w.Enqueue)
}

// Enqueue hands event to the pool started by Start. It never blocks the
// publisher: a full buffer rejects the event with ErrQueueFull.
func (w *Worker) Enqueue(ctx context.Context, event events.Event) error {
	select {
	case <-w.stopped:
		return ErrStopped
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case w.jobs <- event:
		return nil
	default:
		return fmt.Errorf("%w: %s %s", ErrQueueFull, event.Type, event.ID)
	}
}

// Start launches the pool that drains Enqueue. Runs use ctx, so cancelling
// it only affects steps that honour cancellation.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.size; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			for {
				select {
				case <-w.stopped:
					return
				case event := <-w.jobs:
					w.process(ctx, event)
				}
			}
		}()
	}
}

// Consume puts back entries a previous process left in flight, then pulls
// from q on the pool until ctx ends.
func (w *Worker) Consume(ctx context.Context, q Queue) error {
	moved, err := q.Recover(ctx)
	if err != nil {
		return fmt.Errorf("recover in-flight events: %w", err)
	}
	if moved > 0 {
		w.logger.Info("requeued in-flight events", zap.Int("count", moved))
	}

	for i := 0; i < w.size; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.consumeLoop(ctx, q)
		}()
	}
	return nil
}

func (w *Worker) consumeLoop(ctx context.Context, q Queue) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopped:
			return
		default:
		}

		delivery, err := q.Receive(ctx)
		if errors.Is(err, events.ErrNoDelivery) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("receive event", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-w.stopped:
				return
			case <-time.After(time.Second):
			}
			continue
		}

		// runs are not cancelled mid-flight; a shutdown waits for them
		w.process(context.WithoutCancel(ctx), delivery.Event)
		if err := q.Ack(context.WithoutCancel(ctx), delivery); err != nil {
			w.logger.Error("ack event", zap.String("event_id", delivery.Event.ID), zap.Error(err))
		}
	}
}

func (w *Worker) process(ctx context.Context, event events.Event) {
	logger := w.logger.With(zap.String("event_id", event.ID), zap.String("event_type", string(event.Type)))
	if err := w.Handle(ctx, event); err != nil {
		logger.Warn("event processing failed", zap.Error(err))
		return
	}
	logger.Debug("event processed")
}

// Stop signals the pool to exit and waits for runs in progress.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopped) })
	w.wg.Wait()
}
