package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// EventHandler handles a published event.
type EventHandler func(context.Context, Event) error

// Publisher emits events. Services depend on this alone so that the
// in-process dispatcher and the Redis queue are interchangeable.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Dispatcher is a Publisher that delivers to in-process subscribers.
type Dispatcher interface {
	Publisher
	Subscribe(eventType EventType, handler EventHandler)
}

// ErrNoSubscribers is returned when an event type has no handler; the
// event is dropped.
var ErrNoSubscribers = errors.New("no subscribers for event")

type inMemoryDispatcher struct {
	mu       sync.RWMutex
	handlers map[EventType][]EventHandler
}

// NewInMemoryDispatcher returns a dispatcher that calls handlers on the
// publishing goroutine. Delivery is at most once.
func NewInMemoryDispatcher() Dispatcher {
	return &inMemoryDispatcher{handlers: make(map[EventType][]EventHandler)}
}

// Publish runs every handler for event.Type, including after an earlier
// one fails or panics, and joins their errors.
func (d *inMemoryDispatcher) Publish(ctx context.Context, event Event) error {
	d.mu.RLock()
	handlers := append([]EventHandler(nil), d.handlers[event.Type]...)
	d.mu.RUnlock()

	if len(handlers) == 0 {
		return fmt.Errorf("%w: %s", ErrNoSubscribers, event.Type)
	}
	var errs []error
	for _, handler := range handlers {
		if err := safeCall(ctx, handler, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *inMemoryDispatcher) Subscribe(eventType EventType, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], handler)
}

func safeCall(ctx context.Context, handler EventHandler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic for %s %s: %v", event.Type, event.ID, r)
		}
	}()
	return handler(ctx, event)
}
