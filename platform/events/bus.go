package events

import (
	"context"
	"sync"

	"leaddesk_backend/platform/logger"
)

// InMemoryBus is a process-local Bus implementation. Handlers registered for
// an event name are invoked in registration order; Publish runs them on a
// separate goroutine, PublishSync runs them inline and returns the first
// handler error.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	log      *logger.Logger
}

// NewInMemoryBus creates a new in-memory event bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return &InMemoryBus{
		handlers: make(map[string][]Handler),
		log:      log,
	}
}

// Subscribe registers a handler for the given event name.
func (b *InMemoryBus) Subscribe(eventName string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], handler)
}

// Publish dispatches the event asynchronously. Handler errors are logged,
// never propagated to the publisher.
func (b *InMemoryBus) Publish(ctx context.Context, event Event) {
	handlers := b.handlersFor(event.EventName())
	if len(handlers) == 0 {
		return
	}

	go func() {
		// Detached from the request context so in-flight handlers survive
		// the publishing request completing.
		for _, h := range handlers {
			if err := h.Handle(context.WithoutCancel(ctx), event); err != nil {
				b.log.Error("event handler failed", "event", event.EventName(), "error", err)
			}
		}
	}()
}

// PublishSync dispatches the event inline and returns the first handler error.
func (b *InMemoryBus) PublishSync(ctx context.Context, event Event) error {
	for _, h := range b.handlersFor(event.EventName()) {
		if err := h.Handle(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

func (b *InMemoryBus) handlersFor(eventName string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	registered := b.handlers[eventName]
	out := make([]Handler, len(registered))
	copy(out, registered)
	return out
}

var _ Bus = (*InMemoryBus)(nil)
