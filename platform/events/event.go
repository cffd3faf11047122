// Package events provides the in-process event bus that decouples the
// succession engine from its notification side effects.
package events

import (
	"context"
	"time"
)

// Event is implemented by every domain event published on the bus.
type Event interface {
	// EventName identifies the event type; subscriptions key on it.
	EventName() string
	// OccurredAt is the publication timestamp.
	OccurredAt() time.Time
}

// BaseEvent carries the timestamp shared by all events. Embed it and
// implement EventName.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent stamps a base event with the current time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}

// Handler consumes events it subscribed to. Errors are the publisher's
// concern only under PublishSync; async publication logs and drops them.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus publishes domain events to subscribed handlers.
type Bus interface {
	// Publish dispatches asynchronously; handler errors are logged, not
	// returned.
	Publish(ctx context.Context, event Event)

	// PublishSync dispatches inline and returns the first handler error.
	PublishSync(ctx context.Context, event Event) error

	// Subscribe registers a handler for the name an Event reports via
	// EventName.
	Subscribe(eventName string, handler Handler)
}
