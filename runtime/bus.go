package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"post-lab/contract"
	"post-lab/domain/event"
	"post-lab/errors"
)

// Bus is the in-process domain event bus. Publish runs every handler
// registered for the event's type, in registration order, on the
// caller's goroutine. Handler failures and panics are contained here:
// they are logged and never reach the publisher or the next handler.
//
// The bus holds nothing durable. Events published with no subscriber
// are gone; that is the contract.
type Bus struct {
	mu       sync.RWMutex
	handlers map[event.Type][]contract.EventHandler
	log      *slog.Logger
}

func NewBus(log *slog.Logger) *Bus {
	return &Bus{
		handlers: make(map[event.Type][]contract.EventHandler),
		log:      log,
	}
}

// Subscribe registers a handler for one event type. Registration is
// expected at startup, before the first Publish.
func (b *Bus) Subscribe(t event.Type, handler contract.EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], handler)
}

func (b *Bus) Publish(ctx context.Context, e event.DomainEvent) {
	b.mu.RLock()
	handlers := b.handlers[e.Type]
	b.mu.RUnlock()

	for i, handler := range handlers {
		if err := b.invoke(ctx, handler, e); err != nil {
			b.log.Error("event handler failed",
				"type", e.Type, "post_id", e.PostID, "handler_index", i, "error", err)
		}
	}
}

// invoke shields the publish loop from a panicking handler.
func (b *Bus) invoke(ctx context.Context, handler contract.EventHandler, e event.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errors.ErrWorkerPanic, r)
		}
	}()
	return handler(ctx, e)
}
