package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"post-lab/domain"
	"post-lab/domain/event"

	"github.com/stretchr/testify/require"
)

func TestBus_HandlersRunInRegistrationOrder(t *testing.T) {
	req := require.New(t)
	bus := NewBus(slog.Default())

	var order []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		bus.Subscribe(event.PostCreated, func(context.Context, event.DomainEvent) error {
			order = append(order, name)
			return nil
		})
	}

	bus.Publish(context.Background(), event.Created(domain.Post{ID: 1, OwnerID: "1"}))
	req.Equal([]string{"first", "second", "third"}, order)
}

func TestBus_FailingHandlerDoesNotStopTheOthers(t *testing.T) {
	req := require.New(t)
	bus := NewBus(slog.Default())

	reached := false
	bus.Subscribe(event.PostCreated, func(context.Context, event.DomainEvent) error {
		return fmt.Errorf("subscriber is broken")
	})
	bus.Subscribe(event.PostCreated, func(context.Context, event.DomainEvent) error {
		panic("subscriber is very broken")
	})
	bus.Subscribe(event.PostCreated, func(context.Context, event.DomainEvent) error {
		reached = true
		return nil
	})

	// Publish must not panic and must not drop the last handler.
	bus.Publish(context.Background(), event.Created(domain.Post{ID: 1, OwnerID: "1"}))
	req.True(reached)
}

func TestBus_NoCrossTypeDelivery(t *testing.T) {
	req := require.New(t)
	bus := NewBus(slog.Default())

	var got []event.Type
	bus.Subscribe(event.PostDeleted, func(_ context.Context, e event.DomainEvent) error {
		got = append(got, e.Type)
		return nil
	})

	bus.Publish(context.Background(), event.Created(domain.Post{ID: 1, OwnerID: "1"}))
	bus.Publish(context.Background(), event.Updated(domain.Post{ID: 1, OwnerID: "1"}))
	req.Empty(got)

	bus.Publish(context.Background(), event.Deleted(1, "1"))
	req.Equal([]event.Type{event.PostDeleted}, got)
}
