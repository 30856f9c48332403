package sink

import (
	"context"
	"log/slog"

	"post-lab/contract"
	"post-lab/domain/event"
)

// BroadcastSink pushes every domain event to connected clients through
// the gateway. Gateway sends never block, so a room full of slow
// clients cannot delay the write that produced the event.
type BroadcastSink struct {
	gateway contract.IBroadcaster
	log     *slog.Logger
}

func NewBroadcastSink(gateway contract.IBroadcaster, log *slog.Logger) *BroadcastSink {
	return &BroadcastSink{gateway: gateway, log: log}
}

// Handle is subscribed to all three post event types. The event type
// doubles as the client-facing event name.
func (s *BroadcastSink) Handle(_ context.Context, e event.DomainEvent) error {
	s.gateway.BroadcastAll(string(e.Type), e.Payload)
	s.log.Debug("event broadcast", "type", e.Type, "post_id", e.PostID)
	return nil
}
