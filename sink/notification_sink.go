package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"post-lab/contract"
	"post-lab/domain/event"
	"post-lab/errors"
	"post-lab/services"
)

// NotificationSink reacts to PostCreated by handing a notification job
// to the durable queue. The handoff is the whole job: delivery, retries
// and dead-lettering all happen on the worker side, far from the write
// path that published the event.
type NotificationSink struct {
	queue contract.IJobQueue
	log   *slog.Logger
}

func NewNotificationSink(queue contract.IJobQueue, log *slog.Logger) *NotificationSink {
	return &NotificationSink{queue: queue, log: log}
}

// Handle is subscribed to event.PostCreated. An enqueue failure is
// returned for the bus to log; it never reaches the writer.
func (s *NotificationSink) Handle(ctx context.Context, e event.DomainEvent) error {
	payload, ok := e.Payload.(event.PostPayload)
	if !ok {
		return fmt.Errorf("%w: %T", errors.ErrInvalidPayload, e.Payload)
	}

	body, err := json.Marshal(services.NotificationPayload{
		PostID: payload.Post.ID,
		UserID: payload.Post.OwnerID,
		Title:  payload.Post.Title,
	})
	if err != nil {
		return fmt.Errorf("encode notification payload: %w", err)
	}

	jobID, err := s.queue.Enqueue(ctx, services.JobTypePostCreated, body)
	if err != nil {
		return fmt.Errorf("enqueue notification for post %d: %w", e.PostID, err)
	}
	s.log.Debug("notification job enqueued", "post_id", e.PostID, "job_id", jobID)
	return nil
}
