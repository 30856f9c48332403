//go:generate go run go.uber.org/mock/mockgen -source=notifier.go -destination=../mocks/mock_notifier.go -package=mocks
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"post-lab/domain"
)

// JobTypePostCreated is the queue job type produced when a post is
// created and consumed by the notification processor.
const JobTypePostCreated = "post-created"

// NotificationPayload is the wire schema of a post-created job.
type NotificationPayload struct {
	PostID domain.PostID `json:"postId"`
	UserID string        `json:"userId"`
	Title  string        `json:"title"`
}

// ISender delivers one notification to one user. Implementations must
// respect the context deadline: the queue treats a timeout as a failed
// attempt.
type ISender interface {
	Send(ctx context.Context, userID, message string) error
}

// SimulatedSender stands in for a real notification channel. It waits
// the configured latency, then logs the delivery.
type SimulatedSender struct {
	log     *slog.Logger
	latency time.Duration
}

func NewSimulatedSender(log *slog.Logger, latency time.Duration) *SimulatedSender {
	return &SimulatedSender{log: log, latency: latency}
}

func (s *SimulatedSender) Send(ctx context.Context, userID, message string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.latency):
	}
	s.log.Info("notification sent", "user_id", userID, "message", message)
	return nil
}

// Notifier is the worker-side processor for post-created jobs.
type Notifier struct {
	sender ISender
	log    *slog.Logger
}

func NewNotifier(sender ISender, log *slog.Logger) *Notifier {
	return &Notifier{sender: sender, log: log}
}

// HandlePostCreated is the JobHandler for JobTypePostCreated. Any error
// propagates to the queue, which retries with backoff and eventually
// dead-letters; nothing here ever reaches the request that created the
// post.
func (n *Notifier) HandlePostCreated(ctx context.Context, job domain.Job) error {
	var payload NotificationPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("decode post-created payload: %w", err)
	}

	n.log.Info("processing post-created job", "job_id", job.ID, "post_id", payload.PostID)
	message := fmt.Sprintf("New post created: %s", payload.Title)
	if err := n.sender.Send(ctx, payload.UserID, message); err != nil {
		return fmt.Errorf("send notification for post %d: %w", payload.PostID, err)
	}
	return nil
}
