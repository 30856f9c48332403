//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"time"

	"post-lab/domain"
	"post-lab/domain/event"

	"github.com/google/uuid"
)

// IPostRepository is the source of truth for posts. Save assigns the ID
// on first insert.
type IPostRepository interface {
	Save(ctx context.Context, post *domain.Post) error
	Get(ctx context.Context, id domain.PostID) (domain.Post, error)
	All(ctx context.Context) ([]domain.Post, error)
	Delete(ctx context.Context, id domain.PostID) error
}

// ICache holds advisory copies, never the authoritative record.
// Get returns ok=false on miss; a non-nil error means the backend is
// unreachable, which callers must treat as a miss.
type ICache interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// EventHandler reacts to one domain event. It runs synchronously on the
// publisher's goroutine, so anything slow must be handed off.
type EventHandler func(ctx context.Context, e event.DomainEvent) error

// IEventBus is in-process and synchronous. Handlers run in registration
// order; a failing handler is logged and never stops the others.
type IEventBus interface {
	Subscribe(t event.Type, handler EventHandler)
	Publish(ctx context.Context, e event.DomainEvent)
}

// IJobQueue is the producer side of the queue. Enqueue returns as soon
// as the job is durably pending.
type IJobQueue interface {
	Enqueue(ctx context.Context, jobType string, payload []byte) (uuid.UUID, error)
}

// IJobRepository is the worker side. Claim atomically moves the next
// visible pending job in flight under a lease; only one worker can hold
// a given job's lease at a time.
type IJobRepository interface {
	Claim(ctx context.Context, now time.Time) (*domain.Job, error)
	Ack(ctx context.Context, job domain.Job) error
	Fail(ctx context.Context, job domain.Job, cause error) (domain.Job, error)
	RequeueExpired(ctx context.Context, now time.Time) (int, error)
	DeadLetters(ctx context.Context) ([]domain.Job, error)
}

// JobHandler processes one claimed job. An error (or panic, or timeout)
// counts as a failed attempt.
type JobHandler func(ctx context.Context, job domain.Job) error

// OutboundMessage is what a connected client receives.
type OutboundMessage struct {
	Event   string
	Payload any
}

// ClientSink is one client's delivery channel. Send must never block;
// it reports whether the message was accepted.
type ClientSink interface {
	Send(msg OutboundMessage) bool
}

// RoomAck is returned to the client for join/leave requests.
type RoomAck struct {
	Success bool   `json:"success"`
	Room    string `json:"room"`
}

// IBroadcaster pushes live updates to connected clients. Best effort:
// no delivery guarantee, no buffering for disconnected clients.
type IBroadcaster interface {
	OnConnect(connectionID string, sink ClientSink)
	OnDisconnect(connectionID string)
	Join(connectionID, room string) RoomAck
	Leave(connectionID, room string) RoomAck
	BroadcastAll(eventName string, payload any)
	BroadcastRoom(room, eventName string, payload any)
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself; the supervisor does.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker,
// avoiding manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
