package domain

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobPending      JobStatus = "pending"
	JobInFlight     JobStatus = "inflight"
	JobDone         JobStatus = "done"
	JobDeadLettered JobStatus = "dead_lettered"
)

// Job is a unit of asynchronous work. Once enqueued it belongs to the
// queue; the producer keeps no reference. Delivery is at-least-once:
// a worker crash mid-processing makes the job visible again after its
// lease expires.
type Job struct {
	ID             uuid.UUID
	Type           string
	Payload        []byte
	Attempts       int
	MaxAttempts    int
	Status         JobStatus
	EnqueuedAt     time.Time
	NextVisibleAt  time.Time
	LeaseExpiresAt time.Time
	LastError      string
}
