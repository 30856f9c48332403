package workers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"post-lab/contract"
	"post-lab/domain"
	"post-lab/errors"
)

// Handlers maps a job type to its processing function. Registration
// happens at startup, before any worker runs, so reads are unguarded.
type Handlers map[string]contract.JobHandler

// QueueWorker drains the durable job queue. Several instances run under
// the supervisor; the repository's atomic claim guarantees each job is
// held by at most one of them at a time. Each handler invocation gets
// its own timeout, and a timeout counts as a failed attempt like any
// other handler error.
type QueueWorker struct {
	repo           contract.IJobRepository
	handlers       Handlers
	log            *slog.Logger
	pollInterval   time.Duration
	handlerTimeout time.Duration
}

func NewQueueWorker(
	repo contract.IJobRepository,
	handlers Handlers,
	log *slog.Logger,
	pollInterval time.Duration,
	handlerTimeout time.Duration) *QueueWorker {
	return &QueueWorker{
		repo:           repo,
		handlers:       handlers,
		log:            log,
		pollInterval:   pollInterval,
		handlerTimeout: handlerTimeout,
	}
}

func (w *QueueWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

// drain claims and processes jobs until the queue has nothing visible.
func (w *QueueWorker) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := w.repo.Claim(ctx, time.Now().UTC())
		if err != nil {
			w.log.Error("claim failed", "error", err)
			return
		}
		if job == nil {
			return
		}
		w.process(ctx, *job)
	}
}

func (w *QueueWorker) process(ctx context.Context, job domain.Job) {
	handlerCtx, cancel := context.WithTimeout(ctx, w.handlerTimeout)
	defer cancel()

	err := w.invoke(handlerCtx, job)
	if err == nil {
		if ackErr := w.repo.Ack(ctx, job); ackErr != nil {
			w.log.Error("ack failed", "id", job.ID, "error", ackErr)
		}
		w.log.Info("job processed", "id", job.ID, "type", job.Type, "attempts", job.Attempts)
		return
	}

	w.log.Warn("job attempt failed",
		"id", job.ID, "type", job.Type, "attempts", job.Attempts, "error", err)
	if _, failErr := w.repo.Fail(ctx, job, err); failErr != nil {
		// The lease sweeper will make the job visible again once the
		// lease lapses, so a failed bookkeeping write loses nothing.
		w.log.Error("fail bookkeeping failed", "id", job.ID, "error", failErr)
	}
}

// invoke runs the handler for the job's type, converting a panic into a
// failed attempt instead of killing the worker.
func (w *QueueWorker) invoke(ctx context.Context, job domain.Job) (err error) {
	handler, ok := w.handlers[job.Type]
	if !ok {
		return fmt.Errorf("%w: %q", errors.ErrNoHandler, job.Type)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errors.ErrWorkerPanic, r)
		}
	}()
	return handler(ctx, job)
}

// LeaseSweeper periodically requeues in-flight jobs whose lease expired,
// typically because a worker died mid-processing. This is the half of
// at-least-once delivery that the workers themselves cannot provide.
type LeaseSweeper struct {
	repo     contract.IJobRepository
	log      *slog.Logger
	interval time.Duration
}

func NewLeaseSweeper(repo contract.IJobRepository, log *slog.Logger, interval time.Duration) *LeaseSweeper {
	return &LeaseSweeper{repo: repo, log: log, interval: interval}
}

func (s *LeaseSweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.repo.RequeueExpired(ctx, time.Now().UTC()); err != nil {
				s.log.Error("lease sweep failed", "error", err)
			}
		}
	}
}
