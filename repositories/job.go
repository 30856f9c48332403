package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"post-lab/domain"
	"post-lab/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const (
	jobPendingPrefix  = "job:pending:"
	jobInFlightPrefix = "job:inflight:"
	jobDonePrefix     = "job:done:"
	jobDeadPrefix     = "job:dead:"
)

// QueueOptions tune delivery. Defaults mirror the notification queue this
// repository was built for: three attempts, exponential backoff from one
// second.
type QueueOptions struct {
	MaxAttempts   int
	BackoffBase   time.Duration
	BackoffCap    time.Duration
	LeaseDuration time.Duration
}

func DefaultQueueOptions() QueueOptions {
	return QueueOptions{
		MaxAttempts:   3,
		BackoffBase:   time.Second,
		BackoffCap:    30 * time.Second,
		LeaseDuration: 30 * time.Second,
	}
}

// JobRepository is a durable at-least-once work queue on BadgerDB.
//
// A job lives under exactly one key at a time and moves between prefixes
// inside a single transaction:
//
//	job:pending:{nextVisibleAt}:{id}  -> waiting, visible once due
//	job:inflight:{leaseExpiry}:{id}   -> claimed by one worker
//	job:done:{id}                     -> archived after success
//	job:dead:{id}                     -> retry budget exhausted
//
// Timestamps in keys are zero-padded to 19 digits so lexicographic order
// is chronological; Claim and RequeueExpired only ever look at the front
// of their prefix.
type JobRepository struct {
	db   *badger.DB
	log  *slog.Logger
	opts QueueOptions
}

func NewJobRepository(db *badger.DB, log *slog.Logger, opts QueueOptions) *JobRepository {
	return &JobRepository{db: db, log: log, opts: opts}
}

func pendingKey(visibleAt time.Time, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("%s%019d:%s", jobPendingPrefix, visibleAt.UnixNano(), id))
}

func inFlightKey(leaseExpiry time.Time, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("%s%019d:%s", jobInFlightPrefix, leaseExpiry.UnixNano(), id))
}

// Enqueue persists a new pending job and returns its ID. It never blocks
// on workers; visibility starts immediately.
func (r *JobRepository) Enqueue(ctx context.Context, jobType string, payload []byte) (uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return uuid.Nil, err
	}
	now := time.Now().UTC()
	job := domain.Job{
		ID:            uuid.New(),
		Type:          jobType,
		Payload:       payload,
		MaxAttempts:   r.opts.MaxAttempts,
		Status:        domain.JobPending,
		EnqueuedAt:    now,
		NextVisibleAt: now,
	}
	data, err := json.Marshal(job)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal job: %w", err)
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(pendingKey(job.NextVisibleAt, job.ID), data)
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("enqueue %s: %w", jobType, err)
	}
	r.log.Debug("job enqueued", "id", job.ID, "type", jobType)
	return job.ID, nil
}

// Claim atomically takes the oldest visible pending job in flight under a
// lease. The delete+set happens in one transaction, so two workers can
// never hold the same job: the loser's commit fails on conflict and it
// simply claims nothing. Returns (nil, nil) when no job is due.
func (r *JobRepository) Claim(ctx context.Context, now time.Time) (*domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var claimed *domain.Job
	err := r.db.Update(func(txn *badger.Txn) error {
		claimed = nil
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(jobPendingPrefix)
		it.Seek(prefix)
		if !it.ValidForPrefix(prefix) {
			return nil
		}
		item := it.Item()
		key := item.KeyCopy(nil)
		var job domain.Job
		if err := item.Value(func(v []byte) error {
			return json.Unmarshal(v, &job)
		}); err != nil {
			return err
		}
		// Keys sort by visibility time, so if the head is not due yet,
		// nothing behind it is either.
		if job.NextVisibleAt.After(now) {
			return nil
		}

		job.Attempts++
		job.Status = domain.JobInFlight
		job.LeaseExpiresAt = now.Add(r.opts.LeaseDuration)

		data, err := json.Marshal(job)
		if err != nil {
			return err
		}
		if err := txn.Delete(key); err != nil {
			return err
		}
		if err := txn.Set(inFlightKey(job.LeaseExpiresAt, job.ID), data); err != nil {
			return err
		}
		claimed = &job
		return nil
	})
	if err == badger.ErrConflict {
		// Another worker won the head job. Not an error, just no claim.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim: %w", err)
	}
	return claimed, nil
}

// Ack marks a claimed job done and archives it.
func (r *JobRepository) Ack(ctx context.Context, job domain.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	job.Status = domain.JobDone
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", job.ID, err)
	}
	return r.db.Update(func(txn *badger.Txn) error {
		key := inFlightKey(job.LeaseExpiresAt, job.ID)
		if _, err := txn.Get(key); err == badger.ErrKeyNotFound {
			return fmt.Errorf("%w: %s", errors.ErrJobNotInFlight, job.ID)
		}
		if err := txn.Delete(key); err != nil {
			return err
		}
		return txn.Set([]byte(jobDonePrefix+job.ID.String()), data)
	})
}

// Fail records a failed attempt. Below the retry budget the job returns
// to pending with capped exponential backoff; at the budget it is
// dead-lettered and never delivered again automatically.
func (r *JobRepository) Fail(ctx context.Context, job domain.Job, cause error) (domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return job, err
	}
	if cause != nil {
		job.LastError = cause.Error()
	}
	now := time.Now().UTC()
	if job.Attempts >= job.MaxAttempts {
		job.Status = domain.JobDeadLettered
	} else {
		job.Status = domain.JobPending
		job.NextVisibleAt = now.Add(r.backoff(job.Attempts))
	}

	data, err := json.Marshal(job)
	if err != nil {
		return job, fmt.Errorf("marshal job %s: %w", job.ID, err)
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		key := inFlightKey(job.LeaseExpiresAt, job.ID)
		if _, err := txn.Get(key); err == badger.ErrKeyNotFound {
			return fmt.Errorf("%w: %s", errors.ErrJobNotInFlight, job.ID)
		}
		if err := txn.Delete(key); err != nil {
			return err
		}
		if job.Status == domain.JobDeadLettered {
			return txn.Set([]byte(jobDeadPrefix+job.ID.String()), data)
		}
		return txn.Set(pendingKey(job.NextVisibleAt, job.ID), data)
	})
	if err != nil {
		return job, err
	}
	if job.Status == domain.JobDeadLettered {
		r.log.Warn("job dead-lettered",
			"id", job.ID, "type", job.Type, "attempts", job.Attempts, "error", job.LastError)
	} else {
		r.log.Debug("job scheduled for retry",
			"id", job.ID, "attempts", job.Attempts, "next_visible_at", job.NextVisibleAt)
	}
	return job, nil
}

// backoff doubles per attempt from the base, capped. Attempt 1 waits the
// base, attempt 2 twice that, and so on.
func (r *JobRepository) backoff(attempts int) time.Duration {
	delay := r.opts.BackoffBase
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= r.opts.BackoffCap {
			return r.opts.BackoffCap
		}
	}
	return delay
}

// RequeueExpired sweeps in-flight jobs whose lease has lapsed back to
// pending, making them immediately visible again. This is what turns a
// worker crash into a redelivery instead of a lost job.
func (r *JobRepository) RequeueExpired(ctx context.Context, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	requeued := 0
	err := r.db.Update(func(txn *badger.Txn) error {
		requeued = 0
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(jobInFlightPrefix)
		var expired []domain.Job
		var keys [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var job domain.Job
			if err := item.Value(func(v []byte) error {
				return json.Unmarshal(v, &job)
			}); err != nil {
				return err
			}
			// Keys sort by lease expiry: the first live lease ends the sweep.
			if job.LeaseExpiresAt.After(now) {
				break
			}
			expired = append(expired, job)
			keys = append(keys, item.KeyCopy(nil))
		}
		for i, job := range expired {
			if err := txn.Delete(keys[i]); err != nil {
				return err
			}
			job.Status = domain.JobPending
			job.NextVisibleAt = now
			job.LeaseExpiresAt = time.Time{}
			data, err := json.Marshal(job)
			if err != nil {
				return err
			}
			if err := txn.Set(pendingKey(job.NextVisibleAt, job.ID), data); err != nil {
				return err
			}
			requeued++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("requeue expired: %w", err)
	}
	if requeued > 0 {
		r.log.Info("requeued expired leases", "count", requeued)
	}
	return requeued, nil
}

// DeadLetters lists terminally failed jobs for inspection and alerting.
func (r *JobRepository) DeadLetters(ctx context.Context) ([]domain.Job, error) {
	return r.scan(ctx, jobDeadPrefix)
}

// DoneJobs lists archived successful jobs.
func (r *JobRepository) DoneJobs(ctx context.Context) ([]domain.Job, error) {
	return r.scan(ctx, jobDonePrefix)
}

func (r *JobRepository) scan(ctx context.Context, prefix string) ([]domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var jobs []domain.Job
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			var job domain.Job
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &job)
			}); err != nil {
				return err
			}
			jobs = append(jobs, job)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", prefix, err)
	}
	return jobs, nil
}
