package workers

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"post-lab/domain"
	"post-lab/errors"
	"post-lab/repositories"
)

func newQueueFixture(t *testing.T, opts repositories.QueueOptions) *repositories.JobRepository {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return repositories.NewJobRepository(db, slog.New(slog.NewTextHandler(io.Discard, nil)), opts)
}

func fastOptions() repositories.QueueOptions {
	return repositories.QueueOptions{
		MaxAttempts:   3,
		BackoffBase:   time.Millisecond,
		BackoffCap:    5 * time.Millisecond,
		LeaseDuration: 30 * time.Second,
	}
}

func newWorker(repo *repositories.JobRepository, handlers Handlers) *QueueWorker {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewQueueWorker(repo, handlers, log, time.Millisecond, time.Second)
}

func TestQueueWorker_DrainsEveryPendingJob(t *testing.T) {
	req := require.New(t)
	repo := newQueueFixture(t, fastOptions())
	ctx := context.Background()

	var mu sync.Mutex
	var seen []string
	handlers := Handlers{
		"post-created": func(_ context.Context, job domain.Job) error {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, string(job.Payload))
			return nil
		},
	}

	for _, payload := range []string{"a", "b", "c"} {
		_, err := repo.Enqueue(ctx, "post-created", []byte(payload))
		req.NoError(err)
	}

	newWorker(repo, handlers).drain(ctx)

	req.ElementsMatch([]string{"a", "b", "c"}, seen)
	done, err := repo.DoneJobs(ctx)
	req.NoError(err)
	req.Len(done, 3)
}

func TestQueueWorker_RetriesThenDeadLetters(t *testing.T) {
	req := require.New(t)
	repo := newQueueFixture(t, fastOptions())
	ctx := context.Background()

	calls := 0
	handlers := Handlers{
		"post-created": func(context.Context, domain.Job) error {
			calls++
			return stderrors.New("smtp unavailable")
		},
	}
	worker := newWorker(repo, handlers)

	_, err := repo.Enqueue(ctx, "post-created", []byte(`{}`))
	req.NoError(err)

	// Each drain sees at most the attempts currently visible; the retry
	// backoff keeps the job hidden for a moment in between.
	deadline := time.Now().Add(5 * time.Second)
	for calls < 3 && time.Now().Before(deadline) {
		worker.drain(ctx)
		time.Sleep(10 * time.Millisecond)
	}
	req.Equal(3, calls)

	dead, err := repo.DeadLetters(ctx)
	req.NoError(err)
	req.Len(dead, 1)
	req.Equal(domain.JobDeadLettered, dead[0].Status)
	req.Equal(3, dead[0].Attempts)
	req.Contains(dead[0].LastError, "smtp unavailable")

	// Nothing left to deliver.
	job, err := repo.Claim(ctx, time.Now().UTC())
	req.NoError(err)
	req.Nil(job)
}

func TestQueueWorker_RecoversAfterTransientFailure(t *testing.T) {
	req := require.New(t)
	repo := newQueueFixture(t, fastOptions())
	ctx := context.Background()

	calls := 0
	handlers := Handlers{
		"post-created": func(context.Context, domain.Job) error {
			calls++
			if calls == 1 {
				return stderrors.New("transient")
			}
			return nil
		},
	}
	worker := newWorker(repo, handlers)

	_, err := repo.Enqueue(ctx, "post-created", []byte(`{}`))
	req.NoError(err)

	deadline := time.Now().Add(5 * time.Second)
	for calls < 2 && time.Now().Before(deadline) {
		worker.drain(ctx)
		time.Sleep(10 * time.Millisecond)
	}
	req.Equal(2, calls)

	done, err := repo.DoneJobs(ctx)
	req.NoError(err)
	req.Len(done, 1)
	req.Equal(2, done[0].Attempts)
}

func TestQueueWorker_UnknownTypeIsAFailedAttempt(t *testing.T) {
	req := require.New(t)
	repo := newQueueFixture(t, repositories.QueueOptions{
		MaxAttempts:   1,
		BackoffBase:   time.Millisecond,
		BackoffCap:    time.Millisecond,
		LeaseDuration: 30 * time.Second,
	})
	ctx := context.Background()

	_, err := repo.Enqueue(ctx, "unknown-type", []byte(`{}`))
	req.NoError(err)

	newWorker(repo, Handlers{}).drain(ctx)

	dead, err := repo.DeadLetters(ctx)
	req.NoError(err)
	req.Len(dead, 1)
	req.Contains(dead[0].LastError, errors.ErrNoHandler.Error())
}

func TestQueueWorker_PanickingHandlerDoesNotKillTheWorker(t *testing.T) {
	req := require.New(t)
	repo := newQueueFixture(t, repositories.QueueOptions{
		MaxAttempts:   1,
		BackoffBase:   time.Millisecond,
		BackoffCap:    time.Millisecond,
		LeaseDuration: 30 * time.Second,
	})
	ctx := context.Background()

	handled := false
	handlers := Handlers{
		"explosive": func(context.Context, domain.Job) error {
			panic("kaboom")
		},
		"post-created": func(context.Context, domain.Job) error {
			handled = true
			return nil
		},
	}
	worker := newWorker(repo, handlers)

	_, err := repo.Enqueue(ctx, "explosive", []byte(`{}`))
	req.NoError(err)
	_, err = repo.Enqueue(ctx, "post-created", []byte(`{}`))
	req.NoError(err)

	req.NotPanics(func() { worker.drain(ctx) })

	req.True(handled)
	dead, err := repo.DeadLetters(ctx)
	req.NoError(err)
	req.Len(dead, 1)
	req.Contains(dead[0].LastError, errors.ErrWorkerPanic.Error())
}

func TestQueueWorker_HandlerTimeoutCountsAsFailure(t *testing.T) {
	req := require.New(t)
	repo := newQueueFixture(t, repositories.QueueOptions{
		MaxAttempts:   1,
		BackoffBase:   time.Millisecond,
		BackoffCap:    time.Millisecond,
		LeaseDuration: 30 * time.Second,
	})
	ctx := context.Background()

	handlers := Handlers{
		"post-created": func(handlerCtx context.Context, _ domain.Job) error {
			<-handlerCtx.Done()
			return handlerCtx.Err()
		},
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	worker := NewQueueWorker(repo, handlers, log, time.Millisecond, 10*time.Millisecond)

	_, err := repo.Enqueue(ctx, "post-created", []byte(`{}`))
	req.NoError(err)

	worker.drain(ctx)

	dead, err := repo.DeadLetters(ctx)
	req.NoError(err)
	req.Len(dead, 1)
	req.Contains(dead[0].LastError, context.DeadlineExceeded.Error())
}

func TestQueueWorker_RunStopsOnContextCancel(t *testing.T) {
	req := require.New(t)
	repo := newQueueFixture(t, fastOptions())
	worker := newWorker(repo, Handlers{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		req.NoError(err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
}

func TestLeaseSweeper_RequeuesOrphanedJobs(t *testing.T) {
	req := require.New(t)
	repo := newQueueFixture(t, repositories.QueueOptions{
		MaxAttempts:   3,
		BackoffBase:   time.Millisecond,
		BackoffCap:    time.Millisecond,
		LeaseDuration: 20 * time.Millisecond,
	})
	ctx := context.Background()

	_, err := repo.Enqueue(ctx, "post-created", []byte(`{}`))
	req.NoError(err)

	// Claim and then never ack, as a crashed worker would.
	orphan, err := repo.Claim(ctx, time.Now().UTC())
	req.NoError(err)
	req.NotNil(orphan)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sweeper := NewLeaseSweeper(repo, log, 5*time.Millisecond)
	sweepCtx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sweeper.Run(sweepCtx) }()

	var reclaimed *domain.Job
	deadline := time.Now().Add(5 * time.Second)
	for reclaimed == nil && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
		reclaimed, err = repo.Claim(ctx, time.Now().UTC())
		req.NoError(err)
	}
	cancel()
	req.NoError(<-done)

	req.NotNil(reclaimed)
	req.Equal(orphan.ID, reclaimed.ID)
	req.Equal(2, reclaimed.Attempts)
}
