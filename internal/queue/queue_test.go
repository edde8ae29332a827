package queue

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staticwaves/podforge/internal/domain"
)

// engineFunc adapts a function to the Engine interface for tests.
type engineFunc func(ctx context.Context, job *domain.Job) (*domain.JobResult, error)

func (f engineFunc) Execute(ctx context.Context, job *domain.Job) (*domain.JobResult, error) {
	return f(ctx, job)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RetryDelay = 5 * time.Millisecond
	return cfg
}

func waitJob(t *testing.T, ch <-chan uuid.UUID) uuid.UUID {
	t.Helper()
	select {
	case id := <-ch:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for job event")
		return uuid.Nil
	}
}

func addJob(t *testing.T, q *JobQueue, opts AddOptions) uuid.UUID {
	t.Helper()
	id, err := q.AddJob(json.RawMessage(`{"productTypes":["mug"]}`), opts)
	require.NoError(t, err)
	return id
}

func TestJobQueueDispatchesByPriority(t *testing.T) {
	var mu sync.Mutex
	var order []uuid.UUID
	done := make(chan uuid.UUID, 8)

	engine := engineFunc(func(_ context.Context, job *domain.Job) (*domain.JobResult, error) {
		mu.Lock()
		order = append(order, job.ID)
		mu.Unlock()
		done <- job.ID
		return &domain.JobResult{}, nil
	})

	cfg := testConfig()
	cfg.MaxConcurrent = 1
	q := NewJobQueue(engine, cfg, testLogger())

	// Enqueue before starting the drain loop so ordering is decided by
	// the buffer, not by arrival timing.
	id1 := addJob(t, q, AddOptions{Priority: 1})
	id5a := addJob(t, q, AddOptions{Priority: 5})
	id3 := addJob(t, q, AddOptions{Priority: 3})
	id5b := addJob(t, q, AddOptions{Priority: 5})
	id2 := addJob(t, q, AddOptions{Priority: 2})

	q.Start()
	defer func() { _ = q.Shutdown(context.Background()) }()

	for i := 0; i < 5; i++ {
		waitJob(t, done)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []uuid.UUID{id5a, id5b, id3, id2, id1}, order,
		"highest priority first, FIFO among equal priorities")
}

func TestJobQueueRetryThenSuccess(t *testing.T) {
	var attempts atomic.Int32
	engine := engineFunc(func(_ context.Context, _ *domain.Job) (*domain.JobResult, error) {
		if attempts.Add(1) == 1 {
			return nil, errors.New("transient upstream error")
		}
		return &domain.JobResult{Output: json.RawMessage(`{"ok":true}`)}, nil
	})

	q := NewJobQueue(engine, testConfig(), testLogger())

	retried := make(chan uuid.UUID, 4)
	completed := make(chan uuid.UUID, 4)
	q.AddObserver(ObserverFuncs{
		Retrying:  func(job *domain.Job, _ error) { retried <- job.ID },
		Completed: func(job *domain.Job, _ *domain.JobResult) { completed <- job.ID },
	})
	q.Start()
	defer func() { _ = q.Shutdown(context.Background()) }()

	id := addJob(t, q, AddOptions{Priority: 7, MaxRetries: 3})

	assert.Equal(t, id, waitJob(t, retried))
	assert.Equal(t, id, waitJob(t, completed))
	assert.Equal(t, int32(2), attempts.Load())

	status, ok := q.GetJobStatus(id)
	require.True(t, ok)
	assert.Equal(t, domain.JobStatusCompleted, status)

	result, ok := q.Result(id)
	require.True(t, ok)
	assert.True(t, result.Success)
	assert.Equal(t, id, result.JobID)
	assert.JSONEq(t, `{"ok":true}`, string(result.Output))
}

func TestJobQueueRetriesExhausted(t *testing.T) {
	engine := engineFunc(func(_ context.Context, _ *domain.Job) (*domain.JobResult, error) {
		return nil, errors.New("permanent failure")
	})

	q := NewJobQueue(engine, testConfig(), testLogger())

	retried := make(chan uuid.UUID, 4)
	failed := make(chan uuid.UUID, 4)
	var failedJob *domain.Job
	q.AddObserver(ObserverFuncs{
		Retrying: func(job *domain.Job, _ error) { retried <- job.ID },
		Failed: func(job *domain.Job, _ error) {
			failedJob = job
			failed <- job.ID
		},
	})
	q.Start()
	defer func() { _ = q.Shutdown(context.Background()) }()

	id := addJob(t, q, AddOptions{MaxRetries: 1})

	assert.Equal(t, id, waitJob(t, retried))
	assert.Equal(t, id, waitJob(t, failed))

	status, ok := q.GetJobStatus(id)
	require.True(t, ok)
	assert.Equal(t, domain.JobStatusFailed, status)

	require.NotNil(t, failedJob)
	assert.Equal(t, 1, failedJob.RetryCount)
	assert.Equal(t, "permanent failure", failedJob.LastError)

	// Terminal jobs never re-enter the pending buffer.
	stats := q.GetStats()
	assert.Equal(t, 0, stats.Queued)
	assert.Equal(t, 1, stats.Failed)
}

func TestJobQueueNegativeMaxRetriesUsesDefault(t *testing.T) {
	engine := engineFunc(func(_ context.Context, _ *domain.Job) (*domain.JobResult, error) {
		return nil, errors.New("boom")
	})

	cfg := testConfig()
	cfg.MaxRetries = 2
	q := NewJobQueue(engine, cfg, testLogger())

	failed := make(chan uuid.UUID, 1)
	var retries atomic.Int32
	q.AddObserver(ObserverFuncs{
		Retrying: func(_ *domain.Job, _ error) { retries.Add(1) },
		Failed:   func(job *domain.Job, _ error) { failed <- job.ID },
	})
	q.Start()
	defer func() { _ = q.Shutdown(context.Background()) }()

	id := addJob(t, q, AddOptions{MaxRetries: -1})

	assert.Equal(t, id, waitJob(t, failed))
	assert.Equal(t, int32(2), retries.Load())
}

func TestJobQueueTimeout(t *testing.T) {
	engine := engineFunc(func(ctx context.Context, _ *domain.Job) (*domain.JobResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	cfg := testConfig()
	cfg.JobTimeout = 20 * time.Millisecond
	cfg.AutoRetry = false
	q := NewJobQueue(engine, cfg, testLogger())

	failed := make(chan uuid.UUID, 1)
	var gotErr error
	q.AddObserver(ObserverFuncs{
		Failed: func(job *domain.Job, err error) {
			gotErr = err
			failed <- job.ID
		},
	})
	q.Start()
	defer func() { _ = q.Shutdown(context.Background()) }()

	id := addJob(t, q, AddOptions{})

	assert.Equal(t, id, waitJob(t, failed))
	assert.ErrorIs(t, gotErr, domain.ErrJobTimeout)
}

func TestJobQueueEnginePanicBecomesFailure(t *testing.T) {
	engine := engineFunc(func(_ context.Context, _ *domain.Job) (*domain.JobResult, error) {
		panic("nil map write")
	})

	cfg := testConfig()
	cfg.AutoRetry = false
	q := NewJobQueue(engine, cfg, testLogger())

	failed := make(chan uuid.UUID, 1)
	var gotErr error
	q.AddObserver(ObserverFuncs{
		Failed: func(job *domain.Job, err error) {
			gotErr = err
			failed <- job.ID
		},
	})
	q.Start()
	defer func() { _ = q.Shutdown(context.Background()) }()

	id := addJob(t, q, AddOptions{})

	assert.Equal(t, id, waitJob(t, failed))
	require.Error(t, gotErr)
	assert.Contains(t, gotErr.Error(), "engine panic")
}

func TestJobQueueConcurrencyCeiling(t *testing.T) {
	const limit = 2
	var current, peak atomic.Int32

	engine := engineFunc(func(_ context.Context, _ *domain.Job) (*domain.JobResult, error) {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		current.Add(-1)
		return &domain.JobResult{}, nil
	})

	cfg := testConfig()
	cfg.MaxConcurrent = limit
	q := NewJobQueue(engine, cfg, testLogger())

	completed := make(chan uuid.UUID, 8)
	q.AddObserver(ObserverFuncs{
		Completed: func(job *domain.Job, _ *domain.JobResult) { completed <- job.ID },
	})
	q.Start()
	defer func() { _ = q.Shutdown(context.Background()) }()

	for i := 0; i < 6; i++ {
		addJob(t, q, AddOptions{Priority: i})
	}
	for i := 0; i < 6; i++ {
		waitJob(t, completed)
	}

	assert.LessOrEqual(t, peak.Load(), int32(limit))
}

func TestJobQueueCancelPendingOnly(t *testing.T) {
	engine := engineFunc(func(_ context.Context, _ *domain.Job) (*domain.JobResult, error) {
		return &domain.JobResult{}, nil
	})

	q := NewJobQueue(engine, testConfig(), testLogger())
	// Not started: jobs stay pending.
	id := addJob(t, q, AddOptions{})

	assert.True(t, q.CancelJob(id))
	assert.False(t, q.CancelJob(id), "cancel is not idempotent on unknown ids")

	_, ok := q.GetJobStatus(id)
	assert.False(t, ok)

	// A completed job cannot be cancelled.
	completed := make(chan uuid.UUID, 1)
	q.AddObserver(ObserverFuncs{
		Completed: func(job *domain.Job, _ *domain.JobResult) { completed <- job.ID },
	})
	q.Start()
	defer func() { _ = q.Shutdown(context.Background()) }()

	done := addJob(t, q, AddOptions{})
	assert.Equal(t, done, waitJob(t, completed))
	assert.False(t, q.CancelJob(done))
}

func TestJobQueueShutdownResolvesRetrying(t *testing.T) {
	engine := engineFunc(func(_ context.Context, _ *domain.Job) (*domain.JobResult, error) {
		return nil, errors.New("flaky")
	})

	cfg := testConfig()
	cfg.RetryDelay = time.Minute // retry must still be pending at shutdown
	q := NewJobQueue(engine, cfg, testLogger())

	retried := make(chan uuid.UUID, 1)
	q.AddObserver(ObserverFuncs{
		Retrying: func(job *domain.Job, _ error) { retried <- job.ID },
	})
	q.Start()

	id := addJob(t, q, AddOptions{MaxRetries: 3})
	assert.Equal(t, id, waitJob(t, retried))

	require.NoError(t, q.Shutdown(context.Background()))

	status, ok := q.GetJobStatus(id)
	require.True(t, ok)
	assert.Equal(t, domain.JobStatusFailed, status)

	_, err := q.AddJob(json.RawMessage(`{"productTypes":["mug"]}`), AddOptions{})
	assert.ErrorIs(t, err, domain.ErrQueueShutdown)

	// Shutdown is idempotent.
	assert.NoError(t, q.Shutdown(context.Background()))
}

func TestJobQueueShutdownGraceExpires(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	engine := engineFunc(func(_ context.Context, _ *domain.Job) (*domain.JobResult, error) {
		started <- struct{}{}
		<-release
		return &domain.JobResult{}, nil
	})

	cfg := testConfig()
	cfg.JobTimeout = time.Minute
	q := NewJobQueue(engine, cfg, testLogger())
	q.Start()

	addJob(t, q, AddOptions{})
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("engine never received the job")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
}

func TestJobQueueStats(t *testing.T) {
	engine := engineFunc(func(_ context.Context, _ *domain.Job) (*domain.JobResult, error) {
		return &domain.JobResult{}, nil
	})

	cfg := testConfig()
	cfg.MaxConcurrent = 4
	q := NewJobQueue(engine, cfg, testLogger())

	addJob(t, q, AddOptions{Priority: 1})
	addJob(t, q, AddOptions{Priority: 2})

	stats := q.GetStats()
	assert.Equal(t, 2, stats.Queued)
	assert.Equal(t, 0, stats.Processing)
	assert.Equal(t, 4, stats.MaxWorkers)
	assert.Equal(t, 2, q.Depth())

	completed := make(chan uuid.UUID, 2)
	q.AddObserver(ObserverFuncs{
		Completed: func(job *domain.Job, _ *domain.JobResult) { completed <- job.ID },
	})
	q.Start()
	defer func() { _ = q.Shutdown(context.Background()) }()

	waitJob(t, completed)
	waitJob(t, completed)

	stats = q.GetStats()
	assert.Equal(t, 0, stats.Queued)
	assert.Equal(t, 2, stats.Completed)
	assert.Equal(t, 0, q.Depth())
}
