package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/staticwaves/podforge/internal/domain"
)

// Engine is the external collaborator a JobQueue invokes to perform
// one job. Implementations must return an error rather than panic;
// the queue converts panics and timeouts into job failures either way.
type Engine interface {
	Execute(ctx context.Context, job *domain.Job) (*domain.JobResult, error)
}

// Config holds configuration for a JobQueue.
type Config struct {
	// MaxConcurrent limits how many jobs may be in flight at once.
	MaxConcurrent int

	// JobTimeout is the hard wall-clock limit per dispatched job.
	JobTimeout time.Duration

	// RetryDelay is the fixed wait before a failed job is re-enqueued.
	RetryDelay time.Duration

	// AutoRetry enables retrying failed jobs up to their MaxRetries.
	AutoRetry bool

	// MaxRetries is the per-job default when AddOptions does not set one.
	MaxRetries int
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent: 3,
		JobTimeout:    2 * time.Minute,
		RetryDelay:    5 * time.Second,
		AutoRetry:     true,
		MaxRetries:    3,
	}
}

// AddOptions carries per-job overrides for AddJob.
type AddOptions struct {
	// Priority orders dispatch; higher dispatches first.
	Priority int

	// MaxRetries overrides the queue default when >= 0.
	MaxRetries int
}

// Stats is a point-in-time snapshot of queue state.
type Stats struct {
	Queued        int `json:"queued"`
	Processing    int `json:"processing"`
	Completed     int `json:"completed"`
	Failed        int `json:"failed"`
	ActiveWorkers int `json:"active_workers"`
	MaxWorkers    int `json:"max_workers"`
}

// JobQueue owns the job lifecycle: add, dispatch through the Engine
// under a timeout, retry transient failures with a fixed delay, and
// record terminal results. The drain loop is event-driven: it wakes on
// enqueue and on slot-free, and dispatches in priority order while
// capacity remains.
type JobQueue struct {
	engine Engine
	cfg    Config
	logger *slog.Logger

	mu          sync.Mutex
	buffer      *PriorityBuffer
	processing  map[uuid.UUID]*domain.Job
	retrying    map[uuid.UUID]*domain.Job
	completed   map[uuid.UUID]*domain.JobResult
	failed      map[uuid.UUID]*domain.Job
	retryTimers map[uuid.UUID]*time.Timer
	observers   []Observer
	active      int
	shutdown    bool

	wake     chan struct{}
	stop     chan struct{}
	loopDone chan struct{}
	inflight sync.WaitGroup
}

// NewJobQueue creates a JobQueue over the given engine. Call Start
// before adding jobs.
func NewJobQueue(engine Engine, cfg Config, logger *slog.Logger) *JobQueue {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = DefaultConfig().JobTimeout
	}
	return &JobQueue{
		engine:      engine,
		cfg:         cfg,
		logger:      logger,
		buffer:      NewPriorityBuffer(),
		processing:  make(map[uuid.UUID]*domain.Job),
		retrying:    make(map[uuid.UUID]*domain.Job),
		completed:   make(map[uuid.UUID]*domain.JobResult),
		failed:      make(map[uuid.UUID]*domain.Job),
		retryTimers: make(map[uuid.UUID]*time.Timer),
		wake:        make(chan struct{}, 1),
		stop:        make(chan struct{}),
		loopDone:    make(chan struct{}),
	}
}

// Start launches the drain loop.
func (q *JobQueue) Start() {
	go q.drainLoop()
}

// AddObserver registers an observer for job lifecycle notifications.
func (q *JobQueue) AddObserver(obs Observer) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.observers = append(q.observers, obs)
}

// AddJob constructs a Job from the request payload, enqueues it, and
// wakes the drain loop. The caller is responsible for validating the
// request shape beforehand.
func (q *JobQueue) AddJob(request json.RawMessage, opts AddOptions) (uuid.UUID, error) {
	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = q.cfg.MaxRetries
	}

	job, err := domain.NewJob(request, opts.Priority, maxRetries)
	if err != nil {
		return uuid.Nil, err
	}

	q.mu.Lock()
	if q.shutdown {
		q.mu.Unlock()
		return uuid.Nil, domain.ErrQueueShutdown
	}
	q.buffer.Enqueue(job)
	q.mu.Unlock()

	q.logger.Debug("job enqueued",
		"job_id", job.ID,
		"priority", job.Priority,
		"max_retries", job.MaxRetries)

	q.signalWake()
	return job.ID, nil
}

// Enqueue inserts an existing job, preserving its id, priority, and
// retry bookkeeping. Used when migrating jobs between queues.
func (q *JobQueue) Enqueue(job *domain.Job) error {
	q.mu.Lock()
	if q.shutdown {
		q.mu.Unlock()
		return domain.ErrQueueShutdown
	}
	q.buffer.Enqueue(job)
	q.mu.Unlock()

	q.signalWake()
	return nil
}

// DrainPending removes and returns every job still waiting in the
// pending buffer, in dequeue order. In-flight and retrying jobs are
// unaffected.
func (q *JobQueue) DrainPending() []*domain.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	jobs := q.buffer.Snapshot()
	q.buffer.Clear()
	return jobs
}

// GetJobStatus derives the job's status from which collection holds
// its id. The second return value is false when the id is unknown.
func (q *JobQueue) GetJobStatus(id uuid.UUID) (domain.JobStatus, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	switch {
	case q.buffer.Contains(id):
		return domain.JobStatusQueued, true
	case q.processing[id] != nil:
		return domain.JobStatusProcessing, true
	case q.retrying[id] != nil:
		return domain.JobStatusRetrying, true
	case q.completed[id] != nil:
		return domain.JobStatusCompleted, true
	case q.failed[id] != nil:
		return domain.JobStatusFailed, true
	}
	return domain.JobStatusUnknown, false
}

// Result returns the stored JobResult for a completed job.
func (q *JobQueue) Result(id uuid.UUID) (*domain.JobResult, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	res, ok := q.completed[id]
	return res, ok
}

// CancelJob removes a job that is still waiting in the pending buffer.
// It returns false for jobs already dispatched, retrying, finished, or
// unknown; in those cases nothing is mutated.
func (q *JobQueue) CancelJob(id uuid.UUID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.buffer.Remove(id)
}

// Depth returns the number of jobs that are queued, retrying, or in
// flight. The worker pool uses this for least-loaded routing.
func (q *JobQueue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.buffer.Size() + len(q.processing) + len(q.retrying)
}

// GetStats returns a snapshot of queue counters.
func (q *JobQueue) GetStats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Queued:        q.buffer.Size() + len(q.retrying),
		Processing:    len(q.processing),
		Completed:     len(q.completed),
		Failed:        len(q.failed),
		ActiveWorkers: q.active,
		MaxWorkers:    q.cfg.MaxConcurrent,
	}
}

// Shutdown stops dispatching and waits for in-flight jobs until the
// context expires. Jobs still waiting on a retry timer are moved to
// failed. If the grace period elapses with jobs in flight, Shutdown
// force-returns with the context error after logging a warning.
func (q *JobQueue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if q.shutdown {
		q.mu.Unlock()
		return nil
	}
	q.shutdown = true
	for id, t := range q.retryTimers {
		t.Stop()
		delete(q.retryTimers, id)
	}
	for id, job := range q.retrying {
		job.LastError = domain.ErrQueueShutdown.Error()
		q.failed[id] = job
		delete(q.retrying, id)
	}
	q.mu.Unlock()

	close(q.stop)
	<-q.loopDone

	done := make(chan struct{})
	go func() {
		q.inflight.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		q.mu.Lock()
		remaining := len(q.processing)
		q.mu.Unlock()
		q.logger.Warn("shutdown grace period elapsed with jobs still in flight",
			"in_flight", remaining)
		err = ctx.Err()
	}

	q.mu.Lock()
	q.observers = nil
	q.mu.Unlock()

	return err
}

// drainLoop dispatches buffered jobs whenever a wake signal arrives,
// until the queue is stopped.
func (q *JobQueue) drainLoop() {
	defer close(q.loopDone)
	for {
		select {
		case <-q.stop:
			return
		case <-q.wake:
		}
		q.dispatchReady()
	}
}

// dispatchReady moves jobs from the buffer into flight while capacity
// remains. Invariant: active never exceeds MaxConcurrent.
func (q *JobQueue) dispatchReady() {
	for {
		q.mu.Lock()
		if q.shutdown || q.active >= q.cfg.MaxConcurrent {
			q.mu.Unlock()
			return
		}
		job := q.buffer.Dequeue()
		if job == nil {
			q.mu.Unlock()
			return
		}
		q.processing[job.ID] = job
		q.active++
		q.inflight.Add(1)
		q.mu.Unlock()

		go q.dispatch(job)
	}
}

// dispatch runs one job through the engine and routes the outcome.
func (q *JobQueue) dispatch(job *domain.Job) {
	defer q.inflight.Done()

	q.logger.Debug("dispatching job", "job_id", job.ID, "attempt", job.RetryCount+1)

	start := time.Now()
	result, err := q.execute(job)
	elapsed := time.Since(start)

	if err != nil {
		q.handleFailure(job, err)
	} else {
		if result == nil {
			result = &domain.JobResult{JobID: job.ID, Success: true}
		}
		result.Duration = elapsed
		q.handleSuccess(job, result)
	}

	q.signalWake()
}

// execute invokes the engine under the hard per-job timeout. The
// engine runs in its own goroutine so a timeout fires even if the
// engine ignores context cancellation. Panics become failures.
func (q *JobQueue) execute(job *domain.Job) (*domain.JobResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), q.cfg.JobTimeout)
	defer cancel()

	type outcome struct {
		result *domain.JobResult
		err    error
	}
	ch := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("engine panic: %v", r)}
			}
		}()
		res, err := q.engine.Execute(ctx, job)
		ch <- outcome{result: res, err: err}
	}()

	select {
	case out := <-ch:
		return out.result, out.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w after %s", domain.ErrJobTimeout, q.cfg.JobTimeout)
	}
}

// handleSuccess stores the result and moves the job to completed.
func (q *JobQueue) handleSuccess(job *domain.Job, result *domain.JobResult) {
	result.JobID = job.ID
	result.Success = true

	q.mu.Lock()
	delete(q.processing, job.ID)
	q.active--
	q.completed[job.ID] = result
	observers := q.snapshotObservers()
	q.mu.Unlock()

	q.logger.Info("job completed",
		"job_id", job.ID,
		"duration", result.Duration,
		"attempts", job.RetryCount+1)

	for _, obs := range observers {
		obs.JobCompleted(job, result)
	}
}

// handleFailure retries the job at its original priority after the
// fixed delay, or moves it to failed once the retry budget is spent.
// Timeouts are treated identically to execution errors.
func (q *JobQueue) handleFailure(job *domain.Job, err error) {
	q.mu.Lock()
	delete(q.processing, job.ID)
	q.active--
	job.LastError = err.Error()

	retry := q.cfg.AutoRetry && !job.RetriesExhausted() && !q.shutdown
	if retry {
		job.RetryCount++
		q.retrying[job.ID] = job
		q.retryTimers[job.ID] = time.AfterFunc(q.cfg.RetryDelay, func() {
			q.requeue(job)
		})
	} else {
		q.failed[job.ID] = job
	}
	observers := q.snapshotObservers()
	q.mu.Unlock()

	if retry {
		q.logger.Warn("job failed, scheduling retry",
			"job_id", job.ID,
			"retry_count", job.RetryCount,
			"max_retries", job.MaxRetries,
			"error", err)
		for _, obs := range observers {
			obs.JobRetrying(job, err)
		}
		return
	}

	q.logger.Error("job failed terminally",
		"job_id", job.ID,
		"attempts", job.RetryCount+1,
		"error", err)
	for _, obs := range observers {
		obs.JobFailed(job, err)
	}
}

// requeue returns a retrying job to the pending buffer at its original
// priority once the retry delay has elapsed.
func (q *JobQueue) requeue(job *domain.Job) {
	q.mu.Lock()
	if _, ok := q.retrying[job.ID]; !ok {
		// Shutdown already resolved this job.
		q.mu.Unlock()
		return
	}
	delete(q.retrying, job.ID)
	delete(q.retryTimers, job.ID)
	if q.shutdown {
		q.failed[job.ID] = job
		q.mu.Unlock()
		return
	}
	q.buffer.Enqueue(job)
	q.mu.Unlock()

	q.signalWake()
}

func (q *JobQueue) snapshotObservers() []Observer {
	out := make([]Observer, len(q.observers))
	copy(out, q.observers)
	return out
}

// signalWake nudges the drain loop without blocking. The channel has
// capacity one, so a pending wake coalesces with later ones.
func (q *JobQueue) signalWake() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
