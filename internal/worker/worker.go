package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/staticwaves/podforge/internal/domain"
	"github.com/staticwaves/podforge/internal/queue"
)

// Engine extends the queue's execution contract with the lifecycle
// hooks a worker needs: startup, shutdown, and a health self-report.
type Engine interface {
	queue.Engine

	// Start initializes the engine. A returned error marks the worker
	// as failed to start.
	Start(ctx context.Context) error

	// Stop releases engine resources.
	Stop(ctx context.Context) error

	// Healthy reports whether the engine considers itself operational.
	Healthy() bool
}

// ErrWorkerStartup wraps engine initialization failures.
var ErrWorkerStartup = errors.New("worker startup failed")

// Worker is one unit of horizontal scale: an Engine instance plus its
// own JobQueue. The pool owns worker lifecycle; the worker owns its
// queue and engine.
type Worker struct {
	id     string
	index  int
	engine Engine
	logger *slog.Logger

	queueCfg  queue.Config
	observers []queue.Observer

	mu        sync.Mutex
	queue     *queue.JobQueue
	status    domain.WorkerStatus
	restarts  int
	startedAt time.Time
	lastError string

	// carried holds pending jobs drained from the previous queue
	// during a restart, waiting for the fresh queue to come up.
	carried []*domain.Job

	// onRuntimeFailure is invoked when the engine reports a runtime
	// failure during job execution. Set by the owning pool.
	onRuntimeFailure func(w *Worker, err error)
}

func newWorker(index int, engine Engine, queueCfg queue.Config, observers []queue.Observer, logger *slog.Logger) *Worker {
	id := fmt.Sprintf("worker-%s", uuid.NewString()[:8])
	return &Worker{
		id:        id,
		index:     index,
		engine:    engine,
		queueCfg:  queueCfg,
		observers: observers,
		status:    domain.WorkerStatusStopped,
		logger:    logger.With("worker_id", id, "worker_index", index),
	}
}

// ID returns the worker's stable identifier. It survives restarts.
func (w *Worker) ID() string { return w.id }

// Index returns the worker's pool slot index.
func (w *Worker) Index() int { return w.index }

// Start initializes the engine and brings up a fresh job queue.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	w.status = domain.WorkerStatusStarting
	w.mu.Unlock()

	if err := w.engine.Start(ctx); err != nil {
		w.mu.Lock()
		w.status = domain.WorkerStatusError
		w.lastError = err.Error()
		w.mu.Unlock()
		w.logger.Error("engine failed to start", "error", err)
		return fmt.Errorf("%w: %v", ErrWorkerStartup, err)
	}

	q := queue.NewJobQueue(w.engine, w.queueCfg, w.logger)
	for _, obs := range w.observers {
		q.AddObserver(obs)
	}
	// Engine runtime failures surface as job failures; the pool's
	// supervisor reacts to them, not the job retry path.
	q.AddObserver(queue.ObserverFuncs{
		Failed: func(_ *domain.Job, err error) {
			if errors.Is(err, domain.ErrEngineFailure) {
				w.reportRuntimeFailure(err)
			}
		},
	})
	q.Start()

	w.mu.Lock()
	w.queue = q
	w.status = domain.WorkerStatusRunning
	w.startedAt = time.Now().UTC()
	w.lastError = ""
	carried := w.carried
	w.carried = nil
	w.mu.Unlock()

	// Jobs accepted before a restart go back on the fresh queue.
	for _, job := range carried {
		if err := q.Enqueue(job); err != nil {
			w.logger.Error("failed to requeue job after restart",
				"job_id", job.ID, "error", err)
		}
	}

	w.logger.Info("worker started")
	return nil
}

// Stop gracefully shuts down the queue and then the engine.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if w.status == domain.WorkerStatusStopped {
		w.mu.Unlock()
		return nil
	}
	w.status = domain.WorkerStatusStopping
	q := w.queue
	w.mu.Unlock()

	var firstErr error
	if q != nil {
		if err := q.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if err := w.engine.Stop(ctx); err != nil && firstErr == nil {
		firstErr = err
	}

	w.mu.Lock()
	w.status = domain.WorkerStatusStopped
	w.mu.Unlock()

	w.logger.Info("worker stopped")
	return firstErr
}

// Submit adds a job to this worker's queue.
func (w *Worker) Submit(request json.RawMessage, opts queue.AddOptions) (uuid.UUID, error) {
	w.mu.Lock()
	q := w.queue
	status := w.status
	w.mu.Unlock()

	if status != domain.WorkerStatusRunning || q == nil {
		return uuid.Nil, fmt.Errorf("worker %s is %s: %w", w.id, status, domain.ErrNoRunningWorkers)
	}
	return q.AddJob(request, opts)
}

// Enqueue places an existing job on this worker's queue, preserving
// its id, priority, and retry bookkeeping. The pool uses this to
// migrate unstarted jobs away from workers being scaled down.
func (w *Worker) Enqueue(job *domain.Job) error {
	w.mu.Lock()
	q := w.queue
	w.mu.Unlock()

	if q == nil {
		return fmt.Errorf("worker %s has no queue: %w", w.id, domain.ErrNoRunningWorkers)
	}
	return q.Enqueue(job)
}

// restart swaps in a fresh engine and starts the worker again,
// counting the restart against the pool's bounded budget. Jobs that
// were accepted but not yet dispatched are drained before the old
// queue shuts down and re-enqueued once the new one is running; if
// the start attempt fails they stay carried for the next attempt.
func (w *Worker) restart(ctx context.Context, engine Engine) error {
	if q := w.Queue(); q != nil {
		if pending := q.DrainPending(); len(pending) > 0 {
			w.mu.Lock()
			w.carried = append(w.carried, pending...)
			w.mu.Unlock()
		}
	}

	if err := w.Stop(ctx); err != nil {
		w.logger.Warn("stop before restart did not complete cleanly", "error", err)
	}

	w.mu.Lock()
	w.engine = engine
	w.restarts++
	w.mu.Unlock()

	return w.Start(ctx)
}

// Queue returns the worker's current job queue, or nil before the
// first successful start.
func (w *Worker) Queue() *queue.JobQueue {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.queue
}

// Depth returns the live queue depth (queued + retrying + in flight).
func (w *Worker) Depth() int {
	w.mu.Lock()
	q := w.queue
	w.mu.Unlock()
	if q == nil {
		return 0
	}
	return q.Depth()
}

// Healthy reports whether the worker is running and its engine
// self-reports healthy.
func (w *Worker) Healthy() bool {
	w.mu.Lock()
	status := w.status
	w.mu.Unlock()
	return status == domain.WorkerStatusRunning && w.engine.Healthy()
}

// Status returns the worker's current lifecycle state.
func (w *Worker) Status() domain.WorkerStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// Info returns a point-in-time snapshot for the registry.
func (w *Worker) Info() domain.WorkerInfo {
	w.mu.Lock()
	defer w.mu.Unlock()
	return domain.WorkerInfo{
		ID:        w.id,
		Index:     w.index,
		Status:    w.status,
		Restarts:  w.restarts,
		StartedAt: w.startedAt,
		LastError: w.lastError,
	}
}

// Stats returns the underlying queue counters, or zeroes before the
// first start.
func (w *Worker) Stats() queue.Stats {
	w.mu.Lock()
	q := w.queue
	w.mu.Unlock()
	if q == nil {
		return queue.Stats{}
	}
	return q.GetStats()
}

// reportRuntimeFailure marks the worker as errored and hands it to the
// pool's restart supervisor.
func (w *Worker) reportRuntimeFailure(err error) {
	w.mu.Lock()
	if w.status != domain.WorkerStatusRunning {
		w.mu.Unlock()
		return
	}
	w.status = domain.WorkerStatusError
	w.lastError = err.Error()
	notify := w.onRuntimeFailure
	w.mu.Unlock()

	w.logger.Error("engine runtime failure", "error", err)
	if notify != nil {
		notify(w, err)
	}
}
