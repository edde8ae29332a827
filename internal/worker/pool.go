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
	"golang.org/x/sync/errgroup"

	"github.com/staticwaves/podforge/internal/domain"
	"github.com/staticwaves/podforge/internal/queue"
)

// Errors returned by the pool.
var (
	ErrPoolStopped        = errors.New("worker pool is stopped")
	ErrInvalidWorkerCount = errors.New("worker count must be at least 1")
)

// EngineFactory builds the Engine for a given pool slot. The pool
// calls it on start, scale-up, and every restart, so a crashed engine
// is always replaced by a fresh instance.
type EngineFactory func(index int) (Engine, error)

// Config holds configuration for the worker pool.
type Config struct {
	// WorkerCount is the initial number of workers.
	WorkerCount int

	// AutoRestart enables the bounded restart supervisor.
	AutoRestart bool

	// MaxRestarts caps automatic restarts per worker.
	MaxRestarts int

	// RestartDelay is the fixed wait before an automatic restart.
	RestartDelay time.Duration

	// ShutdownGrace bounds how long a stopping worker may wait for
	// in-flight jobs.
	ShutdownGrace time.Duration

	// Queue configures each worker's job queue.
	Queue queue.Config
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		WorkerCount:   2,
		AutoRestart:   true,
		MaxRestarts:   3,
		RestartDelay:  5 * time.Second,
		ShutdownGrace: 30 * time.Second,
		Queue:         queue.DefaultConfig(),
	}
}

// WorkerStats pairs a worker snapshot with its queue counters.
type WorkerStats struct {
	domain.WorkerInfo
	Queue queue.Stats `json:"queue"`
}

// PoolStats aggregates pool-wide totals plus a per-worker breakdown.
type PoolStats struct {
	Submitted int64         `json:"submitted"`
	Completed int           `json:"completed"`
	Failed    int           `json:"failed"`
	Workers   []WorkerStats `json:"workers"`
}

// Pool supervises a set of Workers: it starts and stops them,
// load-balances submissions, restarts failed workers within a bounded
// budget, and supports live scaling.
type Pool struct {
	factory EngineFactory
	cfg     Config
	logger  *slog.Logger

	// observers are attached to every worker queue at start time.
	observers []queue.Observer

	// onWorkerFailure is notified whenever a worker fails and enters
	// the restart supervisor. Wired to the alerting layer.
	onWorkerFailure func(info domain.WorkerInfo, cause error)

	// scaleMu serializes start/stop/scale/restart so concurrent scale
	// operations cannot interleave and lose jobs.
	scaleMu sync.Mutex

	mu        sync.Mutex
	workers   []*Worker
	rr        int
	submitted int64
	stopped   bool
}

// NewPool creates a Pool. Call Start to launch workers.
func NewPool(factory EngineFactory, cfg Config, logger *slog.Logger) *Pool {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	if cfg.MaxRestarts <= 0 {
		cfg.MaxRestarts = 3
	}
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = 5 * time.Second
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 30 * time.Second
	}
	return &Pool{
		factory: factory,
		cfg:     cfg,
		logger:  logger,
	}
}

// AddObserver registers a queue observer that will be attached to
// every worker queue. Must be called before Start.
func (p *Pool) AddObserver(obs queue.Observer) {
	p.observers = append(p.observers, obs)
}

// NotifyWorkerFailure registers a callback invoked whenever a worker
// fails at startup or runtime and is handed to the restart supervisor.
// Must be called before Start.
func (p *Pool) NotifyWorkerFailure(fn func(info domain.WorkerInfo, cause error)) {
	p.onWorkerFailure = fn
}

// Start launches the configured number of workers in parallel. A
// worker that fails to start is marked errored and handed to the
// restart supervisor; Start itself fails only if an engine cannot be
// constructed at all.
func (p *Pool) Start(ctx context.Context) error {
	p.scaleMu.Lock()
	defer p.scaleMu.Unlock()

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrPoolStopped
	}
	p.mu.Unlock()

	workers := make([]*Worker, 0, p.cfg.WorkerCount)
	for i := 0; i < p.cfg.WorkerCount; i++ {
		w, err := p.newSlot(i)
		if err != nil {
			return err
		}
		workers = append(workers, w)
	}

	p.mu.Lock()
	p.workers = workers
	p.mu.Unlock()

	p.startWorkers(ctx, workers)

	p.logger.Info("worker pool started", "worker_count", len(workers))
	return nil
}

// Stop gracefully stops every worker and clears the registry.
func (p *Pool) Stop(ctx context.Context) error {
	p.scaleMu.Lock()
	defer p.scaleMu.Unlock()

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	workers := p.workers
	p.workers = nil
	p.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range workers {
		g.Go(func() error {
			return w.Stop(gctx)
		})
	}
	err := g.Wait()

	p.logger.Info("worker pool stopped", "worker_count", len(workers))
	return err
}

// SubmitJob routes a job round-robin across running workers.
func (p *Pool) SubmitJob(request json.RawMessage, opts queue.AddOptions) (uuid.UUID, error) {
	p.mu.Lock()
	running := p.runningLocked()
	if len(running) == 0 {
		p.mu.Unlock()
		return uuid.Nil, domain.ErrNoRunningWorkers
	}
	w := running[p.rr%len(running)]
	p.rr++
	p.mu.Unlock()

	id, err := w.Submit(request, opts)
	if err != nil {
		return uuid.Nil, err
	}

	p.mu.Lock()
	p.submitted++
	p.mu.Unlock()
	return id, nil
}

// SubmitJobToLeastLoaded routes a job to the running worker with the
// smallest live queue depth, breaking ties by registry order. This is
// the preferred entry point under uneven load.
func (p *Pool) SubmitJobToLeastLoaded(request json.RawMessage, opts queue.AddOptions) (uuid.UUID, error) {
	p.mu.Lock()
	running := p.runningLocked()
	p.mu.Unlock()

	best := leastLoaded(running)
	if best == nil {
		return uuid.Nil, domain.ErrNoRunningWorkers
	}

	id, err := best.Submit(request, opts)
	if err != nil {
		return uuid.Nil, err
	}

	p.mu.Lock()
	p.submitted++
	p.mu.Unlock()
	return id, nil
}

// EnqueueJob places a fully built job on the least-loaded running
// worker. The submission path uses this so a job is persisted under
// its final id before the queue can emit any lifecycle event for it.
func (p *Pool) EnqueueJob(job *domain.Job) error {
	p.mu.Lock()
	running := p.runningLocked()
	p.mu.Unlock()

	best := leastLoaded(running)
	if best == nil {
		return domain.ErrNoRunningWorkers
	}
	if err := best.Enqueue(job); err != nil {
		return err
	}

	p.mu.Lock()
	p.submitted++
	p.mu.Unlock()
	return nil
}

// RestartWorker stops and restarts the worker with the given id on the
// same slot index, with a fresh engine.
func (p *Pool) RestartWorker(ctx context.Context, id string) error {
	p.scaleMu.Lock()
	defer p.scaleMu.Unlock()

	w := p.findByID(id)
	if w == nil {
		return fmt.Errorf("worker %q: %w", id, domain.ErrWorkerNotFound)
	}

	engine, err := p.factory(w.Index())
	if err != nil {
		return fmt.Errorf("building engine for worker %q: %w", id, err)
	}
	return w.restart(ctx, engine)
}

// Scale adjusts the pool to exactly n workers. Growth starts the new
// workers in parallel; shrinking gracefully stops the highest-indexed
// workers after migrating their unstarted jobs to surviving workers,
// so a concurrent submission is never silently dropped.
func (p *Pool) Scale(ctx context.Context, n int) error {
	if n < 1 {
		return ErrInvalidWorkerCount
	}

	p.scaleMu.Lock()
	defer p.scaleMu.Unlock()

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrPoolStopped
	}
	current := len(p.workers)
	p.mu.Unlock()

	switch {
	case n > current:
		added := make([]*Worker, 0, n-current)
		for i := current; i < n; i++ {
			w, err := p.newSlot(i)
			if err != nil {
				return err
			}
			added = append(added, w)
		}
		p.mu.Lock()
		p.workers = append(p.workers, added...)
		p.mu.Unlock()
		p.startWorkers(ctx, added)
		p.logger.Info("scaled up", "from", current, "to", n)

	case n < current:
		p.mu.Lock()
		victims := p.workers[n:]
		p.workers = p.workers[:n]
		survivors := append([]*Worker(nil), p.workers...)
		p.mu.Unlock()

		for _, v := range victims {
			p.migratePending(v, survivors)
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, v := range victims {
			g.Go(func() error {
				return v.Stop(gctx)
			})
		}
		if err := g.Wait(); err != nil {
			p.logger.Warn("scale-down stop did not complete cleanly", "error", err)
		}
		p.logger.Info("scaled down", "from", current, "to", n)
	}

	return nil
}

// HealthCheck reports healthy only if at least one worker is running
// and every running worker self-reports healthy.
func (p *Pool) HealthCheck() bool {
	p.mu.Lock()
	workers := append([]*Worker(nil), p.workers...)
	p.mu.Unlock()

	runningCount := 0
	for _, w := range workers {
		if w.Status() != domain.WorkerStatusRunning {
			continue
		}
		runningCount++
		if !w.Healthy() {
			return false
		}
	}
	return runningCount > 0
}

// ListWorkers returns a snapshot of every registered worker.
func (p *Pool) ListWorkers() []domain.WorkerInfo {
	p.mu.Lock()
	workers := append([]*Worker(nil), p.workers...)
	p.mu.Unlock()

	infos := make([]domain.WorkerInfo, len(workers))
	for i, w := range workers {
		infos[i] = w.Info()
	}
	return infos
}

// GetStats aggregates submitted/completed/failed totals plus the
// per-worker breakdown.
func (p *Pool) GetStats() PoolStats {
	p.mu.Lock()
	workers := append([]*Worker(nil), p.workers...)
	submitted := p.submitted
	p.mu.Unlock()

	stats := PoolStats{
		Submitted: submitted,
		Workers:   make([]WorkerStats, len(workers)),
	}
	for i, w := range workers {
		qs := w.Stats()
		stats.Completed += qs.Completed
		stats.Failed += qs.Failed
		stats.Workers[i] = WorkerStats{WorkerInfo: w.Info(), Queue: qs}
	}
	return stats
}

// FindJob locates a job across all worker queues and returns its
// derived status plus the owning worker's id.
func (p *Pool) FindJob(id uuid.UUID) (domain.JobStatus, string, bool) {
	p.mu.Lock()
	workers := append([]*Worker(nil), p.workers...)
	p.mu.Unlock()

	for _, w := range workers {
		q := w.Queue()
		if q == nil {
			continue
		}
		if status, ok := q.GetJobStatus(id); ok {
			return status, w.ID(), true
		}
	}
	return domain.JobStatusUnknown, "", false
}

// newSlot builds a worker for the given index with a fresh engine.
func (p *Pool) newSlot(index int) (*Worker, error) {
	engine, err := p.factory(index)
	if err != nil {
		return nil, fmt.Errorf("building engine for slot %d: %w", index, err)
	}
	w := newWorker(index, engine, p.cfg.Queue, p.observers, p.logger)
	w.onRuntimeFailure = func(w *Worker, err error) {
		p.scheduleRestart(w, err)
	}
	return w, nil
}

// startWorkers launches the given workers in parallel. Startup
// failures are routed to the restart supervisor instead of failing
// the whole operation.
func (p *Pool) startWorkers(ctx context.Context, workers []*Worker) {
	var g errgroup.Group
	for _, w := range workers {
		g.Go(func() error {
			if err := w.Start(ctx); err != nil {
				p.scheduleRestart(w, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// scheduleRestart applies the bounded-retry supervisor policy: restart
// after RestartDelay while the budget lasts, otherwise leave the
// worker in error for manual intervention.
func (p *Pool) scheduleRestart(w *Worker, cause error) {
	if p.onWorkerFailure != nil {
		p.onWorkerFailure(w.Info(), cause)
	}
	if !p.cfg.AutoRestart {
		p.logger.Warn("worker failed, auto-restart disabled",
			"worker_id", w.ID(), "error", cause)
		return
	}
	info := w.Info()
	if info.Restarts >= p.cfg.MaxRestarts {
		p.logger.Error("worker restart budget exhausted, manual intervention required",
			"worker_id", w.ID(),
			"restarts", info.Restarts,
			"max_restarts", p.cfg.MaxRestarts,
			"error", cause)
		return
	}

	p.logger.Warn("scheduling worker restart",
		"worker_id", w.ID(),
		"restart_delay", p.cfg.RestartDelay,
		"restarts", info.Restarts,
		"error", cause)

	time.AfterFunc(p.cfg.RestartDelay, func() {
		p.restartIfCurrent(w)
	})
}

// restartIfCurrent restarts a worker only if the pool still owns it;
// a slot removed by scale-down or pool stop is left alone.
func (p *Pool) restartIfCurrent(w *Worker) {
	p.mu.Lock()
	current := false
	if !p.stopped {
		for _, reg := range p.workers {
			if reg == w {
				current = true
				break
			}
		}
	}
	p.mu.Unlock()
	if !current {
		return
	}

	engine, err := p.factory(w.Index())
	if err != nil {
		p.logger.Error("engine construction failed during restart",
			"worker_id", w.ID(), "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.ShutdownGrace)
	defer cancel()
	if err := w.restart(ctx, engine); err != nil {
		p.scheduleRestart(w, err)
	}
}

// migratePending moves a departing worker's unstarted jobs onto the
// least-loaded surviving workers.
func (p *Pool) migratePending(victim *Worker, survivors []*Worker) {
	q := victim.Queue()
	if q == nil {
		return
	}
	for _, job := range q.DrainPending() {
		target := leastLoaded(survivors)
		if target == nil {
			p.logger.Error("no surviving worker for pending job during scale-down",
				"job_id", job.ID)
			continue
		}
		if err := target.Enqueue(job); err != nil {
			p.logger.Error("failed to migrate pending job",
				"job_id", job.ID, "target", target.ID(), "error", err)
		}
	}
}

func leastLoaded(workers []*Worker) *Worker {
	var best *Worker
	bestDepth := 0
	for _, w := range workers {
		if w.Queue() == nil {
			continue
		}
		if d := w.Depth(); best == nil || d < bestDepth {
			best, bestDepth = w, d
		}
	}
	return best
}

// runningLocked filters the registry to running workers. Caller holds mu.
func (p *Pool) runningLocked() []*Worker {
	out := make([]*Worker, 0, len(p.workers))
	for _, w := range p.workers {
		if w.Status() == domain.WorkerStatusRunning {
			out = append(out, w)
		}
	}
	return out
}

func (p *Pool) findByID(id string) *Worker {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, w := range p.workers {
		if w.ID() == id {
			return w
		}
	}
	return nil
}
