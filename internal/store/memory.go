package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/staticwaves/podforge/internal/domain"
)

// defaultListLimit bounds ListJobs when the caller does not set one.
const defaultListLimit = 100

// MemoryJobStore is an in-memory JobStore. It backs deployments that
// run without Postgres and doubles as the test double for the API
// layer. Safe for concurrent use.
type MemoryJobStore struct {
	mu       sync.RWMutex
	jobs     map[uuid.UUID]*JobRecord
	images   map[uuid.UUID][]domain.ImageAsset
	products map[uuid.UUID][]domain.Product
	logs     map[uuid.UUID][]domain.JobLog
	logSeq   int64
}

// NewMemoryJobStore creates an empty in-memory store.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{
		jobs:     make(map[uuid.UUID]*JobRecord),
		images:   make(map[uuid.UUID][]domain.ImageAsset),
		products: make(map[uuid.UUID][]domain.Product),
		logs:     make(map[uuid.UUID][]domain.JobLog),
	}
}

// SaveJob implements JobWriter.
func (s *MemoryJobStore) SaveJob(_ context.Context, job *domain.Job, status domain.JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return NewStoreError("job", "create", job.ID.String(), ErrDuplicate)
	}
	now := time.Now().UTC()
	s.jobs[job.ID] = &JobRecord{
		ID:         job.ID,
		Status:     status,
		Priority:   job.Priority,
		Request:    job.Request,
		RetryCount: job.RetryCount,
		MaxRetries: job.MaxRetries,
		CreatedAt:  job.CreatedAt,
		UpdatedAt:  now,
	}
	return nil
}

// UpdateJobStatus implements JobWriter.
func (s *MemoryJobStore) UpdateJobStatus(_ context.Context, id uuid.UUID, status domain.JobStatus, errMsg string, durationMs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	rec.Status = status
	rec.LastError = errMsg
	if durationMs > 0 {
		rec.DurationMs = durationMs
	}
	if status == domain.JobStatusRetrying {
		rec.RetryCount++
	}
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

// SaveImage implements JobWriter.
func (s *MemoryJobStore) SaveImage(_ context.Context, image domain.ImageAsset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images[image.JobID] = append(s.images[image.JobID], image)
	return nil
}

// SaveProduct implements JobWriter.
func (s *MemoryJobStore) SaveProduct(_ context.Context, product domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[product.JobID] = append(s.products[product.JobID], product)
	return nil
}

// AppendLog implements JobWriter.
func (s *MemoryJobStore) AppendLog(_ context.Context, jobID uuid.UUID, level, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logSeq++
	s.logs[jobID] = append(s.logs[jobID], domain.JobLog{
		ID:        s.logSeq,
		JobID:     jobID,
		Level:     level,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

// GetJob implements JobReader.
func (s *MemoryJobStore) GetJob(_ context.Context, id uuid.UUID) (*JobRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	cp := *rec
	return &cp, nil
}

// ListJobs implements JobReader.
func (s *MemoryJobStore) ListJobs(_ context.Context, opts ListJobsOptions) ([]*JobRecord, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	s.mu.RLock()
	out := make([]*JobRecord, 0, len(s.jobs))
	for _, rec := range s.jobs {
		if opts.Status != "" && rec.Status != opts.Status {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListImagesByJob implements JobReader.
func (s *MemoryJobStore) ListImagesByJob(_ context.Context, jobID uuid.UUID) ([]domain.ImageAsset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.ImageAsset(nil), s.images[jobID]...), nil
}

// ListProductsByJob implements JobReader.
func (s *MemoryJobStore) ListProductsByJob(_ context.Context, jobID uuid.UUID) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Product(nil), s.products[jobID]...), nil
}

// ListLogsByJob implements JobReader.
func (s *MemoryJobStore) ListLogsByJob(_ context.Context, jobID uuid.UUID, limit int) ([]domain.JobLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := s.logs[jobID]
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return append([]domain.JobLog(nil), logs...), nil
}
