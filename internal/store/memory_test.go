package store

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staticwaves/podforge/internal/domain"
)

func newStoredJob(t *testing.T, createdAt time.Time) *domain.Job {
	t.Helper()
	job, err := domain.NewJob(json.RawMessage(`{"productTypes":["tshirt"],"prompt":"retro sunset"}`), 3, 2)
	require.NoError(t, err)
	job.CreatedAt = createdAt
	return job
}

func TestMemoryJobStoreSaveAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryJobStore()

	job := newStoredJob(t, time.Now().UTC())
	require.NoError(t, s.SaveJob(ctx, job, domain.JobStatusQueued))

	rec, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, rec.ID)
	assert.Equal(t, domain.JobStatusQueued, rec.Status)
	assert.Equal(t, 3, rec.Priority)
	assert.Equal(t, 2, rec.MaxRetries)
	assert.JSONEq(t, string(job.Request), string(rec.Request))
	assert.False(t, rec.UpdatedAt.IsZero())

	// Duplicate ids are rejected.
	err = s.SaveJob(ctx, job, domain.JobStatusQueued)
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestMemoryJobStoreGetJobNotFound(t *testing.T) {
	s := NewMemoryJobStore()

	_, err := s.GetJob(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, IsNotFoundError(err))
}

func TestMemoryJobStoreUpdateJobStatus(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryJobStore()

	job := newStoredJob(t, time.Now().UTC())
	require.NoError(t, s.SaveJob(ctx, job, domain.JobStatusQueued))

	// Retrying bumps the persisted retry counter.
	require.NoError(t, s.UpdateJobStatus(ctx, job.ID, domain.JobStatusRetrying, "transient", 0))
	rec, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusRetrying, rec.Status)
	assert.Equal(t, 1, rec.RetryCount)
	assert.Equal(t, "transient", rec.LastError)

	require.NoError(t, s.UpdateJobStatus(ctx, job.ID, domain.JobStatusCompleted, "", 4200))
	rec, err = s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, rec.Status)
	assert.Equal(t, 1, rec.RetryCount)
	assert.Equal(t, int64(4200), rec.DurationMs)
	assert.Empty(t, rec.LastError)

	err = s.UpdateJobStatus(ctx, uuid.New(), domain.JobStatusFailed, "", 0)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestMemoryJobStoreListJobs(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryJobStore()

	base := time.Now().UTC()
	oldest := newStoredJob(t, base.Add(-2*time.Hour))
	middle := newStoredJob(t, base.Add(-time.Hour))
	newest := newStoredJob(t, base)

	require.NoError(t, s.SaveJob(ctx, oldest, domain.JobStatusCompleted))
	require.NoError(t, s.SaveJob(ctx, middle, domain.JobStatusFailed))
	require.NoError(t, s.SaveJob(ctx, newest, domain.JobStatusQueued))

	all, err := s.ListJobs(ctx, ListJobsOptions{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, newest.ID, all[0].ID, "newest first")
	assert.Equal(t, oldest.ID, all[2].ID)

	failed, err := s.ListJobs(ctx, ListJobsOptions{Status: domain.JobStatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, middle.ID, failed[0].ID)

	limited, err := s.ListJobs(ctx, ListJobsOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, newest.ID, limited[0].ID)
}

func TestMemoryJobStoreArtifacts(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryJobStore()
	jobID := uuid.New()

	require.NoError(t, s.SaveImage(ctx, domain.ImageAsset{
		ID:    uuid.New(),
		JobID: jobID,
		URL:   "local://designs/1.png",
	}))
	require.NoError(t, s.SaveProduct(ctx, domain.Product{
		ID:          uuid.New(),
		JobID:       jobID,
		ProductType: "tshirt",
		Platform:    "local",
		Title:       "Retro Sunset Tee",
	}))

	images, err := s.ListImagesByJob(ctx, jobID)
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, jobID, images[0].JobID)

	products, err := s.ListProductsByJob(ctx, jobID)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "tshirt", products[0].ProductType)

	// Unknown jobs list empty, not error.
	none, err := s.ListImagesByJob(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryJobStoreLogs(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryJobStore()
	jobID := uuid.New()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.AppendLog(ctx, jobID, "info", fmt.Sprintf("line %d", i)))
	}

	logs, err := s.ListLogsByJob(ctx, jobID, 0)
	require.NoError(t, err)
	require.Len(t, logs, 5)
	assert.Equal(t, "line 0", logs[0].Message, "oldest first")
	assert.Less(t, logs[0].ID, logs[1].ID)

	limited, err := s.ListLogsByJob(ctx, jobID, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "line 0", limited[0].Message)
}
