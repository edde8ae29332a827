package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/staticwaves/podforge/internal/domain"
	"github.com/staticwaves/podforge/internal/platform/logger"
	"github.com/staticwaves/podforge/internal/store"
)

// defaultListLimit caps job listings when the caller does not supply a limit.
const defaultListLimit = 100

// PostgresJobStore implements the store.JobStore interface using PostgreSQL
type PostgresJobStore struct {
	db store.DBTX
}

// Verify interface compliance at compile time
var _ store.JobStore = (*PostgresJobStore)(nil)

// NewPostgresJobStore creates a new PostgresJobStore
func NewPostgresJobStore(db store.DBTX) *PostgresJobStore {
	return &PostgresJobStore{
		db: db,
	}
}

// SaveJob persists a newly accepted job with its initial status.
func (s *PostgresJobStore) SaveJob(ctx context.Context, job *domain.Job, status domain.JobStatus) error {
	log := logger.FromContext(ctx)

	query := `
		INSERT INTO jobs (id, status, priority, request, retry_count, max_retries, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, query,
		job.ID,
		status,
		job.Priority,
		[]byte(job.Request),
		job.RetryCount,
		job.MaxRetries,
		job.CreatedAt,
		now,
	)
	if err != nil {
		log.Error("failed to save job",
			"job_id", job.ID,
			"error", err)
		return MapError(fmt.Errorf("failed to save job: %w", err))
	}

	return nil
}

// UpdateJobStatus transitions a persisted job. The retry counter is
// bumped in the same statement when the job enters the retrying state.
func (s *PostgresJobStore) UpdateJobStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.JobStatus,
	errMsg string,
	durationMs int64,
) error {
	log := logger.FromContext(ctx)

	query := `
		UPDATE jobs
		SET status = $1,
		    last_error = $2,
		    duration_ms = $3,
		    retry_count = retry_count + CASE WHEN $1 = 'retrying' THEN 1 ELSE 0 END,
		    updated_at = $4
		WHERE id = $5
	`

	result, err := s.db.ExecContext(ctx, query,
		status,
		errMsg,
		durationMs,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		log.Error("failed to update job status",
			"job_id", id,
			"status", status,
			"error", err)
		return MapError(fmt.Errorf("failed to update job status: %w", err))
	}

	return CheckRowsAffected(result, "job")
}

// GetJob retrieves a persisted job by id.
func (s *PostgresJobStore) GetJob(ctx context.Context, id uuid.UUID) (*store.JobRecord, error) {
	query := `
		SELECT id, status, priority, request, retry_count, max_retries, last_error, duration_ms, created_at, updated_at
		FROM jobs
		WHERE id = $1
	`

	row := s.db.QueryRowContext(ctx, query, id)
	record, err := scanJobRecord(row)
	if err != nil {
		return nil, MapError(fmt.Errorf("failed to get job: %w", err))
	}

	return record, nil
}

// ListJobs returns jobs matching the options, newest first.
func (s *PostgresJobStore) ListJobs(ctx context.Context, opts store.ListJobsOptions) ([]*store.JobRecord, error) {
	log := logger.FromContext(ctx)

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	var query string
	var args []interface{}

	if opts.Status != "" {
		query = `
			SELECT id, status, priority, request, retry_count, max_retries, last_error, duration_ms, created_at, updated_at
			FROM jobs
			WHERE status = $1
			ORDER BY created_at DESC
			LIMIT $2
		`
		args = []interface{}{opts.Status, limit}
	} else {
		query = `
			SELECT id, status, priority, request, retry_count, max_retries, last_error, duration_ms, created_at, updated_at
			FROM jobs
			ORDER BY created_at DESC
			LIMIT $1
		`
		args = []interface{}{limit}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list jobs",
			"status", opts.Status,
			"error", err)
		return nil, MapError(fmt.Errorf("failed to list jobs: %w", err))
	}
	defer func() { _ = rows.Close() }()

	var records []*store.JobRecord
	for rows.Next() {
		record, err := scanJobRecord(rows)
		if err != nil {
			return nil, MapError(fmt.Errorf("failed to scan job row: %w", err))
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(fmt.Errorf("error iterating job rows: %w", err))
	}

	return records, nil
}

// SaveImage records a generated image for a job.
func (s *PostgresJobStore) SaveImage(ctx context.Context, image domain.ImageAsset) error {
	query := `
		INSERT INTO job_images (id, job_id, url, prompt, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.db.ExecContext(ctx, query,
		image.ID,
		image.JobID,
		image.URL,
		image.Prompt,
		image.CreatedAt,
	)
	if err != nil {
		return MapError(fmt.Errorf("failed to save image: %w", err))
	}

	return nil
}

// ListImagesByJob returns the images generated for a job, oldest first.
func (s *PostgresJobStore) ListImagesByJob(ctx context.Context, jobID uuid.UUID) ([]domain.ImageAsset, error) {
	query := `
		SELECT id, job_id, url, prompt, created_at
		FROM job_images
		WHERE job_id = $1
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, MapError(fmt.Errorf("failed to list images: %w", err))
	}
	defer func() { _ = rows.Close() }()

	var images []domain.ImageAsset
	for rows.Next() {
		var img domain.ImageAsset
		var prompt sql.NullString
		if err := rows.Scan(&img.ID, &img.JobID, &img.URL, &prompt, &img.CreatedAt); err != nil {
			return nil, MapError(fmt.Errorf("failed to scan image row: %w", err))
		}
		img.Prompt = prompt.String
		images = append(images, img)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(fmt.Errorf("error iterating image rows: %w", err))
	}

	return images, nil
}

// SaveProduct records a published product for a job.
func (s *PostgresJobStore) SaveProduct(ctx context.Context, product domain.Product) error {
	query := `
		INSERT INTO job_products (id, job_id, product_type, platform, external_id, title, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.db.ExecContext(ctx, query,
		product.ID,
		product.JobID,
		product.ProductType,
		product.Platform,
		product.ExternalID,
		product.Title,
		product.CreatedAt,
	)
	if err != nil {
		return MapError(fmt.Errorf("failed to save product: %w", err))
	}

	return nil
}

// ListProductsByJob returns the products published for a job, oldest first.
func (s *PostgresJobStore) ListProductsByJob(ctx context.Context, jobID uuid.UUID) ([]domain.Product, error) {
	query := `
		SELECT id, job_id, product_type, platform, external_id, title, created_at
		FROM job_products
		WHERE job_id = $1
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, MapError(fmt.Errorf("failed to list products: %w", err))
	}
	defer func() { _ = rows.Close() }()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		var externalID sql.NullString
		if err := rows.Scan(&p.ID, &p.JobID, &p.ProductType, &p.Platform, &externalID, &p.Title, &p.CreatedAt); err != nil {
			return nil, MapError(fmt.Errorf("failed to scan product row: %w", err))
		}
		p.ExternalID = externalID.String
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(fmt.Errorf("error iterating product rows: %w", err))
	}

	return products, nil
}

// AppendLog attaches a log line to a job.
func (s *PostgresJobStore) AppendLog(ctx context.Context, jobID uuid.UUID, level, message string) error {
	query := `
		INSERT INTO job_logs (job_id, level, message, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := s.db.ExecContext(ctx, query,
		jobID,
		level,
		message,
		time.Now().UTC(),
	)
	if err != nil {
		return MapError(fmt.Errorf("failed to append job log: %w", err))
	}

	return nil
}

// ListLogsByJob returns up to limit log lines for a job, oldest first.
func (s *PostgresJobStore) ListLogsByJob(ctx context.Context, jobID uuid.UUID, limit int) ([]domain.JobLog, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `
		SELECT id, job_id, level, message, created_at
		FROM job_logs
		WHERE job_id = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, jobID, limit)
	if err != nil {
		return nil, MapError(fmt.Errorf("failed to list job logs: %w", err))
	}
	defer func() { _ = rows.Close() }()

	var logs []domain.JobLog
	for rows.Next() {
		var l domain.JobLog
		if err := rows.Scan(&l.ID, &l.JobID, &l.Level, &l.Message, &l.CreatedAt); err != nil {
			return nil, MapError(fmt.Errorf("failed to scan log row: %w", err))
		}
		logs = append(logs, l)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(fmt.Errorf("error iterating log rows: %w", err))
	}

	return logs, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJobRecord(row rowScanner) (*store.JobRecord, error) {
	var record store.JobRecord
	var request []byte
	var lastError sql.NullString
	var durationMs sql.NullInt64

	err := row.Scan(
		&record.ID,
		&record.Status,
		&record.Priority,
		&request,
		&record.RetryCount,
		&record.MaxRetries,
		&lastError,
		&durationMs,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Request = request
	record.LastError = lastError.String
	record.DurationMs = durationMs.Int64

	return &record, nil
}
