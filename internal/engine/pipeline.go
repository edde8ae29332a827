package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/staticwaves/podforge/internal/domain"
	"github.com/staticwaves/podforge/internal/store"
)

// pipelineOutput is the JSON output attached to a completed job result.
type pipelineOutput struct {
	Images   []domain.ImageAsset `json:"images"`
	Products []domain.Product    `json:"products"`
}

// Pipeline executes jobs by generating one design per requested
// product type and publishing each as a product. Artifacts and log
// lines are persisted through the job store as the pipeline runs, so a
// partially failed job still leaves a record of what it produced.
type Pipeline struct {
	generator Generator
	publisher Publisher
	writer    store.JobWriter
	metrics   Metrics
	logger    *slog.Logger
	validate  *validator.Validate
	healthy   atomic.Bool
}

// NewPipeline assembles a Pipeline from its collaborators. metrics may
// be nil, in which case stage timings are not recorded.
func NewPipeline(
	gen Generator,
	pub Publisher,
	writer store.JobWriter,
	metrics Metrics,
	logger *slog.Logger,
) (*Pipeline, error) {
	if gen == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if pub == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if writer == nil {
		return nil, fmt.Errorf("job writer is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		generator: gen,
		publisher: pub,
		writer:    writer,
		metrics:   metrics,
		logger:    logger,
		validate:  validator.New(),
	}, nil
}

// Start marks the pipeline ready to accept work.
func (p *Pipeline) Start(ctx context.Context) error {
	p.healthy.Store(true)
	return nil
}

// Stop marks the pipeline unavailable. In-flight executions are
// cancelled through their contexts by the owning queue.
func (p *Pipeline) Stop(ctx context.Context) error {
	p.healthy.Store(false)
	return nil
}

// Healthy reports whether the pipeline is accepting work.
func (p *Pipeline) Healthy() bool {
	return p.healthy.Load()
}

// Execute runs the full generate-and-publish pipeline for one job.
func (p *Pipeline) Execute(ctx context.Context, job *domain.Job) (*domain.JobResult, error) {
	started := time.Now()
	log := p.logger.With(slog.String("job_id", job.ID.String()))

	var req domain.JobRequest
	if err := json.Unmarshal(job.Request, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := p.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	p.appendLog(ctx, job.ID, "info",
		fmt.Sprintf("pipeline started for %d product type(s)", len(req.ProductTypes)))

	var out pipelineOutput
	for _, productType := range req.ProductTypes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		image, err := p.generateStage(ctx, job, req, productType)
		if err != nil {
			p.appendLog(ctx, job.ID, "error",
				fmt.Sprintf("generation failed for %s: %v", productType, err))
			return nil, err
		}
		out.Images = append(out.Images, image)

		product, err := p.publishStage(ctx, job, image, req, productType)
		if err != nil {
			p.appendLog(ctx, job.ID, "error",
				fmt.Sprintf("publish failed for %s: %v", productType, err))
			return nil, err
		}
		out.Products = append(out.Products, product)

		log.Debug("product pipeline stage complete",
			slog.String("product_type", productType),
			slog.String("product_id", product.ID.String()))
	}

	output, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal pipeline output: %w", err)
	}

	p.appendLog(ctx, job.ID, "info",
		fmt.Sprintf("pipeline completed: %d image(s), %d product(s)",
			len(out.Images), len(out.Products)))

	return &domain.JobResult{
		JobID:    job.ID,
		Success:  true,
		Output:   output,
		Duration: time.Since(started),
	}, nil
}

// generateStage produces and persists one design image, timing the
// external call.
func (p *Pipeline) generateStage(
	ctx context.Context,
	job *domain.Job,
	req domain.JobRequest,
	productType string,
) (domain.ImageAsset, error) {
	start := time.Now()
	image, err := p.generator.Generate(ctx, req, productType)
	p.recordStage("generate", productType, time.Since(start), err)
	if err != nil {
		return domain.ImageAsset{}, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	image.JobID = job.ID
	if err := p.writer.SaveImage(ctx, image); err != nil {
		return domain.ImageAsset{}, fmt.Errorf("failed to save generated image: %w", err)
	}
	return image, nil
}

// publishStage publishes and persists one product, timing the
// external call.
func (p *Pipeline) publishStage(
	ctx context.Context,
	job *domain.Job,
	image domain.ImageAsset,
	req domain.JobRequest,
	productType string,
) (domain.Product, error) {
	start := time.Now()
	product, err := p.publisher.Publish(ctx, image, req, productType)
	p.recordStage("publish", productType, time.Since(start), err)
	if err != nil {
		return domain.Product{}, fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}

	product.JobID = job.ID
	if err := p.writer.SaveProduct(ctx, product); err != nil {
		return domain.Product{}, fmt.Errorf("failed to save product: %w", err)
	}
	return product, nil
}

func (p *Pipeline) recordStage(stage, productType string, elapsed time.Duration, err error) {
	if p.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	p.metrics.Record("stage."+stage, float64(elapsed.Milliseconds()), map[string]string{
		"product_type": productType,
		"outcome":      outcome,
	})
}

// appendLog persists a job log line. Persistence failures are logged
// and swallowed; the pipeline never fails a job over a missing log
// line.
func (p *Pipeline) appendLog(ctx context.Context, jobID uuid.UUID, level, message string) {
	if err := p.writer.AppendLog(ctx, jobID, level, message); err != nil {
		p.logger.Warn("failed to append job log",
			slog.String("job_id", jobID.String()),
			slog.String("error", err.Error()))
	}
}
