package engine

import (
	"context"

	"github.com/staticwaves/podforge/internal/domain"
)

// Generator defines the interface for producing design images from a
// job request. This interface serves as a boundary between the
// application core and external AI image services.
type Generator interface {
	// Generate creates one design image for the given request and
	// product type. It returns the generated asset or an error if
	// generation fails (see errors.go for the failure taxonomy).
	Generate(ctx context.Context, req domain.JobRequest, productType string) (domain.ImageAsset, error)
}

// Publisher defines the interface for publishing a generated design as
// a product on an e-commerce platform.
type Publisher interface {
	// Publish creates a product of the given type from the image and
	// returns the published product record.
	Publish(ctx context.Context, image domain.ImageAsset, req domain.JobRequest, productType string) (domain.Product, error)
}

// Metrics is the subset of metric recording the pipeline needs. It is
// satisfied by monitor.MetricsCollector.
type Metrics interface {
	Record(name string, value float64, labels map[string]string)
}

// Func adapts a plain function to the queue engine contract. It is
// useful for tests and for wiring lightweight engines.
type Func func(ctx context.Context, job *domain.Job) (*domain.JobResult, error)

// Execute calls f.
func (f Func) Execute(ctx context.Context, job *domain.Job) (*domain.JobResult, error) {
	return f(ctx, job)
}

// GeneratorFunc adapts a plain function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req domain.JobRequest, productType string) (domain.ImageAsset, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req domain.JobRequest, productType string) (domain.ImageAsset, error) {
	return f(ctx, req, productType)
}

// PublisherFunc adapts a plain function to the Publisher interface.
type PublisherFunc func(ctx context.Context, image domain.ImageAsset, req domain.JobRequest, productType string) (domain.Product, error)

// Publish calls f.
func (f PublisherFunc) Publish(ctx context.Context, image domain.ImageAsset, req domain.JobRequest, productType string) (domain.Product, error) {
	return f(ctx, image, req, productType)
}
