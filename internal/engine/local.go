package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/staticwaves/podforge/internal/domain"
)

// LocalGenerator is a self-contained Generator used when no external
// image service is configured. It fabricates deterministic asset URLs
// under a base path, which keeps the rest of the pipeline exercisable
// in development and tests.
type LocalGenerator struct {
	// BaseURL is prepended to generated asset paths. Defaults to
	// "local://designs" when empty.
	BaseURL string

	// Delay simulates generation latency. Zero means no delay.
	Delay time.Duration
}

// Generate fabricates an image asset for the request.
func (g *LocalGenerator) Generate(ctx context.Context, req domain.JobRequest, productType string) (domain.ImageAsset, error) {
	if g.Delay > 0 {
		select {
		case <-time.After(g.Delay):
		case <-ctx.Done():
			return domain.ImageAsset{}, ctx.Err()
		}
	}

	base := g.BaseURL
	if base == "" {
		base = "local://designs"
	}

	id := uuid.New()
	return domain.ImageAsset{
		ID:        id,
		URL:       fmt.Sprintf("%s/%s-%s.png", base, productType, id),
		Prompt:    req.Prompt,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// LocalPublisher is a self-contained Publisher counterpart to
// LocalGenerator. Published products carry a synthetic external id.
type LocalPublisher struct {
	// Platform names the target platform recorded on products.
	// Defaults to "local" when empty.
	Platform string

	// Delay simulates publish latency. Zero means no delay.
	Delay time.Duration
}

// Publish fabricates a product record for the image.
func (p *LocalPublisher) Publish(ctx context.Context, image domain.ImageAsset, req domain.JobRequest, productType string) (domain.Product, error) {
	if p.Delay > 0 {
		select {
		case <-time.After(p.Delay):
		case <-ctx.Done():
			return domain.Product{}, ctx.Err()
		}
	}

	platform := p.Platform
	if platform == "" {
		platform = "local"
	}

	title := req.Title
	if title == "" {
		title = fmt.Sprintf("Generated %s", productType)
	}

	id := uuid.New()
	return domain.Product{
		ID:          id,
		ProductType: productType,
		Platform:    platform,
		ExternalID:  fmt.Sprintf("%s-%s", platform, id),
		Title:       title,
		CreatedAt:   time.Now().UTC(),
	}, nil
}
