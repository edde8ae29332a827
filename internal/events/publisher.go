package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/staticwaves/podforge/internal/domain"
)

// DefaultChannel is the Redis channel lifecycle events are published to
// when none is configured.
const DefaultChannel = "podforge:jobs"

// publishTimeout bounds each publish so a slow broker cannot stall the
// queue's observer callbacks.
const publishTimeout = 5 * time.Second

// RedisPublisher publishes job lifecycle events to a Redis channel. It
// implements the queue observer contract, so it attaches directly to
// the worker pool alongside the metrics and persistence observers.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
	logger  *slog.Logger
}

// NewRedisPublisher creates a publisher over the given client. An
// empty channel selects DefaultChannel.
func NewRedisPublisher(client redis.UniversalClient, channel string, logger *slog.Logger) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisPublisher{
		client:  client,
		channel: channel,
		logger:  logger,
	}
}

// JobCompleted publishes a job.completed event.
func (p *RedisPublisher) JobCompleted(job *domain.Job, result *domain.JobResult) {
	event := NewJobLifecycleEvent(TypeJobCompleted, job, domain.JobStatusCompleted)
	if result != nil {
		event.DurationMs = result.Duration.Milliseconds()
	}
	p.publish(event)
}

// JobFailed publishes a job.failed event.
func (p *RedisPublisher) JobFailed(job *domain.Job, err error) {
	event := NewJobLifecycleEvent(TypeJobFailed, job, domain.JobStatusFailed)
	if err != nil {
		event.Error = err.Error()
	}
	p.publish(event)
}

// JobRetrying publishes a job.retrying event.
func (p *RedisPublisher) JobRetrying(job *domain.Job, err error) {
	event := NewJobLifecycleEvent(TypeJobRetrying, job, domain.JobStatusRetrying)
	if err != nil {
		event.Error = err.Error()
	}
	p.publish(event)
}

// publish serializes and sends one event. Failures are logged and
// dropped; lifecycle publishing never propagates errors to the queue.
func (p *RedisPublisher) publish(event *JobLifecycleEvent) {
	payload, err := event.Marshal()
	if err != nil {
		p.logger.Error("failed to marshal lifecycle event",
			slog.String("event_type", event.Type),
			slog.String("job_id", event.JobID.String()),
			slog.String("error", err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		p.logger.Warn("failed to publish lifecycle event",
			slog.String("event_type", event.Type),
			slog.String("job_id", event.JobID.String()),
			slog.String("channel", p.channel),
			slog.String("error", err.Error()))
	}
}
