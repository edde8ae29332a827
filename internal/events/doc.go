// Package events publishes job lifecycle events to external consumers.
//
// Events are emitted as jobs transition through the queue and published
// over a Redis channel, letting downstream services (dashboards, store
// frontends) react to job progress without polling the API. Publishing
// is best effort: a broker outage never affects job processing.
package events
