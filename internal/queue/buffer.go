package queue

import (
	"sort"

	"github.com/google/uuid"

	"github.com/staticwaves/podforge/internal/domain"
)

// PriorityBuffer is the ordered in-memory holding area for jobs that
// have been accepted but not yet dispatched. Jobs are kept in
// descending priority order; jobs with equal priority keep their
// insertion order (FIFO).
//
// The buffer is not safe for concurrent use. The owning JobQueue
// serializes all calls under its own lock.
type PriorityBuffer struct {
	items []*domain.Job
}

// NewPriorityBuffer creates an empty buffer.
func NewPriorityBuffer() *PriorityBuffer {
	return &PriorityBuffer{}
}

// Enqueue inserts the job keeping descending-priority order. Among
// equal priorities the new job goes last, preserving FIFO dequeue.
func (b *PriorityBuffer) Enqueue(job *domain.Job) {
	// First index whose priority is strictly lower than the new job's.
	i := sort.Search(len(b.items), func(i int) bool {
		return b.items[i].Priority < job.Priority
	})
	b.items = append(b.items, nil)
	copy(b.items[i+1:], b.items[i:])
	b.items[i] = job
}

// Dequeue removes and returns the highest-priority job, or nil if the
// buffer is empty.
func (b *PriorityBuffer) Dequeue() *domain.Job {
	if len(b.items) == 0 {
		return nil
	}
	job := b.items[0]
	b.items[0] = nil
	b.items = b.items[1:]
	return job
}

// Peek returns the highest-priority job without removing it, or nil if
// the buffer is empty.
func (b *PriorityBuffer) Peek() *domain.Job {
	if len(b.items) == 0 {
		return nil
	}
	return b.items[0]
}

// Remove deletes the job with the given id, preserving the relative
// order of the remaining jobs. It returns true if the job was present.
func (b *PriorityBuffer) Remove(id uuid.UUID) bool {
	for i, job := range b.items {
		if job.ID == id {
			copy(b.items[i:], b.items[i+1:])
			b.items[len(b.items)-1] = nil
			b.items = b.items[:len(b.items)-1]
			return true
		}
	}
	return false
}

// Contains reports whether a job with the given id is buffered.
func (b *PriorityBuffer) Contains(id uuid.UUID) bool {
	for _, job := range b.items {
		if job.ID == id {
			return true
		}
	}
	return false
}

// Size returns the number of buffered jobs.
func (b *PriorityBuffer) Size() int {
	return len(b.items)
}

// Clear removes all buffered jobs.
func (b *PriorityBuffer) Clear() {
	b.items = nil
}

// Snapshot returns a read-only copy of the buffered jobs in dequeue
// order.
func (b *PriorityBuffer) Snapshot() []*domain.Job {
	out := make([]*domain.Job, len(b.items))
	copy(out, b.items)
	return out
}
