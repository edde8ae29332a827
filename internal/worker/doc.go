// Package worker provides the horizontal-scale layer of the job
// system: a Worker couples one Engine instance with its own JobQueue,
// and a Pool supervises N workers: parallel startup, load-balanced
// submission, live scaling, and a bounded-retry restart supervisor for
// workers whose engines fail.
package worker
