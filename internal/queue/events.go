package queue

import "github.com/staticwaves/podforge/internal/domain"

// Observer receives job lifecycle notifications from a JobQueue.
// Callbacks are invoked from queue goroutines after the state change
// has been applied; implementations must not call back into the queue
// synchronously and must be safe for concurrent use.
type Observer interface {
	// JobCompleted is called once when a job reaches the completed state.
	JobCompleted(job *domain.Job, result *domain.JobResult)

	// JobFailed is called once when a job reaches the terminal failed state.
	JobFailed(job *domain.Job, err error)

	// JobRetrying is called each time a failed job is scheduled for
	// another attempt.
	JobRetrying(job *domain.Job, err error)
}

// ObserverFuncs adapts plain functions to the Observer interface.
// Nil fields are ignored.
type ObserverFuncs struct {
	Completed func(job *domain.Job, result *domain.JobResult)
	Failed    func(job *domain.Job, err error)
	Retrying  func(job *domain.Job, err error)
}

func (o ObserverFuncs) JobCompleted(job *domain.Job, result *domain.JobResult) {
	if o.Completed != nil {
		o.Completed(job, result)
	}
}

func (o ObserverFuncs) JobFailed(job *domain.Job, err error) {
	if o.Failed != nil {
		o.Failed(job, err)
	}
}

func (o ObserverFuncs) JobRetrying(job *domain.Job, err error) {
	if o.Retrying != nil {
		o.Retrying(job, err)
	}
}
