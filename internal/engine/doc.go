// Package engine contains the job execution pipeline. It defines the
// boundaries to external generation and publishing services, following
// the hexagonal architecture pattern, and the Pipeline engine that runs
// a single job end to end: generate a design for each requested product
// type, persist the artifacts, and publish the results.
package engine
