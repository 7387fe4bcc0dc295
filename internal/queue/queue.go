// internal/queue/queue.go
package queue

import (
	"context"

	"github.com/brightline/outreach-backend/internal/model"
)

// Handler processes one dispatch job. A nil return acknowledges the job; an
// error hands it to the queue's retry policy.
type Handler func(ctx context.Context, job model.DispatchJob) error

// FailureHandler runs exactly once per job after retries are exhausted or a
// permanent error is raised, before the job is discarded.
type FailureHandler func(ctx context.Context, job model.DispatchJob, jobErr error)

// Status holds job counts per state for observability.
type Status struct {
	Waiting   int `json:"waiting"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Queue is the durable, at-least-once dispatch queue. Enqueue returns once
// the job is durably accepted, never once it is processed. Duplicate
// delivery after a worker crash is possible and must be tolerated
// downstream.
type Queue interface {
	Enqueue(ctx context.Context, job model.DispatchJob) error
	Status(ctx context.Context) (Status, error)
	// Drain removes all waiting jobs. Jobs already handed to a worker keep
	// running.
	Drain(ctx context.Context) error
}
