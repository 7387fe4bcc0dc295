// internal/queue/memory.go
package queue

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	appErrors "github.com/brightline/outreach-backend/internal/errors"
	"github.com/brightline/outreach-backend/internal/model"
	"github.com/brightline/outreach-backend/pkg/metrics"
	"github.com/brightline/outreach-backend/pkg/retry"
)

// MemoryConfig configures the in-memory queue.
type MemoryConfig struct {
	Name           string
	Workers        int
	BufferSize     int
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Memory is an in-process Queue used by tests and broker-less deployments.
// It is constructed and injected explicitly; nothing is process-global.
// Durability is limited to the process lifetime, but the processing contract
// (bounded retries with backoff, failure handler on exhaustion) matches the
// AMQP implementation.
type Memory struct {
	cfg       MemoryConfig
	jobs      chan model.DispatchJob
	handler   Handler
	onFailure FailureHandler
	logger    *slog.Logger

	active    atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64

	startOnce sync.Once
	wg        sync.WaitGroup
}

func NewMemory(cfg MemoryConfig, handler Handler, onFailure FailureHandler, logger *slog.Logger) *Memory {
	if cfg.Name == "" {
		cfg.Name = "memory"
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1024
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &Memory{
		cfg:       cfg,
		jobs:      make(chan model.DispatchJob, cfg.BufferSize),
		handler:   handler,
		onFailure: onFailure,
		logger:    logger,
	}
}

// Start launches the worker goroutines. Workers stop when ctx is cancelled.
func (q *Memory) Start(ctx context.Context) {
	q.startOnce.Do(func() {
		for i := 0; i < q.cfg.Workers; i++ {
			q.wg.Add(1)
			go func() {
				defer q.wg.Done()
				for {
					select {
					case <-ctx.Done():
						return
					case job, ok := <-q.jobs:
						if !ok {
							return
						}
						q.process(ctx, job)
					}
				}
			}()
		}
	})
}

// Wait blocks until all workers have exited.
func (q *Memory) Wait() {
	q.wg.Wait()
}

func (q *Memory) process(ctx context.Context, job model.DispatchJob) {
	q.active.Add(1)
	defer q.active.Add(-1)

	err := retry.Do(ctx, retry.Config{
		MaxAttempts:    q.cfg.MaxAttempts,
		InitialBackoff: q.cfg.InitialBackoff,
		MaxBackoff:     q.cfg.MaxBackoff,
		Halt:           appErrors.IsPermanent,
	}, func() error {
		return q.handler(ctx, job)
	})

	if err != nil {
		q.logger.Error("job permanently failed",
			slog.Int("campaign_id", job.CampaignID),
			slog.String("recipient_id", job.RecipientID),
			slog.Any("error", err))
		if q.onFailure != nil {
			q.onFailure(ctx, job, err)
		}
		q.failed.Add(1)
		metrics.RecordQueueMessage("consumed", q.cfg.Name, false)
		return
	}

	q.completed.Add(1)
	metrics.RecordQueueMessage("consumed", q.cfg.Name, true)
}

func (q *Memory) Enqueue(ctx context.Context, job model.DispatchJob) error {
	select {
	case q.jobs <- job:
		metrics.RecordQueueMessage("published", q.cfg.Name, true)
		return nil
	case <-ctx.Done():
		metrics.RecordQueueMessage("published", q.cfg.Name, false)
		return ctx.Err()
	}
}

func (q *Memory) Status(ctx context.Context) (Status, error) {
	return Status{
		Waiting:   len(q.jobs),
		Active:    int(q.active.Load()),
		Completed: int(q.completed.Load()),
		Failed:    int(q.failed.Load()),
	}, nil
}

func (q *Memory) Drain(ctx context.Context) error {
	for {
		select {
		case <-q.jobs:
			metrics.RecordQueueMessage("drained", q.cfg.Name, true)
		default:
			return nil
		}
	}
}
