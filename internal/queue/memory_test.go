package queue_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/brightline/outreach-backend/internal/errors"
	"github.com/brightline/outreach-backend/internal/model"
	"github.com/brightline/outreach-backend/internal/queue"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func job(recipientID string) model.DispatchJob {
	return model.DispatchJob{CampaignID: 1, RecipientID: recipientID, ChannelID: "C01"}
}

func TestMemoryProcessesJobs(t *testing.T) {
	var handled atomic.Int64
	q := queue.NewMemory(queue.MemoryConfig{Workers: 2},
		func(ctx context.Context, j model.DispatchJob) error {
			handled.Add(1)
			return nil
		}, nil, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(ctx, job("U1")))
	}

	require.Eventually(t, func() bool {
		st, _ := q.Status(ctx)
		return st.Completed == 5
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(5), handled.Load())
}

func TestMemoryRetriesUntilAttemptCap(t *testing.T) {
	var attempts atomic.Int64
	var failures atomic.Int64
	var lastErr error

	q := queue.NewMemory(queue.MemoryConfig{
		Workers:        1,
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
	}, func(ctx context.Context, j model.DispatchJob) error {
		attempts.Add(1)
		return errors.New("transient failure")
	}, func(ctx context.Context, j model.DispatchJob, err error) {
		failures.Add(1)
		lastErr = err
	}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	require.NoError(t, q.Enqueue(ctx, job("U1")))

	require.Eventually(t, func() bool {
		st, _ := q.Status(ctx)
		return st.Failed == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, int64(3), attempts.Load(), "exactly MaxAttempts tries")
	assert.Equal(t, int64(1), failures.Load(), "failure handler runs once")
	assert.ErrorContains(t, lastErr, "transient failure")
}

func TestMemoryPermanentErrorShortCircuits(t *testing.T) {
	var attempts atomic.Int64
	q := queue.NewMemory(queue.MemoryConfig{
		Workers:        1,
		MaxAttempts:    5,
		InitialBackoff: time.Millisecond,
	}, func(ctx context.Context, j model.DispatchJob) error {
		attempts.Add(1)
		return appErrors.Permanent(errors.New("bad job"))
	}, nil, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	require.NoError(t, q.Enqueue(ctx, job("U1")))

	require.Eventually(t, func() bool {
		st, _ := q.Status(ctx)
		return st.Failed == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(1), attempts.Load())
}

func TestMemoryDrainDiscardsWaiting(t *testing.T) {
	// No Start: jobs stay buffered.
	q := queue.NewMemory(queue.MemoryConfig{Workers: 1, BufferSize: 8},
		func(ctx context.Context, j model.DispatchJob) error { return nil },
		nil, discardLogger())

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		require.NoError(t, q.Enqueue(ctx, job("U1")))
	}

	st, err := q.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, st.Waiting)

	require.NoError(t, q.Drain(ctx))

	st, err = q.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Waiting)
}

func TestMemoryEnqueueHonorsCancelledContext(t *testing.T) {
	q := queue.NewMemory(queue.MemoryConfig{Workers: 1, BufferSize: 1},
		func(ctx context.Context, j model.DispatchJob) error { return nil },
		nil, discardLogger())

	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, job("U1"))) // fills the buffer

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err := q.Enqueue(cancelled, job("U2"))
	assert.ErrorIs(t, err, context.Canceled)
}
