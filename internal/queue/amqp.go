// internal/queue/amqp.go
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/streadway/amqp"

	appErrors "github.com/brightline/outreach-backend/internal/errors"
	"github.com/brightline/outreach-backend/internal/model"
	"github.com/brightline/outreach-backend/pkg/metrics"
)

const retryCountHeader = "x-retry-count"

// AMQPConfig configures the RabbitMQ-backed queue.
type AMQPConfig struct {
	URL             string
	QueueName       string
	DeadLetterQueue string
	Prefetch        int
	Workers         int
	MaxAttempts     int
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
}

// AMQP is the durable dispatch queue backed by RabbitMQ. Jobs are published
// persistent to a durable queue; consumers ack manually, so an unacked job
// becomes visible again after a worker crash (at-least-once). Bounded
// retries are implemented by republishing with an incremented
// x-retry-count header and acking the original delivery.
type AMQP struct {
	cfg     AMQPConfig
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *slog.Logger

	mu        sync.Mutex
	active    atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

func NewAMQP(cfg AMQPConfig, logger *slog.Logger) (*AMQP, error) {
	if cfg.QueueName == "" {
		cfg.QueueName = "campaign.dispatch"
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 50
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 15 * time.Second
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}

	q := &AMQP{cfg: cfg, conn: conn, channel: ch, logger: logger}
	if err := q.declare(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("queue setup failed: %w", err)
	}
	return q, nil
}

func (q *AMQP) declare(ch *amqp.Channel) error {
	if _, err := ch.QueueDeclare(
		q.cfg.QueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		return err
	}
	if q.cfg.DeadLetterQueue != "" {
		if _, err := ch.QueueDeclare(q.cfg.DeadLetterQueue, true, false, false, false, nil); err != nil {
			return err
		}
	}
	return nil
}

func (q *AMQP) Close() error {
	if err := q.channel.Close(); err != nil {
		q.conn.Close()
		return err
	}
	return q.conn.Close()
}

// Enqueue persists the job to the durable queue. It returns once the broker
// accepted the publish, not once the job is processed.
func (q *AMQP) Enqueue(ctx context.Context, job model.DispatchJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal dispatch job: %w", err)
	}

	q.mu.Lock()
	err = q.channel.Publish("", q.cfg.QueueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
		Headers:      amqp.Table{retryCountHeader: int32(0)},
	})
	q.mu.Unlock()

	metrics.RecordQueueMessage("published", q.cfg.QueueName, err == nil)
	if err != nil {
		return fmt.Errorf("publish dispatch job: %w", err)
	}
	return nil
}

func (q *AMQP) Status(ctx context.Context) (Status, error) {
	q.mu.Lock()
	state, err := q.channel.QueueInspect(q.cfg.QueueName)
	q.mu.Unlock()
	if err != nil {
		return Status{}, fmt.Errorf("inspect queue: %w", err)
	}
	return Status{
		Waiting:   state.Messages,
		Active:    int(q.active.Load()),
		Completed: int(q.completed.Load()),
		Failed:    int(q.failed.Load()),
	}, nil
}

func (q *AMQP) Drain(ctx context.Context) error {
	q.mu.Lock()
	n, err := q.channel.QueuePurge(q.cfg.QueueName, false)
	q.mu.Unlock()
	if err != nil {
		return fmt.Errorf("purge queue: %w", err)
	}
	q.logger.Info("queue drained", slog.String("queue", q.cfg.QueueName), slog.Int("removed", n))
	return nil
}

// Consume pulls jobs with a worker pool until ctx is cancelled. Each worker
// handles one delivery at a time; acknowledgements are manual.
func (q *AMQP) Consume(ctx context.Context, handler Handler, onFailure FailureHandler) error {
	ch, err := q.conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp consume channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Qos(q.cfg.Prefetch, 0, false); err != nil {
		return fmt.Errorf("qos configuration failed: %w", err)
	}

	deliveries, err := ch.Consume(
		q.cfg.QueueName,
		"",
		false, // autoAck
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	for i := 0; i < q.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-deliveries:
					if !ok {
						return
					}
					q.handleDelivery(ctx, ch, msg, handler, onFailure)
				}
			}
		}()
	}

	<-ctx.Done()
	wg.Wait()
	return nil
}

func (q *AMQP) handleDelivery(ctx context.Context, ch *amqp.Channel, msg amqp.Delivery, handler Handler, onFailure FailureHandler) {
	var job model.DispatchJob
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		// Malformed payload is permanent; reject straight to the broker.
		q.logger.Error("failed to unmarshal dispatch job", slog.Any("error", err))
		_ = msg.Reject(false)
		q.failed.Add(1)
		return
	}

	attempt := deliveryAttempt(msg.Headers)

	q.active.Add(1)
	err := handler(ctx, job)
	q.active.Add(-1)

	if err == nil {
		_ = msg.Ack(false)
		q.completed.Add(1)
		metrics.RecordQueueMessage("consumed", q.cfg.QueueName, true)
		return
	}

	if appErrors.IsPermanent(err) || attempt >= q.cfg.MaxAttempts {
		q.logger.Error("job permanently failed",
			slog.Int("campaign_id", job.CampaignID),
			slog.String("recipient_id", job.RecipientID),
			slog.Int("attempt", attempt),
			slog.Any("error", err))
		if onFailure != nil {
			onFailure(ctx, job, err)
		}
		q.deadLetter(msg.Body)
		_ = msg.Ack(false)
		q.failed.Add(1)
		metrics.RecordQueueMessage("consumed", q.cfg.QueueName, false)
		return
	}

	q.logger.Warn("job failed, scheduling retry",
		slog.Int("campaign_id", job.CampaignID),
		slog.String("recipient_id", job.RecipientID),
		slog.Int("attempt", attempt),
		slog.Any("error", err))
	metrics.RecordQueueMessage("retried", q.cfg.QueueName, true)

	q.sleepBackoff(ctx, attempt)
	if pubErr := q.republish(ch, msg.Body, attempt+1); pubErr != nil {
		// Could not requeue; fall back to broker redelivery.
		q.logger.Error("failed to republish job", slog.Any("error", pubErr))
		_ = msg.Nack(false, true)
		return
	}
	_ = msg.Ack(false)
}

func (q *AMQP) republish(ch *amqp.Channel, body []byte, attempt int) error {
	return ch.Publish("", q.cfg.QueueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
		Headers:      amqp.Table{retryCountHeader: int32(attempt)},
	})
}

func (q *AMQP) deadLetter(body []byte) {
	if q.cfg.DeadLetterQueue == "" {
		return
	}
	q.mu.Lock()
	err := q.channel.Publish("", q.cfg.DeadLetterQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	q.mu.Unlock()
	if err != nil {
		q.logger.Error("failed to dead-letter job", slog.Any("error", err))
	}
}

func (q *AMQP) sleepBackoff(ctx context.Context, attempt int) {
	backoff := q.cfg.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff >= q.cfg.MaxBackoff {
			backoff = q.cfg.MaxBackoff
			break
		}
	}
	timer := time.NewTimer(backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// deliveryAttempt reads how many processing attempts this delivery already
// represents. The first delivery carries header 0 and counts as attempt 1.
func deliveryAttempt(headers amqp.Table) int {
	if headers == nil {
		return 1
	}
	switch v := headers[retryCountHeader].(type) {
	case int32:
		return int(v) + 1
	case int64:
		return int(v) + 1
	case int:
		return v + 1
	default:
		return 1
	}
}
