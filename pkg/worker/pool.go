package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/courierhq/courier/internal/logger"
	"github.com/courierhq/courier/pkg/metrics"
	"github.com/courierhq/courier/pkg/queue"
)

// Pool runs N delivery workers against the shared queue.
type Pool struct {
	config   *Config
	queue    queue.Queue
	registry *RegistryClient
	metrics  *metrics.WorkerMetrics
}

// NewPool creates a worker pool. Workers do not start until Run is called.
func NewPool(cfg *Config, q queue.Queue, registry *RegistryClient) (*Pool, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Pool{
		config:   cfg,
		queue:    q,
		registry: registry,
		metrics:  metrics.NewWorkerMetrics(),
	}, nil
}

// Run starts the workers and blocks until the context is cancelled and all
// in-flight work has finished.
func (p *Pool) Run(ctx context.Context) error {
	logger.Info("starting worker pool",
		"concurrency", p.config.Concurrency,
		"retry_interval", p.config.RetryInterval.String(),
		logger.KeyMaxAttempts, p.config.MaxAttempts,
	)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.sampleQueueDepth(ctx)
	}()

	for i := 1; i <= p.config.Concurrency; i++ {
		workerID := fmt.Sprintf("%s-%d", p.config.WorkerIDPrefix, i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.runWorker(ctx, workerID)
		}()
	}

	wg.Wait()
	logger.Info("worker pool stopped")
	return nil
}

// runWorker is one worker loop: pop, process, repeat until shutdown.
func (p *Pool) runWorker(ctx context.Context, workerID string) {
	p.metrics.WorkerStarted()
	defer p.metrics.WorkerStopped()

	logger.Info("worker started", logger.WorkerID(workerID))

	for {
		select {
		case <-ctx.Done():
			logger.Info("worker stopping", logger.WorkerID(workerID))
			return
		default:
		}

		item, err := p.queue.BlockingPop(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrEmpty) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			logger.Warn("queue pop failed",
				logger.WorkerID(workerID),
				logger.Err(err),
			)
			sleepCtx(ctx, time.Second)
			continue
		}

		p.process(ctx, workerID, item)
	}
}

// process handles one work item: enforce the attempt ceiling, confirm
// delivery, or schedule a retry.
func (p *Pool) process(ctx context.Context, workerID string, item *queue.WorkItem) {
	if !item.QueuedAt.IsZero() {
		p.metrics.ObserveQueueWait(workerID, time.Since(item.QueuedAt))
	}

	if item.AttemptCount >= p.config.MaxAttempts {
		p.markFailed(ctx, workerID, item)
		return
	}

	start := time.Now()
	err := p.registry.Deliver(ctx, item.MessageID, workerID)
	switch {
	case err == nil:
		p.metrics.RecordDelivered(workerID, time.Since(start))
		logger.Info("message delivered",
			logger.WorkerID(workerID),
			logger.MessageID(item.MessageID),
			logger.ClientID(item.ClientID),
			logger.Phone(item.SenderNumber),
			logger.Attempt(item.AttemptCount+1),
		)
	case errors.Is(err, ErrMessageNotFound):
		// Queue entry without a registry row. Drop it.
		p.metrics.RecordFailed(workerID, "orphan")
		logger.Warn("dropping orphaned queue entry",
			logger.WorkerID(workerID),
			logger.MessageID(item.MessageID),
		)
	case errors.Is(err, ErrTerminalState):
		// Already delivered or failed, most likely a duplicate queue entry.
		logger.Info("message already settled, dropping",
			logger.WorkerID(workerID),
			logger.MessageID(item.MessageID),
		)
	default:
		p.retry(ctx, workerID, item, err)
	}
}

// markFailed records the terminal failure and drops the message.
func (p *Pool) markFailed(ctx context.Context, workerID string, item *queue.WorkItem) {
	reason := fmt.Sprintf("Exceeded maximum attempts (%d)", p.config.MaxAttempts)
	if err := p.registry.UpdateStatus(ctx, item.MessageID, "failed", item.AttemptCount, reason); err != nil {
		logger.Error("failed to record terminal failure",
			logger.WorkerID(workerID),
			logger.MessageID(item.MessageID),
			logger.Err(err),
		)
	}
	p.metrics.RecordFailed(workerID, "max_attempts")
	logger.Error("message exceeded attempt ceiling",
		logger.WorkerID(workerID),
		logger.MessageID(item.MessageID),
		logger.Attempt(item.AttemptCount),
		logger.KeyMaxAttempts, p.config.MaxAttempts,
	)
}

// retry records the failed attempt, waits one retry interval, and pushes
// the message back onto the queue. The push uses a fresh context so a
// shutdown during the wait cannot lose the message.
func (p *Pool) retry(ctx context.Context, workerID string, item *queue.WorkItem, cause error) {
	next := item.AttemptCount + 1

	if err := p.registry.UpdateStatus(ctx, item.MessageID, "queued", next, cause.Error()); err != nil {
		logger.Warn("failed to record retry attempt",
			logger.WorkerID(workerID),
			logger.MessageID(item.MessageID),
			logger.Err(err),
		)
	}
	p.metrics.RecordRetry(workerID)

	logger.Warn("delivery failed, scheduling retry",
		logger.WorkerID(workerID),
		logger.MessageID(item.MessageID),
		logger.Attempt(next),
		logger.Err(cause),
	)

	sleepCtx(ctx, p.config.RetryInterval)

	item.AttemptCount = next
	pushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.queue.Push(pushCtx, item); err != nil {
		logger.Error("failed to requeue message",
			logger.WorkerID(workerID),
			logger.MessageID(item.MessageID),
			logger.Err(err),
		)
	}
}

// sampleQueueDepth refreshes the queue depth gauge until shutdown.
func (p *Pool) sampleQueueDepth(ctx context.Context) {
	ticker := time.NewTicker(p.config.QueueSampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			depth, err := p.queue.Length(ctx)
			if err != nil {
				continue
			}
			p.metrics.SetQueueSize(depth)
		}
	}
}

// sleepCtx waits for the duration or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
