package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/observability"
	"github.com/spec-kit/crm-service/internal/repository"
	"github.com/spec-kit/crm-service/internal/service"
)

// Retry outcomes reported to metrics.
const (
	OutcomeRemoved  = "removed"
	OutcomeNoop     = "noop"
	OutcomeRequeued = "requeued"
	OutcomeDropped  = "dropped"
)

// CascadeWorker drains the cascade retry queue.
type CascadeWorker struct {
	queue       repository.CascadeQueue
	cascade     *service.CascadeCoordinator
	metrics     *observability.Metrics
	logger      *zap.Logger
	maxAttempts int
	poll        time.Duration
}

// NewCascadeWorker builds a worker. poll bounds each blocking dequeue.
func NewCascadeWorker(queue repository.CascadeQueue, cascade *service.CascadeCoordinator, metrics *observability.Metrics, logger *zap.Logger, maxAttempts int, poll time.Duration) *CascadeWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if poll <= 0 {
		poll = 5 * time.Second
	}
	return &CascadeWorker{
		queue:       queue,
		cascade:     cascade,
		metrics:     metrics,
		logger:      logger.Named("cascade_worker"),
		maxAttempts: maxAttempts,
		poll:        poll,
	}
}

// Run processes jobs until ctx is cancelled.
func (w *CascadeWorker) Run(ctx context.Context) {
	w.logger.Info("cascade worker started", zap.Int("max_attempts", w.maxAttempts))
	defer w.logger.Info("cascade worker stopped")
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := w.queue.Dequeue(ctx, w.poll)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Warn("dequeue failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.poll):
			}
			continue
		}
		if job == nil {
			continue
		}
		w.Process(ctx, *job)
	}
}

// Process runs one job and returns its outcome.
func (w *CascadeWorker) Process(ctx context.Context, job domain.CascadeJob) string {
	outcome := w.process(ctx, job)
	w.metrics.RecordCascadeRetry(outcome)
	return outcome
}

func (w *CascadeWorker) process(ctx context.Context, job domain.CascadeJob) string {
	fields := []zap.Field{
		zap.String("customer_id", job.CustomerID),
		zap.String("employee_id", job.EmployeeID),
		zap.Int("attempt", job.Attempt),
	}
	removed, err := w.cascade.Step(ctx, job)
	if err == nil {
		if removed {
			w.logger.Info("cascade retry applied", fields...)
			return OutcomeRemoved
		}
		return OutcomeNoop
	}
	if job.Attempt >= w.maxAttempts {
		w.logger.Error("cascade job dropped", append(fields, zap.Error(err))...)
		return OutcomeDropped
	}
	if qerr := w.cascade.Requeue(ctx, job); qerr != nil {
		w.logger.Error("cascade job dropped", append(fields, zap.Error(err), zap.NamedError("enqueue_error", qerr))...)
		return OutcomeDropped
	}
	w.logger.Warn("cascade retry failed, requeued", append(fields, zap.Error(err))...)
	return OutcomeRequeued
}
