package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/observability"
	"github.com/spec-kit/crm-service/internal/repository"
)

const defaultCascadeConcurrency = 8

// CascadeCoordinator removes a deactivated employee from every live customer
// of the company. Per-customer saves are independent; a failed step is queued
// for retry instead of rolling back the others.
type CascadeCoordinator struct {
	customers   repository.CustomerRepository
	queue       repository.CascadeQueue
	metrics     *observability.Metrics
	logger      *zap.Logger
	now         Clock
	concurrency int
}

// CascadeDependencies bundles collaborators for the coordinator.
type CascadeDependencies struct {
	CustomerRepo repository.CustomerRepository
	Queue        repository.CascadeQueue
	Metrics      *observability.Metrics
	Logger       *zap.Logger
	Clock        Clock
	Concurrency  int
}

// NewCascadeCoordinator builds the coordinator.
func NewCascadeCoordinator(deps CascadeDependencies) *CascadeCoordinator {
	concurrency := deps.Concurrency
	if concurrency <= 0 {
		concurrency = defaultCascadeConcurrency
	}
	return &CascadeCoordinator{
		customers:   deps.CustomerRepo,
		queue:       deps.Queue,
		metrics:     deps.Metrics,
		logger:      orNopLogger(deps.Logger).Named("cascade"),
		now:         orDefaultClock(deps.Clock),
		concurrency: concurrency,
	}
}

// RemoveEmployee fans out over the employee's customers and returns how many
// were actually updated.
func (c *CascadeCoordinator) RemoveEmployee(ctx context.Context, actor domain.Actor, employee *domain.User) (int, error) {
	customers, err := c.customers.List(ctx, repository.CustomerFilter{
		CompanyID:      employee.CompanyID,
		AssignedTo:     employee.ID,
		ExcludeDeleted: true,
	})
	if err != nil {
		return 0, err
	}

	var removed, failed atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(c.concurrency)
	for _, customer := range customers {
		job := domain.CascadeJob{
			CustomerID:   customer.ID,
			CompanyID:    employee.CompanyID,
			EmployeeID:   employee.ID,
			EmployeeName: employee.Name,
			ActorID:      actor.ID,
			ActorName:    actorName(actor),
		}
		g.Go(func() error {
			ok, err := c.Step(ctx, job)
			if err != nil {
				failed.Add(1)
				c.retry(ctx, job, err)
				return nil
			}
			if ok {
				removed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	c.metrics.RecordCascade(int(removed.Load()), int(failed.Load()))
	c.logger.Info("employee removed from customers",
		zap.String("employee_id", employee.ID),
		zap.Int64("removed", removed.Load()),
		zap.Int64("failed", failed.Load()))
	return int(removed.Load()), nil
}

// Step applies one job. It reports false without error when there was nothing
// to do: the customer is gone, soft deleted, or no longer lists the employee.
func (c *CascadeCoordinator) Step(ctx context.Context, job domain.CascadeJob) (bool, error) {
	customer, err := c.customers.GetByID(ctx, job.CustomerID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if customer.IsDeleted() || customer.CompanyID != job.CompanyID || !customer.HasAssignee(job.EmployeeID) {
		return false, nil
	}

	remaining := make([]string, 0, len(customer.AssignedTo))
	for _, id := range customer.AssignedTo {
		if id != job.EmployeeID {
			remaining = append(remaining, id)
		}
	}
	customer.AssignedTo = remaining

	actor := domain.Actor{ID: job.ActorID, Name: job.ActorName, CompanyID: job.CompanyID}
	note := fmt.Sprintf("Removed %s (%s) from assignment after deactivation", job.EmployeeName, job.EmployeeID)
	entry := domain.NewAuditEntry(actor, domain.AuditAssignmentRemoved, note, nil, c.now())
	entry.ByName = actorName(actor)
	if err := c.customers.Update(ctx, customer, entry); err != nil {
		return false, err
	}
	recordAudit(c.metrics, domain.AggregateCustomer, entry)
	return true, nil
}

// Requeue schedules job for another attempt.
func (c *CascadeCoordinator) Requeue(ctx context.Context, job domain.CascadeJob) error {
	if c.queue == nil {
		return errors.New("cascade queue not configured")
	}
	job.Attempt++
	return c.queue.Enqueue(ctx, job)
}

func (c *CascadeCoordinator) retry(ctx context.Context, job domain.CascadeJob, cause error) {
	fields := []zap.Field{
		zap.String("customer_id", job.CustomerID),
		zap.String("employee_id", job.EmployeeID),
		zap.Error(cause),
	}
	if err := c.Requeue(context.WithoutCancel(ctx), job); err != nil {
		c.logger.Error("cascade step dropped", append(fields, zap.NamedError("enqueue_error", err))...)
		return
	}
	c.logger.Warn("cascade step queued for retry", fields...)
}
