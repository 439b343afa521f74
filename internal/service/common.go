package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/events"
	"github.com/spec-kit/crm-service/internal/observability"
	"github.com/spec-kit/crm-service/internal/repository"
	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

// Clock returns the current time; tests pin it.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

func orDefaultClock(c Clock) Clock {
	if c == nil {
		return systemClock
	}
	return c
}

func orNopLogger(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// requireTenant rejects actors without a company.
func requireTenant(actor domain.Actor) error {
	if actor.CompanyID == "" {
		return apperrors.NewValidationError("Company ID missing in token", nil)
	}
	return nil
}

// storeError maps repository failures to domain errors.
func storeError(err error, resource string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound(resource, nil)
	default:
		return apperrors.MapError(err)
	}
}

func eventActor(actor domain.Actor) events.Actor {
	return events.Actor{ID: actor.ID, Name: actor.Name, Role: actor.Role}
}

func publish(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if err := dispatcher.Publish(ctx, event); err != nil {
		logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.String("aggregate_id", event.AggregateID), zap.Error(err))
	}
}

func recordAudit(metrics *observability.Metrics, aggregate domain.AggregateType, entries ...domain.AuditEntry) {
	for _, entry := range entries {
		metrics.RecordAudit(string(aggregate), string(entry.Action))
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
