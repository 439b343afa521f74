package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/crm-service/internal/config"
	"github.com/spec-kit/crm-service/internal/events"
)

// NotificationService handles emitting notifications for domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     orNopLogger(logger).Named("notifications"),
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, t := range []events.EventType{
		events.EventCustomerCreated,
		events.EventCustomerUpdated,
		events.EventCustomerConverted,
		events.EventCustomerDeleted,
		events.EventCustomerRestored,
		events.EventTicketUpdated,
	} {
		n.dispatcher.Subscribe(t, n.handleAuditEvent)
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventEmployeeStatusChanged, n.handleEmployeeStatusChanged)
	n.dispatcher.Subscribe(events.EventCompanyApproved, n.handleCompanyDecision)
	n.dispatcher.Subscribe(events.EventCompanyRejected, n.handleCompanyDecision)
}

func (n *NotificationService) handleAuditEvent(ctx context.Context, event events.Event) error {
	n.logger.Info(string(event.Type),
		zap.String("aggregate_type", string(event.AggregateType)),
		zap.String("aggregate_id", event.AggregateID),
		zap.String("company_id", event.CompanyID),
		zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketCreated", zap.String("ticket_id", event.AggregateID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleEmployeeStatusChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("EmployeeStatusChanged", zap.String("employee_id", event.AggregateID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleCompanyDecision(ctx context.Context, event events.Event) error {
	n.logger.Info("CompanyDecision", zap.String("event_type", string(event.Type)), zap.String("company_id", event.AggregateID))
	n.sendEmailNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("aggregate_id", event.AggregateID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("aggregate_id", event.AggregateID),
		zap.String("event_type", string(event.Type)))
}
