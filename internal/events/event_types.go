package events

import (
	"time"

	"github.com/spec-kit/crm-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventCustomerCreated       EventType = "customer_created"
	EventCustomerUpdated       EventType = "customer_updated"
	EventCustomerConverted     EventType = "customer_converted"
	EventCustomerDeleted       EventType = "customer_deleted"
	EventCustomerRestored      EventType = "customer_restored"
	EventTicketCreated         EventType = "ticket_created"
	EventTicketUpdated         EventType = "ticket_updated"
	EventEmployeeStatusChanged EventType = "employee_status_changed"
	EventCompanyApproved       EventType = "company_approved"
	EventCompanyRejected       EventType = "company_rejected"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	ID   string      `json:"id,omitempty"`
	Name string      `json:"name,omitempty"`
	Role domain.Role `json:"role,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID            string               `json:"id"`
	Type          EventType            `json:"type"`
	AggregateType domain.AggregateType `json:"aggregate_type,omitempty"`
	AggregateID   string               `json:"aggregate_id"`
	CompanyID     string               `json:"company_id,omitempty"`
	Actor         Actor                `json:"actor"`
	Timestamp     time.Time            `json:"timestamp"`
	Payload       interface{}          `json:"payload"`
}

// ChangePayload carries the audit diff of an update.
type ChangePayload struct {
	Note string      `json:"note,omitempty"`
	Diff domain.Diff `json:"diff,omitempty"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TicketID   string                `json:"ticket_id"`
	CustomerID string                `json:"customer_id"`
	Priority   domain.TicketPriority `json:"priority"`
	Subject    string                `json:"subject"`
}

// EmployeeStatusChangedPayload payload.
type EmployeeStatusChangedPayload struct {
	OldStatus         domain.UserStatus `json:"old_status"`
	NewStatus         domain.UserStatus `json:"new_status"`
	CustomersAffected int               `json:"customers_affected"`
}

// CompanyDecisionPayload payload.
type CompanyDecisionPayload struct {
	CompanyName   string `json:"company_name"`
	BusinessEmail string `json:"business_email"`
}
