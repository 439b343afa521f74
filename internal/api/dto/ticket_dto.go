package dto

import (
	"time"

	"github.com/spec-kit/crm-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	CustomerID  string                `json:"customerId"`
	Subject     string                `json:"subject"`
	Description string                `json:"description"`
	Category    domain.TicketCategory `json:"category"`
	Priority    domain.TicketPriority `json:"priority"`
	Status      domain.TicketStatus   `json:"status"`
	AssignedTo  IDList                `json:"assignedTo"`
	Attachments []string              `json:"attachments"`
	SLADeadline string                `json:"slaDeadline"`
}

// CustomerBriefResponse is the populated customer of a ticket.
type CustomerBriefResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContactName string `json:"contactName,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

// TicketResponse provides full ticket info.
type TicketResponse struct {
	ID          string                 `json:"id"`
	TicketID    string                 `json:"ticketId"`
	CompanyID   string                 `json:"companyId"`
	CustomerID  string                 `json:"customerId"`
	Customer    *CustomerBriefResponse `json:"customer,omitempty"`
	Subject     string                 `json:"subject"`
	Description string                 `json:"description"`
	Category    domain.TicketCategory  `json:"category"`
	Priority    domain.TicketPriority  `json:"priority"`
	Status      domain.TicketStatus    `json:"status"`
	AssignedTo  []AssigneeResponse     `json:"assignedTo"`
	Attachments []string               `json:"attachments"`
	SLADeadline *time.Time             `json:"slaDeadline"`
	Audit       []AuditEntryResponse   `json:"audit"`
	CreatedAt   time.Time              `json:"createdAt"`
	UpdatedAt   time.Time              `json:"updatedAt"`
}

// CustomerTicketSummaryResponse is one row of the per-customer summary.
type CustomerTicketSummaryResponse struct {
	CustomerID    string `json:"customerId"`
	Name          string `json:"name"`
	ContactName   string `json:"contactName"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	TotalRaised   int    `json:"totalRaised"`
	TotalResolved int    `json:"totalResolved"`
}
