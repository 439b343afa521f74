package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "Open"
	TicketStatusInProgress TicketStatus = "In Progress"
	TicketStatusResolved   TicketStatus = "Resolved"
	TicketStatusClosed     TicketStatus = "Closed"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// Done reports whether the ticket counts as resolved in summaries.
func (s TicketStatus) Done() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "Low"
	TicketPriorityMedium   TicketPriority = "Medium"
	TicketPriorityHigh     TicketPriority = "High"
	TicketPriorityCritical TicketPriority = "Critical"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityCritical:
		return true
	}
	return false
}

// TicketCategory buckets tickets by topic.
type TicketCategory string

const (
	TicketCategoryBilling  TicketCategory = "Billing"
	TicketCategoryDelivery TicketCategory = "Delivery"
	TicketCategorySupport  TicketCategory = "Support"
	TicketCategoryOther    TicketCategory = "Other"
)

// Valid reports whether c is a known category.
func (c TicketCategory) Valid() bool {
	switch c {
	case TicketCategoryBilling, TicketCategoryDelivery, TicketCategorySupport, TicketCategoryOther:
		return true
	}
	return false
}

// Ticket is a support request raised against a customer of the same company.
type Ticket struct {
	ID          string
	TicketID    string
	CompanyID   string
	CustomerID  string
	Subject     string
	Description string
	Category    TicketCategory
	Priority    TicketPriority
	Status      TicketStatus
	AssignedTo  []string
	Attachments []string
	SLADeadline *time.Time
	Audit       []AuditEntry
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
