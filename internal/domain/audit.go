package domain

import "time"

// AuditAction names what happened to an aggregate.
type AuditAction string

const (
	AuditCreated           AuditAction = "created"
	AuditUpdated           AuditAction = "updated"
	AuditConverted         AuditAction = "converted"
	AuditDeleted           AuditAction = "deleted"
	AuditRestored          AuditAction = "restored"
	AuditAssignmentRemoved AuditAction = "assignment_removed"
)

// AggregateType keys audit entries to the entity they describe.
type AggregateType string

const (
	AggregateCustomer AggregateType = "customer"
	AggregateTicket   AggregateType = "ticket"
)

// Change is a single field delta.
type Change struct {
	From any `json:"from"`
	To   any `json:"to"`
}

// Diff maps field names to their changes.
type Diff map[string]Change

// AuditEntry is immutable once appended.
type AuditEntry struct {
	Action AuditAction
	By     string
	ByName string
	Note   string
	Diff   Diff
	At     time.Time
}

// Actor is whoever performs a mutation, as read from a verified token.
type Actor struct {
	ID        string
	Name      string
	Role      Role
	CompanyID string
}

// NewAuditEntry stamps an entry for the actor.
func NewAuditEntry(actor Actor, action AuditAction, note string, diff Diff, at time.Time) AuditEntry {
	if len(diff) == 0 {
		diff = nil
	}
	return AuditEntry{
		Action: action,
		By:     actor.ID,
		ByName: actor.Name,
		Note:   note,
		Diff:   diff,
		At:     at,
	}
}
