package dto

import (
	"time"

	"github.com/spec-kit/crm-service/internal/domain"
)

// AuditEntryResponse is one entry of an audit trail.
type AuditEntryResponse struct {
	Action domain.AuditAction `json:"action"`
	By     string             `json:"by,omitempty"`
	ByName string             `json:"byName"`
	Note   string             `json:"note,omitempty"`
	Diff   domain.Diff        `json:"diff,omitempty"`
	At     time.Time          `json:"at"`
}

// AssigneeResponse is a populated employee reference.
type AssigneeResponse struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	Email  string            `json:"email"`
	Status domain.UserStatus `json:"status,omitempty"`
}
