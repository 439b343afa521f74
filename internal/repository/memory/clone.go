// Package memory holds process-local repositories used by tests and by the
// service when no database is configured.
package memory

import (
	"time"

	"github.com/spec-kit/crm-service/internal/domain"
)

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneAudit(entries []domain.AuditEntry) []domain.AuditEntry {
	if entries == nil {
		return nil
	}
	out := make([]domain.AuditEntry, len(entries))
	for i, entry := range entries {
		out[i] = entry
		if entry.Diff != nil {
			diff := make(domain.Diff, len(entry.Diff))
			for k, v := range entry.Diff {
				diff[k] = v
			}
			out[i].Diff = diff
		}
	}
	return out
}

func cloneCustomer(c *domain.Customer) *domain.Customer {
	out := *c
	out.AssignedTo = cloneStrings(c.AssignedTo)
	out.ConversionDate = cloneTime(c.ConversionDate)
	out.DeletedAt = cloneTime(c.DeletedAt)
	out.Audit = cloneAudit(c.Audit)
	return &out
}

func cloneTicket(t *domain.Ticket) *domain.Ticket {
	out := *t
	out.AssignedTo = cloneStrings(t.AssignedTo)
	out.Attachments = cloneStrings(t.Attachments)
	out.SLADeadline = cloneTime(t.SLADeadline)
	out.Audit = cloneAudit(t.Audit)
	return &out
}
