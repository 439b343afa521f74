package dto

import (
	"time"

	"github.com/spec-kit/crm-service/internal/domain"
)

// CreateCustomerRequest payload.
type CreateCustomerRequest struct {
	Name        string                `json:"name"`
	ContactName string                `json:"contactName"`
	Email       string                `json:"email"`
	Phone       string                `json:"phone"`
	Location    string                `json:"location"`
	LeadSource  string                `json:"leadSource"`
	Status      domain.CustomerStatus `json:"status"`
	AssignedTo  IDList                `json:"assignedTo"`
}

// CustomerResponse represents a customer with populated assignees and audit trail.
type CustomerResponse struct {
	ID               string                `json:"id"`
	CompanyID        string                `json:"companyId"`
	Name             string                `json:"name"`
	ContactName      string                `json:"contactName"`
	Email            string                `json:"email"`
	Phone            string                `json:"phone"`
	Location         string                `json:"location"`
	LeadSource       string                `json:"leadSource"`
	CreatedBy        string                `json:"createdBy,omitempty"`
	CreatedByName    string                `json:"createdByName"`
	Status           domain.CustomerStatus `json:"status"`
	State            domain.CustomerState  `json:"state"`
	AssignedTo       []AssigneeResponse    `json:"assignedTo"`
	ConversionDate   *time.Time            `json:"conversionDate"`
	ConversionSource string                `json:"conversionSource,omitempty"`
	Audit            []AuditEntryResponse  `json:"audit"`
	DeletedAt        *time.Time            `json:"deletedAt"`
	DeletedBy        string                `json:"deletedBy,omitempty"`
	CreatedAt        time.Time             `json:"createdAt"`
	UpdatedAt        time.Time             `json:"updatedAt"`
}
