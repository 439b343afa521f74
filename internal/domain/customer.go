package domain

import "time"

// CustomerStatus distinguishes leads from converted customers.
type CustomerStatus string

const (
	CustomerStatusLead      CustomerStatus = "Lead"
	CustomerStatusConverted CustomerStatus = "Converted"
)

// Valid reports whether s is a known status.
func (s CustomerStatus) Valid() bool {
	return s == CustomerStatusLead || s == CustomerStatusConverted
}

// CustomerState mirrors soft deletion.
type CustomerState string

const (
	CustomerStateActive   CustomerState = "active"
	CustomerStateDeactive CustomerState = "deactive"
)

// Valid reports whether s is a known state.
func (s CustomerState) Valid() bool {
	return s == CustomerStateActive || s == CustomerStateDeactive
}

// Customer is a lead or customer owned by one company. CompanyID never changes.
type Customer struct {
	ID               string
	CompanyID        string
	Name             string
	ContactName      string
	Email            string
	Phone            string
	Location         string
	LeadSource       string
	CreatedBy        string
	CreatedByName    string
	Status           CustomerStatus
	State            CustomerState
	AssignedTo       []string
	ConversionDate   *time.Time
	ConversionSource string
	Audit            []AuditEntry
	DeletedAt        *time.Time
	DeletedBy        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsDeleted reports whether the customer was soft deleted.
func (c *Customer) IsDeleted() bool {
	return c.DeletedAt != nil
}

// HasAssignee reports whether employeeID is in AssignedTo.
func (c *Customer) HasAssignee(employeeID string) bool {
	for _, id := range c.AssignedTo {
		if id == employeeID {
			return true
		}
	}
	return false
}
