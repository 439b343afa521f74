package domain

import "time"

// Company is a tenant. Unapproved companies have no BusinessManager identity yet.
type Company struct {
	ID            string
	CompanyName   string
	BusinessEmail string
	ManagerName   string
	Industry      string
	Address       string
	Phone         string
	PasswordHash  string
	Approved      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
