package domain

import "time"

// Role identifies what an identity may do.
type Role string

const (
	RoleAdmin           Role = "Admin"
	RoleManager         Role = "Manager"
	RoleBusinessManager Role = "BusinessManager"
	RoleEmployee        Role = "Employee"
	RoleSupport         Role = "Support"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleBusinessManager, RoleEmployee, RoleSupport:
		return true
	}
	return false
}

// UserStatus represents lifecycle states for an identity.
type UserStatus string

const (
	UserStatusActive   UserStatus = "Active"
	UserStatusInactive UserStatus = "Inactive"
)

// Department groups employees inside a company.
type Department string

const (
	DepartmentTechnical Department = "Technical"
	DepartmentSupport   Department = "Support"
	DepartmentSales     Department = "Sales"
)

// Valid reports whether d is a known department.
func (d Department) Valid() bool {
	switch d {
	case DepartmentTechnical, DepartmentSupport, DepartmentSales:
		return true
	}
	return false
}

// User is the single identity record. Employees are users with RoleEmployee;
// admins have no company.
type User struct {
	ID             string
	Name           string
	Email          string
	PasswordHash   string
	Role           Role
	Department     Department
	CompanyID      string
	Status         UserStatus
	TicketsHandled int
	JoinedAt       time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsActive reports whether the identity may authenticate and be assigned work.
func (u *User) IsActive() bool {
	return u != nil && u.Status == UserStatusActive
}
