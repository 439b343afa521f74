package dto

import (
	"time"

	"github.com/spec-kit/crm-service/internal/domain"
)

// UserRegisterRequest payload for admin-created identities.
type UserRegisterRequest struct {
	Name       string            `json:"name"`
	Email      string            `json:"email"`
	Password   string            `json:"password"`
	Role       domain.Role       `json:"role"`
	Department domain.Department `json:"department"`
	CompanyID  string            `json:"companyId"`
}

// UserLoginRequest payload for login.
type UserLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse is the public view of an identity.
type UserResponse struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Email          string            `json:"email"`
	Role           domain.Role       `json:"role"`
	Department     domain.Department `json:"department,omitempty"`
	CompanyID      string            `json:"companyId,omitempty"`
	Status         domain.UserStatus `json:"status"`
	TicketsHandled int               `json:"ticketsHandled"`
	JoinedAt       time.Time         `json:"joinedAt"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      UserResponse `json:"user"`
}

// EmployeeRequest payload for adding and updating employees.
type EmployeeRequest struct {
	Name       string            `json:"name"`
	Email      string            `json:"email"`
	Password   string            `json:"password"`
	Department domain.Department `json:"department"`
}

// EmployeeStatusResponse reports a status toggle.
type EmployeeStatusResponse struct {
	Status            domain.UserStatus `json:"status"`
	CustomersAffected int               `json:"customersAffected"`
	Employee          UserResponse      `json:"employee"`
}
