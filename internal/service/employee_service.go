package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/crm-service/internal/auth"
	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/events"
	"github.com/spec-kit/crm-service/internal/repository"
	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

// EmployeeService manages employees of a company. Employees are identities
// with RoleEmployee; every write goes through the user repository.
type EmployeeService struct {
	users      repository.UserRepository
	cascade    *CascadeCoordinator
	dispatcher events.Dispatcher
	logger     *zap.Logger
	bcryptCost int
}

// EmployeeDependencies bundles collaborators for the employee service.
type EmployeeDependencies struct {
	UserRepo   repository.UserRepository
	Cascade    *CascadeCoordinator
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	BcryptCost int
}

// EmployeeInput carries add and update payloads. An empty password on update
// keeps the current one.
type EmployeeInput struct {
	Name       string
	Email      string
	Password   string
	Department domain.Department
}

// StatusToggleResult reports a status change and its cascade.
type StatusToggleResult struct {
	Employee          *domain.User
	CustomersAffected int
	Message           string
}

// NewEmployeeService constructs the service.
func NewEmployeeService(deps EmployeeDependencies) *EmployeeService {
	return &EmployeeService{
		users:      deps.UserRepo,
		cascade:    deps.Cascade,
		dispatcher: deps.Dispatcher,
		logger:     orNopLogger(deps.Logger).Named("employees"),
		bcryptCost: deps.BcryptCost,
	}
}

// AddEmployee creates an active employee in the actor's company.
func (s *EmployeeService) AddEmployee(ctx context.Context, actor domain.Actor, input EmployeeInput) (*domain.User, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = normalizeEmail(input.Email)
	if input.Name == "" || input.Email == "" || input.Password == "" || input.Department == "" {
		return nil, apperrors.NewValidationError("All fields are required", nil)
	}
	if err := requireTenant(actor); err != nil {
		return nil, err
	}
	if !input.Department.Valid() {
		return nil, invalidField("department")
	}
	if _, err := s.users.GetByEmail(ctx, input.Email); err == nil {
		return nil, apperrors.NewConflict("Employee already exists", nil)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	employee := &domain.User{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: hash,
		Role:         domain.RoleEmployee,
		Department:   input.Department,
		CompanyID:    actor.CompanyID,
		Status:       domain.UserStatusActive,
	}
	if err := s.users.Create(ctx, employee); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("Employee already exists", nil)
		}
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("employee added", zap.String("employee_id", employee.ID), zap.String("company_id", employee.CompanyID))
	return employee, nil
}

// ListEmployees returns the company's employees newest first.
func (s *EmployeeService) ListEmployees(ctx context.Context, actor domain.Actor) ([]domain.User, error) {
	if err := requireTenant(actor); err != nil {
		return nil, err
	}
	employees, err := s.users.List(ctx, repository.UserFilter{CompanyID: actor.CompanyID, Role: domain.RoleEmployee})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return employees, nil
}

// UpdateEmployee replaces name, email and department, and the password when given.
func (s *EmployeeService) UpdateEmployee(ctx context.Context, actor domain.Actor, id string, input EmployeeInput) (*domain.User, error) {
	employee, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if name := strings.TrimSpace(input.Name); name != "" {
		employee.Name = name
	}
	if input.Department != "" {
		if !input.Department.Valid() {
			return nil, invalidField("department")
		}
		employee.Department = input.Department
	}
	if email := normalizeEmail(input.Email); email != "" && email != employee.Email {
		other, err := s.users.GetByEmail(ctx, email)
		switch {
		case err == nil && other.ID != employee.ID:
			return nil, apperrors.NewConflict("Another employee already uses this email", nil)
		case err != nil && !errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.MapError(err)
		}
		employee.Email = email
	}
	if strings.TrimSpace(input.Password) != "" {
		hash, err := auth.HashPassword(input.Password, s.bcryptCost)
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		employee.PasswordHash = hash
	}

	if err := s.users.Update(ctx, employee); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("Another employee already uses this email", nil)
		}
		return nil, storeError(err, "Employee")
	}
	return employee, nil
}

// ToggleStatus flips Active and Inactive. Deactivation removes the employee
// from the company's live customers.
func (s *EmployeeService) ToggleStatus(ctx context.Context, actor domain.Actor, id string) (*StatusToggleResult, error) {
	employee, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	oldStatus := employee.Status
	newStatus := domain.UserStatusInactive
	if oldStatus != domain.UserStatusActive {
		newStatus = domain.UserStatusActive
	}
	employee.Status = newStatus
	if err := s.users.Update(ctx, employee); err != nil {
		return nil, storeError(err, "Employee")
	}

	result := &StatusToggleResult{Employee: employee, Message: "Employee activated successfully"}
	if newStatus == domain.UserStatusInactive {
		result.Message = "Employee deactivated successfully"
		if s.cascade != nil {
			removed, err := s.cascade.RemoveEmployee(ctx, actor, employee)
			if err != nil {
				s.logger.Error("cascade listing failed", zap.String("employee_id", employee.ID), zap.Error(err))
			}
			result.CustomersAffected = removed
		}
	}

	publish(ctx, s.dispatcher, s.logger, events.Event{
		Type:        events.EventEmployeeStatusChanged,
		AggregateID: employee.ID,
		CompanyID:   employee.CompanyID,
		Actor:       eventActor(actor),
		Payload: events.EmployeeStatusChangedPayload{
			OldStatus:         oldStatus,
			NewStatus:         newStatus,
			CustomersAffected: result.CustomersAffected,
		},
	})
	return result, nil
}

func (s *EmployeeService) load(ctx context.Context, actor domain.Actor, id string) (*domain.User, error) {
	if err := requireTenant(actor); err != nil {
		return nil, err
	}
	if !isUUID(id) {
		return nil, apperrors.NewValidationError("Invalid employee ID", nil)
	}
	employee, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "Employee")
	}
	if employee.Role != domain.RoleEmployee {
		return nil, apperrors.NewNotFound("Employee", nil)
	}
	if employee.CompanyID != actor.CompanyID {
		return nil, apperrors.NewForbidden("Forbidden")
	}
	return employee, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
