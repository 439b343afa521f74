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

// Company decisions accepted by Decide.
const (
	CompanyDecisionApproved = "approved"
	CompanyDecisionRejected = "rejected"
)

// CompanyService runs tenant registration and the admin approval workflow.
type CompanyService struct {
	companies  repository.CompanyRepository
	users      repository.UserRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	bcryptCost int
}

// CompanyDependencies bundles collaborators for the company service.
type CompanyDependencies struct {
	CompanyRepo repository.CompanyRepository
	UserRepo    repository.UserRepository
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	BcryptCost  int
}

// CompanyRegisterInput is the public registration payload.
type CompanyRegisterInput struct {
	CompanyName   string
	BusinessEmail string
	ManagerName   string
	Password      string
	Industry      string
	Address       string
	Phone         string
}

// CompanyStats summarises the platform for admins.
type CompanyStats struct {
	TotalCompanies    int
	ApprovedCompanies int
	TotalEmployees    int
}

// ApprovedCompany is an approved tenant with its employee headcount.
type ApprovedCompany struct {
	Company       domain.Company
	EmployeeCount int
}

// NewCompanyService constructs the service.
func NewCompanyService(deps CompanyDependencies) *CompanyService {
	return &CompanyService{
		companies:  deps.CompanyRepo,
		users:      deps.UserRepo,
		dispatcher: deps.Dispatcher,
		logger:     orNopLogger(deps.Logger).Named("companies"),
		bcryptCost: deps.BcryptCost,
	}
}

// Register stores an unapproved company.
func (s *CompanyService) Register(ctx context.Context, input CompanyRegisterInput) (*domain.Company, error) {
	company := &domain.Company{
		CompanyName:   strings.TrimSpace(input.CompanyName),
		BusinessEmail: normalizeEmail(input.BusinessEmail),
		ManagerName:   strings.TrimSpace(input.ManagerName),
		Industry:      strings.TrimSpace(input.Industry),
		Address:       strings.TrimSpace(input.Address),
		Phone:         strings.TrimSpace(input.Phone),
	}
	if company.CompanyName == "" || company.BusinessEmail == "" || company.ManagerName == "" ||
		input.Password == "" || company.Industry == "" {
		return nil, apperrors.NewValidationError("companyName, businessEmail, managerName, password and industry are required", nil)
	}

	taken, err := s.emailTaken(ctx, company.BusinessEmail)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if taken {
		return nil, apperrors.NewConflict("Company already registered.", nil)
	}

	if company.PasswordHash, err = auth.HashPassword(input.Password, s.bcryptCost); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if err := s.companies.Create(ctx, company); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("Company already registered.", nil)
		}
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("company registered", zap.String("company_id", company.ID))
	return company, nil
}

// Stats counts companies, approved companies and employees.
func (s *CompanyService) Stats(ctx context.Context) (*CompanyStats, error) {
	approved := true
	total, err := s.companies.Count(ctx, repository.CompanyFilter{})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	approvedCount, err := s.companies.Count(ctx, repository.CompanyFilter{Approved: &approved})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	employees, err := s.users.Count(ctx, repository.UserFilter{Role: domain.RoleEmployee})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &CompanyStats{TotalCompanies: total, ApprovedCompanies: approvedCount, TotalEmployees: employees}, nil
}

// Pending lists companies awaiting a decision.
func (s *CompanyService) Pending(ctx context.Context) ([]domain.Company, error) {
	approved := false
	companies, err := s.companies.List(ctx, repository.CompanyFilter{Approved: &approved})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return companies, nil
}

// Approved lists approved companies with their employee counts.
func (s *CompanyService) Approved(ctx context.Context) ([]ApprovedCompany, error) {
	approved := true
	companies, err := s.companies.List(ctx, repository.CompanyFilter{Approved: &approved})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	out := make([]ApprovedCompany, 0, len(companies))
	for _, company := range companies {
		count, err := s.users.Count(ctx, repository.UserFilter{CompanyID: company.ID, Role: domain.RoleEmployee})
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		out = append(out, ApprovedCompany{Company: company, EmployeeCount: count})
	}
	return out, nil
}

// Decide approves or rejects a pending company and returns the outcome message.
// Approval creates the BusinessManager identity with the registration password.
func (s *CompanyService) Decide(ctx context.Context, actor domain.Actor, id, decision string) (string, error) {
	decision = strings.ToLower(strings.TrimSpace(decision))
	if decision != CompanyDecisionApproved && decision != CompanyDecisionRejected {
		return "", apperrors.NewValidationError(`status must be "approved" or "rejected"`, nil)
	}
	if !isUUID(id) {
		return "", apperrors.NewNotFound("Company", nil)
	}
	company, err := s.companies.GetByID(ctx, id)
	if err != nil {
		return "", storeError(err, "Company")
	}

	event := events.Event{
		AggregateID: company.ID,
		CompanyID:   company.ID,
		Actor:       eventActor(actor),
		Payload:     events.CompanyDecisionPayload{CompanyName: company.CompanyName, BusinessEmail: company.BusinessEmail},
	}

	if decision == CompanyDecisionRejected {
		if err := s.companies.Delete(ctx, company.ID); err != nil {
			return "", storeError(err, "Company")
		}
		s.logger.Info("company rejected", zap.String("company_id", company.ID))
		event.Type = events.EventCompanyRejected
		publish(ctx, s.dispatcher, s.logger, event)
		return "Company rejected and removed.", nil
	}

	if company.Approved {
		return "", apperrors.NewConflict("Company already approved", nil)
	}
	manager := &domain.User{
		Name:         company.ManagerName,
		Email:        company.BusinessEmail,
		PasswordHash: company.PasswordHash,
		Role:         domain.RoleBusinessManager,
		CompanyID:    company.ID,
		Status:       domain.UserStatusActive,
	}
	if err := s.users.Create(ctx, manager); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return "", apperrors.NewConflict("Business Manager already exists", nil)
		}
		return "", apperrors.MapError(err)
	}
	company.Approved = true
	if err := s.companies.Update(ctx, company); err != nil {
		return "", storeError(err, "Company")
	}
	s.logger.Info("company approved", zap.String("company_id", company.ID), zap.String("manager_id", manager.ID))
	event.Type = events.EventCompanyApproved
	publish(ctx, s.dispatcher, s.logger, event)
	return "Company approved and Business Manager created.", nil
}

func (s *CompanyService) emailTaken(ctx context.Context, email string) (bool, error) {
	if _, err := s.companies.GetByEmail(ctx, email); err == nil {
		return true, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return false, err
	}
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return true, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return false, err
	}
	return false, nil
}
