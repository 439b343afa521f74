package service

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/spec-kit/crm-service/internal/auth"
	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/events"
	"github.com/spec-kit/crm-service/internal/repository"
)

func (s *ServiceSuite) registerCompany(name, email string) *domain.Company {
	company, err := s.companySvc.Register(s.ctx, CompanyRegisterInput{
		CompanyName:   name,
		BusinessEmail: email,
		ManagerName:   name + " Manager",
		Password:      "company-pass",
		Industry:      "Retail",
	})
	s.Require().NoError(err)
	return company
}

func (s *ServiceSuite) TestCompanyRegistration() {
	company := s.registerCompany("Initech", "Ops@Initech.io")
	s.False(company.Approved)
	s.Equal("ops@initech.io", company.BusinessEmail)
	s.NoError(auth.ComparePassword(company.PasswordHash, "company-pass"))

	_, err := s.companySvc.Register(s.ctx, CompanyRegisterInput{
		CompanyName: "Initech 2", BusinessEmail: "ops@initech.io", ManagerName: "M", Password: "p", Industry: "Retail",
	})
	s.assertDomainError(err, http.StatusConflict, "Company already registered.")

	bob, err := s.users.GetByID(s.ctx, s.bob.ID)
	s.Require().NoError(err)
	_, err = s.companySvc.Register(s.ctx, CompanyRegisterInput{
		CompanyName: "Bobco", BusinessEmail: bob.Email, ManagerName: "Bob", Password: "p", Industry: "Retail",
	})
	s.assertDomainError(err, http.StatusConflict, "Company already registered.")

	_, err = s.companySvc.Register(s.ctx, CompanyRegisterInput{CompanyName: "Nameless"})
	s.Require().Error(err)
	s.Equal(http.StatusBadRequest, errStatus(err))
}

func (s *ServiceSuite) TestCompanyApproval() {
	admin := domain.Actor{ID: uuid.NewString(), Name: "Root", Role: domain.RoleAdmin}
	company := s.registerCompany("Initech", "ops@initech.io")
	rejected := s.registerCompany("Vandelay", "art@vandelay.io")

	pending, err := s.companySvc.Pending(s.ctx)
	s.Require().NoError(err)
	s.Len(pending, 2)

	message, err := s.companySvc.Decide(s.ctx, admin, company.ID, "approved")
	s.Require().NoError(err)
	s.Equal("Company approved and Business Manager created.", message)

	manager, err := s.users.GetByEmail(s.ctx, "ops@initech.io")
	s.Require().NoError(err)
	s.Equal(domain.RoleBusinessManager, manager.Role)
	s.Equal(company.ID, manager.CompanyID)
	s.Equal(domain.UserStatusActive, manager.Status)
	s.Equal(company.PasswordHash, manager.PasswordHash)

	_, err = s.companySvc.Decide(s.ctx, admin, company.ID, "approved")
	s.assertDomainError(err, http.StatusConflict, "Company already approved")

	message, err = s.companySvc.Decide(s.ctx, admin, rejected.ID, "rejected")
	s.Require().NoError(err)
	s.Equal("Company rejected and removed.", message)
	_, err = s.companies.GetByID(s.ctx, rejected.ID)
	s.ErrorIs(err, repository.ErrNotFound)

	_, err = s.companySvc.Decide(s.ctx, admin, company.ID, "maybe")
	s.Require().Error(err)
	s.Equal(http.StatusBadRequest, errStatus(err))

	_, err = s.companySvc.Decide(s.ctx, admin, uuid.NewString(), "approved")
	s.assertDomainError(err, http.StatusNotFound, "Company not found")

	s.Contains(s.eventTypes(), events.EventCompanyApproved)
	s.Contains(s.eventTypes(), events.EventCompanyRejected)
}

func (s *ServiceSuite) TestCompanyStatsAndApprovedList() {
	admin := domain.Actor{ID: uuid.NewString(), Name: "Root", Role: domain.RoleAdmin}
	company := s.registerCompany("Initech", "ops@initech.io")
	s.registerCompany("Pending Co", "hello@pending.io")
	_, err := s.companySvc.Decide(s.ctx, admin, company.ID, "approved")
	s.Require().NoError(err)
	s.addUser("Milton", domain.RoleEmployee, company.ID, domain.UserStatusActive)

	stats, err := s.companySvc.Stats(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, stats.TotalCompanies)
	s.Equal(1, stats.ApprovedCompanies)
	s.Equal(3, stats.TotalEmployees)

	approved, err := s.companySvc.Approved(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(approved, 1)
	s.Equal(company.ID, approved[0].Company.ID)
	s.Equal(1, approved[0].EmployeeCount)
}
