package service

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/spec-kit/crm-service/internal/config"
	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/repository"
	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

func errStatus(err error) int {
	return apperrors.ToDomainError(err).HTTPStatus
}

func (s *ServiceSuite) TestBusinessManagerLogin() {
	admin := domain.Actor{ID: uuid.NewString(), Role: domain.RoleAdmin}
	company := s.registerCompany("Initech", "ops@initech.io")

	_, err := s.authSvc.LoginBusinessManager(s.ctx, "10.0.0.1", "ops@initech.io", "company-pass")
	s.assertDomainError(err, http.StatusNotFound, "Business Manager not found")

	_, err = s.companySvc.Decide(s.ctx, admin, company.ID, "approved")
	s.Require().NoError(err)

	_, err = s.authSvc.LoginBusinessManager(s.ctx, "10.0.0.1", "ops@initech.io", "wrong")
	s.assertDomainError(err, http.StatusUnauthorized, "Invalid credentials")

	result, err := s.authSvc.LoginBusinessManager(s.ctx, "10.0.0.1", "OPS@initech.io", "company-pass")
	s.Require().NoError(err)
	s.NotEmpty(result.Token)
	claims, err := s.authSvc.TokenManager().ParseToken(result.Token)
	s.Require().NoError(err)
	s.Equal(result.User.ID, claims.UserID)
	s.Equal(domain.RoleBusinessManager, claims.Role)
	s.Equal(company.ID, claims.CompanyID)

	manager := result.User
	manager.Status = domain.UserStatusInactive
	s.Require().NoError(s.users.Update(s.ctx, manager))
	_, err = s.authSvc.LoginBusinessManager(s.ctx, "10.0.0.1", "ops@initech.io", "company-pass")
	s.assertDomainError(err, http.StatusForbidden, "Account not active or not approved yet")
}

func (s *ServiceSuite) TestGenericLogin() {
	employee, err := s.employeeSvc.AddEmployee(s.ctx, s.jane, EmployeeInput{
		Name: "Dana", Email: "dana@acme.io", Password: "pw", Department: domain.DepartmentSales,
	})
	s.Require().NoError(err)

	result, err := s.authSvc.Login(s.ctx, "10.0.0.2", "dana@acme.io", "pw")
	s.Require().NoError(err)
	s.Equal(employee.ID, result.User.ID)

	_, err = s.authSvc.Login(s.ctx, "10.0.0.2", "dana@acme.io", "nope")
	s.assertDomainError(err, http.StatusUnauthorized, "Invalid password")

	_, err = s.authSvc.Login(s.ctx, "10.0.0.2", "ghost@acme.io", "pw")
	s.assertDomainError(err, http.StatusNotFound, "User not found")

	_, err = s.employeeSvc.ToggleStatus(s.ctx, s.jane, employee.ID)
	s.Require().NoError(err)
	_, err = s.authSvc.Login(s.ctx, "10.0.0.2", "dana@acme.io", "pw")
	s.assertDomainError(err, http.StatusForbidden, "Account is inactive")
}

func (s *ServiceSuite) TestRegisterAndEnsureAdmin() {
	cfg := config.AdminConfig{Name: "Root", Email: "root@crm.io", Password: "rootpw"}
	s.Require().NoError(s.authSvc.EnsureAdmin(s.ctx, cfg))
	s.Require().NoError(s.authSvc.EnsureAdmin(s.ctx, cfg))

	admins, err := s.users.List(s.ctx, repository.UserFilter{Role: domain.RoleAdmin})
	s.Require().NoError(err)
	s.Require().Len(admins, 1)
	s.Empty(admins[0].CompanyID)

	s.NoError(s.authSvc.EnsureAdmin(s.ctx, config.AdminConfig{}))

	_, err = s.authSvc.Register(s.ctx, RegisterInput{Name: "Dup", Email: "root@crm.io", Password: "x", Role: domain.RoleSupport})
	s.assertDomainError(err, http.StatusConflict, "Email already in use")

	_, err = s.authSvc.Register(s.ctx, RegisterInput{Name: "X", Email: "x@crm.io", Password: "x", Role: "Overlord"})
	s.assertDomainError(err, http.StatusBadRequest, "Invalid value for role")

	_, err = s.authSvc.Register(s.ctx, RegisterInput{Name: "X", Email: "x@crm.io", Password: "x", Role: domain.RoleManager, CompanyID: uuid.NewString()})
	s.assertDomainError(err, http.StatusNotFound, "Company not found")
}
