package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/crm-service/internal/auth"
	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/events"
	"github.com/spec-kit/crm-service/internal/repository/memory"
)

// failingCustomers fails updates for selected customers.
type failingCustomers struct {
	*memory.CustomerStore
	failFor map[string]bool
}

func (f *failingCustomers) Update(ctx context.Context, c *domain.Customer, entries ...domain.AuditEntry) error {
	if f.failFor[c.ID] {
		return errors.New("connection reset")
	}
	return f.CustomerStore.Update(ctx, c, entries...)
}

func (s *ServiceSuite) TestEmployeeAdd() {
	employee, err := s.employeeSvc.AddEmployee(s.ctx, s.jane, EmployeeInput{
		Name:       "Dana",
		Email:      " Dana@Acme.io ",
		Password:   "s3cret",
		Department: domain.DepartmentSupport,
	})
	s.Require().NoError(err)
	s.Equal("dana@acme.io", employee.Email)
	s.Equal(domain.RoleEmployee, employee.Role)
	s.Equal(domain.UserStatusActive, employee.Status)
	s.Equal(s.companyID, employee.CompanyID)
	s.NoError(auth.ComparePassword(employee.PasswordHash, "s3cret"))

	_, err = s.employeeSvc.AddEmployee(s.ctx, s.jane, EmployeeInput{Name: "Dana", Email: "dana@acme.io", Password: "x", Department: domain.DepartmentSupport})
	s.assertDomainError(err, http.StatusConflict, "Employee already exists")

	_, err = s.employeeSvc.AddEmployee(s.ctx, s.jane, EmployeeInput{Name: "Eli", Email: "eli@acme.io", Password: "x"})
	s.assertDomainError(err, http.StatusBadRequest, "All fields are required")

	_, err = s.employeeSvc.AddEmployee(s.ctx, s.jane, EmployeeInput{Name: "Eli", Email: "eli@acme.io", Password: "x", Department: "Legal"})
	s.assertDomainError(err, http.StatusBadRequest, "Invalid value for department")

	employees, err := s.employeeSvc.ListEmployees(s.ctx, s.jane)
	s.Require().NoError(err)
	s.Require().Len(employees, 3)
	s.Equal("Dana", employees[0].Name)
}

func (s *ServiceSuite) TestEmployeeUpdate() {
	updated, err := s.employeeSvc.UpdateEmployee(s.ctx, s.jane, s.bob.ID, EmployeeInput{
		Name:       "Robert",
		Email:      "robert@acme.io",
		Department: domain.DepartmentTechnical,
		Password:   "new-pass",
	})
	s.Require().NoError(err)
	s.Equal("Robert", updated.Name)
	s.Equal(domain.DepartmentTechnical, updated.Department)
	s.NoError(auth.ComparePassword(updated.PasswordHash, "new-pass"))

	stored, err := s.users.GetByEmail(s.ctx, "robert@acme.io")
	s.Require().NoError(err)
	s.Equal(s.bob.ID, stored.ID)

	_, err = s.employeeSvc.UpdateEmployee(s.ctx, s.jane, s.carol.ID, EmployeeInput{Email: "robert@acme.io"})
	s.assertDomainError(err, http.StatusConflict, "Another employee already uses this email")

	_, err = s.employeeSvc.UpdateEmployee(s.ctx, s.jane, s.jane.ID, EmployeeInput{Name: "Boss"})
	s.assertDomainError(err, http.StatusNotFound, "Employee not found")

	outsider := domain.Actor{ID: uuid.NewString(), CompanyID: uuid.NewString(), Role: domain.RoleBusinessManager}
	_, err = s.employeeSvc.UpdateEmployee(s.ctx, outsider, s.bob.ID, EmployeeInput{Name: "Hijack"})
	s.assertDomainError(err, http.StatusForbidden, "Forbidden")
}

func (s *ServiceSuite) TestDeactivationCascade() {
	first := s.createCustomer("First", s.bob.ID, s.carol.ID)
	second := s.createCustomer("Second", s.bob.ID)
	untouched := s.createCustomer("Untouched", s.carol.ID)
	deleted := s.createCustomer("Deleted", s.bob.ID)
	_, err := s.customerSvc.SoftDelete(s.ctx, s.jane, deleted.ID)
	s.Require().NoError(err)

	result, err := s.employeeSvc.ToggleStatus(s.ctx, s.jane, s.bob.ID)
	s.Require().NoError(err)
	s.Equal("Employee deactivated successfully", result.Message)
	s.Equal(2, result.CustomersAffected)
	s.Equal(domain.UserStatusInactive, result.Employee.Status)

	for _, id := range []string{first.ID, second.ID} {
		customer := s.storedCustomer(id)
		s.False(customer.HasAssignee(s.bob.ID))
		last := customer.Audit[len(customer.Audit)-1]
		s.Equal(domain.AuditAssignmentRemoved, last.Action)
		s.Equal(fmt.Sprintf("Removed Bob (%s) from assignment after deactivation", s.bob.ID), last.Note)
		s.Equal("Jane", last.ByName)
	}
	s.Equal([]string{s.carol.ID}, s.storedCustomer(first.ID).AssignedTo)
	s.Len(s.storedCustomer(untouched.ID).Audit, 1)
	stillDeleted := s.storedCustomer(deleted.ID)
	s.True(stillDeleted.HasAssignee(s.bob.ID))
	s.Len(stillDeleted.Audit, 2)
	s.Contains(s.eventTypes(), events.EventEmployeeStatusChanged)

	result, err = s.employeeSvc.ToggleStatus(s.ctx, s.jane, s.bob.ID)
	s.Require().NoError(err)
	s.Equal("Employee activated successfully", result.Message)
	s.Equal(0, result.CustomersAffected)
	s.Equal(domain.UserStatusActive, result.Employee.Status)
}

func (s *ServiceSuite) TestCascadeStepIsIdempotent() {
	acme := s.createCustomer("Acme", s.bob.ID)
	job := domain.CascadeJob{CustomerID: acme.ID, CompanyID: s.companyID, EmployeeID: s.bob.ID, EmployeeName: "Bob", ActorID: s.jane.ID, ActorName: "Jane"}

	removed, err := s.cascade.Step(s.ctx, job)
	s.Require().NoError(err)
	s.True(removed)

	removed, err = s.cascade.Step(s.ctx, job)
	s.Require().NoError(err)
	s.False(removed)
	s.Len(s.storedCustomer(acme.ID).Audit, 2)

	job.CustomerID = uuid.NewString()
	removed, err = s.cascade.Step(s.ctx, job)
	s.Require().NoError(err)
	s.False(removed)
}

func (s *ServiceSuite) TestCascadeFailuresAreQueued() {
	ok := s.createCustomer("Ok", s.bob.ID)
	broken := s.createCustomer("Broken", s.bob.ID)

	flaky := &failingCustomers{CustomerStore: s.customers, failFor: map[string]bool{broken.ID: true}}
	coordinator := NewCascadeCoordinator(CascadeDependencies{CustomerRepo: flaky, Queue: s.queue, Concurrency: 1})

	bob := *s.bob
	removed, err := coordinator.RemoveEmployee(s.ctx, s.jane, &bob)
	s.Require().NoError(err)
	s.Equal(1, removed)
	s.False(s.storedCustomer(ok.ID).HasAssignee(s.bob.ID))
	s.True(s.storedCustomer(broken.ID).HasAssignee(s.bob.ID))

	s.Require().Equal(1, s.queue.Len())
	job, err := s.queue.Dequeue(s.ctx, time.Second)
	s.Require().NoError(err)
	s.Require().NotNil(job)
	s.Equal(broken.ID, job.CustomerID)
	s.Equal(1, job.Attempt)

	applied, err := s.cascade.Step(s.ctx, *job)
	s.Require().NoError(err)
	s.True(applied)
	s.False(s.storedCustomer(broken.ID).HasAssignee(s.bob.ID))
}
