package service

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/events"
	"github.com/spec-kit/crm-service/internal/repository"
)

func patchOf(fields map[string]any) map[string]json.RawMessage {
	patch := make(map[string]json.RawMessage, len(fields))
	for k, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			panic(err)
		}
		patch[k] = raw
	}
	return patch
}

func (s *ServiceSuite) TestCustomerCreateThenAssign() {
	acme := s.createCustomer("Acme")
	s.Require().Len(acme.Audit, 1)
	created := acme.Audit[0]
	s.Equal(domain.AuditCreated, created.Action)
	s.Equal(s.jane.ID, created.By)
	s.Equal("Jane", created.ByName)
	s.Equal("Customer created", created.Note)
	s.Nil(created.Diff)
	s.Equal(domain.CustomerStatusLead, acme.Status)
	s.Equal(domain.CustomerStateActive, acme.State)
	s.Equal("Jane", acme.CreatedByName)

	view, err := s.customerSvc.Update(s.ctx, s.jane, acme.ID, patchOf(map[string]any{"assignedTo": []string{s.bob.ID}}))
	s.Require().NoError(err)
	s.Require().Len(view.Customer.Audit, 2)
	updated := view.Customer.Audit[1]
	s.Equal(domain.AuditUpdated, updated.Action)
	s.Equal("Updated fields: assignedTo", updated.Note)
	s.Equal(domain.Diff{"assignedTo": {From: "None", To: "Bob"}}, updated.Diff)
	s.Require().Len(view.Assignees, 1)
	s.Equal("Bob", view.Assignees[0].Name)

	stored := s.storedCustomer(acme.ID)
	s.Len(stored.Audit, 2)
	s.Equal([]string{s.bob.ID}, stored.AssignedTo)
	s.Equal([]events.EventType{events.EventCustomerCreated, events.EventCustomerUpdated}, s.eventTypes())
}

func (s *ServiceSuite) TestCustomerCreateFiltersAssignees() {
	inactive := s.addUser("Ivan", domain.RoleEmployee, s.companyID, domain.UserStatusInactive)
	outsider := s.addUser("Olga", domain.RoleEmployee, uuid.NewString(), domain.UserStatusActive)

	view, err := s.customerSvc.Create(s.ctx, s.jane, CustomerCreateInput{
		Name:       "Globex",
		Status:     domain.CustomerStatusConverted,
		LeadSource: "Referral",
		AssignedTo: []string{s.carol.ID, inactive.ID, outsider.ID, "not-an-id", s.bob.ID, s.carol.ID},
	})
	s.Require().NoError(err)
	customer := view.Customer
	s.Equal([]string{s.carol.ID, s.bob.ID}, customer.AssignedTo)
	s.Equal("Customer created and assigned to Bob, Carol with status: Converted", customer.Audit[0].Note)
	s.Equal(domain.Diff{"assignedTo": {From: "None", To: "Bob, Carol"}}, customer.Audit[0].Diff)
	s.Require().NotNil(customer.ConversionDate)
	s.Equal(s.now, *customer.ConversionDate)
	s.Equal("Referral", customer.ConversionSource)
}

func (s *ServiceSuite) TestCustomerCreateValidation() {
	_, err := s.customerSvc.Create(s.ctx, s.jane, CustomerCreateInput{Name: "   "})
	s.assertDomainError(err, http.StatusBadRequest, "Customer name is required")

	noTenant := s.jane
	noTenant.CompanyID = ""
	_, err = s.customerSvc.Create(s.ctx, noTenant, CustomerCreateInput{Name: "Acme"})
	s.assertDomainError(err, http.StatusBadRequest, "Company ID missing in token")

	_, err = s.customerSvc.Create(s.ctx, s.jane, CustomerCreateInput{Name: "Acme", Status: "Prospect"})
	s.assertDomainError(err, http.StatusBadRequest, "Invalid value for status")

	list, err := s.customers.List(s.ctx, repository.CustomerFilter{})
	s.Require().NoError(err)
	s.Empty(list)
}

func (s *ServiceSuite) TestCustomerUpdateWithoutChangesKeepsAudit() {
	acme := s.createCustomer("Acme", s.bob.ID, s.carol.ID)

	view, err := s.customerSvc.Update(s.ctx, s.jane, acme.ID, patchOf(map[string]any{
		"name":       "Acme",
		"assignedTo": []string{s.carol.ID, s.bob.ID, s.bob.ID},
		"unknown":    "ignored",
	}))
	s.Require().NoError(err)
	s.Len(view.Customer.Audit, 1)
	s.Len(s.storedCustomer(acme.ID).Audit, 1)
}

func (s *ServiceSuite) TestCustomerUpdateRecordsChangedFields() {
	acme := s.createCustomer("Acme")

	view, err := s.customerSvc.Update(s.ctx, s.jane, acme.ID, patchOf(map[string]any{
		"phone":    "+1 555 0100",
		"location": "Berlin",
		"name":     "Acme",
		"status":   "Converted",
	}))
	s.Require().NoError(err)
	entry := view.Customer.Audit[1]
	s.Equal("Updated fields: location, phone, status", entry.Note)
	s.Equal(domain.Change{From: "", To: "Berlin"}, entry.Diff["location"])
	s.Equal(domain.Change{From: domain.CustomerStatusLead, To: domain.CustomerStatusConverted}, entry.Diff["status"])
	s.Equal("Berlin", s.storedCustomer(acme.ID).Location)
}

func (s *ServiceSuite) TestCustomerUpdateRejectsInvalidValues() {
	acme := s.createCustomer("Acme")

	_, err := s.customerSvc.Update(s.ctx, s.jane, acme.ID, patchOf(map[string]any{"state": "archived", "phone": "1"}))
	s.assertDomainError(err, http.StatusBadRequest, "Invalid value for state")

	_, err = s.customerSvc.Update(s.ctx, s.jane, acme.ID, patchOf(map[string]any{"name": ""}))
	s.assertDomainError(err, http.StatusBadRequest, "Invalid value for name")

	stored := s.storedCustomer(acme.ID)
	s.Empty(stored.Phone)
	s.Len(stored.Audit, 1)
}

func (s *ServiceSuite) TestCustomerUpdateDropsInactiveAssignees() {
	acme := s.createCustomer("Acme")
	inactive := s.addUser("Ivan", domain.RoleEmployee, s.companyID, domain.UserStatusInactive)

	view, err := s.customerSvc.Update(s.ctx, s.jane, acme.ID, patchOf(map[string]any{"assignedTo": inactive.ID}))
	s.Require().NoError(err)
	s.Empty(view.Customer.AssignedTo)
	s.Len(view.Customer.Audit, 1)
}

func (s *ServiceSuite) TestCustomerConvert() {
	acme := s.createCustomer("Acme")

	view, err := s.customerSvc.Convert(s.ctx, s.jane, acme.ID)
	s.Require().NoError(err)
	s.Equal(domain.CustomerStatusConverted, view.Customer.Status)
	s.Require().NotNil(view.Customer.ConversionDate)
	s.Equal(s.now, *view.Customer.ConversionDate)
	s.Equal("Manual", view.Customer.ConversionSource)
	entry := view.Customer.Audit[1]
	s.Equal(domain.AuditConverted, entry.Action)
	s.Equal("Lead converted to Customer", entry.Note)
	s.Equal(domain.Diff{"status": {From: domain.CustomerStatusLead, To: domain.CustomerStatusConverted}}, entry.Diff)

	_, err = s.customerSvc.Convert(s.ctx, s.jane, acme.ID)
	s.assertDomainError(err, http.StatusConflict, "Customer already converted")
	s.Len(s.storedCustomer(acme.ID).Audit, 2)
}

func (s *ServiceSuite) TestCustomerDeleteAndRestore() {
	acme := s.createCustomer("Acme")

	view, err := s.customerSvc.SoftDelete(s.ctx, s.jane, acme.ID)
	s.Require().NoError(err)
	s.Equal(domain.CustomerStateDeactive, view.Customer.State)
	s.Require().NotNil(view.Customer.DeletedAt)
	s.Equal(s.jane.ID, view.Customer.DeletedBy)

	view, err = s.customerSvc.Restore(s.ctx, s.jane, acme.ID)
	s.Require().NoError(err)

	stored := s.storedCustomer(acme.ID)
	s.Equal(domain.CustomerStateActive, stored.State)
	s.Nil(stored.DeletedAt)
	s.Empty(stored.DeletedBy)
	s.Require().Len(stored.Audit, 3)
	s.Equal(domain.AuditDeleted, stored.Audit[1].Action)
	s.Equal("Customer deactivated (soft deleted)", stored.Audit[1].Note)
	s.Equal(domain.AuditRestored, stored.Audit[2].Action)
	s.Equal("Customer restored successfully", stored.Audit[2].Note)
	s.Equal(stored.Audit, view.Customer.Audit)
}

func (s *ServiceSuite) TestCustomerAccessChecks() {
	acme := s.createCustomer("Acme")
	outsider := domain.Actor{ID: uuid.NewString(), Name: "Eve", Role: domain.RoleBusinessManager, CompanyID: uuid.NewString()}

	_, err := s.customerSvc.Get(s.ctx, s.jane, "42")
	s.assertDomainError(err, http.StatusBadRequest, "Invalid customer ID")

	_, err = s.customerSvc.Get(s.ctx, s.jane, uuid.NewString())
	s.assertDomainError(err, http.StatusNotFound, "Customer not found")

	_, err = s.customerSvc.Get(s.ctx, outsider, acme.ID)
	s.assertDomainError(err, http.StatusForbidden, "Forbidden")

	_, err = s.customerSvc.Update(s.ctx, outsider, acme.ID, patchOf(map[string]any{"name": "Evil"}))
	s.assertDomainError(err, http.StatusForbidden, "Forbidden")

	_, err = s.customerSvc.SoftDelete(s.ctx, outsider, acme.ID)
	s.assertDomainError(err, http.StatusForbidden, "Forbidden")

	s.Len(s.storedCustomer(acme.ID).Audit, 1)
}

func (s *ServiceSuite) TestCustomerListNewestFirst() {
	s.createCustomer("First", s.bob.ID)
	s.createCustomer("Second")
	other := domain.Actor{ID: uuid.NewString(), Name: "Eve", CompanyID: uuid.NewString()}
	_, err := s.customerSvc.Create(s.ctx, other, CustomerCreateInput{Name: "Elsewhere"})
	s.Require().NoError(err)

	views, err := s.customerSvc.List(s.ctx, s.jane)
	s.Require().NoError(err)
	s.Require().Len(views, 2)
	s.Equal("Second", views[0].Customer.Name)
	s.Equal("First", views[1].Customer.Name)
	s.Require().Len(views[1].Assignees, 1)
	s.Equal(s.bob.Email, views[1].Assignees[0].Email)
}
