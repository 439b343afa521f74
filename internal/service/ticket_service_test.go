package service

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/repository"
	"github.com/spec-kit/crm-service/internal/repository/memory"
)

func (s *ServiceSuite) createTicket(customerID, subject string, assignees ...string) *domain.Ticket {
	view, err := s.ticketSvc.CreateTicket(s.ctx, s.jane, TicketCreateInput{CustomerID: customerID, Subject: subject, AssignedTo: assignees})
	s.Require().NoError(err)
	return view.Ticket
}

func (s *ServiceSuite) allTickets() []domain.Ticket {
	tickets, err := s.tickets.List(s.ctx, repository.TicketFilter{})
	s.Require().NoError(err)
	return tickets
}

func (s *ServiceSuite) TestTicketCreateDefaultsAndSequence() {
	acme := s.createCustomer("Acme")
	inactive := s.addUser("Ivan", domain.RoleEmployee, s.companyID, domain.UserStatusInactive)

	view, err := s.ticketSvc.CreateTicket(s.ctx, s.jane, TicketCreateInput{
		CustomerID: acme.ID,
		Subject:    "  Invoice missing ",
		AssignedTo: []string{s.bob.ID, inactive.ID},
	})
	s.Require().NoError(err)
	ticket := view.Ticket
	s.Equal("TKT-2025-000001", ticket.TicketID)
	s.Equal("Invoice missing", ticket.Subject)
	s.Equal(domain.TicketCategoryOther, ticket.Category)
	s.Equal(domain.TicketPriorityLow, ticket.Priority)
	s.Equal(domain.TicketStatusOpen, ticket.Status)
	s.Equal([]string{s.bob.ID}, ticket.AssignedTo)
	s.Require().Len(ticket.Audit, 1)
	s.Equal("Ticket created and assigned to Bob", ticket.Audit[0].Note)
	s.Require().NotNil(view.Customer)
	s.Equal("Acme", view.Customer.Name)

	second := s.createTicket(acme.ID, "Follow-up")
	s.Equal("TKT-2025-000002", second.TicketID)
	s.Equal("Ticket created", second.Audit[0].Note)
}

// stuckSequence always hands out the same number and ignores seeding.
type stuckSequence struct{}

func (stuckSequence) Next(context.Context, int) (int64, error) { return 1, nil }
func (stuckSequence) Seed(context.Context, int, int64) error   { return nil }

func (s *ServiceSuite) ticketServiceWith(sequence repository.TicketSequence) *TicketService {
	return NewTicketService(TicketDependencies{
		TicketRepo:   s.tickets,
		CustomerRepo: s.customers,
		UserRepo:     s.users,
		Sequence:     sequence,
		Dispatcher:   s.dispatcher,
		Metrics:      s.metrics,
		Clock:        func() time.Time { return s.now },
	})
}

func (s *ServiceSuite) TestTicketSequenceResyncsAfterRestart() {
	acme := s.createCustomer("Acme")
	s.createTicket(acme.ID, "First")
	s.createTicket(acme.ID, "Second")

	restarted := s.ticketServiceWith(memory.NewTicketSequence())
	view, err := restarted.CreateTicket(s.ctx, s.jane, TicketCreateInput{CustomerID: acme.ID, Subject: "Third"})
	s.Require().NoError(err)
	s.Equal("TKT-2025-000003", view.Ticket.TicketID)
	s.Require().Len(view.Ticket.Audit, 1)
	s.Len(s.allTickets(), 3)

	view, err = restarted.CreateTicket(s.ctx, s.jane, TicketCreateInput{CustomerID: acme.ID, Subject: "Fourth"})
	s.Require().NoError(err)
	s.Equal("TKT-2025-000004", view.Ticket.TicketID)
}

func (s *ServiceSuite) TestTicketIDExhaustionIsConflict() {
	acme := s.createCustomer("Acme")
	s.createTicket(acme.ID, "First")

	_, err := s.ticketServiceWith(stuckSequence{}).CreateTicket(s.ctx, s.jane, TicketCreateInput{CustomerID: acme.ID, Subject: "Again"})
	s.assertDomainError(err, http.StatusConflict, "Could not allocate a ticket id, please retry")
	s.Len(s.allTickets(), 1)
}

func (s *ServiceSuite) TestTicketCreateRejections() {
	acme := s.createCustomer("Acme")
	foreignCustomer := &domain.Customer{CompanyID: uuid.NewString(), Name: "Elsewhere", Status: domain.CustomerStatusLead, State: domain.CustomerStateActive}
	s.Require().NoError(s.customers.Create(s.ctx, foreignCustomer))

	_, err := s.ticketSvc.CreateTicket(s.ctx, s.jane, TicketCreateInput{CustomerID: acme.ID})
	s.assertDomainError(err, http.StatusBadRequest, "customerId and subject required")

	_, err = s.ticketSvc.CreateTicket(s.ctx, s.jane, TicketCreateInput{CustomerID: "abc", Subject: "x"})
	s.assertDomainError(err, http.StatusBadRequest, "Invalid customerId")

	_, err = s.ticketSvc.CreateTicket(s.ctx, s.jane, TicketCreateInput{CustomerID: uuid.NewString(), Subject: "x"})
	s.assertDomainError(err, http.StatusNotFound, "Customer not found")

	_, err = s.ticketSvc.CreateTicket(s.ctx, s.jane, TicketCreateInput{CustomerID: foreignCustomer.ID, Subject: "x"})
	s.assertDomainError(err, http.StatusForbidden, "Customer does not belong to your company")

	_, err = s.ticketSvc.CreateTicket(s.ctx, s.jane, TicketCreateInput{CustomerID: acme.ID, Subject: "x", Priority: "Urgent"})
	s.assertDomainError(err, http.StatusBadRequest, "Invalid value for priority")

	_, err = s.ticketSvc.CreateTicket(s.ctx, s.jane, TicketCreateInput{CustomerID: acme.ID, Subject: "x", SLADeadline: "tomorrow"})
	s.assertDomainError(err, http.StatusBadRequest, "Invalid value for slaDeadline")

	s.Empty(s.allTickets())
}

func (s *ServiceSuite) TestTicketUpdateDiffs() {
	acme := s.createCustomer("Acme")
	ticket := s.createTicket(acme.ID, "Broken login")

	view, err := s.ticketSvc.UpdateTicket(s.ctx, s.jane, ticket.ID, patchOf(map[string]any{
		"status":      "In Progress",
		"slaDeadline": "2025-03-20",
		"subject":     "Broken login",
	}))
	s.Require().NoError(err)
	entry := view.Ticket.Audit[1]
	s.Equal("Updated fields: slaDeadline, status", entry.Note)
	s.Equal(domain.Change{From: nil, To: "2025-03-20T00:00:00.000Z"}, entry.Diff["slaDeadline"])
	s.Equal(domain.Change{From: domain.TicketStatusOpen, To: domain.TicketStatusInProgress}, entry.Diff["status"])

	view, err = s.ticketSvc.UpdateTicket(s.ctx, s.jane, ticket.ID, patchOf(map[string]any{
		"slaDeadline": "2025-03-20T00:00:00Z",
	}))
	s.Require().NoError(err)
	s.Len(view.Ticket.Audit, 2)

	view, err = s.ticketSvc.UpdateTicket(s.ctx, s.jane, ticket.ID, patchOf(map[string]any{"status": "Closed"}))
	s.Require().NoError(err)
	s.Equal(domain.TicketStatusClosed, view.Ticket.Status)

	view, err = s.ticketSvc.UpdateTicket(s.ctx, s.jane, ticket.ID, patchOf(map[string]any{"status": "Open", "slaDeadline": nil}))
	s.Require().NoError(err)
	s.Equal(domain.TicketStatusOpen, view.Ticket.Status)
	s.Nil(view.Ticket.SLADeadline)
	s.Equal(domain.Change{From: "2025-03-20T00:00:00.000Z", To: nil}, view.Ticket.Audit[3].Diff["slaDeadline"])
}

func (s *ServiceSuite) TestTicketAssignKeepsInactiveSameTenantEmployees() {
	acme := s.createCustomer("Acme")
	ticket := s.createTicket(acme.ID, "Refund")
	inactive := s.addUser("Ivan", domain.RoleEmployee, s.companyID, domain.UserStatusInactive)
	outsider := s.addUser("Olga", domain.RoleEmployee, uuid.NewString(), domain.UserStatusActive)

	ids, err := json.Marshal([]string{inactive.ID, outsider.ID, s.carol.ID})
	s.Require().NoError(err)
	view, err := s.ticketSvc.AssignTicket(s.ctx, s.jane, ticket.ID, ids)
	s.Require().NoError(err)
	s.Equal([]string{inactive.ID, s.carol.ID}, view.Ticket.AssignedTo)
	s.Equal(domain.Diff{"assignedTo": {From: "None", To: "Carol, Ivan"}}, view.Ticket.Audit[1].Diff)

	view, err = s.ticketSvc.AssignTicket(s.ctx, s.jane, ticket.ID, json.RawMessage(`"`+s.bob.ID+`"`))
	s.Require().NoError(err)
	s.Equal([]string{s.bob.ID}, view.Ticket.AssignedTo)

	view, err = s.ticketSvc.AssignTicket(s.ctx, s.jane, ticket.ID, nil)
	s.Require().NoError(err)
	s.Empty(view.Ticket.AssignedTo)
	s.Equal(domain.Change{From: "Bob", To: "None"}, view.Ticket.Audit[3].Diff["assignedTo"])
}

func (s *ServiceSuite) TestTicketLookupAndAccess() {
	acme := s.createCustomer("Acme")
	ticket := s.createTicket(acme.ID, "Late delivery")
	outsider := domain.Actor{ID: uuid.NewString(), Name: "Eve", CompanyID: uuid.NewString()}

	byRow, err := s.ticketSvc.GetTicket(s.ctx, s.jane, ticket.ID)
	s.Require().NoError(err)
	byKey, err := s.ticketSvc.GetTicket(s.ctx, s.jane, ticket.TicketID)
	s.Require().NoError(err)
	s.Equal(byRow.Ticket.ID, byKey.Ticket.ID)

	_, err = s.ticketSvc.GetTicket(s.ctx, s.jane, "TKT-1999-000001")
	s.assertDomainError(err, http.StatusNotFound, "Ticket not found")

	_, err = s.ticketSvc.GetTicket(s.ctx, outsider, ticket.ID)
	s.assertDomainError(err, http.StatusForbidden, "Forbidden")

	_, err = s.ticketSvc.UpdateTicket(s.ctx, outsider, ticket.ID, patchOf(map[string]any{"status": "Closed"}))
	s.assertDomainError(err, http.StatusForbidden, "Forbidden")
}

func (s *ServiceSuite) TestTicketListFilters() {
	acme := s.createCustomer("Acme")
	first := s.createTicket(acme.ID, "Invoice 100% wrong")
	s.createTicket(acme.ID, "Parcel lost")
	_, err := s.ticketSvc.UpdateTicket(s.ctx, s.jane, first.ID, patchOf(map[string]any{"priority": "High"}))
	s.Require().NoError(err)

	all, err := s.ticketSvc.ListTickets(s.ctx, s.jane, TicketListFilter{})
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal("Parcel lost", all[0].Ticket.Subject)
	s.Equal("Acme", all[0].Customer.Name)

	high, err := s.ticketSvc.ListTickets(s.ctx, s.jane, TicketListFilter{Priority: domain.TicketPriorityHigh})
	s.Require().NoError(err)
	s.Require().Len(high, 1)
	s.Equal(first.ID, high[0].Ticket.ID)

	found, err := s.ticketSvc.ListTickets(s.ctx, s.jane, TicketListFilter{Search: "100%"})
	s.Require().NoError(err)
	s.Len(found, 1)

	found, err = s.ticketSvc.ListTickets(s.ctx, s.jane, TicketListFilter{Search: "tkt-2025-000002"})
	s.Require().NoError(err)
	s.Require().Len(found, 1)
	s.Equal("Parcel lost", found[0].Ticket.Subject)
}

func (s *ServiceSuite) TestTicketCustomerSummary() {
	acme := s.createCustomer("Acme")
	globex := s.createCustomer("Globex")
	s.createTicket(acme.ID, "One")
	resolved := s.createTicket(acme.ID, "Two")
	closed := s.createTicket(acme.ID, "Three")
	s.createTicket(globex.ID, "Four")

	_, err := s.ticketSvc.UpdateTicket(s.ctx, s.jane, resolved.ID, patchOf(map[string]any{"status": "Resolved"}))
	s.Require().NoError(err)
	_, err = s.ticketSvc.UpdateTicket(s.ctx, s.jane, closed.ID, patchOf(map[string]any{"status": "Closed"}))
	s.Require().NoError(err)

	rows, err := s.ticketSvc.CustomerSummary(s.ctx, s.jane)
	s.Require().NoError(err)
	byID := map[string]CustomerTicketSummary{}
	for _, row := range rows {
		byID[row.CustomerID] = row
	}
	s.Equal(3, byID[acme.ID].TotalRaised)
	s.Equal(2, byID[acme.ID].TotalResolved)
	s.Equal(1, byID[globex.ID].TotalRaised)
	s.Equal(0, byID[globex.ID].TotalResolved)

	forAcme, err := s.ticketSvc.ListForCustomer(s.ctx, s.jane, acme.ID)
	s.Require().NoError(err)
	s.Len(forAcme, 3)

	_, err = s.ticketSvc.ListForCustomer(s.ctx, s.jane, "nope")
	s.assertDomainError(err, http.StatusBadRequest, "Invalid customerId")
}
