package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/repository"
)

type StoreSuite struct {
	suite.Suite
	ctx       context.Context
	users     *UserStore
	companies *CompanyStore
	customers *CustomerStore
	tickets   *TicketStore
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.users = NewUserStore()
	s.companies = NewCompanyStore()
	s.customers = NewCustomerStore()
	s.tickets = NewTicketStore()
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) TestUserEmailUniqueness() {
	s.Run("rejects duplicate email case-insensitively", func() {
		s.Require().NoError(s.users.Create(s.ctx, &domain.User{Name: "Ann", Email: "ann@acme.io", Role: domain.RoleEmployee}))
		err := s.users.Create(s.ctx, &domain.User{Name: "Ann 2", Email: "ANN@acme.io"})
		s.ErrorIs(err, repository.ErrDuplicate)
	})

	s.Run("update cannot steal another email", func() {
		bob := &domain.User{Name: "Bob", Email: "bob@acme.io"}
		s.Require().NoError(s.users.Create(s.ctx, bob))
		bob.Email = "ann@acme.io"
		s.ErrorIs(s.users.Update(s.ctx, bob), repository.ErrDuplicate)
	})

	s.Run("unknown id", func() {
		_, err := s.users.GetByID(s.ctx, uuid.NewString())
		s.ErrorIs(err, repository.ErrNotFound)
	})
}

func (s *StoreSuite) TestUserListFilters() {
	company := uuid.NewString()
	active := &domain.User{Name: "A", Email: "a@x.io", Role: domain.RoleEmployee, CompanyID: company, Status: domain.UserStatusActive}
	inactive := &domain.User{Name: "B", Email: "b@x.io", Role: domain.RoleEmployee, CompanyID: company, Status: domain.UserStatusInactive}
	other := &domain.User{Name: "C", Email: "c@x.io", Role: domain.RoleEmployee, CompanyID: uuid.NewString(), Status: domain.UserStatusActive}
	for _, u := range []*domain.User{active, inactive, other} {
		s.Require().NoError(s.users.Create(s.ctx, u))
	}

	list, err := s.users.List(s.ctx, repository.UserFilter{CompanyID: company, Status: domain.UserStatusActive})
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal(active.ID, list[0].ID)

	list, err = s.users.List(s.ctx, repository.UserFilter{IDs: []string{inactive.ID, other.ID}})
	s.Require().NoError(err)
	s.Len(list, 2)

	list, err = s.users.List(s.ctx, repository.UserFilter{IDs: []string{}})
	s.Require().NoError(err)
	s.Empty(list)

	count, err := s.users.Count(s.ctx, repository.UserFilter{CompanyID: company})
	s.Require().NoError(err)
	s.Equal(2, count)
}

func (s *StoreSuite) TestCompanyLifecycle() {
	approved := true
	company := &domain.Company{CompanyName: "Acme", BusinessEmail: "Ops@Acme.io"}
	s.Require().NoError(s.companies.Create(s.ctx, company))
	s.ErrorIs(s.companies.Create(s.ctx, &domain.Company{BusinessEmail: "ops@acme.io"}), repository.ErrDuplicate)

	found, err := s.companies.GetByEmail(s.ctx, "OPS@ACME.IO")
	s.Require().NoError(err)
	s.Equal(company.ID, found.ID)

	count, err := s.companies.Count(s.ctx, repository.CompanyFilter{Approved: &approved})
	s.Require().NoError(err)
	s.Zero(count)

	found.Approved = true
	s.Require().NoError(s.companies.Update(s.ctx, found))
	count, err = s.companies.Count(s.ctx, repository.CompanyFilter{Approved: &approved})
	s.Require().NoError(err)
	s.Equal(1, count)

	s.Require().NoError(s.companies.Delete(s.ctx, company.ID))
	s.ErrorIs(s.companies.Delete(s.ctx, company.ID), repository.ErrNotFound)
}

func (s *StoreSuite) TestCustomerAuditIsAppendOnly() {
	customer := &domain.Customer{CompanyID: uuid.NewString(), Name: "Acme", Status: domain.CustomerStatusLead}
	s.Require().NoError(s.customers.Create(s.ctx, customer, domain.AuditEntry{Action: domain.AuditCreated}))
	s.Len(customer.Audit, 1)

	stale, err := s.customers.GetByID(s.ctx, customer.ID)
	s.Require().NoError(err)

	s.Require().NoError(s.customers.Update(s.ctx, customer, domain.AuditEntry{Action: domain.AuditUpdated}))

	// a writer holding an older snapshot still appends after the stored trail
	stale.Audit = nil
	s.Require().NoError(s.customers.Update(s.ctx, stale, domain.AuditEntry{Action: domain.AuditDeleted}))

	reloaded, err := s.customers.GetByID(s.ctx, customer.ID)
	s.Require().NoError(err)
	s.Require().Len(reloaded.Audit, 3)
	s.Equal(domain.AuditCreated, reloaded.Audit[0].Action)
	s.Equal(domain.AuditUpdated, reloaded.Audit[1].Action)
	s.Equal(domain.AuditDeleted, reloaded.Audit[2].Action)
}

func (s *StoreSuite) TestCustomerCompanyIsImmutable() {
	company := uuid.NewString()
	customer := &domain.Customer{CompanyID: company, Name: "Acme"}
	s.Require().NoError(s.customers.Create(s.ctx, customer))
	customer.CompanyID = uuid.NewString()
	s.Require().NoError(s.customers.Update(s.ctx, customer))
	s.Equal(company, customer.CompanyID)
}

func (s *StoreSuite) TestCustomerListFilters() {
	company := uuid.NewString()
	emp := uuid.NewString()
	now := time.Now()
	first := &domain.Customer{CompanyID: company, Name: "first", AssignedTo: []string{emp}}
	second := &domain.Customer{CompanyID: company, Name: "second", AssignedTo: []string{emp}, DeletedAt: &now}
	third := &domain.Customer{CompanyID: company, Name: "third"}
	for _, c := range []*domain.Customer{first, second, third} {
		s.Require().NoError(s.customers.Create(s.ctx, c))
	}

	all, err := s.customers.List(s.ctx, repository.CustomerFilter{CompanyID: company})
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Equal("third", all[0].Name)

	assigned, err := s.customers.List(s.ctx, repository.CustomerFilter{CompanyID: company, AssignedTo: emp, ExcludeDeleted: true})
	s.Require().NoError(err)
	s.Require().Len(assigned, 1)
	s.Equal(first.ID, assigned[0].ID)
}

func (s *StoreSuite) TestCustomerCopiesAreIsolated() {
	customer := &domain.Customer{CompanyID: uuid.NewString(), Name: "Acme", AssignedTo: []string{"a"}}
	s.Require().NoError(s.customers.Create(s.ctx, customer))
	customer.AssignedTo[0] = "mutated"

	loaded, err := s.customers.GetByID(s.ctx, customer.ID)
	s.Require().NoError(err)
	s.Equal([]string{"a"}, loaded.AssignedTo)
}

func (s *StoreSuite) TestTicketQueries() {
	company := uuid.NewString()
	customer := uuid.NewString()
	open := &domain.Ticket{TicketID: "TKT-2026-000001", CompanyID: company, CustomerID: customer, Subject: "Invoice missing", Status: domain.TicketStatusOpen, Priority: domain.TicketPriorityLow, Category: domain.TicketCategoryBilling}
	closed := &domain.Ticket{TicketID: "TKT-2026-000002", CompanyID: company, CustomerID: customer, Subject: "Late parcel", Status: domain.TicketStatusClosed, Priority: domain.TicketPriorityHigh, Category: domain.TicketCategoryDelivery}
	s.Require().NoError(s.tickets.Create(s.ctx, open))
	s.Require().NoError(s.tickets.Create(s.ctx, closed))
	s.ErrorIs(s.tickets.Create(s.ctx, &domain.Ticket{TicketID: open.TicketID}), repository.ErrDuplicate)

	s.Run("search matches ticket id and subject case-insensitively", func() {
		list, err := s.tickets.List(s.ctx, repository.TicketFilter{CompanyID: company, Search: "INVOICE"})
		s.Require().NoError(err)
		s.Require().Len(list, 1)
		s.Equal(open.ID, list[0].ID)

		list, err = s.tickets.List(s.ctx, repository.TicketFilter{CompanyID: company, Search: "000002"})
		s.Require().NoError(err)
		s.Require().Len(list, 1)
		s.Equal(closed.ID, list[0].ID)
	})

	s.Run("filters and newest first", func() {
		list, err := s.tickets.List(s.ctx, repository.TicketFilter{CompanyID: company})
		s.Require().NoError(err)
		s.Require().Len(list, 2)
		s.Equal(closed.ID, list[0].ID)

		list, err = s.tickets.List(s.ctx, repository.TicketFilter{CompanyID: company, Priority: domain.TicketPriorityLow})
		s.Require().NoError(err)
		s.Len(list, 1)
	})

	s.Run("by ticket id", func() {
		found, err := s.tickets.GetByTicketID(s.ctx, "TKT-2026-000002")
		s.Require().NoError(err)
		s.Equal(closed.ID, found.ID)
	})

	s.Run("counts by customer", func() {
		counts, err := s.tickets.CountByCustomer(s.ctx, company)
		s.Require().NoError(err)
		s.Equal(repository.TicketCounts{Raised: 2, Resolved: 1}, counts[customer])
	})
}

func (s *StoreSuite) TestSequenceAndQueue() {
	seq := NewTicketSequence()
	n1, _ := seq.Next(s.ctx, 2026)
	n2, _ := seq.Next(s.ctx, 2026)
	other, _ := seq.Next(s.ctx, 2027)
	s.Equal(int64(1), n1)
	s.Equal(int64(2), n2)
	s.Equal(int64(1), other)

	queue := NewCascadeQueue(4)
	job, err := queue.Dequeue(s.ctx, 10*time.Millisecond)
	s.Require().NoError(err)
	s.Nil(job)

	s.Require().NoError(queue.Enqueue(s.ctx, domain.CascadeJob{CustomerID: "c1", Attempt: 1}))
	s.Equal(1, queue.Len())
	job, err = queue.Dequeue(s.ctx, time.Second)
	s.Require().NoError(err)
	s.Require().NotNil(job)
	s.Equal("c1", job.CustomerID)
}

func (s *StoreSuite) TestSequenceSeedAndMaxSequence() {
	seq := NewTicketSequence()
	s.Require().NoError(seq.Seed(s.ctx, 2026, 41))
	s.Require().NoError(seq.Seed(s.ctx, 2026, 7))
	n, err := seq.Next(s.ctx, 2026)
	s.Require().NoError(err)
	s.Equal(int64(42), n)

	store := NewTicketStore()
	for _, id := range []string{"TKT-2026-000009", "TKT-2026-000120", "TKT-2027-000500", "TKT-2026-bogus"} {
		s.Require().NoError(store.Create(s.ctx, &domain.Ticket{TicketID: id, CompanyID: "c", CustomerID: "x"}))
	}
	highest, err := store.MaxSequence(s.ctx, 2026)
	s.Require().NoError(err)
	s.Equal(int64(120), highest)

	highest, err = store.MaxSequence(s.ctx, 2030)
	s.Require().NoError(err)
	s.Zero(highest)
}
