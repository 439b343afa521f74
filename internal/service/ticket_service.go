package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/events"
	"github.com/spec-kit/crm-service/internal/observability"
	"github.com/spec-kit/crm-service/internal/repository"
	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

const maxTicketIDAttempts = 3

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets    repository.TicketRepository
	customers  repository.CustomerRepository
	sequence   repository.TicketSequence
	directory  *assigneeDirectory
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        Clock
	diff       *DiffEngine[domain.Ticket]
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo   repository.TicketRepository
	CustomerRepo repository.CustomerRepository
	UserRepo     repository.UserRepository
	Sequence     repository.TicketSequence
	Dispatcher   events.Dispatcher
	Metrics      *observability.Metrics
	Logger       *zap.Logger
	Clock        Clock
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	CustomerID  string
	Subject     string
	Description string
	Category    domain.TicketCategory
	Priority    domain.TicketPriority
	Status      domain.TicketStatus
	AssignedTo  []string
	Attachments []string
	SLADeadline string
}

// TicketListFilter describes listing filters.
type TicketListFilter struct {
	Status   domain.TicketStatus
	Priority domain.TicketPriority
	Category domain.TicketCategory
	Search   string
	Limit    int
}

// CustomerBrief is the populated customer reference of a ticket.
type CustomerBrief struct {
	ID          string
	Name        string
	ContactName string
	Email       string
	Phone       string
}

// TicketView is a ticket with assignees and customer populated.
type TicketView struct {
	Ticket    *domain.Ticket
	Assignees []AssigneeSummary
	Customer  *CustomerBrief
}

// CustomerTicketSummary aggregates ticket counts of one customer.
type CustomerTicketSummary struct {
	CustomerID    string
	Name          string
	ContactName   string
	Email         string
	Phone         string
	TotalRaised   int
	TotalResolved int
}

// NewTicketService wires dependencies.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		customers:  deps.CustomerRepo,
		sequence:   deps.Sequence,
		directory:  newAssigneeDirectory(deps.UserRepo),
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     orNopLogger(deps.Logger).Named("tickets"),
		now:        orDefaultClock(deps.Clock),
		diff:       ticketDiffEngine(),
	}
}

func ticketDiffEngine() *DiffEngine[domain.Ticket] {
	return &DiffEngine[domain.Ticket]{fields: map[string]fieldSpec[domain.Ticket]{
		"subject":     requiredStringField(func(t *domain.Ticket) *string { return &t.Subject }),
		"description": stringField(func(t *domain.Ticket) *string { return &t.Description }),
		"category": enumField(func(t *domain.Ticket) *domain.TicketCategory { return &t.Category },
			domain.TicketCategory.Valid),
		"priority": enumField(func(t *domain.Ticket) *domain.TicketPriority { return &t.Priority },
			domain.TicketPriority.Valid),
		"status": enumField(func(t *domain.Ticket) *domain.TicketStatus { return &t.Status },
			domain.TicketStatus.Valid),
		"slaDeadline": dateField(func(t *domain.Ticket) **time.Time { return &t.SLADeadline }),
		"attachments": stringListField(func(t *domain.Ticket) *[]string { return &t.Attachments }),
		"assignedTo":  refsField(func(t *domain.Ticket) *[]string { return &t.AssignedTo }),
	}}
}

// CreateTicket raises a ticket for a customer of the actor's company.
func (s *TicketService) CreateTicket(ctx context.Context, actor domain.Actor, input TicketCreateInput) (*TicketView, error) {
	if err := requireTenant(actor); err != nil {
		return nil, err
	}
	subject := strings.TrimSpace(input.Subject)
	customerID := strings.TrimSpace(input.CustomerID)
	if customerID == "" || subject == "" {
		return nil, apperrors.NewValidationError("customerId and subject required", nil)
	}
	if !isUUID(customerID) {
		return nil, apperrors.NewValidationError("Invalid customerId", nil)
	}
	customer, err := s.customers.GetByID(ctx, customerID)
	if err != nil {
		return nil, storeError(err, "Customer")
	}
	if customer.CompanyID != actor.CompanyID {
		return nil, apperrors.NewForbidden("Customer does not belong to your company")
	}

	ticket := &domain.Ticket{
		CompanyID:   actor.CompanyID,
		CustomerID:  customer.ID,
		Subject:     subject,
		Description: input.Description,
		Category:    input.Category,
		Priority:    input.Priority,
		Status:      input.Status,
		Attachments: nonNil(input.Attachments),
	}
	if ticket.Category == "" {
		ticket.Category = domain.TicketCategoryOther
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityLow
	}
	if ticket.Status == "" {
		ticket.Status = domain.TicketStatusOpen
	}
	switch {
	case !ticket.Category.Valid():
		return nil, invalidField("category")
	case !ticket.Priority.Valid():
		return nil, invalidField("priority")
	case !ticket.Status.Valid():
		return nil, invalidField("status")
	}
	if ticket.SLADeadline, err = parseDate(input.SLADeadline); err != nil {
		return nil, invalidField("slaDeadline")
	}

	if ticket.AssignedTo, err = s.directory.eligible(ctx, actor.CompanyID, input.AssignedTo, true); err != nil {
		return nil, apperrors.MapError(err)
	}
	names, err := s.directory.describe(ctx, ticket.AssignedTo)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	now := s.now()
	note := "Ticket created"
	var diff domain.Diff
	if names != noAssignees {
		note += " and assigned to " + names
		diff = domain.Diff{"assignedTo": {From: noAssignees, To: names}}
	}
	entry := domain.NewAuditEntry(actor, domain.AuditCreated, note, diff, now)
	entry.ByName = actorName(actor)

	if err := s.insert(ctx, ticket, now.Year(), entry); err != nil {
		return nil, err
	}
	recordAudit(s.metrics, domain.AggregateTicket, entry)
	s.metrics.RecordTicketCreated()
	s.logger.Info("ticket created", zap.String("ticket_id", ticket.TicketID), zap.String("company_id", ticket.CompanyID))

	publish(ctx, s.dispatcher, s.logger, events.Event{
		Type:          events.EventTicketCreated,
		AggregateType: domain.AggregateTicket,
		AggregateID:   ticket.ID,
		CompanyID:     ticket.CompanyID,
		Actor:         eventActor(actor),
		Timestamp:     now,
		Payload: events.TicketCreatedPayload{
			TicketID:   ticket.TicketID,
			CustomerID: ticket.CustomerID,
			Priority:   ticket.Priority,
			Subject:    ticket.Subject,
		},
	})
	return s.view(ctx, ticket, customer)
}

// insert numbers and stores ticket. When the ticketId is already taken the
// counter is raised past the highest stored number and the insert retried.
func (s *TicketService) insert(ctx context.Context, ticket *domain.Ticket, year int, entry domain.AuditEntry) error {
	for attempt := 1; ; attempt++ {
		seq, err := s.sequence.Next(ctx, year)
		if err != nil {
			return apperrors.NewInternalError(err)
		}
		ticket.TicketID = fmt.Sprintf("%s%06d", repository.TicketIDPrefix(year), seq)

		err = s.tickets.Create(ctx, ticket, entry)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return apperrors.MapError(err)
		}
		s.logger.Warn("ticket id taken, resyncing sequence",
			zap.String("ticket_id", ticket.TicketID), zap.Int("attempt", attempt))
		if attempt == maxTicketIDAttempts {
			return apperrors.NewConflict("Could not allocate a ticket id, please retry", nil)
		}
		highest, err := s.tickets.MaxSequence(ctx, year)
		if err != nil {
			return apperrors.MapError(err)
		}
		if err := s.sequence.Seed(ctx, year, highest); err != nil {
			return apperrors.NewInternalError(err)
		}
	}
}

// ListTickets returns the company's tickets newest first.
func (s *TicketService) ListTickets(ctx context.Context, actor domain.Actor, filter TicketListFilter) ([]TicketView, error) {
	if err := requireTenant(actor); err != nil {
		return nil, err
	}
	tickets, err := s.tickets.List(ctx, repository.TicketFilter{
		CompanyID: actor.CompanyID,
		Status:    filter.Status,
		Priority:  filter.Priority,
		Category:  filter.Category,
		Search:    filter.Search,
		Limit:     filter.Limit,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return s.views(ctx, actor.CompanyID, tickets)
}

// GetTicket resolves id as a row id or as a human ticket id.
func (s *TicketService) GetTicket(ctx context.Context, actor domain.Actor, id string) (*TicketView, error) {
	ticket, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, ticket, nil)
}

// UpdateTicket applies patch. Any status transition is accepted; assignees are
// narrowed to employees of the company without an activity check.
func (s *TicketService) UpdateTicket(ctx context.Context, actor domain.Actor, id string, patch map[string]json.RawMessage) (*TicketView, error) {
	ticket, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	changes, err := s.diff.Compute(ctx, ticket, patch, s.directory.names, s.directory.tenantFilter(actor.CompanyID))
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	changes.Apply(ticket)

	var entries []domain.AuditEntry
	if !changes.Empty() {
		entry := domain.NewAuditEntry(actor, domain.AuditUpdated, changes.Note(), changes.Diff, s.now())
		entry.ByName = actorName(actor)
		entries = append(entries, entry)
	}
	if err := s.tickets.Update(ctx, ticket, entries...); err != nil {
		return nil, storeError(err, "Ticket")
	}
	recordAudit(s.metrics, domain.AggregateTicket, entries...)
	for _, entry := range entries {
		publish(ctx, s.dispatcher, s.logger, events.Event{
			Type:          events.EventTicketUpdated,
			AggregateType: domain.AggregateTicket,
			AggregateID:   ticket.ID,
			CompanyID:     ticket.CompanyID,
			Actor:         eventActor(actor),
			Timestamp:     entry.At,
			Payload:       events.ChangePayload{Note: entry.Note, Diff: entry.Diff},
		})
	}
	return s.view(ctx, ticket, nil)
}

// AssignTicket replaces the assignee list.
func (s *TicketService) AssignTicket(ctx context.Context, actor domain.Actor, id string, assignedTo json.RawMessage) (*TicketView, error) {
	if assignedTo == nil {
		assignedTo = json.RawMessage("null")
	}
	return s.UpdateTicket(ctx, actor, id, map[string]json.RawMessage{"assignedTo": assignedTo})
}

// CustomerSummary reports raised and resolved counts per customer of the company.
func (s *TicketService) CustomerSummary(ctx context.Context, actor domain.Actor) ([]CustomerTicketSummary, error) {
	if err := requireTenant(actor); err != nil {
		return nil, err
	}
	customers, err := s.customers.List(ctx, repository.CustomerFilter{CompanyID: actor.CompanyID})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	counts, err := s.tickets.CountByCustomer(ctx, actor.CompanyID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	out := make([]CustomerTicketSummary, 0, len(customers))
	for _, c := range customers {
		n := counts[c.ID]
		out = append(out, CustomerTicketSummary{
			CustomerID:    c.ID,
			Name:          c.Name,
			ContactName:   c.ContactName,
			Email:         c.Email,
			Phone:         c.Phone,
			TotalRaised:   n.Raised,
			TotalResolved: n.Resolved,
		})
	}
	return out, nil
}

// ListForCustomer returns tickets of one customer of the company.
func (s *TicketService) ListForCustomer(ctx context.Context, actor domain.Actor, customerID string) ([]TicketView, error) {
	if err := requireTenant(actor); err != nil {
		return nil, err
	}
	if !isUUID(customerID) {
		return nil, apperrors.NewValidationError("Invalid customerId", nil)
	}
	customer, err := s.customers.GetByID(ctx, customerID)
	if err != nil {
		return nil, storeError(err, "Customer")
	}
	if customer.CompanyID != actor.CompanyID {
		return nil, apperrors.NewForbidden("Customer does not belong to your company")
	}
	tickets, err := s.tickets.List(ctx, repository.TicketFilter{CompanyID: actor.CompanyID, CustomerID: customer.ID})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return s.views(ctx, actor.CompanyID, tickets)
}

func (s *TicketService) load(ctx context.Context, actor domain.Actor, id string) (*domain.Ticket, error) {
	if err := requireTenant(actor); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperrors.NewValidationError("Invalid ticket id", nil)
	}
	var (
		ticket *domain.Ticket
		err    error
	)
	if isUUID(id) {
		ticket, err = s.tickets.GetByID(ctx, id)
	} else {
		ticket, err = s.tickets.GetByTicketID(ctx, id)
	}
	if err != nil {
		return nil, storeError(err, "Ticket")
	}
	if ticket.CompanyID != actor.CompanyID {
		return nil, apperrors.NewForbidden("Forbidden")
	}
	return ticket, nil
}

func (s *TicketService) view(ctx context.Context, ticket *domain.Ticket, customer *domain.Customer) (*TicketView, error) {
	assignees, err := s.directory.summaries(ctx, ticket.AssignedTo)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if customer == nil {
		found, err := s.customers.GetByID(ctx, ticket.CustomerID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.MapError(err)
		}
		customer = found
	}
	return &TicketView{Ticket: ticket, Assignees: assignees, Customer: brief(customer)}, nil
}

func (s *TicketService) views(ctx context.Context, companyID string, tickets []domain.Ticket) ([]TicketView, error) {
	lists := make([][]string, len(tickets))
	for i := range tickets {
		lists[i] = tickets[i].AssignedTo
	}
	table, err := s.directory.summariesFor(ctx, lists)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	customers := map[string]*domain.Customer{}
	if len(tickets) > 0 {
		list, err := s.customers.List(ctx, repository.CustomerFilter{CompanyID: companyID})
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		for i := range list {
			customers[list[i].ID] = &list[i]
		}
	}
	out := make([]TicketView, 0, len(tickets))
	for i := range tickets {
		out = append(out, TicketView{
			Ticket:    &tickets[i],
			Assignees: pick(table, tickets[i].AssignedTo),
			Customer:  brief(customers[tickets[i].CustomerID]),
		})
	}
	return out, nil
}

func brief(c *domain.Customer) *CustomerBrief {
	if c == nil {
		return nil
	}
	return &CustomerBrief{ID: c.ID, Name: c.Name, ContactName: c.ContactName, Email: c.Email, Phone: c.Phone}
}

func invalidField(field string) error {
	return apperrors.NewValidationError(fmt.Sprintf("Invalid value for %s", field), map[string]any{"field": field})
}
