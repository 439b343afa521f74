package service

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/events"
	"github.com/spec-kit/crm-service/internal/observability"
	"github.com/spec-kit/crm-service/internal/repository"
	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

// CustomerService owns the customer lifecycle and its audit trail.
type CustomerService struct {
	customers  repository.CustomerRepository
	directory  *assigneeDirectory
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        Clock
	diff       *DiffEngine[domain.Customer]
}

// CustomerDependencies bundles collaborators for the customer service.
type CustomerDependencies struct {
	CustomerRepo repository.CustomerRepository
	UserRepo     repository.UserRepository
	Dispatcher   events.Dispatcher
	Metrics      *observability.Metrics
	Logger       *zap.Logger
	Clock        Clock
}

// CustomerCreateInput describes customer creation payload.
type CustomerCreateInput struct {
	Name        string
	ContactName string
	Email       string
	Phone       string
	Location    string
	LeadSource  string
	Status      domain.CustomerStatus
	AssignedTo  []string
}

// CustomerView is a customer with its assignees populated.
type CustomerView struct {
	Customer  *domain.Customer
	Assignees []AssigneeSummary
}

// NewCustomerService constructs the service.
func NewCustomerService(deps CustomerDependencies) *CustomerService {
	return &CustomerService{
		customers:  deps.CustomerRepo,
		directory:  newAssigneeDirectory(deps.UserRepo),
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     orNopLogger(deps.Logger).Named("customers"),
		now:        orDefaultClock(deps.Clock),
		diff:       customerDiffEngine(),
	}
}

func customerDiffEngine() *DiffEngine[domain.Customer] {
	return &DiffEngine[domain.Customer]{fields: map[string]fieldSpec[domain.Customer]{
		"name":        requiredStringField(func(c *domain.Customer) *string { return &c.Name }),
		"contactName": stringField(func(c *domain.Customer) *string { return &c.ContactName }),
		"email":       stringField(func(c *domain.Customer) *string { return &c.Email }),
		"phone":       stringField(func(c *domain.Customer) *string { return &c.Phone }),
		"location":    stringField(func(c *domain.Customer) *string { return &c.Location }),
		"leadSource":  stringField(func(c *domain.Customer) *string { return &c.LeadSource }),
		"status": enumField(func(c *domain.Customer) *domain.CustomerStatus { return &c.Status },
			domain.CustomerStatus.Valid),
		"state": enumField(func(c *domain.Customer) *domain.CustomerState { return &c.State },
			domain.CustomerState.Valid),
		"assignedTo": refsField(func(c *domain.Customer) *[]string { return &c.AssignedTo }),
	}}
}

// Create registers a lead (or customer) for the actor's company.
func (s *CustomerService) Create(ctx context.Context, actor domain.Actor, input CustomerCreateInput) (*CustomerView, error) {
	if err := requireTenant(actor); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewValidationError("Customer name is required", nil)
	}
	status := input.Status
	if status == "" {
		status = domain.CustomerStatusLead
	}
	if !status.Valid() {
		return nil, apperrors.NewValidationError("Invalid value for status", map[string]any{"field": "status"})
	}

	assigned, err := s.directory.eligible(ctx, actor.CompanyID, input.AssignedTo, true)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	names, err := s.directory.describe(ctx, assigned)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	now := s.now()
	customer := &domain.Customer{
		CompanyID:     actor.CompanyID,
		Name:          name,
		ContactName:   input.ContactName,
		Email:         input.Email,
		Phone:         input.Phone,
		Location:      input.Location,
		LeadSource:    input.LeadSource,
		CreatedBy:     actor.ID,
		CreatedByName: actorName(actor),
		Status:        status,
		State:         domain.CustomerStateActive,
		AssignedTo:    assigned,
	}
	if status == domain.CustomerStatusConverted {
		customer.ConversionDate = timePtr(now)
		customer.ConversionSource = conversionSource(customer)
	}

	note := "Customer created"
	var diff domain.Diff
	if names != noAssignees {
		note += " and assigned to " + names
		diff = domain.Diff{"assignedTo": {From: noAssignees, To: names}}
	}
	if status != domain.CustomerStatusLead {
		note += " with status: " + string(status)
	}
	entry := domain.NewAuditEntry(actor, domain.AuditCreated, note, diff, now)
	entry.ByName = actorName(actor)

	if err := s.customers.Create(ctx, customer, entry); err != nil {
		return nil, apperrors.MapError(err)
	}
	recordAudit(s.metrics, domain.AggregateCustomer, entry)
	s.logger.Info("customer created", zap.String("customer_id", customer.ID), zap.String("company_id", customer.CompanyID))
	s.publishChange(ctx, actor, events.EventCustomerCreated, customer, entry)
	return s.view(ctx, customer)
}

// List returns the company's customers newest first, soft-deleted ones included.
func (s *CustomerService) List(ctx context.Context, actor domain.Actor) ([]CustomerView, error) {
	if err := requireTenant(actor); err != nil {
		return nil, err
	}
	customers, err := s.customers.List(ctx, repository.CustomerFilter{CompanyID: actor.CompanyID})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	lists := make([][]string, len(customers))
	for i := range customers {
		lists[i] = customers[i].AssignedTo
	}
	table, err := s.directory.summariesFor(ctx, lists)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	views := make([]CustomerView, 0, len(customers))
	for i := range customers {
		views = append(views, CustomerView{Customer: &customers[i], Assignees: pick(table, customers[i].AssignedTo)})
	}
	return views, nil
}

// Get fetches one customer of the actor's company.
func (s *CustomerService) Get(ctx context.Context, actor domain.Actor, id string) (*CustomerView, error) {
	customer, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, customer)
}

// Update applies patch and audits the fields that actually changed. assignedTo is
// narrowed to active employees of the company before comparison.
func (s *CustomerService) Update(ctx context.Context, actor domain.Actor, id string, patch map[string]json.RawMessage) (*CustomerView, error) {
	customer, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	changes, err := s.diff.Compute(ctx, customer, patch, s.directory.names, s.directory.activeFilter(actor.CompanyID))
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	changes.Apply(customer)

	var entries []domain.AuditEntry
	if !changes.Empty() {
		entries = append(entries, domain.NewAuditEntry(actor, domain.AuditUpdated, changes.Note(), changes.Diff, s.now()))
		entries[0].ByName = actorName(actor)
	}
	if err := s.customers.Update(ctx, customer, entries...); err != nil {
		return nil, storeError(err, "Customer")
	}
	recordAudit(s.metrics, domain.AggregateCustomer, entries...)
	if len(entries) > 0 {
		s.publishChange(ctx, actor, events.EventCustomerUpdated, customer, entries[0])
	}
	return s.view(ctx, customer)
}

// Convert turns a lead into a customer. Converting twice is a conflict.
func (s *CustomerService) Convert(ctx context.Context, actor domain.Actor, id string) (*CustomerView, error) {
	customer, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if customer.Status == domain.CustomerStatusConverted {
		return nil, apperrors.NewConflict("Customer already converted", nil)
	}

	now := s.now()
	from := customer.Status
	customer.Status = domain.CustomerStatusConverted
	customer.ConversionDate = timePtr(now)
	customer.ConversionSource = conversionSource(customer)

	entry := domain.NewAuditEntry(actor, domain.AuditConverted, "Lead converted to Customer",
		domain.Diff{"status": {From: from, To: domain.CustomerStatusConverted}}, now)
	entry.ByName = actorName(actor)
	if err := s.customers.Update(ctx, customer, entry); err != nil {
		return nil, storeError(err, "Customer")
	}
	recordAudit(s.metrics, domain.AggregateCustomer, entry)
	s.publishChange(ctx, actor, events.EventCustomerConverted, customer, entry)
	return s.view(ctx, customer)
}

// SoftDelete deactivates a customer. Repeating it is allowed and audited again.
func (s *CustomerService) SoftDelete(ctx context.Context, actor domain.Actor, id string) (*CustomerView, error) {
	customer, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	customer.DeletedAt = timePtr(now)
	customer.DeletedBy = actor.ID
	customer.State = domain.CustomerStateDeactive

	entry := domain.NewAuditEntry(actor, domain.AuditDeleted, "Customer deactivated (soft deleted)", nil, now)
	entry.ByName = actorName(actor)
	if err := s.customers.Update(ctx, customer, entry); err != nil {
		return nil, storeError(err, "Customer")
	}
	recordAudit(s.metrics, domain.AggregateCustomer, entry)
	s.publishChange(ctx, actor, events.EventCustomerDeleted, customer, entry)
	return s.view(ctx, customer)
}

// Restore reverses SoftDelete.
func (s *CustomerService) Restore(ctx context.Context, actor domain.Actor, id string) (*CustomerView, error) {
	customer, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	customer.DeletedAt = nil
	customer.DeletedBy = ""
	customer.State = domain.CustomerStateActive

	entry := domain.NewAuditEntry(actor, domain.AuditRestored, "Customer restored successfully", nil, s.now())
	entry.ByName = actorName(actor)
	if err := s.customers.Update(ctx, customer, entry); err != nil {
		return nil, storeError(err, "Customer")
	}
	recordAudit(s.metrics, domain.AggregateCustomer, entry)
	s.publishChange(ctx, actor, events.EventCustomerRestored, customer, entry)
	return s.view(ctx, customer)
}

func (s *CustomerService) load(ctx context.Context, actor domain.Actor, id string) (*domain.Customer, error) {
	if err := requireTenant(actor); err != nil {
		return nil, err
	}
	if !isUUID(id) {
		return nil, apperrors.NewValidationError("Invalid customer ID", nil)
	}
	customer, err := s.customers.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "Customer")
	}
	if customer.CompanyID != actor.CompanyID {
		return nil, apperrors.NewForbidden("Forbidden")
	}
	return customer, nil
}

func (s *CustomerService) view(ctx context.Context, customer *domain.Customer) (*CustomerView, error) {
	assignees, err := s.directory.summaries(ctx, customer.AssignedTo)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &CustomerView{Customer: customer, Assignees: assignees}, nil
}

func (s *CustomerService) publishChange(ctx context.Context, actor domain.Actor, eventType events.EventType, customer *domain.Customer, entry domain.AuditEntry) {
	publish(ctx, s.dispatcher, s.logger, events.Event{
		Type:          eventType,
		AggregateType: domain.AggregateCustomer,
		AggregateID:   customer.ID,
		CompanyID:     customer.CompanyID,
		Actor:         eventActor(actor),
		Timestamp:     entry.At,
		Payload:       events.ChangePayload{Note: entry.Note, Diff: entry.Diff},
	})
}

func conversionSource(c *domain.Customer) string {
	if c.LeadSource != "" {
		return c.LeadSource
	}
	return "Manual"
}

func actorName(actor domain.Actor) string {
	if actor.Name == "" {
		return "System"
	}
	return actor.Name
}
