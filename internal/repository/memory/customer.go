package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/repository"
)

// CustomerStore is an in-memory repository.CustomerRepository.
type CustomerStore struct {
	mu        sync.RWMutex
	customers map[string]*domain.Customer
	order     map[string]int
	seq       int
}

// NewCustomerStore builds an empty store.
func NewCustomerStore() *CustomerStore {
	return &CustomerStore{customers: make(map[string]*domain.Customer), order: make(map[string]int)}
}

var _ repository.CustomerRepository = (*CustomerStore)(nil)

func (s *CustomerStore) Create(_ context.Context, customer *domain.Customer, entries ...domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if customer.ID == "" {
		customer.ID = uuid.NewString()
	}
	if _, exists := s.customers[customer.ID]; exists {
		return repository.ErrDuplicate
	}
	now := time.Now().UTC()
	customer.CreatedAt, customer.UpdatedAt = now, now
	customer.Audit = append(customer.Audit, entries...)
	s.seq++
	s.order[customer.ID] = s.seq
	s.customers[customer.ID] = cloneCustomer(customer)
	return nil
}

// Update replaces the row and appends entries to the stored trail. The stored
// trail wins over whatever the caller holds, so entries are never lost or rewritten.
func (s *CustomerStore) Update(_ context.Context, customer *domain.Customer, entries ...domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.customers[customer.ID]
	if !ok {
		return repository.ErrNotFound
	}
	customer.CompanyID = existing.CompanyID
	customer.CreatedAt = existing.CreatedAt
	customer.UpdatedAt = time.Now().UTC()
	trail := append(cloneAudit(existing.Audit), entries...)
	customer.Audit = cloneAudit(trail)
	stored := cloneCustomer(customer)
	stored.Audit = trail
	s.customers[customer.ID] = stored
	return nil
}

func (s *CustomerStore) GetByID(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	customer, ok := s.customers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneCustomer(customer), nil
}

func (s *CustomerStore) List(_ context.Context, filter repository.CustomerFilter) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Customer
	for _, customer := range s.customers {
		if filter.CompanyID != "" && customer.CompanyID != filter.CompanyID {
			continue
		}
		if filter.AssignedTo != "" && !customer.HasAssignee(filter.AssignedTo) {
			continue
		}
		if filter.ExcludeDeleted && customer.IsDeleted() {
			continue
		}
		result = append(result, *cloneCustomer(customer))
	}
	sort.Slice(result, func(i, j int) bool {
		return s.order[result[i].ID] > s.order[result[j].ID]
	})
	return result, nil
}
