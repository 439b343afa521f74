package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/repository"
)

// CompanyStore is an in-memory repository.CompanyRepository.
type CompanyStore struct {
	mu        sync.RWMutex
	companies map[string]domain.Company
	order     map[string]int
	seq       int
}

// NewCompanyStore builds an empty store.
func NewCompanyStore() *CompanyStore {
	return &CompanyStore{companies: make(map[string]domain.Company), order: make(map[string]int)}
}

var _ repository.CompanyRepository = (*CompanyStore)(nil)

func (s *CompanyStore) Create(_ context.Context, company *domain.Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	company.BusinessEmail = strings.ToLower(company.BusinessEmail)
	for _, existing := range s.companies {
		if existing.BusinessEmail == company.BusinessEmail {
			return repository.ErrDuplicate
		}
	}
	if company.ID == "" {
		company.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	company.CreatedAt, company.UpdatedAt = now, now
	s.seq++
	s.order[company.ID] = s.seq
	s.companies[company.ID] = *company
	return nil
}

func (s *CompanyStore) Update(_ context.Context, company *domain.Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.companies[company.ID]
	if !ok {
		return repository.ErrNotFound
	}
	company.BusinessEmail = existing.BusinessEmail
	company.CreatedAt = existing.CreatedAt
	company.UpdatedAt = time.Now().UTC()
	s.companies[company.ID] = *company
	return nil
}

func (s *CompanyStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.companies[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.companies, id)
	delete(s.order, id)
	return nil
}

func (s *CompanyStore) GetByID(_ context.Context, id string) (*domain.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	company, ok := s.companies[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &company, nil
}

func (s *CompanyStore) GetByEmail(_ context.Context, email string) (*domain.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	email = strings.ToLower(email)
	for _, company := range s.companies {
		if company.BusinessEmail == email {
			c := company
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *CompanyStore) List(_ context.Context, filter repository.CompanyFilter) ([]domain.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Company
	for _, company := range s.companies {
		if filter.Approved != nil && company.Approved != *filter.Approved {
			continue
		}
		result = append(result, company)
	}
	sort.Slice(result, func(i, j int) bool {
		return s.order[result[i].ID] > s.order[result[j].ID]
	})
	return result, nil
}

func (s *CompanyStore) Count(ctx context.Context, filter repository.CompanyFilter) (int, error) {
	list, err := s.List(ctx, filter)
	return len(list), err
}
