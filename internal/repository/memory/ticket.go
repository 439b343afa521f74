package memory

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/repository"
)

// TicketStore is an in-memory repository.TicketRepository.
type TicketStore struct {
	mu      sync.RWMutex
	tickets map[string]*domain.Ticket
	order   map[string]int
	seq     int
}

// NewTicketStore builds an empty store.
func NewTicketStore() *TicketStore {
	return &TicketStore{tickets: make(map[string]*domain.Ticket), order: make(map[string]int)}
}

var _ repository.TicketRepository = (*TicketStore)(nil)

func (s *TicketStore) Create(_ context.Context, ticket *domain.Ticket, entries ...domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.tickets {
		if existing.TicketID == ticket.TicketID {
			return repository.ErrDuplicate
		}
	}
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	ticket.CreatedAt, ticket.UpdatedAt = now, now
	ticket.Audit = append(ticket.Audit, entries...)
	s.seq++
	s.order[ticket.ID] = s.seq
	s.tickets[ticket.ID] = cloneTicket(ticket)
	return nil
}

func (s *TicketStore) Update(_ context.Context, ticket *domain.Ticket, entries ...domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.tickets[ticket.ID]
	if !ok {
		return repository.ErrNotFound
	}
	ticket.TicketID = existing.TicketID
	ticket.CompanyID = existing.CompanyID
	ticket.CustomerID = existing.CustomerID
	ticket.CreatedAt = existing.CreatedAt
	ticket.UpdatedAt = time.Now().UTC()
	trail := append(cloneAudit(existing.Audit), entries...)
	ticket.Audit = cloneAudit(trail)
	stored := cloneTicket(ticket)
	stored.Audit = trail
	s.tickets[ticket.ID] = stored
	return nil
}

func (s *TicketStore) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ticket, ok := s.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneTicket(ticket), nil
}

func (s *TicketStore) GetByTicketID(_ context.Context, ticketID string) (*domain.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ticket := range s.tickets {
		if ticket.TicketID == ticketID {
			return cloneTicket(ticket), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *TicketStore) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	var result []domain.Ticket
	for _, ticket := range s.tickets {
		if filter.CompanyID != "" && ticket.CompanyID != filter.CompanyID {
			continue
		}
		if filter.CustomerID != "" && ticket.CustomerID != filter.CustomerID {
			continue
		}
		if filter.Status != "" && ticket.Status != filter.Status {
			continue
		}
		if filter.Priority != "" && ticket.Priority != filter.Priority {
			continue
		}
		if filter.Category != "" && ticket.Category != filter.Category {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(ticket.TicketID), search) &&
			!strings.Contains(strings.ToLower(ticket.Subject), search) {
			continue
		}
		result = append(result, *cloneTicket(ticket))
	}
	sort.Slice(result, func(i, j int) bool {
		return s.order[result[i].ID] > s.order[result[j].ID]
	})
	limit := filter.Limit
	if limit <= 0 || limit > repository.DefaultTicketListLimit {
		limit = repository.DefaultTicketListLimit
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *TicketStore) CountByCustomer(_ context.Context, companyID string) (map[string]repository.TicketCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]repository.TicketCounts)
	for _, ticket := range s.tickets {
		if ticket.CompanyID != companyID {
			continue
		}
		counts := result[ticket.CustomerID]
		counts.Raised++
		if ticket.Status.Done() {
			counts.Resolved++
		}
		result[ticket.CustomerID] = counts
	}
	return result, nil
}

func (s *TicketStore) MaxSequence(_ context.Context, year int) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefix := repository.TicketIDPrefix(year)
	var highest int64
	for _, ticket := range s.tickets {
		rest, ok := strings.CutPrefix(ticket.TicketID, prefix)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(rest, 10, 64)
		if err == nil && n > highest {
			highest = n
		}
	}
	return highest, nil
}
