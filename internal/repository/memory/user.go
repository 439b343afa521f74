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

// UserStore is an in-memory repository.UserRepository.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]domain.User
	order map[string]int
	seq   int
}

// NewUserStore builds an empty store.
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]domain.User), order: make(map[string]int)}
}

var _ repository.UserRepository = (*UserStore)(nil)

func (s *UserStore) Create(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user.Email = strings.ToLower(user.Email)
	if s.emailTaken(user.Email, "") {
		return repository.ErrDuplicate
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	user.JoinedAt, user.CreatedAt, user.UpdatedAt = now, now, now
	s.seq++
	s.order[user.ID] = s.seq
	s.users[user.ID] = *user
	return nil
}

func (s *UserStore) Update(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.users[user.ID]
	if !ok {
		return repository.ErrNotFound
	}
	user.Email = strings.ToLower(user.Email)
	if s.emailTaken(user.Email, user.ID) {
		return repository.ErrDuplicate
	}
	user.CompanyID = existing.CompanyID
	user.JoinedAt = existing.JoinedAt
	user.CreatedAt = existing.CreatedAt
	user.UpdatedAt = time.Now().UTC()
	s.users[user.ID] = *user
	return nil
}

func (s *UserStore) emailTaken(email, exceptID string) bool {
	for id, existing := range s.users {
		if id != exceptID && existing.Email == email {
			return true
		}
	}
	return false
}

func (s *UserStore) GetByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

func (s *UserStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	email = strings.ToLower(email)
	for _, user := range s.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *UserStore) List(_ context.Context, filter repository.UserFilter) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids map[string]struct{}
	if filter.IDs != nil {
		ids = make(map[string]struct{}, len(filter.IDs))
		for _, id := range filter.IDs {
			ids[id] = struct{}{}
		}
	}
	var result []domain.User
	for _, user := range s.users {
		if filter.CompanyID != "" && user.CompanyID != filter.CompanyID {
			continue
		}
		if filter.Role != "" && user.Role != filter.Role {
			continue
		}
		if filter.Status != "" && user.Status != filter.Status {
			continue
		}
		if ids != nil {
			if _, ok := ids[user.ID]; !ok {
				continue
			}
		}
		result = append(result, user)
	}
	sort.Slice(result, func(i, j int) bool {
		return s.order[result[i].ID] > s.order[result[j].ID]
	})
	return result, nil
}

func (s *UserStore) Count(ctx context.Context, filter repository.UserFilter) (int, error) {
	list, err := s.List(ctx, filter)
	return len(list), err
}
