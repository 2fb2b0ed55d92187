package memory

import (
	"context"
	"sync"

	"github.com/smartstudent-vn/spss-agent/internal/domain"
)

type UserStore struct {
	mu         sync.RWMutex
	users      map[domain.UserID]*domain.User
	byUsername map[string]domain.UserID
}

func NewUserStore() *UserStore {
	return &UserStore{
		users:      make(map[domain.UserID]*domain.User),
		byUsername: make(map[string]domain.UserID),
	}
}

func (s *UserStore) CreateUser(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byUsername[user.Username]; taken {
		return domain.ErrUserExists
	}
	cp := *user
	s.users[user.ID] = &cp
	s.byUsername[user.Username] = user.ID
	return nil
}

func (s *UserStore) GetUser(_ context.Context, id domain.UserID) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *UserStore) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *s.users[id]
	return &cp, nil
}
