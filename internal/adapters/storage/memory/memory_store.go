package memory

import (
	"context"
	"sync"

	"github.com/smartstudent-vn/spss-agent/internal/domain"
)

type MemoryStore struct {
	mu      sync.RWMutex
	digests map[domain.UserID]*domain.MemoryDigest
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		digests: make(map[domain.UserID]*domain.MemoryDigest),
	}
}

// Get returns a zero-valued digest when the user has none yet.
func (s *MemoryStore) Get(_ context.Context, userID domain.UserID) (*domain.MemoryDigest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if d, ok := s.digests[userID]; ok {
		cp := *d
		return &cp, nil
	}
	return &domain.MemoryDigest{}, nil
}

func (s *MemoryStore) Put(_ context.Context, userID domain.UserID, digest *domain.MemoryDigest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *digest
	s.digests[userID] = &cp
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, userID domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.digests, userID)
	return nil
}
