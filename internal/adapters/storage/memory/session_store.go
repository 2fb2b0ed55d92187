// Package memory provides in-memory implementations of the storage ports.
// Nothing here is persistent; it backs local development and tests.
package memory

import (
	"context"
	"sync"

	"github.com/smartstudent-vn/spss-agent/internal/domain"
)

type threadKey struct {
	userID  domain.UserID
	persona domain.Persona
}

type SessionStore struct {
	mu      sync.RWMutex
	threads map[threadKey][]*domain.Message
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		threads: make(map[threadKey][]*domain.Message),
	}
}

func (s *SessionStore) AppendMessage(
	_ context.Context,
	userID domain.UserID,
	persona domain.Persona,
	msg *domain.Message,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := threadKey{userID: userID, persona: persona}
	s.threads[key] = append(s.threads[key], msg)
	return nil
}

func (s *SessionStore) History(
	_ context.Context,
	userID domain.UserID,
	persona domain.Persona,
	limit int,
) ([]*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.threads[threadKey{userID: userID, persona: persona}]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]*domain.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}
