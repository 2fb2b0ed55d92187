package domain

import (
	"context"
	"errors"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("username already taken")
)

// Classifier is how the core talks to the LLM. One call per user turn, no
// internal retries; implementations must observe ctx cancellation promptly.
//
// The outcome is a four-way result expressed the Go way: a successful parse
// returns a Classification, a malformed-but-present response returns one with
// Degraded set (GREEN risk, no insight), a cancelled call returns ctx's error
// and any other failure returns its own error.
type Classifier interface {
	Classify(ctx context.Context, req ClassifyRequest) (Classification, error)
}

// ClassifyRequest carries one user turn plus the bounded context around it.
type ClassifyRequest struct {
	Text     string
	Persona  Persona
	History  []*Message // rolling window, oldest first
	Insights string     // memory digest fed into the system prompt
}

// Classification is the normalized model verdict for a single exchange.
type Classification struct {
	Reply    string
	Risk     RiskLevel
	Insight  string
	Degraded bool // raw-text fallback: reply only, risk forced to GREEN
}

// SessionStore persists the per-(user, persona) message log. Order of appends
// is the conversational turn order and must be preserved on read.
type SessionStore interface {
	AppendMessage(ctx context.Context, userID UserID, persona Persona, msg *Message) error

	// History returns the last limit messages of the thread, oldest first.
	// limit <= 0 means the whole thread.
	History(ctx context.Context, userID UserID, persona Persona, limit int) ([]*Message, error)
}

// MemoryStore persists one MemoryDigest per user. Get returns a zero-valued
// digest, not an error, when the user has none yet.
type MemoryStore interface {
	Get(ctx context.Context, userID UserID) (*MemoryDigest, error)
	Put(ctx context.Context, userID UserID, digest *MemoryDigest) error
	Delete(ctx context.Context, userID UserID) error
}

// AlertLog is the append-only, size-bounded escalation feed. Implementations
// own the ring-buffer bound: appending beyond it evicts the oldest entries.
type AlertLog interface {
	Append(ctx context.Context, alert *Alert) error

	// List returns alerts newest first.
	List(ctx context.Context) ([]*Alert, error)
}

// UserStore persists registered users.
type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id UserID) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}
