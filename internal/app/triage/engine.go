// Package triage implements the conversational risk triage engine: it runs
// each user turn through the classifier with a bounded rolling context plus
// the user's memory digest, and drives escalation from the returned risk.
package triage

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smartstudent-vn/spss-agent/internal/domain"
	"github.com/smartstudent-vn/spss-agent/internal/observability"
	"github.com/smartstudent-vn/spss-agent/internal/persona"
)

var (
	// ErrEmptyMessage rejects empty or whitespace-only input before any
	// network interaction.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrPending rejects a submission while another one for the same
	// (user, persona) pair is still in flight. The UI is expected to either
	// disable input or cancel the pending turn first.
	ErrPending = errors.New("a submission for this persona is already pending")

	// ErrCancelled reports a turn aborted via CancelPending. It leaves no
	// trace beyond the already-appended user message.
	ErrCancelled = errors.New("submission cancelled")
)

// FallbackReply is appended as the assistant turn when the classifier fails.
// The audience is a distressed student, so a failure must read as reassurance,
// never as rejection or a technical error.
const FallbackReply = "Mình đang gặp chút trục trặc kết nối, nhưng mình vẫn ở đây với bạn. " +
	"Bạn chờ một chút rồi gửi lại tin nhắn nhé!"

const insightSeparator = "; "

// Config carries the triage tunables. Zero values fall back to the defaults
// the latest front-end revision used.
type Config struct {
	ContextWindow int // prior messages sent to the classifier, default 6
	MemoryCap     int // insight digest bound in runes, default 400
}

type threadKey struct {
	userID  domain.UserID
	persona domain.Persona
}

// Engine orchestrates one persona thread per (user, persona) pair. All state
// lives behind the injected store ports; the engine itself only tracks which
// threads have a classification in flight.
type Engine struct {
	classifier domain.Classifier
	sessions   domain.SessionStore
	memories   domain.MemoryStore
	alerts     domain.AlertLog

	window    int
	memoryCap int
	now       func() time.Time

	mu      sync.Mutex
	pending map[threadKey]context.CancelFunc
	locked  map[threadKey]bool

	// digestMu serializes digest read-modify-write cycles so insights from
	// overlapping turns on different personas append instead of overwriting.
	digestMu sync.Mutex
}

func NewEngine(
	classifier domain.Classifier,
	sessions domain.SessionStore,
	memories domain.MemoryStore,
	alerts domain.AlertLog,
	cfg Config,
) *Engine {
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = 6
	}
	if cfg.MemoryCap <= 0 {
		cfg.MemoryCap = 400
	}
	return &Engine{
		classifier: classifier,
		sessions:   sessions,
		memories:   memories,
		alerts:     alerts,
		window:     cfg.ContextWindow,
		memoryCap:  cfg.MemoryCap,
		now:        time.Now,
		pending:    make(map[threadKey]context.CancelFunc),
		locked:     make(map[threadKey]bool),
	}
}

// Submit runs one user turn through classification and returns the resulting
// assistant message (or the fallback one). The user message is appended to the
// thread before the classifier is called and stays there whatever happens
// downstream. At most one submission per (user, persona) may be in flight.
func (e *Engine) Submit(
	ctx context.Context,
	user *domain.User,
	p domain.Persona,
	text string,
) (*domain.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if _, err := persona.Lookup(p); err != nil {
		return nil, err
	}

	key := threadKey{userID: user.ID, persona: p}

	e.mu.Lock()
	if _, busy := e.pending[key]; busy {
		e.mu.Unlock()
		return nil, ErrPending
	}
	callCtx, cancel := context.WithCancel(ctx)
	e.pending[key] = cancel
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.pending, key)
		e.mu.Unlock()
		cancel()
	}()

	log := observability.LoggerFromContext(ctx).With(
		"user_id", user.ID,
		"persona", p,
	)

	// The rolling window is read before the new message is appended, so the
	// classifier sees the prior K turns plus the new text separately.
	history, err := e.sessions.History(ctx, user.ID, p, e.window)
	if err != nil {
		log.Error("failed to load history", "error", err)
		return nil, err
	}

	userMsg := &domain.Message{
		ID:        domain.MessageID(uuid.NewString()),
		Role:      domain.RoleUser,
		Content:   text,
		CreatedAt: e.now(),
	}
	if err := e.sessions.AppendMessage(ctx, user.ID, p, userMsg); err != nil {
		log.Error("failed to append user message", "error", err)
		return nil, err
	}

	digest, err := e.memories.Get(ctx, user.ID)
	if err != nil {
		log.Error("failed to load memory digest", "error", err)
		return nil, err
	}

	res, err := e.classifier.Classify(callCtx, domain.ClassifyRequest{
		Text:     text,
		Persona:  p,
		History:  history,
		Insights: digest.Insights,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			log.Info("submission cancelled")
			return nil, ErrCancelled
		}
		log.Error("classification failed", "error", err)
		fallback := &domain.Message{
			ID:        domain.MessageID(uuid.NewString()),
			Role:      domain.RoleAssistant,
			Content:   FallbackReply,
			CreatedAt: e.now(),
			RiskLevel: domain.RiskGreen,
		}
		if err := e.sessions.AppendMessage(ctx, user.ID, p, fallback); err != nil {
			return nil, err
		}
		return fallback, nil
	}
	// A classifier may have raced a cancellation with its own success; a
	// cancelled turn must leave no persisted side effect past this point.
	if callCtx.Err() != nil {
		log.Info("submission cancelled")
		return nil, ErrCancelled
	}

	reply := &domain.Message{
		ID:        domain.MessageID(uuid.NewString()),
		Role:      domain.RoleAssistant,
		Content:   res.Reply,
		CreatedAt: e.now(),
		RiskLevel: res.Risk,
	}
	if err := e.sessions.AppendMessage(ctx, user.ID, p, reply); err != nil {
		log.Error("failed to append assistant message", "error", err)
		return nil, err
	}

	if insight := strings.TrimSpace(res.Insight); insight != "" {
		if err := e.appendInsight(ctx, user.ID, insight); err != nil {
			// The reply already happened; a memory write failure must not
			// turn a good turn into an error for the student.
			log.Error("failed to update memory digest", "error", err)
		}
	}

	if res.Risk == domain.RiskRed {
		e.mu.Lock()
		e.locked[key] = true
		e.mu.Unlock()
	}

	if res.Risk.Alerting() {
		alert := &domain.Alert{
			ID:          domain.AlertID(uuid.NewString()),
			StudentName: user.Username,
			School:      user.School,
			ClassName:   user.ClassName,
			RiskLevel:   res.Risk,
			LastMessage: text,
			CreatedAt:   e.now(),
			PersonaUsed: p,
		}
		if err := e.alerts.Append(ctx, alert); err != nil {
			log.Error("failed to append alert", "error", err)
		} else {
			log.Warn("risk alert emitted", "risk_level", res.Risk)
		}
	}

	log.Info("turn completed", "risk_level", reply.RiskLevel, "degraded", res.Degraded)
	return reply, nil
}

// CancelPending aborts the in-flight classification for the pair, if any,
// and reports whether there was one. The aborted Submit returns ErrCancelled
// and persists nothing beyond its user message.
func (e *Engine) CancelPending(userID domain.UserID, p domain.Persona) bool {
	e.mu.Lock()
	cancel, ok := e.pending[threadKey{userID: userID, persona: p}]
	e.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Locked reports whether a thread is locked after a RED turn. The lock is an
// in-process UI contract, not durable state: it holds for the current
// selection and clears on Unlock or a process restart.
func (e *Engine) Locked(userID domain.UserID, p domain.Persona) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.locked[threadKey{userID: userID, persona: p}]
}

// Unlock releases the RED lock for the pair, when the user leaves and
// reselects the persona.
func (e *Engine) Unlock(userID domain.UserID, p domain.Persona) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.locked, threadKey{userID: userID, persona: p})
}

// History returns the last limit messages of a thread, oldest first.
func (e *Engine) History(
	ctx context.Context,
	userID domain.UserID,
	p domain.Persona,
	limit int,
) ([]*domain.Message, error) {
	return e.sessions.History(ctx, userID, p, limit)
}

// CurrentRisk exposes the risk of the latest assistant turn in a thread. A
// thread with no assistant turn yet is GREEN.
func (e *Engine) CurrentRisk(
	ctx context.Context,
	userID domain.UserID,
	p domain.Persona,
) (domain.RiskLevel, error) {
	msgs, err := e.sessions.History(ctx, userID, p, 0)
	if err != nil {
		return domain.RiskGreen, err
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == domain.RoleAssistant {
			return domain.ParseRiskLevel(string(msgs[i].RiskLevel)), nil
		}
	}
	return domain.RiskGreen, nil
}

// ResetMemory discards the user's insight digest.
func (e *Engine) ResetMemory(ctx context.Context, userID domain.UserID) error {
	return e.memories.Delete(ctx, userID)
}

// appendInsight re-reads the digest under the lock: the snapshot taken before
// the classification call may be stale by the time the call returns, and an
// insight written by another persona's turn in that window must not be lost.
func (e *Engine) appendInsight(ctx context.Context, userID domain.UserID, insight string) error {
	e.digestMu.Lock()
	defer e.digestMu.Unlock()

	digest, err := e.memories.Get(ctx, userID)
	if err != nil {
		return err
	}
	joined := insight
	if digest.Insights != "" {
		joined = digest.Insights + insightSeparator + insight
	}
	digest.Insights = capTail(joined, e.memoryCap)
	digest.LastUpdated = e.now()
	return e.memories.Put(ctx, userID, digest)
}

// capTail bounds s to max runes, keeping the suffix: the most recent insight
// wins, the oldest is discardable.
func capTail(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[len(r)-max:])
}
