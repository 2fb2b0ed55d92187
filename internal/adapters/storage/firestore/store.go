// Package firestore is the GCP storage backend. One Store implements all
// four storage ports.
package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/smartstudent-vn/spss-agent/internal/domain"
)

type Store struct {
	client   *firestore.Client
	alertCap int
}

func NewStore(ctx context.Context, projectID string, alertCap int) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for the Firestore store")
	}
	if alertCap <= 0 {
		alertCap = 50
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}
	return &Store{client: client, alertCap: alertCap}, nil
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func threadID(userID domain.UserID, persona domain.Persona) string {
	return string(userID) + "_" + string(persona)
}

func (s *Store) messagesCol(userID domain.UserID, persona domain.Persona) *firestore.CollectionRef {
	return s.client.Collection("threads").Doc(threadID(userID, persona)).Collection("messages")
}

func (s *Store) memoryDoc(userID domain.UserID) *firestore.DocumentRef {
	return s.client.Collection("memories").Doc(string(userID))
}

func (s *Store) alertsCol() *firestore.CollectionRef {
	return s.client.Collection("alerts")
}

func (s *Store) usersCol() *firestore.CollectionRef {
	return s.client.Collection("users")
}

// ─────────────────────────────────────────
// Firestore document types
// ─────────────────────────────────────────

type messageDoc struct {
	Role      string    `firestore:"role"`
	Content   string    `firestore:"content"`
	RiskLevel string    `firestore:"risk_level"`
	CreatedAt time.Time `firestore:"created_at"`
}

type memoryDoc struct {
	Insights    string    `firestore:"insights"`
	LastUpdated time.Time `firestore:"last_updated"`
}

type alertDoc struct {
	StudentName string    `firestore:"student_name"`
	School      string    `firestore:"school"`
	ClassName   string    `firestore:"class_name"`
	RiskLevel   string    `firestore:"risk_level"`
	LastMessage string    `firestore:"last_message"`
	PersonaUsed string    `firestore:"persona_used"`
	CreatedAt   time.Time `firestore:"created_at"`
}

type userDoc struct {
	Username     string `firestore:"username"`
	Role         string `firestore:"role"`
	School       string `firestore:"school"`
	ClassName    string `firestore:"class_name"`
	Avatar       string `firestore:"avatar"`
	PasswordHash string `firestore:"password_hash"`
}

// ─────────────────────────────────────────
// SessionStore implementation
// ─────────────────────────────────────────

func (s *Store) AppendMessage(
	ctx context.Context,
	userID domain.UserID,
	persona domain.Persona,
	msg *domain.Message,
) error {
	doc := messageDoc{
		Role:      string(msg.Role),
		Content:   msg.Content,
		RiskLevel: string(msg.RiskLevel),
		CreatedAt: msg.CreatedAt,
	}
	if _, err := s.messagesCol(userID, persona).Doc(string(msg.ID)).Set(ctx, doc); err != nil {
		return fmt.Errorf("firestore AppendMessage: %w", err)
	}
	return nil
}

func (s *Store) History(
	ctx context.Context,
	userID domain.UserID,
	persona domain.Persona,
	limit int,
) ([]*domain.Message, error) {
	q := s.messagesCol(userID, persona).OrderBy("created_at", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*domain.Message
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore History: %w", err)
		}

		var doc messageDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode messageDoc: %w", err)
		}
		out = append(out, &domain.Message{
			ID:        domain.MessageID(snap.Ref.ID),
			Role:      domain.Role(doc.Role),
			Content:   doc.Content,
			RiskLevel: domain.RiskLevel(doc.RiskLevel),
			CreatedAt: doc.CreatedAt,
		})
	}

	// Query walked newest-first for the limit; callers get oldest first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// ─────────────────────────────────────────
// MemoryStore implementation
// ─────────────────────────────────────────

func (s *Store) Get(ctx context.Context, userID domain.UserID) (*domain.MemoryDigest, error) {
	snap, err := s.memoryDoc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return &domain.MemoryDigest{}, nil
		}
		return nil, fmt.Errorf("firestore Get memory: %w", err)
	}

	var doc memoryDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode memoryDoc: %w", err)
	}
	return &domain.MemoryDigest{
		Insights:    doc.Insights,
		LastUpdated: doc.LastUpdated,
	}, nil
}

func (s *Store) Put(ctx context.Context, userID domain.UserID, digest *domain.MemoryDigest) error {
	doc := memoryDoc{
		Insights:    digest.Insights,
		LastUpdated: digest.LastUpdated,
	}
	if _, err := s.memoryDoc(userID).Set(ctx, doc); err != nil {
		return fmt.Errorf("firestore Put memory: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, userID domain.UserID) error {
	if _, err := s.memoryDoc(userID).Delete(ctx); err != nil {
		return fmt.Errorf("firestore Delete memory: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────
// AlertLog implementation
// ─────────────────────────────────────────

func (s *Store) Append(ctx context.Context, alert *domain.Alert) error {
	doc := alertDoc{
		StudentName: alert.StudentName,
		School:      alert.School,
		ClassName:   alert.ClassName,
		RiskLevel:   string(alert.RiskLevel),
		LastMessage: alert.LastMessage,
		PersonaUsed: string(alert.PersonaUsed),
		CreatedAt:   alert.CreatedAt,
	}
	if _, err := s.alertsCol().Doc(string(alert.ID)).Set(ctx, doc); err != nil {
		return fmt.Errorf("firestore Append alert: %w", err)
	}
	return s.evictAlerts(ctx)
}

// evictAlerts removes the oldest entries past the ring-buffer cap.
func (s *Store) evictAlerts(ctx context.Context) error {
	iter := s.alertsCol().OrderBy("created_at", firestore.Desc).Offset(s.alertCap).Documents(ctx)
	defer iter.Stop()

	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return fmt.Errorf("firestore evict alerts: %w", err)
		}
		if _, err := snap.Ref.Delete(ctx); err != nil {
			return fmt.Errorf("firestore evict alerts: %w", err)
		}
	}
}

func (s *Store) List(ctx context.Context) ([]*domain.Alert, error) {
	iter := s.alertsCol().OrderBy("created_at", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	var out []*domain.Alert
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore List alerts: %w", err)
		}

		var doc alertDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode alertDoc: %w", err)
		}
		out = append(out, &domain.Alert{
			ID:          domain.AlertID(snap.Ref.ID),
			StudentName: doc.StudentName,
			School:      doc.School,
			ClassName:   doc.ClassName,
			RiskLevel:   domain.RiskLevel(doc.RiskLevel),
			LastMessage: doc.LastMessage,
			PersonaUsed: domain.Persona(doc.PersonaUsed),
			CreatedAt:   doc.CreatedAt,
		})
	}
	return out, nil
}

// ─────────────────────────────────────────
// UserStore implementation
// ─────────────────────────────────────────

func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	existing := s.usersCol().Where("username", "==", user.Username).Limit(1).Documents(ctx)
	defer existing.Stop()
	if _, err := existing.Next(); err != iterator.Done {
		if err == nil {
			return domain.ErrUserExists
		}
		return fmt.Errorf("firestore CreateUser: %w", err)
	}

	doc := userDoc{
		Username:     user.Username,
		Role:         string(user.Role),
		School:       user.School,
		ClassName:    user.ClassName,
		Avatar:       user.Avatar,
		PasswordHash: user.PasswordHash,
	}
	if _, err := s.usersCol().Doc(string(user.ID)).Create(ctx, doc); err != nil {
		return fmt.Errorf("firestore CreateUser: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id domain.UserID) (*domain.User, error) {
	snap, err := s.usersCol().Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("firestore GetUser: %w", err)
	}
	return userFromSnap(snap)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	iter := s.usersCol().Where("username", "==", username).Limit(1).Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if err == iterator.Done {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("firestore GetUserByUsername: %w", err)
	}
	return userFromSnap(snap)
}

func userFromSnap(snap *firestore.DocumentSnapshot) (*domain.User, error) {
	var doc userDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode userDoc: %w", err)
	}
	return &domain.User{
		ID:           domain.UserID(snap.Ref.ID),
		Username:     doc.Username,
		Role:         domain.UserRole(doc.Role),
		School:       doc.School,
		ClassName:    doc.ClassName,
		Avatar:       doc.Avatar,
		PasswordHash: doc.PasswordHash,
	}, nil
}
