// Package identity supplies the authenticated User records the triage core
// acts on. Registration and login only; the core never sees passwords.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/smartstudent-vn/spss-agent/internal/domain"
	"github.com/smartstudent-vn/spss-agent/internal/observability"
)

var (
	ErrMissingFields      = errors.New("username and password are required")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrBadAccessKey       = errors.New("invalid access key for this role")
	ErrRoleMismatch       = errors.New("account role does not match the requested role")
)

// Options are the access-control knobs the front-end revisions disagreed on.
// An empty key disables that role's gate.
type Options struct {
	StudentAccessKey string
	TeacherAccessKey string
	EnforceRoleMatch bool
}

type Service struct {
	users domain.UserStore
	opts  Options
}

func NewService(users domain.UserStore, opts Options) *Service {
	return &Service{users: users, opts: opts}
}

type RegisterInput struct {
	Username  string
	Password  string
	Role      domain.UserRole
	School    string
	ClassName string
	AccessKey string
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" || in.Password == "" {
		return nil, ErrMissingFields
	}
	if in.Role != domain.UserRoleTeacher {
		in.Role = domain.UserRoleStudent
	}
	if err := s.checkAccessKey(in.Role, in.AccessKey); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &domain.User{
		ID:           domain.UserID(uuid.NewString()),
		Username:     in.Username,
		Role:         in.Role,
		School:       strings.TrimSpace(in.School),
		ClassName:    strings.TrimSpace(in.ClassName),
		Avatar:       avatarURL(in.Username),
		PasswordHash: string(hash),
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	observability.LoggerFromContext(ctx).Info("user registered",
		"user_id", user.ID,
		"role", user.Role,
	)
	return user, nil
}

type LoginInput struct {
	Username string
	Password string
	Role     domain.UserRole // role the UI is logging in as; checked when enforced
}

func (s *Service) Login(ctx context.Context, in LoginInput) (*domain.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" || in.Password == "" {
		return nil, ErrMissingFields
	}

	user, err := s.users.GetUserByUsername(ctx, in.Username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)) != nil {
		return nil, ErrInvalidCredentials
	}

	if s.opts.EnforceRoleMatch && in.Role != "" && in.Role != user.Role {
		return nil, ErrRoleMismatch
	}

	observability.LoggerFromContext(ctx).Info("user logged in", "user_id", user.ID)
	return user, nil
}

func (s *Service) checkAccessKey(role domain.UserRole, key string) error {
	want := s.opts.StudentAccessKey
	if role == domain.UserRoleTeacher {
		want = s.opts.TeacherAccessKey
	}
	if want != "" && key != want {
		return ErrBadAccessKey
	}
	return nil
}

func avatarURL(username string) string {
	return "https://api.dicebear.com/7.x/avataaars/svg?seed=" + username
}
