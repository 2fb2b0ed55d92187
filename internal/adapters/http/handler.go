// Package httpadapter exposes the triage core over REST for the web UI.
package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/smartstudent-vn/spss-agent/internal/app/alerts"
	"github.com/smartstudent-vn/spss-agent/internal/app/triage"
	"github.com/smartstudent-vn/spss-agent/internal/domain"
	"github.com/smartstudent-vn/spss-agent/internal/identity"
	"github.com/smartstudent-vn/spss-agent/internal/observability"
	"github.com/smartstudent-vn/spss-agent/internal/persona"
)

type Server struct {
	engine   *triage.Engine
	alerts   *alerts.Service
	identity *identity.Service
	users    domain.UserStore
}

func NewServer(
	engine *triage.Engine,
	alertSvc *alerts.Service,
	identitySvc *identity.Service,
	users domain.UserStore,
) http.Handler {
	s := &Server{
		engine:   engine,
		alerts:   alertSvc,
		identity: identitySvc,
		users:    users,
	}

	r := chi.NewRouter()
	r.Use(withRequestID, withLogging, withCORS)

	r.Get("/healthz", s.handleHealthz)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		r.Get("/personas", s.handlePersonas)

		r.Route("/chat/{persona}", func(r chi.Router) {
			r.Get("/", s.handleThread)
			r.Post("/messages", s.handleSubmit)
			r.Delete("/pending", s.handleCancel)
			r.Delete("/lock", s.handleUnlock)
		})

		r.Get("/alerts", s.handleAlerts)

		// Deleting a digest is the only supported way to shed accumulated
		// insight text; long-term retention policy is a product decision.
		r.Delete("/memory/{userID}", s.handleResetMemory)
	})

	return r
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type authRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	Role      string `json:"role,omitempty"`
	School    string `json:"school,omitempty"`
	ClassName string `json:"class_name,omitempty"`
	AccessKey string `json:"access_key,omitempty"`
}

type userResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	School    string `json:"school"`
	ClassName string `json:"class_name"`
	Avatar    string `json:"avatar"`
}

type submitRequest struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

type messageResponse struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	RiskLevel string    `json:"risk_level,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type submitResponse struct {
	Message     messageResponse `json:"message"`
	CurrentRisk string          `json:"current_risk"`
	Locked      bool            `json:"locked"`
}

type threadResponse struct {
	Messages    []messageResponse `json:"messages"`
	CurrentRisk string            `json:"current_risk"`
	Locked      bool              `json:"locked"`
}

type alertResponse struct {
	ID          string    `json:"id"`
	StudentName string    `json:"student_name"`
	School      string    `json:"school"`
	ClassName   string    `json:"class_name"`
	RiskLevel   string    `json:"risk_level"`
	LastMessage string    `json:"last_message"`
	PersonaUsed string    `json:"persona_used"`
	CreatedAt   time.Time `json:"created_at"`
}

// ─────────────────────────────────────────────
// Handlers
// ─────────────────────────────────────────────

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	user, err := s.identity.Register(r.Context(), identity.RegisterInput{
		Username:  req.Username,
		Password:  req.Password,
		Role:      domain.UserRole(req.Role),
		School:    req.School,
		ClassName: req.ClassName,
		AccessKey: req.AccessKey,
	})
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrMissingFields):
			badRequest(w, err.Error())
		case errors.Is(err, identity.ErrBadAccessKey):
			writeError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, domain.ErrUserExists):
			writeError(w, http.StatusConflict, err.Error())
		default:
			internalError(w, r, err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	user, err := s.identity.Login(r.Context(), identity.LoginInput{
		Username: req.Username,
		Password: req.Password,
		Role:     domain.UserRole(req.Role),
	})
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrMissingFields):
			badRequest(w, err.Error())
		case errors.Is(err, identity.ErrInvalidCredentials),
			errors.Is(err, identity.ErrRoleMismatch):
			writeError(w, http.StatusUnauthorized, err.Error())
		default:
			internalError(w, r, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handlePersonas(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, persona.All())
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	p := domain.Persona(chi.URLParam(r, "persona"))

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if req.UserID == "" {
		badRequest(w, "user_id is required")
		return
	}

	user, err := s.users.GetUser(r.Context(), domain.UserID(req.UserID))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		internalError(w, r, err)
		return
	}

	// The RED lockout lives here at the boundary: the engine keeps accepting
	// turns, the UI contract does not. The lock covers the current selection
	// only; DELETE /lock releases it when the user reselects the persona.
	if s.engine.Locked(user.ID, p) {
		writeError(w, http.StatusLocked, "thread is locked after a RED classification")
		return
	}

	msg, err := s.engine.Submit(r.Context(), user, p, req.Text)
	if err != nil {
		switch {
		case errors.Is(err, triage.ErrEmptyMessage):
			badRequest(w, err.Error())
		case errors.Is(err, triage.ErrPending):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, triage.ErrCancelled):
			writeError(w, http.StatusConflict, "submission cancelled")
		default:
			internalError(w, r, err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, submitResponse{
		Message:     toMessageResponse(msg),
		CurrentRisk: string(msg.RiskLevel),
		Locked:      msg.RiskLevel == domain.RiskRed,
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	p := domain.Persona(chi.URLParam(r, "persona"))
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		badRequest(w, "user_id is required")
		return
	}

	cancelled := s.engine.CancelPending(domain.UserID(userID), p)
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	p := domain.Persona(chi.URLParam(r, "persona"))
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		badRequest(w, "user_id is required")
		return
	}

	s.engine.Unlock(domain.UserID(userID), p)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleThread(w http.ResponseWriter, r *http.Request) {
	p := domain.Persona(chi.URLParam(r, "persona"))
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		badRequest(w, "user_id is required")
		return
	}

	msgs, err := s.engine.History(r.Context(), domain.UserID(userID), p, 0)
	if err != nil {
		internalError(w, r, err)
		return
	}
	risk, err := s.engine.CurrentRisk(r.Context(), domain.UserID(userID), p)
	if err != nil {
		internalError(w, r, err)
		return
	}

	out := threadResponse{
		Messages:    make([]messageResponse, 0, len(msgs)),
		CurrentRisk: string(risk),
		Locked:      s.engine.Locked(domain.UserID(userID), p),
	}
	for _, m := range msgs {
		out.Messages = append(out.Messages, toMessageResponse(m))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	list, err := s.alerts.List(r.Context(), alerts.Filter{
		School:    r.URL.Query().Get("school"),
		ClassName: r.URL.Query().Get("class_name"),
	})
	if err != nil {
		internalError(w, r, err)
		return
	}

	out := make([]alertResponse, 0, len(list))
	for _, a := range list {
		out = append(out, alertResponse{
			ID:          string(a.ID),
			StudentName: a.StudentName,
			School:      a.School,
			ClassName:   a.ClassName,
			RiskLevel:   string(a.RiskLevel),
			LastMessage: a.LastMessage,
			PersonaUsed: string(a.PersonaUsed),
			CreatedAt:   a.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleResetMemory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := s.engine.ResetMemory(r.Context(), domain.UserID(userID)); err != nil {
		internalError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─────────────────────────────────────────────
// Mapping + response helpers
// ─────────────────────────────────────────────

func toUserResponse(u *domain.User) userResponse {
	return userResponse{
		ID:        string(u.ID),
		Username:  u.Username,
		Role:      string(u.Role),
		School:    u.School,
		ClassName: u.ClassName,
		Avatar:    u.Avatar,
	}
}

func toMessageResponse(m *domain.Message) messageResponse {
	return messageResponse{
		ID:        string(m.ID),
		Role:      string(m.Role),
		Content:   m.Content,
		RiskLevel: string(m.RiskLevel),
		CreatedAt: m.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusBadRequest, msg)
}

// internalError logs the underlying error and hands the client a fixed
// message; backend error strings (DSNs, upstream details) never leave the
// process.
func internalError(w http.ResponseWriter, r *http.Request, err error) {
	observability.LoggerFromContext(r.Context()).Error("internal error",
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)
	writeError(w, http.StatusInternalServerError, "internal server error")
}
