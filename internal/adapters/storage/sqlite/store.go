// Package sqlite is the durable single-file storage backend. One Store
// implements all four storage ports, mirroring the schema the in-memory
// backend keeps in maps.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/smartstudent-vn/spss-agent/internal/domain"
)

type Store struct {
	db       *sql.DB
	alertCap int
}

func NewStore(dbPath string, alertCap int) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	if alertCap <= 0 {
		alertCap = 50
	}

	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db, alertCap: alertCap}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		role TEXT NOT NULL,
		school TEXT NOT NULL,
		class_name TEXT NOT NULL,
		avatar TEXT NOT NULL,
		password_hash TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		persona TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		risk_level TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(user_id, persona);

	CREATE TABLE IF NOT EXISTS memories (
		user_id TEXT PRIMARY KEY,
		insights TEXT NOT NULL,
		last_updated INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS alerts (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL,
		student_name TEXT NOT NULL,
		school TEXT NOT NULL,
		class_name TEXT NOT NULL,
		risk_level TEXT NOT NULL,
		last_message TEXT NOT NULL,
		persona_used TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ── SessionStore ─────────────────────────────

func (s *Store) AppendMessage(
	ctx context.Context,
	userID domain.UserID,
	persona domain.Persona,
	msg *domain.Message,
) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, user_id, persona, role, content, risk_level, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(msg.ID), string(userID), string(persona),
		string(msg.Role), msg.Content, string(msg.RiskLevel),
		msg.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("sqlite AppendMessage: %w", err)
	}
	return nil
}

func (s *Store) History(
	ctx context.Context,
	userID domain.UserID,
	persona domain.Persona,
	limit int,
) ([]*domain.Message, error) {
	query := `
		SELECT id, role, content, risk_level, created_at
		FROM messages
		WHERE user_id = ? AND persona = ?
		ORDER BY rowid DESC`
	args := []any{string(userID), string(persona)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite History: %w", err)
	}
	defer rows.Close()

	var msgs []*domain.Message
	for rows.Next() {
		var m domain.Message
		var risk sql.NullString
		var createdAt int64
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &risk, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		m.RiskLevel = domain.RiskLevel(risk.String)
		m.CreatedAt = time.Unix(0, createdAt)
		msgs = append(msgs, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite History rows: %w", err)
	}

	// The query walks newest-first for the LIMIT; callers get oldest first.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// ── MemoryStore ──────────────────────────────

func (s *Store) Get(ctx context.Context, userID domain.UserID) (*domain.MemoryDigest, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT insights, last_updated FROM memories WHERE user_id = ?`,
		string(userID),
	)

	var d domain.MemoryDigest
	var lastUpdated int64
	err := row.Scan(&d.Insights, &lastUpdated)
	if err == sql.ErrNoRows {
		return &domain.MemoryDigest{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite Get memory: %w", err)
	}
	d.LastUpdated = time.Unix(0, lastUpdated)
	return &d, nil
}

func (s *Store) Put(ctx context.Context, userID domain.UserID, digest *domain.MemoryDigest) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memories (user_id, insights, last_updated) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET insights = excluded.insights, last_updated = excluded.last_updated`,
		string(userID), digest.Insights, digest.LastUpdated.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("sqlite Put memory: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, userID domain.UserID) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM memories WHERE user_id = ?`, string(userID),
	); err != nil {
		return fmt.Errorf("sqlite Delete memory: %w", err)
	}
	return nil
}

// ── AlertLog ─────────────────────────────────

func (s *Store) Append(ctx context.Context, alert *domain.Alert) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite Append alert: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO alerts (id, student_name, school, class_name, risk_level, last_message, persona_used, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(alert.ID), alert.StudentName, alert.School, alert.ClassName,
		string(alert.RiskLevel), alert.LastMessage, string(alert.PersonaUsed),
		alert.CreatedAt.UnixNano(),
	); err != nil {
		return fmt.Errorf("sqlite Append alert: %w", err)
	}

	// Ring buffer: evict the oldest rows past the cap.
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM alerts WHERE seq NOT IN (
			SELECT seq FROM alerts ORDER BY seq DESC LIMIT ?
		)`, s.alertCap,
	); err != nil {
		return fmt.Errorf("sqlite evict alerts: %w", err)
	}

	return tx.Commit()
}

func (s *Store) List(ctx context.Context) ([]*domain.Alert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, student_name, school, class_name, risk_level, last_message, persona_used, created_at
		FROM alerts ORDER BY seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite List alerts: %w", err)
	}
	defer rows.Close()

	var out []*domain.Alert
	for rows.Next() {
		var a domain.Alert
		var createdAt int64
		if err := rows.Scan(
			&a.ID, &a.StudentName, &a.School, &a.ClassName,
			&a.RiskLevel, &a.LastMessage, &a.PersonaUsed, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan alert row: %w", err)
		}
		a.CreatedAt = time.Unix(0, createdAt)
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite List alerts rows: %w", err)
	}
	return out, nil
}

// ── UserStore ────────────────────────────────

func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM users WHERE username = ?`, user.Username,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("sqlite CreateUser: %w", err)
	}
	if exists > 0 {
		return domain.ErrUserExists
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, role, school, class_name, avatar, password_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(user.ID), user.Username, string(user.Role),
		user.School, user.ClassName, user.Avatar, user.PasswordHash,
	)
	if err != nil {
		return fmt.Errorf("sqlite CreateUser: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id domain.UserID) (*domain.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, username, role, school, class_name, avatar, password_hash FROM users WHERE id = ?`,
		string(id),
	))
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, username, role, school, class_name, avatar, password_hash FROM users WHERE username = ?`,
		username,
	))
}

func (s *Store) scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Username, &u.Role, &u.School, &u.ClassName, &u.Avatar, &u.PasswordHash)
	if err == sql.ErrNoRows {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}
	return &u, nil
}
