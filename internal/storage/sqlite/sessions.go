package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	StatusActive = "active"
	StatusDone   = "done"
	StatusError  = "error"
)

type SessionRecord struct {
	ID        string
	Title     string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type MessageRecord struct {
	ID        string
	SessionID string
	Role      string
	Content   string
	Status    string
	Seq       int
	CreatedAt time.Time
}

func (s *Store) CreateSession(ctx context.Context, session SessionRecord) error {
	if strings.TrimSpace(session.ID) == "" {
		return fmt.Errorf("session id is required")
	}
	if session.Status == "" {
		session.Status = StatusActive
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO sessions (id, title, status)
VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    title=CASE WHEN sessions.title = '' THEN excluded.title ELSE sessions.title END,
    status=excluded.status,
    updated_at=CURRENT_TIMESTAMP
`, session.ID, session.Title, session.Status)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// AppendMessage stores msg with the next sequence number of its session
// and returns that number. A missing ID is generated.
func (s *Store) AppendMessage(ctx context.Context, msg MessageRecord) (int, error) {
	if strings.TrimSpace(msg.Role) == "" {
		return 0, fmt.Errorf("message role is required")
	}
	if msg.Status == "" {
		msg.Status = StatusDone
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin append message: %w", err)
	}
	defer tx.Rollback()

	var seq int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE session_id = ?`, msg.SessionID,
	).Scan(&seq); err != nil {
		return 0, fmt.Errorf("next message seq: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO messages (id, session_id, role, content, status, seq)
VALUES (?, ?, ?, ?, ?, ?)
`, msg.ID, msg.SessionID, msg.Role, msg.Content, msg.Status, seq); err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET updated_at = CURRENT_TIMESTAMP WHERE id = ?`, msg.SessionID,
	); err != nil {
		return 0, fmt.Errorf("touch session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit append message: %w", err)
	}
	return seq, nil
}

func (s *Store) UpdateSessionStatus(ctx context.Context, sessionID, status string) error {
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(status) == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
UPDATE sessions
SET status = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?
`, status, sessionID)
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	return nil
}

// DeleteSession removes the session and, through the foreign key, its
// messages.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// ListSessions pages sessions by rowid, newest first.
func (s *Store) ListSessions(ctx context.Context, cursor int64, limit int) ([]SessionRecord, int64, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT rowid, id, title, status, created_at, updated_at
FROM sessions
WHERE (? = 0 OR rowid < ?)
ORDER BY rowid DESC
LIMIT ?
`, cursor, cursor, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var (
		sessions []SessionRecord
		next     int64
	)
	for rows.Next() {
		var rec SessionRecord
		if err := rows.Scan(&next, &rec.ID, &rec.Title, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list sessions rows: %w", err)
	}
	if len(sessions) < limit {
		next = 0
	}
	return sessions, next, nil
}

// GetSession returns nil without error when the session does not exist.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*SessionRecord, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("session id is required")
	}
	row := s.db.QueryRowContext(ctx, `
SELECT id, title, status, created_at, updated_at
FROM sessions
WHERE id = ?
LIMIT 1
`, sessionID)

	var rec SessionRecord
	if err := row.Scan(&rec.ID, &rec.Title, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &rec, nil
}

func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]MessageRecord, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("session id is required")
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, session_id, role, content, status, seq, created_at
FROM messages
WHERE session_id = ?
ORDER BY seq ASC
`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []MessageRecord
	for rows.Next() {
		var rec MessageRecord
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Role, &rec.Content, &rec.Status, &rec.Seq, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages rows: %w", err)
	}
	return msgs, nil
}
