// Package conversations persists conversation histories to SQLite so
// sessions can be resumed across process restarts.
package conversations

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ergokit/ergokit/llm"
)

// Store handles persistence of conversation messages keyed by session.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store over an already-open database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens (or creates) a SQLite database at path and returns a handle
// suitable for NewStore. Migrations are not run here.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// SessionInfo summarizes one stored session.
type SessionInfo struct {
	SessionID    string
	MessageCount int
	UpdatedAt    time.Time
}

// AppendMessages saves messages to a session in order. Each message's
// sequence number continues from the session's current tail, and replays
// of an already-persisted sequence number are ignored so a crashed run
// can safely re-append its history.
func (s *Store) AppendMessages(ctx context.Context, sessionID string, msgs ...llm.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	next, err := s.nextSeq(ctx, sessionID)
	if err != nil {
		return err
	}

	now := time.Now().Unix()
	query := sq.Insert("messages").
		Columns("session_id", "seq", "role", "content", "created_at")
	for i, msg := range msgs {
		content, err := json.Marshal(msg.Content)
		if err != nil {
			return fmt.Errorf("marshal message content: %w", err)
		}
		query = query.Values(sessionID, next+i, string(msg.Role), string(content), now)
	}

	queryStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	// SQLite requires "OR IGNORE" to come after "INSERT", so we replace
	// "INSERT INTO" with "INSERT OR IGNORE INTO".
	queryStr = strings.Replace(queryStr, "INSERT INTO", "INSERT OR IGNORE INTO", 1)

	_, err = s.db.ExecContext(ctx, queryStr, args...)
	return err
}

// LoadMessages returns a session's history in insertion order. A session
// with no messages yields an empty slice, not an error.
func (s *Store) LoadMessages(ctx context.Context, sessionID string) ([]llm.Message, error) {
	query := sq.Select("role", "content").
		From("messages").
		Where(sq.Eq{"session_id": sessionID}).
		OrderBy("seq ASC")

	queryStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, queryStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close() //nolint:errcheck // No remedy for rows close errors

	var msgs []llm.Message
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		var blocks []llm.ContentBlock
		if err := json.Unmarshal([]byte(content), &blocks); err != nil {
			return nil, fmt.Errorf("unmarshal message content: %w", err)
		}
		msgs = append(msgs, llm.Message{Role: llm.MessageRole(role), Content: blocks})
	}
	return msgs, rows.Err()
}

// Sessions lists stored sessions, most recently updated first.
func (s *Store) Sessions(ctx context.Context) ([]SessionInfo, error) {
	query := sq.Select("session_id", "COUNT(*)", "MAX(created_at)").
		From("messages").
		GroupBy("session_id").
		OrderBy("MAX(created_at) DESC")

	queryStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, queryStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close() //nolint:errcheck // No remedy for rows close errors

	var sessions []SessionInfo
	for rows.Next() {
		var info SessionInfo
		var updatedAt int64
		if err := rows.Scan(&info.SessionID, &info.MessageCount, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		info.UpdatedAt = time.Unix(updatedAt, 0)
		sessions = append(sessions, info)
	}
	return sessions, rows.Err()
}

// DeleteSession removes all messages of a session.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	query := sq.Delete("messages").Where(sq.Eq{"session_id": sessionID})

	queryStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	_, err = s.db.ExecContext(ctx, queryStr, args...)
	return err
}

func (s *Store) nextSeq(ctx context.Context, sessionID string) (int, error) {
	query := sq.Select("COALESCE(MAX(seq), -1) + 1").
		From("messages").
		Where(sq.Eq{"session_id": sessionID})

	queryStr, args, err := query.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var next int
	if err := s.db.QueryRowContext(ctx, queryStr, args...).Scan(&next); err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return next, nil
}
