// Package chatlog persists conversation history and answer feedback to a
// local SQLite database, the durable counterpart to the in-memory session
// store.
package chatlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS chat_history (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_chat_history_session ON chat_history(session_id, id);

CREATE TABLE IF NOT EXISTS feedback (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	query      TEXT NOT NULL,
	answer     TEXT NOT NULL,
	rating     INTEGER NOT NULL,
	comment    TEXT,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Entry is one logged chat turn.
type Entry struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Feedback is a user rating of a generated answer.
type Feedback struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Query     string    `json:"query"`
	Answer    string    `json:"answer"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Log is the SQLite-backed chat log.
type Log struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the chat log database at path. WAL mode
// lets the interactive chat and the API server share the file.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating chat log directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening chat log database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating chat log schema: %w", err)
	}

	return &Log{db: db, path: path}, nil
}

// Path returns the database file path.
func (l *Log) Path() string {
	return l.path
}

// Close closes the database.
func (l *Log) Close() error {
	return l.db.Close()
}

// Record appends one chat turn.
func (l *Log) Record(ctx context.Context, sessionID, role, content string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO chat_history (session_id, role, content) VALUES (?, ?, ?)`,
		sessionID, role, content,
	)
	if err != nil {
		return fmt.Errorf("recording chat turn: %w", err)
	}
	return nil
}

// History returns up to limit most recent turns of a session, oldest first.
func (l *Log) History(ctx context.Context, sessionID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, created_at
		 FROM (
			SELECT id, session_id, role, content, created_at
			FROM chat_history WHERE session_id = ?
			ORDER BY id DESC LIMIT ?
		 ) ORDER BY id ASC`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying chat history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Role, &e.Content, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning chat history row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RecordFeedback stores a rating for a generated answer. Rating is 1
// (helpful) through 5; out-of-range values are rejected.
func (l *Log) RecordFeedback(ctx context.Context, fb Feedback) (int64, error) {
	if fb.Rating < 1 || fb.Rating > 5 {
		return 0, fmt.Errorf("rating %d out of range 1..5", fb.Rating)
	}
	res, err := l.db.ExecContext(ctx,
		`INSERT INTO feedback (session_id, query, answer, rating, comment) VALUES (?, ?, ?, ?, ?)`,
		fb.SessionID, fb.Query, fb.Answer, fb.Rating, fb.Comment,
	)
	if err != nil {
		return 0, fmt.Errorf("recording feedback: %w", err)
	}
	return res.LastInsertId()
}

// FeedbackSummary is the aggregate rating picture, used to monitor answer
// quality over time.
type FeedbackSummary struct {
	Count     int     `json:"count"`
	AvgRating float64 `json:"avg_rating"`
}

// Summary aggregates all recorded feedback.
func (l *Log) Summary(ctx context.Context) (FeedbackSummary, error) {
	var s FeedbackSummary
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(AVG(rating), 0) FROM feedback`,
	).Scan(&s.Count, &s.AvgRating)
	if err != nil {
		return FeedbackSummary{}, fmt.Errorf("summarizing feedback: %w", err)
	}
	return s, nil
}
