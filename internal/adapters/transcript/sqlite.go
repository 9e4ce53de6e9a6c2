package transcript

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/0xcro3dile/filechat-go/internal/domain/entities"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements ports.Transcript on an in-memory SQLite database.
// Nothing reaches disk; the data is gone when the store closes.
type SQLiteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

// NewSQLiteStore opens a private in-memory database.
func NewSQLiteStore() (*SQLiteStore, error) {
	// Named shared-cache DSN so every pooled connection sees the same database.
	dsn := fmt.Sprintf("file:transcript-%s?mode=memory&cache=shared", uuid.NewString())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return store, nil
}

// initSchema creates the necessary tables.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_session_id ON messages(session_id, seq);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append stores msg at the end of the session log.
func (s *SQLiteStore) Append(ctx context.Context, sessionID string, msg entities.DisplayMessage) (entities.DisplayMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.At.IsZero() {
		msg.At = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (session_id, role, content, created_at)
		VALUES (?, ?, ?, ?)
	`, sessionID, string(msg.Role), msg.Content, msg.At.UnixNano())
	if err != nil {
		return entities.DisplayMessage{}, fmt.Errorf("inserting message: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return entities.DisplayMessage{}, fmt.Errorf("reading sequence: %w", err)
	}
	msg.Seq = seq
	return msg, nil
}

// List returns the session log in insertion order.
func (s *SQLiteStore) List(ctx context.Context, sessionID string) ([]entities.DisplayMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, role, content, created_at
		FROM messages
		WHERE session_id = ?
		ORDER BY seq
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var out []entities.DisplayMessage
	for rows.Next() {
		var (
			msg  entities.DisplayMessage
			role string
			at   int64
		)
		if err := rows.Scan(&msg.Seq, &role, &msg.Content, &at); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msg.Role = entities.Role(role)
		msg.At = time.Unix(0, at)
		out = append(out, msg)
	}
	return out, rows.Err()
}

// Drop forgets the session log.
func (s *SQLiteStore) Drop(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("deleting messages: %w", err)
	}
	return nil
}

// Close releases the database and everything in it.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
