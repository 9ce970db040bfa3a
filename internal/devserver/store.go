package devserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/synquot/synquot-cli/internal"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id           TEXT PRIMARY KEY,
	quotation    TEXT NOT NULL,
	conversation TEXT NOT NULL,
	updated_at   INTEGER NOT NULL
)`

// Record is the server-side state of one session
type Record struct {
	Quotation    internal.Quotation
	Conversation []internal.ConversationEntry
	UpdatedAt    time.Time
}

func newRecord() *Record {
	return &Record{Quotation: internal.EmptyQuotation(), Conversation: []internal.ConversationEntry{}}
}

// Store keeps session records in a SQLite database
type Store struct {
	db *sql.DB
}

// OpenStore opens (and creates when needed) the database at path.
// ":memory:" gives a private in-memory database.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &internal.StoreError{Op: "open", Err: err}
	}
	// SQLite has a single writer, and each :memory: connection is its own database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &internal.StoreError{Op: "open", Err: fmt.Errorf("database ping failed: %w", err)}
	}

	store, err := NewStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewStore wraps an open database and creates the schema
func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, &internal.StoreError{Op: "migrate", Err: err}
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the record for sessionID. Unknown sessions get an empty
// record; nothing is written until Update.
func (s *Store) Load(ctx context.Context, sessionID string) (*Record, error) {
	rec, err := loadRecord(ctx, s.db, sessionID)
	if err != nil {
		return nil, &internal.StoreError{Op: "load", SessionID: sessionID, Err: err}
	}
	return rec, nil
}

// Update applies fn to the session's record inside a transaction and
// stores the result. The record is not written when fn fails.
func (s *Store) Update(ctx context.Context, sessionID string, fn func(*Record) error) (*Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &internal.StoreError{Op: "update", SessionID: sessionID, Err: err}
	}
	defer tx.Rollback()

	rec, err := loadRecord(ctx, tx, sessionID)
	if err != nil {
		return nil, &internal.StoreError{Op: "update", SessionID: sessionID, Err: err}
	}
	if err := fn(rec); err != nil {
		return nil, err
	}
	rec.UpdatedAt = time.Now().UTC()

	if err := saveRecord(ctx, tx, sessionID, rec); err != nil {
		return nil, &internal.StoreError{Op: "update", SessionID: sessionID, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return nil, &internal.StoreError{Op: "update", SessionID: sessionID, Err: err}
	}
	return rec, nil
}

// Count returns the number of stored sessions
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions").Scan(&n); err != nil {
		return 0, &internal.StoreError{Op: "count", Err: err}
	}
	return n, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func loadRecord(ctx context.Context, q queryer, sessionID string) (*Record, error) {
	var quotation, conversation string
	var updated int64
	err := q.QueryRowContext(ctx,
		"SELECT quotation, conversation, updated_at FROM sessions WHERE id = ?", sessionID,
	).Scan(&quotation, &conversation, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return newRecord(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	rec := newRecord()
	if err := json.Unmarshal([]byte(quotation), &rec.Quotation); err != nil {
		return nil, fmt.Errorf("failed to decode quotation: %w", err)
	}
	rec.Quotation = internal.NormalizeQuotation(&rec.Quotation)
	if err := json.Unmarshal([]byte(conversation), &rec.Conversation); err != nil {
		return nil, fmt.Errorf("failed to decode conversation: %w", err)
	}
	if rec.Conversation == nil {
		rec.Conversation = []internal.ConversationEntry{}
	}
	rec.UpdatedAt = time.Unix(updated, 0).UTC()
	return rec, nil
}

func saveRecord(ctx context.Context, q queryer, sessionID string, rec *Record) error {
	quotation, err := json.Marshal(rec.Quotation)
	if err != nil {
		return fmt.Errorf("failed to encode quotation: %w", err)
	}
	conversation := rec.Conversation
	if conversation == nil {
		conversation = []internal.ConversationEntry{}
	}
	conv, err := json.Marshal(conversation)
	if err != nil {
		return fmt.Errorf("failed to encode conversation: %w", err)
	}

	_, err = q.ExecContext(ctx, `
INSERT INTO sessions (id, quotation, conversation, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	quotation = excluded.quotation,
	conversation = excluded.conversation,
	updated_at = excluded.updated_at`,
		sessionID, string(quotation), string(conv), rec.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("upsert failed: %w", err)
	}
	return nil
}
