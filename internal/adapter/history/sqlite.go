package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/shreeramdrao/Cysinfo-AI/internal/domain"
)

// SQLiteStore implements domain.HistoryStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and runs the
// schema migration. The parent directory is created if missing.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("%w: create dir: %w", domain.ErrHistoryStore, err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open: %w", domain.ErrHistoryStore, err)
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	// WAL mode for better concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: set WAL mode: %w", domain.ErrHistoryStore, err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: enable foreign keys: %w", domain.ErrHistoryStore, err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: migrate: %w", domain.ErrHistoryStore, err)
	}
	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS conversations (
			id         TEXT PRIMARY KEY,
			title      TEXT NOT NULL DEFAULT '',
			model      TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS messages (
			id              TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			seq             INTEGER NOT NULL,
			role            TEXT NOT NULL,
			content         TEXT NOT NULL,
			metrics         TEXT,
			created_at      TEXT NOT NULL,
			UNIQUE (conversation_id, seq)
		);
	`)
	return err
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateConversation starts a new, empty conversation.
func (s *SQLiteStore) CreateConversation(ctx context.Context, title, model string) (*domain.Conversation, error) {
	now := time.Now().UTC()
	c := &domain.Conversation{
		ID:        newID(now),
		Title:     title,
		Model:     model,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO conversations (id, title, model, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		c.ID, c.Title, c.Model, formatTime(now), formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: create conversation: %w", domain.ErrHistoryStore, err)
	}
	return c, nil
}

// GetConversation returns the conversation with the given ID.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, title, model, created_at, updated_at FROM conversations WHERE id = ?", id,
	)
	c, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get conversation: %w", domain.ErrHistoryStore, err)
	}
	return c, nil
}

// ListConversations returns all conversations, most recently active first.
func (s *SQLiteStore) ListConversations(ctx context.Context) ([]domain.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, title, model, created_at, updated_at FROM conversations ORDER BY updated_at DESC, id DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list conversations: %w", domain.ErrHistoryStore, err)
	}
	defer rows.Close()

	var out []domain.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan conversation: %w", domain.ErrHistoryStore, err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// DeleteConversation removes a conversation and its messages.
func (s *SQLiteStore) DeleteConversation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("%w: delete conversation: %w", domain.ErrHistoryStore, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.ErrConversationNotFound
	}
	return nil
}

// Append adds msg to the end of a conversation. metrics may be nil.
func (s *SQLiteStore) Append(ctx context.Context, conversationID string, msg domain.Message, metrics *domain.ChatMetrics) (*domain.StoredMessage, error) {
	var metricsJSON sql.NullString
	if metrics != nil {
		data, err := json.Marshal(metrics)
		if err != nil {
			return nil, fmt.Errorf("marshal metrics: %w", err)
		}
		metricsJSON = sql.NullString{String: string(data), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %w", domain.ErrHistoryStore, err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		"UPDATE conversations SET updated_at = ? WHERE id = ?", formatTime(now), conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: touch conversation: %w", domain.ErrHistoryStore, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, domain.ErrConversationNotFound
	}

	var seq int64
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE conversation_id = ?", conversationID,
	).Scan(&seq); err != nil {
		return nil, fmt.Errorf("%w: next seq: %w", domain.ErrHistoryStore, err)
	}

	stored := &domain.StoredMessage{
		ID:             newID(now),
		ConversationID: conversationID,
		Message:        msg,
		Metrics:        metrics,
		CreatedAt:      now,
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO messages (id, conversation_id, seq, role, content, metrics, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		stored.ID, conversationID, seq, msg.Role, msg.Content, metricsJSON, formatTime(now),
	); err != nil {
		return nil, fmt.Errorf("%w: insert message: %w", domain.ErrHistoryStore, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %w", domain.ErrHistoryStore, err)
	}
	return stored, nil
}

// Messages returns a conversation's messages in the order they were appended.
func (s *SQLiteStore) Messages(ctx context.Context, conversationID string) ([]domain.StoredMessage, error) {
	if _, err := s.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, conversation_id, role, content, metrics, created_at FROM messages WHERE conversation_id = ? ORDER BY seq",
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list messages: %w", domain.ErrHistoryStore, err)
	}
	defer rows.Close()

	var out []domain.StoredMessage
	for rows.Next() {
		var m domain.StoredMessage
		var metricsJSON sql.NullString
		var createdStr string
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Message.Role, &m.Message.Content, &metricsJSON, &createdStr); err != nil {
			return nil, fmt.Errorf("%w: scan message: %w", domain.ErrHistoryStore, err)
		}
		if metricsJSON.Valid {
			var metrics domain.ChatMetrics
			if err := json.Unmarshal([]byte(metricsJSON.String), &metrics); err != nil {
				return nil, fmt.Errorf("unmarshal metrics: %w", err)
			}
			m.Metrics = &metrics
		}
		m.CreatedAt = parseTime(createdStr)
		out = append(out, m)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConversation(row scanner) (*domain.Conversation, error) {
	var c domain.Conversation
	var createdStr, updatedStr string
	if err := row.Scan(&c.ID, &c.Title, &c.Model, &createdStr, &updatedStr); err != nil {
		return nil, err
	}
	c.CreatedAt = parseTime(createdStr)
	c.UpdatedAt = parseTime(updatedStr)
	return &c, nil
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func newID(t time.Time) string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// Compile-time interface check.
var _ domain.HistoryStore = (*SQLiteStore)(nil)
