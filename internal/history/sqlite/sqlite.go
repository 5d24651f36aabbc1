package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/lumichat/lumichat-relay/internal/chat"
	"github.com/lumichat/lumichat-relay/internal/history"
)

// Store implements history.Store backed by SQLite.
type Store struct {
	db *sql.DB
}

var _ history.Store = (*Store)(nil)

// New opens (or creates) a SQLite history store at the supplied path.
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id TEXT PRIMARY KEY,
	mode TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS conversation_messages (
	id TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	image_url TEXT,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON conversation_messages(conversation_id, created_at);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close releases underlying resources.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateConversation inserts an untitled conversation for the mode.
func (s *Store) CreateConversation(ctx context.Context, mode chat.Mode) (history.Conversation, error) {
	conv := history.Conversation{
		ID:        uuid.New().String(),
		Mode:      mode,
		CreatedAt: time.Now().UTC(),
	}
	conv.UpdatedAt = conv.CreatedAt
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, mode, title, created_at, updated_at) VALUES (?, ?, '', ?, ?)`,
		conv.ID, string(conv.Mode), conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return history.Conversation{}, fmt.Errorf("insert conversation: %w", err)
	}
	return conv, nil
}

// ListConversations returns conversations newest-activity first.
func (s *Store) ListConversations(ctx context.Context) ([]history.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, mode, title, created_at, updated_at FROM conversations ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []history.Conversation
	for rows.Next() {
		var c history.Conversation
		var mode string
		if err := rows.Scan(&c.ID, &mode, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		c.Mode = chat.Mode(mode)
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteConversation removes a conversation and its messages.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversation_messages WHERE conversation_id = ?`, id); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return history.ErrNotFound
	}
	return err
}

// AppendMessage adds a turn and maintains the conversation's title and
// activity timestamp.
func (s *Store) AppendMessage(ctx context.Context, conversationID string, msg history.StoredMessage) (history.StoredMessage, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations WHERE id = ?`, conversationID).Scan(&exists)
	if err != nil {
		return history.StoredMessage{}, fmt.Errorf("check conversation: %w", err)
	}
	if exists == 0 {
		return history.StoredMessage{}, history.ErrNotFound
	}

	msg.ID = uuid.New().String()
	msg.ConversationID = conversationID
	msg.CreatedAt = time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO conversation_messages (id, conversation_id, role, content, image_url, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, msg.Role, msg.Content, nullable(msg.ImageURL), msg.CreatedAt)
	if err != nil {
		return history.StoredMessage{}, fmt.Errorf("insert message: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`, msg.CreatedAt, conversationID); err != nil {
		return history.StoredMessage{}, fmt.Errorf("touch conversation: %w", err)
	}
	if msg.Role == chat.RoleUser {
		if _, err := s.db.ExecContext(ctx,
			`UPDATE conversations SET title = ? WHERE id = ? AND title = ''`,
			history.TitleFrom(msg.Content), conversationID); err != nil {
			return history.StoredMessage{}, fmt.Errorf("title conversation: %w", err)
		}
	}
	return msg, nil
}

// ListMessages returns a conversation's messages oldest first.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]history.StoredMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, image_url, created_at
		 FROM conversation_messages WHERE conversation_id = ? ORDER BY created_at ASC, id ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []history.StoredMessage
	for rows.Next() {
		var m history.StoredMessage
		var imageURL sql.NullString
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &imageURL, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.ImageURL = imageURL.String
		out = append(out, m)
	}
	return out, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
