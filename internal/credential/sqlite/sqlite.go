package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lumichat/lumichat-relay/internal/chat"
	"github.com/lumichat/lumichat-relay/internal/credential"
)

// Store implements credential.Store backed by SQLite.
type Store struct {
	db *sql.DB
}

var _ credential.Store = (*Store)(nil)

// New opens (or creates) a SQLite credential store at the supplied path.
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create credential directory: %w", err)
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
CREATE TABLE IF NOT EXISTS credentials (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	provider TEXT NOT NULL,
	api_key TEXT NOT NULL,
	endpoint TEXT,
	model TEXT,
	modes TEXT NOT NULL DEFAULT '',
	active INTEGER NOT NULL DEFAULT 1,
	daily_limit INTEGER NOT NULL DEFAULT 0,
	monthly_limit INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_credentials_active ON credentials(active);
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

// Create inserts a credential and returns it with ID and timestamps set.
func (s *Store) Create(ctx context.Context, cred credential.Credential) (credential.Credential, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO credentials (provider, api_key, endpoint, model, modes, active, daily_limit, monthly_limit, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		strings.ToLower(strings.TrimSpace(cred.Provider)), cred.APIKey, cred.Endpoint, cred.Model,
		encodeModes(cred.Modes), boolToInt(cred.Active), cred.DailyLimit, cred.MonthlyLimit, now, now)
	if err != nil {
		return credential.Credential{}, fmt.Errorf("insert credential: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return credential.Credential{}, fmt.Errorf("credential id: %w", err)
	}
	cred.ID = id
	cred.CreatedAt = now
	cred.UpdatedAt = now
	return cred, nil
}

// List returns all credentials ordered oldest first.
func (s *Store) List(ctx context.Context) ([]credential.Credential, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, provider, api_key, endpoint, model, modes, active, daily_limit, monthly_limit, created_at, updated_at
		 FROM credentials ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var out []credential.Credential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cred)
	}
	return out, rows.Err()
}

// OldestActiveForMode returns the oldest active credential eligible for mode,
// or nil when none qualifies.
func (s *Store) OldestActiveForMode(ctx context.Context, mode chat.Mode) (*credential.Credential, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, provider, api_key, endpoint, model, modes, active, daily_limit, monthly_limit, created_at, updated_at
		 FROM credentials WHERE active = 1 ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query credentials: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		if cred.EligibleFor(mode) {
			return &cred, nil
		}
	}
	return nil, rows.Err()
}

// SetActive flips the activity flag.
func (s *Store) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE credentials SET active = ?, updated_at = ? WHERE id = ?`,
		boolToInt(active), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update credential: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return err
}

// Delete removes a credential.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return err
}

// Count returns the number of stored credentials; used for first-run seeding.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM credentials`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count credentials: %w", err)
	}
	return n, nil
}

func scanCredential(rows *sql.Rows) (credential.Credential, error) {
	var (
		cred               credential.Credential
		endpoint, model    sql.NullString
		modes              string
		active             int
		createdAt, updated time.Time
	)
	if err := rows.Scan(&cred.ID, &cred.Provider, &cred.APIKey, &endpoint, &model, &modes,
		&active, &cred.DailyLimit, &cred.MonthlyLimit, &createdAt, &updated); err != nil {
		return credential.Credential{}, fmt.Errorf("scan credential: %w", err)
	}
	cred.Endpoint = endpoint.String
	cred.Model = model.String
	cred.Modes = decodeModes(modes)
	cred.Active = active != 0
	cred.CreatedAt = createdAt
	cred.UpdatedAt = updated
	return cred, nil
}

// Modes are stored as a comma-separated list; SQLite has no array type.
func encodeModes(modes []chat.Mode) string {
	parts := make([]string, 0, len(modes))
	for _, m := range modes {
		parts = append(parts, string(m))
	}
	return strings.Join(parts, ",")
}

func decodeModes(raw string) []chat.Mode {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	modes := make([]chat.Mode, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			modes = append(modes, chat.Mode(p))
		}
	}
	return modes
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
