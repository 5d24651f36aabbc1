package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"

	"github.com/lumichat/lumichat-relay/internal/chat"
	"github.com/lumichat/lumichat-relay/internal/credential"
)

// Store implements credential.Store backed by Postgres.
type Store struct {
	db *sql.DB
}

// New opens a Postgres-backed credential store using the provided DSN.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres db: %w", err)
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
	id BIGSERIAL PRIMARY KEY,
	provider TEXT NOT NULL,
	api_key TEXT NOT NULL,
	endpoint TEXT,
	model TEXT,
	modes TEXT[] NOT NULL DEFAULT '{}',
	active BOOLEAN NOT NULL DEFAULT TRUE,
	daily_limit INTEGER NOT NULL DEFAULT 0,
	monthly_limit INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
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
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO credentials (provider, api_key, endpoint, model, modes, active, daily_limit, monthly_limit)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at, updated_at`,
		strings.ToLower(strings.TrimSpace(cred.Provider)), cred.APIKey, cred.Endpoint, cred.Model,
		pq.Array(modeStrings(cred.Modes)), cred.Active, cred.DailyLimit, cred.MonthlyLimit)
	if err := row.Scan(&cred.ID, &cred.CreatedAt, &cred.UpdatedAt); err != nil {
		return credential.Credential{}, fmt.Errorf("insert credential: %w", err)
	}
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
		 FROM credentials WHERE active AND $1 = ANY(modes)
		 ORDER BY created_at ASC, id ASC LIMIT 1`, string(mode))
	if err != nil {
		return nil, fmt.Errorf("query credentials: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	cred, err := scanCredential(rows)
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

// SetActive flips the activity flag.
func (s *Store) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE credentials SET active = $1, updated_at = NOW() WHERE id = $2`, active, id)
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
	res, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return err
}

// Count reports how many credentials exist.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM credentials`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count credentials: %w", err)
	}
	return n, nil
}

func scanCredential(rows *sql.Rows) (credential.Credential, error) {
	var (
		cred            credential.Credential
		endpoint, model sql.NullString
		modes           []string
	)
	if err := rows.Scan(&cred.ID, &cred.Provider, &cred.APIKey, &endpoint, &model, pq.Array(&modes),
		&cred.Active, &cred.DailyLimit, &cred.MonthlyLimit, &cred.CreatedAt, &cred.UpdatedAt); err != nil {
		return credential.Credential{}, fmt.Errorf("scan credential: %w", err)
	}
	cred.Endpoint = endpoint.String
	cred.Model = model.String
	cred.Modes = make([]chat.Mode, 0, len(modes))
	for _, m := range modes {
		cred.Modes = append(cred.Modes, chat.Mode(m))
	}
	return cred, nil
}

func modeStrings(modes []chat.Mode) []string {
	out := make([]string, 0, len(modes))
	for _, m := range modes {
		out = append(out, string(m))
	}
	return out
}

var _ credential.Store = (*Store)(nil)
