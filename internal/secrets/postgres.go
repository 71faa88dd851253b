// internal/secrets/postgres.go
package secrets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps rotating secrets in a Postgres table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects a pgx pool and pings it.
func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse pgx config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema creates the identity table if it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	q := `
	CREATE TABLE IF NOT EXISTS motd_identities (
		external_id TEXT PRIMARY KEY,
		secret      TEXT NOT NULL
	)`
	if _, err := s.pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("failed to create motd_identities table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, externalID string) (string, bool, error) {
	var secret string
	q := `SELECT secret FROM motd_identities WHERE external_id=$1`
	err := s.pool.QueryRow(ctx, q, externalID).Scan(&secret)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to load secret for %s: %w", externalID, err)
	}
	return secret, true, nil
}

func (s *PostgresStore) Save(ctx context.Context, externalID, secret string) error {
	q := `
	INSERT INTO motd_identities (external_id, secret) VALUES ($1, $2)
	ON CONFLICT (external_id) DO UPDATE SET secret = EXCLUDED.secret`

	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, q, externalID, secret)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to save secret for %s: %w", externalID, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}
