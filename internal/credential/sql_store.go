package credential

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// SQLStore keeps secrets in a PostgreSQL table, one row per
// (namespace, key).
type SQLStore struct {
	db        *sqlx.DB
	namespace string
}

func NewSQLStore(db *sqlx.DB, namespace string) *SQLStore {
	return &SQLStore{db: db, namespace: namespace}
}

// EnsureTable creates the client_credentials table if it does not already exist.
func (s *SQLStore) EnsureTable(ctx context.Context) error {
	const tbl = `
	CREATE TABLE IF NOT EXISTS client_credentials (
		namespace varchar(64) NOT NULL DEFAULT '',
		key varchar(64) NOT NULL,
		value text NOT NULL DEFAULT '',
		updated_at timestamptz NOT NULL DEFAULT NOW(),
		PRIMARY KEY (namespace, key)
	);
	`
	_, err := s.db.ExecContext(ctx, tbl)
	return err
}

func (s *SQLStore) Save(ctx context.Context, key, value string) error {
	const q = `INSERT INTO client_credentials (namespace, key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
	_, err := s.db.ExecContext(ctx, q, s.namespace, key, value)
	return err
}

func (s *SQLStore) Read(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value, `SELECT value FROM client_credentials WHERE namespace = $1 AND key = $2`, s.namespace, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

func (s *SQLStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM client_credentials WHERE namespace = $1 AND key = $2`, s.namespace, key)
	return err
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
