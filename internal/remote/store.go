// Package remote wraps the shared record database behind an opaque
// key-value surface: last-write-wins writes keyed by path, no
// transactions. Idempotent record ids are the only duplicate protection.
package remote

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store is the write/read surface the sync layer depends on.
type Store interface {
	Write(ctx context.Context, path string, record interface{}) error
	Read(ctx context.Context, path string, out interface{}) (bool, error)
}

// PostgresStore keeps records as JSONB rows keyed by path.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore wraps an existing connection pool.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Write upserts the record under its path. Redelivery of the same path
// overwrites in place, which is what makes retries idempotent.
func (s *PostgresStore) Write(ctx context.Context, path string, record interface{}) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", path, err)
	}

	const query = `
		INSERT INTO sync_records (path, data, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (path) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`
	if _, err := s.db.ExecContext(ctx, query, path, data, time.Now().UTC()); err != nil {
		return fmt.Errorf("write record %s: %w", path, err)
	}
	return nil
}

// Read fetches the record at path into out. The second return reports
// whether the path exists.
func (s *PostgresStore) Read(ctx context.Context, path string, out interface{}) (bool, error) {
	var data []byte
	err := s.db.GetContext(ctx, &data, `SELECT data FROM sync_records WHERE path = $1`, path)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read record %s: %w", path, err)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return true, fmt.Errorf("decode record %s: %w", path, err)
		}
	}
	return true, nil
}

// Ping reports remote reachability; the connectivity prober uses it.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
