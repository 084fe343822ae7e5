package library

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the patterns table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS patterns (
    name        TEXT PRIMARY KEY,
    fingerprint BYTEA NOT NULL,
    metadata    JSONB NOT NULL DEFAULT '{}',
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by PostgreSQL, for deployments where
// several monitoring hosts share one pattern library. Metadata is serialised
// as JSONB; saves are last-write-wins upserts to match [Library.Add]
// semantics.
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a PostgresStore using the given connection or
// pool. Call [PostgresStore.Migrate] before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL, creating the patterns table if it does
// not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("library: migrate: %w", err)
	}
	return nil
}

// Save implements [Store.Save].
func (s *PostgresStore) Save(ctx context.Context, entry Entry) error {
	metaJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("library: marshal metadata for %q: %w", entry.Name, err)
	}

	const query = `
		INSERT INTO patterns (name, fingerprint, metadata, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (name) DO UPDATE
		SET fingerprint = EXCLUDED.fingerprint,
		    metadata    = EXCLUDED.metadata,
		    updated_at  = now()`

	if _, err := s.db.Exec(ctx, query, entry.Name, []byte(entry.Fingerprint), metaJSON); err != nil {
		return fmt.Errorf("library: save pattern %q: %w", entry.Name, err)
	}
	return nil
}

// Load implements [Store.Load].
func (s *PostgresStore) Load(ctx context.Context) ([]Entry, error) {
	const query = `SELECT name, fingerprint, metadata FROM patterns ORDER BY name`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("library: load patterns: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			entry    Entry
			fp       []byte
			metaJSON []byte
		)
		if err := rows.Scan(&entry.Name, &fp, &metaJSON); err != nil {
			return nil, fmt.Errorf("library: scan pattern row: %w", err)
		}
		if err := json.Unmarshal(metaJSON, &entry.Metadata); err != nil {
			return nil, fmt.Errorf("library: unmarshal metadata for %q: %w", entry.Name, err)
		}
		entry.Fingerprint = fp
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("library: iterate pattern rows: %w", err)
	}
	return out, nil
}

// Delete implements [Store.Delete].
func (s *PostgresStore) Delete(ctx context.Context, name string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM patterns WHERE name = $1`, name); err != nil {
		return fmt.Errorf("library: delete pattern %q: %w", name, err)
	}
	return nil
}
