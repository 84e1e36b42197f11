// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

// Package postgres is the networked persistence backend built on pgx.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/azimuth-mud/azimuth/internal/world"
)

// CodeSchemaMissing means the objects table does not exist yet.
const CodeSchemaMissing = "SCHEMA_MISSING"

// poolIface is the part of *pgxpool.Pool the store uses; pgxmock satisfies it.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Store implements store.Persistence on PostgreSQL.
type Store struct {
	pool poolIface
}

// Connect opens a pool to dsn and verifies the connection.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").Wrap(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").Wrap(err)
	}
	return New(pool), nil
}

// New wraps an existing pool.
func New(pool poolIface) *Store {
	return &Store{pool: pool}
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return oops.Code("DB_PING_FAILED").Wrap(err)
	}
	return nil
}

// LoadWorld implements store.Persistence.
func (s *Store) LoadWorld(ctx context.Context, worldID string) ([]*world.Object, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, data FROM objects WHERE world_id = $1 ORDER BY id`, worldID)
	if err != nil {
		return nil, wrapQueryErr(err, "load world", worldID)
	}
	defer rows.Close()

	var out []*world.Object
	for rows.Next() {
		var id string
		var data []byte
		if err := rows.Scan(&id, &data); err != nil {
			return nil, oops.With("operation", "scan object row").With("world_id", worldID).Wrap(err)
		}
		var obj world.Object
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, oops.Code("CORRUPT_OBJECT").With("world_id", worldID).With("object_id", id).Wrap(err)
		}
		out = append(out, &obj)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapQueryErr(err, "iterate objects", worldID)
	}
	return out, nil
}

// SaveObject implements store.Persistence as an upsert.
func (s *Store) SaveObject(ctx context.Context, worldID string, obj *world.Object) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return oops.Code("ENCODE_FAILED").With("object_id", obj.ID.String()).Wrap(err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO objects (world_id, id, name, names, data, updated_at)
		 VALUES ($1, $2, $3, $4, $5, now())
		 ON CONFLICT (world_id, id) DO UPDATE
		 SET name = EXCLUDED.name, names = EXCLUDED.names, data = EXCLUDED.data, updated_at = now()`,
		worldID, obj.ID.String(), obj.Name, searchNames(obj), data)
	if err != nil {
		return oops.With("object_id", obj.ID.String()).Wrap(wrapQueryErr(err, "save object", worldID))
	}
	return nil
}

// DeleteObject implements store.Persistence.
func (s *Store) DeleteObject(ctx context.Context, worldID string, id ulid.ULID) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM objects WHERE world_id = $1 AND id = $2`, worldID, id.String())
	if err != nil {
		return wrapQueryErr(err, "delete object", worldID)
	}
	return nil
}

// FindByName implements store.Persistence with an exact, case-insensitive
// match on names and aliases.
func (s *Store) FindByName(ctx context.Context, worldID, name string) ([]ulid.ULID, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM objects WHERE world_id = $1 AND $2 = ANY(names) ORDER BY id`,
		worldID, strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return nil, wrapQueryErr(err, "find by name", worldID)
	}
	defer rows.Close()

	var out []ulid.ULID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, oops.With("operation", "scan id").Wrap(err)
		}
		id, err := ulid.ParseStrict(raw)
		if err != nil {
			return nil, oops.Code("CORRUPT_OBJECT").With("object_id", raw).Wrap(err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapQueryErr(err, "iterate names", worldID)
	}
	return out, nil
}

// WorldExists reports whether any object of worldID is stored.
func (s *Store) WorldExists(ctx context.Context, worldID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM objects WHERE world_id = $1)`, worldID).Scan(&exists)
	if err != nil {
		return false, wrapQueryErr(err, "check world", worldID)
	}
	return exists, nil
}

// searchNames returns the lower-cased name and aliases stored for lookup.
func searchNames(obj *world.Object) []string {
	names := []string{strings.ToLower(obj.Name)}
	for _, a := range obj.Aliases {
		names = append(names, strings.ToLower(a))
	}
	return names
}

// wrapQueryErr maps a missing table to SCHEMA_MISSING so operators are told
// to run migrations instead of seeing a raw SQL error.
func wrapQueryErr(err error, operation, worldID string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UndefinedTable {
		return oops.Code(CodeSchemaMissing).
			With("operation", operation).
			With("world_id", worldID).
			Hint("run 'azimuth migrate up'").
			Wrap(err)
	}
	return oops.With("operation", operation).With("world_id", worldID).Wrap(err)
}
