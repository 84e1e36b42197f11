// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

// Package bolt is the single-file persistence backend built on bbolt.
//
// Each world gets a top-level bucket holding an "objects" bucket (id →
// gob-encoded object) and a "names" bucket (lower-cased name or alias + id →
// id) used by FindByName.
package bolt

import (
	"bytes"
	"context"
	"encoding/gob"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	bbolt "go.etcd.io/bbolt"

	"github.com/azimuth-mud/azimuth/internal/world"
)

var (
	bucketObjects = []byte("objects")
	bucketNames   = []byte("names")
)

// nameSep separates the name from the id in name index keys.
const nameSep = 0x00

// Store implements store.Persistence on a bbolt file.
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the database file at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, oops.Code("BOLT_OPEN_FAILED").With("path", path).Wrap(err)
		}
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, oops.Code("BOLT_OPEN_FAILED").With("path", path).Wrap(err)
	}
	return &Store{db: db}, nil
}

// Path returns the filesystem path of the database.
func (s *Store) Path() string {
	return s.db.Path()
}

// Close closes the database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is open.
func (s *Store) Ping(_ context.Context) error {
	return s.db.View(func(*bbolt.Tx) error { return nil })
}

// worldBuckets returns the objects and names buckets for worldID, creating
// them when create is set. Both are nil if the world does not exist.
func worldBuckets(tx *bbolt.Tx, worldID string, create bool) (objects, names *bbolt.Bucket, err error) {
	key := []byte(worldID)
	top := tx.Bucket(key)
	if top == nil {
		if !create {
			return nil, nil, nil
		}
		if top, err = tx.CreateBucket(key); err != nil {
			return nil, nil, err
		}
	}
	if create {
		if objects, err = top.CreateBucketIfNotExists(bucketObjects); err != nil {
			return nil, nil, err
		}
		if names, err = top.CreateBucketIfNotExists(bucketNames); err != nil {
			return nil, nil, err
		}
		return objects, names, nil
	}
	return top.Bucket(bucketObjects), top.Bucket(bucketNames), nil
}

// LoadWorld implements store.Persistence.
func (s *Store) LoadWorld(ctx context.Context, worldID string) ([]*world.Object, error) {
	var out []*world.Object
	err := s.db.View(func(tx *bbolt.Tx) error {
		objects, _, err := worldBuckets(tx, worldID, false)
		if err != nil || objects == nil {
			return err
		}
		return objects.ForEach(func(k, v []byte) error {
			obj, err := decodeObject(v)
			if err != nil {
				return oops.With("key", string(k)).Wrapf(err, "decode object")
			}
			out = append(out, obj)
			return nil
		})
	})
	if err != nil {
		return nil, oops.Code("BOLT_LOAD_FAILED").With("world_id", worldID).Wrap(err)
	}
	slog.DebugContext(ctx, "bolt world loaded", "world_id", worldID, "objects", len(out))
	return out, nil
}

// SaveObject implements store.Persistence. The write is fsynced on commit.
func (s *Store) SaveObject(_ context.Context, worldID string, obj *world.Object) error {
	data, err := encodeObject(obj)
	if err != nil {
		return oops.Code("BOLT_ENCODE_FAILED").With("object_id", obj.ID.String()).Wrap(err)
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		objects, names, err := worldBuckets(tx, worldID, true)
		if err != nil {
			return err
		}
		key := obj.ID.Bytes()
		if prev := objects.Get(key); prev != nil {
			old, err := decodeObject(prev)
			if err == nil {
				if err := unindex(names, old); err != nil {
					return err
				}
			}
		}
		if err := objects.Put(key, data); err != nil {
			return err
		}
		return index(names, obj)
	})
	if err != nil {
		return oops.Code("BOLT_WRITE_FAILED").With("world_id", worldID).With("object_id", obj.ID.String()).Wrap(err)
	}
	return nil
}

// DeleteObject implements store.Persistence. Deleting a missing object is not an error.
func (s *Store) DeleteObject(_ context.Context, worldID string, id ulid.ULID) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		objects, names, err := worldBuckets(tx, worldID, false)
		if err != nil || objects == nil {
			return err
		}
		key := id.Bytes()
		prev := objects.Get(key)
		if prev == nil {
			return nil
		}
		if old, err := decodeObject(prev); err == nil {
			if err := unindex(names, old); err != nil {
				return err
			}
		}
		return objects.Delete(key)
	})
	if err != nil {
		return oops.Code("BOLT_WRITE_FAILED").With("world_id", worldID).With("object_id", id.String()).Wrap(err)
	}
	return nil
}

// FindByName implements store.Persistence with an exact, case-insensitive
// match on names and aliases.
func (s *Store) FindByName(_ context.Context, worldID, name string) ([]ulid.ULID, error) {
	var out []ulid.ULID
	prefix := append([]byte(strings.ToLower(strings.TrimSpace(name))), nameSep)
	err := s.db.View(func(tx *bbolt.Tx) error {
		_, names, err := worldBuckets(tx, worldID, false)
		if err != nil || names == nil {
			return err
		}
		c := names.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var id ulid.ULID
			copy(id[:], v)
			if !slices.Contains(out, id) {
				out = append(out, id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, oops.Code("BOLT_LOAD_FAILED").With("world_id", worldID).With("name", name).Wrap(err)
	}
	return out, nil
}

// Backup writes a consistent snapshot of the database to path.
func (s *Store) Backup(path string) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		f, err := os.Create(path)
		if err != nil {
			return oops.Code("BOLT_BACKUP_FAILED").With("path", path).Wrap(err)
		}
		defer f.Close()
		if _, err := tx.WriteTo(f); err != nil {
			return oops.Code("BOLT_BACKUP_FAILED").With("path", path).Wrap(err)
		}
		return nil
	})
}

func nameKey(name string, id ulid.ULID) []byte {
	key := append([]byte(strings.ToLower(name)), nameSep)
	return append(key, id.Bytes()...)
}

func index(names *bbolt.Bucket, obj *world.Object) error {
	for _, n := range append([]string{obj.Name}, obj.Aliases...) {
		if err := names.Put(nameKey(n, obj.ID), obj.ID.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

func unindex(names *bbolt.Bucket, obj *world.Object) error {
	for _, n := range append([]string{obj.Name}, obj.Aliases...) {
		if err := names.Delete(nameKey(n, obj.ID)); err != nil {
			return err
		}
	}
	return nil
}

func encodeObject(obj *world.Object) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(obj); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeObject(data []byte) (*world.Object, error) {
	var obj world.Object
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&obj); err != nil {
		return nil, err
	}
	return &obj, nil
}
