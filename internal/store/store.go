// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

// Package store is the durable half of the object store: the Persistence
// contract implemented by each backend and the ObjectStore that feeds it
// committed world changes in order.
package store

import (
	"context"

	"github.com/oklog/ulid/v2"

	"github.com/azimuth-mud/azimuth/internal/world"
)

// Error codes for persistence failures.
const (
	CodePersistenceFailure = "PERSISTENCE_FAILURE"
	CodeStoreClosed        = "STORE_CLOSED"
)

// Persistence is a durable object backend for one or more worlds.
// SaveObject must be durable once it returns nil.
type Persistence interface {
	LoadWorld(ctx context.Context, worldID string) ([]*world.Object, error)
	SaveObject(ctx context.Context, worldID string, obj *world.Object) error
	DeleteObject(ctx context.Context, worldID string, id ulid.ULID) error
	FindByName(ctx context.Context, worldID, name string) ([]ulid.ULID, error)
	Close() error
}

// Pinger is implemented by backends that can report liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}
