// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package main

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"

	"github.com/azimuth-mud/azimuth/internal/auth"
	"github.com/azimuth-mud/azimuth/internal/command"
	"github.com/azimuth-mud/azimuth/internal/command/handlers"
	"github.com/azimuth-mud/azimuth/internal/config"
	"github.com/azimuth-mud/azimuth/internal/seed"
	"github.com/azimuth-mud/azimuth/internal/store"
	"github.com/azimuth-mud/azimuth/internal/store/bolt"
	"github.com/azimuth-mud/azimuth/internal/store/postgres"
	"github.com/azimuth-mud/azimuth/internal/world"
	"github.com/azimuth-mud/azimuth/internal/xdg"
)

// openBackend opens the persistence layer named by cfg. PostgreSQL
// databases are migrated to the latest schema first.
func openBackend(ctx context.Context, cfg *config.StorageConfig) (store.Persistence, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		slog.Warn("using in-memory storage; the world is lost on shutdown")
		return store.NewMemoryPersistence(), nil
	case config.DriverFile:
		if err := xdg.EnsureDir(filepath.Dir(cfg.Path)); err != nil {
			return nil, err
		}
		s, err := bolt.Open(cfg.Path)
		if err != nil {
			return nil, oops.Code("STORAGE_OPEN_FAILED").With("path", cfg.Path).Wrap(err)
		}
		slog.Info("opened world file", "path", cfg.Path)
		return s, nil
	case config.DriverPostgres:
		if err := migrateUp(cfg.DatabaseURL); err != nil {
			return nil, err
		}
		s, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
		}
		slog.Info("connected to database")
		return s, nil
	default:
		return nil, oops.Code(config.CodeInvalidConfig).Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func migrateUp(databaseURL string) error {
	m, err := postgres.NewMigrator(databaseURL)
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			slog.Debug("error closing migrator", "error", closeErr)
		}
	}()
	if err := m.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}
	return nil
}

// loadedWorld is a graph wired to its object store.
type loadedWorld struct {
	graph    *world.Graph
	store    *store.ObjectStore
	registry *command.Registry
	seeded   bool
}

// loadWorld reads the configured world, seeding it when it has no root.
// reg may be nil; metrics are then not registered.
func loadWorld(ctx context.Context, cfg *config.Config, backend store.Persistence, hasher auth.PasswordHasher, reg prometheus.Registerer) (*loadedWorld, error) {
	objects := store.NewObjectStore(cfg.World.ID, backend,
		store.WithFlushInterval(cfg.Storage.FlushInterval),
		store.WithRetry(uint64(cfg.Storage.RetryMax), 0), //nolint:gosec // validated non-negative
		store.WithMetrics(reg),
	)
	registry := command.NewRegistry()
	handlers.RegisterAll(registry)

	g := world.New(cfg.World.ID, world.WithBackend(objects))
	if err := objects.Load(ctx, g); err != nil {
		return nil, err
	}

	lw := &loadedWorld{graph: g, store: objects, registry: registry}
	if g.Root() != (ulid.ULID{}) {
		return lw, nil
	}

	m, err := manifest(cfg.World.SeedFile)
	if err != nil {
		return nil, err
	}
	if _, err := seed.Bootstrap(g, m, registry, hasher); err != nil {
		return nil, err
	}
	if err := objects.Flush(ctx); err != nil {
		return nil, oops.With("operation", "save seeded world").Wrap(err)
	}
	lw.seeded = true
	return lw, nil
}

func manifest(path string) (*seed.Manifest, error) {
	if path == "" {
		return seed.Default()
	}
	return seed.Load(path)
}
