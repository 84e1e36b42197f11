// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package store

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/azimuth-mud/azimuth/internal/core"
	"github.com/azimuth-mud/azimuth/internal/world"
)

// Flush defaults.
const (
	DefaultFlushInterval = time.Second
	DefaultRetryMax      = 5
	DefaultRetryBase     = 50 * time.Millisecond
	maxRetryDelay        = 2 * time.Second
)

// ObjectStore allocates identifiers for a world and persists its committed
// changes asynchronously. Changes to one object are written in the order
// they were applied; a newer change to an object still waiting supersedes
// the older one. Writes that fail after retries stay dirty for the next pass.
type ObjectStore struct {
	worldID   string
	backend   Persistence
	interval  time.Duration
	retryMax  uint64
	retryBase time.Duration
	metrics   *flushMetrics

	mu     sync.Mutex
	dirty  map[ulid.ULID]world.Change
	order  []ulid.ULID
	closed bool

	flushMu sync.Mutex
	wake    chan struct{}
	stop    chan struct{}
	done    chan struct{}
	started bool
}

// Option configures an ObjectStore.
type Option func(*ObjectStore)

// WithFlushInterval sets how often leftover dirty objects are retried.
func WithFlushInterval(d time.Duration) Option {
	return func(s *ObjectStore) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithRetry sets the retry budget for one write.
func WithRetry(maxRetries uint64, base time.Duration) Option {
	return func(s *ObjectStore) {
		s.retryMax = maxRetries
		if base > 0 {
			s.retryBase = base
		}
	}
}

// WithMetrics registers flush metrics with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(s *ObjectStore) {
		if reg != nil {
			s.metrics.register(reg)
		}
	}
}

// NewObjectStore creates a store for worldID over backend.
func NewObjectStore(worldID string, backend Persistence, opts ...Option) *ObjectStore {
	s := &ObjectStore{
		worldID:   worldID,
		backend:   backend,
		interval:  DefaultFlushInterval,
		retryMax:  DefaultRetryMax,
		retryBase: DefaultRetryBase,
		metrics:   newFlushMetrics(),
		dirty:     make(map[ulid.ULID]world.Change),
		wake:      make(chan struct{}, 1),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WorldID returns the world this store persists.
func (s *ObjectStore) WorldID() string {
	return s.worldID
}

// Backend returns the underlying persistence.
func (s *ObjectStore) Backend() Persistence {
	return s.backend
}

// NewID implements world.Backend.
func (s *ObjectStore) NewID() ulid.ULID {
	return core.NewULID()
}

// Enqueue implements world.Backend. It never blocks on I/O.
func (s *ObjectStore) Enqueue(changes []world.Change) {
	s.mu.Lock()
	for _, c := range changes {
		if _, pending := s.dirty[c.ID]; pending {
			s.order = slices.DeleteFunc(s.order, func(id ulid.ULID) bool { return id == c.ID })
		}
		s.dirty[c.ID] = c
		s.order = append(s.order, c.ID)
	}
	s.metrics.dirty.Set(float64(len(s.dirty)))
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of dirty objects.
func (s *ObjectStore) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dirty)
}

// Load reads the world from the backend into g.
func (s *ObjectStore) Load(ctx context.Context, g *world.Graph) error {
	objects, err := s.backend.LoadWorld(ctx, s.worldID)
	if err != nil {
		return oops.Code(CodePersistenceFailure).With("world_id", s.worldID).Wrapf(err, "load world")
	}
	if err := g.Load(objects); err != nil {
		return oops.With("world_id", s.worldID).Wrapf(err, "load world")
	}
	slog.InfoContext(ctx, "world loaded", "world_id", s.worldID, "objects", len(objects))
	return nil
}

// FindByName asks the backend for objects named name.
func (s *ObjectStore) FindByName(ctx context.Context, name string) ([]ulid.ULID, error) {
	ids, err := s.backend.FindByName(ctx, s.worldID, name)
	if err != nil {
		return nil, oops.Code(CodePersistenceFailure).With("name", name).Wrap(err)
	}
	return ids, nil
}

// Ping reports whether the backend is reachable.
func (s *ObjectStore) Ping(ctx context.Context) error {
	if p, ok := s.backend.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Start runs the background flusher until Close.
func (s *ObjectStore) Start() {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()
	go s.run()
}

func (s *ObjectStore) run() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	// Close cancels a write that is still running.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		select {
		case <-s.stop:
			return
		case <-s.wake:
		case <-ticker.C:
			if s.Pending() == 0 {
				continue
			}
		}
		if err := s.flush(ctx, s.stop); err != nil {
			slog.Warn("flush incomplete", "world_id", s.worldID, "pending", s.Pending(), "error", err)
		}
	}
}

// Flush writes every dirty object now and returns the first write error.
// Objects that could not be written stay dirty.
func (s *ObjectStore) Flush(ctx context.Context) error {
	return s.flush(ctx, nil)
}

func (s *ObjectStore) flush(ctx context.Context, abort <-chan struct{}) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	start := time.Now()
	defer func() { s.metrics.duration.Observe(time.Since(start).Seconds()) }()

	batch := s.take()
	var firstErr error
	for i, c := range batch {
		if err := ctx.Err(); err != nil {
			s.requeue(batch[i:])
			return err
		}
		if abort != nil {
			select {
			case <-abort:
				s.requeue(batch[i:])
				return oops.Code(CodeStoreClosed).Errorf("flush interrupted by shutdown")
			default:
			}
		}
		if err := s.write(ctx, c); err != nil {
			s.requeue([]world.Change{c})
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// take removes and returns every dirty change in apply order.
func (s *ObjectStore) take() []world.Change {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := make([]world.Change, 0, len(s.order))
	for _, id := range s.order {
		batch = append(batch, s.dirty[id])
	}
	s.dirty = make(map[ulid.ULID]world.Change)
	s.order = nil
	s.metrics.dirty.Set(0)
	return batch
}

// requeue puts unwritten changes back ahead of newer ones, unless a newer
// change to the same object has arrived meanwhile.
func (s *ObjectStore) requeue(changes []world.Change) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var front []ulid.ULID
	for _, c := range changes {
		if _, superseded := s.dirty[c.ID]; superseded {
			continue
		}
		s.dirty[c.ID] = c
		front = append(front, c.ID)
	}
	s.order = append(front, s.order...)
	s.metrics.dirty.Set(float64(len(s.dirty)))
}

func (s *ObjectStore) write(ctx context.Context, c world.Change) error {
	backoff := retry.WithMaxRetries(s.retryMax,
		retry.WithCappedDuration(maxRetryDelay, retry.NewExponential(s.retryBase)))

	attempts := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		var err error
		if c.Kind == world.ChangeDelete {
			err = s.backend.DeleteObject(ctx, s.worldID, c.ID)
		} else {
			err = s.backend.SaveObject(ctx, s.worldID, c.Object)
		}
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		s.metrics.writes.WithLabelValues(c.Kind.String(), "failure").Inc()
		s.metrics.failures.Inc()
		slog.ErrorContext(ctx, "persistence failure",
			"world_id", s.worldID,
			"object_id", c.ID.String(),
			"change", c.Kind.String(),
			"attempts", attempts,
			"error", err,
		)
		return oops.Code(CodePersistenceFailure).
			With("object_id", c.ID.String()).
			With("attempts", attempts).
			Wrap(err)
	}
	s.metrics.writes.WithLabelValues(c.Kind.String(), "success").Inc()
	return nil
}

// Close stops the flusher, cancelling any write in progress, writes
// everything still dirty within ctx, and closes the backend. The flush error, if any, is returned after the backend is closed.
func (s *ObjectStore) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	started := s.started
	s.mu.Unlock()

	close(s.stop)
	if started {
		<-s.done
	}
	flushErr := s.Flush(ctx)
	if err := s.backend.Close(); err != nil {
		return oops.Code(CodePersistenceFailure).With("operation", "close backend").Wrap(err)
	}
	return flushErr
}
