// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package auth

import (
	"strings"
	"sync"
	"time"
)

// Login throttling schedule.
const (
	LockoutDuration  = 15 * time.Minute
	LockoutThreshold = 7
	maxDelay         = 32 * time.Second
)

// RateLimitResult is the throttling state after some number of failures.
type RateLimitResult struct {
	// Delay is how long the next attempt must wait after the last failure.
	Delay time.Duration
	// IsLockedOut is set once LockoutThreshold failures accumulate.
	IsLockedOut      bool
	LockoutRemaining time.Duration
}

// CheckFailures evaluates the schedule: 2^(n-1) seconds of delay up to 32s,
// then a lockout from the 7th failure on.
func CheckFailures(failures int) RateLimitResult {
	var r RateLimitResult
	switch {
	case failures >= LockoutThreshold:
		r.IsLockedOut = true
		r.LockoutRemaining = LockoutDuration
	case failures > 0:
		r.Delay = min(time.Duration(1<<(failures-1))*time.Second, maxDelay)
	}
	return r
}

type failureRecord struct {
	count       int
	last        time.Time
	lockedUntil time.Time
}

// FailureTracker counts login failures per key (a player name or a remote
// address) and applies the schedule. Safe for concurrent use.
type FailureTracker struct {
	mu      sync.Mutex
	records map[string]*failureRecord
	now     func() time.Time
}

// NewFailureTracker creates an empty tracker.
func NewFailureTracker() *FailureTracker {
	return &FailureTracker{records: make(map[string]*failureRecord), now: time.Now}
}

// WithClock replaces the time source. Tests only.
func (t *FailureTracker) WithClock(now func() time.Time) *FailureTracker {
	t.now = now
	return t
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// Check reports whether an attempt for key may proceed now. When it may
// not, the returned duration is how long to wait.
func (t *FailureTracker) Check(key string) (bool, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[normalizeKey(key)]
	if !ok {
		return true, 0
	}
	now := t.now()
	if !rec.lockedUntil.IsZero() {
		if now.Before(rec.lockedUntil) {
			return false, rec.lockedUntil.Sub(now)
		}
		delete(t.records, normalizeKey(key))
		return true, 0
	}
	ready := rec.last.Add(CheckFailures(rec.count).Delay)
	if now.Before(ready) {
		return false, ready.Sub(now)
	}
	return true, 0
}

// RecordFailure counts a failed attempt and returns the resulting state.
func (t *FailureTracker) RecordFailure(key string) RateLimitResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := normalizeKey(key)
	rec, ok := t.records[k]
	if !ok {
		rec = &failureRecord{}
		t.records[k] = rec
	}
	rec.count++
	rec.last = t.now()
	result := CheckFailures(rec.count)
	if result.IsLockedOut && rec.lockedUntil.IsZero() {
		rec.lockedUntil = rec.last.Add(LockoutDuration)
	}
	return result
}

// Reset clears key after a successful login.
func (t *FailureTracker) Reset(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.records, normalizeKey(key))
}
