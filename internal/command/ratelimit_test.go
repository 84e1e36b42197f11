// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package command

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func newTestLimiter(t *testing.T, cfg RateLimiterConfig) (*RateLimiter, *time.Time) {
	t.Helper()
	rl := NewRateLimiter(cfg)
	t.Cleanup(rl.Close)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.mu.Lock()
	rl.now = func() time.Time { return now }
	rl.mu.Unlock()
	return rl, &now
}

func TestNewRateLimiter_Defaults(t *testing.T) {
	rl, _ := newTestLimiter(t, RateLimiterConfig{BurstCapacity: -1, SustainedRate: 0})
	assert.Equal(t, float64(DefaultBurstCapacity), rl.burst)
	assert.Equal(t, DefaultSustainedRate, rl.rate)

	slow, _ := newTestLimiter(t, RateLimiterConfig{SustainedRate: 0.01})
	assert.Equal(t, MinSustainedRate, slow.rate)
}

func TestRateLimiter_BurstThenRefill(t *testing.T) {
	rl, now := newTestLimiter(t, RateLimiterConfig{BurstCapacity: 3, SustainedRate: 2})
	sid := ulid.Make()

	for i := 0; i < 3; i++ {
		ok, cooldown := rl.Allow(sid)
		assert.True(t, ok, "command %d is within the burst", i)
		assert.Zero(t, cooldown)
	}
	ok, cooldown := rl.Allow(sid)
	assert.False(t, ok)
	assert.Equal(t, int64(500), cooldown)

	*now = now.Add(500 * time.Millisecond)
	ok, _ = rl.Allow(sid)
	assert.True(t, ok, "one token refilled")

	*now = now.Add(time.Hour)
	for i := 0; i < 3; i++ {
		ok, _ = rl.Allow(sid)
		assert.True(t, ok)
	}
	ok, _ = rl.Allow(sid)
	assert.False(t, ok, "refill is capped at the burst")
}

func TestRateLimiter_SessionsAreIndependent(t *testing.T) {
	rl, _ := newTestLimiter(t, RateLimiterConfig{BurstCapacity: 1, SustainedRate: 1})
	a, b := ulid.Make(), ulid.Make()

	ok, _ := rl.Allow(a)
	assert.True(t, ok)
	ok, _ = rl.Allow(a)
	assert.False(t, ok)
	ok, _ = rl.Allow(b)
	assert.True(t, ok)
}

func TestRateLimiter_CleanupAndForget(t *testing.T) {
	reg := prometheus.NewRegistry()
	rl, now := newTestLimiter(t, RateLimiterConfig{Registerer: reg})
	a, b := ulid.Make(), ulid.Make()
	rl.Allow(a)
	*now = now.Add(2 * time.Hour)
	rl.Allow(b)
	assert.Equal(t, 2, rl.SessionCount())

	rl.Cleanup(time.Hour)
	assert.Equal(t, 1, rl.SessionCount())
	assert.Equal(t, 1.0, testutil.ToFloat64(rl.gauge))

	rl.Forget(b)
	assert.Zero(t, rl.SessionCount())
	assert.Equal(t, 0.0, testutil.ToFloat64(rl.gauge))
}

func TestRateLimiter_CloseStopsGoroutine(t *testing.T) {
	defer goleak.VerifyNone(t)
	rl := NewRateLimiter(RateLimiterConfig{CleanupInterval: time.Millisecond})
	time.Sleep(5 * time.Millisecond)
	rl.Close()
	rl.Close()
}
