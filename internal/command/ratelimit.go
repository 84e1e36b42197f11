// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package command

import (
	"math"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
)

// Rate limiting defaults.
const (
	DefaultBurstCapacity   = 10
	DefaultSustainedRate   = 2.0
	MinSustainedRate       = 0.1
	DefaultCleanupInterval = 5 * time.Minute
	DefaultSessionMaxAge   = time.Hour
)

// RateLimiterConfig configures a RateLimiter. Zero values take the defaults.
type RateLimiterConfig struct {
	BurstCapacity   int
	SustainedRate   float64 // commands per second
	CleanupInterval time.Duration
	SessionMaxAge   time.Duration
	Registerer      prometheus.Registerer // optional session gauge
}

type bucket struct {
	tokens float64
	last   time.Time
}

// RateLimiter is a per-session token bucket. It runs a background goroutine
// that forgets idle sessions; Close stops it.
type RateLimiter struct {
	mu       sync.Mutex
	buckets  map[ulid.ULID]*bucket
	burst    float64
	rate     float64
	maxAge   time.Duration
	now      func() time.Time
	gauge    prometheus.Gauge
	stop     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewRateLimiter creates a limiter and starts its cleanup loop.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	burst := cfg.BurstCapacity
	if burst <= 0 {
		burst = DefaultBurstCapacity
	}
	rate := cfg.SustainedRate
	if rate <= 0 {
		rate = DefaultSustainedRate
	}
	rate = math.Max(rate, MinSustainedRate)
	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	maxAge := cfg.SessionMaxAge
	if maxAge <= 0 {
		maxAge = DefaultSessionMaxAge
	}

	rl := &RateLimiter{
		buckets: make(map[ulid.ULID]*bucket),
		burst:   float64(burst),
		rate:    rate,
		maxAge:  maxAge,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	if cfg.Registerer != nil {
		rl.gauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "azimuth_ratelimiter_sessions",
			Help: "Current number of sessions tracked by the command rate limiter",
		})
		cfg.Registerer.MustRegister(rl.gauge)
	}

	rl.wg.Add(1)
	go rl.cleanupLoop(interval)
	return rl
}

// Allow consumes a token for sessionID. When none is available it returns
// false and the milliseconds until the next token.
func (rl *RateLimiter) Allow(sessionID ulid.ULID) (bool, int64) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[sessionID]
	if !ok {
		b = &bucket{tokens: rl.burst, last: now}
		rl.buckets[sessionID] = b
		rl.updateGauge()
	}
	b.tokens = math.Min(rl.burst, b.tokens+now.Sub(b.last).Seconds()*rl.rate)
	b.last = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	wait := (1 - b.tokens) / rl.rate
	return false, int64(math.Ceil(wait * 1000))
}

// Forget drops a session's bucket, for example on disconnect.
func (rl *RateLimiter) Forget(sessionID ulid.ULID) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.buckets, sessionID)
	rl.updateGauge()
}

// SessionCount returns the number of tracked sessions.
func (rl *RateLimiter) SessionCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// Cleanup forgets sessions idle for longer than maxAge.
func (rl *RateLimiter) Cleanup(maxAge time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-maxAge)
	for id, b := range rl.buckets {
		if b.last.Before(cutoff) {
			delete(rl.buckets, id)
		}
	}
	rl.updateGauge()
}

func (rl *RateLimiter) updateGauge() {
	if rl.gauge != nil {
		rl.gauge.Set(float64(len(rl.buckets)))
	}
}

func (rl *RateLimiter) cleanupLoop(interval time.Duration) {
	defer rl.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.Cleanup(rl.maxAge)
		}
	}
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
	rl.wg.Wait()
}
