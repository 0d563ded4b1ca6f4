package canvas

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITER
// Canvas throttles per token with a leaky bucket and signals it with 403/429
// responses. The client paces itself and backs off after throttling.
// ══════════════════════════════════════════════════════════════════════════════

// RateLimiterConfig contains configuration for the rate limiter.
type RateLimiterConfig struct {
	// RequestsPerSecond is the sustained request rate.
	RequestsPerSecond float64

	// BurstSize is the maximum number of requests allowed in a burst.
	BurstSize int

	// CooldownFactor multiplies the rate after a throttling response.
	CooldownFactor float64

	// RecoveryPeriod after which the original rate is restored.
	RecoveryPeriod time.Duration
}

// DefaultRateLimiterConfig returns defaults that stay well below the Canvas
// quota of a single access token.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: 10,
		BurstSize:         15,
		CooldownFactor:    0.5,
		RecoveryPeriod:    time.Minute,
	}
}

// RateLimiter wraps a token bucket with adaptive slow-down.
type RateLimiter struct {
	limiter  *rate.Limiter
	config   RateLimiterConfig
	mu       sync.Mutex
	hits     int
	lastHit  time.Time
	blockTil time.Time
}

// NewRateLimiter creates a new RateLimiter.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = DefaultRateLimiterConfig().RequestsPerSecond
	}
	if config.BurstSize <= 0 {
		config.BurstSize = 1
	}
	if config.CooldownFactor <= 0 || config.CooldownFactor > 1 {
		config.CooldownFactor = 0.5
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.BurstSize),
		config:  config,
	}
}

// Wait blocks until a request may be sent or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	rl.mu.Lock()
	now := time.Now()
	if rl.hits > 0 && rl.config.RecoveryPeriod > 0 && now.Sub(rl.lastHit) > rl.config.RecoveryPeriod {
		rl.hits = 0
		rl.limiter.SetLimit(rate.Limit(rl.config.RequestsPerSecond))
	}
	pause := rl.blockTil.Sub(now)
	rl.mu.Unlock()

	if pause > 0 {
		timer := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return rl.limiter.Wait(ctx)
}

// RecordRateLimitHit slows the limiter down and blocks new requests for wait.
func (rl *RateLimiter) RecordRateLimitHit(wait time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.hits++
	rl.lastHit = time.Now()
	if until := rl.lastHit.Add(wait); until.After(rl.blockTil) {
		rl.blockTil = until
	}

	current := float64(rl.limiter.Limit())
	floor := rl.config.RequestsPerSecond / 16
	next := current * rl.config.CooldownFactor
	if next < floor {
		next = floor
	}
	rl.limiter.SetLimit(rate.Limit(next))
}

// RateLimiterStatus is a point-in-time view of the limiter.
type RateLimiterStatus struct {
	Limit  float64 `json:"limit"`
	Burst  int     `json:"burst"`
	Tokens float64 `json:"tokens"`
	Hits   int     `json:"hits"`
}

// Status returns the current status of the rate limiter.
func (rl *RateLimiter) Status() RateLimiterStatus {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return RateLimiterStatus{
		Limit:  float64(rl.limiter.Limit()),
		Burst:  rl.limiter.Burst(),
		Tokens: rl.limiter.Tokens(),
		Hits:   rl.hits,
	}
}
