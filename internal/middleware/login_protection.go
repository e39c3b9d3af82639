// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MsgTooManyAttempts is returned when a client exceeds the auth rate limit.
const MsgTooManyAttempts = "Too many attempts. Please wait a moment and try again."

// limiterCache keeps one token bucket per key.
type limiterCache[K comparable] struct {
	mu       sync.RWMutex
	limiters map[K]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func newLimiterCache[K comparable](rps float64, burst int) *limiterCache[K] {
	return &limiterCache[K]{
		limiters: make(map[K]*rate.Limiter),
		rate:     rate.Limit(rps),
		burst:    burst,
	}
}

func (lc *limiterCache[K]) get(key K) *rate.Limiter {
	lc.mu.RLock()
	limiter, ok := lc.limiters[key]
	lc.mu.RUnlock()
	if ok {
		return limiter
	}

	lc.mu.Lock()
	defer lc.mu.Unlock()
	if limiter, ok = lc.limiters[key]; ok {
		return limiter
	}
	limiter = rate.NewLimiter(lc.rate, lc.burst)
	lc.limiters[key] = limiter
	return limiter
}

func (lc *limiterCache[K]) clearIfExceeds(maxSize int) bool {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if len(lc.limiters) > maxSize {
		lc.limiters = make(map[K]*rate.Limiter)
		return true
	}
	return false
}

// LoginProtection throttles auth form posts per client IP and locks an email
// address out after repeated failed sign-ins.
type LoginProtection struct {
	ipLimiters *limiterCache[string]

	mu       sync.Mutex
	failures map[string]*failedLogins

	maxFailures   int
	lockout       time.Duration
	attemptWindow time.Duration
	now           func() time.Time
}

type failedLogins struct {
	count       int
	first       time.Time
	lockedUntil time.Time
	lockouts    int
}

// LoginProtectionConfig holds configuration for login protection.
type LoginProtectionConfig struct {
	// IPRateLimit is auth posts per second per IP (default 0.5).
	IPRateLimit float64
	// IPBurst is the burst allowed per IP (default 5).
	IPBurst int
	// MaxFailedAttempts before an address is locked (default 5).
	MaxFailedAttempts int
	// LockoutDuration is the first lockout; each further lockout doubles it (default 15m).
	LockoutDuration time.Duration
	// AttemptWindow is how long failures are counted (default 15m).
	AttemptWindow time.Duration
}

// DefaultLoginProtectionConfig returns the production limits.
func DefaultLoginProtectionConfig() LoginProtectionConfig {
	return LoginProtectionConfig{
		IPRateLimit:       0.5,
		IPBurst:           5,
		MaxFailedAttempts: 5,
		LockoutDuration:   15 * time.Minute,
		AttemptWindow:     15 * time.Minute,
	}
}

// NewLoginProtection creates a LoginProtection. Stale entries are swept until
// ctx is cancelled.
func NewLoginProtection(ctx context.Context, cfg LoginProtectionConfig) *LoginProtection {
	def := DefaultLoginProtectionConfig()
	if cfg.IPRateLimit <= 0 {
		cfg.IPRateLimit = def.IPRateLimit
	}
	if cfg.IPBurst <= 0 {
		cfg.IPBurst = def.IPBurst
	}
	if cfg.MaxFailedAttempts <= 0 {
		cfg.MaxFailedAttempts = def.MaxFailedAttempts
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = def.LockoutDuration
	}
	if cfg.AttemptWindow <= 0 {
		cfg.AttemptWindow = def.AttemptWindow
	}

	lp := &LoginProtection{
		ipLimiters:    newLimiterCache[string](cfg.IPRateLimit, cfg.IPBurst),
		failures:      make(map[string]*failedLogins),
		maxFailures:   cfg.MaxFailedAttempts,
		lockout:       cfg.LockoutDuration,
		attemptWindow: cfg.AttemptWindow,
		now:           time.Now,
	}
	go lp.sweep(ctx)
	return lp
}

// IsLocked reports whether sign-ins for email are currently refused and for how long.
func (lp *LoginProtection) IsLocked(email string) (bool, time.Duration) {
	email = normalizeEmail(email)
	lp.mu.Lock()
	defer lp.mu.Unlock()

	f, ok := lp.failures[email]
	if !ok {
		return false, 0
	}
	now := lp.now()
	if now.Before(f.lockedUntil) {
		return true, f.lockedUntil.Sub(now)
	}
	return false, 0
}

// RecordFailure counts a failed sign-in and reports whether it locked the address.
func (lp *LoginProtection) RecordFailure(email string) (bool, time.Duration) {
	email = normalizeEmail(email)
	lp.mu.Lock()
	defer lp.mu.Unlock()

	now := lp.now()
	f, ok := lp.failures[email]
	if !ok {
		lp.failures[email] = &failedLogins{count: 1, first: now}
		return false, 0
	}
	if now.Sub(f.first) > lp.attemptWindow {
		f.count = 1
		f.first = now
		return false, 0
	}

	f.count++
	if f.count < lp.maxFailures {
		return false, 0
	}

	d := lp.lockout
	for i := 0; i < f.lockouts && d < 24*time.Hour; i++ {
		d *= 2
	}
	d = min(d, 24*time.Hour)

	f.lockedUntil = now.Add(d)
	f.lockouts++
	f.count = 0
	slog.Warn("sign-in locked after failed attempts", "email", email, "lockouts", f.lockouts, "duration", d)
	return true, d
}

// RecordSuccess forgets the failures of email.
func (lp *LoginProtection) RecordSuccess(email string) {
	email = normalizeEmail(email)
	lp.mu.Lock()
	delete(lp.failures, email)
	lp.mu.Unlock()
}

func (lp *LoginProtection) sweep(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			lp.removeStale()
		}
	}
}

func (lp *LoginProtection) removeStale() {
	if lp.ipLimiters.clearIfExceeds(10000) {
		slog.Info("cleared auth rate limiters due to size")
	}

	now := lp.now()
	lp.mu.Lock()
	for email, f := range lp.failures {
		if now.After(f.lockedUntil) && now.Sub(f.first) > lp.attemptWindow {
			delete(lp.failures, email)
		}
	}
	lp.mu.Unlock()
}

// Middleware rate limits POST requests per client IP.
func (lp *LoginProtection) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			ip := clientIP(r)
			if !lp.ipLimiters.get(ip).Allow() {
				slog.Warn("auth rate limit exceeded", "ip", ip, "path", r.URL.Path)
				http.Error(w, MsgTooManyAttempts, http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// clientIP extracts the client IP, preferring proxy headers.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
