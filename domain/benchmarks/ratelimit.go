package benchmarks

import (
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/mkoskinen/benchcom/internal/config"
	"github.com/mkoskinen/benchcom/pkg/apperror"
)

const limiterIdleTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// SubmitRateLimiter throttles submissions per client address.
type SubmitRateLimiter struct {
	mu        sync.RWMutex
	limiters  map[string]*clientLimiter
	limit     rate.Limit
	burst     int
	enabled   bool
	now       func() time.Time
	lastPrune time.Time
}

// NewSubmitRateLimiter creates a limiter from configuration. A non-positive
// per-minute rate disables throttling.
func NewSubmitRateLimiter(cfg *config.Config) *SubmitRateLimiter {
	rl := &SubmitRateLimiter{
		limiters: make(map[string]*clientLimiter),
		enabled:  cfg.RateLimit.Enabled(),
		burst:    cfg.RateLimit.SubmitBurst,
		now:      time.Now,
	}
	if rl.enabled {
		rl.limit = rate.Every(time.Minute / time.Duration(cfg.RateLimit.SubmitPerMinute))
	}
	if rl.burst <= 0 {
		rl.burst = 1
	}
	return rl
}

// Allow reports whether the client identified by key may submit now.
func (m *SubmitRateLimiter) Allow(key string) bool {
	if !m.enabled {
		return true
	}
	return m.getLimiter(key).AllowN(m.now(), 1)
}

func (m *SubmitRateLimiter) getLimiter(key string) *rate.Limiter {
	now := m.now()

	m.mu.RLock()
	cl, exists := m.limiters[key]
	m.mu.RUnlock()
	if exists {
		m.mu.Lock()
		cl.lastSeen = now
		m.mu.Unlock()
		return cl.limiter
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if cl, exists = m.limiters[key]; exists {
		cl.lastSeen = now
		return cl.limiter
	}
	m.pruneLocked(now)

	cl = &clientLimiter{limiter: rate.NewLimiter(m.limit, m.burst), lastSeen: now}
	m.limiters[key] = cl
	return cl.limiter
}

// pruneLocked drops limiters idle for longer than limiterIdleTTL. Caller
// holds the write lock.
func (m *SubmitRateLimiter) pruneLocked(now time.Time) {
	if now.Sub(m.lastPrune) < limiterIdleTTL {
		return
	}
	m.lastPrune = now
	for key, cl := range m.limiters {
		if now.Sub(cl.lastSeen) > limiterIdleTTL {
			delete(m.limiters, key)
		}
	}
}

// Middleware rejects over-limit submissions with 429.
func (m *SubmitRateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !m.Allow(submitterIP(c.Request())) {
				SubmissionsRejected.WithLabelValues("rate_limited").Inc()
				return apperror.ErrRateLimited.WithMessage("Too many submissions, slow down")
			}
			return next(c)
		}
	}
}
