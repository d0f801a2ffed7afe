package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/erp/cvr/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// TenantRateLimiter keeps one token bucket per tenant
type TenantRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*tenantLimiter
	limit    rate.Limit
	burst    int
	idle     time.Duration
	now      func() time.Time
}

type tenantLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewTenantRateLimiter allows perMinute requests per tenant with the given burst
func NewTenantRateLimiter(perMinute float64, burst int) *TenantRateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &TenantRateLimiter{
		limiters: make(map[string]*tenantLimiter),
		limit:    rate.Limit(perMinute / 60),
		burst:    burst,
		idle:     10 * time.Minute,
		now:      time.Now,
	}
}

// Allow consumes one token from the tenant's bucket
func (l *TenantRateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entry, ok := l.limiters[key]
	if !ok {
		entry = &tenantLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = entry
	}
	entry.lastSeen = now
	l.evict(now)
	return entry.limiter.AllowN(now, 1)
}

// evict drops buckets idle long enough to have refilled. Caller holds mu.
func (l *TenantRateLimiter) evict(now time.Time) {
	for key, e := range l.limiters {
		if now.Sub(e.lastSeen) > l.idle {
			delete(l.limiters, key)
		}
	}
}

// RateLimit throttles requests per tenant. It must run after Tenant.
func RateLimit(limiter *TenantRateLimiter) gin.HandlerFunc {
	if limiter == nil || limiter.limit <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	limit := strconv.Itoa(limiter.burst)
	return func(c *gin.Context) {
		key := c.GetString(TenantIDKey)
		if key == "" {
			key = c.ClientIP()
		}
		c.Header("X-RateLimit-Limit", limit)
		if !limiter.Allow(key) {
			abortWithError(c, dto.ErrCodeRateLimited, "Too many requests. Please try again later.")
			return
		}
		c.Next()
	}
}
