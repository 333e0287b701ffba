package mw

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/MrSnakeDoc/schluessel/internal/logger"
	"github.com/MrSnakeDoc/schluessel/internal/utils"
)

// ThrottleConfig sizes the per-IP failure budget of ThrottleFailures.
type ThrottleConfig struct {
	MaxFailures     int // failed attempts allowed back to back
	RefillPerMinute int // failed attempts forgiven per minute
	MaxEntries      int
	SweepInterval   time.Duration
	IdleTTL         time.Duration
	TrustProxy      bool             // resolve IP from proxy headers when true
	Now             func() time.Time // defaults to time.Now
}

type bucket struct {
	mu       sync.Mutex
	tokens   float64
	lastRef  time.Time
	lastSeen time.Time
}

type limiter struct {
	cfg       ThrottleConfig
	rate      float64
	capacity  float64
	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

func newLimiter(cfg ThrottleConfig) *limiter {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 15 * time.Minute
	}
	if cfg.MaxFailures < 1 {
		cfg.MaxFailures = 1
	}
	if cfg.RefillPerMinute < 1 {
		cfg.RefillPerMinute = 1
	}
	return &limiter{
		cfg:       cfg,
		rate:      float64(cfg.RefillPerMinute) / 60.0,
		capacity:  float64(cfg.MaxFailures),
		buckets:   make(map[string]*bucket, 1024),
		lastSweep: cfg.Now(),
	}
}

func (l *limiter) getBucket(key string, now time.Time) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cfg.MaxEntries > 0 && len(l.buckets) >= l.cfg.MaxEntries {
		l.sweepLocked(now)
	}
	b := l.buckets[key]
	if b == nil {
		b = &bucket{tokens: l.capacity, lastRef: now, lastSeen: now}
		l.buckets[key] = b
	}
	return b
}

// refill must be called with b.mu held.
func (l *limiter) refill(b *bucket, now time.Time) {
	if elapsed := now.Sub(b.lastRef).Seconds(); elapsed > 0 {
		b.tokens = math.Min(l.capacity, b.tokens+elapsed*l.rate)
		b.lastRef = now
	}
	b.lastSeen = now
}

// reserve takes one attempt from key's budget in a single step, so
// concurrent requests cannot all pass on the same token. When the budget is
// empty it reports how many seconds until the next attempt is allowed.
func (l *limiter) reserve(key string, now time.Time) (ok bool, retryAfterSec int) {
	b := l.getBucket(key, now)

	b.mu.Lock()
	defer b.mu.Unlock()
	l.refill(b, now)

	if b.tokens >= 1.0 {
		b.tokens -= 1.0
		return true, 0
	}
	sec := int(math.Ceil((1.0 - b.tokens) / l.rate))
	if sec < 1 {
		sec = 1
	}
	return false, sec
}

// refund returns a reserved attempt that did not fail.
func (l *limiter) refund(key string, now time.Time) {
	b := l.getBucket(key, now)

	b.mu.Lock()
	defer b.mu.Unlock()
	l.refill(b, now)
	b.tokens = math.Min(l.capacity, b.tokens+1.0)
}

func (l *limiter) sweepLocked(now time.Time) {
	ttl := l.cfg.IdleTTL
	for ip, b := range l.buckets {
		b.mu.Lock()
		idle := now.Sub(b.lastSeen)
		b.mu.Unlock()
		if idle > ttl {
			delete(l.buckets, ip)
		}
	}
	l.lastSweep = now
}

func (l *limiter) sweepMaybe(now time.Time) {
	l.mu.Lock()
	if now.Sub(l.lastSweep) >= l.cfg.SweepInterval {
		l.sweepLocked(now)
	}
	l.mu.Unlock()
}

// ThrottleFailures limits failed password attempts per client IP. Every
// attempt reserves one unit of the budget before the handler runs; the unit is
// refunded unless the handler answered 401. A caller who knows the password is
// therefore never slowed down until they have already failed repeatedly, while
// parallel guesses cannot outrun the budget. A caller with no budget left gets
// 429 with Retry-After.
func ThrottleFailures(cfg ThrottleConfig, log logger.Logger) func(http.Handler) http.Handler {
	l := newLimiter(cfg)
	limitStr := strconv.Itoa(l.cfg.MaxFailures)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := l.cfg.Now()
			l.sweepMaybe(now)

			key := utils.ClientIP(r, l.cfg.TrustProxy)

			w.Header().Set("X-RateLimit-Limit", limitStr)
			if ok, retry := l.reserve(key, now); !ok {
				log.Warn("authentication throttled",
					logger.String("ip", key),
					logger.Int("retry_after", retry))
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				w.Header().Set("X-RateLimit-Remaining", "0")
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}

			ww := &statusWriter{ResponseWriter: w}
			defer func() {
				if ww.code() != http.StatusUnauthorized {
					l.refund(key, l.cfg.Now())
				}
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
