package mw

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/MrSnakeDoc/schluessel/internal/logger"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func serve(h http.Handler, remoteAddr, host string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/register", nil)
	req.RemoteAddr = remoteAddr
	if host != "" {
		req.Host = host
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestAllowOnlyCIDRS(t *testing.T) {
	h := AllowOnlyCIDRS([]string{"10.0.0.0/8"}, false, logger.Nop())(okHandler)

	assert.Equal(t, http.StatusOK, serve(h, "10.2.3.4:1234", "").Code)
	assert.Equal(t, http.StatusForbidden, serve(h, "192.168.0.1:1234", "").Code)
}

func TestAllowOnlyCIDRSPassthrough(t *testing.T) {
	h := AllowOnlyCIDRS(nil, false, logger.Nop())(okHandler)

	assert.Equal(t, http.StatusOK, serve(h, "203.0.113.9:1234", "").Code)
}

func TestEnforceHost(t *testing.T) {
	h := EnforceHost([]string{"key.example.com", "*.internal.lan"}, logger.Nop())(okHandler)

	tests := []struct {
		host string
		want int
	}{
		{host: "key.example.com", want: http.StatusOK},
		{host: "KEY.example.com:8080", want: http.StatusOK},
		{host: "gate.internal.lan", want: http.StatusOK},
		{host: "internal.lan", want: http.StatusForbidden},
		{host: "evil.example.com", want: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.want, serve(h, "1.2.3.4:1", tt.host).Code)
		})
	}
}

func TestMatchHostWithPortPattern(t *testing.T) {
	assert.True(t, matchHost("127.0.0.1:8080", "127.0.0.1:8080"))
	assert.False(t, matchHost("127.0.0.1:9090", "127.0.0.1:8080"))
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var unauthorized = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
})

func TestThrottleFailures(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	h := ThrottleFailures(ThrottleConfig{MaxFailures: 2, RefillPerMinute: 60, Now: clock.Now}, logger.Nop())(unauthorized)

	require.Equal(t, http.StatusUnauthorized, serve(h, "1.1.1.1:1", "").Code)
	require.Equal(t, http.StatusUnauthorized, serve(h, "1.1.1.1:1", "").Code)

	w := serve(h, "1.1.1.1:1", "")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	// Other callers have their own budget.
	assert.Equal(t, http.StatusUnauthorized, serve(h, "2.2.2.2:1", "").Code)

	// One failure per second is forgiven.
	clock.Advance(time.Second)
	assert.Equal(t, http.StatusUnauthorized, serve(h, "1.1.1.1:1", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(h, "1.1.1.1:1", "").Code)
}

func TestThrottleIgnoresSuccess(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	h := ThrottleFailures(ThrottleConfig{MaxFailures: 1, RefillPerMinute: 1, Now: clock.Now}, logger.Nop())(okHandler)

	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusOK, serve(h, "1.1.1.1:1", "").Code)
	}
}

func TestThrottleHoldsUnderConcurrentGuesses(t *testing.T) {
	const (
		budget  = 10
		callers = 200
	)
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}

	// Every guess that reaches the handler blocks until all callers have
	// either been admitted or refused, then fails.
	var admitted atomic.Int32
	release := make(chan struct{})
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		admitted.Add(1)
		<-release
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	})
	h := ThrottleFailures(ThrottleConfig{MaxFailures: budget, RefillPerMinute: 1, Now: clock.Now}, logger.Nop())(slow)

	var refused atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if serve(h, "1.1.1.1:1", "").Code == http.StatusTooManyRequests {
				refused.Add(1)
			}
		}()
	}

	require.Eventually(t, func() bool {
		return int(admitted.Load()+refused.Load()) == callers
	}, 5*time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(budget), admitted.Load())
	assert.Equal(t, int32(callers-budget), refused.Load())
}

func TestThrottleRefundsNonFailures(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	status := http.StatusUnauthorized
	h := ThrottleFailures(ThrottleConfig{MaxFailures: 2, RefillPerMinute: 1, Now: clock.Now}, logger.Nop())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(status) }))

	require.Equal(t, http.StatusUnauthorized, serve(h, "1.1.1.1:1", "").Code)

	status = http.StatusBadRequest
	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusBadRequest, serve(h, "1.1.1.1:1", "").Code)
	}

	status = http.StatusUnauthorized
	require.Equal(t, http.StatusUnauthorized, serve(h, "1.1.1.1:1", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(h, "1.1.1.1:1", "").Code)
}

func TestLimiterSweepsIdleBuckets(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	l := newLimiter(ThrottleConfig{MaxFailures: 1, IdleTTL: time.Minute, SweepInterval: time.Second, Now: clock.Now})

	l.reserve("a", clock.Now())
	clock.Advance(2 * time.Minute)
	l.sweepMaybe(clock.Now())

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Empty(t, l.buckets)
}

func TestLogMiddlewareFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := Log(logger.FromZap(zap.New(core)), false)(unauthorized)

	req := httptest.NewRequest(http.MethodPost, "/authenticate", nil)
	req.RemoteAddr = "1.2.3.4:5555"
	req.Header.Set("User-Agent", "lock-agent/1.0")
	h.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)

	fields := entries[0].ContextMap()
	assert.Equal(t, "lock-agent/1.0", fields["user_agent"])
	assert.Equal(t, "1.2.3.4", fields["client_ip"])
	assert.Equal(t, int64(http.StatusUnauthorized), fields["status"])
	assert.Equal(t, "/authenticate", fields["route"])
}

func TestLogMiddlewareKeepsStatus(t *testing.T) {
	h := Log(logger.Nop(), false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))

	w := serve(h, "1.2.3.4:1", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "nope\n", w.Body.String())
}
