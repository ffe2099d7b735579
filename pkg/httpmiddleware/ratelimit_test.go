package httpmiddleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

type rig struct {
	h http.Handler
}

func (p rig) do(key, addr, xff string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.RemoteAddr = addr
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	if xff != "" {
		req.Header.Set("X-Forwarded-For", xff)
	}
	w := httptest.NewRecorder()
	p.h.ServeHTTP(w, req)
	return w
}

func newRig(cfg RateLimitConfig) rig {
	return rig{h: RateLimit(cfg)(okHandler())}
}

func TestRateLimit_Budget(t *testing.T) {
	p := newRig(RateLimitConfig{Max: 3, Window: time.Minute})

	for i := range 3 {
		w := p.do("", "192.168.1.1:12345", "")
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}

	w := p.do("", "192.168.1.1:12345", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	code, msg := decodeError(t, w.Body.Bytes())
	assert.Equal(t, 429, code)
	assert.Equal(t, "rate limit exceeded", msg)
}

func TestRateLimit_RemainingCountsDown(t *testing.T) {
	p := newRig(RateLimitConfig{Max: 3, Window: time.Minute})

	var got []string
	for range 3 {
		got = append(got, p.do("", "10.0.0.9:1", "").Header().Get("X-RateLimit-Remaining"))
	}
	assert.Equal(t, []string{"2", "1", "0"}, got)
}

func TestRateLimit_ClientsAreIndependent(t *testing.T) {
	p := newRig(RateLimitConfig{Max: 1, Window: time.Minute})

	assert.Equal(t, http.StatusOK, p.do("", "10.0.0.1:1234", "").Code)
	assert.Equal(t, http.StatusOK, p.do("", "10.0.0.2:1234", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, p.do("", "10.0.0.1:5678", "").Code)
}

func TestRateLimit_KeyedClients(t *testing.T) {
	p := newRig(RateLimitConfig{
		Max:          2,
		AnonymousMax: 1,
		Window:       time.Minute,
		Header:       "X-API-Key",
	})

	// One key shares its budget across addresses.
	assert.Equal(t, http.StatusOK, p.do("key-a", "10.0.0.1:1", "").Code)
	w := p.do("key-a", "10.0.0.2:1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, http.StatusTooManyRequests, p.do("key-a", "10.0.0.3:1", "").Code)

	assert.Equal(t, http.StatusOK, p.do("key-b", "10.0.0.1:1", "").Code)

	// Requests without a key fall back to the smaller per-IP budget.
	w = p.do("", "10.0.0.1:1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, http.StatusTooManyRequests, p.do("", "10.0.0.1:2", "").Code)
}

func TestRateLimit_XForwardedFor(t *testing.T) {
	p := newRig(RateLimitConfig{Max: 1, Window: time.Minute})

	assert.Equal(t, http.StatusOK, p.do("", "192.168.1.1:4444", "203.0.113.50, 70.41.3.18").Code)
	assert.Equal(t, http.StatusTooManyRequests, p.do("", "192.168.1.2:5555", "203.0.113.50").Code)
}

func TestWindow_Slides(t *testing.T) {
	size := time.Minute
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	w := &window{start: start, curr: 10}

	// Half way into the next window half of the previous count remains.
	now := start.Add(size + size/2)
	w.advance(now, size)
	assert.Equal(t, start.Add(size), w.start)
	assert.InDelta(t, 5.0, w.estimate(now, size), 0.001)

	// Two idle windows forget everything.
	now = start.Add(4 * size)
	w.advance(now, size)
	assert.Zero(t, w.estimate(now, size))
}

func TestLimiter_Evict(t *testing.T) {
	l := NewLimiter(RateLimitConfig{Max: 5, Window: time.Minute})
	now := time.Now()
	l.take(client{id: "ip:a", limit: 5}, now.Add(-3*time.Minute))
	l.take(client{id: "ip:b", limit: 5}, now)

	assert.Equal(t, 1, l.evict(now))
	assert.Len(t, l.windows, 1)
	assert.Contains(t, l.windows, "ip:b")
}

func TestLimiter_RunStops(t *testing.T) {
	l := NewLimiter(RateLimitConfig{Max: 5, Window: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
