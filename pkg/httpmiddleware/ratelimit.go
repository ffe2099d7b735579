package httpmiddleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// RateLimitConfig configures a Limiter.
type RateLimitConfig struct {
	// Max is the request budget per window of a client presenting Header.
	Max int
	// AnonymousMax is the budget per window of a client IP that sent no
	// Header. Zero means Max.
	AnonymousMax int
	// Window is the length of one counting window.
	Window time.Duration
	// Header identifies keyed clients, usually the API key header. Empty
	// keys every request by client IP.
	Header string
}

// client is the identity a budget is charged to.
type client struct {
	id    string
	limit int
	keyed bool
}

// window counts the requests of one client in the current fixed window and
// the one before it. The estimate over the trailing Window weights the
// previous count by how much of it still overlaps.
type window struct {
	start time.Time
	prev  float64
	curr  float64
}

func (w *window) advance(now time.Time, size time.Duration) {
	switch elapsed := now.Sub(w.start); {
	case elapsed >= 2*size:
		w.prev = 0
	case elapsed >= size:
		w.prev = w.curr
	default:
		return
	}
	w.curr = 0
	w.start = now.Truncate(size)
}

func (w *window) estimate(now time.Time, size time.Duration) float64 {
	overlap := 1 - now.Sub(w.start).Seconds()/size.Seconds()
	return w.prev*max(overlap, 0) + w.curr
}

// verdict is the outcome of charging one request.
type verdict struct {
	limit     int
	remaining int
	reset     time.Time
	allowed   bool
}

// Limiter enforces per-client sliding window budgets.
type Limiter struct {
	cfg RateLimitConfig

	mu      sync.Mutex
	windows map[string]*window
}

// NewLimiter returns a Limiter for cfg.
func NewLimiter(cfg RateLimitConfig) *Limiter {
	if cfg.AnonymousMax <= 0 {
		cfg.AnonymousMax = cfg.Max
	}
	return &Limiter{cfg: cfg, windows: make(map[string]*window)}
}

// identify resolves the client a request is charged to. API keys are
// digested so raw secrets never sit in the map.
func (l *Limiter) identify(r *http.Request) client {
	if l.cfg.Header != "" {
		if v := r.Header.Get(l.cfg.Header); v != "" {
			sum := sha256.Sum256([]byte(v))
			return client{id: "key:" + hex.EncodeToString(sum[:8]), limit: l.cfg.Max, keyed: true}
		}
	}
	return client{id: "ip:" + clientIP(r), limit: l.cfg.AnonymousMax}
}

func (l *Limiter) take(c client, now time.Time) verdict {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[c.id]
	if !ok {
		w = &window{start: now.Truncate(l.cfg.Window)}
		l.windows[c.id] = w
	}
	w.advance(now, l.cfg.Window)

	v := verdict{limit: c.limit, reset: w.start.Add(l.cfg.Window)}
	used := w.estimate(now, l.cfg.Window)
	if used >= float64(c.limit) {
		return v
	}
	w.curr++
	v.allowed = true
	v.remaining = max(int(float64(c.limit)-used-1), 0)
	return v
}

// evict drops clients idle for two windows.
func (l *Limiter) evict(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	var n int
	for id, w := range l.windows {
		if now.Sub(w.start) >= 2*l.cfg.Window {
			delete(l.windows, id)
			n++
		}
	}
	return n
}

// Run evicts idle clients every two windows until ctx is done.
func (l *Limiter) Run(ctx context.Context) {
	ticker := time.NewTicker(2 * l.cfg.Window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := l.evict(now); n > 0 {
				zctx.From(ctx).Debug("Evicted idle rate limit clients", zap.Int("count", n))
			}
		}
	}
}

// Middleware charges every request to its client. Responses carry
// X-RateLimit-Limit, X-RateLimit-Remaining and X-RateLimit-Reset; rejected
// ones get 429 with Retry-After.
func (l *Limiter) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c := l.identify(r)
			v := l.take(c, time.Now())

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(v.limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(v.remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(v.reset.Unix(), 10))

			if !v.allowed {
				wait := max(time.Until(v.reset), 0)
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				zctx.From(r.Context()).Debug("Rate limited", zap.Bool("keyed", c.keyed))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit is a shorthand for NewLimiter(cfg).Middleware() without
// eviction.
func RateLimit(cfg RateLimitConfig) Middleware {
	return NewLimiter(cfg).Middleware()
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then
// RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
