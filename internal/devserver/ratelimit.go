package devserver

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ashita-ai/kanshi/internal/model"
)

// pollLimiter is a token bucket per client address. It lets the development
// backend push back on clients that poll faster than a real service would
// tolerate, so callers can exercise their 429 handling.
type pollLimiter struct {
	rate  float64 // tokens per second
	burst float64

	mu      sync.Mutex
	buckets map[string]*tokenBucket
	now     func() time.Time
}

type tokenBucket struct {
	tokens   float64
	lastSeen time.Time
}

// staleBucketAge is how long an idle client keeps its bucket.
const staleBucketAge = 10 * time.Minute

func newPollLimiter(rate float64, burst int) *pollLimiter {
	if burst < 1 {
		burst = 1
	}
	return &pollLimiter{
		rate:    rate,
		burst:   float64(burst),
		buckets: make(map[string]*tokenBucket),
		now:     time.Now,
	}
}

// allow takes a token for key. When none is left it reports how long until
// the next one.
func (l *pollLimiter) allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		l.evict(now)
		l.buckets[key] = &tokenBucket{tokens: l.burst - 1, lastSeen: now}
		return true, 0
	}

	b.tokens = min(l.burst, b.tokens+now.Sub(b.lastSeen).Seconds()*l.rate)
	b.lastSeen = now
	if b.tokens < 1 {
		wait := time.Duration((1 - b.tokens) / l.rate * float64(time.Second))
		return false, wait
	}
	b.tokens--
	return true, 0
}

// evict drops idle buckets. It runs when a new client appears, which bounds
// the map without a background goroutine.
func (l *pollLimiter) evict(now time.Time) {
	cutoff := now.Add(-staleBucketAge)
	for k, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, k)
		}
	}
}

// rateLimitMiddleware rejects requests over the limit with 429 and a
// Retry-After header. A nil limiter passes everything through.
func rateLimitMiddleware(l *pollLimiter, next http.Handler) http.Handler {
	if l == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, wait := l.allow(clientKey(r))
		if !ok {
			secs := int(wait.Seconds() + 0.999)
			w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
			writeError(w, r, http.StatusTooManyRequests, model.ErrCodeRateLimited, "polling too fast")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey is the remote host without its port. X-Forwarded-For is ignored.
func clientKey(r *http.Request) string {
	addr := r.RemoteAddr
	if i := strings.LastIndex(addr, ":"); i != -1 {
		return addr[:i]
	}
	return addr
}
