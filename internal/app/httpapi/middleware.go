package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

type requestIDKeyType struct{}

var requestIDKey requestIDKeyType

// wrapWithRequestID reads X-Request-ID from the inbound request, or
// generates one, stores it on the context, and echoes it on the response.
func wrapWithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// rateLimiter hands out a per-IP token bucket, creating one lazily on first
// use and never removing it — acceptable for a single-process deployment,
// not for a fleet.
type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func newRateLimiter(capacity int, window time.Duration) *rateLimiter {
	if capacity <= 0 {
		capacity = 120
	}
	if window <= 0 {
		window = time.Minute
	}
	return &rateLimiter{
		limiters: map[string]*rate.Limiter{},
		rps:      rate.Limit(float64(capacity) / window.Seconds()),
		burst:    capacity,
	}
}

func (rl *rateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	lim, ok := rl.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rl.rps, rl.burst)
		rl.limiters[key] = lim
	}
	return lim.Allow()
}

// wrapWithRateLimit denies requests from an IP that has exhausted its token
// bucket with 429 and a Retry-After hint.
func wrapWithRateLimit(rl *rateLimiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientIP(r)
		if !rl.allow(key) {
			w.Header().Set("Retry-After", strconv.Itoa(1))
			writeError(w, http.StatusTooManyRequests, errRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}
