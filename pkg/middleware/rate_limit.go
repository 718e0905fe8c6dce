package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/pranaytiwariii/SlotSwapper/pkg/logger"
)

// UserRateLimiter applies a sliding-window request limit per resolved
// user id. Unresolved requests are not limited here; the Identity
// middleware rejects them first.
type UserRateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	log      *logger.Logger
	stopCh   chan struct{}
}

func NewUserRateLimiter(limit int, window time.Duration, log *logger.Logger) *UserRateLimiter {
	limiter := &UserRateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		log:      log,
		stopCh:   make(chan struct{}),
	}

	go limiter.cleanup()

	return limiter
}

func (rl *UserRateLimiter) cleanup() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			for userID, timestamps := range rl.requests {
				if len(timestamps) == 0 || time.Since(timestamps[len(timestamps)-1]) > rl.window {
					delete(rl.requests, userID)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *UserRateLimiter) Stop() {
	close(rl.stopCh)
}

func (rl *UserRateLimiter) Allow(userID string) bool {
	if userID == "" {
		return true
	}

	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	valid := rl.requests[userID][:0]
	for _, ts := range rl.requests[userID] {
		if now.Sub(ts) < rl.window {
			valid = append(valid, ts)
		}
	}

	if len(valid) >= rl.limit {
		rl.requests[userID] = valid
		return false
	}

	rl.requests[userID] = append(valid, now)
	return true
}

func UserRateLimit(limiter *UserRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := UserIDFromContext(r.Context())

			if !limiter.Allow(userID) {
				limiter.log.Warn("Rate limit exceeded",
					"request_id", requestIDFrom(r),
					"user_id", userID,
					"path", r.URL.Path,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"Too many requests"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
