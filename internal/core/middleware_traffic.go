package core

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"airwatch/internal/types"
)

// rateLimitWindow is the fixed window API_RATE_LIMIT_PER_MINUTE applies to.
const rateLimitWindow = time.Minute

// sweepThreshold is the number of tracked keys above which expired windows
// are evicted on the next check.
const sweepThreshold = 10000

// RateLimit enforces the per-client-IP request budget. Every counted
// response carries X-RateLimit-* headers; rejected requests also carry
// Retry-After and a 429 rate_limit_exceeded envelope.
//
// Store errors fail open.
func (s *Server) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit := s.rateLimitPerMinute()
		if s.RateLimitStore == nil || limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		ip := extractClientIP(r)
		result, err := s.RateLimitStore.IncrementAndCheck(r.Context(), ip, limit, rateLimitWindow)
		if err != nil {
			s.Logger.ErrorContext(r.Context(), "rate limit store error",
				slog.String("ip", ip),
				slog.String("error", err.Error()),
			)
			next.ServeHTTP(w, r)
			return
		}

		setRateLimitHeaders(w, limit, result)

		if !result.Allowed {
			s.Logger.WarnContext(r.Context(), "rate limit exceeded",
				slog.String("ip", ip),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)

			retryAfter := int(time.Until(result.ResetAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

			Error(w, r, types.NewAppError(types.ErrCodeRateLimitExceeded,
				"Rate limit exceeded. Please retry after the reset time.", nil))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) rateLimitPerMinute() int {
	if s.Config == nil {
		return 0
	}
	return s.Config.Server.RateLimitPerMinute
}

func setRateLimitHeaders(w http.ResponseWriter, limit int, result RateLimitResult) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

type rateWindow struct {
	count   int
	resetAt time.Time
}

// MemoryRateLimitStore is a process-local fixed-window counter.
type MemoryRateLimitStore struct {
	now func() time.Time

	mu      sync.Mutex
	windows map[string]*rateWindow
}

// NewMemoryRateLimitStore creates an empty store.
func NewMemoryRateLimitStore() *MemoryRateLimitStore {
	return &MemoryRateLimitStore{
		now:     time.Now,
		windows: make(map[string]*rateWindow),
	}
}

// IncrementAndCheck implements RateLimitStore. Requests over the limit are
// still counted, so Remaining stays at zero until the window resets.
func (m *MemoryRateLimitStore) IncrementAndCheck(_ context.Context, key string, limit int, window time.Duration) (RateLimitResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if len(m.windows) > sweepThreshold {
		for k, win := range m.windows {
			if !now.Before(win.resetAt) {
				delete(m.windows, k)
			}
		}
	}

	win, ok := m.windows[key]
	if !ok || !now.Before(win.resetAt) {
		win = &rateWindow{resetAt: now.Add(window)}
		m.windows[key] = win
	}
	win.count++

	return RateLimitResult{
		Allowed:   win.count <= limit,
		Remaining: max(limit-win.count, 0),
		ResetAt:   win.resetAt,
	}, nil
}
