package core

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"airwatch/internal/types"
)

// authFailureWindow is how long a failed API key attempt counts against
// the client IP.
const authFailureWindow = 15 * time.Minute

// FailureTracker counts failed API key attempts per client IP over a sliding
// window. An IP reaching the limit is blocked until enough of its failures
// age out of the window.
type FailureTracker struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu       sync.Mutex
	failures map[string][]time.Time
}

// NewFailureTracker creates a tracker that blocks an IP after limit failures
// within window.
func NewFailureTracker(limit int, window time.Duration) *FailureTracker {
	return &FailureTracker{
		limit:    limit,
		window:   window,
		now:      time.Now,
		failures: make(map[string][]time.Time),
	}
}

// RecordFailure registers one failed attempt from ip.
func (t *FailureTracker) RecordFailure(ip string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.failures[ip] = append(t.prune(ip, now), now)
}

// IsBlocked reports whether ip has reached the failure limit within the
// window.
func (t *FailureTracker) IsBlocked(ip string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	recent := t.prune(ip, t.now())
	if len(recent) == 0 {
		delete(t.failures, ip)
		return false
	}
	t.failures[ip] = recent
	return len(recent) >= t.limit
}

// prune drops failures older than the window. Callers hold t.mu.
func (t *FailureTracker) prune(ip string, now time.Time) []time.Time {
	cutoff := now.Add(-t.window)
	recent := t.failures[ip][:0]
	for _, at := range t.failures[ip] {
		if at.After(cutoff) {
			recent = append(recent, at)
		}
	}
	return recent
}

// IPSecurityMiddleware refuses requests from IPs blocked by s.AuthFailures
// with 403 forbidden_ip_blocked. It is a pass-through when blocking is
// disabled.
func (s *Server) IPSecurityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.AuthFailures == nil {
			next.ServeHTTP(w, r)
			return
		}

		ip := extractClientIP(r)
		if s.AuthFailures.IsBlocked(ip) {
			s.Logger.WarnContext(r.Context(), "blocked request from IP",
				slog.String("ip", ip),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
			Error(w, r, types.NewAppError(types.ErrCodeForbiddenIPBlocked, "Access denied", nil))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// extractClientIP returns the first X-Forwarded-For entry, or RemoteAddr
// without its port.
func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
