package core

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/gzhttp"

	"airwatch/internal/types"
)

// defaultRequestTimeout applies when the configuration leaves
// API_REQUEST_TIMEOUT unset.
const defaultRequestTimeout = 15 * time.Second

// defaultRedactedHeaders lists header names whose values are masked in
// request logs.
var defaultRedactedHeaders = []string{
	"Authorization",
	"X-API-Key",
	"Cookie",
}

// MountRoutes registers the global middleware chain, the /v1 group and the
// top-level operational routes.
func (s *Server) MountRoutes() {
	s.registerGlobalMiddleware()

	s.router.Route("/v1", s.mountV1)

	s.router.Get("/health", s.HandleHealth)
	if s.MetricsHandler != nil {
		s.router.Method(http.MethodGet, "/metrics", s.MetricsHandler)
	}
}

// registerGlobalMiddleware applies middleware in strict order.
//
//  1. Recoverer       - outermost so every panic becomes a 500 envelope.
//  2. ContextTimeout  - request deadline.
//  3. RequestID       - correlation ID for logs and error bodies.
//  4. SecurityHeaders
//  5. RequestLogger   - structured access log with redacted headers.
//  6. CORS
//  7. Gzip            - compresses large history and comparison payloads.
//  8. Metrics         - latency by route pattern.
//  9. IPSecurity      - refuses IPs with repeated API key failures.
//  10. RateLimit      - per-IP fixed window.
func (s *Server) registerGlobalMiddleware() {
	s.router.Use(s.Recoverer)
	s.router.Use(ContextTimeoutMiddleware(s.requestTimeout()))
	s.router.Use(RequestIDMiddleware)
	s.router.Use(s.SecurityHeadersMiddleware)
	s.router.Use(RequestLogger(s.Logger, s.redactedHeaders()))
	s.router.Use(NewCORSMiddleware(s.corsAllowedOrigins()))
	s.router.Use(GzipMiddleware)
	s.router.Use(s.MetricsMiddleware)
	s.router.Use(s.IPSecurityMiddleware)
	s.router.Use(s.RateLimit)
}

// mountV1 registers the domain handlers supplied by the entry point.
func (s *Server) mountV1(r chi.Router) {
	for _, registrar := range s.V1RouteRegistrars {
		registrar(r)
	}
}

func (s *Server) requestTimeout() time.Duration {
	if s.Config != nil && s.Config.Server.RequestTimeout > 0 {
		return s.Config.Server.RequestTimeout
	}
	return defaultRequestTimeout
}

func (s *Server) redactedHeaders() []string {
	return defaultRedactedHeaders
}

func (s *Server) corsAllowedOrigins() []string {
	if s.Config != nil && len(s.Config.Server.CorsAllowedOrigins) > 0 {
		return s.Config.Server.CorsAllowedOrigins
	}
	return []string{"*"}
}

// ContextTimeoutMiddleware sets a deadline on the request context.
// Handlers observe the deadline through the storage calls they make.
func ContextTimeoutMiddleware(duration time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), duration)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDMiddleware propagates the caller's X-Request-Id or generates a
// new one, stores it via types.WithRequestID and echoes it in the response.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = generateRequestID()
		}

		ctx := types.WithRequestID(r.Context(), requestID)
		w.Header().Set("X-Request-Id", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// generateRequestID returns 16 random bytes as 32 hex characters.
func generateRequestID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "fallback-" + hex.EncodeToString([]byte(time.Now().String()))
	}
	return hex.EncodeToString(b)
}

// GzipMiddleware compresses responses for clients that accept gzip.
// Small bodies are passed through uncompressed.
func GzipMiddleware(next http.Handler) http.Handler {
	return gzhttp.GzipHandler(next)
}
