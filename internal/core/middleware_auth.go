package core

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"airwatch/internal/types"
)

// APIKeyHeader carries the API key. Authorization: Bearer is also accepted.
const APIKeyHeader = "X-API-Key"

// BcryptVerifier checks API keys against a single bcrypt hash.
type BcryptVerifier struct {
	hash []byte
}

// NewBcryptVerifier validates hash and returns a verifier for it.
func NewBcryptVerifier(hash string) (*BcryptVerifier, error) {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("invalid API key hash: %w", err)
	}
	return &BcryptVerifier{hash: []byte(hash)}, nil
}

// Verify implements KeyVerifier.
func (v *BcryptVerifier) Verify(key string) (bool, error) {
	err := bcrypt.CompareHashAndPassword(v.hash, []byte(key))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}

// RequireAPIKey guards write endpoints. A missing key answers 401
// auth_token_missing; a wrong key answers 401 auth_token_invalid and counts
// as a failure for the client IP. With no verifier configured the check is
// skipped.
func (s *Server) RequireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.APIKeys == nil {
			next.ServeHTTP(w, r)
			return
		}

		key := extractAPIKey(r)
		if key == "" {
			Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "API key is required", nil))
			return
		}

		ok, err := s.APIKeys.Verify(key)
		if err != nil {
			s.Logger.ErrorContext(r.Context(), "api key verification failed",
				slog.String("error", err.Error()),
			)
		}
		if !ok {
			ip := extractClientIP(r)
			if s.AuthFailures != nil {
				s.AuthFailures.RecordFailure(ip)
			}
			s.Logger.WarnContext(r.Context(), "authentication failed: api key invalid",
				slog.String("ip", ip),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
			Error(w, r, types.NewAppError(types.ErrCodeAuthTokenInvalid, "Invalid API key", nil))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// extractAPIKey prefers X-API-Key and falls back to a Bearer token.
func extractAPIKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get(APIKeyHeader)); key != "" {
		return key
	}
	return extractBearerToken(r.Header.Get("Authorization"))
}

// extractBearerToken returns the token of a "Bearer <token>" header value;
// the scheme is matched case-insensitively.
func extractBearerToken(authHeader string) string {
	const prefix = "Bearer "
	if len(authHeader) < len(prefix) || !strings.EqualFold(authHeader[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(authHeader[len(prefix):])
}
