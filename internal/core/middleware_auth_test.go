package core

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"airwatch/internal/types"
)

func TestBcryptVerifier(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("node-gateway-key"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("generate hash: %v", err)
	}
	v, err := NewBcryptVerifier(string(hash))
	if err != nil {
		t.Fatalf("NewBcryptVerifier: %v", err)
	}

	if ok, err := v.Verify("node-gateway-key"); !ok || err != nil {
		t.Errorf("expected match, got %v, %v", ok, err)
	}
	if ok, err := v.Verify("wrong"); ok || err != nil {
		t.Errorf("expected mismatch without error, got %v, %v", ok, err)
	}
}

func TestNewBcryptVerifier_RejectsMalformedHash(t *testing.T) {
	if _, err := NewBcryptVerifier("not-a-bcrypt-hash"); err == nil {
		t.Error("expected error for malformed hash")
	}
}

func serveWithAPIKey(srv *Server, req *http.Request) (*httptest.ResponseRecorder, bool) {
	called := false
	h := srv.RequireAPIKey(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, called
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body APIErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error.Code
}

func TestRequireAPIKey_ValidKeyHeader(t *testing.T) {
	srv := newBareServer()
	srv.APIKeys = &MockKeyVerifier{Key: "k1"}

	req := httptest.NewRequest(http.MethodPost, "/v1/push-tokens", nil)
	req.Header.Set(APIKeyHeader, "k1")
	rec, called := serveWithAPIKey(srv, req)

	if !called || rec.Code != http.StatusNoContent {
		t.Errorf("expected request to pass, got %d", rec.Code)
	}
}

func TestRequireAPIKey_BearerFallback(t *testing.T) {
	srv := newBareServer()
	verifier := &MockKeyVerifier{Key: "k1"}
	srv.APIKeys = verifier

	req := httptest.NewRequest(http.MethodPost, "/v1/readings", nil)
	req.Header.Set("Authorization", "bearer k1")
	_, called := serveWithAPIKey(srv, req)

	if !called {
		t.Error("expected bearer token to be accepted")
	}
	if len(verifier.Calls) != 1 || verifier.Calls[0] != "k1" {
		t.Errorf("unexpected verifier calls %v", verifier.Calls)
	}
}

func TestRequireAPIKey_Missing(t *testing.T) {
	srv := newBareServer()
	srv.APIKeys = &MockKeyVerifier{Key: "k1"}
	srv.AuthFailures = NewFailureTracker(1, time.Minute)

	req := httptest.NewRequest(http.MethodPost, "/v1/readings", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	req.RemoteAddr = "192.0.2.1:1000"
	rec, called := serveWithAPIKey(srv, req)

	if called {
		t.Error("request without key reached the handler")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != string(types.ErrCodeAuthTokenMissing) {
		t.Errorf("unexpected code %q", code)
	}
	if srv.AuthFailures.IsBlocked("192.0.2.1") {
		t.Error("a missing key should not count as a failure")
	}
}

func TestRequireAPIKey_InvalidRecordsFailureThenBlocks(t *testing.T) {
	srv := newBareServer()
	srv.APIKeys = &MockKeyVerifier{Key: "k1"}
	srv.AuthFailures = NewFailureTracker(2, 15*time.Minute)

	chain := srv.IPSecurityMiddleware(srv.RequireAPIKey(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	send := func(key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/readings", nil)
		req.RemoteAddr = "192.0.2.50:1000"
		req.Header.Set(APIKeyHeader, key)
		rec := httptest.NewRecorder()
		chain.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		rec := send("bad")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i+1, rec.Code)
		}
		if code := errorCode(t, rec); code != string(types.ErrCodeAuthTokenInvalid) {
			t.Fatalf("attempt %d: unexpected code %q", i+1, code)
		}
	}

	rec := send("k1")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected blocked IP to get 403 even with the right key, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != string(types.ErrCodeForbiddenIPBlocked) {
		t.Errorf("unexpected code %q", code)
	}
}

func TestRequireAPIKey_VerifierErrorIsInvalid(t *testing.T) {
	srv := newBareServer()
	srv.APIKeys = &MockKeyVerifier{Err: errors.New("hash corrupted")}

	req := httptest.NewRequest(http.MethodPost, "/v1/readings", nil)
	req.Header.Set(APIKeyHeader, "k1")
	rec, called := serveWithAPIKey(srv, req)

	if called || rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d (called=%v)", rec.Code, called)
	}
}

func TestRequireAPIKey_DisabledWithoutVerifier(t *testing.T) {
	srv := newBareServer()

	_, called := serveWithAPIKey(srv, httptest.NewRequest(http.MethodPost, "/v1/readings", nil))

	if !called {
		t.Error("expected pass-through when no verifier is configured")
	}
}

func TestExtractBearerToken(t *testing.T) {
	tests := map[string]string{
		"Bearer abc":    "abc",
		"BEARER  abc  ": "abc",
		"Basic abc":     "",
		"Bearer":        "",
		"":              "",
	}
	for in, want := range tests {
		if got := extractBearerToken(in); got != want {
			t.Errorf("extractBearerToken(%q) = %q, want %q", in, got, want)
		}
	}
}
