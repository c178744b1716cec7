package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"airwatch/internal/types"
)

// --- Mock Registry ---

type mockTokenRegistry struct {
	mu         sync.Mutex
	registered map[string]string
	err        error
}

func newMockTokenRegistry() *mockTokenRegistry {
	return &mockTokenRegistry{registered: make(map[string]string)}
}

func (m *mockTokenRegistry) Register(_ context.Context, token, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.registered[token] = userID
	return nil
}

func (m *mockTokenRegistry) Remove(_ context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.registered[token]
	delete(m.registered, token)
	return ok, nil
}

// --- Helpers ---

func passThrough(next http.Handler) http.Handler { return next }

func makeTokenRouter(reg TokenRegistry, guard func(http.Handler) http.Handler) http.Handler {
	h := NewTokenHandler(reg, nil, nil)
	r := chi.NewRouter()
	r.Route("/v1", func(r chi.Router) { h.RegisterRoutes(r, guard) })
	return r
}

func postJSON(h http.Handler, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// --- Tests ---

func TestHandleRegister_Success(t *testing.T) {
	reg := newMockTokenRegistry()
	rec := postJSON(makeTokenRouter(reg, passThrough), "/v1/push-tokens", `{"token":"fcm-abc","user_id":"u1"}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if reg.registered["fcm-abc"] != "u1" {
		t.Errorf("expected token registered for u1, got %v", reg.registered)
	}
	var got RegisterTokenResponse
	decodeData(t, rec, &got)
	if got.UserID != "u1" || got.Token != "fcm-abc" {
		t.Errorf("unexpected response %+v", got)
	}
}

func TestHandleRegister_DefaultUser(t *testing.T) {
	reg := newMockTokenRegistry()
	rec := postJSON(makeTokenRouter(reg, passThrough), "/v1/push-tokens", `{"token":"fcm-abc"}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if reg.registered["fcm-abc"] != DefaultPushUserID {
		t.Errorf("expected default user, got %q", reg.registered["fcm-abc"])
	}
}

func TestHandleRegister_ResponseTruncatesToken(t *testing.T) {
	long := strings.Repeat("t", 150)
	rec := postJSON(makeTokenRouter(newMockTokenRegistry(), passThrough), "/v1/push-tokens", `{"token":"`+long+`"}`)

	var got RegisterTokenResponse
	decodeData(t, rec, &got)
	if got.Token == long || !strings.HasSuffix(got.Token, "...") {
		t.Errorf("expected truncated token, got %q", got.Token)
	}
}

func TestHandleRegister_Invalid(t *testing.T) {
	router := makeTokenRouter(newMockTokenRegistry(), passThrough)

	tests := []struct {
		name string
		body string
		code types.ErrorCode
	}{
		{"missing token", `{"user_id":"u1"}`, types.ErrCodeValidationPushToken},
		{"unknown field", `{"token":"a","platform":"ios"}`, types.ErrCodeValidationInvalidJSON},
		{"malformed", `{"token":`, types.ErrCodeValidationInvalidJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(router, "/v1/push-tokens", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
			if code := decodeErrorCode(t, rec); code != string(tt.code) {
				t.Errorf("expected %q, got %q", tt.code, code)
			}
		})
	}
}

func TestHandleRegister_StoreFailure(t *testing.T) {
	reg := newMockTokenRegistry()
	reg.err = types.NewAppError(types.ErrCodeInternalDB, "failed to upsert push token", errors.New("timeout"))
	rec := postJSON(makeTokenRouter(reg, passThrough), "/v1/push-tokens", `{"token":"a"}`)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestHandleDelete(t *testing.T) {
	reg := newMockTokenRegistry()
	reg.registered["fcm-abc"] = "u1"
	router := makeTokenRouter(reg, passThrough)

	rec := serve(router, http.MethodDelete, "/v1/push-tokens/fcm-abc")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if _, ok := reg.registered["fcm-abc"]; ok {
		t.Error("expected token removed")
	}

	rec = serve(router, http.MethodDelete, "/v1/push-tokens/fcm-abc")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown token, got %d", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != string(types.ErrCodeNotFoundPushToken) {
		t.Errorf("unexpected code %q", code)
	}
}

func TestTokenRoutes_Guarded(t *testing.T) {
	deny := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
	}
	reg := newMockTokenRegistry()
	router := makeTokenRouter(reg, deny)

	if rec := postJSON(router, "/v1/push-tokens", `{"token":"a"}`); rec.Code != http.StatusUnauthorized {
		t.Errorf("POST: expected 401, got %d", rec.Code)
	}
	if rec := serve(router, http.MethodDelete, "/v1/push-tokens/a"); rec.Code != http.StatusUnauthorized {
		t.Errorf("DELETE: expected 401, got %d", rec.Code)
	}
	if len(reg.registered) != 0 {
		t.Error("guarded route reached the registry")
	}
}
