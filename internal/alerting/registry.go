package alerting

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"airwatch/internal/types"
)

// TokenStore persists registered push tokens.
type TokenStore interface {
	List(ctx context.Context) ([]types.PushToken, error)
	Upsert(ctx context.Context, token, userID string) error
	Delete(ctx context.Context, token string) (bool, error)
}

// Registry is the in-memory set of push tokens, backed by a TokenStore.
// Readers take a copy with Tokens; removal happens under the write lock so
// a dispatch iterating its copy never observes a partial update.
type Registry struct {
	store  TokenStore
	logger *slog.Logger
	clock  types.Clock

	mu     sync.RWMutex
	tokens map[string]types.PushToken
}

// NewRegistry creates an empty registry. A nil store keeps tokens in memory only.
func NewRegistry(store TokenStore, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		store:  store,
		logger: logger,
		clock:  types.RealClock{},
		tokens: make(map[string]types.PushToken),
	}
}

// Load replaces the in-memory set with the store's contents.
func (r *Registry) Load(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	list, err := r.store.List(ctx)
	if err != nil {
		return fmt.Errorf("load push tokens: %w", err)
	}

	tokens := make(map[string]types.PushToken, len(list))
	for _, t := range list {
		tokens[t.Token] = t
	}

	r.mu.Lock()
	r.tokens = tokens
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "push tokens loaded", "count", len(tokens))
	return nil
}

// Register adds or refreshes a token. The store is written first so the
// in-memory set never holds a token that failed to persist.
func (r *Registry) Register(ctx context.Context, token, userID string) error {
	if token == "" {
		return types.NewAppError(types.ErrCodeValidationPushToken, "token is required", nil)
	}
	if r.store != nil {
		if err := r.store.Upsert(ctx, token, userID); err != nil {
			return fmt.Errorf("register push token: %w", err)
		}
	}

	r.mu.Lock()
	existing, ok := r.tokens[token]
	created := r.clock.Now()
	if ok {
		created = existing.CreatedAt
	}
	r.tokens[token] = types.PushToken{Token: token, UserID: userID, CreatedAt: created}
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "push token registered", "token", TokenPrefix(token), "user_id", userID)
	return nil
}

// Remove deletes a token from memory and the store. It reports whether the
// token was known to either.
func (r *Registry) Remove(ctx context.Context, token string) (bool, error) {
	r.mu.Lock()
	_, known := r.tokens[token]
	delete(r.tokens, token)
	r.mu.Unlock()

	if r.store == nil {
		return known, nil
	}
	deleted, err := r.store.Delete(ctx, token)
	if err != nil {
		return known, fmt.Errorf("remove push token: %w", err)
	}
	return known || deleted, nil
}

// Tokens returns a sorted copy of the registered token strings.
func (r *Registry) Tokens() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.tokens))
	for t := range r.tokens {
		out = append(out, t)
	}
	r.mu.RUnlock()

	sort.Strings(out)
	return out
}

// Len returns the number of registered tokens.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tokens)
}

// TokenPrefix shortens a token for logging.
func TokenPrefix(token string) string {
	const n = 20
	if len(token) <= n {
		return token
	}
	return token[:n] + "..."
}

// SetClock overrides the clock used for CreatedAt. Intended for tests.
func (r *Registry) SetClock(c types.Clock) {
	r.clock = c
}
