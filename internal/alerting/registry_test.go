package alerting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"airwatch/internal/types"
)

func TestRegistry_Load(t *testing.T) {
	store := &mockTokenStore{}
	store.On("List", mock.Anything).Return([]types.PushToken{
		{Token: "tok-b", UserID: "u2"},
		{Token: "tok-a", UserID: "u1"},
	}, nil)
	r := NewRegistry(store, nil)

	require.NoError(t, r.Load(context.Background()))

	assert.Equal(t, []string{"tok-a", "tok-b"}, r.Tokens())
	store.AssertExpectations(t)
}

func TestRegistry_Load_StoreError(t *testing.T) {
	store := &mockTokenStore{}
	store.On("List", mock.Anything).Return(nil, errors.New("db down"))
	r := NewRegistry(store, nil)

	err := r.Load(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "load push tokens")
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_Register_PersistsFirst(t *testing.T) {
	store := &mockTokenStore{}
	store.On("Upsert", mock.Anything, "tok-a", "u1").Return(nil).Once()
	store.On("Upsert", mock.Anything, "tok-b", "u2").Return(errors.New("constraint")).Once()
	r := NewRegistry(store, nil)

	require.NoError(t, r.Register(context.Background(), "tok-a", "u1"))
	require.Error(t, r.Register(context.Background(), "tok-b", "u2"))

	assert.Equal(t, []string{"tok-a"}, r.Tokens())
	store.AssertExpectations(t)
}

func TestRegistry_Register_KeepsCreatedAt(t *testing.T) {
	r := NewRegistry(nil, nil)
	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r.SetClock(types.ClockFunc(func() time.Time { return first }))
	require.NoError(t, r.Register(context.Background(), "tok", "u1"))

	r.SetClock(types.ClockFunc(func() time.Time { return first.Add(time.Hour) }))
	require.NoError(t, r.Register(context.Background(), "tok", "u2"))

	r.mu.RLock()
	got := r.tokens["tok"]
	r.mu.RUnlock()
	assert.Equal(t, first, got.CreatedAt)
	assert.Equal(t, "u2", got.UserID)
}

func TestRegistry_Register_EmptyToken(t *testing.T) {
	r := NewRegistry(nil, nil)

	err := r.Register(context.Background(), "", "u1")

	assert.True(t, types.HasCode(err, types.ErrCodeValidationPushToken))
}

func TestRegistry_Remove(t *testing.T) {
	store := &mockTokenStore{}
	store.On("Upsert", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	store.On("Delete", mock.Anything, "tok-a").Return(true, nil)
	store.On("Delete", mock.Anything, "missing").Return(false, nil)
	r := NewRegistry(store, nil)
	require.NoError(t, r.Register(context.Background(), "tok-a", "u1"))
	require.NoError(t, r.Register(context.Background(), "tok-b", "u1"))

	removed, err := r.Remove(context.Background(), "tok-a")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = r.Remove(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, removed)

	assert.Equal(t, []string{"tok-b"}, r.Tokens())
}

func TestRegistry_Tokens_IsCopy(t *testing.T) {
	r := registryWith("tok-a", "tok-b")
	snapshot := r.Tokens()

	_, err := r.Remove(context.Background(), "tok-a")
	require.NoError(t, err)

	assert.Equal(t, []string{"tok-a", "tok-b"}, snapshot)
	assert.Equal(t, 1, r.Len())
}

func TestTokenPrefix(t *testing.T) {
	assert.Equal(t, "short", TokenPrefix("short"))
	assert.Equal(t, "abcdefghijklmnopqrst...", TokenPrefix("abcdefghijklmnopqrstuvwxyz"))
}
