package db

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"airwatch/internal/types"
)

func TestPushTokenRepository_List(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPushTokenRepository(db)
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(newMockRows([][]any{
			{"tok-a", "u1", created},
			{"tok-b", "anonymous", created},
		}), nil)

	got, err := repo.List(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []types.PushToken{
		{Token: "tok-a", UserID: "u1", CreatedAt: created},
		{Token: "tok-b", UserID: "anonymous", CreatedAt: created},
	}, got)
}

func TestPushTokenRepository_List_ScanError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPushTokenRepository(db)

	rows := newMockRows([][]any{{"tok-a", "u1", time.Now()}})
	rows.scanErr = errors.New("bad column")
	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(rows, nil)

	_, err := repo.List(context.Background())

	assert.True(t, types.HasCode(err, types.ErrCodeInternalDB))
}

func TestPushTokenRepository_Upsert(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPushTokenRepository(db)

	db.On("Exec", mock.Anything, mock.MatchedBy(func(sql string) bool {
		return strings.Contains(sql, "ON CONFLICT (token) DO UPDATE")
	}), []any{"tok-a", "u1"}).Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	require.NoError(t, repo.Upsert(context.Background(), "tok-a", "u1"))
	db.AssertExpectations(t)
}

func TestPushTokenRepository_Delete(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPushTokenRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), []any{"tok-a"}).
		Return(pgconn.NewCommandTag("DELETE 1"), nil)
	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), []any{"missing"}).
		Return(pgconn.NewCommandTag("DELETE 0"), nil)

	deleted, err := repo.Delete(context.Background(), "tok-a")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.Delete(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestPushTokenRepository_Delete_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPushTokenRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("connection refused"))

	_, err := repo.Delete(context.Background(), "tok-a")

	assert.True(t, types.HasCode(err, types.ErrCodeInternalDB))
}
