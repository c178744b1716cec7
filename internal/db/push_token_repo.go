package db

import (
	"context"

	"airwatch/internal/types"
)

// PushTokenRepository provides data access for the push_tokens table.
type PushTokenRepository struct {
	db DBTX
}

// NewPushTokenRepository creates a PushTokenRepository backed by the given
// connection (pool or transaction).
func NewPushTokenRepository(db DBTX) *PushTokenRepository {
	return &PushTokenRepository{db: db}
}

// List returns every registered token, oldest first.
func (r *PushTokenRepository) List(ctx context.Context) ([]types.PushToken, error) {
	rows, err := r.db.Query(ctx,
		`SELECT token, user_id, created_at FROM push_tokens ORDER BY created_at, token`)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query push tokens", err)
	}
	defer rows.Close()

	var out []types.PushToken
	for rows.Next() {
		var t types.PushToken
		if err := rows.Scan(&t.Token, &t.UserID, &t.CreatedAt); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan push token", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating push token rows", err)
	}
	return out, nil
}

// Upsert registers token for userID. Re-registering an existing token
// updates its owner and keeps created_at.
func (r *PushTokenRepository) Upsert(ctx context.Context, token, userID string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO push_tokens (token, user_id, created_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (token) DO UPDATE SET user_id = EXCLUDED.user_id`,
		token, userID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert push token", err)
	}
	return nil
}

// Delete removes token and reports whether a row was deleted.
func (r *PushTokenRepository) Delete(ctx context.Context, token string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM push_tokens WHERE token = $1`, token)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to delete push token", err)
	}
	return tag.RowsAffected() > 0, nil
}
