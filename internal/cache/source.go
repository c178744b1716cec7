package cache

import (
	"context"
	"log/slog"
	"time"

	"airwatch/internal/types"
)

// LatestStore is the durable source of latest readings.
type LatestStore interface {
	Latest(ctx context.Context, nodeID string, since time.Time) (types.Reading, error)
}

// ReadThrough answers latest-reading lookups from the cache, falling back to
// the store on a miss and repopulating the cache. Cache errors degrade to the
// store; they are logged, never returned.
type ReadThrough struct {
	cache  *ReadingCache
	store  LatestStore
	logger *slog.Logger
}

// NewReadThrough combines a cache and a store. A nil cache disables caching.
func NewReadThrough(cache *ReadingCache, store LatestStore, logger *slog.Logger) *ReadThrough {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReadThrough{cache: cache, store: store, logger: logger}
}

// Latest returns the most recent reading for nodeID recorded after since.
func (r *ReadThrough) Latest(ctx context.Context, nodeID string, since time.Time) (types.Reading, error) {
	if r.cache != nil {
		rd, ok, err := r.cache.Latest(ctx, nodeID, since)
		if err != nil {
			r.logger.WarnContext(ctx, "reading cache unavailable, using store", "node_id", nodeID, "error", err.Error())
		} else if ok {
			return rd, nil
		}
	}

	rd, err := r.store.Latest(ctx, nodeID, since)
	if err != nil {
		return types.Reading{}, err
	}

	if r.cache != nil {
		if err := r.cache.Put(ctx, rd); err != nil {
			r.logger.WarnContext(ctx, "failed to repopulate reading cache", "node_id", nodeID, "error", err.Error())
		}
	}
	return rd, nil
}
