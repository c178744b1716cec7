// Package cache keeps the most recent reading per node in Redis so the read
// path and the evaluation cycle avoid a database round trip for the hottest
// query.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"airwatch/internal/types"
)

const (
	keyPrefix   = "airwatch:latest:"
	stampPrefix = "airwatch:latest_ts:"
)

// putLatestScript stores ARGV[1] under KEYS[1] unless KEYS[2] already holds a
// newer timestamp than ARGV[2] (unix milliseconds). ARGV[3] is the TTL in
// milliseconds, 0 for none. Returns 1 when written.
const putLatestScript = `
local cur = redis.call('GET', KEYS[2])
if cur and tonumber(cur) > tonumber(ARGV[2]) then
	return 0
end
local ttl = tonumber(ARGV[3])
if ttl > 0 then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ttl)
	redis.call('SET', KEYS[2], ARGV[2], 'PX', ttl)
else
	redis.call('SET', KEYS[1], ARGV[1])
	redis.call('SET', KEYS[2], ARGV[2])
end
return 1
`

// Client is the subset of *redis.Client the cache uses.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, opts Options) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     20,
		MinIdleConns: 2,
		MaxRetries:   3,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}
	return client, nil
}

// ReadingCache stores the latest reading per node with a TTL.
type ReadingCache struct {
	client Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewReadingCache creates a cache whose entries expire after ttl.
func NewReadingCache(client Client, ttl time.Duration, logger *slog.Logger) *ReadingCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReadingCache{client: client, ttl: ttl, logger: logger}
}

func latestKey(nodeID string) string {
	return keyPrefix + nodeID
}

// Put stores rd as its node's latest reading unless the cached entry is newer.
// The comparison and the write run as one script on the server, so concurrent
// ingests for a node cannot replace a newer reading with an older one.
func (c *ReadingCache) Put(ctx context.Context, rd types.Reading) error {
	data, err := json.Marshal(rd)
	if err != nil {
		return fmt.Errorf("marshal reading: %w", err)
	}
	keys := []string{latestKey(rd.NodeID), stampPrefix + rd.NodeID}
	err = c.client.Eval(ctx, putLatestScript, keys,
		data, rd.RecordedAt.UnixMilli(), c.ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("store latest reading in redis: %w", err)
	}
	return nil
}

// Latest returns the cached reading for nodeID if it was recorded after since.
func (c *ReadingCache) Latest(ctx context.Context, nodeID string, since time.Time) (types.Reading, bool, error) {
	rd, ok, err := c.get(ctx, nodeID)
	if err != nil || !ok {
		return types.Reading{}, false, err
	}
	if !rd.RecordedAt.After(since) {
		return types.Reading{}, false, nil
	}
	return rd, true, nil
}

func (c *ReadingCache) get(ctx context.Context, nodeID string) (types.Reading, bool, error) {
	raw, err := c.client.Get(ctx, latestKey(nodeID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return types.Reading{}, false, nil
	}
	if err != nil {
		return types.Reading{}, false, fmt.Errorf("get latest reading from redis: %w", err)
	}

	var rd types.Reading
	if err := json.Unmarshal(raw, &rd); err != nil {
		// A corrupt entry is treated as a miss; the next Put overwrites it.
		c.logger.WarnContext(ctx, "discarding malformed cache entry", "node_id", nodeID, "error", err.Error())
		return types.Reading{}, false, nil
	}
	return rd, true, nil
}

// Name identifies the probe in health responses.
func (c *ReadingCache) Name() string { return "redis" }

// Check pings Redis.
func (c *ReadingCache) Check(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
