// Package db provides PostgreSQL-backed repositories for sensor readings and
// push tokens. Repositories accept a DBTX so the same code runs against
// *pgxpool.Pool or a pgx.Tx. Every query is parameterized; node IDs and
// tokens are never interpolated into SQL text.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PoolConfig tunes the connection pool.
type PoolConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	AcquireTimeout  time.Duration
}

// NewPool parses the DSN, applies the pool limits and verifies connectivity
// with a ping bounded by AcquireTimeout.
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pcfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pcfg.MaxConnLifetime = cfg.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	timeout := cfg.AcquireTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthProbe reports database reachability for the health endpoint.
type HealthProbe struct {
	pool Pinger
}

// NewHealthProbe wraps a pool for health checks.
func NewHealthProbe(pool Pinger) *HealthProbe {
	return &HealthProbe{pool: pool}
}

// Name identifies the probe in health responses.
func (p *HealthProbe) Name() string { return "database" }

// Check pings the database.
func (p *HealthProbe) Check(ctx context.Context) error {
	return p.pool.Ping(ctx)
}
