package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"airwatch/internal/types"
)

// ReadingRepository provides data access for the readings table.
type ReadingRepository struct {
	db DBTX
}

// NewReadingRepository creates a ReadingRepository backed by the given
// connection (pool or transaction).
func NewReadingRepository(db DBTX) *ReadingRepository {
	return &ReadingRepository{db: db}
}

const readingColumns = `node_id, recorded_at, pm1_0, pm2_5, pm10, aqi`

// maxInsertRows bounds a single multi-row INSERT (6 params per row).
const maxInsertRows = 500

// Insert stores one reading.
func (r *ReadingRepository) Insert(ctx context.Context, reading types.Reading) error {
	return r.InsertMany(ctx, []types.Reading{reading})
}

// InsertMany stores readings with multi-row INSERT statements. Duplicate
// (node_id, recorded_at) pairs are ignored so redelivered messages are
// idempotent.
func (r *ReadingRepository) InsertMany(ctx context.Context, readings []types.Reading) error {
	for start := 0; start < len(readings); start += maxInsertRows {
		end := min(start+maxInsertRows, len(readings))
		chunk := readings[start:end]

		var sb strings.Builder
		sb.WriteString(`INSERT INTO readings (` + readingColumns + `) VALUES `)
		args := make([]any, 0, len(chunk)*6)
		for i, rd := range chunk {
			if i > 0 {
				sb.WriteString(", ")
			}
			n := i * 6
			fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5, n+6)
			args = append(args, rd.NodeID, rd.RecordedAt.UTC(), rd.PM1, rd.PM25, rd.PM10, rd.AQI)
		}
		sb.WriteString(` ON CONFLICT (node_id, recorded_at) DO NOTHING`)

		if _, err := r.db.Exec(ctx, sb.String(), args...); err != nil {
			return types.NewAppError(types.ErrCodeInternalDB, "failed to insert readings", err)
		}
	}
	return nil
}

// Latest returns the most recent reading for nodeID recorded after since.
// It returns ErrCodeNotFoundReading when there is none.
func (r *ReadingRepository) Latest(ctx context.Context, nodeID string, since time.Time) (types.Reading, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+readingColumns+` FROM readings
		 WHERE node_id = $1 AND recorded_at > $2
		 ORDER BY recorded_at DESC LIMIT 1`,
		nodeID, since.UTC(),
	)

	rd, err := scanReading(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.Reading{}, types.NewAppError(types.ErrCodeNotFoundReading,
				fmt.Sprintf("no reading for node %s since %s", nodeID, since.UTC().Format(time.RFC3339)), nil)
		}
		return types.Reading{}, types.NewAppError(types.ErrCodeInternalDB, "failed to query latest reading", err)
	}
	return rd, nil
}

// ActiveNodes returns the IDs of nodes with at least one reading after since,
// sorted ascending.
func (r *ReadingRepository) ActiveNodes(ctx context.Context, since time.Time) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT node_id FROM readings WHERE recorded_at > $1 ORDER BY node_id`,
		since.UTC(),
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query active nodes", err)
	}
	defer rows.Close()

	var nodes []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan node id", err)
		}
		nodes = append(nodes, id)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating node rows", err)
	}
	return nodes, nil
}

// HourlyPM25 returns hourly PM2.5 means for nodeID after since, oldest first.
// Hours without samples are omitted.
func (r *ReadingRepository) HourlyPM25(ctx context.Context, nodeID string, since time.Time) ([]float64, error) {
	rows, err := r.db.Query(ctx,
		`SELECT date_bin(INTERVAL '1 hour', recorded_at, TIMESTAMPTZ 'epoch') AS bucket, avg(pm2_5)
		 FROM readings
		 WHERE node_id = $1 AND recorded_at > $2 AND pm2_5 IS NOT NULL
		 GROUP BY bucket
		 ORDER BY bucket`,
		nodeID, since.UTC(),
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query hourly pm2.5", err)
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var (
			bucket time.Time
			mean   float64
		)
		if err := rows.Scan(&bucket, &mean); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan hourly pm2.5", err)
		}
		out = append(out, mean)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating hourly pm2.5 rows", err)
	}
	return out, nil
}

// PM25Points returns the raw PM2.5 samples for nodeID after since, oldest first.
func (r *ReadingRepository) PM25Points(ctx context.Context, nodeID string, since time.Time) ([]types.PM25Point, error) {
	rows, err := r.db.Query(ctx,
		`SELECT recorded_at, pm2_5 FROM readings
		 WHERE node_id = $1 AND recorded_at > $2 AND pm2_5 IS NOT NULL
		 ORDER BY recorded_at`,
		nodeID, since.UTC(),
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query pm2.5 points", err)
	}
	defer rows.Close()

	var out []types.PM25Point
	for rows.Next() {
		var p types.PM25Point
		if err := rows.Scan(&p.RecordedAt, &p.PM25); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan pm2.5 point", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating pm2.5 rows", err)
	}
	return out, nil
}

// Buckets returns per-bucket means for nodeID after since. Buckets without a
// PM2.5 sample are omitted.
func (r *ReadingRepository) Buckets(ctx context.Context, nodeID string, since time.Time, width time.Duration) ([]types.ReadingBucket, error) {
	rows, err := r.db.Query(ctx,
		`SELECT node_id, date_bin(make_interval(secs => $3), recorded_at, TIMESTAMPTZ 'epoch') AS bucket,
		        avg(pm1_0), avg(pm2_5), avg(pm10), coalesce(avg(aqi), 0)
		 FROM readings
		 WHERE node_id = $1 AND recorded_at > $2 AND pm2_5 IS NOT NULL
		 GROUP BY node_id, bucket
		 ORDER BY bucket`,
		nodeID, since.UTC(), width.Seconds(),
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query reading buckets", err)
	}
	return collectBuckets(rows)
}

// BucketsAllNodes returns per-node bucket means after since, ordered by node
// then bucket.
func (r *ReadingRepository) BucketsAllNodes(ctx context.Context, since time.Time, width time.Duration) ([]types.ReadingBucket, error) {
	rows, err := r.db.Query(ctx,
		`SELECT node_id, date_bin(make_interval(secs => $2), recorded_at, TIMESTAMPTZ 'epoch') AS bucket,
		        avg(pm1_0), avg(pm2_5), avg(pm10), coalesce(avg(aqi), 0)
		 FROM readings
		 WHERE recorded_at > $1 AND pm2_5 IS NOT NULL
		 GROUP BY node_id, bucket
		 ORDER BY node_id, bucket`,
		since.UTC(), width.Seconds(),
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query reading buckets", err)
	}
	return collectBuckets(rows)
}

func collectBuckets(rows pgx.Rows) ([]types.ReadingBucket, error) {
	defer rows.Close()

	var out []types.ReadingBucket
	for rows.Next() {
		var b types.ReadingBucket
		if err := rows.Scan(&b.NodeID, &b.Start, &b.PM1, &b.PM25, &b.PM10, &b.AQI); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan reading bucket", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating bucket rows", err)
	}
	return out, nil
}

func scanReading(row pgx.Row) (types.Reading, error) {
	var (
		rd  types.Reading
		aqi *int32
	)
	if err := row.Scan(&rd.NodeID, &rd.RecordedAt, &rd.PM1, &rd.PM25, &rd.PM10, &aqi); err != nil {
		return types.Reading{}, err
	}
	if aqi != nil {
		v := int(*aqi)
		rd.AQI = &v
	}
	return rd, nil
}
