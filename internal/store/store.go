// Package store persists sync run history in PostgreSQL.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/boardsync/internal/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS sync_runs (
	id            UUID PRIMARY KEY,
	file_name     TEXT        NOT NULL,
	collection_id BIGINT      NOT NULL,
	header        TEXT[]      NOT NULL DEFAULT '{}',
	total         INTEGER     NOT NULL,
	created       INTEGER     NOT NULL,
	updated       INTEGER     NOT NULL,
	failed        INTEGER     NOT NULL,
	error         TEXT        NOT NULL DEFAULT '',
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS sync_runs_started_at_idx ON sync_runs (started_at DESC);

CREATE TABLE IF NOT EXISTS sync_failed_rows (
	run_id      UUID    NOT NULL REFERENCES sync_runs (id) ON DELETE CASCADE,
	line        INTEGER NOT NULL,
	phase       TEXT    NOT NULL,
	natural_key TEXT    NOT NULL,
	reason      TEXT    NOT NULL,
	data        TEXT[]  NOT NULL,
	PRIMARY KEY (run_id, line, phase)
);
`

// PoolConfig holds connection pool limits.
type PoolConfig struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Connect opens and pings a pool.
func Connect(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns >= 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// PGRuns is a core.RunStore backed by PostgreSQL.
type PGRuns struct {
	pool *pgxpool.Pool
}

var _ core.RunStore = (*PGRuns)(nil)

// NewPGRuns returns a run store on pool. Call EnsureSchema once at startup.
func NewPGRuns(pool *pgxpool.Pool) *PGRuns {
	return &PGRuns{pool: pool}
}

// EnsureSchema creates the history tables if they do not exist.
func (s *PGRuns) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// SaveRun writes the run and its failed rows in one transaction.
func (s *PGRuns) SaveRun(ctx context.Context, r *core.Report) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	header := r.Header
	if header == nil {
		header = []string{}
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO sync_runs (id, file_name, collection_id, header, total, created, updated, failed, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		r.RunID, r.FileName, int64(r.CollectionID), header, r.Total,
		r.Created, r.Updated, len(r.Failed), r.Error, r.StartedAt, r.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if len(r.Failed) > 0 {
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"sync_failed_rows"},
			[]string{"run_id", "line", "phase", "natural_key", "reason", "data"},
			pgx.CopyFromSlice(len(r.Failed), func(i int) ([]any, error) {
				f := r.Failed[i]
				return []any{r.RunID, f.Line, string(f.Phase), f.NaturalKey, f.Reason, f.Data}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("copy failed rows: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

const summaryColumns = `id, file_name, collection_id, total, created, updated, failed, error, started_at, finished_at`

// ListRuns returns the most recent runs first.
func (s *PGRuns) ListRuns(ctx context.Context, limit int) ([]core.RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+summaryColumns+` FROM sync_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []core.RunSummary
	for rows.Next() {
		var (
			sum        core.RunSummary
			collection int64
		)
		if err := rows.Scan(&sum.RunID, &sum.FileName, &collection, &sum.Total, &sum.Created,
			&sum.Updated, &sum.Failed, &sum.Error, &sum.StartedAt, &sum.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		sum.CollectionID = core.CollectionID(collection)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// GetRun loads a run with its failed rows.
func (s *PGRuns) GetRun(ctx context.Context, id uuid.UUID) (*core.Report, error) {
	var (
		r          core.Report
		collection int64
		failed     int
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, file_name, collection_id, header, total, created, updated, failed, error, started_at, finished_at
		FROM sync_runs WHERE id = $1`, id,
	).Scan(&r.RunID, &r.FileName, &collection, &r.Header, &r.Total, &r.Created,
		&r.Updated, &failed, &r.Error, &r.StartedAt, &r.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	r.CollectionID = core.CollectionID(collection)

	rows, err := s.pool.Query(ctx, `
		SELECT line, phase, natural_key, reason, data
		FROM sync_failed_rows WHERE run_id = $1 ORDER BY line, phase`, id)
	if err != nil {
		return nil, fmt.Errorf("get failed rows: %w", err)
	}
	r.Failed, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.FailedRow, error) {
		var (
			f     core.FailedRow
			phase string
		)
		err := row.Scan(&f.Line, &phase, &f.NaturalKey, &f.Reason, &f.Data)
		f.Phase = core.Phase(phase)
		return f, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan failed rows: %w", err)
	}
	return &r, nil
}
