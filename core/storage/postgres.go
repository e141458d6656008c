package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Postgres stores claims and runs in the report_windows and report_runs tables.
type Postgres struct {
	db *sqlx.DB
}

// NewPostgres wraps an open connection pool.
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

const (
	claimWindowSQL = `INSERT INTO report_windows (window_key, claimed_at)
VALUES ($1, $2)
ON CONFLICT (window_key) DO NOTHING`

	startRunSQL = `INSERT INTO report_runs (trigger, window_key, started_at, status)
VALUES (:trigger, :window_key, :started_at, :status)
RETURNING id`

	finishRunSQL = `UPDATE report_runs
SET status = $2, error = $3, parts = $4, finished_at = $5
WHERE id = $1`

	lastRunSQL = `SELECT id, trigger, window_key, started_at, finished_at, status, error, parts
FROM report_runs
ORDER BY started_at DESC, id DESC
LIMIT 1`
)

// ClaimWindow inserts key and reports whether this call created it.
func (p *Postgres) ClaimWindow(ctx context.Context, key string, at time.Time) (bool, error) {
	res, err := p.db.ExecContext(ctx, claimWindowSQL, key, at.UTC())
	if err != nil {
		return false, fmt.Errorf("claim window %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim window %s: rows affected: %w", key, err)
	}
	return n == 1, nil
}

// StartRun inserts run and returns its id. An empty status is stored as running.
func (p *Postgres) StartRun(ctx context.Context, run Run) (int64, error) {
	query, args, err := p.startRunQuery(run)
	if err != nil {
		return 0, err
	}
	var id int64
	if err := p.db.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("start run: %w", err)
	}
	return id, nil
}

func (p *Postgres) startRunQuery(run Run) (string, []any, error) {
	if run.Status == "" {
		run.Status = StatusRunning
	}
	run.StartedAt = run.StartedAt.UTC()
	query, args, err := p.db.BindNamed(startRunSQL, run)
	if err != nil {
		return "", nil, fmt.Errorf("start run: bind: %w", err)
	}
	return query, args, nil
}

// FinishRun records the outcome of run id.
func (p *Postgres) FinishRun(ctx context.Context, id int64, status, errText string, parts int, at time.Time) error {
	res, err := p.db.ExecContext(ctx, finishRunSQL, id, status, errText, parts, at.UTC())
	if err != nil {
		return fmt.Errorf("finish run %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %d: %w", id, ErrNotFound)
	}
	return nil
}

// LastRun returns the most recently started run.
func (p *Postgres) LastRun(ctx context.Context) (Run, error) {
	var run Run
	if err := p.db.GetContext(ctx, &run, lastRunSQL); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, ErrNotFound
		}
		return Run{}, fmt.Errorf("last run: %w", err)
	}
	return run, nil
}
