// Package storage keeps the history of report runs and the set of weekly
// windows that were already delivered.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no run has been recorded yet.
var ErrNotFound = errors.New("storage: not found")

// Run status values.
const (
	StatusRunning = "running"
	StatusOK      = "ok"
	StatusFail    = "fail"
)

// Run is a single report attempt.
type Run struct {
	ID         int64      `db:"id"`
	Trigger    string     `db:"trigger"`
	WindowKey  string     `db:"window_key"`
	StartedAt  time.Time  `db:"started_at"`
	FinishedAt *time.Time `db:"finished_at"`
	Status     string     `db:"status"`
	Error      string     `db:"error"`
	Parts      int        `db:"parts"`
}

// Store persists window claims and run records.
type Store interface {
	// ClaimWindow marks key as fired. It reports false if the key was
	// already claimed.
	ClaimWindow(ctx context.Context, key string, at time.Time) (bool, error)
	StartRun(ctx context.Context, run Run) (int64, error)
	FinishRun(ctx context.Context, id int64, status, errText string, parts int, at time.Time) error
	// LastRun returns the most recently started run or ErrNotFound.
	LastRun(ctx context.Context) (Run, error)
}
