package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/smpbot/core/logger"
	"github.com/m3rciful/smpbot/core/storage"
)

// ErrAlreadyFired reports that the window for a fire time was claimed earlier.
var ErrAlreadyFired = errors.New("schedule: window already fired")

// Job is invoked once per claimed fire time.
type Job func(ctx context.Context, fireAt time.Time) error

// KeyFunc maps a fire time to the identifier of the window it delivers.
type KeyFunc func(fireAt time.Time) string

// Options configure a Trigger. Schedule, Store and Job are required.
type Options struct {
	Schedule  *Weekly
	Store     storage.Store
	Job       Job
	Key       KeyFunc
	Clock     Clock
	KeepAlive time.Duration
}

// Trigger waits for each weekly occurrence, claims its window and runs the job.
type Trigger struct {
	sched     *Weekly
	store     storage.Store
	job       Job
	key       KeyFunc
	clock     Clock
	keepAlive time.Duration

	mu   sync.RWMutex
	next time.Time
}

// NewTrigger validates opts and returns an idle trigger.
func NewTrigger(opts Options) (*Trigger, error) {
	if opts.Schedule == nil || opts.Store == nil || opts.Job == nil {
		return nil, fmt.Errorf("schedule: schedule, store and job are required")
	}
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	if opts.Key == nil {
		opts.Key = func(t time.Time) string { return t.Format("2006-01-02T15:04") }
	}
	t := &Trigger{
		sched:     opts.Schedule,
		store:     opts.Store,
		job:       opts.Job,
		key:       opts.Key,
		clock:     opts.Clock,
		keepAlive: opts.KeepAlive,
	}
	t.setNext(t.sched.Next(t.clock.Now()))
	return t, nil
}

// NextRun returns the upcoming fire time.
func (t *Trigger) NextRun() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.next
}

// Label describes the recurrence.
func (t *Trigger) Label() string { return t.sched.Label() }

func (t *Trigger) setNext(next time.Time) {
	t.mu.Lock()
	t.next = next
	t.mu.Unlock()
}

// Run blocks until ctx is done.
func (t *Trigger) Run(ctx context.Context) error {
	logger.SCHED.Info("trigger started",
		slog.String("event", "schedule.start"),
		slog.String("schedule", t.sched.Label()),
		slog.Duration("keepalive", t.keepAlive),
	)
	var last time.Time
	for {
		from := t.clock.Now()
		if from.Before(last) {
			from = last
		}
		next := t.sched.Next(from)
		t.setNext(next)
		logger.SCHED.Info("next run scheduled",
			slog.String("event", "schedule.next"),
			slog.String("next_run", next.Format(time.RFC3339)),
		)

		if err := t.wait(ctx, next); err != nil {
			logger.SCHED.Info("trigger stopped",
				slog.String("event", "schedule.stop"),
				slog.String("cause", err.Error()),
			)
			return nil
		}
		last = next
		if err := t.fire(ctx, next); err != nil && !errors.Is(err, ErrAlreadyFired) {
			logger.SCHED.Error("scheduled job failed",
				slog.String("event", "schedule.fire"),
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
		}
	}
}

func (t *Trigger) wait(ctx context.Context, until time.Time) error {
	fire := t.clock.After(until.Sub(t.clock.Now()))
	var alive <-chan time.Time
	if t.keepAlive > 0 {
		alive = t.clock.After(t.keepAlive)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-fire:
			return nil
		case now := <-alive:
			logger.SCHED.Info("server alive",
				slog.String("event", "keepalive"),
				slog.String("next_run", until.Format(time.RFC3339)),
				slog.String("ts_local", now.In(t.sched.Location()).Format(time.RFC3339)),
			)
			alive = t.clock.After(t.keepAlive)
		}
	}
}

func (t *Trigger) fire(ctx context.Context, at time.Time) error {
	key := t.key(at)
	claimed, err := t.store.ClaimWindow(ctx, key, t.clock.Now())
	if err != nil {
		return fmt.Errorf("claim %s: %w", key, err)
	}
	if !claimed {
		logger.SCHED.Warn("window already delivered",
			slog.String("event", "schedule.fire"),
			slog.String("status", "skip"),
			slog.String("window", key),
		)
		return ErrAlreadyFired
	}
	logger.SCHED.Info("firing",
		slog.String("event", "schedule.fire"),
		slog.String("window", key),
	)
	return t.job(ctx, at)
}
