package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/smpbot/core/logger"
	"github.com/m3rciful/smpbot/core/storage"
	"github.com/m3rciful/smpbot/core/telegram/format"
)

// ErrRunInProgress is returned when a run is requested while another is active.
var ErrRunInProgress = errors.New("report: run already in progress")

// Notifier delivers a message and reports how many parts it took.
type Notifier interface {
	Send(ctx context.Context, text string) (int, error)
}

// Options configure a Job. Source, Notifier and Store are required.
type Options struct {
	Source   Source
	Notifier Notifier
	Store    storage.Store
	Location *time.Location
	Now      func() time.Time
}

// Job builds a report for a window and sends it to the chat.
type Job struct {
	source   Source
	notifier Notifier
	store    storage.Store
	loc      *time.Location
	now      func() time.Time

	// slot holds a token while a run is in flight.
	slot chan struct{}
}

// NewJob validates opts.
func NewJob(opts Options) (*Job, error) {
	if opts.Source == nil || opts.Notifier == nil || opts.Store == nil {
		return nil, fmt.Errorf("report: source, notifier and store are required")
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Job{
		source:   opts.Source,
		notifier: opts.Notifier,
		store:    opts.Store,
		loc:      opts.Location,
		now:      opts.Now,
		slot:     make(chan struct{}, 1),
	}, nil
}

// Scheduled runs the window belonging to a weekly fire time.
func (j *Job) Scheduled(ctx context.Context, fireAt time.Time) error {
	return j.Run(ctx, WindowFor(fireAt, j.loc, TriggerScheduled))
}

// RunNow runs the window that ended yesterday.
func (j *Job) RunNow(ctx context.Context, trig Trigger) error {
	return j.Run(ctx, WindowFor(j.now(), j.loc, trig))
}

// WindowKey returns the claim key for a scheduled fire time.
func (j *Job) WindowKey(fireAt time.Time) string {
	return WindowFor(fireAt, j.loc, TriggerScheduled).Key
}

// acquire takes the run slot. Scheduled windows wait for a run in flight
// to finish, since their window is already claimed; other triggers fail
// fast with ErrRunInProgress.
func (j *Job) acquire(ctx context.Context, wait bool) error {
	select {
	case j.slot <- struct{}{}:
		return nil
	default:
	}
	if !wait {
		return ErrRunInProgress
	}
	logger.LogEvent(ctx, logger.REPORT, slog.LevelInfo, "run.wait",
		slog.String("cause", "run in progress"),
	)
	select {
	case j.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("report: waiting for run in progress: %w", ctx.Err())
	}
}

func (j *Job) release() { <-j.slot }

// Run builds and sends the report for w. On failure a short notice is
// sent to the chat and the original error is returned.
func (j *Job) Run(ctx context.Context, w Window) error {
	if err := j.acquire(ctx, w.Trigger == TriggerScheduled); err != nil {
		return err
	}
	defer j.release()

	start := j.now()
	runID, err := j.store.StartRun(ctx, storage.Run{
		Trigger:   string(w.Trigger),
		WindowKey: w.Key,
		StartedAt: start,
	})
	if err != nil {
		logger.LogEvent(ctx, logger.REPORT, slog.LevelWarn, "run.record",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
	ctx = logger.WithRun(ctx, runID, string(w.Trigger))
	logger.LogEvent(ctx, logger.REPORT, slog.LevelInfo, "run.start",
		slog.String("window", w.Key),
		slog.String("period", w.Label()),
	)

	parts, runErr := j.deliver(ctx, w)
	status := storage.StatusOK
	errText := ""
	if runErr != nil {
		status = storage.StatusFail
		errText = runErr.Error()
	}
	if runID != 0 {
		if err := j.store.FinishRun(context.WithoutCancel(ctx), runID, status, errText, parts, j.now()); err != nil {
			logger.LogEvent(ctx, logger.REPORT, slog.LevelWarn, "run.record",
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
		}
	}

	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("window", w.Key),
		slog.Int("parts", parts),
		slog.Duration("duration", logger.RoundMS(j.now().Sub(start))),
	}
	if runErr == nil {
		logger.LogEvent(ctx, logger.REPORT, slog.LevelInfo, "run.done", attrs...)
		return nil
	}
	logger.LogEvent(ctx, logger.REPORT, slog.LevelError, "run.done", append(attrs, slog.String("err", errText))...)
	j.notifyFailure(ctx, w, runErr)
	return runErr
}

func (j *Job) deliver(ctx context.Context, w Window) (int, error) {
	text, err := j.source.Build(ctx, w)
	if err != nil {
		return 0, fmt.Errorf("build report %s: %w", w.Key, err)
	}
	parts, err := j.notifier.Send(ctx, text)
	if err != nil {
		return parts, fmt.Errorf("send report %s: %w", w.Key, err)
	}
	return parts, nil
}

func (j *Job) notifyFailure(ctx context.Context, w Window, cause error) {
	if ctx.Err() != nil {
		return
	}
	msg := fmt.Sprintf("⚠️ Report for %s failed:\n%s",
		format.EscapeHTML(w.Label()), format.EscapeHTML(logger.SanitizeLimit(cause.Error(), 500)))
	if _, err := j.notifier.Send(ctx, msg); err != nil {
		logger.LogEvent(ctx, logger.REPORT, slog.LevelWarn, "run.notice",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
}

// Notify sends an arbitrary message, such as the startup notice.
func (j *Job) Notify(ctx context.Context, text string) error {
	_, err := j.notifier.Send(ctx, text)
	return err
}

// LastRun returns the most recent run record.
func (j *Job) LastRun(ctx context.Context) (storage.Run, error) {
	return j.store.LastRun(ctx)
}
