package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m3rciful/smpbot/core/storage"
)

type triggerHarness struct {
	clock   *fakeClock
	store   *storage.Memory
	trigger *Trigger
	calls   chan time.Time
	done    chan error
	cancel  context.CancelFunc
}

func startTrigger(t *testing.T, keepAlive time.Duration, job Job) *triggerHarness {
	t.Helper()
	seoul := time.FixedZone("KST", 9*3600)
	w, err := NewWeekly(time.Monday, 9, 0, seoul)
	if err != nil {
		t.Fatalf("NewWeekly: %v", err)
	}
	h := &triggerHarness{
		clock: newFakeClock(time.Date(2025, 9, 28, 10, 0, 0, 0, seoul)),
		store: storage.NewMemory(),
		calls: make(chan time.Time, 8),
		done:  make(chan error, 1),
	}
	wrapped := func(ctx context.Context, at time.Time) error {
		h.calls <- at
		if job != nil {
			return job(ctx, at)
		}
		return nil
	}
	h.trigger, err = NewTrigger(Options{
		Schedule:  w,
		Store:     h.store,
		Job:       wrapped,
		Clock:     h.clock,
		KeepAlive: keepAlive,
	})
	if err != nil {
		t.Fatalf("NewTrigger: %v", err)
	}
	return h
}

func (h *triggerHarness) run(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- h.trigger.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-h.done:
		case <-time.After(2 * time.Second):
			t.Error("trigger did not stop")
		}
	})
}

func (h *triggerHarness) expectCall(t *testing.T, want time.Time) {
	t.Helper()
	select {
	case got := <-h.calls:
		if !got.Equal(want) {
			t.Fatalf("fired at %s, want %s", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("job was not called")
	}
}

func (h *triggerHarness) expectNoCall(t *testing.T) {
	t.Helper()
	select {
	case got := <-h.calls:
		t.Fatalf("unexpected fire at %s", got)
	default:
	}
}

func TestTriggerFiresWeekly(t *testing.T) {
	h := startTrigger(t, 0, nil)
	first := time.Date(2025, 9, 29, 0, 0, 0, 0, time.UTC)
	if got := h.trigger.NextRun(); !got.Equal(first) {
		t.Fatalf("NextRun before start = %s, want %s", got, first)
	}
	h.run(t)

	h.clock.BlockUntil(t, 1)
	h.clock.Advance(23 * time.Hour)
	h.expectCall(t, first)

	h.clock.BlockUntil(t, 1)
	second := first.Add(7 * 24 * time.Hour)
	if got := h.trigger.NextRun(); !got.Equal(second) {
		t.Fatalf("NextRun after fire = %s, want %s", got, second)
	}
	h.clock.Advance(7 * 24 * time.Hour)
	h.expectCall(t, second)
}

func TestTriggerSkipsClaimedWindow(t *testing.T) {
	h := startTrigger(t, 0, nil)
	first := h.trigger.NextRun()
	if ok, _ := h.store.ClaimWindow(context.Background(), h.trigger.key(first), first); !ok {
		t.Fatal("pre-claim failed")
	}
	h.run(t)

	h.clock.BlockUntil(t, 1)
	h.clock.Advance(23 * time.Hour)
	h.clock.BlockUntil(t, 1)
	h.expectNoCall(t)

	h.clock.Advance(7 * 24 * time.Hour)
	h.expectCall(t, first.Add(7*24*time.Hour))
}

func TestTriggerSurvivesJobError(t *testing.T) {
	h := startTrigger(t, 0, func(context.Context, time.Time) error {
		return errors.New("send failed")
	})
	h.run(t)

	h.clock.BlockUntil(t, 1)
	h.clock.Advance(23 * time.Hour)
	first := <-h.calls

	h.clock.BlockUntil(t, 1)
	h.clock.Advance(7 * 24 * time.Hour)
	h.expectCall(t, first.Add(7*24*time.Hour))
}

func TestTriggerKeepAliveDoesNotFire(t *testing.T) {
	h := startTrigger(t, time.Hour, nil)
	h.run(t)

	h.clock.BlockUntil(t, 2)
	for i := 0; i < 3; i++ {
		h.clock.Advance(time.Hour)
		h.clock.BlockUntil(t, 2)
	}
	h.expectNoCall(t)
	if got := h.trigger.NextRun(); !got.Equal(time.Date(2025, 9, 29, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("NextRun moved: %s", got)
	}
}

func TestTriggerStopsOnCancel(t *testing.T) {
	h := startTrigger(t, 0, nil)
	h.run(t)
	h.clock.BlockUntil(t, 1)
	h.cancel()
	select {
	case err := <-h.done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
		h.done <- nil
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNewTriggerRequiresInputs(t *testing.T) {
	if _, err := NewTrigger(Options{}); err == nil {
		t.Fatal("expected error for empty options")
	}
}
