package report

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m3rciful/smpbot/core/storage"
)

// fakeNotifier records texts. With failFirst only the first send fails.
type fakeNotifier struct {
	mu        sync.Mutex
	texts     []string
	err       error
	failFirst bool
	block     chan struct{}
}

func (f *fakeNotifier) Send(_ context.Context, text string) (int, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	first := len(f.texts) == 0
	f.texts = append(f.texts, text)
	if f.err != nil && (!f.failFirst || first) {
		return 0, f.err
	}
	return 1, nil
}

func (f *fakeNotifier) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

func newTestJob(t *testing.T, src Source, n Notifier) (*Job, *storage.Memory) {
	t.Helper()
	store := storage.NewMemory()
	job, err := NewJob(Options{
		Source:   src,
		Notifier: n,
		Store:    store,
		Location: kst,
		Now:      func() time.Time { return time.Date(2025, 9, 29, 9, 0, 0, 0, kst) },
	})
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	return job, store
}

func TestJobScheduledSendsPeriodHeader(t *testing.T) {
	n := &fakeNotifier{}
	job, store := newTestJob(t, PeriodSource{}, n)

	if err := job.Scheduled(context.Background(), time.Date(2025, 9, 29, 9, 0, 0, 0, kst)); err != nil {
		t.Fatalf("Scheduled: %v", err)
	}
	sent := n.sent()
	if len(sent) != 1 {
		t.Fatalf("sent %d messages", len(sent))
	}
	if !strings.Contains(sent[0], "<b>SMP weekly report</b>") || !strings.Contains(sent[0], "Period: 2025-09-22 (Mon) ~ 2025-09-28 (Sun)") {
		t.Fatalf("unexpected text: %q", sent[0])
	}

	run, err := store.LastRun(context.Background())
	if err != nil {
		t.Fatalf("LastRun: %v", err)
	}
	if run.Status != storage.StatusOK || run.WindowKey != "2025-W39" || run.Trigger != "scheduled" || run.Parts != 1 {
		t.Fatalf("unexpected run: %+v", run)
	}
}

func TestJobSourceFailureSendsNotice(t *testing.T) {
	n := &fakeNotifier{}
	boom := errors.New("upstream <down>")
	src := SourceFunc(func(context.Context, Window) (string, error) { return "", boom })
	job, store := newTestJob(t, src, n)

	err := job.RunNow(context.Background(), TriggerManual)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped source error", err)
	}
	sent := n.sent()
	if len(sent) != 1 || !strings.Contains(sent[0], "failed") || !strings.Contains(sent[0], "upstream &lt;down&gt;") {
		t.Fatalf("notice = %q", sent)
	}
	run, _ := store.LastRun(context.Background())
	if run.Status != storage.StatusFail || run.Trigger != "manual" || !strings.Contains(run.Error, "upstream") {
		t.Fatalf("unexpected run: %+v", run)
	}
}

func TestJobSendFailureRecordsFail(t *testing.T) {
	n := &fakeNotifier{err: errors.New("chat not found"), failFirst: true}
	job, store := newTestJob(t, PeriodSource{Title: "Weekly"}, n)

	if err := job.RunNow(context.Background(), TriggerStartup); err == nil {
		t.Fatal("expected error")
	}
	if sent := n.sent(); len(sent) != 2 || !strings.HasPrefix(sent[0], "<b>Weekly</b>\nLatest period:") {
		t.Fatalf("sent = %q", sent)
	}
	run, _ := store.LastRun(context.Background())
	if run.Status != storage.StatusFail || run.FinishedAt == nil {
		t.Fatalf("unexpected run: %+v", run)
	}
}

func TestJobRejectsConcurrentRun(t *testing.T) {
	n := &fakeNotifier{block: make(chan struct{})}
	job, _ := newTestJob(t, PeriodSource{}, n)

	done := make(chan error, 1)
	go func() { done <- job.RunNow(context.Background(), TriggerManual) }()
	waitRunStarted(t, job)

	if err := job.RunNow(context.Background(), TriggerManual); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("second run err = %v, want ErrRunInProgress", err)
	}
	close(n.block)
	if err := <-done; err != nil {
		t.Fatalf("first run: %v", err)
	}
}

func waitRunStarted(t *testing.T, job *Job) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := job.LastRun(context.Background()); err == nil {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("first run never started")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestJobScheduledWaitsForManualRun(t *testing.T) {
	n := &fakeNotifier{block: make(chan struct{})}
	job, store := newTestJob(t, PeriodSource{}, n)

	manual := make(chan error, 1)
	go func() { manual <- job.RunNow(context.Background(), TriggerManual) }()
	waitRunStarted(t, job)

	fireAt := time.Date(2025, 9, 29, 9, 0, 0, 0, kst)
	scheduled := make(chan error, 1)
	go func() { scheduled <- job.Scheduled(context.Background(), fireAt) }()
	select {
	case err := <-scheduled:
		t.Fatalf("scheduled run returned while manual run in flight: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	close(n.block)
	if err := <-manual; err != nil {
		t.Fatalf("manual run: %v", err)
	}
	if err := <-scheduled; err != nil {
		t.Fatalf("scheduled run: %v", err)
	}
	run, err := store.LastRun(context.Background())
	if err != nil {
		t.Fatalf("LastRun: %v", err)
	}
	if run.Trigger != string(TriggerScheduled) || run.WindowKey != "2025-W39" || run.Status != storage.StatusOK {
		t.Fatalf("last run = %+v", run)
	}
	if sent := n.sent(); len(sent) != 2 || !strings.Contains(sent[1], "Period: 2025-09-22 (Mon) ~ 2025-09-28 (Sun)") {
		t.Fatalf("sent = %q", sent)
	}
}

func TestJobScheduledWaitStopsOnCancel(t *testing.T) {
	n := &fakeNotifier{block: make(chan struct{})}
	job, _ := newTestJob(t, PeriodSource{}, n)

	manual := make(chan error, 1)
	go func() { manual <- job.RunNow(context.Background(), TriggerManual) }()
	waitRunStarted(t, job)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := job.Scheduled(ctx, time.Date(2025, 9, 29, 9, 0, 0, 0, kst))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	close(n.block)
	if err := <-manual; err != nil {
		t.Fatalf("manual run: %v", err)
	}
}

func TestJobNotify(t *testing.T) {
	n := &fakeNotifier{}
	job, _ := newTestJob(t, PeriodSource{}, n)
	if err := job.Notify(context.Background(), "started"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if sent := n.sent(); len(sent) != 1 || sent[0] != "started" {
		t.Fatalf("sent = %q", sent)
	}
}

func TestNewJobRequiresDependencies(t *testing.T) {
	if _, err := NewJob(Options{}); err == nil {
		t.Fatal("expected error")
	}
}
