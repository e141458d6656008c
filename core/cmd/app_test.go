package cmd

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/smpbot/core/config"
	"github.com/m3rciful/smpbot/core/storage"
)

type recordingSender struct {
	mu    sync.Mutex
	texts []string
}

func (r *recordingSender) Send(_ tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, what.(string))
	return &tele.Message{}, nil
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time                       { return c.now }
func (c fixedClock) After(time.Duration) <-chan time.Time { return make(chan time.Time) }

func testConfig(t *testing.T, mutate func(*coreconfig.Config)) *coreconfig.Config {
	t.Helper()
	cfg := &coreconfig.Config{}
	cfg.Telegram.Token = "123456:token"
	cfg.Telegram.ChatID = "-100200"
	if mutate != nil {
		mutate(cfg)
	}
	if err := coreconfig.Normalize(cfg); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	return cfg
}

func TestNewAppStartupNoticeAndRun(t *testing.T) {
	cfg := testConfig(t, func(c *coreconfig.Config) { c.Schedule.RunOnStart = true })
	sender := &recordingSender{}
	store := storage.NewMemory()
	clock := fixedClock{now: time.Date(2025, 10, 1, 3, 0, 0, 0, time.UTC)}

	app, err := NewApp(cfg, store, sender, nil, clock)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	if app.Registry != nil {
		t.Fatal("commands are disabled by default")
	}

	app.Startup(context.Background())

	if len(sender.texts) != 2 {
		t.Fatalf("sent %d messages, want notice and report", len(sender.texts))
	}
	notice := sender.texts[0]
	if !strings.Contains(notice, "every Monday at 09:00 (Asia/Seoul)") || !strings.Contains(notice, "Next run: 2025-10-06 09:00 KST") {
		t.Fatalf("notice = %q", notice)
	}
	if !strings.Contains(sender.texts[1], "Latest period: 2025-09-24 (Wed) ~ 2025-09-30 (Tue)") {
		t.Fatalf("report = %q", sender.texts[1])
	}
	run, err := store.LastRun(context.Background())
	if err != nil || run.Trigger != "startup" || run.Status != storage.StatusOK {
		t.Fatalf("last run = %+v, %v", run, err)
	}
}

func TestNewAppStartupNoticeDisabled(t *testing.T) {
	off := false
	cfg := testConfig(t, func(c *coreconfig.Config) { c.Schedule.StartupNotice = &off })
	sender := &recordingSender{}
	app, err := NewApp(cfg, storage.NewMemory(), sender, nil, fixedClock{now: time.Now()})
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	app.Startup(context.Background())
	if len(sender.texts) != 0 {
		t.Fatalf("sent = %q", sender.texts)
	}
}

func TestNewAppCommandRoutes(t *testing.T) {
	cfg := testConfig(t, func(c *coreconfig.Config) { c.Telegram.Commands = true })
	app, err := NewApp(cfg, storage.NewMemory(), &recordingSender{}, nil, fixedClock{now: time.Now()})
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	routes := app.Routes()
	// four commands plus the text route
	if len(routes) != 5 {
		t.Fatalf("routes = %d", len(routes))
	}
	if routes[len(routes)-1].Endpoint != tele.OnText {
		t.Fatalf("last route = %v, want text fallback", routes[len(routes)-1].Endpoint)
	}
}
