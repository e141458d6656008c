package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	coreconfig "github.com/m3rciful/smpbot/core/config"
	"github.com/m3rciful/smpbot/core/health"
	"github.com/m3rciful/smpbot/core/logger"
	"github.com/m3rciful/smpbot/core/report"
	"github.com/m3rciful/smpbot/core/schedule"
	"github.com/m3rciful/smpbot/core/storage"
	coretelegram "github.com/m3rciful/smpbot/core/telegram"
	"github.com/m3rciful/smpbot/core/telegram/format"
	"github.com/m3rciful/smpbot/core/telegram/handlers"
	"github.com/m3rciful/smpbot/core/telegram/middleware"
	"github.com/m3rciful/smpbot/core/telegram/router"
)

// App is the wired process: the weekly trigger, the report job, the
// liveness server and the optional command registry.
type App struct {
	Config   *coreconfig.Config
	Job      *report.Job
	Trigger  *schedule.Trigger
	Health   *health.Server
	Registry *coretelegram.Registry
}

// NewApp wires the components around store and sender.
func NewApp(cfg *coreconfig.Config, store storage.Store, sender coretelegram.Sender, source report.Source, clock schedule.Clock) (*App, error) {
	if source == nil {
		source = report.PeriodSource{}
	}
	if clock == nil {
		clock = schedule.RealClock()
	}
	loc := cfg.Schedule.Location()
	hour, minute := cfg.Schedule.Clock()

	weekly, err := schedule.NewWeekly(cfg.Schedule.Day(), hour, minute, loc)
	if err != nil {
		return nil, err
	}
	job, err := report.NewJob(report.Options{
		Source:   source,
		Notifier: coretelegram.NewNotifier(sender, cfg.Telegram.ChatID),
		Store:    store,
		Location: loc,
		Now:      clock.Now,
	})
	if err != nil {
		return nil, err
	}
	trig, err := schedule.NewTrigger(schedule.Options{
		Schedule:  weekly,
		Store:     store,
		Job:       job.Scheduled,
		Key:       job.WindowKey,
		Clock:     clock,
		KeepAlive: cfg.Schedule.KeepAlive(),
	})
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:  cfg,
		Job:     job,
		Trigger: trig,
		Health: health.New(health.Options{
			Addr:     net.JoinHostPort(cfg.HTTP.Listen, strconv.Itoa(cfg.HTTP.Port)),
			Location: loc,
			Schedule: trig,
			Now:      clock.Now,
		}),
	}
	if cfg.Telegram.Commands {
		app.Registry = coretelegram.NewRegistry()
		handlers.Register(app.Registry, handlers.Deps{Reporter: job, Schedule: trig, Location: loc})
	}
	return app, nil
}

// Routes lists the command and text routes for the bot.
func (a *App) Routes() []coretelegram.Route {
	if a.Registry == nil {
		return nil
	}
	routes := router.CommandRoutes(a.Registry, router.CommandRouteOptions{
		Access: middleware.AccessOptions{
			AdminID:       a.Config.Telegram.AdminID,
			ChatRecipient: a.Config.Telegram.ChatID,
			OnReject:      handlers.Denied,
		},
	})
	return append(routes, router.TextRoute(a.Registry))
}

// StartupNotice renders the message sent when the process starts.
func (a *App) StartupNotice() string {
	loc := a.Config.Schedule.Location()
	return fmt.Sprintf("🤖 %s\n📅 Schedule: %s\n⏭ Next run: %s",
		format.Bold("SMP report bot started"),
		format.EscapeHTML(a.Trigger.Label()),
		a.Trigger.NextRun().In(loc).Format("2006-01-02 15:04 MST"))
}

// Startup sends the startup notice and, if enabled, an immediate report.
// Failures are logged and never abort the process.
func (a *App) Startup(ctx context.Context) {
	if a.Config.Schedule.NoticeEnabled() {
		if err := a.Job.Notify(ctx, a.StartupNotice()); err != nil {
			logger.APP.Warn("startup notice failed",
				slog.String("event", "startup.notice"),
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
		}
	}
	if a.Config.Schedule.RunOnStart {
		runCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		if err := a.Job.RunNow(runCtx, report.TriggerStartup); err != nil {
			logger.APP.Warn("startup report failed",
				slog.String("event", "startup.report"),
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
		}
	}
}
