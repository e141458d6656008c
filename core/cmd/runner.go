package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/smpbot/core/bootstrap"
	"github.com/m3rciful/smpbot/core/buildinfo"
	coreconfig "github.com/m3rciful/smpbot/core/config"
	"github.com/m3rciful/smpbot/core/logger"
	"github.com/m3rciful/smpbot/core/report"
	coretelegram "github.com/m3rciful/smpbot/core/telegram"
	"github.com/m3rciful/smpbot/core/telegram/handlers"
)

// Options describe how to load configuration, bootstrap the app, and run it.
// Zero values select the production implementations.
type Options struct {
	ConfigEnvVar string

	LoadConfig     func(path string) (*coreconfig.Config, error)
	Bootstrap      func(ctx context.Context, cfg *coreconfig.Config) (*bootstrap.Result, error)
	NewBot         func(cfg coreconfig.TelegramConfig) (*tele.Bot, error)
	Source         report.Source
	ShutdownLogger func() error
}

// Run loads configuration, wires the app and runs the liveness server,
// the weekly trigger and the optional command bot until SIGINT or SIGTERM.
func Run(opts Options) error {
	startedAt := time.Now()
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	env := opts.ConfigEnvVar
	if env == "" {
		env = "CONFIG_PATH"
	}
	load := opts.LoadConfig
	if load == nil {
		load = coreconfig.Load
	}
	cfgPath := os.Getenv(env)
	if cfgPath != "" {
		log.Printf("loading config: %s", cfgPath)
	}
	cfg, err := load(cfgPath)
	if err != nil {
		return fmt.Errorf("cmd: failed to load config: %w", err)
	}

	// Bootstrap installs the logger before it touches the database, so
	// the flush is registered first to cover a failed migration.
	shutdownLogger := opts.ShutdownLogger
	if shutdownLogger == nil {
		shutdownLogger = logger.Shutdown
	}
	defer func() {
		if err := shutdownLogger(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()

	boot := opts.Bootstrap
	if boot == nil {
		boot = func(ctx context.Context, cfg *coreconfig.Config) (*bootstrap.Result, error) {
			return bootstrap.Run(ctx, bootstrap.Options{Config: cfg})
		}
	}
	infra, err := boot(ctx, cfg)
	if err != nil {
		logger.APP.Error("bootstrap failed",
			slog.String("event", "bootstrap"),
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("cmd: bootstrap failed: %w", err)
	}
	defer func() {
		if err := infra.Close(); err != nil {
			logger.DB.Warn("db close failed", slog.String("event", "db.close"), slog.String("err", err.Error()))
		}
	}()

	newBot := opts.NewBot
	if newBot == nil {
		newBot = coretelegram.NewBot
	}
	bot, err := newBot(cfg.Telegram)
	if err != nil {
		return fmt.Errorf("cmd: %w", err)
	}

	app, err := NewApp(cfg, infra.Store, bot, opts.Source, nil)
	if err != nil {
		return fmt.Errorf("cmd: wiring failed: %w", err)
	}
	if hook, ok := bot.Poller.(*coretelegram.Webhook); ok {
		app.Health.Mount(cfg.Telegram.Webhook.Path, hook)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.Health.Run(gctx) })
	g.Go(func() error { return app.Trigger.Run(gctx) })
	if app.Registry != nil {
		g.Go(func() error {
			return coretelegram.RunCommands(gctx, coretelegram.RunOptions{
				Bot:         bot,
				Registry:    app.Registry,
				Middlewares: coretelegram.DefaultMiddlewares(cfg, handlers.RateLimited),
				Routes:      app.Routes(),
			})
		})
	}
	g.Go(func() error {
		app.Startup(gctx)
		return nil
	})

	logger.APP.Info("app ready",
		slog.String("event", "ready"),
		slog.String("version", buildinfo.String()),
		slog.String("schedule", app.Trigger.Label()),
		slog.String("next_run", app.Trigger.NextRun().Format(time.RFC3339)),
		slog.Bool("commands", app.Registry != nil),
		slog.String("run_mode", cfg.Telegram.RunMode),
		slog.Duration("startup_duration", logger.RoundMS(time.Since(startedAt))),
	)

	err = g.Wait()
	logger.APP.Info("shutting down...", slog.String("event", "shutdown"))
	return err
}
