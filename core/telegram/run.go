package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/smpbot/core/config"
	"github.com/m3rciful/smpbot/core/logger"
	tghelpers "github.com/m3rciful/smpbot/core/telegram/helpers"
)

// Middleware describes a global bot middleware to be registered via bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route declares a single bot handler bound to an arbitrary endpoint.
// Endpoint values are passed directly to tele.Bot.Handle.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// NewBot builds the telebot client. Unless cfg.Offline is set it calls
// getMe, which validates the token.
func NewBot(cfg coreconfig.TelegramConfig) (*tele.Bot, error) {
	timeout := PollTimeout(cfg.LongPollTimeoutSeconds)
	settings := tele.Settings{
		Token:   cfg.Token,
		Poller:  BuildPoller(cfg),
		Client:  BuildHTTPClient(timeout),
		Offline: cfg.Offline,
		OnError: onError,
	}

	start := time.Now()
	bot, err := tele.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("telegram: bot initialization failed: %s", SanitizeError(err))
	}
	attrs := []slog.Attr{
		slog.String("event", "bot.init"),
		slog.String("status", "ok"),
		slog.Bool("offline", cfg.Offline),
		slog.String("mode", cfg.RunMode),
		slog.Duration("duration", logger.Took(start)),
	}
	if bot.Me != nil && bot.Me.Username != "" {
		attrs = append(attrs, slog.String("username", bot.Me.Username))
	}
	logger.TG.LogAttrs(context.Background(), slog.LevelInfo, "", attrs...)
	return bot, nil
}

func onError(err error, c tele.Context) {
	ctx := context.Background()
	if c != nil {
		ctx = tghelpers.BuildContext(c)
	}
	logger.TG.LogAttrs(ctx, slog.LevelError, "",
		slog.String("event", "tg.error"),
		slog.String("status", "fail"),
		slog.String("err", SanitizeError(err)),
		slog.String("error_kind", ClassifyError(err)),
	)
}

// RunOptions controls the behaviour of RunCommands.
type RunOptions struct {
	Bot      *tele.Bot
	Registry *Registry

	Middlewares []Middleware
	Routes      []Route

	// KeepWebhook skips the deleteWebhook call made before polling starts.
	KeepWebhook bool
}

// RunCommands wires middlewares and routes onto the bot and receives
// updates until ctx is done. A *Webhook poller must be mounted on an HTTP
// server by the caller.
func RunCommands(ctx context.Context, opts RunOptions) error {
	if opts.Bot == nil {
		return fmt.Errorf("telegram: nil bot provided")
	}
	bot := opts.Bot
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}

	hook, webhook := bot.Poller.(*Webhook)
	mode := "polling"
	var failed <-chan error
	if webhook {
		mode = "webhook"
		failed = hook.Failed()
	} else if !opts.KeepWebhook {
		if err := bot.RemoveWebhook(false); err != nil {
			logger.TG.Warn("failed to delete webhook",
				slog.String("event", "delete_webhook"),
				slog.String("mode", mode),
				slog.String("err", SanitizeError(err)),
			)
		}
	}

	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	for _, route := range opts.Routes {
		if route.Endpoint == nil || route.Handler == nil {
			continue
		}
		bot.Handle(route.Endpoint, route.Handler)
	}
	InitBotCommands(bot, reg)

	attrs := []slog.Attr{
		slog.String("event", "mode"),
		slog.String("mode", mode),
		slog.Int("routes", len(opts.Routes)),
	}
	if webhook {
		attrs = append(attrs, slog.String("public_url", hook.PublicURL()))
	}
	logger.TG.LogAttrs(ctx, slog.LevelInfo, mode+" mode", attrs...)

	runDone := make(chan struct{})
	go func() {
		bot.Start()
		close(runDone)
	}()

	var err error
	select {
	case <-ctx.Done():
		bot.Stop()
		<-runDone
	case err = <-failed:
		bot.Stop()
		<-runDone
	case <-runDone:
	}
	logger.TG.Info(mode+" stopped", slog.String("event", "mode.stop"))
	return err
}
