package router

import (
	"log/slog"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/smpbot/core/logger"
	tghelpers "github.com/m3rciful/smpbot/core/telegram/helpers"
)

// summarized runs fn under the handler name and logs one summary line.
func summarized(name string, fn tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		start := time.Now()
		tghelpers.WithHandler(c, name)
		err := fn(c)
		logSummary(c, name, start, logger.Status(err), err)
		return err
	}
}

func logSummary(c tele.Context, name string, start time.Time, status string, err error) {
	lvl := slog.LevelInfo
	attrs := []slog.Attr{
		slog.String("event", "handler.handled"),
		slog.String("status", status),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil {
		lvl = slog.LevelWarn
		attrs = append(attrs, slog.String("err", logger.SanitizeLimit(err.Error(), 256)))
	}
	logger.TG.LogAttrs(tghelpers.WithHandler(c, name), lvl, "", attrs...)
}

// handlerName turns "/Report now" into "report_now" for log fields.
func handlerName(cmd string) string {
	name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(cmd), "/"))
	if name == "" {
		return "unknown"
	}
	return strings.Join(strings.Fields(name), "_")
}
