package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/smpbot/core/logger"
	tghelpers "github.com/m3rciful/smpbot/core/telegram/helpers"
)

// RecoverMiddleware turns a handler panic into an error so one bad
// update cannot stop the poller.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			err = fmt.Errorf("handler panic: %v", r)
			logger.TG.LogAttrs(tghelpers.BuildContext(c), slog.LevelError, "",
				slog.String("event", "tg.panic"),
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
				slog.String("stack", string(debug.Stack())),
			)
		}()
		return next(c)
	}
}
