package router

import (
	"time"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/smpbot/core/telegram"
)

// TextRoute handles plain text. Text that names an unrestricted command
// (for example "/help  " or "/status@smp_bot") runs that command; any
// other text goes to the registry fallback.
func TextRoute(reg *tg.Registry) tg.Route {
	return tg.Route{Endpoint: tele.OnText, Handler: func(c tele.Context) error {
		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok && cmd.Handler != nil && !cmd.Restricted {
				return summarized(handlerName(key), cmd.Handler)(c)
			}
			if fb := reg.TextFallback(); fb != nil {
				return summarized("fallback", fb)(c)
			}
		}
		logSummary(c, "unknown_text", time.Now(), "skip", nil)
		return nil
	}}
}
