package middleware

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/smpbot/core/logger"
	tghelpers "github.com/m3rciful/smpbot/core/telegram/helpers"
)

// AccessOptions lists who may run restricted commands.
type AccessOptions struct {
	AdminID int64
	// ChatRecipient is the report chat as configured: a numeric id or @username.
	ChatRecipient string
	OnReject      tele.HandlerFunc
}

// Allowed reports whether the update comes from the admin or from the report chat.
func (o AccessOptions) Allowed(c tele.Context) bool {
	if user := c.Sender(); user != nil && o.AdminID != 0 && user.ID == o.AdminID {
		return true
	}
	chat := c.Chat()
	if chat == nil || o.ChatRecipient == "" {
		return false
	}
	if chat.Recipient() == o.ChatRecipient {
		return true
	}
	return chat.Username != "" && "@"+chat.Username == o.ChatRecipient
}

// RestrictedMiddleware lets only allowed senders reach next.
func RestrictedMiddleware(opts AccessOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if opts.Allowed(c) {
				return next(c)
			}
			logger.TG.LogAttrs(tghelpers.BuildContext(c), slog.LevelWarn, "",
				slog.String("event", "tg.access_denied"),
				slog.String("status", "skip"),
			)
			if opts.OnReject != nil {
				return opts.OnReject(c)
			}
			return nil
		}
	}
}
