package telegram

import (
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/smpbot/core/config"
)

const defaultLongPollSeconds = 10

// allowedUpdates limits delivery to the update kinds the bot handles.
var allowedUpdates = []string{"message"}

// PollTimeout converts the configured seconds into a poll duration.
func PollTimeout(seconds int) time.Duration {
	if seconds <= 0 {
		seconds = defaultLongPollSeconds
	}
	return time.Duration(seconds) * time.Second
}

// BuildPoller returns a *Webhook in webhook mode and a long poller otherwise.
func BuildPoller(cfg coreconfig.TelegramConfig) tele.Poller {
	if cfg.UsesWebhook() {
		return NewWebhook(cfg.Webhook)
	}
	return &tele.LongPoller{
		Timeout:        PollTimeout(cfg.LongPollTimeoutSeconds),
		AllowedUpdates: allowedUpdates,
	}
}
