package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/smpbot/core/logger"
	"github.com/m3rciful/smpbot/core/telegram/format"
)

// DefaultPartPause separates consecutive parts of a split message.
const DefaultPartPause = time.Second

// Sender is the subset of *tele.Bot used for outbound messages.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// ChatRecipient addresses a chat by numeric id or @channelusername.
type ChatRecipient string

// Recipient implements tele.Recipient.
func (r ChatRecipient) Recipient() string { return string(r) }

// SendError reports which part of a message failed. Its text is token free.
type SendError struct {
	Part, Parts int
	Err         error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send part %d/%d: %s", e.Part, e.Parts, SanitizeError(e.Err))
}

func (e *SendError) Unwrap() error { return e.Err }

// Notifier delivers HTML text to a single chat.
type Notifier struct {
	sender Sender
	to     tele.Recipient
	max    int
	pause  time.Duration
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewNotifier targets chatID through sender.
func NewNotifier(sender Sender, chatID string) *Notifier {
	return &Notifier{
		sender: sender,
		to:     ChatRecipient(strings.TrimSpace(chatID)),
		max:    format.MaxMessageUnits,
		pause:  DefaultPartPause,
		sleep:  sleepCtx,
	}
}

// Send delivers text, splitting it into "[Part n]" messages when it exceeds
// the message limit. It returns the number of messages sent.
func (n *Notifier) Send(ctx context.Context, text string) (int, error) {
	parts := format.Split(text, n.max)
	if len(parts) > 1 {
		for i := range parts {
			parts[i] = fmt.Sprintf("[Part %d]\n%s", i+1, parts[i])
		}
	}

	opts := &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: true,
	}
	start := time.Now()
	sent := 0
	for i, part := range parts {
		if i > 0 {
			if err := n.sleep(ctx, n.pause); err != nil {
				return sent, err
			}
		}
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		partStart := time.Now()
		if _, err := n.sender.Send(n.to, part, opts); err != nil {
			logger.TG.LogAttrs(ctx, slog.LevelError, "",
				slog.String("event", "send.fail"),
				slog.String("status", "fail"),
				slog.Int("part", i+1),
				slog.Int("parts", len(parts)),
				slog.String("err", SanitizeError(err)),
				slog.String("error_kind", ClassifyError(err)),
				slog.Duration("duration", logger.Took(partStart)),
			)
			return sent, &SendError{Part: i + 1, Parts: len(parts), Err: err}
		}
		sent++
		logger.TG.LogAttrs(ctx, slog.LevelDebug, "",
			slog.String("event", "send.part"),
			slog.String("status", "ok"),
			slog.Int("part", i+1),
			slog.Int("chars", format.Units(part)),
			slog.Duration("duration", logger.Took(partStart)),
		)
	}
	logger.TG.LogAttrs(ctx, slog.LevelInfo, "",
		slog.String("event", "send.done"),
		slog.String("status", "ok"),
		slog.Int("parts", sent),
		slog.Duration("duration", logger.Took(start)),
	)
	return sent, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
