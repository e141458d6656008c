// Package handlers implements the interactive bot commands.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/smpbot/core/logger"
	"github.com/m3rciful/smpbot/core/report"
	"github.com/m3rciful/smpbot/core/storage"
	tg "github.com/m3rciful/smpbot/core/telegram"
	"github.com/m3rciful/smpbot/core/telegram/commands"
	"github.com/m3rciful/smpbot/core/telegram/format"
	tghelpers "github.com/m3rciful/smpbot/core/telegram/helpers"
)

const manualRunTimeout = 2 * time.Minute

// Reporter runs reports on demand and exposes run history.
type Reporter interface {
	RunNow(ctx context.Context, trig report.Trigger) error
	LastRun(ctx context.Context) (storage.Run, error)
}

// Schedule exposes the upcoming fire time.
type Schedule interface {
	NextRun() time.Time
	Label() string
}

// Deps are the collaborators used by the command handlers.
type Deps struct {
	Reporter Reporter
	Schedule Schedule
	Location *time.Location
}

type handlers struct {
	deps Deps
}

// Register adds /start, /help, /status and /report plus the text fallback to reg.
func Register(reg *tg.Registry, deps Deps) {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	h := &handlers{deps: deps}
	reg.RegisterCommand("/start", commands.Command{Handler: h.start, Description: "Welcome and usage"})
	reg.RegisterCommand("/help", commands.Command{Handler: h.help, Description: "List commands and the schedule"})
	reg.RegisterCommand("/status", commands.Command{Handler: h.status, Description: "Next and last report run"})
	reg.RegisterCommand("/report", commands.Command{Handler: h.report, Description: "Send the report now", Restricted: true})
	reg.SetTextFallback(h.fallback)
}

func (h *handlers) start(c tele.Context) error {
	name := "there"
	if u := c.Sender(); u != nil && u.FirstName != "" {
		name = u.FirstName
	}
	text := fmt.Sprintf("Hello, %s!\nThis bot posts the SMP weekly report %s.\n\n%s",
		format.EscapeHTML(name), format.EscapeHTML(h.scheduleLabel()), usage)
	return tghelpers.SendHTML(c, text)
}

const usage = `/help - list commands
/status - next and last run
/report - send the report now (admin only)`

func (h *handlers) help(c tele.Context) error {
	var b strings.Builder
	b.WriteString(format.Bold("Commands"))
	b.WriteByte('\n')
	b.WriteString(usage)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Schedule: %s\nTimezone: %s",
		format.EscapeHTML(h.scheduleLabel()), format.EscapeHTML(h.deps.Location.String()))
	return tghelpers.SendHTML(c, b.String())
}

func (h *handlers) status(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	var b strings.Builder
	b.WriteString(format.Bold("Status"))
	b.WriteByte('\n')
	if h.deps.Schedule != nil {
		next := h.deps.Schedule.NextRun()
		if !next.IsZero() {
			fmt.Fprintf(&b, "Next run: %s\n", next.In(h.deps.Location).Format("2006-01-02 15:04 MST"))
		}
	}

	run, err := h.deps.Reporter.LastRun(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		b.WriteString("Last run: none yet")
	case err != nil:
		logger.TG.LogAttrs(ctx, slog.LevelWarn, "",
			slog.String("event", "status.last_run"),
			slog.String("err", err.Error()),
		)
		b.WriteString("Last run: unavailable")
	default:
		fmt.Fprintf(&b, "Last run: %s (%s, %s, window %s)",
			run.StartedAt.In(h.deps.Location).Format("2006-01-02 15:04 MST"),
			format.EscapeHTML(run.Status), format.EscapeHTML(run.Trigger), format.EscapeHTML(run.WindowKey))
	}
	return tghelpers.SendHTML(c, b.String())
}

func (h *handlers) report(c tele.Context) error {
	ctx, cancel := context.WithTimeout(tghelpers.BuildContext(c), manualRunTimeout)
	defer cancel()

	err := h.deps.Reporter.RunNow(ctx, report.TriggerManual)
	switch {
	case err == nil:
		return tghelpers.SendText(c, "Report sent.")
	case errors.Is(err, report.ErrRunInProgress):
		return tghelpers.SendText(c, "A report is already being sent, try again shortly.")
	default:
		if sendErr := tghelpers.SendText(c, "Report failed, see the logs for details."); sendErr != nil {
			return sendErr
		}
		return err
	}
}

// Denied is the reply for senders not allowed to run restricted commands.
func Denied(c tele.Context) error {
	return tghelpers.SendText(c, "Sorry, this command is limited to the report chat and the admin.")
}

// RateLimited is the reply for users hitting the rate limit.
func RateLimited(c tele.Context) error {
	return tghelpers.SendText(c, "Too many requests, slow down a little.")
}

func (h *handlers) fallback(c tele.Context) error {
	if c.Chat() != nil && c.Chat().Type != tele.ChatPrivate {
		return nil
	}
	return tghelpers.SendText(c, "I only understand commands. Try /help.")
}

func (h *handlers) scheduleLabel() string {
	if h.deps.Schedule == nil {
		return ""
	}
	return h.deps.Schedule.Label()
}
