package telegram

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/smpbot/core/logger"
	"github.com/m3rciful/smpbot/core/telegram/commands"
)

// Registry holds the bot commands, their aliases and the plain text fallback.
type Registry struct {
	commands map[string]commands.Command
	aliases  map[string]string
	fallback tele.HandlerFunc
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]commands.Command),
		aliases:  make(map[string]string),
	}
}

// RegisterCommand adds cmd under name, which must start with a slash.
// Invalid and duplicate registrations are logged and ignored.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) {
	if err := r.add(name, cmd); err != nil {
		logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, "",
			slog.String("event", "register.command.skip"),
			slog.String("name", name),
			slog.String("cause", err.Error()),
		)
	}
}

func (r *Registry) add(name string, cmd commands.Command) error {
	switch {
	case cmd.Handler == nil:
		return errors.New("nil handler")
	case cmd.Description == "":
		return errors.New("missing description")
	case !strings.HasPrefix(name, "/"):
		return errors.New("missing slash prefix")
	}
	if _, dup := r.commands[name]; dup {
		return errors.New("duplicate")
	}
	r.commands[name] = cmd
	for _, alias := range cmd.Aliases {
		key := commandKey(alias)
		if _, taken := r.commands[key]; taken || key == "/" {
			continue
		}
		if _, taken := r.aliases[key]; !taken {
			r.aliases[key] = name
		}
	}
	return nil
}

// commandKey reduces "status@smp_bot now" to "/status".
func commandKey(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexAny(text, " @"); i >= 0 {
		text = text[:i]
	}
	return "/" + strings.TrimPrefix(text, "/")
}

// ListCommands returns commands sorted by name, optionally without hidden ones.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	list := make([]tele.Command, 0, len(r.commands))
	for name, cmd := range r.commands {
		if visibleOnly && cmd.Hidden {
			continue
		}
		list = append(list, tele.Command{Text: strings.TrimPrefix(name, "/"), Description: cmd.Description})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Text < list[j].Text })
	return list
}

// LookupCommand resolves text naming a command or alias to its
// registered name.
func (r *Registry) LookupCommand(text string) (string, commands.Command, bool) {
	key := commandKey(text)
	if target, ok := r.aliases[key]; ok {
		key = target
	}
	cmd, ok := r.commands[key]
	if !ok {
		return "", commands.Command{}, false
	}
	return key, cmd, true
}

// Commands returns the registered commands keyed by name.
func (r *Registry) Commands() map[string]commands.Command { return r.commands }

// SetTextFallback sets the handler for text that names no command.
func (r *Registry) SetTextFallback(h tele.HandlerFunc) { r.fallback = h }

func (r *Registry) TextFallback() tele.HandlerFunc { return r.fallback }

// InitBotCommands publishes the visible commands to the Telegram menu.
// A failure is logged; the bot keeps working without the menu.
func InitBotCommands(bot *tele.Bot, reg *Registry) {
	list := reg.ListCommands(true)
	if err := bot.SetCommands(list); err != nil {
		logger.TWire.LogAttrs(context.Background(), slog.LevelError, "",
			slog.String("event", "register.commands.set"),
			slog.String("status", "fail"),
			slog.String("err", SanitizeError(err)),
		)
		return
	}
	logger.TWire.LogAttrs(context.Background(), slog.LevelInfo, "",
		slog.String("event", "register.commands.set"),
		slog.Int("commands", len(list)),
	)
}
