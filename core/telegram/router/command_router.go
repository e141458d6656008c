package router

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/m3rciful/smpbot/core/logger"
	tg "github.com/m3rciful/smpbot/core/telegram"
	"github.com/m3rciful/smpbot/core/telegram/middleware"
)

// CommandRouteOptions configures how commands are wrapped.
type CommandRouteOptions struct {
	Access middleware.AccessOptions
}

// CommandRoutes returns one route per registered command and alias, in
// name order. Restricted commands are wrapped with the access check.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}
	cmds := reg.Commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)

	var routes []tg.Route
	for _, name := range names {
		def := cmds[name]
		inner := def.Handler
		if def.Restricted {
			inner = middleware.RestrictedMiddleware(opts.Access)(inner)
		}
		h := summarized(handlerName(name), inner)
		routes = append(routes, tg.Route{Endpoint: name, Handler: h})
		for _, alias := range def.Aliases {
			if alias = strings.TrimSpace(alias); alias == "" {
				continue
			}
			if !strings.HasPrefix(alias, "/") {
				alias = "/" + alias
			}
			routes = append(routes, tg.Route{Endpoint: alias, Handler: h})
		}
	}

	logger.TWire.Info("command routes ready",
		slog.String("event", "tg.wire.commands"),
		slog.Int("commands", len(cmds)),
		slog.Int("routes", len(routes)),
	)
	return routes
}
