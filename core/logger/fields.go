package logger

import (
	"log/slog"
	"strings"
)

// keyOrder fixes the position of well known keys. Keys not listed follow
// in alphabetical order.
var keyOrder = []string{
	// envelope
	"ts", "level", "component", "event", "status",
	// report run
	"run_id", "trigger", "window",
	// correlation
	"rid", "ts_unix_nano",
	// telegram update
	"update_id", "user_id", "chat_id", "chat_type", "handler",
	// measurements
	"duration_ms", "parts", "part", "chars",
	// schedule
	"next_run", "schedule", "tz",
	// http
	"method", "path", "http_code", "listen",
	// store
	"mode", "db", "host", "port",
	// failure details last
	"err", "error_kind", "cause",
}

func keyRank(order []string) map[string]int {
	rank := make(map[string]int, len(order))
	for i, k := range order {
		if _, dup := rank[k]; !dup {
			rank[k] = i
		}
	}
	return rank
}

// Status values recognised by dashboards. Anything else is kept lowercased.
const (
	statusOK        = "ok"
	statusFail      = "fail"
	statusSkip      = "skip"
	statusCancelled = "cancelled"
)

func canonicalStatus(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "error", "failed", "failure":
		return statusFail
	case "canceled":
		return statusCancelled
	case "skipped":
		return statusSkip
	}
	return s
}

// levelName renders slog levels the same way regardless of offsets,
// so DEBUG-2 still reads DEBUG.
func levelName(l slog.Level) string {
	switch {
	case l < slog.LevelInfo:
		return "DEBUG"
	case l < slog.LevelWarn:
		return "INFO"
	case l < slog.LevelError:
		return "WARN"
	default:
		return "ERROR"
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
