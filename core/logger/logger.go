// Package logger provides the process wide structured logger and one
// scoped logger per component.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/m3rciful/smpbot/core/buildinfo"
	coreconfig "github.com/m3rciful/smpbot/core/config"
)

var (
	// L is the base logger. Until InitLogger runs it discards everything,
	// so packages can log from tests without setup.
	L = slog.New(slog.NewTextHandler(io.Discard, nil))

	APP    = L // process lifecycle
	HTTP   = L // liveness listener
	SCHED  = L // weekly trigger
	REPORT = L // report runs
	TG     = L // Telegram transport and updates
	TWire  = L // Telegram wiring
	DB     = L // database pool
	MIG    = L // migrations
)

var components = []struct {
	dst  **slog.Logger
	name string
}{
	{&APP, "app"},
	{&HTTP, "http"},
	{&SCHED, "schedule"},
	{&REPORT, "report"},
	{&TG, "tg"},
	{&TWire, "tg.wire"},
	{&DB, "db"},
	{&MIG, "db.migrate"},
}

var (
	initOnce sync.Once
	level    slog.LevelVar

	sinkMu  sync.Mutex
	writer  *asyncWriter
	closers []io.Closer
)

// InitLogger installs the structured logger described by cfg. Only the
// first call has an effect.
func InitLogger(cfg *coreconfig.Config) error {
	var err error
	initOnce.Do(func() {
		var lc coreconfig.LoggingConfig
		if cfg != nil {
			lc = cfg.Logging
		}
		level.Set(parseLevel(lc.Level))

		sinks, files, openErr := openSinks(lc)
		if openErr != nil {
			err = openErr
			return
		}
		sinkMu.Lock()
		writer = newAsyncWriter(sinks, 0)
		closers = files
		sinkMu.Unlock()

		install(slog.New(newLineHandler(handlerConfig{
			level:  &level,
			out:    writer,
			format: formatFor(lc),
		})))
		logStartup(cfg)
	})
	return err
}

func install(base *slog.Logger) {
	L = base
	slog.SetDefault(base)
	for _, c := range components {
		*c.dst = base.With("component", c.name)
	}
}

func logStartup(cfg *coreconfig.Config) {
	attrs := []slog.Attr{
		slog.String("event", "startup"),
		slog.String("go_version", runtime.Version()),
		slog.String("build_version", buildinfo.Version),
		slog.String("build_commit", buildinfo.Commit),
		slog.String("build_time", buildinfo.Date),
	}
	if cfg != nil {
		attrs = append(attrs,
			slog.String("cfg_profile", profile(cfg.Logging)),
			slog.String("tz", cfg.Schedule.Timezone),
		)
	}
	APP.LogAttrs(context.Background(), slog.LevelInfo, "startup", attrs...)
}

// Shutdown flushes pending lines and closes log files. It is safe to call
// more than once.
func Shutdown() error {
	sinkMu.Lock()
	defer sinkMu.Unlock()

	var errs []error
	if writer != nil {
		errs = append(errs, writer.Close())
		writer = nil
	}
	for _, c := range closers {
		errs = append(errs, c.Close())
	}
	closers = nil
	return errors.Join(errs...)
}

func formatFor(lc coreconfig.LoggingConfig) logFormat {
	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "json":
		return formatJSON
	case "kv", "text", "pretty":
		return formatKV
	}
	if p := profile(lc); p == "debug" || p == "dev" {
		return formatKV
	}
	return formatJSON
}

func profile(lc coreconfig.LoggingConfig) string {
	if p := strings.ToLower(strings.TrimSpace(lc.Profile)); p != "" {
		return p
	}
	return "prod"
}

// openSinks returns stdout plus LOG_DIR/LOG_FILE when a file is configured.
// A log dir that cannot be created degrades to stdout only.
func openSinks(lc coreconfig.LoggingConfig) ([]io.Writer, []io.Closer, error) {
	sinks := []io.Writer{os.Stdout}
	name := strings.TrimSpace(lc.File)
	if name == "" {
		return sinks, nil, nil
	}
	dir := strings.TrimSpace(lc.Dir)
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("logger: failed to create log dir %s: %v", dir, err)
		return sinks, nil, nil
	}
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: open log file %s: %w", path, err)
	}
	return append(sinks, f), []io.Closer{f}, nil
}

// LogEvent logs attrs under an explicit event name. A nil logger means L.
func LogEvent(ctx context.Context, l *slog.Logger, lvl slog.Level, event string, attrs ...slog.Attr) {
	if l == nil {
		l = L
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	l.LogAttrs(ctx, lvl, "", attrs...)
}
