package logger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"
)

const tsLayout = "2006-01-02T15:04:05.000Z07:00"

type lineWriter interface {
	Write(p []byte) error
}

type handlerConfig struct {
	level  slog.Leveler
	out    lineWriter
	format logFormat
	order  []string
}

// lineHandler writes one flat line per record, JSON or key=value, with
// keys in a fixed order so lines diff cleanly.
type lineHandler struct {
	level  slog.Leveler
	out    lineWriter
	json   bool
	encode encoder
	rank   map[string]int

	prefix string
	attrs  []slog.Attr
}

func newLineHandler(cfg handlerConfig) *lineHandler {
	h := &lineHandler{
		level: cfg.level,
		out:   cfg.out,
		json:  cfg.format != formatKV,
	}
	if h.level == nil {
		h.level = slog.LevelInfo
	}
	order := cfg.order
	if order == nil {
		order = keyOrder
	}
	h.rank = keyRank(order)
	h.encode = encodeKV
	if h.json {
		h.encode = encodeJSON
	}
	return h
}

func (h *lineHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *lineHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.out == nil {
		return errors.New("logger: writer not initialized")
	}

	e := newEntry()
	ts := r.Time.UTC()
	e.set("ts", ts.Truncate(time.Millisecond).Format(tsLayout))
	e.set("level", levelName(r.Level))
	if h.json {
		e.set("ts_unix_nano", ts.UnixNano())
	}
	for _, a := range h.attrs {
		h.add(e, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.add(e, h.prefix, a)
		return true
	})
	FieldsFrom(ctx).apply(e)

	if e.str("event") == "" {
		event := r.Message
		if event == "" {
			event = "unknown"
		}
		e.set("event", event)
	}
	if e.str("component") == "" {
		e.set("component", "app")
	}
	if s := e.str("status"); s != "" {
		e.set("status", canonicalStatus(s))
	}
	if s := e.str("err"); s != "" {
		e.set("err", Redact(s))
	}

	var buf bytes.Buffer
	if err := h.encode(&buf, e.sorted(h.rank), e.vals); err != nil {
		return err
	}
	return h.out.Write(buf.Bytes())
}

func (h *lineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	clone.attrs = append(clone.attrs, h.attrs...)
	// stored qualified: attrs added after WithGroup belong to that group
	for _, a := range attrs {
		if h.prefix != "" && a.Key != "" {
			a.Key = h.prefix + "." + a.Key
		}
		clone.attrs = append(clone.attrs, a)
	}
	return &clone
}

func (h *lineHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	if h.prefix == "" {
		clone.prefix = name
	} else {
		clone.prefix = h.prefix + "." + name
	}
	return &clone
}

func (h *lineHandler) add(e *entry, prefix string, a slog.Attr) {
	key := a.Key
	if prefix != "" && key != "" {
		key = prefix + "." + key
	}
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		if key == "" {
			key = prefix
		}
		for _, child := range v.Group() {
			h.add(e, key, child)
		}
		return
	}
	if key == "" {
		return
	}
	if k, val, ok := fieldValue(key, v); ok {
		e.set(k, val)
	}
}

// fieldValue converts an attribute into a JSON friendly value. Durations
// are reported in milliseconds under a *_ms key.
func fieldValue(key string, v slog.Value) (string, any, bool) {
	switch v.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(v.String()), true
	case slog.KindBool:
		return key, v.Bool(), true
	case slog.KindInt64:
		return key, v.Int64(), true
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			return key, int64(u), true
		}
		return key, v.Uint64(), true
	case slog.KindFloat64:
		return key, v.Float64(), true
	case slog.KindDuration:
		return msKey(key), RoundMS(v.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, v.Time().Format(time.RFC3339), true
	}
	switch x := v.Any().(type) {
	case nil:
		return "", nil, false
	case time.Duration:
		return msKey(key), RoundMS(x).Milliseconds(), true
	case error:
		return key, x.Error(), true
	case fmt.Stringer:
		return key, x.String(), true
	default:
		return key, fmt.Sprint(x), true
	}
}

func msKey(key string) string {
	switch {
	case key == "duration":
		return "duration_ms"
	case strings.HasSuffix(key, "_ms"):
		return key
	}
	return key + "_ms"
}
