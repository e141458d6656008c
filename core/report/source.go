package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/m3rciful/smpbot/core/telegram/format"
)

// Source produces the report body for a window. The text is Telegram HTML.
type Source interface {
	Build(ctx context.Context, w Window) (string, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, w Window) (string, error)

// Build calls f.
func (f SourceFunc) Build(ctx context.Context, w Window) (string, error) {
	return f(ctx, w)
}

// PeriodSource renders only the report header with the covered period.
type PeriodSource struct {
	Title string
}

// Build renders the title and the period. Scheduled windows read
// "Period", other triggers "Latest period".
func (p PeriodSource) Build(_ context.Context, w Window) (string, error) {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		title = "SMP weekly report"
	}
	var b strings.Builder
	b.WriteString(format.Bold(format.EscapeHTML(title)))
	b.WriteByte('\n')
	if w.Trigger == TriggerScheduled {
		fmt.Fprintf(&b, "Period: %s", w.Label())
	} else {
		fmt.Fprintf(&b, "Latest period: %s", w.Label())
	}
	return b.String(), nil
}
