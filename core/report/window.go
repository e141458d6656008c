// Package report builds and delivers the weekly report message.
package report

import (
	"fmt"
	"time"
)

// Trigger names what started a run.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerStartup   Trigger = "startup"
	TriggerManual    Trigger = "manual"
)

// Window is the reporting period: seven whole days, Start through End inclusive.
type Window struct {
	Start   time.Time
	End     time.Time
	Key     string
	Trigger Trigger
}

// WindowFor returns the seven days ending the day before at, in loc.
// For a Monday fire that is the previous Monday through Sunday.
func WindowFor(at time.Time, loc *time.Location, trig Trigger) Window {
	if loc == nil {
		loc = time.UTC
	}
	local := at.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	end := today.AddDate(0, 0, -1)
	start := end.AddDate(0, 0, -6)
	return Window{Start: start, End: end, Key: WeekKey(start), Trigger: trig}
}

// WeekKey formats the ISO week of t, e.g. "2025-W39".
func WeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// Label renders the period as "2025-09-22 (Mon) ~ 2025-09-28 (Sun)".
func (w Window) Label() string {
	return fmt.Sprintf("%s (%s) ~ %s (%s)",
		w.Start.Format(time.DateOnly), w.Start.Format("Mon"),
		w.End.Format(time.DateOnly), w.End.Format("Mon"))
}
