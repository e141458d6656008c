// Package schedule fires a job once a week at a fixed wall-clock time.
package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Weekly is a recurrence on one weekday at HH:MM in a fixed location.
type Weekly struct {
	day    time.Weekday
	hour   int
	minute int
	loc    *time.Location
	spec   cron.Schedule
}

// NewWeekly builds the recurrence. loc defaults to UTC.
func NewWeekly(day time.Weekday, hour, minute int, loc *time.Location) (*Weekly, error) {
	if day < time.Sunday || day > time.Saturday {
		return nil, fmt.Errorf("schedule: invalid weekday %d", day)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return nil, fmt.Errorf("schedule: invalid time %02d:%02d", hour, minute)
	}
	if loc == nil {
		loc = time.UTC
	}
	spec, err := cron.ParseStandard(fmt.Sprintf("%d %d * * %d", minute, hour, int(day)))
	if err != nil {
		return nil, fmt.Errorf("schedule: %w", err)
	}
	return &Weekly{day: day, hour: hour, minute: minute, loc: loc, spec: spec}, nil
}

// Next returns the first occurrence strictly after t, expressed in the
// recurrence location.
func (w *Weekly) Next(t time.Time) time.Time {
	return w.spec.Next(t.In(w.loc))
}

// Location returns the zone the recurrence is evaluated in.
func (w *Weekly) Location() *time.Location { return w.loc }

// Label renders e.g. "every Monday at 09:00 (Asia/Seoul)".
func (w *Weekly) Label() string {
	return fmt.Sprintf("every %s at %02d:%02d (%s)", w.day, w.hour, w.minute, w.loc)
}
