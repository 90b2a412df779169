// Package clock implements the temporal predicates behind reminder
// scheduling: daily active windows, weekday policy, and the search for
// the next valid firing instant.
//
// Everything here is pure. The scheduler service owns all state and
// timers; this package only answers "is this instant allowed?" and
// "when is the next allowed instant?".
package clock

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time within a day, minute resolution.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM" (24h).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return TimeOfDay{}, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return TimeOfDay{}, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid minute in %q", s)
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Minutes returns minutes since midnight.
func (t TimeOfDay) Minutes() int { return t.Hour*60 + t.Minute }

// At pins the time-of-day onto the calendar date of base, in base's location.
func (t TimeOfDay) At(base time.Time) time.Time {
	return time.Date(base.Year(), base.Month(), base.Day(), t.Hour, t.Minute, 0, 0, base.Location())
}

// Window is the daily range during which reminders may fire, plus the
// weekend policy.
//
// The window is inclusive on both ends and does not wrap midnight: a
// window with Start > End is empty and never matches. That matches the
// shipped product behavior for overnight ranges, so it stays that way
// until a deliberate product change; callers surface it as a
// configuration error instead of guessing.
type Window struct {
	Start    TimeOfDay
	End      TimeOfDay
	Weekends bool // false excludes Saturday and Sunday entirely
}

// Contains reports whether t's time-of-day lies in [Start, End].
func (w Window) Contains(t time.Time) bool {
	start := w.Start.Minutes()
	end := w.End.Minutes()
	if start > end {
		return false
	}
	m := t.Hour()*60 + t.Minute()
	return m >= start && m <= end
}

// AllowsDay reports whether reminders may fire on t's weekday.
func (w Window) AllowsDay(t time.Time) bool {
	if w.Weekends {
		return true
	}
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// Empty reports whether the window can never match (Start > End).
func (w Window) Empty() bool { return w.Start.Minutes() > w.End.Minutes() }

// maxDayAdvance bounds the day-by-day search in Next. A weekend block is
// at most two days, so this is generous.
const maxDayAdvance = 8

// Next computes the next instant at or after now+interval that lies
// inside the window on an allowed day.
//
// The candidate starts at now+interval. If it falls outside the daily
// window it rolls to the NEXT calendar day at the window start; the
// interval is not reapplied after rolling. If the resulting day is
// disallowed the candidate advances day by day, pinned to the window
// start, until an allowed day is found (Saturday and Sunday collapse to
// Monday).
//
// ok is false when the window is empty, i.e. no valid occurrence
// exists. The returned instant is never before now.
func (w Window) Next(now time.Time, interval time.Duration) (next time.Time, ok bool) {
	if w.Empty() {
		return time.Time{}, false
	}
	if interval <= 0 {
		interval = time.Minute
	}

	candidate := now.Add(interval)
	if !w.Contains(candidate) {
		candidate = w.Start.At(candidate.AddDate(0, 0, 1))
	}
	for i := 0; !w.AllowsDay(candidate); i++ {
		if i >= maxDayAdvance {
			return time.Time{}, false
		}
		candidate = w.Start.At(candidate.AddDate(0, 0, 1))
	}
	if candidate.Before(now) {
		// Defensive: cannot happen for positive intervals, but the
		// contract is "never in the past".
		candidate = w.Start.At(now.AddDate(0, 0, 1))
	}
	return candidate, true
}
