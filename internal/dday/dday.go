// Package dday turns a target date into the relative-day text shown in the
// list and on the widget ("D-5", "오늘", "3일").
package dday

import (
	"fmt"
	"time"
)

// Labels is one locale's set of label formats.
type Labels struct {
	Today string
	// Countdown formats diff >= 1.
	Countdown func(days int) string
	// Elapsed formats diff < 0. It receives the already offset value (-diff + 1).
	Elapsed func(days int) string
}

var (
	Korean = Labels{
		Today:     "오늘",
		Countdown: func(n int) string { return fmt.Sprintf("D-%d", n) },
		Elapsed:   func(n int) string { return fmt.Sprintf("%d일", n) },
	}
	English = Labels{
		Today:     "Today",
		Countdown: func(n int) string { return fmt.Sprintf("D-%d", n) },
		Elapsed:   func(n int) string { return fmt.Sprintf("%d days", n) },
	}
)

// LabelsFor returns the label set for a config locale. Anything other than
// "en" gets the Korean set.
func LabelsFor(locale string) Labels {
	if locale == "en" {
		return English
	}
	return Korean
}

// StartOfDay truncates t to local midnight in t's own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// NextMidnight returns the first local midnight strictly after now.
func NextMidnight(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
}

// UntilNextMidnight is the delay a one-shot day-rollover timer should use.
func UntilNextMidnight(now time.Time) time.Duration {
	return NextMidnight(now).Sub(now)
}

// DaysBetween counts whole calendar days from reference's day to target's day.
// Both are read in reference's location, so time-of-day and DST shifts do not
// matter.
func DaysBetween(reference, target time.Time) int {
	loc := reference.Location()
	ry, rm, rd := reference.Date()
	ty, tm, td := target.In(loc).Date()
	// Calendar arithmetic in UTC has no DST gaps, so every day is 24h.
	r := time.Date(ry, rm, rd, 0, 0, 0, 0, time.UTC)
	t := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(t.Sub(r).Hours() / 24)
}

// Label formats target relative to reference.
//
//   - same day   → Today
//   - diff >= 1  → D-{diff}
//   - diff < 0   → Elapsed(-diff + 1)
//
// The +1 on elapsed days counts the target day itself as day one.
// TODO(product): confirm the +1 elapsed offset; it has been kept unchanged
// across every release so far.
func (l Labels) Label(target, reference time.Time) string {
	diff := DaysBetween(reference, target)
	switch {
	case diff == 0:
		return l.Today
	case diff >= 1:
		return l.Countdown(diff)
	default:
		return l.Elapsed(-diff + 1)
	}
}

// Label uses the Korean label set.
func Label(target, reference time.Time) string {
	return Korean.Label(target, reference)
}

// Expired reports whether target's day is strictly before reference's day.
func Expired(target, reference time.Time) bool {
	return DaysBetween(reference, target) < 0
}
