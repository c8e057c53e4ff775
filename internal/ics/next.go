package ics

import (
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"dday/internal/dday"
	appLog "dday/internal/log"
	"dday/internal/model"
)

// ErrNoUpcoming means a recurring series has no occurrence left.
var ErrNoUpcoming = errors.New("ics: no upcoming occurrence")

// Draft is an importable event: what the app needs to create one.
type Draft struct {
	UID        string
	Title      string
	TargetDate time.Time
	Kind       model.EventKind
}

// NextOccurrence returns the first occurrence of ev whose day is on or after
// from's day. A non-recurring event returns its own start, past or not.
func NextOccurrence(ev ParsedEvent, from time.Time) (time.Time, error) {
	if ev.RawRRule == "" {
		return ev.Start, nil
	}

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		return time.Time{}, fmt.Errorf("ics: parse RRULE %q: %w", ev.RawRRule, err)
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// 시작 시각이 자정 이후인 일정도 오늘 날짜면 포함해야 하므로 from 의 자정부터 찾는다.
	day := dday.StartOfDay(from.In(ev.Start.Location()))
	next := set.After(day, true)
	if next.IsZero() {
		return time.Time{}, ErrNoUpcoming
	}
	return next, nil
}

// Drafts turns parsed events into one draft per UID. Recurring series use
// their next occurrence on or after today; series that have ended and
// edited instances (RECURRENCE-ID) are skipped.
func Drafts(events []ParsedEvent, today time.Time) []Draft {
	seen := make(map[string]bool, len(events))
	out := make([]Draft, 0, len(events))

	for _, ev := range events {
		if ev.IsOverride || seen[ev.UID] {
			continue
		}
		when, err := NextOccurrence(ev, today)
		if err != nil {
			appLog.Warn("ics import: event skipped", "uid", ev.UID, "summary", ev.Summary, "error", err)
			continue
		}
		seen[ev.UID] = true
		out = append(out, Draft{
			UID:        ev.UID,
			Title:      ev.Summary,
			TargetDate: dday.StartOfDay(when.In(today.Location())),
			Kind:       ev.Kind,
		})
	}
	return out
}
