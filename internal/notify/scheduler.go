// Package notify schedules one local alert per event, firing at the start of
// the event's target day.
package notify

import (
	"context"
	"errors"
	"fmt"

	"dday/internal/dday"
	appLog "dday/internal/log"
	"dday/internal/model"
)

const (
	bodyKorean  = "오늘이 바로 그 날입니다. 지금 확인하세요!"
	bodyEnglish = "Today is the day. Check it now!"
)

// Scheduler maps events onto Center requests keyed by the event identifier.
type Scheduler struct {
	center Center
	body   string
}

func NewScheduler(center Center, locale string) *Scheduler {
	body := bodyKorean
	if locale == "en" {
		body = bodyEnglish
	}
	return &Scheduler{center: center, body: body}
}

// RequestFor builds the alert for ev: local midnight of its target date.
func (s *Scheduler) RequestFor(ev model.Event) Request {
	return Request{
		Identifier: ev.ID.String(),
		Title:      ev.Title,
		Body:       s.body,
		FireAt:     dday.StartOfDay(ev.TargetDate),
	}
}

// Schedule registers ev's alert. A denied permission is not an error: the
// call is a no-op and the settings toggle reflects the denial.
func (s *Scheduler) Schedule(ctx context.Context, ev model.Event) error {
	err := s.center.Add(ctx, s.RequestFor(ev))
	if errors.Is(err, ErrNotAuthorized) {
		appLog.Debug("notification not scheduled: permission denied", "id", ev.ID.String())
		return nil
	}
	if err != nil {
		appLog.Error("notification schedule failed", err, "id", ev.ID.String())
		return fmt.Errorf("notify: schedule %s: %w", ev.ID, err)
	}
	return nil
}

// Cancel removes any pending alert for ev. Nothing pending is fine.
func (s *Scheduler) Cancel(ev model.Event) {
	s.center.RemovePending(ev.ID.String())
}

// Reschedule is cancel-then-schedule, never an in-place update, so an edited
// date cannot leave the old trigger behind.
func (s *Scheduler) Reschedule(ctx context.Context, ev model.Event) error {
	s.Cancel(ev)
	return s.Schedule(ctx, ev)
}

// CancelAll removes the alerts of every given event.
func (s *Scheduler) CancelAll(events []model.Event) {
	ids := make([]string, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID.String())
	}
	s.center.RemovePending(ids...)
}

// Clear removes every pending alert, including ones for events this process
// no longer knows about.
func (s *Scheduler) Clear() {
	s.center.RemoveAllPending()
}

// Authorized asks the center for the real permission state instead of
// trusting any app-level flag.
func (s *Scheduler) Authorized(ctx context.Context) bool {
	return s.center.Authorized(ctx)
}
