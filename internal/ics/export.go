package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"

	"dday/internal/model"
)

const productID = "-//SaebyeokD//dday//KO"

// Export renders events as an iCalendar document of all-day VEVENTs. The UID
// is the event identifier, so a re-import can be matched to the source.
func Export(events []model.Event, loc *time.Location, now time.Time) string {
	if loc == nil {
		loc = time.Local
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName("D-Day")
	cal.SetXWRTimezone(loc.String())

	for _, ev := range events {
		day := ev.TargetDate.In(loc)
		start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)

		ve := cal.AddEvent(ev.ID.String())
		ve.SetSummary(ev.Title)
		ve.SetDtStampTime(now.UTC())
		if !ev.CreatedAt.IsZero() {
			ve.SetCreatedTime(ev.CreatedAt.UTC())
		}
		if !ev.UpdatedAt.IsZero() {
			ve.SetModifiedAt(ev.UpdatedAt.UTC())
		}
		ve.SetAllDayStartAt(start)
		ve.SetAllDayEndAt(start.AddDate(0, 0, 1))
		ve.SetProperty(ical.ComponentProperty(PropertyKind), string(ev.Kind))
	}
	return cal.Serialize()
}
