package calendar

import (
	"time"

	ical "github.com/arran4/golang-ical"

	"usaha/internal/core"
	"usaha/internal/schedule"
)

const productID = "-//usaha//schedule//EN"

// ExportICS renders every occurrence of b's jobs between from and to as an
// iCalendar document.
func ExportICS(b core.Business, from, to core.Date, loc *time.Location, now time.Time) string {
	if loc == nil {
		loc = time.UTC
	}
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName(b.Name)
	cal.SetXWRTimezone(loc.String())

	for _, occ := range schedule.OccurrencesInRange(b.Jobs, from, to) {
		ev := cal.AddEvent(occ.ID + "@usaha")
		ev.SetDtStampTime(now.UTC())
		ev.SetSummary(Summary(b.Name, occ.Job.Title))
		if occ.Job.Description != "" {
			ev.SetDescription(occ.Job.Description)
		}
		ev.SetStatus(ical.ObjectStatusConfirmed)
		if occ.Complete {
			ev.AddProperty(ical.ComponentPropertyCategories, "DONE")
		}

		if end, ok := deadlineAt(occ.Job, occ.Date, loc); ok {
			ev.SetStartAt(end.Add(-eventLength))
			ev.SetEndAt(end)
			continue
		}
		ev.SetAllDayStartAt(occ.Date.Time)
		ev.SetAllDayEndAt(occ.Date.AddDays(1).Time)
	}
	return cal.Serialize()
}
