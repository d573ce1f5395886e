package calendar

import (
	"time"

	gcal "google.golang.org/api/calendar/v3"

	"usaha/internal/core"
)

// DefaultTimeZone is used when no zone is configured.
const DefaultTimeZone = "Asia/Jakarta"

const eventLength = time.Hour

// Summary is the event title shown in the calendar.
func Summary(businessName, title string) string {
	if businessName == "" {
		return title
	}
	return title + " (" + businessName + ")"
}

// BuildEvent maps a job onto a calendar event. A job with a deadline becomes
// a one hour event ending at the deadline; otherwise it is an all-day event
// on the job's date.
func BuildEvent(businessName string, j core.Job, loc *time.Location) *gcal.Event {
	if loc == nil {
		loc = time.UTC
	}
	ev := &gcal.Event{
		Summary:     Summary(businessName, j.Title),
		Description: j.Description,
	}

	if end, ok := deadlineAt(j, j.Date, loc); ok {
		ev.Start = &gcal.EventDateTime{DateTime: end.Add(-eventLength).Format(time.RFC3339), TimeZone: loc.String()}
		ev.End = &gcal.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: loc.String()}
		return ev
	}
	ev.Start = &gcal.EventDateTime{Date: j.Date.String()}
	ev.End = &gcal.EventDateTime{Date: j.Date.AddDays(1).String()}
	return ev
}

// deadlineAt returns the job's timed deadline on day d as an instant in loc.
func deadlineAt(j core.Job, d core.Date, loc *time.Location) (time.Time, bool) {
	dl, ok := j.EffectiveDeadline(d)
	if !ok || !dl.HasTime {
		return time.Time{}, false
	}
	return dl.In(loc)
}
