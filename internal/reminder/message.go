package reminder

import (
	"fmt"
	"html"
)

// Message is the rendered form of an Event.
type Message struct {
	Subject string
	Text    string
	HTML    string
}

// Render formats an event for email and chat delivery.
func Render(ev Event) Message {
	unit := "days"
	if ev.DaysUntil == 1 {
		unit = "day"
	}
	date := ev.OccurrenceDate.String()
	text := fmt.Sprintf("%q for %s is due in %d %s (%s)", ev.JobTitle, ev.BusinessName, ev.DaysUntil, unit, date)
	body := fmt.Sprintf(
		"<p><strong>%s</strong> for <em>%s</em> is due in %d %s.</p><p>Occurrence date: %s<br>Deadline: %s</p>",
		html.EscapeString(ev.JobTitle),
		html.EscapeString(ev.BusinessName),
		ev.DaysUntil, unit,
		date,
		ev.Deadline.Format("2006-01-02 15:04 MST"),
	)
	return Message{
		Subject: "Reminder: " + ev.JobTitle,
		Text:    text,
		HTML:    body,
	}
}
