// Package schedule projects job templates onto calendar dates.
//
// Everything here is pure: the same jobs and dates always give the same
// occurrences, so callers may re-run it on every change of the job list.
package schedule

import (
	"sort"
	"strings"

	"github.com/teambition/rrule-go"

	"usaha/internal/core"
)

// OccurrencesOnDate returns the occurrences that exist on target, sorted by
// title (byte order, stable). An unparsable target yields an empty slice.
func OccurrencesOnDate(jobs []core.Job, target string) []core.Occurrence {
	day, err := core.ParseDate(target)
	if err != nil {
		return []core.Occurrence{}
	}
	return OccurrencesOn(jobs, day)
}

// OccurrencesOn is OccurrencesOnDate for an already parsed date.
func OccurrencesOn(jobs []core.Job, day core.Date) []core.Occurrence {
	out := make([]core.Occurrence, 0, len(jobs))
	for _, j := range jobs {
		if j.Sched().OccursOn(j.Date, day) {
			out = append(out, core.NewOccurrence(j, day))
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Job.Title < out[b].Job.Title
	})
	return out
}

// TemplateList returns one pseudo-occurrence per template on its anchor date,
// newest anchor first. Only one-off templates carry a completion flag of
// their own, so recurring ones always list as open.
func TemplateList(jobs []core.Job) []core.Occurrence {
	out := make([]core.Occurrence, 0, len(jobs))
	for _, j := range jobs {
		o := core.NewOccurrence(j, j.Date)
		o.ID = j.ID
		if j.IsRecurring() {
			o.Complete = false
		}
		out = append(out, o)
	}
	sort.SliceStable(out, func(a, b int) bool {
		if !out[a].Date.Equal(out[b].Date) {
			return out[a].Date.After(out[b].Date)
		}
		return out[a].Job.Title < out[b].Job.Title
	})
	return out
}

// OccurrencesInRange expands every template over [from, to], both ends
// inclusive, ordered by date and then title.
func OccurrencesInRange(jobs []core.Job, from, to core.Date) []core.Occurrence {
	out := []core.Occurrence{}
	if from.IsZero() || to.IsZero() || to.Before(from) {
		return out
	}
	for _, j := range jobs {
		for _, d := range datesInRange(j, from, to) {
			out = append(out, core.NewOccurrence(j, d))
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		if !out[a].Date.Equal(out[b].Date) {
			return out[a].Date.Before(out[b].Date)
		}
		return out[a].Job.Title < out[b].Job.Title
	})
	return out
}

func datesInRange(j core.Job, from, to core.Date) []core.Date {
	if j.Date.IsZero() {
		return nil
	}
	w, ok := j.Weekly()
	if !ok {
		if j.Date.Before(from) || j.Date.After(to) {
			return nil
		}
		return []core.Date{j.Date}
	}

	r, err := rrule.NewRRule(rrule.ROption{Freq: rrule.WEEKLY, Dtstart: j.Date.Time})
	if err != nil {
		return nil
	}
	var set rrule.Set
	set.RRule(r)
	for _, ex := range w.Exceptions.Dates() {
		set.ExDate(ex.Time)
	}
	times := set.Between(from.Time, to.Time, true)
	dates := make([]core.Date, 0, len(times))
	for _, t := range times {
		dates = append(dates, core.DateOf(t))
	}
	return dates
}

// Toggle flips the completion of the occurrence on d and returns the updated
// template. Toggling twice restores the original state.
func Toggle(j core.Job, d core.Date) core.Job {
	j = j.Clone()
	switch s := j.Sched().(type) {
	case core.Weekly:
		if s.Completions.Has(d) {
			s.Completions = s.Completions.Without(d)
		} else {
			s.Completions = s.Completions.With(d)
		}
		j.Schedule = s
	case core.OneOff:
		s.Completed = !s.Completed
		j.Schedule = s
	}
	return j
}

// Detach splits the occurrence on d out of a recurring template. It returns
// the template with d added to its exceptions, and a new open one-off job
// dated d carrying the caller's edit. Callers must persist both together.
func Detach(j core.Job, d core.Date, edit core.Job) (core.Job, core.Job, error) {
	w, ok := j.Weekly()
	if !ok {
		return core.Job{}, core.Job{}, core.ErrNotRecurring
	}
	if !w.OccursOn(j.Date, d) {
		return core.Job{}, core.Job{}, core.ErrNotFound
	}

	updated := j.Clone()
	updated.Schedule = core.Weekly{
		Completions: w.Completions.Clone(),
		Exceptions:  w.Exceptions.With(d),
	}

	standalone := edit.Clone()
	standalone.ID = core.NewID()
	standalone.Date = d
	standalone.Schedule = core.OneOff{}
	standalone.CalendarEventID = ""
	if strings.TrimSpace(standalone.Title) == "" {
		standalone.Title = j.Title
	}
	if standalone.Deadline != nil && standalone.Deadline.Date.IsZero() {
		if dl, ok := standalone.Deadline.OnDate(d); ok {
			standalone.Deadline = &dl
		}
	}
	return updated, standalone.Normalize(), nil
}
