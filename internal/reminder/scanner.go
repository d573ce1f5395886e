// Package reminder finds job deadlines that are about to pass and hands them
// to notification sinks.
package reminder

import (
	"math"
	"sort"
	"time"

	"usaha/internal/core"
	"usaha/internal/schedule"
)

const (
	// MaxDaysAhead is the widest gap, in whole days rounded up, that still
	// triggers a reminder.
	MaxDaysAhead = 3
	// DefaultLookaheadDays is how far ahead recurring templates are expanded.
	DefaultLookaheadDays = 3

	day = 24 * time.Hour
)

// NotifiedSet answers whether a reminder key was already delivered.
type NotifiedSet interface {
	Has(key string) bool
}

// Set is the in-memory NotifiedSet.
type Set map[string]struct{}

func (s Set) Has(key string) bool {
	_, ok := s[key]
	return ok
}

func (s Set) Add(keys ...string) {
	for _, k := range keys {
		s[k] = struct{}{}
	}
}

// Key identifies the reminder for one occurrence of one job.
func Key(jobID string, d core.Date) string {
	return "notified-" + jobID + "-" + d.String()
}

// Event is one reminder to deliver.
type Event struct {
	Key            string    `json:"key"`
	JobID          string    `json:"jobId"`
	JobTitle       string    `json:"jobTitle"`
	BusinessID     string    `json:"businessId,omitempty"`
	BusinessName   string    `json:"businessName"`
	OccurrenceDate core.Date `json:"occurrenceDate"`
	Deadline       time.Time `json:"deadline"`
	DaysUntil      int       `json:"daysUntil"`
}

// FindDue returns the reminders due at now. Naive deadlines are read in
// now's location. Results are ordered by deadline, then title.
func FindDue(jobs []core.Job, businessName string, now time.Time, lookaheadDays int, notified NotifiedSet) []Event {
	if lookaheadDays < 0 {
		lookaheadDays = 0
	}
	if notified == nil {
		notified = Set{}
	}
	loc := now.Location()
	today := core.DateOf(now)

	out := []Event{}
	for _, j := range jobs {
		if j.Deadline == nil || !j.RemindForDeadline {
			continue
		}
		for _, occ := range candidates(j, today, lookaheadDays) {
			if occ.Complete || occ.Deadline == nil {
				continue
			}
			deadline, ok := occ.Deadline.In(loc)
			if !ok || !deadline.After(now) {
				continue
			}
			key := Key(j.ID, occ.Date)
			if notified.Has(key) {
				continue
			}
			days := int(math.Ceil(float64(deadline.Sub(now)) / float64(day)))
			if days <= 0 || days > MaxDaysAhead {
				continue
			}
			out = append(out, Event{
				Key:            key,
				JobID:          j.ID,
				JobTitle:       j.Title,
				BusinessName:   businessName,
				OccurrenceDate: occ.Date,
				Deadline:       deadline,
				DaysUntil:      days,
			})
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		if !out[a].Deadline.Equal(out[b].Deadline) {
			return out[a].Deadline.Before(out[b].Deadline)
		}
		return out[a].JobTitle < out[b].JobTitle
	})
	return out
}

// FindDueInBusiness is FindDue over one business, stamping its id on events.
func FindDueInBusiness(b core.Business, now time.Time, lookaheadDays int, notified NotifiedSet) []Event {
	events := FindDue(b.Jobs, b.Name, now, lookaheadDays, notified)
	for i := range events {
		events[i].BusinessID = b.ID
	}
	return events
}

// candidates lists the occurrences whose deadline may need a reminder.
// A recurring template without a time of day has none.
func candidates(j core.Job, today core.Date, lookaheadDays int) []core.Occurrence {
	if !j.IsRecurring() {
		return []core.Occurrence{core.NewOccurrence(j, j.Date)}
	}
	if !j.Deadline.HasTime {
		return nil
	}
	return schedule.OccurrencesInRange([]core.Job{j}, today, today.AddDays(lookaheadDays))
}
