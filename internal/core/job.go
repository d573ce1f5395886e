package core

import (
	"encoding/json"
	"strings"
)

// Category separates billable work from plain tasks.
type Category string

const (
	CategoryWork Category = "work"
	CategoryTask Category = "task"
)

// ParseCategory defaults anything unknown to work.
func ParseCategory(s string) Category {
	if Category(strings.ToLower(strings.TrimSpace(s))) == CategoryTask {
		return CategoryTask
	}
	return CategoryWork
}

// Schedule says when a job template produces occurrences and which of them
// are done. It is either OneOff or Weekly.
type Schedule interface {
	// OccursOn reports whether the template has an occurrence on d.
	OccursOn(anchor, d Date) bool
	// CompleteOn reports whether the occurrence on d is done.
	CompleteOn(d Date) bool
	Recurring() bool
}

// OneOff is a job with exactly one occurrence, on its anchor date.
type OneOff struct {
	Completed bool
}

func (OneOff) OccursOn(anchor, d Date) bool { return !anchor.IsZero() && anchor.Equal(d) }
func (s OneOff) CompleteOn(Date) bool       { return s.Completed }
func (OneOff) Recurring() bool              { return false }

// Weekly repeats every seven days from the anchor, indefinitely.
type Weekly struct {
	Completions DateSet
	Exceptions  DateSet
}

func (s Weekly) OccursOn(anchor, d Date) bool {
	if anchor.IsZero() || d.IsZero() || d.Before(anchor) {
		return false
	}
	return d.Weekday() == anchor.Weekday() && !s.Exceptions.Has(d)
}

func (s Weekly) CompleteOn(d Date) bool { return s.Completions.Has(d) }
func (Weekly) Recurring() bool          { return true }

// Job is a stored job template.
type Job struct {
	ID                string
	Title             string
	Description       string
	Notes             string
	Category          Category
	Date              Date
	Deadline          *Deadline
	GrossIncome       Amount
	Expenses          Amount
	Schedule          Schedule
	RemindForDeadline bool
	LabelID           string
	CalendarEventID   string
}

// Sched never returns nil; a job without a schedule is an open one-off.
func (j Job) Sched() Schedule {
	if j.Schedule == nil {
		return OneOff{}
	}
	return j.Schedule
}

func (j Job) IsRecurring() bool { return j.Sched().Recurring() }

// Weekly returns the weekly schedule when the job recurs.
func (j Job) Weekly() (Weekly, bool) {
	w, ok := j.Sched().(Weekly)
	return w, ok
}

// Normalize applies the category rule: tasks carry no money.
func (j Job) Normalize() Job {
	if j.Category == "" {
		j.Category = CategoryWork
	}
	if j.Category == CategoryTask {
		j.GrossIncome = Zero
		j.Expenses = Zero
	}
	return j
}

// EffectiveDeadline is the deadline that applies to the occurrence on d.
// Recurring jobs re-apply the time of day to d. One-off jobs keep the stored
// value, borrowing the anchor date when only a time was stored.
func (j Job) EffectiveDeadline(d Date) (Deadline, bool) {
	if j.Deadline == nil {
		return Deadline{}, false
	}
	if j.IsRecurring() {
		return j.Deadline.OnDate(d)
	}
	dl := *j.Deadline
	if dl.Date.IsZero() {
		dl.Date = j.Date
	}
	return dl, !dl.Date.IsZero()
}

// Clone deep-copies the schedule sets so the copy can be mutated freely.
func (j Job) Clone() Job {
	if w, ok := j.Schedule.(Weekly); ok {
		j.Schedule = Weekly{Completions: w.Completions.Clone(), Exceptions: w.Exceptions.Clone()}
	}
	if j.Deadline != nil {
		dl := *j.Deadline
		j.Deadline = &dl
	}
	return j
}

func (j Job) Validate() error {
	if strings.TrimSpace(j.Title) == "" {
		return ErrEmptyTitle
	}
	if len(j.Title) > 200 {
		return ErrTitleTooLong
	}
	if err := j.Date.Validate(); err != nil {
		return err
	}
	if j.GrossIncome.IsNegative() || j.Expenses.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

// jobDoc is the stored document layout.
type jobDoc struct {
	ID                string          `json:"id"`
	Title             string          `json:"title"`
	Description       string          `json:"description,omitempty"`
	Notes             string          `json:"notes,omitempty"`
	Category          Category        `json:"category,omitempty"`
	Date              Date            `json:"date"`
	Deadline          string          `json:"deadline,omitempty"`
	GrossIncome       Amount          `json:"grossIncome"`
	Expenses          Amount          `json:"expenses"`
	IsRecurring       bool            `json:"isRecurring"`
	Completed         bool            `json:"completed"`
	Completions       map[string]bool `json:"completions,omitempty"`
	Exceptions        []string        `json:"exceptions,omitempty"`
	RemindForDeadline bool            `json:"remindForDeadline"`
	LabelID           string          `json:"labelId,omitempty"`
	CalendarEventID   string          `json:"googleCalendarEventId,omitempty"`
}

func (j Job) MarshalJSON() ([]byte, error) {
	doc := jobDoc{
		ID:                j.ID,
		Title:             j.Title,
		Description:       j.Description,
		Notes:             j.Notes,
		Category:          j.Category,
		Date:              j.Date,
		GrossIncome:       j.GrossIncome,
		Expenses:          j.Expenses,
		RemindForDeadline: j.RemindForDeadline,
		LabelID:           j.LabelID,
		CalendarEventID:   j.CalendarEventID,
	}
	if j.Deadline != nil {
		doc.Deadline = j.Deadline.String()
	}
	switch s := j.Sched().(type) {
	case OneOff:
		doc.Completed = s.Completed
	case Weekly:
		doc.IsRecurring = true
		if len(s.Completions) > 0 {
			doc.Completions = make(map[string]bool, len(s.Completions))
			for _, k := range s.Completions.Strings() {
				doc.Completions[k] = true
			}
		}
		doc.Exceptions = s.Exceptions.Strings()
		if len(doc.Exceptions) == 0 {
			doc.Exceptions = nil
		}
	}
	return json.Marshal(doc)
}

// UnmarshalJSON is lenient: a malformed deadline is dropped and false
// completion entries are ignored.
func (j *Job) UnmarshalJSON(b []byte) error {
	var doc jobDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	*j = Job{
		ID:                doc.ID,
		Title:             doc.Title,
		Description:       doc.Description,
		Notes:             doc.Notes,
		Category:          ParseCategory(string(doc.Category)),
		Date:              doc.Date,
		GrossIncome:       doc.GrossIncome,
		Expenses:          doc.Expenses,
		RemindForDeadline: doc.RemindForDeadline,
		LabelID:           doc.LabelID,
		CalendarEventID:   doc.CalendarEventID,
	}
	if doc.Deadline != "" {
		if dl, err := ParseDeadline(doc.Deadline); err == nil {
			j.Deadline = &dl
		}
	}
	if !doc.IsRecurring {
		j.Schedule = OneOff{Completed: doc.Completed}
		return nil
	}
	w := Weekly{Completions: DateSet{}, Exceptions: DateSet{}}
	for k, done := range doc.Completions {
		if d, err := ParseDate(k); err == nil && done {
			w.Completions[d.String()] = struct{}{}
		}
	}
	for _, k := range doc.Exceptions {
		if d, err := ParseDate(k); err == nil {
			w.Exceptions[d.String()] = struct{}{}
		}
	}
	j.Schedule = w
	return nil
}
