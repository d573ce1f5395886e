package core

// Occurrence is a job template projected onto one calendar date. It is
// derived on demand and never stored.
type Occurrence struct {
	ID       string    `json:"id"`
	Job      Job       `json:"job"`
	Date     Date      `json:"occurrenceDate"`
	Complete bool      `json:"isComplete"`
	Deadline *Deadline `json:"effectiveDeadline,omitempty"`
}

// OccurrenceID is the template id for one-off jobs and id_date for
// recurring ones.
func OccurrenceID(j Job, d Date) string {
	if !j.IsRecurring() {
		return j.ID
	}
	return j.ID + "_" + d.String()
}

// NewOccurrence projects j onto d without checking that j occurs there.
func NewOccurrence(j Job, d Date) Occurrence {
	o := Occurrence{
		ID:       OccurrenceID(j, d),
		Job:      j,
		Date:     d,
		Complete: j.Sched().CompleteOn(d),
	}
	if dl, ok := j.EffectiveDeadline(d); ok {
		o.Deadline = &dl
	}
	return o
}
