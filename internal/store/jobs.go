package store

import (
	"context"
	"errors"
	"fmt"

	"usaha/internal/core"
	"usaha/internal/log"
	"usaha/internal/schedule"
)

// AddJob stores a new job template with a fresh id. With syncCalendar set, a
// one-off job is mirrored to the calendar first; a failed sync stores the job
// unsynced. core.ErrSessionExpired is returned next to the saved job.
func (s *Store) AddJob(ctx context.Context, businessID string, j core.Job, syncCalendar bool) (core.Job, error) {
	if err := j.Validate(); err != nil {
		return core.Job{}, err
	}
	b, ok := s.Business(businessID)
	if !ok {
		return core.Job{}, fmt.Errorf("business %s: %w", businessID, core.ErrNotFound)
	}

	j = j.Clone().Normalize()
	j.ID = core.NewID()
	j.Schedule = freshSchedule(j.Schedule)
	j.CalendarEventID = ""
	if _, ok := b.Label(j.LabelID); !ok {
		j.LabelID = ""
	}
	calErr := s.syncCalendar(ctx, b.Name, &j, syncCalendar)

	saved := j.Clone()
	err := s.mutate(ctx, "add_job", businessID, func(b *core.Business) (func(context.Context) error, error) {
		b.Jobs = append(b.Jobs, saved)
		return func(ctx context.Context) error {
			return s.backend.PutJob(ctx, s.owner.Key, businessID, saved)
		}, nil
	})
	if err != nil {
		return core.Job{}, err
	}
	return j, calErr
}

// UpdateJob replaces the editable fields of an existing job. Completion state
// survives an edit unless the job switches between one-off and recurring.
func (s *Store) UpdateJob(ctx context.Context, businessID string, j core.Job, syncCalendar bool) (core.Job, error) {
	if err := j.Validate(); err != nil {
		return core.Job{}, err
	}
	b, ok := s.Business(businessID)
	if !ok {
		return core.Job{}, fmt.Errorf("business %s: %w", businessID, core.ErrNotFound)
	}
	existing, ok := b.Job(j.ID)
	if !ok {
		s.logger.DebugContext(ctx, "Job not found", log.FieldOperation, log.OpUpdate, log.FieldJobID, j.ID)
		return core.Job{}, fmt.Errorf("job %s: %w", j.ID, core.ErrNotFound)
	}

	j = j.Clone().Normalize()
	if existing.IsRecurring() == j.IsRecurring() {
		j.Schedule = existing.Clone().Sched()
	} else {
		j.Schedule = freshSchedule(j.Schedule)
	}
	j.CalendarEventID = existing.CalendarEventID
	if _, ok := b.Label(j.LabelID); !ok {
		j.LabelID = ""
	}
	calErr := s.syncCalendar(ctx, b.Name, &j, syncCalendar)

	saved := j.Clone()
	err := s.mutate(ctx, "update_job", businessID, func(b *core.Business) (func(context.Context) error, error) {
		i := b.JobIndex(saved.ID)
		if i < 0 {
			return nil, fmt.Errorf("job %s: %w", saved.ID, core.ErrNotFound)
		}
		b.Jobs[i] = saved
		return func(ctx context.Context) error {
			return s.backend.PutJob(ctx, s.owner.Key, businessID, saved)
		}, nil
	})
	if err != nil {
		return core.Job{}, err
	}
	return j, calErr
}

// DeleteJob removes a job, deleting its calendar event first.
func (s *Store) DeleteJob(ctx context.Context, businessID, jobID string) error {
	b, ok := s.Business(businessID)
	if !ok {
		return fmt.Errorf("business %s: %w", businessID, core.ErrNotFound)
	}
	j, ok := b.Job(jobID)
	if !ok {
		s.logger.DebugContext(ctx, "Job not found", log.FieldOperation, log.OpDelete, log.FieldJobID, jobID)
		return fmt.Errorf("job %s: %w", jobID, core.ErrNotFound)
	}
	s.deleteCalendarEvents(ctx, []core.Job{j})

	return s.mutate(ctx, "delete_job", businessID, func(b *core.Business) (func(context.Context) error, error) {
		i := b.JobIndex(jobID)
		if i < 0 {
			return nil, fmt.Errorf("job %s: %w", jobID, core.ErrNotFound)
		}
		b.Jobs = append(b.Jobs[:i:i], b.Jobs[i+1:]...)
		return func(ctx context.Context) error {
			return s.backend.DeleteJob(ctx, s.owner.Key, businessID, jobID)
		}, nil
	})
}

// ToggleJob flips completion of the occurrence on date. One-off jobs ignore
// the date; for recurring jobs a date without an occurrence is not found.
func (s *Store) ToggleJob(ctx context.Context, businessID, jobID, date string) (core.Job, error) {
	var out core.Job
	err := s.mutate(ctx, log.OpToggle, businessID, func(b *core.Business) (func(context.Context) error, error) {
		i := b.JobIndex(jobID)
		if i < 0 {
			return nil, fmt.Errorf("job %s: %w", jobID, core.ErrNotFound)
		}
		j := b.Jobs[i]
		d := j.Date
		if j.IsRecurring() {
			parsed, err := core.ParseDate(date)
			if err != nil {
				return nil, err
			}
			d = parsed
			if !j.Sched().OccursOn(j.Date, d) {
				return nil, fmt.Errorf("job %s on %s: %w", jobID, d, core.ErrNotFound)
			}
		}
		out = schedule.Toggle(j, d)
		b.Jobs[i] = out
		saved := out.Clone()
		return func(ctx context.Context) error {
			return s.backend.PutJob(ctx, s.owner.Key, businessID, saved)
		}, nil
	})
	return out, err
}

// DetachOccurrence turns the occurrence on date of a recurring job into a
// standalone job built from edit. Both halves are written as one unit.
func (s *Store) DetachOccurrence(ctx context.Context, businessID, jobID, date string, edit core.Job) (core.Job, error) {
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Job{}, err
	}
	var standalone core.Job
	err = s.mutate(ctx, log.OpDetach, businessID, func(b *core.Business) (func(context.Context) error, error) {
		i := b.JobIndex(jobID)
		if i < 0 {
			return nil, fmt.Errorf("job %s: %w", jobID, core.ErrNotFound)
		}
		updated, created, err := schedule.Detach(b.Jobs[i], d, edit)
		if err != nil {
			return nil, err
		}
		if _, ok := b.Label(created.LabelID); !ok {
			created.LabelID = ""
		}
		if err := created.Validate(); err != nil {
			return nil, err
		}
		b.Jobs[i] = updated
		b.Jobs = append(b.Jobs, created)
		standalone = created

		u, c := updated.Clone(), created.Clone()
		return func(ctx context.Context) error {
			return s.backend.DetachOccurrence(ctx, s.owner.Key, businessID, u, c)
		}, nil
	})
	return standalone, err
}

func freshSchedule(s core.Schedule) core.Schedule {
	if s != nil && s.Recurring() {
		return core.Weekly{Completions: core.DateSet{}, Exceptions: core.DateSet{}}
	}
	return core.OneOff{}
}

// syncCalendar mirrors j into the calendar, or removes its event when the job
// should no longer be mirrored. Guests never sync. A failed upsert keeps the
// event id j already had so a later delete still reaches the event.
func (s *Store) syncCalendar(ctx context.Context, businessName string, j *core.Job, want bool) error {
	if s.calendar == nil || s.owner.Guest {
		return nil
	}
	if !want || j.IsRecurring() {
		if j.CalendarEventID != "" {
			s.deleteCalendarEvents(ctx, []core.Job{*j})
			j.CalendarEventID = ""
		}
		return nil
	}
	id, err := s.calendar.Upsert(ctx, s.owner.Key, businessName, *j)
	if err != nil {
		s.logger.WarnContext(ctx, "Calendar sync failed", log.NewFields().
			WithJob("", j.ID).WithOperation(log.OpSync).WithError(err).ToSlice()...)
		if errors.Is(err, core.ErrSessionExpired) {
			return err
		}
		return nil
	}
	j.CalendarEventID = id
	return nil
}
