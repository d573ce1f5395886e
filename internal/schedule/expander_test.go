package schedule

import (
	"errors"
	"testing"

	"usaha/internal/core"
)

func weeklyJob(id, title string, anchor core.Date, exceptions ...core.Date) core.Job {
	return core.Job{
		ID:       id,
		Title:    title,
		Date:     anchor,
		Schedule: core.Weekly{Completions: core.DateSet{}, Exceptions: core.NewDateSet(exceptions...)},
	}
}

func oneOffJob(id, title string, d core.Date, completed bool) core.Job {
	return core.Job{ID: id, Title: title, Date: d, Schedule: core.OneOff{Completed: completed}}
}

func TestOccurrencesOnDateScenarioB(t *testing.T) {
	jobs := []core.Job{weeklyJob("b", "B", core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 15))}

	if got := OccurrencesOnDate(jobs, "2024-01-15"); len(got) != 0 {
		t.Fatalf("exception date produced %d occurrences", len(got))
	}
	got := OccurrencesOnDate(jobs, "2024-01-08")
	if len(got) != 1 {
		t.Fatalf("expected one occurrence on 2024-01-08, got %d", len(got))
	}
	if got[0].ID != "b_2024-01-08" || got[0].Complete {
		t.Fatalf("occurrence = %+v", got[0])
	}
}

func TestOccurrencesOnDateUnparsable(t *testing.T) {
	jobs := []core.Job{oneOffJob("a", "A", core.NewDate(2024, 1, 10), false)}
	got := OccurrencesOnDate(jobs, "10/01/2024")
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil result, got %v", got)
	}
}

func TestOccurrencesOnDateSortsByTitleStable(t *testing.T) {
	d := core.NewDate(2024, 1, 10)
	jobs := []core.Job{
		oneOffJob("1", "beta", d, false),
		oneOffJob("2", "Alpha", d, false),
		oneOffJob("3", "alpha", d, true),
		oneOffJob("4", "Alpha", d, false),
		oneOffJob("5", "other day", d.AddDays(1), false),
	}
	got := OccurrencesOnDate(jobs, "2024-01-10")
	want := []string{"2", "4", "3", "1"}
	if len(got) != len(want) {
		t.Fatalf("got %d occurrences", len(got))
	}
	for i, id := range want {
		if got[i].Job.ID != id {
			t.Fatalf("position %d = %s, want %s", i, got[i].Job.ID, id)
		}
	}
	if !got[2].Complete || got[2].ID != "3" {
		t.Fatalf("one-off occurrence should use template flag and id: %+v", got[2])
	}
}

func TestNoOccurrenceBeforeAnchorAndSameWeekday(t *testing.T) {
	anchor := core.NewDate(2024, 3, 6) // Wednesday
	jobs := []core.Job{weeklyJob("w", "W", anchor)}
	for d := anchor.AddDays(-60); d.Before(anchor.AddDays(120)); d = d.AddDays(1) {
		got := OccurrencesOn(jobs, d)
		if d.Before(anchor) && len(got) != 0 {
			t.Fatalf("occurrence before anchor on %s", d)
		}
		for _, o := range got {
			if o.Date.Weekday() != anchor.Weekday() {
				t.Fatalf("occurrence on %s has weekday %s", o.Date, o.Date.Weekday())
			}
		}
	}
}

func TestExceptionRemovesExactlyOneDate(t *testing.T) {
	anchor := core.NewDate(2024, 1, 1)
	plain := []core.Job{weeklyJob("w", "W", anchor)}
	excepted := []core.Job{weeklyJob("w", "W", anchor, core.NewDate(2024, 2, 5))}

	for d := anchor; d.Before(anchor.AddDays(90)); d = d.AddDays(1) {
		a, b := len(OccurrencesOn(plain, d)), len(OccurrencesOn(excepted, d))
		if d.Equal(core.NewDate(2024, 2, 5)) {
			if a != 1 || b != 0 {
				t.Fatalf("exception date: plain=%d excepted=%d", a, b)
			}
			continue
		}
		if a != b {
			t.Fatalf("date %s changed by an unrelated exception", d)
		}
	}
}

func TestRecurringDeadlineUsesOccurrenceDate(t *testing.T) {
	dl, _ := core.ParseDeadline("2023-05-01T07:30")
	j := weeklyJob("w", "W", core.NewDate(2024, 1, 1))
	j.Deadline = &dl
	got := OccurrencesOnDate([]core.Job{j}, "2024-01-22")
	if len(got) != 1 || got[0].Deadline == nil || got[0].Deadline.String() != "2024-01-22T07:30" {
		t.Fatalf("deadline = %+v", got)
	}
}

func TestTemplateList(t *testing.T) {
	rec := weeklyJob("r", "R", core.NewDate(2024, 1, 1))
	rec.Schedule = core.Weekly{Completions: core.NewDateSet(core.NewDate(2024, 1, 1))}
	jobs := []core.Job{
		oneOffJob("old", "Old", core.NewDate(2023, 5, 1), true),
		rec,
		oneOffJob("new", "New", core.NewDate(2024, 6, 1), false),
	}
	got := TemplateList(jobs)
	if len(got) != 3 || got[0].ID != "new" || got[1].ID != "r" || got[2].ID != "old" {
		t.Fatalf("order = %v", got)
	}
	if got[1].Complete {
		t.Fatal("recurring template must list as open")
	}
	if !got[2].Complete {
		t.Fatal("one-off template keeps its flag")
	}
}

func TestOccurrencesInRange(t *testing.T) {
	jobs := []core.Job{
		weeklyJob("w", "Weekly", core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 15)),
		oneOffJob("o", "Once", core.NewDate(2024, 1, 10), false),
		oneOffJob("x", "Outside", core.NewDate(2024, 3, 1), false),
	}
	got := OccurrencesInRange(jobs, core.NewDate(2023, 12, 20), core.NewDate(2024, 1, 29))
	want := []string{"w_2024-01-01", "w_2024-01-08", "o", "w_2024-01-22", "w_2024-01-29"}
	if len(got) != len(want) {
		t.Fatalf("got %d occurrences: %v", len(got), got)
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d = %s, want %s", i, got[i].ID, id)
		}
	}
	if n := len(OccurrencesInRange(jobs, core.NewDate(2024, 2, 1), core.NewDate(2024, 1, 1))); n != 0 {
		t.Fatalf("reversed range gave %d", n)
	}
}

func TestSingleDayAgreesWithRangeExpansion(t *testing.T) {
	jobs := []core.Job{weeklyJob("w", "W", core.NewDate(2024, 2, 28), core.NewDate(2024, 3, 13), core.NewDate(2024, 4, 3))}
	from, to := core.NewDate(2024, 2, 1), core.NewDate(2024, 5, 31)

	inRange := map[string]bool{}
	for _, o := range OccurrencesInRange(jobs, from, to) {
		inRange[o.Date.String()] = true
	}
	for d := from; !d.After(to); d = d.AddDays(1) {
		single := len(OccurrencesOn(jobs, d)) == 1
		if single != inRange[d.String()] {
			t.Fatalf("%s: single-day %v, range %v", d, single, inRange[d.String()])
		}
		if single && d.Weekday() != jobs[0].Date.Weekday() {
			t.Fatalf("%s falls on %s, anchor is %s", d, d.Weekday(), jobs[0].Date.Weekday())
		}
	}
}

func TestToggleTwiceRestores(t *testing.T) {
	d := core.NewDate(2024, 1, 8)
	j := weeklyJob("w", "W", core.NewDate(2024, 1, 1))
	j.Schedule = core.Weekly{Completions: core.NewDateSet(core.NewDate(2024, 1, 1))}

	once := Toggle(j, d)
	w1, _ := once.Weekly()
	if !w1.Completions.Has(d) {
		t.Fatal("first toggle should complete")
	}
	orig, _ := j.Weekly()
	if orig.Completions.Has(d) {
		t.Fatal("toggle mutated its input")
	}
	twice := Toggle(once, d)
	w2, _ := twice.Weekly()
	if got, want := w2.Completions.Strings(), orig.Completions.Strings(); len(got) != len(want) || got[0] != want[0] {
		t.Fatalf("completions = %v, want %v", got, want)
	}

	one := oneOffJob("a", "A", d, false)
	if !Toggle(one, d).Sched().CompleteOn(d) || Toggle(Toggle(one, d), d).Sched().CompleteOn(d) {
		t.Fatal("one-off toggle should flip completed")
	}
}

func TestDetachScenario(t *testing.T) {
	b := weeklyJob("b", "B", core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 15))
	d := core.NewDate(2024, 1, 8)
	edit := core.Job{Title: "B (moved)", GrossIncome: core.AmountFromInt(10), Schedule: core.OneOff{Completed: true}}

	updated, standalone, err := Detach(b, d, edit)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	w, _ := updated.Weekly()
	if !w.Exceptions.Has(d) || !w.Exceptions.Has(core.NewDate(2024, 1, 15)) {
		t.Fatalf("exceptions = %v", w.Exceptions.Strings())
	}
	if standalone.IsRecurring() || standalone.Sched().CompleteOn(d) {
		t.Fatal("standalone must be an open one-off")
	}
	if !standalone.Date.Equal(d) || standalone.ID == "" || standalone.ID == b.ID {
		t.Fatalf("standalone = %+v", standalone)
	}

	all := []core.Job{updated, standalone}
	got := OccurrencesOnDate(all, "2024-01-08")
	if len(got) != 1 || got[0].Job.ID != standalone.ID {
		t.Fatalf("after detach: %v", got)
	}
}

func TestDetachErrors(t *testing.T) {
	if _, _, err := Detach(oneOffJob("a", "A", core.NewDate(2024, 1, 1), false), core.NewDate(2024, 1, 1), core.Job{}); !errors.Is(err, core.ErrNotRecurring) {
		t.Fatalf("err = %v", err)
	}
	w := weeklyJob("w", "W", core.NewDate(2024, 1, 1))
	if _, _, err := Detach(w, core.NewDate(2024, 1, 2), core.Job{}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}
