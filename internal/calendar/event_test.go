package calendar

import (
	"testing"
	"time"

	"usaha/internal/core"
)

func jakarta(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(DefaultTimeZone)
	if err != nil {
		t.Skipf("time zone data unavailable: %v", err)
	}
	return loc
}

func TestBuildEvent(t *testing.T) {
	loc := jakarta(t)
	timed, _ := core.ParseDeadline("2024-01-12T09:00")
	dateOnly, _ := core.ParseDeadline("2024-01-12")

	tests := []struct {
		name      string
		job       core.Job
		wantStart string
		wantEnd   string
		wantDate  bool
	}{
		{
			name:      "timed deadline ends the event",
			job:       core.Job{Title: "Deliver cake", Date: core.NewDate(2024, 1, 10), Deadline: &timed},
			wantStart: "2024-01-12T08:00:00+07:00",
			wantEnd:   "2024-01-12T09:00:00+07:00",
		},
		{
			name:      "no deadline is all day on the anchor date",
			job:       core.Job{Title: "Deliver cake", Date: core.NewDate(2024, 1, 10)},
			wantStart: "2024-01-10",
			wantEnd:   "2024-01-11",
			wantDate:  true,
		},
		{
			name:      "date-only deadline falls back to all day",
			job:       core.Job{Title: "Deliver cake", Date: core.NewDate(2024, 1, 10), Deadline: &dateOnly},
			wantStart: "2024-01-10",
			wantEnd:   "2024-01-11",
			wantDate:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := BuildEvent("Bakery", tt.job, loc)
			if ev.Summary != "Deliver cake (Bakery)" {
				t.Errorf("Summary = %q", ev.Summary)
			}
			if tt.wantDate {
				if ev.Start.Date != tt.wantStart || ev.End.Date != tt.wantEnd {
					t.Errorf("dates = %s..%s, want %s..%s", ev.Start.Date, ev.End.Date, tt.wantStart, tt.wantEnd)
				}
				return
			}
			if ev.Start.DateTime != tt.wantStart || ev.End.DateTime != tt.wantEnd {
				t.Errorf("times = %s..%s, want %s..%s", ev.Start.DateTime, ev.End.DateTime, tt.wantStart, tt.wantEnd)
			}
			if ev.End.TimeZone != DefaultTimeZone {
				t.Errorf("TimeZone = %q, want %s", ev.End.TimeZone, DefaultTimeZone)
			}
		})
	}
}

func TestSummaryWithoutBusiness(t *testing.T) {
	if got := Summary("", "Solo"); got != "Solo" {
		t.Errorf("Summary() = %q, want Solo", got)
	}
}
