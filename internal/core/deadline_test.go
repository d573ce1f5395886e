package core

import (
	"testing"
	"time"
)

func TestParseDeadline(t *testing.T) {
	cases := []struct {
		in       string
		wantStr  string
		hasDate  bool
		hasClock bool
	}{
		{"2024-01-12T09:00", "2024-01-12T09:00", true, true},
		{"2024-01-12T09:00:30", "2024-01-12T09:00:30", true, true},
		{"T17:45", "T17:45", false, true},
		{"17:45", "T17:45", false, true},
		{"2024-01-12", "2024-01-12", true, false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			dl, err := ParseDeadline(tc.in)
			if err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			if dl.String() != tc.wantStr {
				t.Errorf("String() = %q, want %q", dl.String(), tc.wantStr)
			}
			if !dl.Date.IsZero() != tc.hasDate || dl.HasTime != tc.hasClock {
				t.Errorf("parts = %+v", dl)
			}
		})
	}

	for _, bad := range []string{"", "tomorrow", "2024-13-01T09:00", "2024-01-12T25:00"} {
		if _, err := ParseDeadline(bad); err == nil {
			t.Errorf("ParseDeadline(%q) expected error", bad)
		}
	}
}

func TestDeadlineOnDateAndIn(t *testing.T) {
	dl, _ := ParseDeadline("2020-06-01T09:30")
	moved, ok := dl.OnDate(NewDate(2024, 1, 8))
	if !ok || moved.String() != "2024-01-08T09:30" {
		t.Fatalf("OnDate = %v %v", moved, ok)
	}
	loc := time.FixedZone("WIB", 7*3600)
	at, ok := moved.In(loc)
	if !ok || !at.Equal(time.Date(2024, 1, 8, 9, 30, 0, 0, loc)) {
		t.Fatalf("In = %v", at)
	}

	dateOnly, _ := ParseDeadline("2024-01-12")
	if _, ok := dateOnly.OnDate(NewDate(2024, 1, 8)); ok {
		t.Fatal("date-only deadline has no time part to re-apply")
	}
	timeOnly, _ := ParseDeadline("T09:00")
	if _, ok := timeOnly.In(loc); ok {
		t.Fatal("time-only deadline has no instant")
	}
}
