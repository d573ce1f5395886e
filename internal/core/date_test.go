package core

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"2024-01-08", true},
		{" 2024-12-31 ", true},
		{"2024-02-30", false},
		{"08/01/2024", false},
		{"", false},
	}
	for _, tc := range cases {
		d, err := ParseDate(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("ParseDate(%q) unexpected error %v", tc.in, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("ParseDate(%q) expected error, got %v", tc.in, d)
		}
	}
}

func TestDateKeys(t *testing.T) {
	d := NewDate(2023, 12, 5)
	if d.String() != "2023-12-05" || d.MonthKey() != "2023-12" || d.YearKey() != "2023" {
		t.Fatalf("keys = %s %s %s", d.String(), d.MonthKey(), d.YearKey())
	}
	if (Date{}).String() != "" {
		t.Fatal("zero date should render empty")
	}
	if got := d.AddDays(27).String(); got != "2024-01-01" {
		t.Fatalf("AddDays across year = %s", got)
	}
}

func TestDateOfUsesLocation(t *testing.T) {
	jkt := time.FixedZone("WIB", 7*3600)
	instant := time.Date(2024, 1, 9, 20, 0, 0, 0, time.UTC)
	if got := DateOf(instant.In(jkt)).String(); got != "2024-01-10" {
		t.Fatalf("DateOf = %s, want 2024-01-10", got)
	}
}

func TestDateJSONLenient(t *testing.T) {
	var v struct {
		D Date `json:"d"`
	}
	if err := json.Unmarshal([]byte(`{"d":"not-a-date"}`), &v); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if !v.D.IsZero() {
		t.Fatalf("malformed date should be zero, got %v", v.D)
	}
	b, _ := json.Marshal(struct{ D Date }{NewDate(2024, 1, 8)})
	if string(b) != `{"D":"2024-01-08"}` {
		t.Fatalf("marshal = %s", b)
	}
}

func TestDateSetCopyOnWrite(t *testing.T) {
	d := NewDate(2024, 1, 8)
	var s DateSet
	if s.Has(d) {
		t.Fatal("nil set has nothing")
	}
	s2 := s.With(d)
	if !s2.Has(d) || s.Has(d) {
		t.Fatal("With must not modify the receiver")
	}
	s3 := s2.Without(d)
	if s3.Has(d) || !s2.Has(d) {
		t.Fatal("Without must not modify the receiver")
	}
	got := NewDateSet(NewDate(2024, 2, 1), NewDate(2024, 1, 1), Date{}).Strings()
	if len(got) != 2 || got[0] != "2024-01-01" {
		t.Fatalf("Strings = %v", got)
	}
}
