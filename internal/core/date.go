package core

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"
)

// DateLayout is the wire form of every calendar date.
const DateLayout = "2006-01-02"

// Date is a calendar date stored as UTC midnight.
type Date struct {
	time.Time
}

var (
	ErrInvalidDate  = errors.New("invalid date")
	ErrInvalidDay   = errors.New("invalid day")
	ErrInvalidMonth = errors.New("invalid month")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// DateOf returns the calendar date of t as seen in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Time.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

func (d Date) Day() int   { return d.Time.Day() }
func (d Date) Month() int { return int(d.Time.Month()) }
func (d Date) Year() int  { return d.Time.Year() }

// String renders YYYY-MM-DD, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// MonthKey renders YYYY-MM.
func (d Date) MonthKey() string { return d.Format("2006-01") }

// YearKey renders YYYY.
func (d Date) YearKey() string { return d.Format("2006") }

// AddDays moves the date by n calendar days.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

func (d Date) Equal(o Date) bool  { return d.Time.Equal(o.Time) }
func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }
func (d Date) After(o Date) bool  { return d.Time.After(o.Time) }

// At returns the instant of the given clock offset on this date in loc.
func (d Date) At(clock time.Duration, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year(), d.Time.Month(), d.Day(), 0, 0, 0, 0, loc).Add(clock)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts a date string. Malformed input leaves the zero date.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		*d = Date{}
		return nil
	}
	*d = parsed
	return nil
}

// DateSet is a set of calendar dates keyed by their YYYY-MM-DD form.
type DateSet map[string]struct{}

// NewDateSet builds a set from dates, ignoring zero values.
func NewDateSet(dates ...Date) DateSet {
	s := make(DateSet, len(dates))
	for _, d := range dates {
		if !d.IsZero() {
			s[d.String()] = struct{}{}
		}
	}
	return s
}

// Has reports membership; a nil set contains nothing.
func (s DateSet) Has(d Date) bool {
	_, ok := s[d.String()]
	return ok
}

// Clone returns an independent copy; the copy of nil is an empty set.
func (s DateSet) Clone() DateSet {
	out := make(DateSet, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

// With returns a copy containing d.
func (s DateSet) With(d Date) DateSet {
	out := s.Clone()
	out[d.String()] = struct{}{}
	return out
}

// Without returns a copy not containing d.
func (s DateSet) Without(d Date) DateSet {
	out := s.Clone()
	delete(out, d.String())
	return out
}

// Strings returns the members in ascending order.
func (s DateSet) Strings() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Dates returns the members in ascending order.
func (s DateSet) Dates() []Date {
	keys := s.Strings()
	out := make([]Date, 0, len(keys))
	for _, k := range keys {
		if d, err := ParseDate(k); err == nil {
			out = append(out, d)
		}
	}
	return out
}
