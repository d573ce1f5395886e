package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidDeadline is returned for deadline strings in no accepted form.
var ErrInvalidDeadline = errors.New("invalid deadline")

// Deadline is a naive (zone-less) date and time of day. Either half may be
// missing: time-only deadlines belong to recurring templates, date-only ones
// come from older records.
type Deadline struct {
	Date    Date
	Clock   time.Duration
	HasTime bool
}

var clockLayouts = []string{"15:04:05", "15:04"}

// ParseDeadline accepts "YYYY-MM-DDTHH:MM[:SS]", "YYYY-MM-DD", "THH:MM[:SS]"
// and "HH:MM[:SS]".
func ParseDeadline(s string) (Deadline, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Deadline{}, ErrInvalidDeadline
	}
	datePart, timePart, hasT := strings.Cut(s, "T")
	if !hasT && strings.Contains(s, ":") {
		datePart, timePart, hasT = "", s, true
	}

	var dl Deadline
	if datePart != "" {
		d, err := ParseDate(datePart)
		if err != nil {
			return Deadline{}, ErrInvalidDeadline
		}
		dl.Date = d
	}
	if hasT {
		clock, err := parseClock(timePart)
		if err != nil {
			return Deadline{}, ErrInvalidDeadline
		}
		dl.Clock = clock
		dl.HasTime = true
	}
	if dl.Date.IsZero() && !dl.HasTime {
		return Deadline{}, ErrInvalidDeadline
	}
	return dl, nil
}

func parseClock(s string) (time.Duration, error) {
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second, nil
		}
	}
	return 0, ErrInvalidDeadline
}

// TimePart renders the time of day as HH:MM (or HH:MM:SS).
func (d Deadline) TimePart() (string, bool) {
	if !d.HasTime {
		return "", false
	}
	h := int(d.Clock / time.Hour)
	m := int(d.Clock % time.Hour / time.Minute)
	sec := int(d.Clock % time.Minute / time.Second)
	if sec != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, sec), true
	}
	return fmt.Sprintf("%02d:%02d", h, m), true
}

func (d Deadline) String() string {
	tp, ok := d.TimePart()
	switch {
	case ok && d.Date.IsZero():
		return "T" + tp
	case ok:
		return d.Date.String() + "T" + tp
	default:
		return d.Date.String()
	}
}

// OnDate re-applies the time of day to another date. It fails for date-only
// deadlines.
func (d Deadline) OnDate(date Date) (Deadline, bool) {
	if !d.HasTime {
		return Deadline{}, false
	}
	return Deadline{Date: date, Clock: d.Clock, HasTime: true}, true
}

// In resolves the deadline to an instant in loc. Time-only deadlines have no
// instant. A missing time means midnight.
func (d Deadline) In(loc *time.Location) (time.Time, bool) {
	if d.Date.IsZero() {
		return time.Time{}, false
	}
	return d.Date.At(d.Clock, loc), true
}

func (d Deadline) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Deadline) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return ErrInvalidDeadline
	}
	parsed, err := ParseDeadline(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
