// Package report implements the report aggregation engine: pure functions
// that reduce a property's expenses and debtor payments over an inclusive
// date window.
package report

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrInvalidDate is returned when a supplied date string does not parse.
	ErrInvalidDate = errors.New("invalid date")
	// ErrInvalidWindow is returned when a window's start falls after its end.
	ErrInvalidWindow = errors.New("window start after end")
)

// Window is an inclusive date range. A nil bound means unbounded on that
// side.
type Window struct {
	Start *time.Time
	End   *time.Time
}

// Contains reports whether t falls within the window, bounds included.
func (w Window) Contains(t time.Time) bool {
	if w.Start != nil && t.Before(*w.Start) {
		return false
	}
	if w.End != nil && t.After(*w.End) {
		return false
	}
	return true
}

// Validate returns ErrInvalidWindow when both bounds are set and inverted.
func (w Window) Validate() error {
	if w.Start != nil && w.End != nil && w.Start.After(*w.End) {
		return ErrInvalidWindow
	}
	return nil
}

// StartLabel renders the lower bound for the report period, "Beginning" when
// unbounded.
func (w Window) StartLabel() string {
	if w.Start == nil {
		return "Beginning"
	}
	return w.Start.Format("2006-01-02")
}

// EndLabel renders the upper bound for the report period, "Now" when
// unbounded.
func (w Window) EndLabel() string {
	if w.End == nil {
		return "Now"
	}
	return w.End.Format("2006-01-02")
}

// ResolveWindow turns optional startDate/endDate request strings into a
// concrete window. Either side may be empty (unbounded). Accepted layouts
// are 2006-01-02 and RFC 3339; a date-only upper bound is extended to the
// end of that day so the window stays inclusive.
func ResolveWindow(startDate, endDate string) (Window, error) {
	var w Window

	if s := strings.TrimSpace(startDate); s != "" {
		t, _, err := parseDate(s)
		if err != nil {
			return Window{}, err
		}
		w.Start = &t
	}
	if s := strings.TrimSpace(endDate); s != "" {
		t, dateOnly, err := parseDate(s)
		if err != nil {
			return Window{}, err
		}
		if dateOnly {
			t = t.Add(24*time.Hour - time.Second)
		}
		w.End = &t
	}

	if err := w.Validate(); err != nil {
		return Window{}, err
	}
	return w, nil
}

// YearWindow builds the full-calendar-year window
// [Jan 1 00:00:00, Dec 31 23:59:59] in UTC.
func YearWindow(year int) Window {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, time.December, 31, 23, 59, 59, 0, time.UTC)
	return Window{Start: &start, End: &end}
}

func parseDate(s string) (t time.Time, dateOnly bool, err error) {
	if t, err = time.Parse("2006-01-02", s); err == nil {
		return t, true, nil
	}
	if t, err = time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), false, nil
	}
	return time.Time{}, false, ErrInvalidDate
}
