// Package week implements Monday to Sunday week arithmetic on whole days.
package week

import (
	"fmt"
	"time"
)

// Layout is the whole-day date format accepted and produced by the API.
const Layout = "2006-01-02"

// Week is the inclusive range of days from a Monday to the following Sunday.
type Week struct {
	Start time.Time
	End   time.Time
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Of returns the week that contains t.
func Of(t time.Time) Week {
	day := Day(t)
	// time.Weekday has Sunday = 0; shift so Monday = 0.
	offset := (int(day.Weekday()) + 6) % 7
	start := day.AddDate(0, 0, -offset)
	return Week{Start: start, End: start.AddDate(0, 0, 6)}
}

// Parse parses a YYYY-MM-DD string or an RFC3339 timestamp and returns the
// week containing it.
func Parse(s string) (Week, error) {
	t, err := ParseDay(s)
	if err != nil {
		return Week{}, err
	}
	return Of(t), nil
}

// ParseDay parses a YYYY-MM-DD string or an RFC3339 timestamp, truncated to
// the day.
func ParseDay(s string) (time.Time, error) {
	if t, err := time.Parse(Layout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return Day(t), nil
}

// Contains reports whether t falls on one of the week's days.
func (w Week) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.EndExclusive())
}

// EndExclusive is midnight after the week's Sunday, for half-open range queries.
func (w Week) EndExclusive() time.Time {
	return w.End.AddDate(0, 0, 1)
}

// Next returns the following week.
func (w Week) Next() Week {
	return Of(w.Start.AddDate(0, 0, 7))
}

// String returns the week as "YYYY-MM-DD..YYYY-MM-DD".
func (w Week) String() string {
	return w.Start.Format(Layout) + ".." + w.End.Format(Layout)
}
