// Package deadline evaluates and formats the process-wide submission
// deadline.
//
// The deadline is advisory: it annotates responses with an overdue flag but
// never blocks an upload or a confirmation.
package deadline

import "time"

// displayLayout renders instants as "2 August 2014, 17:00:00 UTC+02:00".
const displayLayout = "2 January 2006, 15:04:05 UTC-07:00"

// Clock evaluates the configured deadline in a fixed reporting timezone.
type Clock struct {
	deadline time.Time
	loc      *time.Location
	now      func() time.Time
}

// New builds a clock for the given deadline and reporting location. A nil
// location falls back to UTC; a nil now falls back to time.Now.
func New(deadline time.Time, loc *time.Location, now func() time.Time) Clock {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return Clock{deadline: deadline, loc: loc, now: now}
}

// Deadline returns the configured deadline.
func (c Clock) Deadline() time.Time {
	return c.deadline
}

// Now returns the current instant from the injected clock.
func (c Clock) Now() time.Time {
	if c.now == nil {
		return time.Now()
	}
	return c.now()
}

// Overdue reports whether the current instant is past the deadline.
func (c Clock) Overdue() bool {
	return c.OverdueAt(c.now())
}

// OverdueAt reports whether t is past the deadline.
func (c Clock) OverdueAt(t time.Time) bool {
	return t.After(c.deadline)
}

// Format renders an instant in the reporting timezone for display.
func (c Clock) Format(t time.Time) string {
	loc := c.loc
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(displayLayout)
}
