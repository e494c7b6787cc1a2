// Package freshness decides whether a show has released an episode during
// the current Sunday-anchored week.
package freshness

import (
	"time"

	"github.com/jdholdren/podwatch/internal/podwatch"
)

// Status is the freshness of a single show at evaluation time.
type Status struct {
	Released bool
	// Episode is the episode that satisfied the check, if any.
	Episode *podwatch.Episode
	// Heuristic is set when the show has no episodes and Released was
	// derived from the scheduled weekday alone. It is a placeholder until
	// real data exists.
	Heuristic bool
	WeekStart time.Time
}

// Evaluator computes freshness against the wall clock.
type Evaluator struct {
	now func() time.Time
	loc *time.Location
}

// New builds an evaluator that computes week boundaries in loc.
// A nil loc means time.Local.
func New(loc *time.Location) Evaluator {
	return NewWithClock(loc, time.Now)
}

func NewWithClock(loc *time.Location, now func() time.Time) Evaluator {
	if loc == nil {
		loc = time.Local
	}
	return Evaluator{now: now, loc: loc}
}

// Now is the current time in the evaluator's location.
func (e Evaluator) Now() time.Time {
	return e.now().In(e.loc)
}

// WeekStart is the most recent Sunday at midnight in now's location. On a
// Sunday it is that same day's midnight.
func WeekStart(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d-int(now.Weekday()), 0, 0, 0, 0, now.Location())
}

// InWeek reports whether t falls on or after the start of now's week.
func InWeek(now, t time.Time) bool {
	return !t.Before(WeekStart(now))
}

// Evaluate recomputes the week boundary on every call.
//
// latest is the show's highest numbered episode, or nil when none is known.
func (e Evaluator) Evaluate(show podwatch.Show, latest *podwatch.Episode) Status {
	now := e.Now()
	start := WeekStart(now)

	if latest == nil {
		return Status{
			Released:  weekdayReached(now.Weekday(), show.Weekday),
			Heuristic: true,
			WeekStart: start,
		}
	}

	st := Status{WeekStart: start}
	if !latest.PublishedAt.Before(start) {
		st.Released = true
		st.Episode = latest
	}

	return st
}

func (e Evaluator) IsReleasedThisWeek(show podwatch.Show, latest *podwatch.Episode) bool {
	return e.Evaluate(show, latest).Released
}

// weekdayReached compares positions in a Sunday-first week.
func weekdayReached(today, scheduled time.Weekday) bool {
	return int(today) >= int(scheduled)
}
