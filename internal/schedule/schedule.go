// Package schedule models the daily work plan for a single activity:
// repeated sessions of fixed length separated by rest gaps, bounded by a
// daily budget and a weekly target. It answers two questions: is the plan
// feasible, and what priority does the activity claim at a given clock time.
package schedule

import (
	"fmt"
	"math"
	"time"
)

// Bedtime is the hard end of the working day.
const Bedtime = 21 * time.Hour

// ReferenceTimes names the start-of-day anchors a schedule may begin at.
var ReferenceTimes = map[string]time.Duration{
	"sunrise":       6 * time.Hour,
	"early morning": 7 * time.Hour,
	"morning":       9 * time.Hour,
	"midday":        12 * time.Hour,
	"afternoon":     16 * time.Hour,
	"evening":       20 * time.Hour,
}

// Range bounds a duration parameter for validation.
type Range struct {
	Min time.Duration `json:"min"`
	Max time.Duration `json:"max"`
}

// Schedule describes the plan for one activity. Session is the length of a
// single working session, Rest the gap before the next one, Daily the total
// working time per day, WeeklyTarget the time the activity should receive
// per week, and DaysPerWeek how many days the plan runs.
type Schedule struct {
	Activity     string        `json:"activity"`
	Priority     float64       `json:"priority"`
	Session      time.Duration `json:"session"`
	Rest         time.Duration `json:"rest"`
	Daily        time.Duration `json:"daily"`
	WeeklyTarget time.Duration `json:"weekly_target"`
	DaysPerWeek  float64       `json:"days_per_week"`
	Start        string        `json:"start"`

	// Domain optionally bounds the duration parameters by name
	// ("session", "rest", "daily", "weekly_target").
	Domain map[string]Range `json:"domain,omitempty"`
}

// DutyCycle is the period of one session plus its rest gap.
func (s Schedule) DutyCycle() time.Duration {
	return s.Session + s.Rest
}

// SessionsPerDay is the number of sessions needed to spend the daily budget.
// Partial sessions count as a full slot.
func (s Schedule) SessionsPerDay() float64 {
	if s.Session <= 0 {
		return 0
	}
	return float64(s.Daily) / float64(s.Session)
}

// FullDailyDuration is the wall-clock span of a full day of sessions,
// rest gaps included.
func (s Schedule) FullDailyDuration() time.Duration {
	n := math.Ceil(s.SessionsPerDay())
	return time.Duration(n * float64(s.DutyCycle()))
}

// StartTime resolves the named start anchor.
func (s Schedule) StartTime() (time.Duration, bool) {
	t, ok := ReferenceTimes[s.Start]
	return t, ok
}

// TimeUntilBedtime is the span between the start anchor and Bedtime.
func (s Schedule) TimeUntilBedtime() time.Duration {
	start, ok := s.StartTime()
	if !ok {
		return 0
	}
	return Bedtime - start
}

// TimePerWeek is the daily budget times the number of working days.
func (s Schedule) TimePerWeek() time.Duration {
	return time.Duration(float64(s.Daily) * s.DaysPerWeek)
}

// Window is one working session within the day.
type Window struct {
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
}

// Sessions lists the day's session windows from the start anchor, one duty
// cycle apart.
func (s Schedule) Sessions() []Window {
	start, ok := s.StartTime()
	if !ok || s.Session <= 0 {
		return nil
	}
	n := int(math.Ceil(s.SessionsPerDay()))
	windows := make([]Window, 0, n)
	for i := 0; i < n; i++ {
		begin := start + time.Duration(i)*s.DutyCycle()
		windows = append(windows, Window{Start: begin, End: begin + s.Session})
	}
	return windows
}

// Validate reports every constraint the schedule violates. An empty slice
// means the plan is feasible.
func (s Schedule) Validate() []string {
	var violations []string

	if s.Session <= 0 {
		violations = append(violations, "session length must be positive")
	}
	if s.Rest < 0 {
		violations = append(violations, "rest gap must not be negative")
	}
	if s.Daily <= 0 {
		violations = append(violations, "daily budget must be positive")
	}
	if s.DaysPerWeek < 0 || s.DaysPerWeek > 7 {
		violations = append(violations, "days per week must be between 0 and 7")
	}
	if _, ok := s.StartTime(); !ok {
		violations = append(violations, fmt.Sprintf("unknown start time %q", s.Start))
	}

	for _, p := range []struct {
		name  string
		value time.Duration
	}{
		{"session", s.Session},
		{"rest", s.Rest},
		{"daily", s.Daily},
		{"weekly_target", s.WeeklyTarget},
	} {
		bounds, ok := s.Domain[p.name]
		if !ok {
			continue
		}
		if p.value < bounds.Min || p.value > bounds.Max {
			violations = append(violations, fmt.Sprintf("%s outside domain [%s, %s]", p.name, bounds.Min, bounds.Max))
		}
	}

	if s.Session <= 0 || s.Daily <= 0 {
		return violations
	}

	if _, ok := s.StartTime(); ok && s.FullDailyDuration() > s.TimeUntilBedtime() {
		violations = append(violations, "full daily duration runs past bedtime")
	}
	if s.TimePerWeek() < s.WeeklyTarget {
		violations = append(violations, "weekly time falls short of the weekly target")
	}
	if s.TimePerWeek()-s.Daily >= s.WeeklyTarget {
		violations = append(violations, "weekly target already met with one fewer day")
	}

	return violations
}

// PriorityAt returns the activity's priority when the clock time falls
// inside a session window, else 0. Window boundaries are inclusive.
func (s Schedule) PriorityAt(clock time.Duration) float64 {
	for _, w := range s.Sessions() {
		if clock < w.Start || clock > w.End {
			continue
		}
		return s.Priority
	}
	return 0
}

// Point is one sample of the daily priority profile.
type Point struct {
	Clock    time.Duration `json:"clock"`
	Priority float64       `json:"priority"`
}

// Profile samples PriorityAt across a 24-hour day at the given step,
// endpoints included. A non-positive step defaults to five minutes.
func (s Schedule) Profile(step time.Duration) []Point {
	if step <= 0 {
		step = 5 * time.Minute
	}
	points := make([]Point, 0, 24*time.Hour/step+1)
	for clock := time.Duration(0); clock <= 24*time.Hour; clock += step {
		points = append(points, Point{Clock: clock, Priority: s.PriorityAt(clock)})
	}
	return points
}
