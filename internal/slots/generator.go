// Package slots turns weekly availability rules and existing bookings into
// offerable start times. Everything here is pure: no I/O, no wall clock.
package slots

import (
	"sort"
	"time"

	"github.com/Freeeeeet/coach_scheduler/internal/model"
)

const (
	// DefaultIncrementMinutes is used when the coach has no usable increment.
	DefaultIncrementMinutes = 30
	// DefaultBuffer is the lead time before the earliest slot offered today.
	DefaultBuffer = time.Hour
)

// Interval is a booked half-open range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Input holds everything Generate needs.
type Input struct {
	Rules            []*model.AvailabilityRule
	IncrementMinutes int
	Bookings         []Interval
	Date             time.Time // any instant on the target day, read in Location
	Now              time.Time
	Location         *time.Location
	Buffer           time.Duration
}

// Increment returns minutes as a stride, falling back to the default for
// unset or non-positive values.
func Increment(minutes int) time.Duration {
	if minutes <= 0 {
		minutes = DefaultIncrementMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// Generate returns the sorted offerable slot start times for in.Date.
func Generate(in Input) []time.Time {
	var starts []time.Time
	for _, c := range Candidates(in) {
		if c.Available {
			starts = append(starts, c.Start)
		}
	}
	return starts
}

// Candidates returns every candidate slot for in.Date, flagged with whether it
// is free of bookings. Candidates cut by the past or the buffer are not listed.
func Candidates(in Input) []model.SlotCandidate {
	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}

	day := startOfDay(in.Date, loc)
	today := startOfDay(in.Now, loc)
	if day.Before(today) {
		return nil
	}

	step := Increment(in.IncrementMinutes)
	earliest := time.Time{}
	if day.Equal(today) {
		earliest = ceilMinute(in.Now.Add(in.Buffer))
	}

	seen := make(map[int64]struct{})
	var out []model.SlotCandidate

	for _, rule := range in.Rules {
		if rule == nil || !rule.IsActive || rule.Weekday != int(day.Weekday()) {
			continue
		}

		ruleStart, ruleEnd := rule.Bounds(day, loc)
		start := ruleStart
		if earliest.After(start) {
			start = earliest
		}

		for s := start; !s.Add(step).After(ruleEnd); s = s.Add(step) {
			key := s.UnixNano()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			end := s.Add(step)
			out = append(out, model.SlotCandidate{
				Start:     s,
				End:       end,
				Available: !Conflicts(in.Bookings, s, end),
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})

	return out
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// Conflicts reports whether [start, end) overlaps any booking.
func Conflicts(bookings []Interval, start, end time.Time) bool {
	for _, b := range bookings {
		if Overlaps(start, end, b.Start, b.End) {
			return true
		}
	}
	return false
}

// Covered reports whether [start, end) lies fully inside one active rule for
// the local weekday of start.
func Covered(rules []*model.AvailabilityRule, start, end time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	local := start.In(loc)
	for _, rule := range rules {
		if rule == nil || !rule.IsActive || rule.Weekday != int(local.Weekday()) {
			continue
		}
		ruleStart, ruleEnd := rule.Bounds(local, loc)
		if !start.Before(ruleStart) && !end.After(ruleEnd) {
			return true
		}
	}
	return false
}

// BookedIntervals keeps the sessions that still occupy calendar time.
func BookedIntervals(sessions []*model.Session) []Interval {
	out := make([]Interval, 0, len(sessions))
	for _, s := range sessions {
		if s == nil || s.Status.IsTerminal() {
			continue
		}
		out = append(out, Interval{Start: s.ScheduledStart, End: s.ScheduledEnd})
	}
	return out
}

// DayBounds returns [00:00, next 00:00) of t's day in loc.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	start := startOfDay(t, loc)
	y, m, d := start.Date()
	return start, time.Date(y, m, d+1, 0, 0, 0, 0, loc)
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// ceilMinute drops sub-minute precision upwards: slots are booked as HH:MM.
func ceilMinute(t time.Time) time.Time {
	truncated := t.Truncate(time.Minute)
	if truncated.Equal(t) {
		return t
	}
	return truncated.Add(time.Minute)
}
