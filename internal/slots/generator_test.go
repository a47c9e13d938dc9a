package slots

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Freeeeeet/coach_scheduler/internal/model"
)

// 2026-10-19 is a Monday.
var monday = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

func at(day time.Time, hour, minute int) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, day.Location())
}

func rule(weekday, startHour, endHour int) *model.AvailabilityRule {
	return &model.AvailabilityRule{
		Weekday:     weekday,
		StartMinute: startHour * 60,
		EndMinute:   endHour * 60,
		IsActive:    true,
	}
}

func TestGenerateExampleScenario(t *testing.T) {
	in := Input{
		Rules:            []*model.AvailabilityRule{rule(1, 9, 11)},
		IncrementMinutes: 30,
		Bookings:         []Interval{{Start: at(monday, 9, 30), End: at(monday, 10, 0)}},
		Date:             monday,
		Now:              at(monday, 6, 0),
		Location:         time.UTC,
		Buffer:           DefaultBuffer,
	}

	got := Generate(in)

	assert.Equal(t, []time.Time{at(monday, 9, 0), at(monday, 10, 0), at(monday, 10, 30)}, got)
}

func TestGenerateNoRulesForWeekday(t *testing.T) {
	in := Input{
		Rules:            []*model.AvailabilityRule{rule(2, 9, 17)},
		IncrementMinutes: 30,
		Date:             monday,
		Now:              monday.AddDate(0, 0, -7),
		Location:         time.UTC,
	}

	assert.Empty(t, Generate(in))
}

func TestGenerateIgnoresInactiveRules(t *testing.T) {
	r := rule(1, 9, 17)
	r.IsActive = false
	in := Input{
		Rules:    []*model.AvailabilityRule{r},
		Date:     monday,
		Now:      monday.AddDate(0, 0, -1),
		Location: time.UTC,
	}

	assert.Empty(t, Generate(in))
}

func TestGeneratePastDateIsEmpty(t *testing.T) {
	in := Input{
		Rules:    []*model.AvailabilityRule{rule(1, 9, 17)},
		Date:     monday,
		Now:      monday.AddDate(0, 0, 1),
		Location: time.UTC,
	}

	assert.Empty(t, Generate(in))
}

func TestGenerateMalformedIncrementFallsBack(t *testing.T) {
	for _, inc := range []int{0, -15} {
		in := Input{
			Rules:            []*model.AvailabilityRule{rule(1, 9, 10)},
			IncrementMinutes: inc,
			Date:             monday,
			Now:              monday.AddDate(0, 0, -1),
			Location:         time.UTC,
		}

		assert.Equal(t, []time.Time{at(monday, 9, 0), at(monday, 9, 30)}, Generate(in), "increment %d", inc)
	}
}

func TestGenerateDropsPartialTrailingSlot(t *testing.T) {
	r := &model.AvailabilityRule{Weekday: 1, StartMinute: 9 * 60, EndMinute: 10*60 + 20, IsActive: true}
	in := Input{
		Rules:            []*model.AvailabilityRule{r},
		IncrementMinutes: 30,
		Date:             monday,
		Now:              monday.AddDate(0, 0, -1),
		Location:         time.UTC,
	}

	assert.Equal(t, []time.Time{at(monday, 9, 0), at(monday, 9, 30)}, Generate(in))
}

func TestGenerateTodayRespectsBuffer(t *testing.T) {
	now := at(monday, 10, 17).Add(23 * time.Second)
	in := Input{
		Rules:            []*model.AvailabilityRule{rule(1, 9, 14)},
		IncrementMinutes: 30,
		Date:             monday,
		Now:              now,
		Location:         time.UTC,
		Buffer:           time.Hour,
	}

	got := Generate(in)

	require.NotEmpty(t, got)
	for _, s := range got {
		assert.False(t, s.Before(now.Add(time.Hour)), "slot %s starts inside the buffer", s)
		assert.Zero(t, s.Second())
	}
	assert.Equal(t, at(monday, 11, 18), got[0])
	assert.Equal(t, at(monday, 13, 18), got[len(got)-1])
}

func TestGenerateSortsAndDeduplicatesAcrossRules(t *testing.T) {
	in := Input{
		Rules: []*model.AvailabilityRule{
			rule(1, 14, 15),
			rule(1, 9, 10),
			rule(1, 9, 10),
		},
		IncrementMinutes: 30,
		Date:             monday,
		Now:              monday.AddDate(0, 0, -1),
		Location:         time.UTC,
	}

	got := Generate(in)

	assert.Equal(t, []time.Time{
		at(monday, 9, 0), at(monday, 9, 30), at(monday, 14, 0), at(monday, 14, 30),
	}, got)
}

func TestGenerateProperties(t *testing.T) {
	rules := []*model.AvailabilityRule{rule(1, 8, 12), rule(1, 13, 18), rule(1, 16, 20)}
	in := Input{
		Rules:            rules,
		IncrementMinutes: 45,
		Bookings: []Interval{
			{Start: at(monday, 9, 10), End: at(monday, 10, 0)},
			{Start: at(monday, 17, 0), End: at(monday, 18, 30)},
		},
		Date:     monday,
		Now:      monday.AddDate(0, 0, -2),
		Location: time.UTC,
	}
	step := 45 * time.Minute

	got := Generate(in)
	again := Generate(in)

	assert.Equal(t, got, again, "generate must be idempotent")
	for i, s := range got {
		end := s.Add(step)
		assert.True(t, Covered(rules, s, end, time.UTC), "slot %s is outside every rule", s)
		assert.False(t, Conflicts(in.Bookings, s, end), "slot %s overlaps a booking", s)
		if i > 0 {
			assert.True(t, s.After(got[i-1]), "slots must be strictly increasing")
		}
	}
}

func TestGenerateUsesCoachLocation(t *testing.T) {
	loc := time.FixedZone("MSK", 3*60*60)
	in := Input{
		Rules:            []*model.AvailabilityRule{rule(1, 9, 10)},
		IncrementMinutes: 60,
		Date:             time.Date(2026, 10, 19, 0, 0, 0, 0, loc),
		Now:              time.Date(2026, 10, 18, 12, 0, 0, 0, loc),
		Location:         loc,
	}

	got := Generate(in)

	require.Len(t, got, 1)
	assert.Equal(t, time.Date(2026, 10, 19, 6, 0, 0, 0, time.UTC), got[0].UTC())
}

func TestCandidatesFlagConflicts(t *testing.T) {
	in := Input{
		Rules:            []*model.AvailabilityRule{rule(1, 9, 10)},
		IncrementMinutes: 30,
		Bookings:         []Interval{{Start: at(monday, 9, 0), End: at(monday, 9, 30)}},
		Date:             monday,
		Now:              monday.AddDate(0, 0, -1),
		Location:         time.UTC,
	}

	got := Candidates(in)

	require.Len(t, got, 2)
	assert.False(t, got[0].Available)
	assert.True(t, got[1].Available)
}

func TestBookedIntervalsSkipsTerminal(t *testing.T) {
	sessions := []*model.Session{
		{ScheduledStart: at(monday, 9, 0), ScheduledEnd: at(monday, 10, 0), Status: model.SessionStatusConfirmed},
		{ScheduledStart: at(monday, 10, 0), ScheduledEnd: at(monday, 11, 0), Status: model.SessionStatusCancelled},
		{ScheduledStart: at(monday, 11, 0), ScheduledEnd: at(monday, 12, 0), Status: model.SessionStatusInProgress},
	}

	got := BookedIntervals(sessions)

	assert.Len(t, got, 2)
}

func TestOverlapsIsHalfOpen(t *testing.T) {
	assert.False(t, Overlaps(at(monday, 9, 0), at(monday, 9, 30), at(monday, 9, 30), at(monday, 10, 0)))
	assert.True(t, Overlaps(at(monday, 9, 0), at(monday, 9, 31), at(monday, 9, 30), at(monday, 10, 0)))
}
