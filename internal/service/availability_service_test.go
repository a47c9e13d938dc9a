package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Freeeeeet/coach_scheduler/internal/apperrors"
)

func TestCreateRuleGroupExpandsWeekdaysAndWindows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	coach := f.newUser(t, 101)
	_, err := f.users.BecomeCoach(ctx, coach, CoachSettings{HourlyRate: 3000, AcceptingBookings: true})
	require.NoError(t, err)

	groupID, rules, err := f.avail.CreateRuleGroup(ctx, coach, CreateRulesRequest{
		Weekdays: []int{0, 6},
		Windows:  []TimeWindow{{Start: "08:00", End: "12:00"}, {Start: "20:00", End: "24:00"}},
	})
	require.NoError(t, err)
	require.Len(t, rules, 4)
	for _, r := range rules {
		assert.Equal(t, groupID, r.GroupID)
		assert.True(t, r.IsActive)
	}
	assert.Equal(t, 20*60, rules[1].StartMinute)
	assert.Equal(t, 24*60, rules[1].EndMinute)

	listed, err := f.avail.ListRules(ctx, coach)
	require.NoError(t, err)
	assert.Len(t, listed, 4)
}

func TestCreateRuleGroupValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  CreateRulesRequest
	}{
		{"no weekdays", CreateRulesRequest{Windows: []TimeWindow{{"09:00", "10:00"}}}},
		{"weekday out of range", CreateRulesRequest{Weekdays: []int{7}, Windows: []TimeWindow{{"09:00", "10:00"}}}},
		{"no windows", CreateRulesRequest{Weekdays: []int{1}}},
		{"start after end", CreateRulesRequest{Weekdays: []int{1}, Windows: []TimeWindow{{"10:00", "09:00"}}}},
		{"empty window", CreateRulesRequest{Weekdays: []int{1}, Windows: []TimeWindow{{"10:00", "10:00"}}}},
		{"bad clock", CreateRulesRequest{Weekdays: []int{1}, Windows: []TimeWindow{{"9:00", "10:00"}}}},
		{"past midnight", CreateRulesRequest{Weekdays: []int{1}, Windows: []TimeWindow{{"23:00", "24:30"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.avail.CreateRuleGroup(ctx, f.coachID, tt.req)
			assert.True(t, errors.Is(err, apperrors.ErrValidation), err)
		})
	}

	_, _, err := f.avail.CreateRuleGroup(ctx, f.studentID, CreateRulesRequest{
		Weekdays: []int{1}, Windows: []TimeWindow{{"09:00", "10:00"}},
	})
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestRuleOwnershipChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := f.newCoach(t, 101)

	rules, err := f.avail.ListRules(ctx, f.coachID)
	require.NoError(t, err)
	require.NotEmpty(t, rules)
	rule := rules[0]

	_, err = f.avail.UpdateRule(ctx, other, rule.ID, UpdateRuleRequest{Weekday: 1, Window: TimeWindow{"10:00", "11:00"}})
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))

	assert.True(t, errors.Is(f.avail.DeactivateRule(ctx, other, rule.ID), apperrors.ErrForbidden))
	assert.True(t, errors.Is(f.avail.DeactivateGroup(ctx, other, rule.GroupID), apperrors.ErrForbidden))
	assert.True(t, errors.Is(f.avail.DeactivateGroup(ctx, f.coachID, uuid.New()), apperrors.ErrNotFound))
	assert.True(t, errors.Is(f.avail.DeactivateRule(ctx, f.coachID, 9999), apperrors.ErrNotFound))
}

func TestUpdateRuleChangesOfferableSlots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rules, err := f.avail.ListRules(ctx, f.coachID)
	require.NoError(t, err)
	var monday int64
	for _, r := range rules {
		if r.Weekday == 1 {
			monday = r.ID
		}
	}
	require.NotZero(t, monday)

	updated, err := f.avail.UpdateRule(ctx, f.coachID, monday, UpdateRuleRequest{Weekday: 1, Window: TimeWindow{"14:00", "15:00"}})
	require.NoError(t, err)
	assert.Equal(t, 14*60, updated.StartMinute)

	starts, err := f.avail.ListOfferableSlots(ctx, f.coachID, "2026-10-19")
	require.NoError(t, err)
	assert.Equal(t, []int{14, 14}, []int{starts[0].Hour(), starts[1].Hour()})
	assert.Len(t, starts, 2)
}

func TestDeactivateGroupHidesAllSlots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rules, err := f.avail.ListRules(ctx, f.coachID)
	require.NoError(t, err)
	require.NoError(t, f.avail.DeactivateGroup(ctx, f.coachID, rules[0].GroupID))

	for _, date := range []string{"2026-10-19", "2026-10-20", "2026-10-23"} {
		starts, err := f.avail.ListOfferableSlots(ctx, f.coachID, date)
		require.NoError(t, err)
		assert.Empty(t, starts, date)
	}
}

func TestDeactivateSingleRule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rules, err := f.avail.ListRules(ctx, f.coachID)
	require.NoError(t, err)
	var tuesday int64
	for _, r := range rules {
		if r.Weekday == 2 {
			tuesday = r.ID
		}
	}
	require.NoError(t, f.avail.DeactivateRule(ctx, f.coachID, tuesday))

	starts, err := f.avail.ListOfferableSlots(ctx, f.coachID, "2026-10-20")
	require.NoError(t, err)
	assert.Empty(t, starts)

	starts, err = f.avail.ListOfferableSlots(ctx, f.coachID, "2026-10-19")
	require.NoError(t, err)
	assert.Len(t, starts, 18)
}

func TestListCandidatesMarksBookedSlots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.book(t, f.coachID, "2026-10-19", "09:30", 30)

	candidates, err := f.avail.ListCandidates(ctx, f.coachID, "2026-10-19")
	require.NoError(t, err)
	require.Len(t, candidates, 18)
	assert.True(t, candidates[0].Available)
	assert.False(t, candidates[1].Available)
	assert.Equal(t, utc(19, 9, 30), candidates[1].Start)
	assert.True(t, candidates[2].Available)
}

func TestListOfferableSlotsValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.avail.ListOfferableSlots(ctx, f.coachID, "19.10.2026")
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	_, err = f.avail.ListOfferableSlots(ctx, 999, "2026-10-19")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	// прошедший день пуст
	starts, err := f.avail.ListOfferableSlots(ctx, f.coachID, "2026-10-16")
	require.NoError(t, err)
	assert.Empty(t, starts)
}
