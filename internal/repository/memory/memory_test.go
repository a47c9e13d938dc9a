package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Freeeeeet/coach_scheduler/internal/clock"
	"github.com/Freeeeeet/coach_scheduler/internal/model"
	"github.com/Freeeeeet/coach_scheduler/internal/repository/reperrors"
)

var base = time.Date(2026, 10, 20, 15, 0, 0, 0, time.UTC)

func pending(coachID int64, start time.Time, minutes int) *model.Session {
	return &model.Session{
		CoachID:         coachID,
		StudentID:       99,
		ScheduledStart:  start,
		ScheduledEnd:    start.Add(time.Duration(minutes) * time.Minute),
		DurationMinutes: minutes,
		Status:          model.SessionStatusPending,
	}
}

func TestCreatePendingRejectsOverlap(t *testing.T) {
	ctx := context.Background()
	repo := New(clock.NewMock(base)).Sessions()

	require.NoError(t, repo.CreatePending(ctx, pending(1, base, 60)))

	err := repo.CreatePending(ctx, pending(1, base.Add(30*time.Minute), 60))
	assert.True(t, errors.Is(err, reperrors.ErrSlotTaken))

	// другой коуч и соседний интервал не конфликтуют
	assert.NoError(t, repo.CreatePending(ctx, pending(2, base, 60)))
	assert.NoError(t, repo.CreatePending(ctx, pending(1, base.Add(time.Hour), 30)))
}

func TestCreatePendingIgnoresTerminalSessions(t *testing.T) {
	ctx := context.Background()
	repo := New(clock.NewMock(base)).Sessions()

	s := pending(1, base, 60)
	require.NoError(t, repo.CreatePending(ctx, s))
	s.Status = model.SessionStatusCancelled
	require.NoError(t, repo.Save(ctx, s))

	assert.NoError(t, repo.CreatePending(ctx, pending(1, base, 60)))
}

func TestCreatePendingConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	repo := New(clock.NewMock(base)).Sessions()

	var wg sync.WaitGroup
	var wins, conflicts int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.CreatePending(ctx, pending(1, base, 60))
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
			case errors.Is(err, reperrors.ErrSlotTaken):
				atomic.AddInt32(&conflicts, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
	assert.Equal(t, int32(19), conflicts)
}

func TestSaveDetectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	repo := New(clock.NewMock(base)).Sessions()

	s := pending(1, base, 60)
	require.NoError(t, repo.CreatePending(ctx, s))

	a, err := repo.GetByID(ctx, s.ID)
	require.NoError(t, err)
	b, err := repo.GetByID(ctx, s.ID)
	require.NoError(t, err)

	a.Status = model.SessionStatusConfirmed
	require.NoError(t, repo.Save(ctx, a))
	assert.Equal(t, int64(2), a.Version)

	b.Status = model.SessionStatusCancelled
	assert.True(t, errors.Is(repo.Save(ctx, b), reperrors.ErrStaleSession))

	stored, err := repo.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusConfirmed, stored.Status)
}

func TestGetByIDReturnsCopy(t *testing.T) {
	ctx := context.Background()
	repo := New(clock.NewMock(base)).Sessions()

	s := pending(1, base, 60)
	require.NoError(t, repo.CreatePending(ctx, s))

	got, err := repo.GetByID(ctx, s.ID)
	require.NoError(t, err)
	got.Status = model.SessionStatusCompleted

	again, err := repo.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusPending, again.Status)

	missing, err := repo.GetByID(ctx, 404)
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRecordCompletionCountsDistinctStudents(t *testing.T) {
	ctx := context.Background()
	coaches := New(clock.NewMock(base)).Coaches()

	first, err := coaches.RecordCompletion(ctx, 1, 50, 4000)
	require.NoError(t, err)
	assert.True(t, first)

	first, err = coaches.RecordCompletion(ctx, 1, 50, 4000)
	require.NoError(t, err)
	assert.False(t, first)

	stats, err := coaches.GetStats(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalSessions)
	assert.Equal(t, 1, stats.TotalStudents)
	assert.Equal(t, int64(8000), stats.TotalEarnings)
}

func TestRulesByGroup(t *testing.T) {
	ctx := context.Background()
	rules := New(clock.NewMock(base)).Rules()
	group := uuid.New()

	require.NoError(t, rules.CreateGroup(ctx, []*model.AvailabilityRule{
		{GroupID: group, CoachID: 1, Weekday: 1, StartMinute: 540, EndMinute: 600, IsActive: true},
		{GroupID: group, CoachID: 1, Weekday: 3, StartMinute: 540, EndMinute: 600, IsActive: true},
	}))

	active, err := rules.GetActiveByCoachWeekday(ctx, 1, 3)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	require.NoError(t, rules.DeactivateByGroupID(ctx, group))

	active, err = rules.GetActiveByCoachWeekday(ctx, 1, 3)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := rules.GetByGroupID(ctx, group)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestReminderLogMarksOnce(t *testing.T) {
	ctx := context.Background()
	log := New(nil).Reminders()

	ok, err := log.MarkSent(ctx, 1, "reminder_24h")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = log.MarkSent(ctx, 1, "reminder_24h")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = log.MarkSent(ctx, 1, "reminder_1h")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, log.Release(ctx, 1, "reminder_24h"))
	ok, err = log.MarkSent(ctx, 1, "reminder_24h")
	require.NoError(t, err)
	assert.True(t, ok)
}
