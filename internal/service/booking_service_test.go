package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Freeeeeet/coach_scheduler/internal/apperrors"
	"github.com/Freeeeeet/coach_scheduler/internal/model"
	"github.com/Freeeeeet/coach_scheduler/internal/notify"
)

func TestPrice(t *testing.T) {
	tests := []struct {
		rate    int64
		minutes int
		want    int64
	}{
		{4000, 60, 4000},
		{4000, 30, 2000},
		{4000, 45, 3000},
		{3333, 15, 833},  // 833.25
		{1000, 15, 250},  // ровно
		{1002, 15, 251},  // 250.5 округляется вверх
		{5999, 120, 11998},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Price(tt.rate, tt.minutes), "rate=%d minutes=%d", tt.rate, tt.minutes)
	}
}

func TestBookSixtyMinutesAtFortyDollars(t *testing.T) {
	f := newFixture(t)

	s := f.book(t, f.coachID, "2026-10-19", "09:00", 60)

	assert.Equal(t, model.SessionStatusPending, s.Status)
	assert.Equal(t, int64(4000), s.Price)
	assert.Equal(t, "USD", s.Currency)
	assert.NotEmpty(t, s.PaymentRef)
	assert.False(t, s.Paid)
	assert.Equal(t, utc(19, 9, 0), s.ScheduledStart)
	assert.Equal(t, utc(19, 10, 0), s.ScheduledEnd)

	created := f.notes.OfKind(notify.KindBookingCreated)
	require.Len(t, created, 2)
	assert.ElementsMatch(t, []int64{f.studentID, f.coachID}, []int64{created[0].UserID, created[1].UserID})
}

func TestBookUsesGameRateOverride(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.users.SetGameRate(ctx, f.coachID, 7, 6000))

	s, err := f.booking.Book(ctx, BookRequest{
		CoachID: f.coachID, StudentID: f.studentID, GameID: 7,
		Date: "2026-10-19", Time: "09:00", DurationMinutes: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3000), s.Price)

	// без игры действует базовая ставка
	s, err = f.booking.Book(ctx, BookRequest{
		CoachID: f.coachID, StudentID: f.studentID,
		Date: "2026-10-19", Time: "10:00", DurationMinutes: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2000), s.Price)
}

func TestBookRejectsInvalidRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.book(t, f.coachID, "2026-10-19", "12:00", 60)

	tests := []struct {
		name string
		req  BookRequest
		kind apperrors.Kind
	}{
		{"duration not multiple of 15", BookRequest{Date: "2026-10-19", Time: "09:00", DurationMinutes: 20}, apperrors.KindValidation},
		{"duration too long", BookRequest{Date: "2026-10-19", Time: "09:00", DurationMinutes: 495}, apperrors.KindValidation},
		{"bad date", BookRequest{Date: "19.10.2026", Time: "09:00", DurationMinutes: 60}, apperrors.KindValidation},
		{"bad time", BookRequest{Date: "2026-10-19", Time: "9am", DurationMinutes: 60}, apperrors.KindValidation},
		{"in the past", BookRequest{Date: "2026-10-16", Time: "09:00", DurationMinutes: 60}, apperrors.KindValidation},
		{"weekend", BookRequest{Date: "2026-10-24", Time: "09:00", DurationMinutes: 60}, apperrors.KindValidation},
		{"runs past rule end", BookRequest{Date: "2026-10-19", Time: "17:30", DurationMinutes: 60}, apperrors.KindValidation},
		{"before rule start", BookRequest{Date: "2026-10-19", Time: "08:30", DurationMinutes: 60}, apperrors.KindValidation},
		{"overlaps booking", BookRequest{Date: "2026-10-19", Time: "12:30", DurationMinutes: 60}, apperrors.KindConflict},
		{"unknown coach", BookRequest{CoachID: 999, Date: "2026-10-19", Time: "09:00", DurationMinutes: 60}, apperrors.KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			if req.CoachID == 0 {
				req.CoachID = f.coachID
			}
			req.StudentID = f.studentID

			_, err := f.booking.Book(ctx, req)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperrors.KindOf(err))
		})
	}
}

func TestBookRespectsLeadTimeBuffer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.clock.Set(utc(19, 8, 50))

	offered, err := f.avail.ListOfferableSlots(ctx, f.coachID, "2026-10-19")
	require.NoError(t, err)
	require.NotEmpty(t, offered)
	assert.False(t, offered[0].Before(utc(19, 9, 50)))

	// через 10 минут: генератор такой слот не предлагает, бронь тоже не проходит
	_, err = f.booking.Book(ctx, BookRequest{
		CoachID: f.coachID, StudentID: f.studentID,
		Date: "2026-10-19", Time: "09:00", DurationMinutes: 30,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	_, err = f.booking.Book(ctx, BookRequest{
		CoachID: f.coachID, StudentID: f.studentID,
		Date: "2026-10-19", Time: "09:45", DurationMinutes: 30,
	})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	s, err := f.booking.Book(ctx, BookRequest{
		CoachID: f.coachID, StudentID: f.studentID,
		Date: "2026-10-19", Time: "10:00", DurationMinutes: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, utc(19, 10, 0), s.ScheduledStart.UTC())
}

func TestBookRejectsSelfBookingAndClosedCoach(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.booking.Book(ctx, BookRequest{
		CoachID: f.coachID, StudentID: f.coachID,
		Date: "2026-10-19", Time: "09:00", DurationMinutes: 60,
	})
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	_, err = f.users.BecomeCoach(ctx, f.coachID, CoachSettings{HourlyRate: 4000, AcceptingBookings: false})
	require.NoError(t, err)

	_, err = f.booking.Book(ctx, BookRequest{
		CoachID: f.coachID, StudentID: f.studentID,
		Date: "2026-10-19", Time: "09:00", DurationMinutes: 60,
	})
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestBookGatewayFailurePersistsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.gateway.FailAuthorize(errors.New("provider down"))

	_, err := f.booking.Book(ctx, BookRequest{
		CoachID: f.coachID, StudentID: f.studentID,
		Date: "2026-10-19", Time: "09:00", DurationMinutes: 60,
	})
	assert.True(t, errors.Is(err, apperrors.ErrGateway))

	upcoming, err := f.sessions.ListUpcoming(ctx, f.studentID)
	require.NoError(t, err)
	assert.Empty(t, upcoming)
	assert.Empty(t, f.notes.Sent())
}

func TestBookedTimeLeavesOfferableSlots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.book(t, f.coachID, "2026-10-19", "09:30", 30)

	starts, err := f.avail.ListOfferableSlots(ctx, f.coachID, "2026-10-19")
	require.NoError(t, err)
	require.NotEmpty(t, starts)
	assert.Equal(t, utc(19, 9, 0), starts[0])
	assert.Equal(t, utc(19, 10, 0), starts[1])
	assert.NotContains(t, starts, utc(19, 9, 30))
	assert.Equal(t, utc(19, 17, 30), starts[len(starts)-1])
}

func TestConcurrentBookingsOfSameSlotHaveOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const attempts = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   []*model.Session
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := f.booking.Book(ctx, BookRequest{
				CoachID: f.coachID, StudentID: f.studentID,
				Date: "2026-10-19", Time: "11:00", DurationMinutes: 60,
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners = append(winners, s)
				return
			}
			if errors.Is(err, apperrors.ErrConflict) {
				conflicts++
			}
		}()
	}
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, attempts-1, conflicts)

	active, err := f.store.Sessions().GetActiveByCoachBetween(ctx, f.coachID, utc(19, 0, 0), utc(20, 0, 0))
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestCancelledSessionFreesSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s := f.book(t, f.coachID, "2026-10-20", "09:00", 60)
	_, err := f.sessions.Cancel(ctx, s.ID, f.studentID, "")
	require.NoError(t, err)

	again := f.book(t, f.coachID, "2026-10-20", "09:00", 60)
	assert.NotEqual(t, s.ID, again.ID)
	assert.Equal(t, time.Hour, again.ScheduledEnd.Sub(again.ScheduledStart))
}
