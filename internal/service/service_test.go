package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Freeeeeet/coach_scheduler/internal/clock"
	"github.com/Freeeeeet/coach_scheduler/internal/model"
	"github.com/Freeeeeet/coach_scheduler/internal/notify"
	"github.com/Freeeeeet/coach_scheduler/internal/payment"
	"github.com/Freeeeeet/coach_scheduler/internal/repository/memory"
)

var (
	_ UserRepository             = (*memory.UserRepo)(nil)
	_ CoachRepository            = (*memory.CoachRepo)(nil)
	_ AvailabilityRuleRepository = (*memory.RuleRepo)(nil)
	_ SessionRepository          = (*memory.SessionRepo)(nil)
	_ SweepRepository            = (*memory.SessionRepo)(nil)
	_ ReminderLog                = (*memory.ReminderLog)(nil)
)

// воскресенье 18.10.2026 12:00 UTC; понедельник 19.10 через 21 час
var sunday = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

type fixture struct {
	clock   *clock.Mock
	store   *memory.Store
	gateway *payment.Sandbox
	notes   *notify.Recorder

	users    *UserService
	avail    *AvailabilityService
	booking  *BookingService
	sessions *SessionService
	sweeps   *SweepService

	coachID   int64
	studentID int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		clock:   clock.NewMock(sunday),
		gateway: payment.NewSandbox(),
		notes:   &notify.Recorder{},
	}
	f.store = memory.New(f.clock)

	logger := zap.NewNop()
	validate := NewValidator()
	users, coaches, rules, sessions := f.store.Users(), f.store.Coaches(), f.store.Rules(), f.store.Sessions()

	f.users = NewUserService(users, coaches, validate, CoachDefaults{Currency: "USD"}, logger)
	f.avail = NewAvailabilityService(rules, coaches, sessions, f.clock, time.Hour, validate, logger)
	f.booking = NewBookingService(coaches, rules, sessions, f.gateway, f.notes, f.clock, time.Hour, validate, logger)
	f.sessions = NewSessionService(sessions, coaches, f.gateway, f.notes, f.clock, logger)
	f.sweeps = NewSweepService(sessions, f.sessions, f.store.Reminders(), coaches, f.notes, f.clock, logger)

	f.coachID = f.newCoach(t, 100)
	f.studentID = f.newUser(t, 200)
	return f
}

func (f *fixture) newUser(t *testing.T, telegramID int64) int64 {
	t.Helper()
	u, err := f.users.RegisterUser(context.Background(), telegramID, "user", "Test", "", "ru")
	require.NoError(t, err)
	return u.ID
}

// newCoach коуч с ставкой $40/ч, доступный пн-пт 09:00-18:00 UTC
func (f *fixture) newCoach(t *testing.T, telegramID int64) int64 {
	t.Helper()
	ctx := context.Background()

	id := f.newUser(t, telegramID)
	_, err := f.users.BecomeCoach(ctx, id, CoachSettings{
		HourlyRate:        4000,
		Timezone:          "UTC",
		AcceptingBookings: true,
	})
	require.NoError(t, err)

	_, _, err = f.avail.CreateRuleGroup(ctx, id, CreateRulesRequest{
		Weekdays: []int{1, 2, 3, 4, 5},
		Windows:  []TimeWindow{{Start: "09:00", End: "18:00"}},
	})
	require.NoError(t, err)
	return id
}

func (f *fixture) book(t *testing.T, coachID int64, date, clockTime string, minutes int) *model.Session {
	t.Helper()
	s, err := f.booking.Book(context.Background(), BookRequest{
		CoachID:         coachID,
		StudentID:       f.studentID,
		Date:            date,
		Time:            clockTime,
		DurationMinutes: minutes,
	})
	require.NoError(t, err)
	return s
}

func (f *fixture) confirmed(t *testing.T, coachID int64, date, clockTime string, minutes int) *model.Session {
	t.Helper()
	s := f.book(t, coachID, date, clockTime, minutes)
	s, err := f.sessions.ConfirmPayment(context.Background(), s.ID)
	require.NoError(t, err)
	return s
}

func (f *fixture) inProgress(t *testing.T, coachID int64, date, clockTime string, minutes int) *model.Session {
	t.Helper()
	s := f.confirmed(t, coachID, date, clockTime, minutes)
	s, err := f.sessions.Start(context.Background(), s.ID, coachID)
	require.NoError(t, err)
	return s
}

func (f *fixture) reload(t *testing.T, id int64) *model.Session {
	t.Helper()
	s, err := f.store.Sessions().GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, s)
	return s
}

func utc(day, hour, minute int) time.Time {
	return time.Date(2026, 10, day, hour, minute, 0, 0, time.UTC)
}
