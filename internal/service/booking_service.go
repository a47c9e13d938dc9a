package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Freeeeeet/coach_scheduler/internal/apperrors"
	"github.com/Freeeeeet/coach_scheduler/internal/clock"
	"github.com/Freeeeeet/coach_scheduler/internal/metrics"
	"github.com/Freeeeeet/coach_scheduler/internal/model"
	"github.com/Freeeeeet/coach_scheduler/internal/notify"
	"github.com/Freeeeeet/coach_scheduler/internal/payment"
	"github.com/Freeeeeet/coach_scheduler/internal/repository/reperrors"
	"github.com/Freeeeeet/coach_scheduler/internal/slots"
)

// BookRequest запрос студента на занятие. Дата и время в часовом поясе коуча
type BookRequest struct {
	CoachID         int64  `json:"coach_id" validate:"required,gt=0"`
	StudentID       int64  `json:"-" validate:"required,gt=0"`
	GameID          int64  `json:"game_id" validate:"gte=0"`
	Date            string `json:"date" validate:"required,datetime=2006-01-02"`
	Time            string `json:"time" validate:"required,datetime=15:04"`
	DurationMinutes int    `json:"duration_minutes" validate:"min=15,max=480,quarter"`
}

type BookingService struct {
	coachRepo   CoachRepository
	ruleRepo    AvailabilityRuleRepository
	sessionRepo SessionRepository
	gateway     payment.Gateway
	notifier    sessionNotifier
	clock       clock.Clock
	buffer      time.Duration
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewBookingService создаёт сервис. buffer минимальный запас до начала занятия,
// тот же, что у AvailabilityService; 0 означает slots.DefaultBuffer
func NewBookingService(
	coachRepo CoachRepository,
	ruleRepo AvailabilityRuleRepository,
	sessionRepo SessionRepository,
	gateway payment.Gateway,
	notifier notify.Notifier,
	clk clock.Clock,
	buffer time.Duration,
	validate *validator.Validate,
	logger *zap.Logger,
) *BookingService {
	if buffer <= 0 {
		buffer = slots.DefaultBuffer
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &BookingService{
		coachRepo:   coachRepo,
		ruleRepo:    ruleRepo,
		sessionRepo: sessionRepo,
		gateway:     gateway,
		notifier:    sessionNotifier{notifier: notifier, coachRepo: coachRepo, logger: logger},
		clock:       clk,
		buffer:      buffer,
		validator:   validate,
		logger:      logger,
	}
}

// Price стоимость занятия в центах: ставка за час × минуты / 60, округление половины вверх
func Price(hourlyRate int64, minutes int) int64 {
	return (hourlyRate*int64(minutes) + 30) / 60
}

// Book создаёт занятие в статусе pending после авторизации платежа
func (s *BookingService) Book(ctx context.Context, req BookRequest) (session *model.Session, err error) {
	defer func() {
		metrics.Bookings.WithLabelValues(bookingOutcome(err)).Inc()
	}()

	if err := s.validator.Struct(req); err != nil {
		return nil, invalid(err)
	}

	coach, err := s.coachRepo.GetByUserID(ctx, req.CoachID)
	if err != nil {
		return nil, fmt.Errorf("get coach: %w", err)
	}
	if coach == nil {
		return nil, apperrors.NotFound("coach %d not found", req.CoachID)
	}
	if !coach.AcceptingBookings {
		return nil, apperrors.Validation("coach is not accepting bookings")
	}
	if req.StudentID == req.CoachID {
		return nil, apperrors.Validation("coach cannot book a session with themselves")
	}

	loc := coach.Location()
	start, err := time.ParseInLocation("2006-01-02 15:04", req.Date+" "+req.Time, loc)
	if err != nil {
		return nil, apperrors.Validation("invalid date or time")
	}
	end := start.Add(time.Duration(req.DurationMinutes) * time.Minute)

	now := s.clock.Now()
	if !start.After(now) {
		return nil, apperrors.Validation("session start %s is in the past", start.Format(time.RFC3339))
	}
	if start.Before(now.Add(s.buffer)) {
		return nil, apperrors.Validation("session must start at least %s from now", s.buffer)
	}

	// Клиентскому списку слотов не доверяем: проверяем правило и пересечения заново
	rules, err := s.ruleRepo.GetActiveByCoachWeekday(ctx, coach.UserID, int(start.Weekday()))
	if err != nil {
		return nil, fmt.Errorf("get active availability rules: %w", err)
	}
	if !slots.Covered(rules, start, end, loc) {
		return nil, apperrors.Validation("requested time is outside coach availability")
	}

	from, to := slots.DayBounds(start, loc)
	existing, err := s.sessionRepo.GetActiveByCoachBetween(ctx, coach.UserID, from, to)
	if err != nil {
		return nil, fmt.Errorf("get coach sessions: %w", err)
	}
	if slots.Conflicts(slots.BookedIntervals(existing), start, end) {
		return nil, apperrors.Conflict("slot is no longer available, please pick another time")
	}

	rate := coach.HourlyRate
	if req.GameID > 0 {
		override, err := s.coachRepo.GetGameRate(ctx, coach.UserID, req.GameID)
		if err != nil {
			return nil, fmt.Errorf("get game rate: %w", err)
		}
		if override != nil {
			rate = override.HourlyRate
		}
	}
	price := Price(rate, req.DurationMinutes)

	idempotencyKey := uuid.NewString()
	ref, err := s.gateway.Authorize(ctx, price, coach.Currency, map[string]string{
		payment.MetadataIdempotencyKey: idempotencyKey,
		"coach_id":                     strconv.FormatInt(coach.UserID, 10),
		"student_id":                   strconv.FormatInt(req.StudentID, 10),
		"scheduled_start":              start.UTC().Format(time.RFC3339),
	})
	if err != nil {
		s.logger.Warn("Payment authorization failed",
			zap.Int64("coach_id", coach.UserID),
			zap.Int64("student_id", req.StudentID),
			zap.Error(err),
		)
		return nil, apperrors.Gateway(err, "payment authorization failed")
	}

	session = &model.Session{
		CoachID:         coach.UserID,
		StudentID:       req.StudentID,
		GameID:          req.GameID,
		ScheduledStart:  start.UTC(),
		ScheduledEnd:    end.UTC(),
		DurationMinutes: req.DurationMinutes,
		Price:           price,
		Currency:        coach.Currency,
		PaymentRef:      ref,
		Status:          model.SessionStatusPending,
	}

	if err := s.sessionRepo.CreatePending(ctx, session); err != nil {
		s.voidAuthorization(ctx, ref, price)
		if errors.Is(err, reperrors.ErrSlotTaken) {
			s.logger.Info("Booking lost the race for the slot",
				zap.Int64("coach_id", coach.UserID),
				zap.Int64("student_id", req.StudentID),
				zap.Time("start", start),
			)
			return nil, apperrors.Conflict("slot is no longer available, please pick another time")
		}
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.logger.Info("Session booked",
		zap.Int64("session_id", session.ID),
		zap.Int64("coach_id", session.CoachID),
		zap.Int64("student_id", session.StudentID),
		zap.Time("start", session.ScheduledStart),
		zap.Int64("price", session.Price),
		zap.String("payment_ref", session.PaymentRef),
	)

	_ = s.notifier.send(ctx, session, notify.KindBookingCreated, nil, session.StudentID, session.CoachID)

	return session, nil
}

// voidAuthorization снимает авторизацию, если занятие так и не было создано
func (s *BookingService) voidAuthorization(ctx context.Context, ref string, amount int64) {
	status, err := s.gateway.Refund(ctx, ref, amount, "booking conflict")
	if err != nil || status != payment.StatusSucceeded {
		s.logger.Error("Failed to void payment authorization",
			zap.String("payment_ref", ref),
			zap.String("status", string(status)),
			zap.Error(err),
		)
	}
}

func bookingOutcome(err error) string {
	if err == nil {
		return "ok"
	}
	switch apperrors.KindOf(err) {
	case apperrors.KindValidation:
		return "rejected"
	case apperrors.KindConflict:
		return "conflict"
	case apperrors.KindGateway:
		return "gateway_error"
	}
	return "error"
}
