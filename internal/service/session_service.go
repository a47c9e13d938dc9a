package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/Freeeeeet/coach_scheduler/internal/apperrors"
	"github.com/Freeeeeet/coach_scheduler/internal/clock"
	"github.com/Freeeeeet/coach_scheduler/internal/lifecycle"
	"github.com/Freeeeeet/coach_scheduler/internal/metrics"
	"github.com/Freeeeeet/coach_scheduler/internal/model"
	"github.com/Freeeeeet/coach_scheduler/internal/notify"
	"github.com/Freeeeeet/coach_scheduler/internal/payment"
	"github.com/Freeeeeet/coach_scheduler/internal/repository/reperrors"
)

// CancelResult результат отмены. RefundWarning заполнен, если возврат не прошёл:
// отмена при этом остаётся в силе.
type CancelResult struct {
	Session       *model.Session `json:"session"`
	Refunded      bool           `json:"refunded"`
	RefundWarning string         `json:"refund_warning,omitempty"`
}

// SessionService применяет переходы автомата к сохранённым занятиям
type SessionService struct {
	sessionRepo SessionRepository
	coachRepo   CoachRepository
	gateway     payment.Gateway
	notifier    sessionNotifier
	clock       clock.Clock
	logger      *zap.Logger
}

func NewSessionService(
	sessionRepo SessionRepository,
	coachRepo CoachRepository,
	gateway payment.Gateway,
	notifier notify.Notifier,
	clk clock.Clock,
	logger *zap.Logger,
) *SessionService {
	return &SessionService{
		sessionRepo: sessionRepo,
		coachRepo:   coachRepo,
		gateway:     gateway,
		notifier:    sessionNotifier{notifier: notifier, coachRepo: coachRepo, logger: logger},
		clock:       clk,
		logger:      logger,
	}
}

// Get возвращает занятие участнику
func (s *SessionService) Get(ctx context.Context, sessionID, actorID int64) (*model.Session, error) {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsParticipant(actorID) {
		return nil, apperrors.Forbidden("session %d is not yours", sessionID)
	}
	return session, nil
}

// ListUpcoming ближайшие занятия пользователя, как коуча или как студента
func (s *SessionService) ListUpcoming(ctx context.Context, userID int64) ([]*model.Session, error) {
	sessions, err := s.sessionRepo.GetUpcomingByUser(ctx, userID, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("get upcoming sessions: %w", err)
	}
	return sessions, nil
}

// ConfirmPayment сверяет платёж с провайдером и подтверждает занятие
func (s *SessionService) ConfirmPayment(ctx context.Context, sessionID int64) (*model.Session, error) {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.confirmPayment(ctx, session)
}

// ConfirmPaymentByRef то же по ссылке платежа (колбэк провайдера)
func (s *SessionService) ConfirmPaymentByRef(ctx context.Context, ref string) (*model.Session, error) {
	if ref == "" {
		return nil, apperrors.Validation("payment_ref is required")
	}
	session, err := s.sessionRepo.GetByPaymentRef(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("get session by payment ref: %w", err)
	}
	if session == nil {
		return nil, apperrors.NotFound("no session for payment %s", ref)
	}
	return s.confirmPayment(ctx, session)
}

func (s *SessionService) confirmPayment(ctx context.Context, session *model.Session) (*model.Session, error) {
	// Не дёргаем провайдера, если переход заведомо невозможен
	if !lifecycle.Allowed(session.Status, lifecycle.EventPaymentSucceeded) {
		metrics.Transitions.WithLabelValues(string(lifecycle.EventPaymentSucceeded), "rejected").Inc()
		return nil, apperrors.InvalidTransition("cannot confirm payment of a %s session", session.Status)
	}

	status, err := s.gateway.Confirm(ctx, session.PaymentRef)
	if err != nil {
		s.logger.Warn("Payment confirmation failed",
			zap.Int64("session_id", session.ID),
			zap.String("payment_ref", session.PaymentRef),
			zap.Error(err),
		)
		return nil, apperrors.Gateway(err, "payment confirmation failed")
	}

	next, err := s.apply(ctx, session, lifecycle.EventPaymentSucceeded, lifecycle.Params{
		Now:              s.clock.Now(),
		PaymentConfirmed: status == payment.StatusSucceeded,
	})
	if err != nil {
		return nil, err
	}

	_ = s.notifier.send(ctx, next, notify.KindSessionConfirmed, nil, next.StudentID, next.CoachID)
	return next, nil
}

// Start коуч начинает занятие
func (s *SessionService) Start(ctx context.Context, sessionID, actorID int64) (*model.Session, error) {
	session, err := s.loadForCoach(ctx, sessionID, actorID)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, session, lifecycle.EventStart, lifecycle.Params{Now: s.clock.Now(), ActorID: actorID})
}

// Complete коуч завершает занятие
func (s *SessionService) Complete(ctx context.Context, sessionID, actorID int64) (*model.Session, error) {
	session, err := s.loadForCoach(ctx, sessionID, actorID)
	if err != nil {
		return nil, err
	}

	next, err := s.apply(ctx, session, lifecycle.EventComplete, lifecycle.Params{Now: s.clock.Now(), ActorID: actorID})
	if err != nil {
		return nil, err
	}

	s.recordCompletion(ctx, next)
	return next, nil
}

// Cancel отменяет занятие по инициативе участника; оплаченное занятие возвращается
func (s *SessionService) Cancel(ctx context.Context, sessionID, actorID int64, reason string) (*CancelResult, error) {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsParticipant(actorID) {
		return nil, apperrors.Forbidden("only participants can cancel session %d", sessionID)
	}

	next, err := s.apply(ctx, session, lifecycle.EventCancel, lifecycle.Params{
		Now:     s.clock.Now(),
		ActorID: actorID,
		Reason:  reason,
	})
	if err != nil {
		return nil, err
	}

	result := &CancelResult{Session: next}
	if next.Paid {
		if err := s.refund(ctx, next, reason); err != nil {
			s.logger.Error("Refund failed, cancellation kept",
				zap.Int64("session_id", next.ID),
				zap.String("payment_ref", next.PaymentRef),
				zap.Int64("amount", next.Price),
				zap.Error(err),
			)
			result.RefundWarning = "refund failed: " + err.Error()
			_ = s.notifier.send(ctx, next, notify.KindRefundFailed, nil, next.StudentID)
		} else {
			result.Refunded = true
		}
	}

	_ = s.notifier.send(ctx, next, notify.KindSessionCancelled, notify.Params{
		"reason":   reason,
		"refunded": strconv.FormatBool(result.Refunded),
	}, next.Counterpart(actorID))

	return result, nil
}

// MarkNoShow закрывает подтверждённое занятие, которое так и не началось
func (s *SessionService) MarkNoShow(ctx context.Context, session *model.Session) (*model.Session, error) {
	next, err := s.apply(ctx, session, lifecycle.EventNoShow, lifecycle.Params{Now: s.clock.Now()})
	if err != nil {
		return nil, err
	}
	_ = s.notifier.send(ctx, next, notify.KindSessionNoShow, nil, next.StudentID, next.CoachID)
	return next, nil
}

// AutoComplete закрывает занятие, которое коуч забыл завершить
func (s *SessionService) AutoComplete(ctx context.Context, session *model.Session) (*model.Session, error) {
	next, err := s.apply(ctx, session, lifecycle.EventAutoComplete, lifecycle.Params{Now: s.clock.Now()})
	if err != nil {
		return nil, err
	}
	s.recordCompletion(ctx, next)
	return next, nil
}

// apply проверяет переход и пишет результат с проверкой версии.
// Проигравший гонку получает InvalidTransition.
func (s *SessionService) apply(ctx context.Context, session *model.Session, ev lifecycle.Event, p lifecycle.Params) (*model.Session, error) {
	next, err := lifecycle.Apply(session, ev, p)
	if err != nil {
		metrics.Transitions.WithLabelValues(string(ev), "rejected").Inc()
		return nil, err
	}

	if err := s.sessionRepo.Save(ctx, next); err != nil {
		if errors.Is(err, reperrors.ErrStaleSession) {
			metrics.Transitions.WithLabelValues(string(ev), "stale").Inc()
			return nil, apperrors.InvalidTransition("session %d was changed concurrently", session.ID)
		}
		metrics.Transitions.WithLabelValues(string(ev), "error").Inc()
		return nil, fmt.Errorf("save session: %w", err)
	}

	metrics.Transitions.WithLabelValues(string(ev), "ok").Inc()
	s.logger.Info("Session transition applied",
		zap.Int64("session_id", next.ID),
		zap.String("event", string(ev)),
		zap.String("from", string(session.Status)),
		zap.String("to", string(next.Status)),
	)
	return next, nil
}

func (s *SessionService) refund(ctx context.Context, session *model.Session, reason string) error {
	status, err := s.gateway.Refund(ctx, session.PaymentRef, session.Price, reason)
	if err != nil {
		return err
	}
	if status != payment.StatusSucceeded {
		return fmt.Errorf("refund status %s", status)
	}
	s.logger.Info("Session refunded",
		zap.Int64("session_id", session.ID),
		zap.String("payment_ref", session.PaymentRef),
		zap.Int64("amount", session.Price),
	)
	return nil
}

// recordCompletion обновляет статистику коуча; сбой не откатывает завершение
func (s *SessionService) recordCompletion(ctx context.Context, session *model.Session) {
	newStudent, err := s.coachRepo.RecordCompletion(ctx, session.CoachID, session.StudentID, session.Price)
	if err != nil {
		s.logger.Error("Failed to update coach stats",
			zap.Int64("session_id", session.ID),
			zap.Int64("coach_id", session.CoachID),
			zap.Error(err),
		)
		return
	}
	s.logger.Debug("Coach stats updated",
		zap.Int64("coach_id", session.CoachID),
		zap.Int64("student_id", session.StudentID),
		zap.Bool("new_student", newStudent),
	)
}

func (s *SessionService) load(ctx context.Context, sessionID int64) (*model.Session, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if session == nil {
		return nil, apperrors.NotFound("session %d not found", sessionID)
	}
	return session, nil
}

func (s *SessionService) loadForCoach(ctx context.Context, sessionID, actorID int64) (*model.Session, error) {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.CoachID != actorID {
		return nil, apperrors.Forbidden("only the coach can do this with session %d", sessionID)
	}
	return session, nil
}
