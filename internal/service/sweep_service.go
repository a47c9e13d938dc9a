package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Freeeeeet/coach_scheduler/internal/apperrors"
	"github.com/Freeeeeet/coach_scheduler/internal/clock"
	"github.com/Freeeeeet/coach_scheduler/internal/lifecycle"
	"github.com/Freeeeeet/coach_scheduler/internal/metrics"
	"github.com/Freeeeeet/coach_scheduler/internal/model"
	"github.com/Freeeeeet/coach_scheduler/internal/notify"
)

// Имена фоновых задач, они же метки метрик
const (
	SweepReminders      = "reminders"
	SweepNoShows        = "no_shows"
	SweepAutoComplete   = "auto_complete"
	SweepReviewRequests = "review_requests"
)

// ReminderWindow ширина окна напоминаний, совпадает с периодом запуска задачи
const ReminderWindow = 30 * time.Minute

var (
	reviewWindowFrom = 48 * time.Hour
	reviewWindowTo   = 24 * time.Hour
)

var reminderOffsets = []struct {
	kind   notify.Kind
	offset time.Duration
}{
	{notify.KindReminder24h, 24 * time.Hour},
	{notify.KindReminder1h, time.Hour},
}

// SweepReport итог одного прохода
type SweepReport struct {
	Sweep   string `json:"sweep"`
	Scanned int    `json:"scanned"`
	Applied int    `json:"applied"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`
}

// SweepService периодические проходы по занятиям. Каждый проход зависит только
// от времени часов, его можно безопасно повторять.
type SweepService struct {
	sweepRepo SweepRepository
	sessions  *SessionService
	reminders ReminderLog
	notifier  sessionNotifier
	clock     clock.Clock
	logger    *zap.Logger
}

func NewSweepService(
	sweepRepo SweepRepository,
	sessions *SessionService,
	reminders ReminderLog,
	coachRepo CoachRepository,
	notifier notify.Notifier,
	clk clock.Clock,
	logger *zap.Logger,
) *SweepService {
	return &SweepService{
		sweepRepo: sweepRepo,
		sessions:  sessions,
		reminders: reminders,
		notifier:  sessionNotifier{notifier: notifier, coachRepo: coachRepo, logger: logger},
		clock:     clk,
		logger:    logger,
	}
}

// RunReminders напоминает обеим сторонам о занятиях через сутки и через час
func (s *SweepService) RunReminders(ctx context.Context) (SweepReport, error) {
	return s.run(ctx, SweepReminders, func(report *SweepReport) error {
		now := s.clock.Now()
		for _, r := range reminderOffsets {
			from := now.Add(r.offset)
			sessions, err := s.sweepRepo.ConfirmedStartingBetween(ctx, from, from.Add(ReminderWindow))
			if err != nil {
				return fmt.Errorf("find sessions for %s: %w", r.kind, err)
			}
			for _, session := range sessions {
				report.Scanned++
				s.sendOnce(ctx, report, session, r.kind, session.StudentID, session.CoachID)
			}
		}
		return nil
	})
}

// RunNoShows переводит в no_show подтверждённые занятия, которые не начались вовремя
func (s *SweepService) RunNoShows(ctx context.Context) (SweepReport, error) {
	return s.run(ctx, SweepNoShows, func(report *SweepReport) error {
		cutoff := s.clock.Now().Add(-lifecycle.NoShowGrace)
		sessions, err := s.sweepRepo.ConfirmedStartedBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("find missed sessions: %w", err)
		}
		for _, session := range sessions {
			report.Scanned++
			_, err := s.sessions.MarkNoShow(ctx, session)
			s.count(report, session, err)
		}
		return nil
	})
}

// RunAutoComplete закрывает занятия, которые коуч не завершил
func (s *SweepService) RunAutoComplete(ctx context.Context) (SweepReport, error) {
	return s.run(ctx, SweepAutoComplete, func(report *SweepReport) error {
		cutoff := s.clock.Now().Add(-lifecycle.AutoCompleteGrace)
		sessions, err := s.sweepRepo.InProgressEndedBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("find overdue sessions: %w", err)
		}
		for _, session := range sessions {
			report.Scanned++
			_, err := s.sessions.AutoComplete(ctx, session)
			s.count(report, session, err)
		}
		return nil
	})
}

// RunReviewRequests просит студента оставить отзыв через сутки после занятия
func (s *SweepService) RunReviewRequests(ctx context.Context) (SweepReport, error) {
	return s.run(ctx, SweepReviewRequests, func(report *SweepReport) error {
		now := s.clock.Now()
		sessions, err := s.sweepRepo.CompletedWithoutReviewBetween(ctx, now.Add(-reviewWindowFrom), now.Add(-reviewWindowTo))
		if err != nil {
			return fmt.Errorf("find unreviewed sessions: %w", err)
		}
		for _, session := range sessions {
			report.Scanned++
			s.sendOnce(ctx, report, session, notify.KindReviewRequest, session.StudentID)
		}
		return nil
	})
}

// sendOnce ставит отметку до отправки и снимает её при сбое, чтобы следующий проход повторил
func (s *SweepService) sendOnce(ctx context.Context, report *SweepReport, session *model.Session, kind notify.Kind, userIDs ...int64) {
	marked, err := s.reminders.MarkSent(ctx, session.ID, string(kind))
	if err != nil {
		report.Failed++
		s.logger.Error("Failed to mark notification",
			zap.Int64("session_id", session.ID),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		return
	}
	if !marked {
		report.Skipped++
		return
	}

	if err := s.notifier.send(ctx, session, kind, nil, userIDs...); err != nil {
		report.Failed++
		if relErr := s.reminders.Release(ctx, session.ID, string(kind)); relErr != nil {
			s.logger.Error("Failed to release notification mark",
				zap.Int64("session_id", session.ID),
				zap.String("kind", string(kind)),
				zap.Error(relErr),
			)
		}
		return
	}
	report.Applied++
}

// count разбирает исход перехода. InvalidTransition значит, что занятие уже
// изменили параллельно, это не ошибка прохода.
func (s *SweepService) count(report *SweepReport, session *model.Session, err error) {
	switch {
	case err == nil:
		report.Applied++
	case errors.Is(err, apperrors.ErrInvalidTransition):
		report.Skipped++
		s.logger.Debug("Sweep skipped session",
			zap.String("sweep", report.Sweep),
			zap.Int64("session_id", session.ID),
			zap.Error(err),
		)
	default:
		report.Failed++
		s.logger.Error("Sweep failed on session",
			zap.String("sweep", report.Sweep),
			zap.Int64("session_id", session.ID),
			zap.Error(err),
		)
	}
}

func (s *SweepService) run(ctx context.Context, name string, body func(report *SweepReport) error) (SweepReport, error) {
	started := time.Now()
	report := SweepReport{Sweep: name}

	err := body(&report)

	metrics.SweepRuns.WithLabelValues(name).Inc()
	metrics.SweepDuration.WithLabelValues(name).Observe(time.Since(started).Seconds())
	metrics.SweepSessions.WithLabelValues(name, "applied").Add(float64(report.Applied))
	metrics.SweepSessions.WithLabelValues(name, "skipped").Add(float64(report.Skipped))
	metrics.SweepSessions.WithLabelValues(name, "failed").Add(float64(report.Failed))

	if err != nil {
		s.logger.Error("Sweep failed", zap.String("sweep", name), zap.Error(err))
		return report, err
	}

	if report.Scanned > 0 {
		s.logger.Info("Sweep finished",
			zap.String("sweep", name),
			zap.Int("scanned", report.Scanned),
			zap.Int("applied", report.Applied),
			zap.Int("skipped", report.Skipped),
			zap.Int("failed", report.Failed),
		)
	}
	return report, nil
}
