// Package notify доставляет пользователям уведомления о занятиях.
// Для вызывающего кода отправка fire-and-forget: ошибка логируется, но не
// отменяет уже записанный переход.
package notify

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/Freeeeeet/coach_scheduler/internal/formatting"
	"github.com/Freeeeeet/coach_scheduler/internal/metrics"
	"github.com/Freeeeeet/coach_scheduler/internal/model"
)

// Kind тип уведомления
type Kind string

const (
	KindBookingCreated   Kind = "booking_created"
	KindSessionConfirmed Kind = "session_confirmed"
	KindSessionCancelled Kind = "session_cancelled"
	KindSessionNoShow    Kind = "session_no_show"
	KindReminder24h      Kind = "reminder_24h"
	KindReminder1h       Kind = "reminder_1h"
	KindReviewRequest    Kind = "review_request"
	KindRefundFailed     Kind = "refund_failed"
)

// Params данные для шаблона
type Params map[string]string

// Notifier отправляет уведомление пользователю
type Notifier interface {
	Notify(ctx context.Context, userID int64, kind Kind, params Params) error
}

// SessionParams собирает стандартные поля занятия для шаблонов в часовом поясе loc
func SessionParams(s *model.Session, loc *time.Location) Params {
	if loc == nil {
		loc = time.UTC
	}
	start := s.ScheduledStart.In(loc)
	return Params{
		"session_id": strconv.FormatInt(s.ID, 10),
		"start":      formatting.FormatDateTime(start),
		"time_range": formatting.FormatTimeRange(start, s.ScheduledEnd.In(loc)),
		"duration":   formatting.FormatDuration(s.DurationMinutes),
		"price":      formatting.FormatPrice(s.Price, s.Currency),
		"reason":     s.CancelReason,
	}
}

// LogNotifier пишет уведомления в лог; используется без Telegram
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier создаёт notifier, который только логирует
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(ctx context.Context, userID int64, kind Kind, params Params) error {
	text, err := Render(kind, params)
	if err != nil {
		return err
	}
	n.logger.Info("Notification",
		zap.Int64("user_id", userID),
		zap.String("kind", string(kind)),
		zap.String("text", text),
	)
	metrics.Notifications.WithLabelValues(string(kind), "ok").Inc()
	return nil
}

// Fanout рассылает уведомление через все notifier'ы
type Fanout []Notifier

// Notify implements Notifier. Возвращает объединение ошибок всех получателей
func (f Fanout) Notify(ctx context.Context, userID int64, kind Kind, params Params) error {
	var errs []error
	for _, n := range f {
		if err := n.Notify(ctx, userID, kind, params); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
