package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Freeeeeet/coach_scheduler/internal/model"
	"github.com/Freeeeeet/coach_scheduler/internal/notify"
)

// sessionNotifier отправляет уведомления по занятию. Ошибки доставки только логируются:
// переход уже записан и откатываться не должен.
type sessionNotifier struct {
	notifier  notify.Notifier
	coachRepo CoachRepository
	logger    *zap.Logger
}

func (n sessionNotifier) send(ctx context.Context, s *model.Session, kind notify.Kind, extra notify.Params, userIDs ...int64) error {
	if n.notifier == nil {
		return nil
	}

	loc := n.location(ctx, s.CoachID)
	params := notify.SessionParams(s, loc)
	for k, v := range extra {
		params[k] = v
	}

	var errs []error
	for _, userID := range userIDs {
		if err := n.notifier.Notify(ctx, userID, kind, params); err != nil {
			errs = append(errs, err)
			n.logger.Warn("Failed to send notification",
				zap.Int64("session_id", s.ID),
				zap.Int64("user_id", userID),
				zap.String("kind", string(kind)),
				zap.Error(err),
			)
		}
	}
	return errors.Join(errs...)
}

func (n sessionNotifier) location(ctx context.Context, coachID int64) *time.Location {
	coach, err := n.coachRepo.GetByUserID(ctx, coachID)
	if err != nil || coach == nil {
		return time.UTC
	}
	return coach.Location()
}
