package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Freeeeeet/coach_scheduler/internal/model"
)

// UserRepository хранилище пользователей
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
}

// CoachRepository настройки, ставки и статистика коучей
type CoachRepository interface {
	GetByUserID(ctx context.Context, userID int64) (*model.Coach, error)
	Upsert(ctx context.Context, coach *model.Coach) error
	GetGameRate(ctx context.Context, coachID, gameID int64) (*model.GameRate, error)
	SetGameRate(ctx context.Context, rate *model.GameRate) error
	GetStats(ctx context.Context, coachID int64) (*model.CoachStats, error)
	RecordCompletion(ctx context.Context, coachID, studentID, earnings int64) (bool, error)
}

// AvailabilityRuleRepository еженедельные окна доступности
type AvailabilityRuleRepository interface {
	CreateGroup(ctx context.Context, rules []*model.AvailabilityRule) error
	GetByID(ctx context.Context, id int64) (*model.AvailabilityRule, error)
	GetByCoachID(ctx context.Context, coachID int64) ([]*model.AvailabilityRule, error)
	GetActiveByCoachWeekday(ctx context.Context, coachID int64, weekday int) ([]*model.AvailabilityRule, error)
	GetByGroupID(ctx context.Context, groupID uuid.UUID) ([]*model.AvailabilityRule, error)
	Update(ctx context.Context, rule *model.AvailabilityRule) error
	Deactivate(ctx context.Context, id int64) error
	DeactivateByGroupID(ctx context.Context, groupID uuid.UUID) error
}

// SessionRepository журнал занятий.
// CreatePending атомарно проверяет пересечения и возвращает reperrors.ErrSlotTaken;
// Save пишет только если версия не изменилась, иначе reperrors.ErrStaleSession.
type SessionRepository interface {
	CreatePending(ctx context.Context, session *model.Session) error
	Save(ctx context.Context, session *model.Session) error
	GetByID(ctx context.Context, id int64) (*model.Session, error)
	GetByPaymentRef(ctx context.Context, ref string) (*model.Session, error)
	GetActiveByCoachBetween(ctx context.Context, coachID int64, from, to time.Time) ([]*model.Session, error)
	GetUpcomingByUser(ctx context.Context, userID int64, from time.Time) ([]*model.Session, error)
}

// SweepRepository выборки для фоновых задач
type SweepRepository interface {
	ConfirmedStartingBetween(ctx context.Context, from, to time.Time) ([]*model.Session, error)
	ConfirmedStartedBefore(ctx context.Context, cutoff time.Time) ([]*model.Session, error)
	InProgressEndedBefore(ctx context.Context, cutoff time.Time) ([]*model.Session, error)
	CompletedWithoutReviewBetween(ctx context.Context, from, to time.Time) ([]*model.Session, error)
}

// ReminderLog отметки об отправленных напоминаниях
type ReminderLog interface {
	MarkSent(ctx context.Context, sessionID int64, kind string) (bool, error)
	Release(ctx context.Context, sessionID int64, kind string) error
}
