package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Freeeeeet/coach_scheduler/internal/model"
)

// SweepRepository read-model запросы фоновых задач.
// Работает через database/sql поверх того же пула pgx.
type SweepRepository struct {
	db *sqlx.DB
}

// NewSweepRepository создаёт новый репозиторий
func NewSweepRepository(db *sqlx.DB) *SweepRepository {
	return &SweepRepository{db: db}
}

// ConfirmedStartingBetween подтвержденные занятия с началом в [from, to)
func (r *SweepRepository) ConfirmedStartingBetween(ctx context.Context, from, to time.Time) ([]*model.Session, error) {
	const query = `SELECT ` + sessionColumns + ` FROM sessions WHERE status = 'confirmed' AND scheduled_start >= $1 AND scheduled_start < $2 ORDER BY scheduled_start`

	var sessions []*model.Session
	if err := r.db.SelectContext(ctx, &sessions, query, from, to); err != nil {
		return nil, fmt.Errorf("select confirmed sessions starting between: %w", err)
	}
	return sessions, nil
}

// ConfirmedStartedBefore подтвержденные занятия, начало которых не позже cutoff
func (r *SweepRepository) ConfirmedStartedBefore(ctx context.Context, cutoff time.Time) ([]*model.Session, error) {
	const query = `SELECT ` + sessionColumns + ` FROM sessions WHERE status = 'confirmed' AND scheduled_start <= $1 ORDER BY scheduled_start`

	var sessions []*model.Session
	if err := r.db.SelectContext(ctx, &sessions, query, cutoff); err != nil {
		return nil, fmt.Errorf("select confirmed sessions started before: %w", err)
	}
	return sessions, nil
}

// InProgressEndedBefore идущие занятия, плановый конец которых не позже cutoff
func (r *SweepRepository) InProgressEndedBefore(ctx context.Context, cutoff time.Time) ([]*model.Session, error) {
	const query = `SELECT ` + sessionColumns + ` FROM sessions WHERE status = 'in_progress' AND scheduled_end <= $1 ORDER BY scheduled_end`

	var sessions []*model.Session
	if err := r.db.SelectContext(ctx, &sessions, query, cutoff); err != nil {
		return nil, fmt.Errorf("select in-progress sessions ended before: %w", err)
	}
	return sessions, nil
}

// CompletedWithoutReviewBetween завершенные занятия без отзыва, фактический конец которых в [from, to)
func (r *SweepRepository) CompletedWithoutReviewBetween(ctx context.Context, from, to time.Time) ([]*model.Session, error) {
	const query = `SELECT ` + sessionColumns + ` FROM sessions s WHERE status = 'completed' AND actual_end >= $1 AND actual_end < $2 AND NOT EXISTS (SELECT 1 FROM reviews rv WHERE rv.session_id = s.id) ORDER BY actual_end`

	var sessions []*model.Session
	if err := r.db.SelectContext(ctx, &sessions, query, from, to); err != nil {
		return nil, fmt.Errorf("select completed sessions without review: %w", err)
	}
	return sessions, nil
}
