package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Freeeeeet/coach_scheduler/internal/model"
	"github.com/Freeeeeet/coach_scheduler/internal/repository/base"
	"github.com/Freeeeeet/coach_scheduler/internal/repository/reperrors"
)

const sessionColumns = `id, coach_id, student_id, game_id, scheduled_start, scheduled_end, actual_start, actual_end,
	duration_minutes, price, currency, payment_ref, paid, status, cancelled_by, cancelled_at, cancel_reason,
	version, created_at, updated_at`

// SessionRepository журнал занятий: запись, переходы статусов и выборки по времени
type SessionRepository struct {
	*base.Repository
	logger *zap.Logger
}

// NewSessionRepository создаёт новый репозиторий
func NewSessionRepository(pool *pgxpool.Pool, logger *zap.Logger) *SessionRepository {
	return &SessionRepository{
		Repository: base.NewRepository(pool),
		logger:     logger,
	}
}

// CreatePending атомарно проверяет, что время коуча свободно, и создаёт занятие.
// Возвращает reperrors.ErrSlotTaken, если пересечение найдено или его отловил
// exclusion constraint / сериализация.
func (r *SessionRepository) CreatePending(ctx context.Context, session *model.Session) error {
	err := r.InTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
		var taken bool
		err := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM sessions
				WHERE coach_id = $1
					AND status = ANY($2)
					AND scheduled_start < $4
					AND scheduled_end > $3
			)
		`, session.CoachID, nonTerminal(), session.ScheduledStart, session.ScheduledEnd).Scan(&taken)
		if err != nil {
			return fmt.Errorf("check coach availability: %w", err)
		}
		if taken {
			return reperrors.ErrSlotTaken
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO sessions (coach_id, student_id, game_id, scheduled_start, scheduled_end, duration_minutes,
				price, currency, payment_ref, paid, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING id, version, created_at, updated_at
		`,
			session.CoachID,
			session.StudentID,
			session.GameID,
			session.ScheduledStart,
			session.ScheduledEnd,
			session.DurationMinutes,
			session.Price,
			session.Currency,
			session.PaymentRef,
			session.Paid,
			session.Status,
		).Scan(&session.ID, &session.Version, &session.CreatedAt, &session.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}

		return nil
	})

	if errors.Is(err, reperrors.ErrSlotTaken) || reperrors.IsBookingConflict(err) {
		r.logger.Debug("Session insert rejected by conflict",
			zap.Int64("coach_id", session.CoachID),
			zap.Time("start", session.ScheduledStart),
			zap.Error(err),
		)
		return reperrors.ErrSlotTaken
	}
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	return nil
}

// Save записывает изменения статуса при условии, что версия не изменилась с момента чтения.
// При успехе увеличивает session.Version.
func (r *SessionRepository) Save(ctx context.Context, session *model.Session) error {
	query := `
		UPDATE sessions
		SET status = $3, actual_start = $4, actual_end = $5, paid = $6,
			cancelled_by = $7, cancelled_at = $8, cancel_reason = $9,
			version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at
	`

	err := r.QueryRow(
		ctx, query,
		session.ID,
		session.Version,
		session.Status,
		session.ActualStart,
		session.ActualEnd,
		session.Paid,
		session.CancelledBy,
		session.CancelledAt,
		session.CancelReason,
	).Scan(&session.Version, &session.UpdatedAt)

	if base.IsNotFound(err) {
		return reperrors.ErrStaleSession
	}
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	return nil
}

// GetByID получает занятие по ID
func (r *SessionRepository) GetByID(ctx context.Context, id int64) (*model.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`

	session, err := scanSession(r.QueryRow(ctx, query, id))
	if base.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session by id: %w", err)
	}

	return session, nil
}

// GetByPaymentRef получает занятие по ссылке на платёж
func (r *SessionRepository) GetByPaymentRef(ctx context.Context, ref string) (*model.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE payment_ref = $1`

	session, err := scanSession(r.QueryRow(ctx, query, ref))
	if base.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session by payment ref: %w", err)
	}

	return session, nil
}

// GetActiveByCoachBetween получает незавершенные занятия коуча, пересекающие [from, to)
func (r *SessionRepository) GetActiveByCoachBetween(ctx context.Context, coachID int64, from, to time.Time) ([]*model.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE coach_id = $1
			AND status = ANY($2)
			AND scheduled_start < $4
			AND scheduled_end > $3
		ORDER BY scheduled_start
	`

	return r.list(ctx, "get active sessions by coach", query, coachID, nonTerminal(), from, to)
}

// GetUpcomingByUser получает будущие незавершенные занятия, где пользователь коуч или студент
func (r *SessionRepository) GetUpcomingByUser(ctx context.Context, userID int64, from time.Time) ([]*model.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE (coach_id = $1 OR student_id = $1)
			AND status = ANY($2)
			AND scheduled_end > $3
		ORDER BY scheduled_start
	`

	return r.list(ctx, "get upcoming sessions by user", query, userID, nonTerminal(), from)
}

func (r *SessionRepository) list(ctx context.Context, op, query string, args ...any) ([]*model.Session, error) {
	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var sessions []*model.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return sessions, nil
}

func scanSession(row rowScanner) (*model.Session, error) {
	s := &model.Session{}
	err := row.Scan(
		&s.ID,
		&s.CoachID,
		&s.StudentID,
		&s.GameID,
		&s.ScheduledStart,
		&s.ScheduledEnd,
		&s.ActualStart,
		&s.ActualEnd,
		&s.DurationMinutes,
		&s.Price,
		&s.Currency,
		&s.PaymentRef,
		&s.Paid,
		&s.Status,
		&s.CancelledBy,
		&s.CancelledAt,
		&s.CancelReason,
		&s.Version,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func nonTerminal() []string {
	out := make([]string, 0, len(model.NonTerminalStatuses))
	for _, st := range model.NonTerminalStatuses {
		out = append(out, string(st))
	}
	return out
}
