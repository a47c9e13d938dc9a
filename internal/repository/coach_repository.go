package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Freeeeeet/coach_scheduler/internal/model"
	"github.com/Freeeeeet/coach_scheduler/internal/repository/base"
)

// CoachRepository хранит настройки коучей, ставки по играм и статистику
type CoachRepository struct {
	*base.Repository
}

// NewCoachRepository создаёт новый репозиторий
func NewCoachRepository(pool *pgxpool.Pool) *CoachRepository {
	return &CoachRepository{Repository: base.NewRepository(pool)}
}

// GetByUserID получает настройки коуча
func (r *CoachRepository) GetByUserID(ctx context.Context, userID int64) (*model.Coach, error) {
	query := `
		SELECT user_id, hourly_rate, booking_increment_minutes, timezone, currency, accepting_bookings, created_at, updated_at
		FROM coaches
		WHERE user_id = $1
	`

	coach := &model.Coach{}
	err := r.QueryRow(ctx, query, userID).Scan(
		&coach.UserID,
		&coach.HourlyRate,
		&coach.BookingIncrementMinutes,
		&coach.Timezone,
		&coach.Currency,
		&coach.AcceptingBookings,
		&coach.CreatedAt,
		&coach.UpdatedAt,
	)

	if base.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get coach by user id: %w", err)
	}

	return coach, nil
}

// Upsert создаёт или обновляет настройки коуча
func (r *CoachRepository) Upsert(ctx context.Context, coach *model.Coach) error {
	query := `
		INSERT INTO coaches (user_id, hourly_rate, booking_increment_minutes, timezone, currency, accepting_bookings)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			hourly_rate = EXCLUDED.hourly_rate,
			booking_increment_minutes = EXCLUDED.booking_increment_minutes,
			timezone = EXCLUDED.timezone,
			currency = EXCLUDED.currency,
			accepting_bookings = EXCLUDED.accepting_bookings,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`

	err := r.QueryRow(
		ctx, query,
		coach.UserID,
		coach.HourlyRate,
		coach.BookingIncrementMinutes,
		coach.Timezone,
		coach.Currency,
		coach.AcceptingBookings,
	).Scan(&coach.CreatedAt, &coach.UpdatedAt)

	if err != nil {
		return fmt.Errorf("upsert coach: %w", err)
	}

	return nil
}

// GetGameRate получает индивидуальную ставку коуча для игры
func (r *CoachRepository) GetGameRate(ctx context.Context, coachID, gameID int64) (*model.GameRate, error) {
	query := `SELECT coach_id, game_id, hourly_rate FROM game_rates WHERE coach_id = $1 AND game_id = $2`

	rate := &model.GameRate{}
	err := r.QueryRow(ctx, query, coachID, gameID).Scan(&rate.CoachID, &rate.GameID, &rate.HourlyRate)
	if base.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get game rate: %w", err)
	}

	return rate, nil
}

// SetGameRate задаёт ставку коуча для игры
func (r *CoachRepository) SetGameRate(ctx context.Context, rate *model.GameRate) error {
	query := `
		INSERT INTO game_rates (coach_id, game_id, hourly_rate)
		VALUES ($1, $2, $3)
		ON CONFLICT (coach_id, game_id) DO UPDATE SET hourly_rate = EXCLUDED.hourly_rate
	`

	if _, err := r.ExecAffected(ctx, query, rate.CoachID, rate.GameID, rate.HourlyRate); err != nil {
		return fmt.Errorf("set game rate: %w", err)
	}

	return nil
}

// GetStats получает статистику коуча, нулевую если завершенных занятий еще не было
func (r *CoachRepository) GetStats(ctx context.Context, coachID int64) (*model.CoachStats, error) {
	query := `
		SELECT coach_id, total_sessions, total_students, total_earnings, updated_at
		FROM coach_stats
		WHERE coach_id = $1
	`

	stats := &model.CoachStats{}
	err := r.QueryRow(ctx, query, coachID).Scan(
		&stats.CoachID,
		&stats.TotalSessions,
		&stats.TotalStudents,
		&stats.TotalEarnings,
		&stats.UpdatedAt,
	)
	if base.IsNotFound(err) {
		return &model.CoachStats{CoachID: coachID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get coach stats: %w", err)
	}

	return stats, nil
}

// RecordCompletion учитывает завершенное занятие в статистике коуча.
// Возвращает true, если это первое завершенное занятие коуча с этим студентом.
func (r *CoachRepository) RecordCompletion(ctx context.Context, coachID, studentID, earnings int64) (bool, error) {
	var first bool

	err := r.InTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`INSERT INTO coach_students (coach_id, student_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			coachID, studentID,
		)
		if err != nil {
			return fmt.Errorf("insert coach student: %w", err)
		}
		first = tag.RowsAffected() == 1

		newStudents := 0
		if first {
			newStudents = 1
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO coach_stats (coach_id, total_sessions, total_students, total_earnings, updated_at)
			VALUES ($1, 1, $2, $3, NOW())
			ON CONFLICT (coach_id) DO UPDATE SET
				total_sessions = coach_stats.total_sessions + 1,
				total_students = coach_stats.total_students + EXCLUDED.total_students,
				total_earnings = coach_stats.total_earnings + EXCLUDED.total_earnings,
				updated_at = NOW()
		`, coachID, newStudents, earnings)
		if err != nil {
			return fmt.Errorf("upsert coach stats: %w", err)
		}

		return nil
	})
	if err != nil {
		return false, fmt.Errorf("record completion: %w", err)
	}

	return first, nil
}
