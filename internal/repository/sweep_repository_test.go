package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Freeeeeet/coach_scheduler/internal/model"
)

var sessionRowColumns = []string{
	"id", "coach_id", "student_id", "game_id", "scheduled_start", "scheduled_end", "actual_start", "actual_end",
	"duration_minutes", "price", "currency", "payment_ref", "paid", "status", "cancelled_by", "cancelled_at",
	"cancel_reason", "version", "created_at", "updated_at",
}

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func TestConfirmedStartingBetween(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSweepRepository(db)

	from := time.Date(2026, 10, 20, 15, 0, 0, 0, time.UTC)
	to := from.Add(30 * time.Minute)
	rows := sqlmock.NewRows(sessionRowColumns).
		AddRow(7, 10, 20, 0, from.Add(10*time.Minute), from.Add(70*time.Minute), nil, nil,
			60, 4000, "USD", "ch_1", true, "confirmed", nil, nil, "", 2, from, from)
	mock.ExpectQuery(regexp.QuoteMeta("FROM sessions WHERE status = 'confirmed' AND scheduled_start >= $1 AND scheduled_start < $2")).
		WithArgs(from, to).
		WillReturnRows(rows)

	sessions, err := repo.ConfirmedStartingBetween(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, int64(7), sessions[0].ID)
	assert.Equal(t, model.SessionStatusConfirmed, sessions[0].Status)
	assert.Equal(t, int64(4000), sessions[0].Price)
	assert.Nil(t, sessions[0].ActualStart)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmedStartedBefore(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSweepRepository(db)

	cutoff := time.Date(2026, 10, 20, 14, 30, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM sessions WHERE status = 'confirmed' AND scheduled_start <= $1")).
		WithArgs(cutoff).
		WillReturnRows(sqlmock.NewRows(sessionRowColumns))

	sessions, err := repo.ConfirmedStartedBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Empty(t, sessions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInProgressEndedBefore(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSweepRepository(db)

	cutoff := time.Date(2026, 10, 20, 12, 0, 0, 0, time.UTC)
	started := cutoff.Add(-3 * time.Hour)
	rows := sqlmock.NewRows(sessionRowColumns).
		AddRow(9, 10, 20, 3, started, started.Add(time.Hour), started, nil,
			60, 4500, "USD", "ch_9", true, "in_progress", nil, nil, "", 4, started, started)
	mock.ExpectQuery(regexp.QuoteMeta("FROM sessions WHERE status = 'in_progress' AND scheduled_end <= $1")).
		WithArgs(cutoff).
		WillReturnRows(rows)

	sessions, err := repo.InProgressEndedBefore(context.Background(), cutoff)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.NotNil(t, sessions[0].ActualStart)
	assert.Equal(t, started, *sessions[0].ActualStart)
	assert.Equal(t, int64(3), sessions[0].GameID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompletedWithoutReviewBetween(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSweepRepository(db)

	to := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	from := to.Add(-24 * time.Hour)
	mock.ExpectQuery("status = 'completed' AND actual_end >= \\$1 AND actual_end < \\$2 AND NOT EXISTS \\(SELECT 1 FROM reviews").
		WithArgs(from, to).
		WillReturnError(errors.New("connection reset"))

	_, err := repo.CompletedWithoutReviewBetween(context.Background(), from, to)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "select completed sessions without review")
	assert.NoError(t, mock.ExpectationsWereMet())
}
