package reperrors

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrSlotTaken время коуча уже занято другим активным занятием
	ErrSlotTaken = errors.New("slot already taken")
	// ErrStaleSession занятие изменилось после чтения (версия не совпала)
	ErrStaleSession = errors.New("session was modified concurrently")
)

const (
	codeExclusionViolation   = "23P01"
	codeSerializationFailure = "40001"
	codeUniqueViolation      = "23505"
)

// IsBookingConflict проверяет, что Postgres отклонил запись из-за пересечения занятий
func IsBookingConflict(err error) bool {
	var pgErr *pgconn.PgError

	// errors.As сам разворачивает цепочку fmt.Errorf("...: %w")
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeExclusionViolation, codeSerializationFailure:
			return true
		}
	}

	return false
}

// IsUniqueViolation проверяет нарушение уникального индекса
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}
