package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

const minutesPerDay = 24 * 60

// AvailabilityRule еженедельное окно, в которое коуч принимает записи
type AvailabilityRule struct {
	ID          int64     `json:"id"`
	GroupID     uuid.UUID `json:"group_id"` // правила, созданные вместе
	CoachID     int64     `json:"coach_id"`
	Weekday     int       `json:"weekday"`      // 0 = Sunday, 6 = Saturday
	StartMinute int       `json:"start_minute"` // минуты от полуночи
	EndMinute   int       `json:"end_minute"`   // минуты от полуночи, 1440 = конец дня
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Validate проверяет инварианты правила
func (r *AvailabilityRule) Validate() error {
	if r.Weekday < 0 || r.Weekday > 6 {
		return errors.New("weekday must be between 0 and 6")
	}
	if r.StartMinute < 0 || r.EndMinute > minutesPerDay {
		return errors.New("time of day is out of range")
	}
	if r.StartMinute >= r.EndMinute {
		return errors.New("start must be before end")
	}
	return nil
}

// Bounds возвращает интервал правила, привязанный к дате в зоне loc
func (r *AvailabilityRule) Bounds(date time.Time, loc *time.Location) (time.Time, time.Time) {
	y, m, d := date.In(loc).Date()
	start := time.Date(y, m, d, r.StartMinute/60, r.StartMinute%60, 0, 0, loc)
	end := time.Date(y, m, d, r.EndMinute/60, r.EndMinute%60, 0, 0, loc)
	return start, end
}
