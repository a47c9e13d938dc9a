package model

import "time"

type SessionStatus string

const (
	SessionStatusPending    SessionStatus = "pending"     // Ожидает подтверждения оплаты
	SessionStatusConfirmed  SessionStatus = "confirmed"   // Оплачено и подтверждено
	SessionStatusInProgress SessionStatus = "in_progress" // Коуч начал занятие
	SessionStatusCompleted  SessionStatus = "completed"   // Завершено
	SessionStatusCancelled  SessionStatus = "cancelled"   // Отменено
	SessionStatusNoShow     SessionStatus = "no_show"     // Занятие не состоялось
)

// NonTerminalStatuses статусы, которые занимают время в календаре коуча
var NonTerminalStatuses = []SessionStatus{
	SessionStatusPending,
	SessionStatusConfirmed,
	SessionStatusInProgress,
}

// IsTerminal проверяет что из статуса больше нет переходов
func (s SessionStatus) IsTerminal() bool {
	switch s {
	case SessionStatusCompleted, SessionStatusCancelled, SessionStatusNoShow:
		return true
	}
	return false
}

// IsValid проверяет что статус известен
func (s SessionStatus) IsValid() bool {
	switch s {
	case SessionStatusPending, SessionStatusConfirmed, SessionStatusInProgress,
		SessionStatusCompleted, SessionStatusCancelled, SessionStatusNoShow:
		return true
	}
	return false
}

// Session одно запланированное занятие коуча со студентом
type Session struct {
	ID              int64         `json:"id" db:"id"`
	CoachID         int64         `json:"coach_id" db:"coach_id"`
	StudentID       int64         `json:"student_id" db:"student_id"`
	GameID          int64         `json:"game_id" db:"game_id"` // 0 = без игры
	ScheduledStart  time.Time     `json:"scheduled_start" db:"scheduled_start"`
	ScheduledEnd    time.Time     `json:"scheduled_end" db:"scheduled_end"`
	ActualStart     *time.Time    `json:"actual_start,omitempty" db:"actual_start"`
	ActualEnd       *time.Time    `json:"actual_end,omitempty" db:"actual_end"`
	DurationMinutes int           `json:"duration_minutes" db:"duration_minutes"`
	Price           int64         `json:"price" db:"price"` // в центах
	Currency        string        `json:"currency" db:"currency"`
	PaymentRef      string        `json:"payment_ref" db:"payment_ref"`
	Paid            bool          `json:"paid" db:"paid"`
	Status          SessionStatus `json:"status" db:"status"`
	CancelledBy     *int64        `json:"cancelled_by,omitempty" db:"cancelled_by"`
	CancelledAt     *time.Time    `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CancelReason    string        `json:"cancel_reason,omitempty" db:"cancel_reason"`
	Version         int64         `json:"version" db:"version"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" db:"updated_at"`
}

// Overlaps проверяет пересечение полуинтервалов [start, end)
func (s *Session) Overlaps(start, end time.Time) bool {
	return start.Before(s.ScheduledEnd) && end.After(s.ScheduledStart)
}

// IsParticipant проверяет что пользователь коуч или студент занятия
func (s *Session) IsParticipant(userID int64) bool {
	return userID == s.CoachID || userID == s.StudentID
}

// Counterpart возвращает вторую сторону занятия
func (s *Session) Counterpart(userID int64) int64 {
	if userID == s.CoachID {
		return s.StudentID
	}
	return s.CoachID
}

// Clone возвращает копию без общих указателей
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.ActualStart = cloneTime(s.ActualStart)
	c.ActualEnd = cloneTime(s.ActualEnd)
	c.CancelledAt = cloneTime(s.CancelledAt)
	if s.CancelledBy != nil {
		v := *s.CancelledBy
		c.CancelledBy = &v
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
