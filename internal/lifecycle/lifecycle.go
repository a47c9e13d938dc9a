// Package lifecycle содержит конечный автомат статусов занятия.
//
// Все переходы описаны одной таблицей. Apply никогда не меняет переданное
// занятие: изменения применяются к копии, которая возвращается только при
// успешном переходе.
package lifecycle

import (
	"time"

	"github.com/Freeeeeet/coach_scheduler/internal/apperrors"
	"github.com/Freeeeeet/coach_scheduler/internal/model"
)

const (
	// CancellationWindow минимальное время до начала, когда отмена еще возможна
	CancellationWindow = 24 * time.Hour
	// NoShowGrace сколько ждем начала подтвержденного занятия
	NoShowGrace = 30 * time.Minute
	// AutoCompleteGrace через сколько после планового конца занятие закрывается само
	AutoCompleteGrace = 2 * time.Hour
)

// Event событие, запускающее переход
type Event string

const (
	EventPaymentSucceeded Event = "payment_succeeded"
	EventStart            Event = "start"
	EventComplete         Event = "complete"
	EventCancel           Event = "cancel"
	EventNoShow           Event = "no_show"
	EventAutoComplete     Event = "auto_complete"
)

// Events все события в порядке таблицы
var Events = []Event{
	EventPaymentSucceeded,
	EventStart,
	EventComplete,
	EventCancel,
	EventNoShow,
	EventAutoComplete,
}

// Params входные данные перехода
type Params struct {
	Now              time.Time
	ActorID          int64
	Reason           string
	PaymentConfirmed bool
}

type transition struct {
	from  []model.SessionStatus
	to    model.SessionStatus
	guard func(s *model.Session, p Params) error
	apply func(s *model.Session, p Params)
}

var table = map[Event]transition{
	EventPaymentSucceeded: {
		from: []model.SessionStatus{model.SessionStatusPending},
		to:   model.SessionStatusConfirmed,
		guard: func(_ *model.Session, p Params) error {
			if !p.PaymentConfirmed {
				return apperrors.InvalidTransition("payment is not confirmed by the gateway")
			}
			return nil
		},
		apply: func(s *model.Session, _ Params) {
			s.Paid = true
		},
	},
	EventStart: {
		from: []model.SessionStatus{model.SessionStatusConfirmed},
		to:   model.SessionStatusInProgress,
		apply: func(s *model.Session, p Params) {
			now := p.Now
			s.ActualStart = &now
		},
	},
	EventComplete: {
		from: []model.SessionStatus{model.SessionStatusInProgress},
		to:   model.SessionStatusCompleted,
		apply: func(s *model.Session, p Params) {
			now := p.Now
			s.ActualEnd = &now
		},
	},
	EventCancel: {
		from: []model.SessionStatus{model.SessionStatusPending, model.SessionStatusConfirmed},
		to:   model.SessionStatusCancelled,
		guard: func(s *model.Session, p Params) error {
			if s.ScheduledStart.Sub(p.Now) < CancellationWindow {
				return apperrors.InvalidTransition("sessions can only be cancelled at least %s before start", CancellationWindow)
			}
			return nil
		},
		apply: func(s *model.Session, p Params) {
			now := p.Now
			actor := p.ActorID
			s.CancelledAt = &now
			s.CancelledBy = &actor
			s.CancelReason = p.Reason
		},
	},
	EventNoShow: {
		from: []model.SessionStatus{model.SessionStatusConfirmed},
		to:   model.SessionStatusNoShow,
		guard: func(s *model.Session, p Params) error {
			if p.Now.Before(s.ScheduledStart.Add(NoShowGrace)) {
				return apperrors.InvalidTransition("no-show grace period has not passed")
			}
			return nil
		},
	},
	EventAutoComplete: {
		from: []model.SessionStatus{model.SessionStatusInProgress},
		to:   model.SessionStatusCompleted,
		guard: func(s *model.Session, p Params) error {
			if p.Now.Before(s.ScheduledEnd.Add(AutoCompleteGrace)) {
				return apperrors.InvalidTransition("auto-complete grace period has not passed")
			}
			return nil
		},
		apply: func(s *model.Session, _ Params) {
			end := s.ScheduledEnd
			s.ActualEnd = &end
		},
	},
}

// Allowed проверяет, есть ли в таблице переход из статуса по событию (без учета guard)
func Allowed(status model.SessionStatus, ev Event) bool {
	t, ok := table[ev]
	if !ok {
		return false
	}
	for _, from := range t.from {
		if from == status {
			return true
		}
	}
	return false
}

// Target возвращает статус, в который ведет событие
func Target(ev Event) (model.SessionStatus, bool) {
	t, ok := table[ev]
	return t.to, ok
}

// Apply применяет событие к копии занятия.
// При отказе возвращает InvalidTransition, исходное занятие не меняется.
func Apply(s *model.Session, ev Event, p Params) (*model.Session, error) {
	if s == nil {
		return nil, apperrors.NotFound("session not found")
	}

	t, ok := table[ev]
	if !ok {
		return nil, apperrors.InvalidTransition("unknown event %q", ev)
	}
	if !Allowed(s.Status, ev) {
		return nil, apperrors.InvalidTransition("cannot %s a %s session", ev, s.Status)
	}
	if t.guard != nil {
		if err := t.guard(s, p); err != nil {
			return nil, err
		}
	}

	next := s.Clone()
	next.Status = t.to
	if t.apply != nil {
		t.apply(next, p)
	}
	next.UpdatedAt = p.Now

	return next, nil
}
