// Package memory implements in-memory repositories for development and testing.
//
// All repositories share one Store guarded by a single mutex, so the
// conflict check and the insert in CreatePending are atomic. Values are
// cloned on the way in and out; callers never share pointers with the store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Freeeeeet/coach_scheduler/internal/clock"
	"github.com/Freeeeeet/coach_scheduler/internal/model"
	"github.com/Freeeeeet/coach_scheduler/internal/repository/reperrors"
)

type pairKey struct {
	a, b int64
}

// Store holds every table of the in-memory database.
type Store struct {
	mu    sync.Mutex
	clock clock.Clock

	users         map[int64]*model.User
	coaches       map[int64]*model.Coach
	gameRates     map[pairKey]int64
	stats         map[int64]*model.CoachStats
	coachStudents map[pairKey]struct{}
	rules         map[int64]*model.AvailabilityRule
	sessions      map[int64]*model.Session
	reviews       map[int64]struct{}
	reminders     map[string]struct{}

	userIDCounter    int64
	ruleIDCounter    int64
	sessionIDCounter int64
}

// New creates an empty store. Timestamps come from clk.
func New(clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Store{
		clock:         clk,
		users:         make(map[int64]*model.User),
		coaches:       make(map[int64]*model.Coach),
		gameRates:     make(map[pairKey]int64),
		stats:         make(map[int64]*model.CoachStats),
		coachStudents: make(map[pairKey]struct{}),
		rules:         make(map[int64]*model.AvailabilityRule),
		sessions:      make(map[int64]*model.Session),
		reviews:       make(map[int64]struct{}),
		reminders:     make(map[string]struct{}),
	}
}

// Users returns the user repository view.
func (s *Store) Users() *UserRepo { return &UserRepo{s} }

// Coaches returns the coach repository view.
func (s *Store) Coaches() *CoachRepo { return &CoachRepo{s} }

// Rules returns the availability rule repository view.
func (s *Store) Rules() *RuleRepo { return &RuleRepo{s} }

// Sessions returns the session ledger view. It also serves sweep queries.
func (s *Store) Sessions() *SessionRepo { return &SessionRepo{s} }

// Reminders returns the reminder log view.
func (s *Store) Reminders() *ReminderLog { return &ReminderLog{s} }

// MarkReviewed records that a session received a review.
func (s *Store) MarkReviewed(sessionID int64) {
	s.mu.Lock()
	s.reviews[sessionID] = struct{}{}
	s.mu.Unlock()
}

// --- Users ---

// UserRepo stores users.
type UserRepo struct{ s *Store }

// Create assigns an id and stores the user.
func (r *UserRepo) Create(ctx context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if u.TelegramID != 0 && u.TelegramID == user.TelegramID {
			return fmt.Errorf("create user: telegram id %d already registered", user.TelegramID)
		}
	}

	r.s.userIDCounter++
	user.ID = r.s.userIDCounter
	user.CreatedAt = r.s.clock.Now()
	u := *user
	r.s.users[u.ID] = &u
	return nil
}

// GetByID returns nil, nil when the user does not exist.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	c := *u
	return &c, nil
}

// GetByTelegramID returns nil, nil when no user has the telegram id.
func (r *UserRepo) GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if u.TelegramID == telegramID {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

// Update overwrites the stored user.
func (r *UserRepo) Update(ctx context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[user.ID]; !ok {
		return fmt.Errorf("user not found")
	}
	u := *user
	r.s.users[u.ID] = &u
	return nil
}

// --- Coaches ---

// CoachRepo stores coach settings, per-game rates and stats.
type CoachRepo struct{ s *Store }

// GetByUserID returns nil, nil when the user is not a coach.
func (r *CoachRepo) GetByUserID(ctx context.Context, userID int64) (*model.Coach, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.coaches[userID]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

// Upsert creates or replaces coach settings.
func (r *CoachRepo) Upsert(ctx context.Context, coach *model.Coach) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.clock.Now()
	if existing, ok := r.s.coaches[coach.UserID]; ok {
		coach.CreatedAt = existing.CreatedAt
	} else {
		coach.CreatedAt = now
	}
	coach.UpdatedAt = now
	c := *coach
	r.s.coaches[c.UserID] = &c
	return nil
}

// GetGameRate returns nil, nil when the coach has no override for the game.
func (r *CoachRepo) GetGameRate(ctx context.Context, coachID, gameID int64) (*model.GameRate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rate, ok := r.s.gameRates[pairKey{coachID, gameID}]
	if !ok {
		return nil, nil
	}
	return &model.GameRate{CoachID: coachID, GameID: gameID, HourlyRate: rate}, nil
}

// SetGameRate stores a per-game override.
func (r *CoachRepo) SetGameRate(ctx context.Context, rate *model.GameRate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.gameRates[pairKey{rate.CoachID, rate.GameID}] = rate.HourlyRate
	return nil
}

// GetStats returns zero stats for a coach without completed sessions.
func (r *CoachRepo) GetStats(ctx context.Context, coachID int64) (*model.CoachStats, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	st, ok := r.s.stats[coachID]
	if !ok {
		return &model.CoachStats{CoachID: coachID}, nil
	}
	cp := *st
	return &cp, nil
}

// RecordCompletion bumps the coach counters and reports whether this is the
// first completed session with the student.
func (r *CoachRepo) RecordCompletion(ctx context.Context, coachID, studentID, earnings int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	st, ok := r.s.stats[coachID]
	if !ok {
		st = &model.CoachStats{CoachID: coachID}
		r.s.stats[coachID] = st
	}

	key := pairKey{coachID, studentID}
	_, seen := r.s.coachStudents[key]
	if !seen {
		r.s.coachStudents[key] = struct{}{}
		st.TotalStudents++
	}
	st.TotalSessions++
	st.TotalEarnings += earnings
	st.UpdatedAt = r.s.clock.Now()

	return !seen, nil
}

// --- Availability rules ---

// RuleRepo stores availability rules.
type RuleRepo struct{ s *Store }

// CreateGroup stores all rules at once.
func (r *RuleRepo) CreateGroup(ctx context.Context, rules []*model.AvailabilityRule) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.clock.Now()
	for _, rule := range rules {
		r.s.ruleIDCounter++
		rule.ID = r.s.ruleIDCounter
		rule.CreatedAt = now
		rule.UpdatedAt = now
		c := *rule
		r.s.rules[c.ID] = &c
	}
	return nil
}

// GetByID returns nil, nil when the rule does not exist.
func (r *RuleRepo) GetByID(ctx context.Context, id int64) (*model.AvailabilityRule, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rule, ok := r.s.rules[id]
	if !ok {
		return nil, nil
	}
	c := *rule
	return &c, nil
}

// GetByCoachID lists every rule of the coach.
func (r *RuleRepo) GetByCoachID(ctx context.Context, coachID int64) ([]*model.AvailabilityRule, error) {
	return r.filter(func(rule *model.AvailabilityRule) bool {
		return rule.CoachID == coachID
	}), nil
}

// GetActiveByCoachWeekday lists active rules of the coach for the weekday.
func (r *RuleRepo) GetActiveByCoachWeekday(ctx context.Context, coachID int64, weekday int) ([]*model.AvailabilityRule, error) {
	return r.filter(func(rule *model.AvailabilityRule) bool {
		return rule.CoachID == coachID && rule.Weekday == weekday && rule.IsActive
	}), nil
}

// GetByGroupID lists every rule of the group.
func (r *RuleRepo) GetByGroupID(ctx context.Context, groupID uuid.UUID) ([]*model.AvailabilityRule, error) {
	return r.filter(func(rule *model.AvailabilityRule) bool {
		return rule.GroupID == groupID
	}), nil
}

// Update overwrites the stored rule.
func (r *RuleRepo) Update(ctx context.Context, rule *model.AvailabilityRule) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.rules[rule.ID]; !ok {
		return fmt.Errorf("update availability rule: not found")
	}
	rule.UpdatedAt = r.s.clock.Now()
	c := *rule
	r.s.rules[c.ID] = &c
	return nil
}

// Deactivate switches a single rule off.
func (r *RuleRepo) Deactivate(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if rule, ok := r.s.rules[id]; ok {
		rule.IsActive = false
		rule.UpdatedAt = r.s.clock.Now()
	}
	return nil
}

// DeactivateByGroupID switches off every rule of the group.
func (r *RuleRepo) DeactivateByGroupID(ctx context.Context, groupID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.clock.Now()
	for _, rule := range r.s.rules {
		if rule.GroupID == groupID {
			rule.IsActive = false
			rule.UpdatedAt = now
		}
	}
	return nil
}

func (r *RuleRepo) filter(keep func(*model.AvailabilityRule) bool) []*model.AvailabilityRule {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*model.AvailabilityRule
	for _, rule := range r.s.rules {
		if keep(rule) {
			c := *rule
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weekday != out[j].Weekday {
			return out[i].Weekday < out[j].Weekday
		}
		if out[i].StartMinute != out[j].StartMinute {
			return out[i].StartMinute < out[j].StartMinute
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// --- Sessions ---

// SessionRepo is the in-memory booking ledger.
type SessionRepo struct{ s *Store }

// CreatePending inserts the session unless a non-terminal session of the same
// coach overlaps it, in which case it returns reperrors.ErrSlotTaken.
func (r *SessionRepo) CreatePending(ctx context.Context, session *model.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.sessions {
		if existing.CoachID == session.CoachID && !existing.Status.IsTerminal() &&
			existing.Overlaps(session.ScheduledStart, session.ScheduledEnd) {
			return reperrors.ErrSlotTaken
		}
	}
	if session.PaymentRef != "" {
		for _, existing := range r.s.sessions {
			if existing.PaymentRef == session.PaymentRef {
				return fmt.Errorf("create session: payment ref %q already used", session.PaymentRef)
			}
		}
	}

	now := r.s.clock.Now()
	r.s.sessionIDCounter++
	session.ID = r.s.sessionIDCounter
	session.Version = 1
	session.CreatedAt = now
	session.UpdatedAt = now
	r.s.sessions[session.ID] = session.Clone()
	return nil
}

// Save writes the session when its version still matches the stored one.
func (r *SessionRepo) Save(ctx context.Context, session *model.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.sessions[session.ID]
	if !ok || stored.Version != session.Version {
		return reperrors.ErrStaleSession
	}

	session.Version++
	session.UpdatedAt = r.s.clock.Now()
	r.s.sessions[session.ID] = session.Clone()
	return nil
}

// GetByID returns nil, nil when the session does not exist.
func (r *SessionRepo) GetByID(ctx context.Context, id int64) (*model.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return r.s.sessions[id].Clone(), nil
}

// GetByPaymentRef returns nil, nil when no session carries the reference.
func (r *SessionRepo) GetByPaymentRef(ctx context.Context, ref string) (*model.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, s := range r.s.sessions {
		if s.PaymentRef == ref {
			return s.Clone(), nil
		}
	}
	return nil, nil
}

// GetActiveByCoachBetween lists non-terminal sessions of the coach overlapping [from, to).
func (r *SessionRepo) GetActiveByCoachBetween(ctx context.Context, coachID int64, from, to time.Time) ([]*model.Session, error) {
	return r.filter(func(s *model.Session) bool {
		return s.CoachID == coachID && !s.Status.IsTerminal() && s.Overlaps(from, to)
	}, byStart), nil
}

// GetUpcomingByUser lists non-terminal sessions of the user ending after from.
func (r *SessionRepo) GetUpcomingByUser(ctx context.Context, userID int64, from time.Time) ([]*model.Session, error) {
	return r.filter(func(s *model.Session) bool {
		return s.IsParticipant(userID) && !s.Status.IsTerminal() && s.ScheduledEnd.After(from)
	}, byStart), nil
}

// ConfirmedStartingBetween lists confirmed sessions starting in [from, to).
func (r *SessionRepo) ConfirmedStartingBetween(ctx context.Context, from, to time.Time) ([]*model.Session, error) {
	return r.filter(func(s *model.Session) bool {
		return s.Status == model.SessionStatusConfirmed &&
			!s.ScheduledStart.Before(from) && s.ScheduledStart.Before(to)
	}, byStart), nil
}

// ConfirmedStartedBefore lists confirmed sessions starting at or before cutoff.
func (r *SessionRepo) ConfirmedStartedBefore(ctx context.Context, cutoff time.Time) ([]*model.Session, error) {
	return r.filter(func(s *model.Session) bool {
		return s.Status == model.SessionStatusConfirmed && !s.ScheduledStart.After(cutoff)
	}, byStart), nil
}

// InProgressEndedBefore lists in-progress sessions scheduled to end at or before cutoff.
func (r *SessionRepo) InProgressEndedBefore(ctx context.Context, cutoff time.Time) ([]*model.Session, error) {
	return r.filter(func(s *model.Session) bool {
		return s.Status == model.SessionStatusInProgress && !s.ScheduledEnd.After(cutoff)
	}, byStart), nil
}

// CompletedWithoutReviewBetween lists completed, unreviewed sessions whose
// actual end falls in [from, to).
func (r *SessionRepo) CompletedWithoutReviewBetween(ctx context.Context, from, to time.Time) ([]*model.Session, error) {
	r.s.mu.Lock()
	reviewed := make(map[int64]struct{}, len(r.s.reviews))
	for id := range r.s.reviews {
		reviewed[id] = struct{}{}
	}
	r.s.mu.Unlock()

	return r.filter(func(s *model.Session) bool {
		if s.Status != model.SessionStatusCompleted || s.ActualEnd == nil {
			return false
		}
		if _, ok := reviewed[s.ID]; ok {
			return false
		}
		return !s.ActualEnd.Before(from) && s.ActualEnd.Before(to)
	}, byStart), nil
}

func byStart(a, b *model.Session) bool {
	if !a.ScheduledStart.Equal(b.ScheduledStart) {
		return a.ScheduledStart.Before(b.ScheduledStart)
	}
	return a.ID < b.ID
}

func (r *SessionRepo) filter(keep func(*model.Session) bool, less func(a, b *model.Session) bool) []*model.Session {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*model.Session
	for _, s := range r.s.sessions {
		if keep(s) {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// --- Reminder log ---

// ReminderLog remembers which reminders were already sent.
type ReminderLog struct{ s *Store }

// MarkSent returns false when the mark already exists.
func (l *ReminderLog) MarkSent(ctx context.Context, sessionID int64, kind string) (bool, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()

	key := fmt.Sprintf("%d:%s", sessionID, kind)
	if _, ok := l.s.reminders[key]; ok {
		return false, nil
	}
	l.s.reminders[key] = struct{}{}
	return true, nil
}

// Release removes the mark so the next sweep retries.
func (l *ReminderLog) Release(ctx context.Context, sessionID int64, kind string) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()

	delete(l.s.reminders, fmt.Sprintf("%d:%s", sessionID, kind))
	return nil
}
