package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Freeeeeet/coach_scheduler/internal/apperrors"
	"github.com/Freeeeeet/coach_scheduler/internal/clock"
	"github.com/Freeeeeet/coach_scheduler/internal/model"
	"github.com/Freeeeeet/coach_scheduler/internal/slots"
)

// TimeWindow окно внутри дня, ЧЧ:ММ; конец может быть 24:00
type TimeWindow struct {
	Start string `json:"start" validate:"required"`
	End   string `json:"end" validate:"required"`
}

// CreateRulesRequest создание группы правил: по правилу на каждую пару (день, окно)
type CreateRulesRequest struct {
	Weekdays []int        `json:"weekdays" validate:"required,min=1,dive,min=0,max=6"`
	Windows  []TimeWindow `json:"windows" validate:"required,min=1,dive"`
}

// UpdateRuleRequest изменение одного правила
type UpdateRuleRequest struct {
	Weekday int        `json:"weekday" validate:"min=0,max=6"`
	Window  TimeWindow `json:"window"`
}

// AvailabilityService управляет правилами доступности и отдаёт свободные слоты
type AvailabilityService struct {
	ruleRepo    AvailabilityRuleRepository
	coachRepo   CoachRepository
	sessionRepo SessionRepository
	clock       clock.Clock
	buffer      time.Duration
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAvailabilityService создаёт сервис
func NewAvailabilityService(
	ruleRepo AvailabilityRuleRepository,
	coachRepo CoachRepository,
	sessionRepo SessionRepository,
	clk clock.Clock,
	buffer time.Duration,
	validate *validator.Validate,
	logger *zap.Logger,
) *AvailabilityService {
	if buffer <= 0 {
		buffer = slots.DefaultBuffer
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &AvailabilityService{
		ruleRepo:    ruleRepo,
		coachRepo:   coachRepo,
		sessionRepo: sessionRepo,
		clock:       clk,
		buffer:      buffer,
		validator:   validate,
		logger:      logger,
	}
}

// CreateRuleGroup создаёт правила для всех дней и окон с общим group_id
func (s *AvailabilityService) CreateRuleGroup(ctx context.Context, coachID int64, req CreateRulesRequest) (uuid.UUID, []*model.AvailabilityRule, error) {
	if err := s.validator.Struct(req); err != nil {
		return uuid.Nil, nil, invalid(err)
	}

	if _, err := s.requireCoach(ctx, coachID); err != nil {
		return uuid.Nil, nil, err
	}

	type window struct{ start, end int }
	windows := make([]window, 0, len(req.Windows))
	for _, w := range req.Windows {
		start, end, err := parseWindow(w)
		if err != nil {
			return uuid.Nil, nil, err
		}
		windows = append(windows, window{start, end})
	}

	// Генерируем общий group_id для всей группы
	groupID := uuid.New()

	rules := make([]*model.AvailabilityRule, 0, len(req.Weekdays)*len(windows))
	for _, weekday := range req.Weekdays {
		for _, w := range windows {
			rule := &model.AvailabilityRule{
				GroupID:     groupID,
				CoachID:     coachID,
				Weekday:     weekday,
				StartMinute: w.start,
				EndMinute:   w.end,
				IsActive:    true,
			}
			if err := rule.Validate(); err != nil {
				return uuid.Nil, nil, apperrors.Validation("%v", err)
			}
			rules = append(rules, rule)
		}
	}

	if err := s.ruleRepo.CreateGroup(ctx, rules); err != nil {
		return uuid.Nil, nil, fmt.Errorf("create availability rules: %w", err)
	}

	s.logger.Info("Availability rule group created",
		zap.String("group_id", groupID.String()),
		zap.Int64("coach_id", coachID),
		zap.Int("weekdays_count", len(req.Weekdays)),
		zap.Int("windows_count", len(windows)),
		zap.Int("total_created", len(rules)),
	)

	return groupID, rules, nil
}

// ListRules возвращает все правила коуча
func (s *AvailabilityService) ListRules(ctx context.Context, coachID int64) ([]*model.AvailabilityRule, error) {
	rules, err := s.ruleRepo.GetByCoachID(ctx, coachID)
	if err != nil {
		return nil, fmt.Errorf("get availability rules: %w", err)
	}
	return rules, nil
}

// UpdateRule меняет день и окно правила. Уже созданные занятия не затрагиваются
func (s *AvailabilityService) UpdateRule(ctx context.Context, coachID, ruleID int64, req UpdateRuleRequest) (*model.AvailabilityRule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalid(err)
	}

	rule, err := s.ownedRule(ctx, coachID, ruleID)
	if err != nil {
		return nil, err
	}

	start, end, err := parseWindow(req.Window)
	if err != nil {
		return nil, err
	}
	rule.Weekday = req.Weekday
	rule.StartMinute = start
	rule.EndMinute = end
	if err := rule.Validate(); err != nil {
		return nil, apperrors.Validation("%v", err)
	}

	if err := s.ruleRepo.Update(ctx, rule); err != nil {
		return nil, fmt.Errorf("update availability rule: %w", err)
	}

	s.logger.Info("Availability rule updated",
		zap.Int64("rule_id", ruleID),
		zap.Int64("coach_id", coachID),
	)

	return rule, nil
}

// DeactivateRule выключает одно правило
func (s *AvailabilityService) DeactivateRule(ctx context.Context, coachID, ruleID int64) error {
	if _, err := s.ownedRule(ctx, coachID, ruleID); err != nil {
		return err
	}

	if err := s.ruleRepo.Deactivate(ctx, ruleID); err != nil {
		return fmt.Errorf("deactivate availability rule: %w", err)
	}

	s.logger.Info("Availability rule deactivated",
		zap.Int64("rule_id", ruleID),
		zap.Int64("coach_id", coachID),
	)

	return nil
}

// DeactivateGroup выключает всю группу правил
func (s *AvailabilityService) DeactivateGroup(ctx context.Context, coachID int64, groupID uuid.UUID) error {
	// Проверяем что группа принадлежит коучу
	rules, err := s.ruleRepo.GetByGroupID(ctx, groupID)
	if err != nil {
		return fmt.Errorf("get availability rules by group_id: %w", err)
	}
	if len(rules) == 0 {
		return apperrors.NotFound("availability rule group not found")
	}
	if rules[0].CoachID != coachID {
		return apperrors.Forbidden("availability rule group does not belong to coach")
	}

	if err := s.ruleRepo.DeactivateByGroupID(ctx, groupID); err != nil {
		return fmt.Errorf("deactivate availability rule group: %w", err)
	}

	s.logger.Info("Availability rule group deactivated",
		zap.String("group_id", groupID.String()),
		zap.Int64("coach_id", coachID),
	)

	return nil
}

// ListOfferableSlots свободные времена начала на дату (ГГГГ-ММ-ДД в часовом поясе коуча)
func (s *AvailabilityService) ListOfferableSlots(ctx context.Context, coachID int64, date string) ([]time.Time, error) {
	in, err := s.slotInput(ctx, coachID, date)
	if err != nil {
		return nil, err
	}
	return slots.Generate(in), nil
}

// ListCandidates все кандидаты на дату с пометкой, свободны ли они
func (s *AvailabilityService) ListCandidates(ctx context.Context, coachID int64, date string) ([]model.SlotCandidate, error) {
	in, err := s.slotInput(ctx, coachID, date)
	if err != nil {
		return nil, err
	}
	return slots.Candidates(in), nil
}

func (s *AvailabilityService) slotInput(ctx context.Context, coachID int64, date string) (slots.Input, error) {
	coach, err := s.requireCoach(ctx, coachID)
	if err != nil {
		return slots.Input{}, err
	}

	loc := coach.Location()
	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return slots.Input{}, apperrors.Validation("date must be YYYY-MM-DD")
	}

	rules, err := s.ruleRepo.GetActiveByCoachWeekday(ctx, coachID, int(day.Weekday()))
	if err != nil {
		return slots.Input{}, fmt.Errorf("get active availability rules: %w", err)
	}

	from, to := slots.DayBounds(day, loc)
	sessions, err := s.sessionRepo.GetActiveByCoachBetween(ctx, coachID, from, to)
	if err != nil {
		return slots.Input{}, fmt.Errorf("get coach sessions: %w", err)
	}

	return slots.Input{
		Rules:            rules,
		IncrementMinutes: coach.BookingIncrementMinutes,
		Bookings:         slots.BookedIntervals(sessions),
		Date:             day,
		Now:              s.clock.Now(),
		Location:         loc,
		Buffer:           s.buffer,
	}, nil
}

func (s *AvailabilityService) requireCoach(ctx context.Context, coachID int64) (*model.Coach, error) {
	coach, err := s.coachRepo.GetByUserID(ctx, coachID)
	if err != nil {
		return nil, fmt.Errorf("get coach: %w", err)
	}
	if coach == nil {
		return nil, apperrors.NotFound("coach %d not found", coachID)
	}
	return coach, nil
}

func (s *AvailabilityService) ownedRule(ctx context.Context, coachID, ruleID int64) (*model.AvailabilityRule, error) {
	rule, err := s.ruleRepo.GetByID(ctx, ruleID)
	if err != nil {
		return nil, fmt.Errorf("get availability rule: %w", err)
	}
	if rule == nil {
		return nil, apperrors.NotFound("availability rule %d not found", ruleID)
	}
	if rule.CoachID != coachID {
		return nil, apperrors.Forbidden("availability rule does not belong to coach")
	}
	return rule, nil
}

func parseWindow(w TimeWindow) (int, int, error) {
	start, err := parseClock(w.Start)
	if err != nil {
		return 0, 0, err
	}
	end, err := parseClock(w.End)
	if err != nil {
		return 0, 0, err
	}
	if start >= end {
		return 0, 0, apperrors.Validation("window start %s must be before end %s", w.Start, w.End)
	}
	return start, end, nil
}

// parseClock разбирает ЧЧ:ММ в минуты от полуночи; 24:00 допустимо как конец дня
func parseClock(value string) (int, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, apperrors.Validation("time %q must be HH:MM", value)
	}
	hour, errH := strconv.Atoi(parts[0])
	minute, errM := strconv.Atoi(parts[1])
	if errH != nil || errM != nil || minute < 0 || minute > 59 || hour < 0 || hour > 24 || (hour == 24 && minute != 0) {
		return 0, apperrors.Validation("time %q must be HH:MM", value)
	}
	return hour*60 + minute, nil
}
