package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Freeeeeet/coach_scheduler/internal/apperrors"
	"github.com/Freeeeeet/coach_scheduler/internal/model"
	"github.com/Freeeeeet/coach_scheduler/internal/slots"
)

// CoachSettings параметры, с которыми пользователь становится коучем
type CoachSettings struct {
	HourlyRate              int64  `json:"hourly_rate" validate:"gt=0"`
	BookingIncrementMinutes int    `json:"booking_increment_minutes" validate:"omitempty,min=5,max=240"`
	Timezone                string `json:"timezone" validate:"omitempty,timezone"`
	Currency                string `json:"currency" validate:"omitempty,len=3,uppercase"`
	AcceptingBookings       bool   `json:"accepting_bookings"`
}

// CoachDefaults значения, которые получает коуч, если не указал свои
type CoachDefaults struct {
	Currency         string
	IncrementMinutes int
}

type UserService struct {
	userRepo  UserRepository
	coachRepo CoachRepository
	validator *validator.Validate
	defaults  CoachDefaults
	logger    *zap.Logger
}

func NewUserService(userRepo UserRepository, coachRepo CoachRepository, validate *validator.Validate, defaults CoachDefaults, logger *zap.Logger) *UserService {
	if validate == nil {
		validate = NewValidator()
	}
	if defaults.Currency == "" {
		defaults.Currency = "USD"
	}
	if defaults.IncrementMinutes <= 0 {
		defaults.IncrementMinutes = slots.DefaultIncrementMinutes
	}
	return &UserService{
		userRepo:  userRepo,
		coachRepo: coachRepo,
		validator: validate,
		defaults:  defaults,
		logger:    logger,
	}
}

// RegisterUser регистрирует или обновляет пользователя
func (s *UserService) RegisterUser(ctx context.Context, telegramID int64, username, firstName, lastName, languageCode string) (*model.User, error) {
	// Проверяем существует ли пользователь
	existingUser, err := s.userRepo.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("check existing user: %w", err)
	}

	// Если пользователь уже существует, обновляем данные
	if existingUser != nil {
		existingUser.Username = username
		existingUser.FirstName = firstName
		existingUser.LastName = lastName
		existingUser.LanguageCode = languageCode

		if err := s.userRepo.Update(ctx, existingUser); err != nil {
			return nil, fmt.Errorf("update user: %w", err)
		}

		s.logger.Info("User updated",
			zap.Int64("telegram_id", telegramID),
			zap.String("username", username),
		)

		return existingUser, nil
	}

	user := &model.User{
		TelegramID:   telegramID,
		Username:     username,
		FirstName:    firstName,
		LastName:     lastName,
		LanguageCode: languageCode,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("New user registered",
		zap.Int64("user_id", user.ID),
		zap.Int64("telegram_id", telegramID),
		zap.String("username", username),
	)

	return user, nil
}

// GetByTelegramID получает пользователя по Telegram ID
func (s *UserService) GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	return s.userRepo.GetByTelegramID(ctx, telegramID)
}

// GetByID получает пользователя по ID
func (s *UserService) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// BecomeCoach делает пользователя коучем и сохраняет его настройки
func (s *UserService) BecomeCoach(ctx context.Context, userID int64, settings CoachSettings) (*model.Coach, error) {
	if err := s.validator.Struct(settings); err != nil {
		return nil, invalid(err)
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, apperrors.NotFound("user %d not found", userID)
	}

	if settings.Timezone == "" {
		settings.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(settings.Timezone); err != nil {
		return nil, apperrors.Validation("unknown timezone %q", settings.Timezone)
	}
	if settings.Currency == "" {
		settings.Currency = s.defaults.Currency
	}
	if settings.BookingIncrementMinutes <= 0 {
		settings.BookingIncrementMinutes = s.defaults.IncrementMinutes
	}

	coach := &model.Coach{
		UserID:                  userID,
		HourlyRate:              settings.HourlyRate,
		BookingIncrementMinutes: settings.BookingIncrementMinutes,
		Timezone:                settings.Timezone,
		Currency:                settings.Currency,
		AcceptingBookings:       settings.AcceptingBookings,
	}
	if err := s.coachRepo.Upsert(ctx, coach); err != nil {
		return nil, fmt.Errorf("upsert coach: %w", err)
	}

	if !user.IsCoach {
		user.IsCoach = true
		if err := s.userRepo.Update(ctx, user); err != nil {
			return nil, fmt.Errorf("update user: %w", err)
		}
	}

	s.logger.Info("User became coach",
		zap.Int64("user_id", user.ID),
		zap.String("username", user.Username),
		zap.Int64("hourly_rate", coach.HourlyRate),
	)

	return coach, nil
}

// SetGameRate задаёт индивидуальную ставку коуча для игры
func (s *UserService) SetGameRate(ctx context.Context, coachID, gameID, hourlyRate int64) error {
	if gameID <= 0 {
		return apperrors.Validation("game id must be positive")
	}
	if hourlyRate <= 0 {
		return apperrors.Validation("hourly rate must be positive")
	}

	coach, err := s.coachRepo.GetByUserID(ctx, coachID)
	if err != nil {
		return fmt.Errorf("get coach: %w", err)
	}
	if coach == nil {
		return apperrors.NotFound("coach %d not found", coachID)
	}

	return s.coachRepo.SetGameRate(ctx, &model.GameRate{CoachID: coachID, GameID: gameID, HourlyRate: hourlyRate})
}

// GetCoachStats возвращает статистику коуча
func (s *UserService) GetCoachStats(ctx context.Context, coachID int64) (*model.CoachStats, error) {
	stats, err := s.coachRepo.GetStats(ctx, coachID)
	if err != nil {
		return nil, fmt.Errorf("get coach stats: %w", err)
	}
	return stats, nil
}
