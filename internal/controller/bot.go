package controller

import (
	"context"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Freeeeeet/coach_scheduler/internal/model"
	"github.com/Freeeeeet/coach_scheduler/internal/service"
)

// MessageSender часть *bot.Bot, нужная обработчикам
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendPhoto(ctx context.Context, params *bot.SendPhotoParams) (*models.Message, error)
}

// Users регистрация и поиск пользователей
type Users interface {
	RegisterUser(ctx context.Context, telegramID int64, username, firstName, lastName, languageCode string) (*model.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
	BecomeCoach(ctx context.Context, userID int64, settings service.CoachSettings) (*model.Coach, error)
}

// Sessions операции над занятиями, доступные из бота
type Sessions interface {
	ListUpcoming(ctx context.Context, userID int64) ([]*model.Session, error)
	Start(ctx context.Context, sessionID, actorID int64) (*model.Session, error)
	Complete(ctx context.Context, sessionID, actorID int64) (*model.Session, error)
	Cancel(ctx context.Context, sessionID, actorID int64, reason string) (*service.CancelResult, error)
}

// TokenIssuer выпускает токен для HTTP API
type TokenIssuer interface {
	IssueToken(userID int64, isCoach bool) (string, time.Time, error)
}

type BotController struct {
	bot      *bot.Bot
	handlers *Handlers
	logger   *zap.Logger
}

func NewBotController(botInstance *bot.Bot, users Users, sessions Sessions, tokens TokenIssuer, logger *zap.Logger) *BotController {
	return &BotController{
		bot:      botInstance,
		handlers: NewHandlers(users, sessions, tokens, logger),
		logger:   logger,
	}
}

// RegisterHandlers регистрирует все обработчики команд
func (c *BotController) RegisterHandlers(ctx context.Context) error {
	h := c.handlers

	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypeExact, adapt(h.HandleStart))
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypeExact, adapt(h.HandleHelp))
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/sessions", bot.MatchTypeExact, adapt(h.HandleSessions))
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/week", bot.MatchTypeExact, adapt(h.HandleWeek))
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/token", bot.MatchTypeExact, adapt(h.HandleToken))
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/cancel", bot.MatchTypePrefix, adapt(h.HandleCancel))

	// Команды для коучей
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/becomecoach", bot.MatchTypePrefix, adapt(h.HandleBecomeCoach))
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/startsession", bot.MatchTypePrefix, adapt(h.HandleStartSession))
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/complete", bot.MatchTypePrefix, adapt(h.HandleComplete))

	return c.setCommands(ctx)
}

// adapt подставляет *bot.Bot как MessageSender
func adapt(fn func(ctx context.Context, s MessageSender, update *models.Update)) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		fn(ctx, b, update)
	}
}

// setCommands устанавливает список команд в меню бота
func (c *BotController) setCommands(ctx context.Context) error {
	commands := []models.BotCommand{
		{Command: "start", Description: "🚀 Начать работу с ботом"},
		{Command: "help", Description: "❓ Справка по командам"},
		{Command: "sessions", Description: "📅 Мои ближайшие занятия"},
		{Command: "week", Description: "🗓 Занятия на неделю картинкой"},
		{Command: "cancel", Description: "❌ Отменить занятие: /cancel <id> [причина]"},
		{Command: "token", Description: "🔑 Токен для API"},
		{Command: "becomecoach", Description: "🎓 Стать коучем: /becomecoach <ставка>"},
		{Command: "startsession", Description: "▶️ Начать занятие (коуч)"},
		{Command: "complete", Description: "🏁 Завершить занятие (коуч)"},
	}

	_, err := c.bot.SetMyCommands(ctx, &bot.SetMyCommandsParams{
		Commands: commands,
	})
	if err != nil {
		c.logger.Error("Failed to set bot commands", zap.Error(err))
		return err
	}

	c.logger.Info("✅ Bot commands menu set")
	return nil
}

// Start запускает бота; блокируется до отмены ctx
func (c *BotController) Start(ctx context.Context) error {
	c.logger.Info("Starting bot...")
	c.bot.Start(ctx)
	return nil
}
