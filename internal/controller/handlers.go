package controller

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Freeeeeet/coach_scheduler/internal/apperrors"
	"github.com/Freeeeeet/coach_scheduler/internal/formatting"
	"github.com/Freeeeeet/coach_scheduler/internal/model"
	"github.com/Freeeeeet/coach_scheduler/internal/render"
	"github.com/Freeeeeet/coach_scheduler/internal/service"
)

// Handlers обработчики команд бота
type Handlers struct {
	users    Users
	sessions Sessions
	tokens   TokenIssuer
	now      func() time.Time
	logger   *zap.Logger
}

func NewHandlers(users Users, sessions Sessions, tokens TokenIssuer, logger *zap.Logger) *Handlers {
	return &Handlers{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		now:      time.Now,
		logger:   logger,
	}
}

// HandleStart обрабатывает команду /start
func (h *Handlers) HandleStart(ctx context.Context, s MessageSender, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}

	from := update.Message.From
	user, err := h.users.RegisterUser(ctx, from.ID, from.Username, from.FirstName, from.LastName, from.LanguageCode)
	if err != nil {
		h.logger.Error("Failed to register user", zap.Int64("telegram_id", from.ID), zap.Error(err))
		h.sendMessage(ctx, s, update.Message.Chat.ID, "❌ Произошла ошибка при регистрации. Попробуйте позже.")
		return
	}

	h.sendMessage(ctx, s, update.Message.Chat.ID, fmt.Sprintf(
		"👋 Привет, %s!\n\n"+
			"Здесь приходят уведомления о ваших занятиях с коучами.\n\n"+
			"/sessions - Мои ближайшие занятия\n"+
			"/cancel <id> [причина] - Отменить занятие\n"+
			"/token - Токен для API\n"+
			"/help - Справка",
		user.DisplayName(),
	))
}

// HandleHelp обрабатывает команду /help
func (h *Handlers) HandleHelp(ctx context.Context, s MessageSender, update *models.Update) {
	if update.Message == nil {
		return
	}

	h.sendMessage(ctx, s, update.Message.Chat.ID, "📚 Справка по командам:\n\n"+
		"/sessions - Ближайшие занятия\n"+
		"/cancel <id> [причина] - Отменить занятие. Деньги возвращаются, если до начала больше суток\n"+
		"/week - Занятия на неделю картинкой\n"+
		"/token - Токен для API бронирования\n\n"+
		"Для коучей:\n"+
		"/becomecoach <ставка в центах> - Стать коучем\n"+
		"/startsession <id> - Начать занятие\n"+
		"/complete <id> - Завершить занятие")
}

// HandleSessions обрабатывает команду /sessions
func (h *Handlers) HandleSessions(ctx context.Context, s MessageSender, update *models.Update) {
	user, ok := h.requireUser(ctx, s, update)
	if !ok {
		return
	}

	sessions, err := h.sessions.ListUpcoming(ctx, user.ID)
	if err != nil {
		h.logger.Error("Failed to list sessions", zap.Int64("user_id", user.ID), zap.Error(err))
		h.sendMessage(ctx, s, update.Message.Chat.ID, "❌ Не удалось загрузить занятия.")
		return
	}

	if len(sessions) == 0 {
		h.sendMessage(ctx, s, update.Message.Chat.ID, "📅 Ближайших занятий нет.")
		return
	}

	var sb strings.Builder
	sb.WriteString("📅 Ближайшие занятия:\n")
	for _, session := range sessions {
		sb.WriteString("\n")
		sb.WriteString(FormatSession(session, user.ID))
	}
	h.sendMessage(ctx, s, update.Message.Chat.ID, sb.String())
}

// HandleWeek обрабатывает /week: занятия ближайших семи дней картинкой
func (h *Handlers) HandleWeek(ctx context.Context, s MessageSender, update *models.Update) {
	user, ok := h.requireUser(ctx, s, update)
	if !ok {
		return
	}

	now := h.now().UTC()
	sessions, err := h.sessions.ListUpcoming(ctx, user.ID)
	if err != nil {
		h.logger.Error("Failed to list sessions", zap.Int64("user_id", user.ID), zap.Error(err))
		h.sendMessage(ctx, s, update.Message.Chat.ID, "❌ Не удалось загрузить занятия.")
		return
	}

	horizon := now.AddDate(0, 0, 7)
	week := make([]*model.Session, 0, len(sessions))
	for _, session := range sessions {
		if session.ScheduledStart.Before(horizon) {
			week = append(week, session)
		}
	}

	img, err := render.WeekImage(week, now, now, time.UTC)
	if err != nil {
		h.logger.Error("Failed to render week image", zap.Int64("user_id", user.ID), zap.Error(err))
		h.sendMessage(ctx, s, update.Message.Chat.ID, "❌ Не удалось построить расписание.")
		return
	}

	_, err = s.SendPhoto(ctx, &bot.SendPhotoParams{
		ChatID:  update.Message.Chat.ID,
		Photo:   &models.InputFileUpload{Filename: "week.png", Data: bytes.NewReader(img)},
		Caption: fmt.Sprintf("🗓 Занятий на неделе: %d (время UTC)", len(week)),
	})
	if err != nil {
		h.logger.Error("Failed to send week image", zap.Int64("chat_id", update.Message.Chat.ID), zap.Error(err))
	}
}

// HandleCancel обрабатывает /cancel <id> [причина]
func (h *Handlers) HandleCancel(ctx context.Context, s MessageSender, update *models.Update) {
	user, ok := h.requireUser(ctx, s, update)
	if !ok {
		return
	}

	sessionID, rest, ok := h.sessionArg(ctx, s, update, "/cancel <id> [причина]")
	if !ok {
		return
	}

	res, err := h.sessions.Cancel(ctx, sessionID, user.ID, rest)
	if err != nil {
		h.replyError(ctx, s, update, "cancel", err)
		return
	}

	text := fmt.Sprintf("✅ Занятие #%d отменено.", res.Session.ID)
	switch {
	case res.Refunded:
		text += "\n💸 Оплата будет возвращена."
	case res.RefundWarning != "":
		text += "\n⚠️ Вернуть оплату автоматически не удалось, мы разберёмся вручную."
	}
	h.sendMessage(ctx, s, update.Message.Chat.ID, text)
}

// HandleStartSession обрабатывает /startsession <id>
func (h *Handlers) HandleStartSession(ctx context.Context, s MessageSender, update *models.Update) {
	user, ok := h.requireCoach(ctx, s, update)
	if !ok {
		return
	}
	sessionID, _, ok := h.sessionArg(ctx, s, update, "/startsession <id>")
	if !ok {
		return
	}

	session, err := h.sessions.Start(ctx, sessionID, user.ID)
	if err != nil {
		h.replyError(ctx, s, update, "start", err)
		return
	}
	h.sendMessage(ctx, s, update.Message.Chat.ID, fmt.Sprintf("▶️ Занятие #%d началось.", session.ID))
}

// HandleComplete обрабатывает /complete <id>
func (h *Handlers) HandleComplete(ctx context.Context, s MessageSender, update *models.Update) {
	user, ok := h.requireCoach(ctx, s, update)
	if !ok {
		return
	}
	sessionID, _, ok := h.sessionArg(ctx, s, update, "/complete <id>")
	if !ok {
		return
	}

	session, err := h.sessions.Complete(ctx, sessionID, user.ID)
	if err != nil {
		h.replyError(ctx, s, update, "complete", err)
		return
	}
	h.sendMessage(ctx, s, update.Message.Chat.ID, fmt.Sprintf("🏁 Занятие #%d завершено.", session.ID))
}

// HandleBecomeCoach обрабатывает /becomecoach <ставка в центах>
func (h *Handlers) HandleBecomeCoach(ctx context.Context, s MessageSender, update *models.Update) {
	user, ok := h.requireUser(ctx, s, update)
	if !ok {
		return
	}

	args := strings.Fields(update.Message.Text)
	if len(args) < 2 {
		h.sendMessage(ctx, s, update.Message.Chat.ID, "Использование: /becomecoach <ставка в центах за час>")
		return
	}
	rate, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || rate <= 0 {
		h.sendMessage(ctx, s, update.Message.Chat.ID, "❌ Ставка должна быть положительным числом.")
		return
	}

	coach, err := h.users.BecomeCoach(ctx, user.ID, service.CoachSettings{HourlyRate: rate, AcceptingBookings: true})
	if err != nil {
		h.replyError(ctx, s, update, "become coach", err)
		return
	}
	h.sendMessage(ctx, s, update.Message.Chat.ID, fmt.Sprintf(
		"🎓 Теперь вы коуч!\n\n💰 Ставка: %s в час\n🕒 Часовой пояс: %s\n\nНастройте доступность через API: /token",
		formatting.FormatPrice(coach.HourlyRate, coach.Currency), coach.Timezone,
	))
}

// HandleToken обрабатывает /token
func (h *Handlers) HandleToken(ctx context.Context, s MessageSender, update *models.Update) {
	user, ok := h.requireUser(ctx, s, update)
	if !ok {
		return
	}

	token, expiresAt, err := h.tokens.IssueToken(user.ID, user.IsCoach)
	if err != nil {
		h.logger.Error("Failed to issue token", zap.Int64("user_id", user.ID), zap.Error(err))
		h.sendMessage(ctx, s, update.Message.Chat.ID, "❌ Не удалось выпустить токен.")
		return
	}
	h.sendMessage(ctx, s, update.Message.Chat.ID, fmt.Sprintf(
		"🔑 Токен действует до %s UTC:\n\n%s", formatting.FormatDateTime(expiresAt.UTC()), token,
	))
}

// requireUser проверяет что пользователь зарегистрирован
func (h *Handlers) requireUser(ctx context.Context, s MessageSender, update *models.Update) (*model.User, bool) {
	if update.Message == nil || update.Message.From == nil {
		return nil, false
	}

	telegramID := update.Message.From.ID
	user, err := h.users.GetByTelegramID(ctx, telegramID)
	if err != nil {
		h.logger.Error("Failed to get user", zap.Int64("telegram_id", telegramID), zap.Error(err))
		h.sendMessage(ctx, s, update.Message.Chat.ID, "❌ Произошла ошибка. Попробуйте позже.")
		return nil, false
	}
	if user == nil {
		h.sendMessage(ctx, s, update.Message.Chat.ID, "❌ Пользователь не найден. Используйте /start для регистрации.")
		return nil, false
	}

	return user, true
}

// requireCoach проверяет что пользователь является коучем
func (h *Handlers) requireCoach(ctx context.Context, s MessageSender, update *models.Update) (*model.User, bool) {
	user, ok := h.requireUser(ctx, s, update)
	if !ok {
		return nil, false
	}
	if !user.IsCoach {
		h.sendMessage(ctx, s, update.Message.Chat.ID, "❌ Эта команда доступна только коучам.\n\nСтать коучем: /becomecoach")
		return nil, false
	}
	return user, true
}

// sessionArg разбирает "<команда> <id> [остаток]"
func (h *Handlers) sessionArg(ctx context.Context, s MessageSender, update *models.Update, usage string) (int64, string, bool) {
	args := strings.Fields(update.Message.Text)
	if len(args) < 2 {
		h.sendMessage(ctx, s, update.Message.Chat.ID, "Использование: "+usage)
		return 0, "", false
	}

	id, err := strconv.ParseInt(strings.TrimPrefix(args[1], "#"), 10, 64)
	if err != nil || id <= 0 {
		h.sendMessage(ctx, s, update.Message.Chat.ID, "❌ Неверный номер занятия.")
		return 0, "", false
	}
	return id, strings.Join(args[2:], " "), true
}

// replyError переводит доменную ошибку в сообщение пользователю
func (h *Handlers) replyError(ctx context.Context, s MessageSender, update *models.Update, op string, err error) {
	var text string
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		switch appErr.Kind {
		case apperrors.KindNotFound:
			text = "❌ Занятие не найдено."
		case apperrors.KindForbidden:
			text = "❌ Это не ваше занятие."
		case apperrors.KindInvalidTransition:
			text = "❌ Сейчас это действие недоступно: " + appErr.Message
		case apperrors.KindValidation:
			text = "❌ " + appErr.Message
		}
	}
	if text == "" {
		h.logger.Error("Bot command failed", zap.String("op", op), zap.Error(err))
		text = "❌ Произошла ошибка. Попробуйте позже."
	}

	h.sendMessage(ctx, s, update.Message.Chat.ID, text)
}

// sendMessage отправляет сообщение и логирует если не удалось
func (h *Handlers) sendMessage(ctx context.Context, s MessageSender, chatID int64, text string) {
	_, err := s.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		h.logger.Error("Failed to send message",
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
	}
}
