package notify

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Freeeeeet/coach_scheduler/internal/metrics"
	"github.com/Freeeeeet/coach_scheduler/internal/model"
)

// MessageSender часть *bot.Bot, нужная для отправки
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// UserLookup находит пользователя, чтобы узнать его Telegram ID
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

// TelegramNotifier отправляет уведомления сообщением в Telegram
type TelegramNotifier struct {
	sender MessageSender
	users  UserLookup
	logger *zap.Logger
}

// NewTelegramNotifier создаёт Telegram notifier
func NewTelegramNotifier(sender MessageSender, users UserLookup, logger *zap.Logger) *TelegramNotifier {
	return &TelegramNotifier{sender: sender, users: users, logger: logger}
}

// Notify implements Notifier.
func (n *TelegramNotifier) Notify(ctx context.Context, userID int64, kind Kind, params Params) (err error) {
	defer func() {
		metrics.Notifications.WithLabelValues(string(kind), metrics.Outcome(err)).Inc()
	}()

	user, err := n.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if user == nil || user.TelegramID == 0 {
		n.logger.Debug("User has no telegram chat, skipping notification",
			zap.Int64("user_id", userID),
			zap.String("kind", string(kind)),
		)
		return nil
	}

	text, err := Render(kind, params)
	if err != nil {
		return err
	}

	_, err = n.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    user.TelegramID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}

	return nil
}
