package controller

import (
	"fmt"

	"github.com/Freeeeeet/coach_scheduler/internal/formatting"
	"github.com/Freeeeeet/coach_scheduler/internal/model"
)

// StatusDisplay emoji и текст статуса занятия
type StatusDisplay struct {
	Emoji string
	Text  string
}

var statusDisplays = map[model.SessionStatus]StatusDisplay{
	model.SessionStatusPending:    {"⏳", "Ожидает оплаты"},
	model.SessionStatusConfirmed:  {"✅", "Подтверждено"},
	model.SessionStatusInProgress: {"▶️", "Идёт"},
	model.SessionStatusCompleted:  {"✔️", "Завершено"},
	model.SessionStatusCancelled:  {"❌", "Отменено"},
	model.SessionStatusNoShow:     {"🚫", "Не состоялось"},
}

// GetStatusDisplay возвращает emoji и текст для статуса занятия
func GetStatusDisplay(status model.SessionStatus) StatusDisplay {
	if display, ok := statusDisplays[status]; ok {
		return display
	}
	return StatusDisplay{"❓", "Неизвестно"}
}

// FormatSession строка занятия для списка; время в UTC
func FormatSession(s *model.Session, viewerID int64) string {
	display := GetStatusDisplay(s.Status)

	role := "🎓 вы ученик"
	if s.CoachID == viewerID {
		role = "🧑‍🏫 вы коуч"
	}

	return fmt.Sprintf(
		"%s #%d · %s UTC (%s)\n   %s · %s · %s",
		display.Emoji,
		s.ID,
		formatting.FormatDateTime(s.ScheduledStart.UTC()),
		formatting.FormatDuration(s.DurationMinutes),
		display.Text,
		formatting.FormatPrice(s.Price, s.Currency),
		role,
	)
}
