package model

import "time"

// Coach настройки коуча, влияющие на расписание и цену
type Coach struct {
	UserID                  int64     `json:"user_id"`
	HourlyRate              int64     `json:"hourly_rate"`               // в центах
	BookingIncrementMinutes int       `json:"booking_increment_minutes"` // <= 0 = по умолчанию
	Timezone                string    `json:"timezone"`
	Currency                string    `json:"currency"`
	AcceptingBookings       bool      `json:"accepting_bookings"`
	CreatedAt               time.Time `json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`
}

// Location возвращает часовой пояс коуча, UTC если он не задан или неизвестен
func (c *Coach) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// CoachStats агрегированная статистика коуча
type CoachStats struct {
	CoachID       int64     `json:"coach_id"`
	TotalSessions int       `json:"total_sessions"`
	TotalStudents int       `json:"total_students"`
	TotalEarnings int64     `json:"total_earnings"` // в центах
	UpdatedAt     time.Time `json:"updated_at"`
}

// GameRate индивидуальная ставка коуча для игры
type GameRate struct {
	CoachID    int64 `json:"coach_id"`
	GameID     int64 `json:"game_id"`
	HourlyRate int64 `json:"hourly_rate"` // в центах
}
