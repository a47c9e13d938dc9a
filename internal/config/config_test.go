package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORAGE", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, time.Hour, cfg.Booking.Buffer)
	assert.Equal(t, 30, cfg.Booking.DefaultIncrementMinutes)
	assert.Equal(t, "USD", cfg.Booking.DefaultCurrency)
	assert.Equal(t, 10*time.Second, cfg.Payment.Timeout)
	assert.Equal(t, 30*time.Minute, cfg.Sweeps.Reminders)
	assert.Equal(t, 30*time.Minute, cfg.Sweeps.NoShows)
	assert.Equal(t, time.Hour, cfg.Sweeps.AutoComplete)
	assert.Equal(t, time.Hour, cfg.Sweeps.ReviewRequests)
	assert.True(t, cfg.MigrationsEnabled)
	assert.Empty(t, cfg.Payment.BaseURL)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("STORAGE", "postgres")
	t.Setenv("DB_DSN", "postgres://localhost/coach")
	t.Setenv("BOOKING_BUFFER", "90m")
	t.Setenv("DEFAULT_CURRENCY", "eur")
	t.Setenv("NO_SHOW_SWEEP_INTERVAL", "0")
	t.Setenv("REVIEW_SWEEP_INTERVAL", "not-a-duration")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/coach", cfg.GetDBDSN())
	assert.Equal(t, 90*time.Minute, cfg.Booking.Buffer)
	assert.Equal(t, "EUR", cfg.Booking.DefaultCurrency)
	assert.Zero(t, cfg.Sweeps.NoShows)
	assert.Equal(t, time.Hour, cfg.Sweeps.ReviewRequests)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"postgres without dsn", map[string]string{"STORAGE": "postgres", "DB_DSN": ""}},
		{"unknown storage", map[string]string{"STORAGE": "mysql"}},
		{"production with dev secret", map[string]string{"STORAGE": "memory", "ENV": "production"}},
		{"bad currency", map[string]string{"STORAGE": "memory", "DEFAULT_CURRENCY": "dollars"}},
		{"zero booking buffer", map[string]string{"STORAGE": "memory", "BOOKING_BUFFER": "0s"}},
		{"negative booking buffer", map[string]string{"STORAGE": "memory", "BOOKING_BUFFER": "-1h"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
