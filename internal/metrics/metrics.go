package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	SweepRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coach_scheduler_sweep_runs_total",
			Help: "Number of sweep runs",
		},
		[]string{"sweep"},
	)

	SweepSessions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coach_scheduler_sweep_sessions_total",
			Help: "Sessions handled by sweeps, by outcome",
		},
		[]string{"sweep", "outcome"},
	)

	SweepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "coach_scheduler_sweep_duration_seconds",
			Help: "Time taken by a sweep run",
		},
		[]string{"sweep"},
	)

	Bookings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coach_scheduler_bookings_total",
			Help: "Booking attempts by outcome",
		},
		[]string{"outcome"},
	)

	Transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coach_scheduler_session_transitions_total",
			Help: "Session state transitions by event and outcome",
		},
		[]string{"event", "outcome"},
	)

	GatewayCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coach_scheduler_gateway_calls_total",
			Help: "Payment gateway calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	Notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coach_scheduler_notifications_total",
			Help: "Notifications by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "coach_scheduler_http_request_duration_seconds",
			Help: "HTTP request latency",
		},
		[]string{"method", "route", "status"},
	)
)

var registerOnce sync.Once

// Register регистрирует метрики в стандартном реестре; повторные вызовы игнорируются
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			SweepRuns,
			SweepSessions,
			SweepDuration,
			Bookings,
			Transitions,
			GatewayCalls,
			Notifications,
			HTTPRequestDuration,
		)
	})
}

// Outcome переводит ошибку в метку исхода
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
