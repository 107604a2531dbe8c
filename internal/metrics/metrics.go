package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GenerationsTotal tracks generation runs by outcome
	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routine_service_generations_total",
			Help: "Total number of routine generation runs",
		},
		[]string{"outcome"}, // completed, failed, already_generated
	)

	// TasksMaterialized tracks tasks created from templates
	TasksMaterialized = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "routine_service_tasks_materialized_total",
			Help: "Total number of tasks materialized from routine templates",
		},
	)

	// RemindersPlanned tracks reminders scheduled by the planner
	RemindersPlanned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routine_service_reminders_planned_total",
			Help: "Total number of reminders scheduled",
		},
		[]string{"type"}, // task_start, task_due
	)

	// RemindersDispatched tracks dispatch outcomes per reminder type
	RemindersDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routine_service_reminders_dispatched_total",
			Help: "Total number of reminder dispatch outcomes",
		},
		[]string{"type", "status"}, // status: sent, skipped, failed
	)

	// OverdueAlerts tracks overdue alerts delivered
	OverdueAlerts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "routine_service_overdue_alerts_total",
			Help: "Total number of overdue task alerts sent",
		},
	)

	// DailySummariesSent tracks daily summary messages delivered
	DailySummariesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "routine_service_daily_summaries_total",
			Help: "Total number of daily summary messages sent",
		},
	)

	// DeliveryDuration tracks chat gateway publish duration
	DeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "routine_service_delivery_duration_seconds",
			Help:    "Message delivery duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	// RateLimitExceeded tracks rate limit violations
	RateLimitExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routine_service_rate_limit_exceeded_total",
			Help: "Total number of rate limit exceeded events",
		},
		[]string{"user_id"},
	)

	// ConsumerRestarts tracks task event consumer restart events
	ConsumerRestarts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "routine_service_consumer_restarts_total",
			Help: "Total number of task event consumer restarts",
		},
	)
)
