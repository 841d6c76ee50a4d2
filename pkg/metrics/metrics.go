package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Saga metrics
	AdministrationsTotal *prometheus.CounterVec
	RollbacksTotal       *prometheus.CounterVec
	PartialRollbacks     prometheus.Counter
	SagaDuration         prometheus.Histogram

	// Stock metrics
	StockDecrements  prometheus.Counter
	StockRestores    prometheus.Counter
	StockExhaustions prometheus.Counter

	// Outbox metrics
	OutboxEventsProcessed   prometheus.Counter
	OutboxEventsFailed      prometheus.Counter
	OutboxProcessingLatency prometheus.Histogram

	// Reminder metrics
	RemindersSent   prometheus.Counter
	ReminderErrors  prometheus.Counter
}

// NewMetrics creates and registers all application metrics
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		AdministrationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "administrations_total",
			Help:      "Vaccination administrations by outcome",
		}, []string{"outcome"}),
		RollbacksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saga_rollbacks_total",
			Help:      "Saga rollbacks by failing step",
		}, []string{"step"}),
		PartialRollbacks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saga_partial_rollbacks_total",
			Help:      "Rollbacks that left orphaned entities behind",
		}),
		SagaDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "saga_duration_seconds",
			Help:      "End-to-end duration of one saga invocation",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		StockDecrements: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_decrements_total",
			Help:      "Successful stock decrements",
		}),
		StockRestores: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_restores_total",
			Help:      "Compensating stock restores",
		}),
		StockExhaustions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_exhaustions_total",
			Help:      "Administrations rejected for insufficient stock",
		}),
		OutboxEventsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_processed_total",
			Help:      "Total number of successfully processed outbox events",
		}),
		OutboxEventsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_failed_total",
			Help:      "Total number of failed outbox events",
		}),
		OutboxProcessingLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "outbox_processing_duration_seconds",
			Help:      "Time spent processing outbox events",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		RemindersSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "followup_reminders_sent_total",
			Help:      "Follow-up reminder emails sent",
		}),
		ReminderErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "followup_reminder_errors_total",
			Help:      "Follow-up reminder emails that failed to send",
		}),
	}
}
