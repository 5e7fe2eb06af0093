package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "eshop"

var (
	OutboxPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_published_total",
			Help:      "Outbox entries published, by outcome",
		},
		[]string{"type", "outcome"},
	)

	OutboxSweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "outbox_sweep_duration_seconds",
			Help:      "Duration of one outbox relay sweep",
			Buckets:   prometheus.DefBuckets,
		},
	)

	EventsHandled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_handled_total",
			Help:      "Integration events handled, by outcome",
		},
		[]string{"type", "outcome"},
	)

	DuplicatesSuppressed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "idempotency_duplicates_total",
			Help:      "Requests short-circuited by the idempotency guard",
		},
		[]string{"name"},
	)

	GracePeriodPromotions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grace_period_promotions_total",
			Help:      "Orders whose grace period confirmation was queued",
		},
	)

	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_deliveries_total",
			Help:      "Webhook POSTs, by outcome",
		},
		[]string{"outcome"},
	)
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeDropped = "dropped"
)

var registerOnce sync.Once

// Register adds every collector to the default registry. Safe to call more
// than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			OutboxPublished,
			OutboxSweepDuration,
			EventsHandled,
			DuplicatesSuppressed,
			GracePeriodPromotions,
			WebhookDeliveries,
		)
	})
}
