package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Activation sources
const (
	SourceWebhook = "webhook"
	SourceConfirm = "confirm"
)

var (
	checkoutSessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "splikz_checkout_sessions_created_total",
		Help: "Hosted checkout sessions created for promotions.",
	})

	promotionActivations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "splikz_promotion_activations_total",
		Help: "Promotion activation attempts by source and result.",
	}, []string{"source", "result"})

	promotionPartialFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "splikz_promotion_partial_failures_total",
		Help: "Promotions recorded whose content boost flag could not be set.",
	})

	webhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "splikz_webhook_events_total",
		Help: "Verified payment webhook events by type.",
	}, []string{"type"})
)

// ObserveWebhookEvent counts a verified webhook event.
func ObserveWebhookEvent(eventType string) {
	webhookEvents.WithLabelValues(eventType).Inc()
}
