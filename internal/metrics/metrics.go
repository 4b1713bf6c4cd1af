// Package metrics holds the lifecycle counters exported on /metrics.
package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tradein"

var (
	QuotesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "quotes_created_total",
		Help:      "Quotes issued.",
	})

	QuoteDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "quote_decisions_total",
		Help:      "Quote decisions by outcome.",
	}, []string{"outcome"})

	OrderTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_transitions_total",
		Help:      "Order status transitions.",
	}, []string{"to"})

	PayoutTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payout_transitions_total",
		Help:      "Payout status transitions.",
	}, []string{"to"})

	Inspections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "inspections_total",
		Help:      "Recorded item inspections.",
	}, []string{"overridden"})

	CarrierEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "carrier_events_total",
		Help:      "Carrier events by result.",
	}, []string{"result"})

	Conflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "concurrency_conflicts_total",
		Help:      "Conditional updates that lost a race and were retried.",
	}, []string{"op"})

	CatalogPrices = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "catalog_price_changes_total",
		Help:      "Condition prices inserted or overridden by ingestion.",
	})
)

// Handler serves the default registry through fiber.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
