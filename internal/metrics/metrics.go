package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rentalshop_tick_duration_seconds",
		Help:    "Time spent recomputing every rental timer in one tick.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
	})

	OpenRentals = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rentalshop_open_rentals",
		Help: "Rentals on the board in the most recent tick, malformed entries excluded.",
	})

	GateActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rentalshop_gate_actions_total",
		Help: "Cancel/extend/complete requests seen by the action gate, by outcome.",
	},
		[]string{"action", "outcome"},
	)

	AlertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rentalshop_alerts_total",
		Help: "Near-end and ended alerts dispatched.",
	},
		[]string{"kind"},
	)

	RentalOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rentalshop_rental_operations_total",
		Help: "Rental mutations handled by the backend service, by operation and result.",
	},
		[]string{"operation", "result"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rentalshop_http_request_duration_seconds",
		Help:    "REST API latency by route and status code.",
		Buckets: prometheus.DefBuckets,
	},
		[]string{"route", "code"},
	)

	ExpiredMarkedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rentalshop_rentals_marked_expired_total",
		Help: "Rentals moved to expired by the cron job.",
	})
)
