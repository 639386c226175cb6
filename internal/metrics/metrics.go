// Package metrics holds the Prometheus collectors for the ticketing engine.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	FulfillmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fulfillments_total",
			Help: "Payment confirmations processed, by result",
		},
		[]string{"result"}, // created, duplicate, resumed, reference_not_found, error
	)

	TicketsIssuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tickets_issued_total",
			Help: "Ticket rows created",
		},
	)

	RedemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redemptions_total",
			Help: "Gate scans processed, by verdict",
		},
		[]string{"verdict"},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Ticket email dispatch attempts, by result",
		},
		[]string{"result"}, // sent, failed
	)

	FulfillmentDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fulfillment_duration_seconds",
			Help:    "Duration of confirmation processing",
			Buckets: prometheus.DefBuckets,
		},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"handler", "method", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"handler", "method"},
	)
)

// Register registers all collectors with the default registry.
func Register() {
	prometheus.MustRegister(FulfillmentsTotal)
	prometheus.MustRegister(TicketsIssuedTotal)
	prometheus.MustRegister(RedemptionsTotal)
	prometheus.MustRegister(NotificationsTotal)
	prometheus.MustRegister(FulfillmentDuration)
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
}
