package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsCommitted = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "taxilink", Name: "bookings_committed_total", Help: "Bookings committed to the ledger"},
		[]string{"method"},
	)
	BookingStatusChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "taxilink", Name: "booking_status_changes_total", Help: "Post-commit booking status transitions"},
		[]string{"status"},
	)
	DriversRegistered = promauto.NewCounter(prometheus.CounterOpts{Namespace: "taxilink", Name: "drivers_registered_total", Help: "Drivers added through registration"})
	DriversAvailable  = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "taxilink", Name: "drivers_available", Help: "Drivers currently flagged available"})

	StoreRecoveries = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "taxilink", Name: "store_recoveries_total", Help: "Stored values replaced by built-in defaults"},
		[]string{"key"},
	)
	StoreWriteErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "taxilink", Name: "store_write_errors_total", Help: "Failed store writes"},
		[]string{"key"},
	)

	SMSCommands = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "taxilink", Name: "sms_commands_total", Help: "Text commands generated"},
		[]string{"result"},
	)
	USSDKeypresses = promauto.NewCounter(prometheus.CounterOpts{Namespace: "taxilink", Name: "ussd_keypresses_total", Help: "Accepted menu keypresses"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "taxilink", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "taxilink",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
