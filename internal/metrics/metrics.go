package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CaptureCycles counts recognition cycles by outcome
	// (recognized, already_registered, not_recognized, system_error, camera_error).
	CaptureCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kiosk",
		Name:      "capture_cycles_total",
		Help:      "Recognition capture cycles by outcome.",
	}, []string{"outcome"})

	// Registrations counts registration submissions by outcome.
	Registrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kiosk",
		Name:      "registrations_total",
		Help:      "Registration submissions by outcome.",
	}, []string{"outcome"})

	// APIRequests observes remote API latency by endpoint and status class.
	APIRequests = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "kiosk",
		Name:      "api_request_duration_seconds",
		Help:      "Remote attendance API request latency.",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}, []string{"endpoint", "status"})

	// JournalWrites counts journal worker results.
	JournalWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kiosk",
		Name:      "journal_writes_total",
		Help:      "Journal worker writes by result (inserted, deduplicated, failed).",
	}, []string{"result"})
)

// ObserveAPI records one remote call. status 0 means the request never got
// a response.
func ObserveAPI(endpoint string, status int, started time.Time) {
	APIRequests.WithLabelValues(endpoint, statusClass(status)).Observe(time.Since(started).Seconds())
}

func statusClass(status int) string {
	if status <= 0 {
		return "error"
	}
	return strconv.Itoa(status/100) + "xx"
}
