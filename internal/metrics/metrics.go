package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "techsched",
			Name:      "booking_created_total",
			Help:      "Count of create attempts by outcome.",
		},
		[]string{"outcome"},
	)

	bookingCancelled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "techsched",
			Name:      "booking_cancelled_total",
			Help:      "Count of cancel calls by result.",
		},
		[]string{"result"},
	)

	candidateConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "techsched",
			Name:      "candidate_conflicts_total",
			Help:      "Inserts rejected by the active slot unique index.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "techsched",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status code.",
		},
		[]string{"route", "code"},
	)

	operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "techsched",
			Name:      "operation_duration_seconds",
			Help:      "Duration of booking engine operations.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookingCreated, bookingCancelled, candidateConflicts, httpRequests, operationDuration)
	})
}

func IncBookingCreated(outcome string) {
	bookingCreated.WithLabelValues(outcome).Inc()
}

func IncBookingCancelled(result string) {
	bookingCancelled.WithLabelValues(result).Inc()
}

func IncCandidateConflict() {
	candidateConflicts.Inc()
}

func IncHTTPRequest(route string, code int) {
	httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// ObserveOperation records the time since start for op.
func ObserveOperation(op string, start time.Time) {
	operationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
