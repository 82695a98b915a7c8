// Package metrics holds the Prometheus collectors for the intake pipeline.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "intake",
			Name:      "stage_duration_seconds",
			Help:      "Duration of recognition, extraction and geocoding stages",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 45, 60},
		},
		[]string{"stage", "outcome"},
	)

	locationResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intake",
			Name:      "location_resolutions_total",
			Help:      "Location resolutions by the source that answered",
		},
		[]string{"source"},
	)

	staleResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intake",
			Name:      "stale_results_total",
			Help:      "Async results discarded because a newer run superseded them",
		},
		[]string{"channel"},
	)

	submissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intake",
			Name:      "submissions_total",
			Help:      "Submit attempts by outcome",
		},
		[]string{"outcome"},
	)

	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "intake",
			Name:      "active_sessions",
			Help:      "Intake sessions currently held in memory",
		},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intake",
			Name:      "http_requests_total",
			Help:      "Total number of ops HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)
)

// ObserveStage records how long a stage took and whether it succeeded.
func ObserveStage(stage string, err error, d time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	stageDuration.WithLabelValues(stage, outcome).Observe(d.Seconds())
}

// RecordResolution counts a location resolution by source.
func RecordResolution(source string) {
	locationResolutions.WithLabelValues(source).Inc()
}

// RecordStale counts a discarded result on the given channel ("image" or "location").
func RecordStale(channel string) {
	staleResults.WithLabelValues(channel).Inc()
}

// RecordSubmission counts a submit attempt.
func RecordSubmission(outcome string) {
	submissions.WithLabelValues(outcome).Inc()
}

// SessionOpened and SessionClosed track the in-memory session count.
func SessionOpened() { activeSessions.Inc() }
func SessionClosed() { activeSessions.Dec() }

// Middleware counts ops HTTP requests.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
