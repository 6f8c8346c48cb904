package observability

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce          sync.Once
	apiRequestsTotal      *prometheus.CounterVec
	apiLatencySeconds     *prometheus.HistogramVec
	quizAttemptsTotal     *prometheus.CounterVec
	assistanceTransitions *prometheus.CounterVec
	assistanceVerdicts    *prometheus.CounterVec
	progressConflicts     *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_api_requests_total",
			Help: "Total number of quiz API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quiz_api_latency_seconds",
			Help:    "Latency distribution for quiz API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		quizAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_main_attempts_total",
			Help: "Main quiz attempts evaluated, by result.",
		}, []string{"result"})

		assistanceTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_assistance_transitions_total",
			Help: "Changes of the required assistance level.",
		}, []string{"from", "to"})

		assistanceVerdicts = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_assistance_verdicts_total",
			Help: "Verdicts received from the assistance tracks.",
		}, []string{"level", "verdict"})

		progressConflicts = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_progress_conflicts_total",
			Help: "Optimistic concurrency conflicts on progress records, by outcome.",
		}, []string{"outcome"})

		prometheus.MustRegister(apiRequestsTotal, apiLatencySeconds, quizAttemptsTotal, assistanceTransitions, assistanceVerdicts, progressConflicts)
	})
}

// APIRequests exposes the request counter.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the request latency histogram.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// QuizAttempts counts evaluated main-quiz attempts.
func QuizAttempts() *prometheus.CounterVec {
	RegisterMetrics()
	return quizAttemptsTotal
}

// AssistanceTransitions counts gate changes.
func AssistanceTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return assistanceTransitions
}

// AssistanceVerdicts counts level verdicts.
func AssistanceVerdicts() *prometheus.CounterVec {
	RegisterMetrics()
	return assistanceVerdicts
}

// ProgressConflicts counts version conflicts ("retried" or "surfaced").
func ProgressConflicts() *prometheus.CounterVec {
	RegisterMetrics()
	return progressConflicts
}

// MetricsHandler serves the default registry on a Fiber route.
func MetricsHandler() fiber.Handler {
	RegisterMetrics()
	return adaptor.HTTPHandler(promhttp.Handler())
}
