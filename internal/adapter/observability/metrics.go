package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	AIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_requests_total",
			Help: "Total number of AI requests by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)
	AIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_request_duration_seconds",
			Help:    "AI request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"provider"},
	)

	// RepairStrategyTotal tracks which strategy first produced valid JSON
	// from a model response (direct, fenced, brace_span, cleanup, salvage,
	// empty).
	RepairStrategyTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "response_repair_strategy_total",
			Help: "Model responses recovered per repair strategy",
		},
		[]string{"strategy"},
	)

	BatchesEnqueuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "batches_enqueued_total",
			Help: "Total number of screening batches enqueued",
		},
	)
	BatchesProcessing = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "batches_processing",
			Help: "Number of screening batches currently processing",
		},
	)
	BatchesCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batches_completed_total",
			Help: "Total number of screening batches finished",
		},
		[]string{"status"},
	)
	CandidatesScreenedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "candidates_screened_total",
			Help: "Total number of candidates screened by recommendation",
		},
		[]string{"recommendation"},
	)

	// Screening outcome distribution
	FitScoreHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "screening_fit_score",
			Help:    "Distribution of candidate fit scores ([0,100])",
			Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)
)

var registerOnce sync.Once

// InitMetrics registers every collector with the default registry.
// Safe to call more than once per process.
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(HTTPRequestsTotal)
		prometheus.MustRegister(HTTPRequestDuration)
		prometheus.MustRegister(AIRequestsTotal)
		prometheus.MustRegister(AIRequestDuration)
		prometheus.MustRegister(RepairStrategyTotal)
		prometheus.MustRegister(BatchesEnqueuedTotal)
		prometheus.MustRegister(BatchesProcessing)
		prometheus.MustRegister(BatchesCompletedTotal)
		prometheus.MustRegister(CandidatesScreenedTotal)
		prometheus.MustRegister(FitScoreHistogram)
	})
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		// Route pattern may be unavailable outside chi router; guard nil
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			// fallback when route pattern is unavailable
			route = r.URL.Path
		}
		method := r.Method
		status := ww.Status()
		HTTPRequestsTotal.WithLabelValues(route, method, http.StatusText(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, method).Observe(dur)
	})
}

func EnqueueBatch() {
	BatchesEnqueuedTotal.Inc()
}

func StartProcessingBatch() {
	BatchesProcessing.Inc()
}

func CompleteBatch(status string) {
	BatchesProcessing.Dec()
	BatchesCompletedTotal.WithLabelValues(status).Inc()
}

// ObserveCandidate records the outcome of one screened candidate.
func ObserveCandidate(recommendation string, fitScore int) {
	CandidatesScreenedTotal.WithLabelValues(recommendation).Inc()
	if fitScore >= 0 && fitScore <= 100 {
		FitScoreHistogram.Observe(float64(fitScore))
	}
}

// ObserveRepair records which repair strategy rescued a model response.
func ObserveRepair(strategy string) {
	RepairStrategyTotal.WithLabelValues(strategy).Inc()
}
