package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Gateway metrics
	chatRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "persona_chat_requests_total",
		Help: "Total number of chat requests by outcome",
	}, []string{"outcome"})

	admissionDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "persona_chat_admission_decisions_total",
		Help: "Total number of rate limiter decisions",
	}, []string{"decision"})

	// Upstream metrics
	upstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "persona_chat_upstream_request_duration_seconds",
		Help:    "Duration of completion provider requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"model", "status"})

	upstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "persona_chat_upstream_requests_total",
		Help: "Total number of completion provider requests",
	}, []string{"model", "status"})

	// HTTP metrics
	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "persona_chat_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method", "code"})

	rateTableEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "persona_chat_rate_table_entries",
		Help: "Number of client windows tracked by the rate limiter",
	})
)

// Metrics provides methods to record metrics
type Metrics struct{}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordOutcome records how a chat request ended
func (m *Metrics) RecordOutcome(outcome string) {
	chatRequests.WithLabelValues(outcome).Inc()
}

// RecordAdmission records a rate limiter decision
func (m *Metrics) RecordAdmission(allowed bool) {
	decision := "denied"
	if allowed {
		decision = "allowed"
	}
	admissionDecisions.WithLabelValues(decision).Inc()
}

// RecordUpstreamRequest records a completion provider call
func (m *Metrics) RecordUpstreamRequest(model, status string, duration time.Duration) {
	upstreamRequestDuration.WithLabelValues(model, status).Observe(duration.Seconds())
	upstreamRequests.WithLabelValues(model, status).Inc()
}

// SetRateTableEntries sets the rate table size gauge
func (m *Metrics) SetRateTableEntries(count int) {
	rateTableEntries.Set(float64(count))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Instrument observes request duration labelled by the matched mux route.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		httpRequestDuration.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).
			Observe(time.Since(start).Seconds())
	})
}

// HealthHandler reports liveness
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// NewMetricsServer builds the HTTP server exposing Prometheus metrics
func NewMetricsServer(port int, path string) *http.Server {
	router := mux.NewRouter()
	router.Handle(path, promhttp.Handler())
	router.HandleFunc("/health", HealthHandler).Methods(http.MethodGet)

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}
