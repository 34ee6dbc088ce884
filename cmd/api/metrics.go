package main

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/davidleathers/workflow-insights-backend/internal/service/reporting"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wfi",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "handler", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wfi",
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~32s
		},
		[]string{"method", "handler"},
	)

	analysesCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "wfi",
			Subsystem: "analysis",
			Name:      "completed_total",
			Help:      "Analyses stored and announced",
		},
	)

	analysedCases = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "wfi",
			Subsystem: "analysis",
			Name:      "cases",
			Help:      "Cases per analysed upload",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		},
	)

	slaViolations = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "wfi",
			Subsystem: "analysis",
			Name:      "sla_violations_total",
			Help:      "SLA violations found across all analyses",
		},
	)

	dbConnectionPoolSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "pgxpool",
			Name:      "connections",
			Help:      "Current number of connections in the pool",
		},
		[]string{"state"},
	)

	dbConnectionPoolMax = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pgxpool",
			Name:      "max_conns",
			Help:      "Maximum number of connections in the pool",
		},
	)
)

// MetricsHandler returns the Prometheus metrics handler
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// InstrumentHTTPHandler wraps the API with request metrics. Handler labels
// are the first two path segments to keep cardinality bounded.
func InstrumentHTTPHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		handler := handlerLabel(r.URL.Path)
		httpRequestsTotal.WithLabelValues(r.Method, handler, statusCodeClass(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, handler).Observe(time.Since(start).Seconds())
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijacking not supported")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func handlerLabel(path string) string {
	trimmed := strings.TrimPrefix(path, "/api/v1")
	parts := strings.SplitN(strings.Trim(trimmed, "/"), "/", 3)
	switch {
	case len(parts) == 0 || parts[0] == "":
		return "/"
	case len(parts) == 1:
		return "/" + parts[0]
	default:
		return "/" + parts[0] + "/" + parts[1]
	}
}

// statusCodeClass returns the status code class (2xx, 3xx, 4xx, 5xx)
func statusCodeClass(code int) string {
	switch {
	case code >= 100 && code < 200:
		return "1xx"
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}

// analysisCounter is a reporting.Notifier that counts completed analyses
type analysisCounter struct{}

func (analysisCounter) Publish(event reporting.Event) {
	if event.Type != reporting.EventAnalysisCompleted {
		return
	}
	analysesCompleted.Inc()
	analysedCases.Observe(float64(event.Summary.Cases))
	slaViolations.Add(float64(event.Summary.SLAViolations))
}

// UpdateDBConnectionPoolMetrics copies pool statistics into gauges
func UpdateDBConnectionPoolMetrics(stat *pgxpool.Stat) {
	dbConnectionPoolSize.WithLabelValues("acquired").Set(float64(stat.AcquiredConns()))
	dbConnectionPoolSize.WithLabelValues("idle").Set(float64(stat.IdleConns()))
	dbConnectionPoolSize.WithLabelValues("total").Set(float64(stat.TotalConns()))
	dbConnectionPoolMax.Set(float64(stat.MaxConns()))
}
