package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/davidleathers/workflow-insights-backend/internal/service/reporting"
)

func TestHandlerLabel(t *testing.T) {
	tests := map[string]string{
		"/":                                "/",
		"/healthz":                         "/healthz",
		"/api/v1/uploads":                  "/uploads",
		"/api/v1/reports/sla_violations":   "/reports/sla_violations",
		"/api/v1/auth/signin":              "/auth/signin",
		"/api/v1/reports/path_tree/extra/": "/reports/path_tree",
	}
	for path, want := range tests {
		assert.Equal(t, want, handlerLabel(path), path)
	}
}

func TestStatusCodeClass(t *testing.T) {
	assert.Equal(t, "1xx", statusCodeClass(101))
	assert.Equal(t, "2xx", statusCodeClass(201))
	assert.Equal(t, "3xx", statusCodeClass(304))
	assert.Equal(t, "4xx", statusCodeClass(404))
	assert.Equal(t, "5xx", statusCodeClass(503))
	assert.Equal(t, "unknown", statusCodeClass(0))
}

func TestInstrumentHTTPHandler(t *testing.T) {
	h := InstrumentHTTPHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/healthz", "4xx"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/healthz", "4xx")))
}

func TestAnalysisCounter(t *testing.T) {
	completed := testutil.ToFloat64(analysesCompleted)
	violations := testutil.ToFloat64(slaViolations)

	analysisCounter{}.Publish(reporting.Event{
		Type:    reporting.EventAnalysisCompleted,
		Summary: reporting.Summary{Cases: 3, SLAViolations: 2},
	})
	analysisCounter{}.Publish(reporting.Event{Type: "other"})

	assert.Equal(t, completed+1, testutil.ToFloat64(analysesCompleted))
	assert.Equal(t, violations+2, testutil.ToFloat64(slaViolations))
}
