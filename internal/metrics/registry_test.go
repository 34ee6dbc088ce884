package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestRegistry(t *testing.T) (*Registry, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	r, err := NewRegistryWithMeter(provider.Meter("test"))
	require.NoError(t, err)
	return r, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func TestRegistry_RecordAnalysis(t *testing.T) {
	r, reader := newTestRegistry(t)
	ctx := context.Background()

	r.RecordAnalysis(ctx, AnalysisOutcome{
		DurationMS: 12,
		Source:     "cli",
		Success:    true,
		Cases:      2,
		Events:     5,
		Violations: 1,
		Findings:   map[string]int{"out_of_order": 1},
	})

	data := collect(t, reader)
	cases, ok := data["wfi.analysis.cases_total"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, cases.DataPoints, 1)
	assert.Equal(t, int64(2), cases.DataPoints[0].Value)

	violations := data["wfi.analysis.sla_violations_total"].(metricdata.Sum[int64])
	assert.Equal(t, int64(1), violations.DataPoints[0].Value)
}

func TestRegistry_ActiveAnalyses(t *testing.T) {
	r, reader := newTestRegistry(t)

	done := r.AnalysisStarted()
	assert.Equal(t, int64(1), r.Active())

	gauge := collect(t, reader)["wfi.analysis.active"].(metricdata.Gauge[int64])
	assert.Equal(t, int64(1), gauge.DataPoints[0].Value)

	done()
	done()
	assert.Equal(t, int64(0), r.Active())
}
