package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Registry holds the OpenTelemetry instruments of the analytics pipeline
type Registry struct {
	meter metric.Meter

	// Analysis metrics
	AnalysisDuration metric.Float64Histogram
	AnalysisCounter  metric.Int64Counter
	CasesAnalyzed    metric.Int64Counter
	EventsIngested   metric.Int64Counter
	SLAViolations    metric.Int64Counter
	ParseIssues      metric.Int64Counter
	DataQuality      metric.Int64Counter

	// System metrics
	ActiveAnalyses     metric.Int64ObservableGauge
	CacheHitCounter    metric.Int64Counter
	APIRequestDuration metric.Float64Histogram
	APIRequestCounter  metric.Int64Counter

	mu             sync.RWMutex
	activeAnalyses int64
}

// NewRegistry creates a new metrics registry using the global meter provider
func NewRegistry(meterName string) (*Registry, error) {
	return NewRegistryWithMeter(otel.Meter(meterName))
}

// NewRegistryWithMeter creates a registry on an explicit meter
func NewRegistryWithMeter(meter metric.Meter) (*Registry, error) {
	r := &Registry{meter: meter}

	if err := r.initAnalysisMetrics(); err != nil {
		return nil, err
	}
	if err := r.initSystemMetrics(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) initAnalysisMetrics() error {
	var err error

	r.AnalysisDuration, err = r.meter.Float64Histogram(
		"wfi.analysis.duration",
		metric.WithDescription("Duration of a full analysis run in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 50, 100, 500, 1000, 5000, 30000),
	)
	if err != nil {
		return err
	}

	r.AnalysisCounter, err = r.meter.Int64Counter(
		"wfi.analysis.runs_total",
		metric.WithDescription("Total number of analysis runs by outcome"),
	)
	if err != nil {
		return err
	}

	r.CasesAnalyzed, err = r.meter.Int64Counter(
		"wfi.analysis.cases_total",
		metric.WithDescription("Total number of cases analyzed"),
	)
	if err != nil {
		return err
	}

	r.EventsIngested, err = r.meter.Int64Counter(
		"wfi.ingest.events_total",
		metric.WithDescription("Total number of event records ingested"),
	)
	if err != nil {
		return err
	}

	r.SLAViolations, err = r.meter.Int64Counter(
		"wfi.analysis.sla_violations_total",
		metric.WithDescription("Total number of SLA violations found"),
	)
	if err != nil {
		return err
	}

	r.ParseIssues, err = r.meter.Int64Counter(
		"wfi.ingest.parse_issues_total",
		metric.WithDescription("Total number of recovered row-level parse issues"),
	)
	if err != nil {
		return err
	}

	r.DataQuality, err = r.meter.Int64Counter(
		"wfi.analysis.data_quality_total",
		metric.WithDescription("Total number of data-quality findings by kind"),
	)
	return err
}

func (r *Registry) initSystemMetrics() error {
	var err error

	r.ActiveAnalyses, err = r.meter.Int64ObservableGauge(
		"wfi.analysis.active",
		metric.WithDescription("Number of analysis runs in progress"),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			r.mu.RLock()
			defer r.mu.RUnlock()
			o.Observe(r.activeAnalyses)
			return nil
		}),
	)
	if err != nil {
		return err
	}

	r.CacheHitCounter, err = r.meter.Int64Counter(
		"wfi.cache.lookups_total",
		metric.WithDescription("Report cache lookups by result"),
	)
	if err != nil {
		return err
	}

	r.APIRequestDuration, err = r.meter.Float64Histogram(
		"wfi.api.request_duration",
		metric.WithDescription("API request duration in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 50, 100, 500, 1000, 5000),
	)
	if err != nil {
		return err
	}

	r.APIRequestCounter, err = r.meter.Int64Counter(
		"wfi.api.request_total",
		metric.WithDescription("Total number of API requests"),
	)
	return err
}

// AnalysisStarted marks a run as in progress and returns the func that ends it
func (r *Registry) AnalysisStarted() func() {
	r.mu.Lock()
	r.activeAnalyses++
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			r.activeAnalyses--
			r.mu.Unlock()
		})
	}
}

// Active returns the number of runs in progress
func (r *Registry) Active() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeAnalyses
}

// AnalysisOutcome summarizes one finished run
type AnalysisOutcome struct {
	DurationMS  float64
	Source      string
	Success     bool
	Cases       int
	Events      int
	Violations  int
	ParseIssues int
	Findings    map[string]int
}

// RecordAnalysis records the instruments of one finished run
func (r *Registry) RecordAnalysis(ctx context.Context, o AnalysisOutcome) {
	attrs := metric.WithAttributes(
		attribute.String("source", o.Source),
		attribute.Bool("success", o.Success),
	)

	r.AnalysisDuration.Record(ctx, o.DurationMS, attrs)
	r.AnalysisCounter.Add(ctx, 1, attrs)
	if !o.Success {
		return
	}

	source := metric.WithAttributes(attribute.String("source", o.Source))
	r.CasesAnalyzed.Add(ctx, int64(o.Cases), source)
	r.EventsIngested.Add(ctx, int64(o.Events), source)
	r.SLAViolations.Add(ctx, int64(o.Violations), source)
	r.ParseIssues.Add(ctx, int64(o.ParseIssues), source)
	for kind, n := range o.Findings {
		r.DataQuality.Add(ctx, int64(n), metric.WithAttributes(attribute.String("kind", kind)))
	}
}

// RecordCacheLookup records a report cache hit or miss
func (r *Registry) RecordCacheLookup(ctx context.Context, hit bool) {
	r.CacheHitCounter.Add(ctx, 1, metric.WithAttributes(attribute.Bool("hit", hit)))
}

// RecordAPIRequest records API request metrics
func (r *Registry) RecordAPIRequest(ctx context.Context, duration float64, method, path string, statusCode int) {
	attrs := []attribute.KeyValue{
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status_code", statusCode),
	}

	r.APIRequestDuration.Record(ctx, duration, metric.WithAttributes(attrs...))
	r.APIRequestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
}
