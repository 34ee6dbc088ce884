package analytics

import (
	"context"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/davidleathers/workflow-insights-backend/internal/domain/errors"
	"github.com/davidleathers/workflow-insights-backend/internal/domain/eventlog"
)

const tracerName = "workflow-insights/analytics"

// DefaultOptions returns the options used when nothing is configured
func DefaultOptions() Options {
	return Options{
		TopVariants:         5,
		CaseSampleLimit:     5,
		RoleCaseSampleLimit: 10,
		BottleneckMinutes:   60,
		Workers:             runtime.GOMAXPROCS(0),
		SLALimits:           DefaultSLALimits(),
	}
}

// Validate checks the options for values no run could honour
func (o Options) Validate() error {
	if o.TopVariants < 1 {
		return errors.NewConfigError("INVALID_TOP_VARIANTS", "top variants must be at least 1")
	}
	if o.CaseSampleLimit < 0 || o.RoleCaseSampleLimit < 0 {
		return errors.NewConfigError("INVALID_SAMPLE_LIMIT", "case sample limits cannot be negative")
	}
	if o.BottleneckMinutes < 0 {
		return errors.NewConfigError("INVALID_BOTTLENECK", "bottleneck threshold cannot be negative")
	}
	if o.Workers < 1 {
		return errors.NewConfigError("INVALID_WORKERS", "workers must be at least 1")
	}
	return o.SLALimits.Validate()
}

// service implements the Service interface
type service struct {
	opts   Options
	logger *zap.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// NewService creates a new analytics service
func NewService(opts Options, logger *zap.Logger) (Service, error) {
	if logger == nil {
		return nil, errors.NewConfigError("NIL_LOGGER", "logger cannot be nil")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts.SLALimits = opts.SLALimits.Clone()
	return &service{
		opts:   opts,
		logger: logger,
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
	}, nil
}

func (s *service) Options() Options {
	opts := s.opts
	opts.SLALimits = s.opts.SLALimits.Clone()
	return opts
}

// Analyze derives every result set from log in one pass over its cases.
// The input is never modified.
func (s *service) Analyze(ctx context.Context, log *eventlog.EventLog) (*Report, error) {
	ctx, span := s.tracer.Start(ctx, "analytics.Analyze")
	defer span.End()

	if log == nil || log.Len() == 0 {
		err := errors.NewEmptyInputError("event log contains no cases")
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	started := s.now()
	span.SetAttributes(
		attribute.Int("analytics.cases", log.Len()),
		attribute.Int("analytics.events", log.EventCount()),
		attribute.Int("analytics.workers", s.opts.Workers),
	)

	for _, issue := range log.Issues() {
		s.logger.Warn("data quality issue",
			zap.String("kind", string(issue.Kind)),
			zap.String("case_id", issue.CaseID),
			zap.Int("row", issue.Row),
			zap.String("message", issue.Message),
		)
	}

	cases := AnnotateAll(log.Cases())
	agg, err := aggregate(ctx, cases, s.opts.Workers, s.opts.SLALimits)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "analysis cancelled")
		return nil, errors.Wrap(err, "analysis cancelled")
	}

	issues := log.Issues()
	if issues == nil {
		issues = []eventlog.Issue{}
	}

	report := &Report{
		RunID:         uuid.New(),
		GeneratedAt:   started.UTC(),
		CaseCount:     log.Len(),
		EventCount:    log.EventCount(),
		CommonPaths:   CommonPaths(agg.variants, s.opts.TopVariants),
		StepDurations: agg.activities.stats(s.opts.BottleneckMinutes),
		UserDelays:    agg.delays.render(s.opts.CaseSampleLimit, s.opts.RoleCaseSampleLimit),
		CaseDurations: agg.totals.render(),
		SLAViolations: agg.violations,
		PathTree:      agg.tree.Render(),
		CasePaths:     CasePaths(cases),
		DataQuality:   issues,
	}

	s.logger.Info("analysis completed",
		zap.String("run_id", report.RunID.String()),
		zap.Int("cases", report.CaseCount),
		zap.Int("events", report.EventCount),
		zap.Int("variants", agg.variants.Len()),
		zap.Int("sla_violations", len(report.SLAViolations)),
		zap.Duration("elapsed", s.now().Sub(started)),
	)
	span.SetStatus(codes.Ok, "")
	return report, nil
}
