// Package reporting runs uploaded event logs through the analytics pipeline
// and keeps the latest report of every account.
package reporting

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/davidleathers/workflow-insights-backend/internal/domain/errors"
	"github.com/davidleathers/workflow-insights-backend/internal/infrastructure/config"
	"github.com/davidleathers/workflow-insights-backend/internal/infrastructure/ingest"
	"github.com/davidleathers/workflow-insights-backend/internal/metrics"
	"github.com/davidleathers/workflow-insights-backend/internal/service/analytics"
	"github.com/davidleathers/workflow-insights-backend/internal/service/insights"
)

// Outcome is the product of one pipeline run
type Outcome struct {
	Ingest *ingest.Result
	Report *analytics.Report
	Bundle *insights.Bundle
}

// Pipeline chains ingestion, analysis and insight derivation
type Pipeline struct {
	reader    *ingest.Reader
	analytics analytics.Service
	insights  insights.Service
	metrics   *metrics.Registry
	logger    *zap.Logger
}

// NewPipeline wires the stages. registry may be nil.
func NewPipeline(reader *ingest.Reader, an analytics.Service, in insights.Service, registry *metrics.Registry, logger *zap.Logger) (*Pipeline, error) {
	if reader == nil || an == nil || in == nil {
		return nil, errors.NewConfigError("NIL_STAGE", "reader, analytics and insights services are required")
	}
	if logger == nil {
		return nil, errors.NewConfigError("NIL_LOGGER", "logger cannot be nil")
	}
	return &Pipeline{reader: reader, analytics: an, insights: in, metrics: registry, logger: logger}, nil
}

// BuildPipeline assembles a pipeline from configuration
func BuildPipeline(cfg *config.Config, registry *metrics.Registry, logger *zap.Logger) (*Pipeline, error) {
	reader, err := ingest.NewReader(logger, nil)
	if err != nil {
		return nil, err
	}
	an, err := analytics.NewService(cfg.AnalyticsOptions(), logger)
	if err != nil {
		return nil, err
	}
	in, err := insights.NewService(cfg.Analytics.Rules, logger)
	if err != nil {
		return nil, err
	}
	return NewPipeline(reader, an, in, registry, logger)
}

// Run reads a CSV log from in and analyzes it. source labels the metrics.
func (p *Pipeline) Run(ctx context.Context, in io.Reader, source string) (*Outcome, error) {
	start := time.Now()
	if p.metrics != nil {
		done := p.metrics.AnalysisStarted()
		defer done()
	}

	out, err := p.run(ctx, in)
	p.record(ctx, source, start, out, err)
	return out, err
}

func (p *Pipeline) run(ctx context.Context, in io.Reader) (*Outcome, error) {
	res, err := p.reader.Read(ctx, in)
	if err != nil {
		return nil, err
	}

	report, err := p.analytics.Analyze(ctx, res.Log)
	if err != nil {
		return nil, err
	}

	bundle, err := p.insights.Derive(ctx, res.Log)
	if err != nil {
		return nil, err
	}

	return &Outcome{Ingest: res, Report: report, Bundle: bundle}, nil
}

func (p *Pipeline) record(ctx context.Context, source string, start time.Time, out *Outcome, err error) {
	elapsed := time.Since(start)
	if err != nil {
		p.logger.Warn("pipeline run failed",
			zap.String("source", source),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
	}
	if p.metrics == nil {
		return
	}

	o := metrics.AnalysisOutcome{
		DurationMS: float64(elapsed.Microseconds()) / 1000,
		Source:     source,
		Success:    err == nil,
	}
	if out != nil {
		o.Cases = out.Report.CaseCount
		o.Events = out.Report.EventCount
		o.Violations = len(out.Report.SLAViolations)
		o.ParseIssues = len(out.Ingest.Issues)
		o.Findings = make(map[string]int)
		for _, issue := range out.Report.DataQuality {
			o.Findings[string(issue.Kind)]++
		}
	}
	p.metrics.RecordAnalysis(ctx, o)
}
