package reporting

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davidleathers/workflow-insights-backend/internal/domain/errors"
	"github.com/davidleathers/workflow-insights-backend/internal/infrastructure/export"
	"github.com/davidleathers/workflow-insights-backend/internal/metrics"
)

// EventAnalysisCompleted is published after a report is stored
const EventAnalysisCompleted = "analysis.completed"

// Document is the stored form of one account's latest analysis
type Document struct {
	AccountID   uuid.UUID                  `json:"account_id"`
	RunID       uuid.UUID                  `json:"run_id"`
	GeneratedAt time.Time                  `json:"generated_at"`
	Summary     Summary                    `json:"summary"`
	Sections    map[string]json.RawMessage `json:"sections"`
}

// Summary carries the headline counts of a run
type Summary struct {
	Rows            int `json:"rows"`
	Cases           int `json:"cases"`
	Events          int `json:"events"`
	ParseIssues     int `json:"parse_issues"`
	SLAViolations   int `json:"sla_violations"`
	Recommendations int `json:"recommendations"`
}

// Event is pushed to subscribers of an account
type Event struct {
	Type      string    `json:"type"`
	AccountID uuid.UUID `json:"account_id"`
	RunID     uuid.UUID `json:"run_id"`
	Summary   Summary   `json:"summary"`
	Timestamp time.Time `json:"timestamp"`
}

// Store persists one document per account
type Store interface {
	Save(ctx context.Context, doc *Document) error
	Get(ctx context.Context, accountID uuid.UUID) (*Document, error)
}

// Cache is a read-through copy of Store. Misses are not-found errors.
type Cache interface {
	Get(ctx context.Context, accountID uuid.UUID) (*Document, error)
	Set(ctx context.Context, doc *Document) error
}

// Notifier fans events out to live subscribers
type Notifier interface {
	Publish(event Event)
}

// Notifiers fans one event out to several notifiers
type Notifiers []Notifier

func (ns Notifiers) Publish(event Event) {
	for _, n := range ns {
		if n != nil {
			n.Publish(event)
		}
	}
}

// Service processes uploads and serves stored reports
type Service interface {
	Process(ctx context.Context, accountID uuid.UUID, in io.Reader) (*Document, error)
	Report(ctx context.Context, accountID uuid.UUID) (*Document, error)
	Section(ctx context.Context, accountID uuid.UUID, name string) (json.RawMessage, error)
}

type service struct {
	pipeline *Pipeline
	store    Store
	cache    Cache
	notifier Notifier
	metrics  *metrics.Registry
	logger   *zap.Logger
}

// NewService creates the reporting service. cache, notifier and registry may be nil.
func NewService(pipeline *Pipeline, store Store, cache Cache, notifier Notifier, registry *metrics.Registry, logger *zap.Logger) (Service, error) {
	if pipeline == nil {
		return nil, errors.NewConfigError("NIL_PIPELINE", "pipeline cannot be nil")
	}
	if store == nil {
		return nil, errors.NewConfigError("NIL_STORE", "report store cannot be nil")
	}
	if logger == nil {
		return nil, errors.NewConfigError("NIL_LOGGER", "logger cannot be nil")
	}
	return &service{
		pipeline: pipeline,
		store:    store,
		cache:    cache,
		notifier: notifier,
		metrics:  registry,
		logger:   logger,
	}, nil
}

func (s *service) Process(ctx context.Context, accountID uuid.UUID, in io.Reader) (*Document, error) {
	out, err := s.pipeline.Run(ctx, in, "api")
	if err != nil {
		return nil, err
	}

	doc, err := NewDocument(accountID, out)
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, doc); err != nil {
		return nil, err
	}
	s.fill(ctx, doc)

	if s.notifier != nil {
		s.notifier.Publish(Event{
			Type:      EventAnalysisCompleted,
			AccountID: accountID,
			RunID:     doc.RunID,
			Summary:   doc.Summary,
			Timestamp: time.Now().UTC(),
		})
	}

	s.logger.Info("report stored",
		zap.String("account_id", accountID.String()),
		zap.String("run_id", doc.RunID.String()),
		zap.Int("cases", doc.Summary.Cases),
	)
	return doc, nil
}

func (s *service) Report(ctx context.Context, accountID uuid.UUID) (*Document, error) {
	if s.cache != nil {
		doc, err := s.cache.Get(ctx, accountID)
		hit := err == nil
		if s.metrics != nil {
			s.metrics.RecordCacheLookup(ctx, hit)
		}
		if hit {
			return doc, nil
		}
		if !errors.IsType(err, errors.ErrorTypeNotFound) {
			s.logger.Warn("report cache read failed", zap.Error(err))
		}
	}

	doc, err := s.store.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	s.fill(ctx, doc)
	return doc, nil
}

func (s *service) Section(ctx context.Context, accountID uuid.UUID, name string) (json.RawMessage, error) {
	if !IsSection(name) {
		return nil, errors.NewNotFoundError("section " + name)
	}
	doc, err := s.Report(ctx, accountID)
	if err != nil {
		return nil, err
	}
	raw, ok := doc.Sections[name]
	if !ok {
		return nil, errors.NewNotFoundError("section " + name)
	}
	return raw, nil
}

// fill writes doc to the cache; failures only cost a later store read
func (s *service) fill(ctx context.Context, doc *Document) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, doc); err != nil {
		s.logger.Warn("report cache write failed",
			zap.String("account_id", doc.AccountID.String()),
			zap.Error(err),
		)
	}
}

// IsSection reports whether name is a servable result set
func IsSection(name string) bool {
	for _, s := range export.Sections {
		if s == name {
			return true
		}
	}
	return false
}

// NewDocument encodes every result set of out for accountID
func NewDocument(accountID uuid.UUID, out *Outcome) (*Document, error) {
	payloads := export.SectionsOf(out.Report, out.Bundle)
	sections := make(map[string]json.RawMessage, len(payloads))
	for name, payload := range payloads {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.NewInternalError("encode section " + name).WithCause(err)
		}
		sections[name] = raw
	}

	return &Document{
		AccountID:   accountID,
		RunID:       out.Report.RunID,
		GeneratedAt: out.Report.GeneratedAt,
		Summary: Summary{
			Rows:            out.Ingest.Rows,
			Cases:           out.Report.CaseCount,
			Events:          out.Report.EventCount,
			ParseIssues:     len(out.Ingest.Issues),
			SLAViolations:   len(out.Report.SLAViolations),
			Recommendations: len(out.Bundle.Recommendations),
		},
		Sections: sections,
	}, nil
}
