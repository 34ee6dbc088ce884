package insights

import (
	"context"

	"go.uber.org/zap"

	"github.com/davidleathers/workflow-insights-backend/internal/domain/errors"
	"github.com/davidleathers/workflow-insights-backend/internal/domain/eventlog"
)

// Bundle is everything the insights service derives from one log
type Bundle struct {
	Features        []CaseFeatures   `json:"case_features" yaml:"case_features"`
	Recommendations []Recommendation `json:"recommendations" yaml:"recommendations"`
	Insights        Insights         `json:"insights" yaml:"insights"`
}

// Service derives features, recommendations and insights
type Service interface {
	Derive(ctx context.Context, log *eventlog.EventLog) (*Bundle, error)
}

type service struct {
	rules  Rules
	logger *zap.Logger
}

// NewService creates a new insights service
func NewService(rules Rules, logger *zap.Logger) (Service, error) {
	if logger == nil {
		return nil, errors.NewConfigError("NIL_LOGGER", "logger cannot be nil")
	}
	if rules.LongCycleHours < 0 || rules.MaxReopens < 0 || rules.MaxSteps < 0 || rules.MaxUsers < 0 {
		return nil, errors.NewConfigError("INVALID_RULES", "recommendation thresholds cannot be negative")
	}
	return &service{rules: rules, logger: logger}, nil
}

func (s *service) Derive(ctx context.Context, log *eventlog.EventLog) (*Bundle, error) {
	if log == nil || log.Len() == 0 {
		return nil, errors.NewEmptyInputError("event log contains no cases")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	features := Features(log)
	recs := Recommend(features, s.rules)
	bundle := &Bundle{
		Features:        features,
		Recommendations: recs,
		Insights:        Generate(log, features, s.rules),
	}

	flagged := 0
	for _, r := range recs {
		if r.Reasons[0] != ReasonNoBottleneck {
			flagged++
		}
	}
	s.logger.Debug("insights derived",
		zap.Int("cases", len(features)),
		zap.Int("flagged_cases", flagged),
	)
	return bundle, nil
}
