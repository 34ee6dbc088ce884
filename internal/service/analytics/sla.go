package analytics

import (
	"fmt"
	"math"
	"sort"

	"github.com/davidleathers/workflow-insights-backend/internal/domain/errors"
)

// SLALimits maps an activity name to its limit in minutes. Activities without
// an entry are exempt: they are never flagged and never an error.
type SLALimits map[string]float64

// DefaultSLALimits returns the limits shipped with the service
func DefaultSLALimits() SLALimits {
	return SLALimits{
		"Created":              30,
		"Assigned":             30,
		"In Progress":          240,
		"Waiting for Customer": 1440,
		"Code Review":          180,
		"QA Review":            180,
		"Resolved":             60,
		"Closed":               60,
		"Reopened":             120,
	}
}

// Limit returns the limit configured for activity
func (l SLALimits) Limit(activity string) (float64, bool) {
	limit, ok := l[activity]
	return limit, ok
}

// Validate rejects negative or non-finite thresholds
func (l SLALimits) Validate() error {
	activities := make([]string, 0, len(l))
	for a := range l {
		activities = append(activities, a)
	}
	sort.Strings(activities)

	for _, a := range activities {
		limit := l[a]
		if math.IsNaN(limit) || math.IsInf(limit, 0) {
			return errors.NewConfigError("INVALID_SLA_LIMIT",
				fmt.Sprintf("sla limit for %q is not a finite number", a))
		}
		if limit < 0 {
			return errors.NewConfigError("NEGATIVE_SLA_LIMIT",
				fmt.Sprintf("sla limit for %q is negative: %v", a, limit))
		}
	}
	return nil
}

// Clone returns an independent copy
func (l SLALimits) Clone() SLALimits {
	out := make(SLALimits, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}

// EvaluateSLA flags every step whose duration is strictly greater than the
// limit of its activity. Violations come out in traversal order.
func EvaluateSLA(cases []AnnotatedCase, limits SLALimits) []Violation {
	out := make([]Violation, 0)
	for _, c := range cases {
		for _, s := range c.Steps {
			mins, ok := s.Minutes()
			if !ok {
				continue
			}
			limit, ok := limits.Limit(s.Activity)
			if !ok || !mins.Exceeds(limit) {
				continue
			}
			out = append(out, Violation{
				CaseID:          s.CaseID,
				Activity:        s.Activity,
				User:            s.User,
				Role:            s.Role,
				DurationMinutes: mins.Whole(),
				SLALimit:        limit,
				StoryPoints:     s.StoryPoints,
			})
		}
	}
	return out
}
