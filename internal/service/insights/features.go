// Package insights derives per-case features, heuristic recommendations and
// narrative insights from an event log.
package insights

import (
	"github.com/davidleathers/workflow-insights-backend/internal/domain/eventlog"
	"github.com/davidleathers/workflow-insights-backend/internal/domain/values"
)

// Activity names the features count
const (
	ActivityReopened = "Reopened"
	ActivityQAReview = "QA Review"
	ActivityResolved = "Resolved"
	ActivityClosed   = "Closed"
)

// CaseFeatures is the engineered feature row of one case
type CaseFeatures struct {
	CaseID             string   `json:"case_id" yaml:"case_id"`
	TotalSteps         int      `json:"total_steps" yaml:"total_steps"`
	UniqueUsers        int      `json:"unique_users" yaml:"unique_users"`
	UniqueRoles        int      `json:"unique_roles" yaml:"unique_roles"`
	TotalStoryPoints   *float64 `json:"total_story_points" yaml:"total_story_points"`
	NumReopens         int      `json:"num_reopens" yaml:"num_reopens"`
	NumQAReviews       int      `json:"num_qareviews" yaml:"num_qareviews"`
	NumResolved        int      `json:"num_resolved" yaml:"num_resolved"`
	NumClosed          int      `json:"num_closed" yaml:"num_closed"`
	TotalDurationHours *float64 `json:"total_duration_hours" yaml:"total_duration_hours"`
}

// Features computes one feature row per case, in case order
func Features(log *eventlog.EventLog) []CaseFeatures {
	cases := log.Cases()
	out := make([]CaseFeatures, 0, len(cases))
	for _, c := range cases {
		out = append(out, caseFeatures(c))
	}
	return out
}

func caseFeatures(c eventlog.Case) CaseFeatures {
	f := CaseFeatures{CaseID: c.ID, TotalSteps: c.Len()}
	users := make(map[string]struct{})
	roles := make(map[string]struct{})

	var first, last *eventlog.EventRecord
	for i := range c.Events {
		e := &c.Events[i]
		if e.User != nil {
			users[*e.User] = struct{}{}
		}
		if e.Role != nil {
			roles[*e.Role] = struct{}{}
		}
		if e.StoryPoints != nil && (f.TotalStoryPoints == nil || *e.StoryPoints > *f.TotalStoryPoints) {
			f.TotalStoryPoints = eventlog.Ptr(*e.StoryPoints)
		}
		switch e.Activity {
		case ActivityReopened:
			f.NumReopens++
		case ActivityQAReview:
			f.NumQAReviews++
		case ActivityResolved:
			f.NumResolved++
		case ActivityClosed:
			f.NumClosed++
		}
		if e.HasTimestamp() {
			if first == nil || e.Timestamp.Before(first.Timestamp) {
				first = e
			}
			if last == nil || e.Timestamp.After(last.Timestamp) {
				last = e
			}
		}
	}

	f.UniqueUsers = len(users)
	f.UniqueRoles = len(roles)
	if first != nil {
		hours := values.MinutesOf(last.Timestamp.Sub(first.Timestamp)).Hours()
		f.TotalDurationHours = &hours
	}
	return f
}
