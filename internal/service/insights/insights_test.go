package insights

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/davidleathers/workflow-insights-backend/internal/domain/errors"
	"github.com/davidleathers/workflow-insights-backend/internal/domain/eventlog"
)

// 2024-03-04 is a Monday
var monday = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func event(caseID, activity, user, role string, at time.Duration, points float64) eventlog.EventRecord {
	return eventlog.EventRecord{
		CaseID:      caseID,
		Activity:    activity,
		Timestamp:   monday.Add(at),
		User:        eventlog.Ptr(user),
		Role:        eventlog.Ptr(role),
		StoryPoints: eventlog.Ptr(points),
	}
}

func sampleLog(t *testing.T) *eventlog.EventLog {
	t.Helper()
	log, err := eventlog.New([]eventlog.EventRecord{
		event("T-1", "Created", "ann", "pm", 0, 3),
		event("T-1", "In Progress", "bob", "dev", time.Hour, 5),
		event("T-1", "QA Review", "cat", "qa", 3*time.Hour, 5),
		event("T-1", "Closed", "ann", "pm", 4*time.Hour, 5),
		event("T-2", "Created", "ann", "pm", 0, 2),
		event("T-2", "In Progress", "bob", "dev", 10*time.Hour, 2),
		event("T-2", "Reopened", "bob", "dev", 20*time.Hour, 2),
		event("T-2", "Reopened", "bob", "dev", 30*time.Hour, 2),
		{CaseID: "T-2", Activity: "Resolved"},
	})
	require.NoError(t, err)
	return log
}

func TestFeatures(t *testing.T) {
	features := Features(sampleLog(t))
	require.Len(t, features, 2)

	f := features[0]
	assert.Equal(t, "T-1", f.CaseID)
	assert.Equal(t, 4, f.TotalSteps)
	assert.Equal(t, 3, f.UniqueUsers)
	assert.Equal(t, 3, f.UniqueRoles)
	require.NotNil(t, f.TotalStoryPoints)
	assert.Equal(t, 5.0, *f.TotalStoryPoints)
	assert.Equal(t, 1, f.NumQAReviews)
	assert.Equal(t, 1, f.NumClosed)
	require.NotNil(t, f.TotalDurationHours)
	assert.InDelta(t, 4.0, *f.TotalDurationHours, 1e-9)

	g := features[1]
	assert.Equal(t, 5, g.TotalSteps)
	assert.Equal(t, 2, g.NumReopens)
	assert.Equal(t, 1, g.NumResolved)
	assert.InDelta(t, 30.0, *g.TotalDurationHours, 1e-9)
}

func TestFeatures_NoTimestamps(t *testing.T) {
	log, err := eventlog.New([]eventlog.EventRecord{{CaseID: "X", Activity: "Created"}})
	require.NoError(t, err)

	f := Features(log)[0]
	assert.Nil(t, f.TotalDurationHours)
	assert.Nil(t, f.TotalStoryPoints)
	assert.Zero(t, f.UniqueUsers)
}

func TestRecommend(t *testing.T) {
	hours := func(h float64) *float64 { return &h }

	tests := []struct {
		name    string
		feature CaseFeatures
		reasons []string
	}{
		{
			name:    "clean case",
			feature: CaseFeatures{TotalSteps: 4, NumQAReviews: 1, TotalDurationHours: hours(2)},
			reasons: []string{ReasonNoBottleneck},
		},
		{
			name:    "every rule",
			feature: CaseFeatures{TotalSteps: 9, UniqueUsers: 5, NumReopens: 2, TotalDurationHours: hours(25)},
			reasons: []string{ReasonLongCycle, ReasonReopens, ReasonManySteps, ReasonManyUsers, ReasonNoQAReview},
		},
		{
			name:    "thresholds are strict",
			feature: CaseFeatures{TotalSteps: 8, UniqueUsers: 4, NumReopens: 1, NumQAReviews: 1, TotalDurationHours: hours(24)},
			reasons: []string{ReasonNoBottleneck},
		},
		{
			name:    "unknown duration never counts as long",
			feature: CaseFeatures{NumQAReviews: 1},
			reasons: []string{ReasonNoBottleneck},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Recommend([]CaseFeatures{tt.feature}, DefaultRules())
			require.Len(t, got, 1)
			assert.Equal(t, tt.reasons, got[0].Reasons)
		})
	}
}

func TestRecommend_JoinsReasons(t *testing.T) {
	got := Recommend([]CaseFeatures{{CaseID: "A", NumReopens: 3}}, DefaultRules())[0]
	assert.Equal(t, "Multiple reopens; No QA review", got.Summary)
	assert.Equal(t, advice[ReasonReopens]+" "+advice[ReasonNoQAReview], got.Text)
}

func TestGenerate(t *testing.T) {
	log := sampleLog(t)
	in := Generate(log, Features(log), DefaultRules())

	assert.Equal(t, []string{
		"The average ticket cycle time is 17.0 hours.",
		"The median ticket cycle time is 17.0 hours.",
		"The standard deviation of ticket cycle time is 18.4 hours.",
		"1 tickets did not go through QA review. Ensure QA is part of the workflow.",
		"1 tickets were reopened multiple times. Investigate recurring issues.",
		"1 tickets were never closed. Review these for completion.",
	}, in.Process)

	assert.Equal(t, []string{
		"User bob participated in 4 activities.",
		"User ann participated in 3 activities.",
		"User cat participated in 1 activities.",
		"User bob was involved in 2 ticket reopens.",
		"User bob has the longest average delay between actions (9.7 hours). Consider workload balancing.",
	}, in.User)

	require.Len(t, in.Activity, 3)
	assert.Equal(t, "The most common activity is 'Created' (2 occurrences).", in.Activity[0])
	assert.Equal(t, "The activity with the longest average delay is 'Reopened' (10.0 hours between steps).", in.Activity[1])
	assert.Equal(t, "The busiest day of the week is Monday.", in.Activity[2])

	lines := in.Lines()
	assert.Equal(t, "--- Process-level Insights ---", lines[0])
}

func TestCycleTrend(t *testing.T) {
	h := func(v float64) *float64 { return &v }
	rising := []CaseFeatures{
		{CaseID: "T-1", TotalDurationHours: h(1)},
		{CaseID: "T-2", TotalDurationHours: h(2)},
		{CaseID: "T-3", TotalDurationHours: h(4)},
		{CaseID: "T-4", TotalDurationHours: h(8)},
	}
	s, ok := cycleTrend(rising)
	require.True(t, ok)
	assert.Greater(t, s, 0.0)

	_, ok = cycleTrend(rising[:3])
	assert.False(t, ok)
}

func TestStats(t *testing.T) {
	assert.Equal(t, 2.5, median([]float64{4, 1, 3, 2}))
	assert.Equal(t, 3.0, median([]float64{5, 1, 3}))
	_, ok := stddev([]float64{1})
	assert.False(t, ok)
	sd, ok := stddev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	require.True(t, ok)
	assert.InDelta(t, 2.138, sd, 0.001)
}

func TestService_Derive(t *testing.T) {
	svc, err := NewService(DefaultRules(), zaptest.NewLogger(t))
	require.NoError(t, err)

	bundle, err := svc.Derive(context.Background(), sampleLog(t))
	require.NoError(t, err)
	assert.Len(t, bundle.Features, 2)
	assert.Len(t, bundle.Recommendations, 2)
	assert.NotEmpty(t, bundle.Insights.Process)

	empty, err := eventlog.New(nil)
	require.NoError(t, err)
	_, err = svc.Derive(context.Background(), empty)
	assert.True(t, errors.IsType(err, errors.ErrorTypeEmptyInput))

	_, err = NewService(Rules{MaxSteps: -1}, zaptest.NewLogger(t))
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
