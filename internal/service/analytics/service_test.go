package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/davidleathers/workflow-insights-backend/internal/domain/errors"
	"github.com/davidleathers/workflow-insights-backend/internal/domain/eventlog"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func rec(caseID, activity string, offset time.Duration) eventlog.EventRecord {
	return eventlog.EventRecord{CaseID: caseID, Activity: activity, Timestamp: t0.Add(offset)}
}

func actor(r eventlog.EventRecord, user, role string, points float64) eventlog.EventRecord {
	r.User = eventlog.Ptr(user)
	r.Role = eventlog.Ptr(role)
	r.StoryPoints = eventlog.Ptr(points)
	return r
}

func mustLog(t *testing.T, records ...eventlog.EventRecord) *eventlog.EventLog {
	t.Helper()
	log, err := eventlog.New(records)
	require.NoError(t, err)
	return log
}

func newTestService(t *testing.T, mutate func(*Options)) Service {
	t.Helper()
	opts := DefaultOptions()
	opts.Workers = 1
	if mutate != nil {
		mutate(&opts)
	}
	svc, err := NewService(opts, zaptest.NewLogger(t))
	require.NoError(t, err)
	return svc
}

func scenarioLog(t *testing.T) *eventlog.EventLog {
	return mustLog(t,
		rec("Case1", "Created", 0),
		rec("Case1", "Assigned", 10*time.Minute),
		rec("Case1", "Resolved", 400*time.Minute),
		rec("Case2", "Created", 0),
		rec("Case2", "Resolved", 20*time.Minute),
	)
}

func TestNewService(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Options)
		nilLog  bool
		wantErr bool
	}{
		{name: "defaults"},
		{name: "nil logger", nilLog: true, wantErr: true},
		{name: "zero top variants", mutate: func(o *Options) { o.TopVariants = 0 }, wantErr: true},
		{name: "zero workers", mutate: func(o *Options) { o.Workers = 0 }, wantErr: true},
		{name: "negative sla", mutate: func(o *Options) { o.SLALimits = SLALimits{"Created": -1} }, wantErr: true},
		{name: "zero sla is allowed", mutate: func(o *Options) { o.SLALimits = SLALimits{"Created": 0} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			if tt.mutate != nil {
				tt.mutate(&opts)
			}
			logger := zaptest.NewLogger(t)
			if tt.nilLog {
				logger = nil
			}
			svc, err := NewService(opts, logger)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, opts.TopVariants, svc.Options().TopVariants)
		})
	}
}

func TestService_Analyze_Scenario(t *testing.T) {
	svc := newTestService(t, nil)

	report, err := svc.Analyze(context.Background(), scenarioLog(t))
	require.NoError(t, err)

	assert.Equal(t, 2, report.CaseCount)
	assert.Equal(t, 5, report.EventCount)

	require.Len(t, report.CommonPaths, 2)
	assert.Equal(t, CommonPath{Path: "Created -> Assigned -> Resolved", Count: 1}, report.CommonPaths[0])
	assert.Equal(t, CommonPath{Path: "Created -> Resolved", Count: 1}, report.CommonPaths[1])

	require.Len(t, report.SLAViolations, 1)
	v := report.SLAViolations[0]
	assert.Equal(t, "Case1", v.CaseID)
	assert.Equal(t, "Resolved", v.Activity)
	assert.Equal(t, int64(390), v.DurationMinutes)
	assert.Equal(t, float64(60), v.SLALimit)

	require.NotNil(t, report.CaseDurations.SlowestCase)
	assert.Equal(t, "Case1", report.CaseDurations.SlowestCase.CaseID)
	assert.InDelta(t, 400, report.CaseDurations.SlowestCase.DurationMinutes, 0.001)

	require.Len(t, report.StepDurations, 2)
	assert.Equal(t, "Assigned", report.StepDurations[0].Step)
	assert.Equal(t, 10.0, report.StepDurations[0].AverageMinutes)
	assert.False(t, report.StepDurations[0].Bottleneck)
	assert.Equal(t, "Resolved", report.StepDurations[1].Step)
	assert.Equal(t, 205.0, report.StepDurations[1].AverageMinutes)
	assert.True(t, report.StepDurations[1].Bottleneck)
	assert.Nil(t, report.StepDurations[1].AverageStoryPoints)

	assert.Nil(t, report.UserDelays.SlowestUser)
	assert.Empty(t, report.UserDelays.UserStats)

	require.Len(t, report.PathTree, 1)
	assert.Equal(t, "Created", report.PathTree[0].Name)
	assert.Equal(t, 2, report.PathTree[0].Count)

	assert.Equal(t, []CasePath{
		{CaseID: "Case1", Path: []string{"Created", "Assigned", "Resolved"}},
		{CaseID: "Case2", Path: []string{"Created", "Resolved"}},
	}, report.CasePaths)
}

func TestService_Analyze_EmptyInput(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.Analyze(context.Background(), mustLog(t))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeEmptyInput))

	_, err = svc.Analyze(context.Background(), nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeEmptyInput))
}

func TestService_Analyze_Cancelled(t *testing.T) {
	svc := newTestService(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Analyze(ctx, scenarioLog(t))
	require.Error(t, err)
}

func TestService_Analyze_Idempotent(t *testing.T) {
	svc := newTestService(t, nil)
	log := largeLog(t, 40)

	first, err := svc.Analyze(context.Background(), log)
	require.NoError(t, err)
	second, err := svc.Analyze(context.Background(), log)
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, resultSets(t, first), resultSets(t, second))
}

func TestService_Analyze_ParallelMatchesSequential(t *testing.T) {
	log := largeLog(t, 97)
	sequential := newTestService(t, func(o *Options) { o.Workers = 1 })

	want, err := sequential.Analyze(context.Background(), log)
	require.NoError(t, err)

	for _, workers := range []int{2, 3, 8, 200} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			parallel := newTestService(t, func(o *Options) { o.Workers = workers })
			got, err := parallel.Analyze(context.Background(), log)
			require.NoError(t, err)
			assert.Equal(t, resultSets(t, want), resultSets(t, got))
		})
	}
}

// resultSets serializes a report without its per-run identity
func resultSets(t *testing.T, r *Report) string {
	t.Helper()
	clone := *r
	clone.RunID = [16]byte{}
	clone.GeneratedAt = time.Time{}
	b, err := json.Marshal(clone)
	require.NoError(t, err)
	return string(b)
}

func largeLog(t *testing.T, n int) *eventlog.EventLog {
	t.Helper()
	users := []string{"ana", "bo", "cy", "dee"}
	roles := []string{"dev", "qa"}
	flows := [][]string{
		{"Created", "Assigned", "In Progress", "Code Review", "Resolved", "Closed"},
		{"Created", "Assigned", "In Progress", "Resolved"},
		{"Created", "In Progress", "Reopened", "In Progress", "Closed"},
	}

	var records []eventlog.EventRecord
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("C%03d", i)
		flow := flows[i%len(flows)]
		offset := time.Duration(0)
		for j, act := range flow {
			offset += time.Duration(5+(i*7+j*13)%300) * time.Minute
			r := rec(id, act, offset)
			if (i+j)%5 != 0 {
				r = actor(r, users[(i+j)%len(users)], roles[j%len(roles)], float64((i+j)%8))
			}
			records = append(records, r)
		}
	}
	return mustLog(t, records...)
}

func TestSLA_Boundary(t *testing.T) {
	limits := SLALimits{"Code Review": 180}

	tests := []struct {
		name    string
		gap     time.Duration
		flagged bool
	}{
		{name: "exactly at limit", gap: 180 * time.Minute, flagged: false},
		{name: "one hundredth over", gap: 180*time.Minute + 600*time.Millisecond, flagged: true},
		{name: "under", gap: 179 * time.Minute, flagged: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := mustLog(t, rec("X", "Created", 0), rec("X", "Code Review", tt.gap))
			got := EvaluateSLA(AnnotateAll(log.Cases()), limits)
			if tt.flagged {
				require.Len(t, got, 1)
				assert.Equal(t, int64(180), got[0].DurationMinutes)
			} else {
				assert.Empty(t, got)
			}
		})
	}
}

func TestSLA_ExemptAndZeroLimit(t *testing.T) {
	log := mustLog(t,
		rec("X", "Created", 0),
		rec("X", "Triage", 5000*time.Minute),
		rec("X", "Closed", 5000*time.Minute+time.Second),
	)
	cases := AnnotateAll(log.Cases())

	assert.Empty(t, EvaluateSLA(cases, SLALimits{"Closed": 1}))

	got := EvaluateSLA(cases, SLALimits{"Closed": 0})
	require.Len(t, got, 1)
	assert.Equal(t, "Closed", got[0].Activity)
	assert.Equal(t, int64(0), got[0].DurationMinutes)
}

func TestSLALimits_Validate(t *testing.T) {
	assert.NoError(t, DefaultSLALimits().Validate())
	assert.Error(t, SLALimits{"A": -0.5}.Validate())
}

func TestDurations_FirstStepAbsent(t *testing.T) {
	log := mustLog(t,
		rec("A", "Created", 0),
		rec("A", "Assigned", 3*time.Minute),
		rec("B", "Solo", 0),
	)
	cases := AnnotateAll(log.Cases())

	assert.Nil(t, cases[0].Steps[0].Duration)
	require.NotNil(t, cases[0].Steps[1].Duration)
	assert.Equal(t, 3*time.Minute, *cases[0].Steps[1].Duration)
	assert.Nil(t, cases[1].Steps[0].Duration)

	stats := StepDurations(cases, 60)
	require.Len(t, stats, 1)
	assert.Equal(t, "Assigned", stats[0].Step)
}

func TestDurations_NeverNegative(t *testing.T) {
	log := mustLog(t,
		rec("A", "Created", 30*time.Minute),
		rec("A", "Assigned", 0),
	)
	cases := AnnotateAll(log.Cases())
	for _, s := range cases[0].Steps {
		if s.Duration != nil {
			assert.GreaterOrEqual(t, *s.Duration, time.Duration(0))
		}
	}
	require.Len(t, log.Issues(), 1)
	assert.Equal(t, eventlog.IssueOutOfOrder, log.Issues()[0].Kind)
}

func TestDurations_MissingTimestamp(t *testing.T) {
	missing := eventlog.EventRecord{CaseID: "A", Activity: "Assigned"}
	log := mustLog(t, rec("A", "Created", 0), missing, rec("A", "Closed", 10*time.Minute))
	cases := AnnotateAll(log.Cases())

	require.Len(t, cases[0].Steps, 3)
	assert.Equal(t, "Assigned", cases[0].Steps[2].Activity)
	assert.Nil(t, cases[0].Steps[2].Duration)
	require.NotNil(t, cases[0].Steps[1].Duration)
	assert.Equal(t, 10*time.Minute, *cases[0].Steps[1].Duration)
}

// The flag is decided on the reported (2-place) mean, strictly above the threshold
func TestStepDurations_BottleneckBoundary(t *testing.T) {
	log := mustLog(t,
		rec("A", "Created", 0),
		rec("A", "Exact", 60*time.Minute),
		rec("B", "Created", 0),
		rec("B", "Over", 60*time.Minute+600*time.Millisecond),
		rec("C", "Created", 0),
		rec("C", "RoundedDown", 60*time.Minute+240*time.Millisecond),
	)
	stats := StepDurations(AnnotateAll(log.Cases()), 60)
	byStep := make(map[string]StepDurationStat, len(stats))
	for _, s := range stats {
		byStep[s.Step] = s
	}

	tests := []struct {
		step       string
		mean       float64
		bottleneck bool
	}{
		{step: "Exact", mean: 60.00, bottleneck: false},
		{step: "Over", mean: 60.01, bottleneck: true},
		{step: "RoundedDown", mean: 60.00, bottleneck: false},
	}

	for _, tt := range tests {
		t.Run(tt.step, func(t *testing.T) {
			got, ok := byStep[tt.step]
			require.True(t, ok)
			assert.Equal(t, tt.mean, got.AverageMinutes)
			assert.Equal(t, tt.bottleneck, got.Bottleneck)
		})
	}
}

func TestVariants_TieBreakByFirstSeen(t *testing.T) {
	tests := []struct {
		name  string
		paths [][]string
		top   int
		want  []CommonPath
	}{
		{
			name:  "higher count wins",
			paths: [][]string{{"C", "D"}, {"A", "B"}, {"A", "B"}},
			top:   2,
			want:  []CommonPath{{Path: "A -> B", Count: 2}, {Path: "C -> D", Count: 1}},
		},
		{
			name:  "ties keep first appearance",
			paths: [][]string{{"X"}, {"A", "B"}, {"C", "D"}},
			top:   2,
			want:  []CommonPath{{Path: "X", Count: 1}, {Path: "A -> B", Count: 1}},
		},
		{
			name:  "repeats are part of the variant",
			paths: [][]string{{"A", "A"}, {"A"}},
			top:   5,
			want:  []CommonPath{{Path: "A -> A", Count: 1}, {Path: "A", Count: 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := NewFrequencyTable()
			for _, p := range tt.paths {
				table.Add(VariantKey(p))
			}
			assert.Equal(t, tt.want, CommonPaths(table, tt.top))
		})
	}
}

func TestFrequencyTable_MergeKeepsOrder(t *testing.T) {
	a, b := NewFrequencyTable(), NewFrequencyTable()
	a.Add("x")
	b.Add("y")
	b.Add("x")
	a.Merge(b)

	assert.Equal(t, []FrequencyEntry{{Key: "x", Count: 2}, {Key: "y", Count: 1}}, a.Entries())
	assert.Equal(t, 0, a.Count("z"))
}

func TestPathTree_Invariants(t *testing.T) {
	tree := NewPathTree()
	paths := [][]string{
		{"Created", "Assigned", "Closed"},
		{"Created", "Assigned"},
		{"Created", "Rejected"},
		{"Imported"},
	}
	for _, p := range paths {
		tree.Insert(p)
	}

	assert.Equal(t, len(paths), tree.CaseCount())

	nodes := tree.Render()
	total := 0
	for _, n := range nodes {
		total += n.Count
	}
	assert.Equal(t, len(paths), total)

	var check func(n PathTreeNode)
	check = func(n PathTreeNode) {
		assert.NotNil(t, n.Children)
		for _, c := range n.Children {
			assert.LessOrEqual(t, c.Count, n.Count)
			check(c)
		}
	}
	for _, n := range nodes {
		check(n)
	}

	require.Len(t, nodes, 2)
	assert.Equal(t, "Created", nodes[0].Name)
	assert.Equal(t, 3, nodes[0].Count)
	require.Len(t, nodes[0].Children, 2)
	assert.Equal(t, "Assigned", nodes[0].Children[0].Name)
	assert.Equal(t, "Rejected", nodes[0].Children[1].Name)
}

func TestPathTree_MergeMatchesSequential(t *testing.T) {
	paths := [][]string{{"A", "B"}, {"A", "C"}, {"D"}, {"A", "B", "E"}}

	seq := NewPathTree()
	for _, p := range paths {
		seq.Insert(p)
	}

	left, right := NewPathTree(), NewPathTree()
	left.Insert(paths[0])
	left.Insert(paths[1])
	right.Insert(paths[2])
	right.Insert(paths[3])
	left.Merge(right)

	assert.Equal(t, seq.Render(), left.Render())
}

func TestDelays_Attribution(t *testing.T) {
	log := mustLog(t,
		actor(rec("C1", "Created", 0), "zed", "dev", 1),
		actor(rec("C1", "In Progress", 30*time.Minute), "zed", "dev", 3),
		actor(rec("C1", "Code Review", 90*time.Minute), "amy", "qa", 5),
		actor(rec("C2", "Created", 0), "amy", "dev", 2),
		actor(rec("C2", "In Progress", 30*time.Minute), "amy", "dev", 2),
		rec("C2", "Closed", 40*time.Minute),
	)
	delays := AttributeDelays(AnnotateAll(log.Cases()), 5, 10)

	require.Len(t, delays.UserStats, 3)
	assert.Equal(t, "amy", delays.UserStats[0].User)
	assert.Equal(t, "dev", delays.UserStats[0].Role)
	assert.Equal(t, "amy", delays.UserStats[1].User)
	assert.Equal(t, "qa", delays.UserStats[1].Role)
	assert.Equal(t, 60.0, delays.UserStats[1].AverageMinutes)
	assert.Equal(t, 5.0, delays.UserStats[1].AverageStoryPoints)
	assert.Equal(t, []string{"C1"}, delays.UserStats[1].Cases)

	// amy averages (30+60)/2 = 45, zed 30
	require.NotNil(t, delays.SlowestUser)
	assert.Equal(t, "amy", delays.SlowestUser.User)
	assert.Equal(t, 45.0, delays.SlowestUser.AverageMinutes)

	require.Len(t, delays.SlowestRoles, 2)
	assert.Equal(t, "dev", delays.SlowestRoles[0].Role)
	assert.Equal(t, "amy", delays.SlowestRoles[0].SlowestUser)
	assert.Equal(t, "qa", delays.SlowestRoles[1].Role)
}

func TestDelays_TieGoesToAlphabeticallyFirst(t *testing.T) {
	log := mustLog(t,
		actor(rec("C1", "Created", 0), "mia", "dev", 1),
		actor(rec("C1", "Work", 10*time.Minute), "mia", "dev", 1),
		actor(rec("C2", "Created", 0), "ben", "dev", 1),
		actor(rec("C2", "Work", 10*time.Minute), "ben", "dev", 1),
	)
	delays := AttributeDelays(AnnotateAll(log.Cases()), 5, 10)

	require.NotNil(t, delays.SlowestUser)
	assert.Equal(t, "ben", delays.SlowestUser.User)
	require.Len(t, delays.SlowestRoles, 1)
	assert.Equal(t, "ben", delays.SlowestRoles[0].SlowestUser)
}

func TestDelays_CaseSampleOverflow(t *testing.T) {
	var records []eventlog.EventRecord
	for i := 0; i < 7; i++ {
		id := fmt.Sprintf("C%d", i)
		records = append(records,
			actor(rec(id, "Created", 0), "kim", "dev", 1),
			actor(rec(id, "Work", time.Minute), "kim", "dev", 1),
		)
	}
	delays := AttributeDelays(AnnotateAll(mustLog(t, records...).Cases()), 5, 6)

	require.Len(t, delays.UserStats, 1)
	stat := delays.UserStats[0]
	assert.Equal(t, "Work", stat.Activity)
	assert.Equal(t, []string{"C0", "C1", "C2", "C3", "C4"}, stat.Cases)
	assert.True(t, stat.MoreCases)
	assert.Len(t, delays.SlowestRoles[0].CaseIDs, 6)
	assert.True(t, delays.SlowestRoles[0].MoreCases)
}

func TestCaseDurations(t *testing.T) {
	log := mustLog(t,
		actor(rec("A", "Created", 0), "u", "dev", 1),
		actor(rec("A", "Work", 30*time.Minute), "u", "dev", 1),
		rec("A", "Closed", 45*time.Minute),
		rec("B", "Created", 0),
		rec("B", "Closed", 45*time.Minute),
		rec("Solo", "Created", 0),
	)
	got := ComputeCaseDurations(AnnotateAll(log.Cases()))

	require.Len(t, got.Cases, 2)
	assert.Equal(t, "A", got.Cases[0].CaseID)
	assert.Equal(t, 45.0, got.Cases[0].TotalMinutes)
	assert.Equal(t, []RoleDuration{{Role: "dev", TotalMinutes: 30}}, got.Cases[0].Roles)
	assert.Empty(t, got.Cases[1].Roles)

	require.NotNil(t, got.SlowestCase)
	assert.Equal(t, "A", got.SlowestCase.CaseID)
}

func TestSlowestCaseOf_NoData(t *testing.T) {
	_, err := SlowestCaseOf(nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNoData))
	assert.Nil(t, ComputeCaseDurations(nil).SlowestCase)
}

func TestPartitionCases(t *testing.T) {
	cases := make([]AnnotatedCase, 10)
	for i := range cases {
		cases[i].ID = fmt.Sprint(i)
	}

	chunks := partitionCases(cases, 3)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 4)
	assert.Len(t, chunks[1], 3)
	assert.Len(t, chunks[2], 3)
	assert.Equal(t, "4", chunks[1][0].ID)

	assert.Len(t, partitionCases(cases, 50), 10)
	assert.Nil(t, partitionCases(nil, 4))
}
