package analytics

import (
	"sort"
	"time"

	"github.com/davidleathers/workflow-insights-backend/internal/domain/eventlog"
	"github.com/davidleathers/workflow-insights-backend/internal/domain/values"
)

// Step is a record annotated with its position in the case and the gap to
// its predecessor. Duration is nil for the first record of a case and
// whenever either timestamp is absent; nil is never the same as zero.
type Step struct {
	eventlog.EventRecord
	Index    int
	Duration *time.Duration
}

// Minutes returns the step duration in minutes
func (s Step) Minutes() (values.Minutes, bool) {
	if s.Duration == nil {
		return values.Minutes{}, false
	}
	return values.MinutesOf(*s.Duration), true
}

// AnnotatedCase is a case whose records carry step durations
type AnnotatedCase struct {
	ID    string
	Steps []Step
}

// Annotate computes the step durations of one case
func Annotate(c eventlog.Case) AnnotatedCase {
	steps := make([]Step, len(c.Events))
	for i, e := range c.Events {
		steps[i] = Step{EventRecord: e, Index: i}
		if i == 0 {
			continue
		}
		prev := c.Events[i-1]
		if !e.HasTimestamp() || !prev.HasTimestamp() {
			continue
		}
		d := e.Timestamp.Sub(prev.Timestamp)
		steps[i].Duration = &d
	}
	return AnnotatedCase{ID: c.ID, Steps: steps}
}

// AnnotateAll computes step durations for every case, preserving order
func AnnotateAll(cases []eventlog.Case) []AnnotatedCase {
	out := make([]AnnotatedCase, len(cases))
	for i, c := range cases {
		out[i] = Annotate(c)
	}
	return out
}

type activityAgg struct {
	total       time.Duration
	samples     int
	storyPoints values.Mean
}

// activityTable is a mergeable per-activity partial aggregate
type activityTable map[string]*activityAgg

func (t activityTable) get(activity string) *activityAgg {
	agg, ok := t[activity]
	if !ok {
		agg = &activityAgg{}
		t[activity] = agg
	}
	return agg
}

func (t activityTable) add(cases []AnnotatedCase) {
	for _, c := range cases {
		for _, s := range c.Steps {
			agg := t.get(s.Activity)
			if s.StoryPoints != nil {
				agg.storyPoints.Add(*s.StoryPoints)
			}
			if s.Duration != nil {
				agg.total += *s.Duration
				agg.samples++
			}
		}
	}
}

func (t activityTable) merge(other activityTable) {
	for activity, o := range other {
		agg := t.get(activity)
		agg.total += o.total
		agg.samples += o.samples
		agg.storyPoints.Merge(o.storyPoints)
	}
}

// stats renders the table ordered by activity name. Activities without a
// single duration sample are left out rather than reported as zero.
func (t activityTable) stats(bottleneckMinutes float64) []StepDurationStat {
	names := make([]string, 0, len(t))
	for name, agg := range t {
		if agg.samples > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	out := make([]StepDurationStat, 0, len(names))
	for _, name := range names {
		agg := t[name]
		mean, _ := values.MeanMinutes(agg.total, agg.samples)
		mins := mean.Reported()
		out = append(out, StepDurationStat{
			Step:               name,
			AverageMinutes:     mins,
			AverageStoryPoints: agg.storyPoints.Reported(),
			Bottleneck:         mins > bottleneckMinutes,
		})
	}
	return out
}

// StepDurations computes per-activity mean durations and story points
func StepDurations(cases []AnnotatedCase, bottleneckMinutes float64) []StepDurationStat {
	t := activityTable{}
	t.add(cases)
	return t.stats(bottleneckMinutes)
}

// caseSet keeps distinct case ids in first-seen order
type caseSet struct {
	ids  []string
	seen map[string]struct{}
}

func (s *caseSet) add(id string) {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, ok := s.seen[id]; ok {
		return
	}
	s.seen[id] = struct{}{}
	s.ids = append(s.ids, id)
}

func (s *caseSet) merge(other caseSet) {
	for _, id := range other.ids {
		s.add(id)
	}
}

// sample returns at most limit ids and whether more exist
func (s caseSet) sample(limit int) ([]string, bool) {
	if limit < 0 || len(s.ids) <= limit {
		out := make([]string, len(s.ids))
		copy(out, s.ids)
		return out, false
	}
	out := make([]string, limit)
	copy(out, s.ids[:limit])
	return out, true
}

// durationAgg accumulates step durations for one group
type durationAgg struct {
	total time.Duration
	count int
	cases caseSet
}

func (a *durationAgg) add(s Step) {
	a.total += *s.Duration
	a.count++
	a.cases.add(s.CaseID)
}

func (a *durationAgg) merge(o *durationAgg) {
	a.total += o.total
	a.count += o.count
	a.cases.merge(o.cases)
}

func (a *durationAgg) mean() (values.Minutes, bool) {
	return values.MeanMinutes(a.total, a.count)
}
