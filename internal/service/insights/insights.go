package insights

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/davidleathers/workflow-insights-backend/internal/domain/eventlog"
	"github.com/davidleathers/workflow-insights-backend/internal/domain/values"
	"github.com/davidleathers/workflow-insights-backend/internal/service/analytics"
)

// HighCycleHours is the mean cycle time above which the process-level
// summary calls the cycle time high
const HighCycleHours = 48

// Insights groups narrative findings by level
type Insights struct {
	Process  []string `json:"process" yaml:"process"`
	User     []string `json:"user" yaml:"user"`
	Activity []string `json:"activity" yaml:"activity"`
}

// Lines renders the insights as a text document with one heading per level
func (in Insights) Lines() []string {
	out := []string{"--- Process-level Insights ---"}
	out = append(out, in.Process...)
	out = append(out, "", "--- User-level Insights ---")
	out = append(out, in.User...)
	out = append(out, "", "--- Activity-level Insights ---")
	out = append(out, in.Activity...)
	return out
}

// Generate derives process, user and activity insights
func Generate(log *eventlog.EventLog, features []CaseFeatures, rules Rules) Insights {
	return Insights{
		Process:  processInsights(features, rules),
		User:     userInsights(log),
		Activity: activityInsights(log),
	}
}

func processInsights(features []CaseFeatures, rules Rules) []string {
	var out []string

	hours := make([]float64, 0, len(features))
	for _, f := range features {
		if f.TotalDurationHours != nil {
			hours = append(hours, *f.TotalDurationHours)
		}
	}
	if len(hours) > 0 {
		avg := mean(hours)
		if avg > HighCycleHours {
			out = append(out, fmt.Sprintf("The average ticket cycle time is high (%.1f hours). Consider reviewing process efficiency.", avg))
		} else {
			out = append(out, fmt.Sprintf("The average ticket cycle time is %.1f hours.", avg))
		}
		out = append(out, fmt.Sprintf("The median ticket cycle time is %.1f hours.", median(hours)))
		if sd, ok := stddev(hours); ok {
			out = append(out, fmt.Sprintf("The standard deviation of ticket cycle time is %.1f hours.", sd))
		}
	}

	var noQA, reopened, longFlows, neverClosed int
	for _, f := range features {
		if f.NumQAReviews == 0 {
			noQA++
		}
		if f.NumReopens > rules.MaxReopens {
			reopened++
		}
		if f.TotalSteps > rules.MaxSteps {
			longFlows++
		}
		if f.NumClosed == 0 {
			neverClosed++
		}
	}
	if noQA > 0 {
		out = append(out, fmt.Sprintf("%d tickets did not go through QA review. Ensure QA is part of the workflow.", noQA))
	}
	if reopened > 0 {
		out = append(out, fmt.Sprintf("%d tickets were reopened multiple times. Investigate recurring issues.", reopened))
	}
	if longFlows > 0 {
		out = append(out, fmt.Sprintf("%d tickets required more than %d workflow steps. Simplify processes if possible.", longFlows, rules.MaxSteps))
	}
	if neverClosed > 0 {
		out = append(out, fmt.Sprintf("%d tickets were never closed. Review these for completion.", neverClosed))
	}

	if slope, ok := cycleTrend(features); ok {
		switch {
		case slope > 0:
			out = append(out, "Average cycle time is increasing over time. Investigate recent process changes.")
		case slope < 0:
			out = append(out, "Average cycle time is decreasing over time. Recent improvements may be working.")
		}
	}
	return out
}

var caseNumber = regexp.MustCompile(`\d+`)

// cycleTrend fits cycle hours against the first number embedded in each case
// id. It needs more than three numbered cases with a measurable cycle.
func cycleTrend(features []CaseFeatures) (float64, bool) {
	var xs, ys []float64
	for _, f := range features {
		if f.TotalDurationHours == nil {
			continue
		}
		digits := caseNumber.FindString(f.CaseID)
		if digits == "" {
			continue
		}
		n, err := strconv.ParseFloat(digits, 64)
		if err != nil {
			continue
		}
		xs = append(xs, n)
		ys = append(ys, *f.TotalDurationHours)
	}
	if len(xs) <= 3 {
		return 0, false
	}
	return slope(xs, ys)
}

func userInsights(log *eventlog.EventLog) []string {
	var out []string
	records := log.Records()

	activity := analytics.NewFrequencyTable()
	reopens := analytics.NewFrequencyTable()
	for _, r := range records {
		if r.User == nil {
			continue
		}
		activity.Add(*r.User)
		if r.Activity == ActivityReopened {
			reopens.Add(*r.User)
		}
	}
	for _, e := range activity.Top(3) {
		out = append(out, fmt.Sprintf("User %s participated in %d activities.", e.Key, e.Count))
	}
	for _, e := range reopens.Top(2) {
		out = append(out, fmt.Sprintf("User %s was involved in %d ticket reopens.", e.Key, e.Count))
	}

	if user, hours, ok := slowestActor(records); ok {
		out = append(out, fmt.Sprintf("User %s has the longest average delay between actions (%.1f hours). Consider workload balancing.", user, hours))
	}
	return out
}

// slowestActor finds the user with the longest mean gap between their own
// consecutive timestamped actions, across all cases. Ties go to the
// alphabetically first user.
func slowestActor(records []eventlog.EventRecord) (string, float64, bool) {
	stamps := make(map[string][]time.Time)
	for _, r := range records {
		if r.User != nil && r.HasTimestamp() {
			stamps[*r.User] = append(stamps[*r.User], r.Timestamp)
		}
	}

	users := make([]string, 0, len(stamps))
	for u := range stamps {
		users = append(users, u)
	}
	sort.Strings(users)

	var (
		best     string
		bestMean float64
		found    bool
	)
	for _, u := range users {
		times := stamps[u]
		if len(times) < 2 {
			continue
		}
		sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
		gap, _ := values.MeanMinutes(times[len(times)-1].Sub(times[0]), len(times)-1)
		h := gap.Hours()
		if !found || h > bestMean {
			best, bestMean, found = u, h, true
		}
	}
	return best, bestMean, found
}

func activityInsights(log *eventlog.EventLog) []string {
	var out []string
	records := log.Records()

	counts := analytics.NewFrequencyTable()
	for _, r := range records {
		counts.Add(r.Activity)
	}
	if top := counts.Top(1); len(top) == 1 {
		out = append(out, fmt.Sprintf("The most common activity is '%s' (%d occurrences).", top[0].Key, top[0].Count))
	}

	stats := analytics.StepDurations(analytics.AnnotateAll(log.Cases()), math.Inf(1))
	if len(stats) > 0 {
		sort.SliceStable(stats, func(i, j int) bool {
			return stats[i].AverageMinutes > stats[j].AverageMinutes
		})
		worst := stats[0]
		out = append(out, fmt.Sprintf("The activity with the longest average delay is '%s' (%.1f hours between steps).",
			worst.Step, values.NewMinutes(worst.AverageMinutes).Hours()))
	}

	if day, ok := busiestWeekday(records); ok {
		out = append(out, fmt.Sprintf("The busiest day of the week is %s.", day))
	}
	return out
}

// busiestWeekday counts timestamped records per weekday. Ties go to the day
// earliest in a Monday-first week.
func busiestWeekday(records []eventlog.EventRecord) (time.Weekday, bool) {
	var counts [7]int
	total := 0
	for _, r := range records {
		if r.HasTimestamp() {
			counts[r.Timestamp.Weekday()]++
			total++
		}
	}
	if total == 0 {
		return 0, false
	}
	best := time.Monday
	for i := 1; i < 7; i++ {
		day := time.Weekday((int(time.Monday) + i) % 7)
		if counts[day] > counts[best] {
			best = day
		}
	}
	return best, true
}
