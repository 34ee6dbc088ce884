package analytics

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/workflow-insights-backend/internal/domain/eventlog"
)

// Service defines the analytics service interface
type Service interface {
	// Analyze derives every result set from an event log. A log without
	// cases yields an empty_input error.
	Analyze(ctx context.Context, log *eventlog.EventLog) (*Report, error)

	// Options returns the options the service was built with
	Options() Options
}

// Options tune the analytics run
type Options struct {
	// TopVariants caps common_paths
	TopVariants int
	// CaseSampleLimit caps the example case ids attached to a user stat
	CaseSampleLimit int
	// RoleCaseSampleLimit caps the case ids attached to a slowest-role entry
	RoleCaseSampleLimit int
	// BottleneckMinutes is the mean step duration above which an activity is
	// flagged as a bottleneck
	BottleneckMinutes float64
	// Workers is the number of case partitions processed in parallel
	Workers int
	// SLALimits maps activity names to their limit in minutes
	SLALimits SLALimits
}

// Report holds every named result set of one analytics run
type Report struct {
	RunID         uuid.UUID          `json:"run_id" yaml:"run_id"`
	GeneratedAt   time.Time          `json:"generated_at" yaml:"generated_at"`
	CaseCount     int                `json:"case_count" yaml:"case_count"`
	EventCount    int                `json:"event_count" yaml:"event_count"`
	CommonPaths   []CommonPath       `json:"common_paths" yaml:"common_paths"`
	StepDurations []StepDurationStat `json:"step_durations" yaml:"step_durations"`
	UserDelays    UserDelays         `json:"user_delays" yaml:"user_delays"`
	CaseDurations CaseDurations      `json:"case_durations" yaml:"case_durations"`
	SLAViolations []Violation        `json:"sla_violations" yaml:"sla_violations"`
	PathTree      []PathTreeNode     `json:"path_tree" yaml:"path_tree"`
	CasePaths     []CasePath         `json:"case_paths" yaml:"case_paths"`
	DataQuality   []eventlog.Issue   `json:"data_quality" yaml:"data_quality"`
}

// CommonPath is one variant and the number of cases that followed it
type CommonPath struct {
	Path  string `json:"path" yaml:"path"`
	Count int    `json:"count" yaml:"count"`
}

// StepDurationStat summarizes the steps ending in one activity
type StepDurationStat struct {
	Step               string   `json:"step" yaml:"step"`
	AverageMinutes     float64  `json:"average_minutes" yaml:"average_minutes"`
	AverageStoryPoints *float64 `json:"average_story_points" yaml:"average_story_points"`
	Bottleneck         bool     `json:"bottleneck" yaml:"bottleneck"`
}

// UserStat summarizes one (user, role, activity) group
type UserStat struct {
	User               string   `json:"user" yaml:"user"`
	Role               string   `json:"role" yaml:"role"`
	Activity           string   `json:"activity" yaml:"activity"`
	AverageMinutes     float64  `json:"average_minutes" yaml:"average_minutes"`
	AverageStoryPoints float64  `json:"average_story_points" yaml:"average_story_points"`
	Occurrences        int      `json:"occurrences" yaml:"occurrences"`
	Cases              []string `json:"cases" yaml:"cases"`
	MoreCases          bool     `json:"more_cases" yaml:"more_cases"`
}

// SlowestUser is the user with the highest mean step duration
type SlowestUser struct {
	User           string  `json:"user" yaml:"user"`
	AverageMinutes float64 `json:"average_minutes" yaml:"average_minutes"`
}

// SlowestRole is the slowest user within one role
type SlowestRole struct {
	Role           string   `json:"role" yaml:"role"`
	SlowestUser    string   `json:"slowest_user" yaml:"slowest_user"`
	AverageMinutes float64  `json:"average_minutes" yaml:"average_minutes"`
	CaseIDs        []string `json:"case_ids" yaml:"case_ids"`
	MoreCases      bool     `json:"more_cases" yaml:"more_cases"`
}

// UserDelays is the delay attribution result set. SlowestUser is nil when no
// row qualified.
type UserDelays struct {
	UserStats    []UserStat    `json:"user_stats" yaml:"user_stats"`
	SlowestUser  *SlowestUser  `json:"slowest_user" yaml:"slowest_user"`
	SlowestRoles []SlowestRole `json:"slowest_roles" yaml:"slowest_roles"`
}

// RoleDuration is the time a case spent in steps performed by one role
type RoleDuration struct {
	Role         string  `json:"role" yaml:"role"`
	TotalMinutes float64 `json:"total_minutes" yaml:"total_minutes"`
}

// CaseDuration is the elapsed step time of one case
type CaseDuration struct {
	CaseID       string         `json:"case_id" yaml:"case_id"`
	TotalMinutes float64        `json:"total_minutes" yaml:"total_minutes"`
	Roles        []RoleDuration `json:"roles" yaml:"roles"`

	total time.Duration
}

// SlowestCase names the case with the largest total
type SlowestCase struct {
	CaseID          string  `json:"case_id" yaml:"case_id"`
	DurationMinutes float64 `json:"duration_minutes" yaml:"duration_minutes"`
}

// CaseDurations is the per-case result set. SlowestCase is nil when no case
// has a measurable step.
type CaseDurations struct {
	Cases       []CaseDuration `json:"cases" yaml:"cases"`
	SlowestCase *SlowestCase   `json:"slowest_case" yaml:"slowest_case"`
}

// Violation is a step that took longer than its activity's SLA limit
type Violation struct {
	CaseID          string   `json:"case_id" yaml:"case_id"`
	Activity        string   `json:"activity" yaml:"activity"`
	User            *string  `json:"user" yaml:"user"`
	Role            *string  `json:"role" yaml:"role"`
	DurationMinutes int64    `json:"duration_minutes" yaml:"duration_minutes"`
	SLALimit        float64  `json:"sla_limit" yaml:"sla_limit"`
	StoryPoints     *float64 `json:"story_points" yaml:"story_points"`
}

// PathTreeNode is one node of the rendered path tree
type PathTreeNode struct {
	Name     string         `json:"name" yaml:"name"`
	Count    int            `json:"count" yaml:"count"`
	Children []PathTreeNode `json:"children" yaml:"children"`
}

// CasePath is the literal activity sequence of one case
type CasePath struct {
	CaseID string   `json:"case_id" yaml:"case_id"`
	Path   []string `json:"path" yaml:"path"`
}
