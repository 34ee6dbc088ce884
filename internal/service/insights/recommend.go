package insights

import "strings"

// Rules holds the thresholds of the heuristic recommender. A case is flagged
// when its feature is strictly greater than the threshold.
type Rules struct {
	LongCycleHours float64 `koanf:"long_cycle_hours" validate:"gte=0"`
	MaxReopens     int     `koanf:"max_reopens" validate:"gte=0"`
	MaxSteps       int     `koanf:"max_steps" validate:"gte=0"`
	MaxUsers       int     `koanf:"max_users" validate:"gte=0"`
}

// DefaultRules returns the stock thresholds
func DefaultRules() Rules {
	return Rules{
		LongCycleHours: 24,
		MaxReopens:     1,
		MaxSteps:       8,
		MaxUsers:       4,
	}
}

// Recommendation is the heuristic verdict for one case
type Recommendation struct {
	CaseID  string   `json:"case_id" yaml:"case_id"`
	Reasons []string `json:"reasons" yaml:"reasons"`
	Summary string   `json:"heuristic_recommendation" yaml:"heuristic_recommendation"`
	Text    string   `json:"recommendation_text" yaml:"recommendation_text"`
}

// Reasons and the advice attached to them
const (
	ReasonLongCycle    = "Long cycle time"
	ReasonReopens      = "Multiple reopens"
	ReasonManySteps    = "Too many steps"
	ReasonManyUsers    = "Too many users involved"
	ReasonNoQAReview   = "No QA review"
	ReasonNoBottleneck = "No major bottleneck detected"
)

var advice = map[string]string{
	ReasonLongCycle:    "This ticket took significantly longer than average to complete. Consider investigating process delays.",
	ReasonReopens:      "This ticket was reopened multiple times, suggesting recurring issues or incomplete resolutions.",
	ReasonManySteps:    "This ticket required an unusually high number of workflow steps, which may indicate process complexity.",
	ReasonManyUsers:    "This ticket involved many different users, which could slow down progress or cause miscommunication.",
	ReasonNoQAReview:   "This ticket did not go through a QA review, which may impact quality assurance.",
	ReasonNoBottleneck: "No major bottlenecks or issues detected for this ticket.",
}

// Recommend applies the rules to every feature row, keeping row order
func Recommend(features []CaseFeatures, rules Rules) []Recommendation {
	out := make([]Recommendation, 0, len(features))
	for _, f := range features {
		out = append(out, rules.evaluate(f))
	}
	return out
}

func (r Rules) evaluate(f CaseFeatures) Recommendation {
	var reasons []string
	if f.TotalDurationHours != nil && *f.TotalDurationHours > r.LongCycleHours {
		reasons = append(reasons, ReasonLongCycle)
	}
	if f.NumReopens > r.MaxReopens {
		reasons = append(reasons, ReasonReopens)
	}
	if f.TotalSteps > r.MaxSteps {
		reasons = append(reasons, ReasonManySteps)
	}
	if f.UniqueUsers > r.MaxUsers {
		reasons = append(reasons, ReasonManyUsers)
	}
	if f.NumQAReviews == 0 {
		reasons = append(reasons, ReasonNoQAReview)
	}
	if len(reasons) == 0 {
		reasons = append(reasons, ReasonNoBottleneck)
	}

	texts := make([]string, len(reasons))
	for i, reason := range reasons {
		texts[i] = advice[reason]
	}
	return Recommendation{
		CaseID:  f.CaseID,
		Reasons: reasons,
		Summary: strings.Join(reasons, "; "),
		Text:    strings.Join(texts, " "),
	}
}
