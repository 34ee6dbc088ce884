package analytics

import (
	"sort"
	"time"

	"github.com/davidleathers/workflow-insights-backend/internal/domain/errors"
	"github.com/davidleathers/workflow-insights-backend/internal/domain/values"
)

// caseTotals is the per-case partial aggregate. Cases are independent, so a
// partition owns every case it sees and merging is concatenation.
type caseTotals struct {
	order []string
	cases map[string]*caseAcc
}

type caseAcc struct {
	total time.Duration
	roles map[string]time.Duration
}

func newCaseTotals() *caseTotals {
	return &caseTotals{cases: make(map[string]*caseAcc)}
}

func (t *caseTotals) add(cases []AnnotatedCase) {
	for _, c := range cases {
		var acc *caseAcc
		for _, s := range c.Steps {
			if s.Duration == nil {
				continue
			}
			if acc == nil {
				acc = &caseAcc{roles: make(map[string]time.Duration)}
			}
			acc.total += *s.Duration
			if s.Role != nil {
				acc.roles[*s.Role] += *s.Duration
			}
		}
		if acc == nil {
			continue
		}
		if _, seen := t.cases[c.ID]; !seen {
			t.order = append(t.order, c.ID)
		}
		t.cases[c.ID] = acc
	}
}

func (t *caseTotals) merge(other *caseTotals) {
	for _, id := range other.order {
		if _, seen := t.cases[id]; !seen {
			t.order = append(t.order, id)
		}
		t.cases[id] = other.cases[id]
	}
}

func (t *caseTotals) render() CaseDurations {
	out := CaseDurations{Cases: make([]CaseDuration, 0, len(t.order))}
	for _, id := range t.order {
		acc := t.cases[id]
		roles := make([]string, 0, len(acc.roles))
		for r := range acc.roles {
			roles = append(roles, r)
		}
		sort.Strings(roles)

		breakdown := make([]RoleDuration, 0, len(roles))
		for _, r := range roles {
			breakdown = append(breakdown, RoleDuration{
				Role:         r,
				TotalMinutes: values.MinutesOf(acc.roles[r]).Reported(),
			})
		}
		out.Cases = append(out.Cases, CaseDuration{
			CaseID:       id,
			TotalMinutes: values.MinutesOf(acc.total).Reported(),
			Roles:        breakdown,
			total:        acc.total,
		})
	}
	if slowest, err := SlowestCaseOf(out.Cases); err == nil {
		out.SlowestCase = slowest
	}
	return out
}

// ComputeCaseDurations sums the step durations of every case and breaks the
// total down by the role that performed each step.
func ComputeCaseDurations(cases []AnnotatedCase) CaseDurations {
	t := newCaseTotals()
	t.add(cases)
	return t.render()
}

// SlowestCaseOf returns the case with the largest exact total. The first case
// wins a tie. An empty input is a no_data error.
func SlowestCaseOf(cases []CaseDuration) (*SlowestCase, error) {
	if len(cases) == 0 {
		return nil, errors.NewNoDataError("slowest case")
	}
	best := 0
	for i := 1; i < len(cases); i++ {
		if cases[i].total > cases[best].total {
			best = i
		}
	}
	return &SlowestCase{
		CaseID:          cases[best].CaseID,
		DurationMinutes: cases[best].TotalMinutes,
	}, nil
}
