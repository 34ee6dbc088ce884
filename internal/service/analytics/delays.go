package analytics

import (
	"sort"

	"github.com/davidleathers/workflow-insights-backend/internal/domain/values"
)

type actorKey struct {
	user     string
	role     string
	activity string
}

type roleUserKey struct {
	role string
	user string
}

type actorAgg struct {
	durationAgg
	storyPoints values.Mean
}

// delayTable is the mergeable partial aggregate behind user_delays
type delayTable struct {
	actors    map[actorKey]*actorAgg
	users     map[string]*durationAgg
	roleUsers map[roleUserKey]*durationAgg
}

func newDelayTable() *delayTable {
	return &delayTable{
		actors:    make(map[actorKey]*actorAgg),
		users:     make(map[string]*durationAgg),
		roleUsers: make(map[roleUserKey]*durationAgg),
	}
}

// qualifiesForDelay keeps rows with a duration, a user, a role and story points
func qualifiesForDelay(s Step) bool {
	return s.Duration != nil && s.User != nil && s.Role != nil && s.StoryPoints != nil
}

func (t *delayTable) add(cases []AnnotatedCase) {
	for _, c := range cases {
		for _, s := range c.Steps {
			if !qualifiesForDelay(s) {
				continue
			}
			user, role := *s.User, *s.Role

			ak := actorKey{user: user, role: role, activity: s.Activity}
			a, ok := t.actors[ak]
			if !ok {
				a = &actorAgg{}
				t.actors[ak] = a
			}
			a.durationAgg.add(s)
			a.storyPoints.Add(*s.StoryPoints)

			u, ok := t.users[user]
			if !ok {
				u = &durationAgg{}
				t.users[user] = u
			}
			u.add(s)

			rk := roleUserKey{role: role, user: user}
			ru, ok := t.roleUsers[rk]
			if !ok {
				ru = &durationAgg{}
				t.roleUsers[rk] = ru
			}
			ru.add(s)
		}
	}
}

func (t *delayTable) merge(other *delayTable) {
	for k, o := range other.actors {
		a, ok := t.actors[k]
		if !ok {
			a = &actorAgg{}
			t.actors[k] = a
		}
		a.durationAgg.merge(&o.durationAgg)
		a.storyPoints.Merge(o.storyPoints)
	}
	for k, o := range other.users {
		u, ok := t.users[k]
		if !ok {
			u = &durationAgg{}
			t.users[k] = u
		}
		u.merge(o)
	}
	for k, o := range other.roleUsers {
		ru, ok := t.roleUsers[k]
		if !ok {
			ru = &durationAgg{}
			t.roleUsers[k] = ru
		}
		ru.merge(o)
	}
}

// userStats renders one entry per (user, role, activity), ordered by user,
// then role, then activity.
func (t *delayTable) userStats(caseLimit int) []UserStat {
	keys := make([]actorKey, 0, len(t.actors))
	for k := range t.actors {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.user != b.user {
			return a.user < b.user
		}
		if a.role != b.role {
			return a.role < b.role
		}
		return a.activity < b.activity
	})

	out := make([]UserStat, 0, len(keys))
	for _, k := range keys {
		a := t.actors[k]
		mean, ok := a.mean()
		if !ok {
			continue
		}
		sp := 0.0
		if r := a.storyPoints.Reported(); r != nil {
			sp = *r
		}
		cases, more := a.cases.sample(caseLimit)
		out = append(out, UserStat{
			User:               k.user,
			Role:               k.role,
			Activity:           k.activity,
			AverageMinutes:     mean.Reported(),
			AverageStoryPoints: sp,
			Occurrences:        a.count,
			Cases:              cases,
			MoreCases:          more,
		})
	}
	return out
}

// slowest picks the highest mean among candidates enumerated in ascending
// name order, so the alphabetically first name wins a tie.
func slowest(names []string, lookup func(string) *durationAgg) (string, values.Minutes, bool) {
	sort.Strings(names)
	var (
		best     string
		bestMean values.Minutes
		found    bool
	)
	for _, name := range names {
		mean, ok := lookup(name).mean()
		if !ok {
			continue
		}
		if !found || mean.Decimal().GreaterThan(bestMean.Decimal()) {
			best, bestMean, found = name, mean, true
		}
	}
	return best, bestMean, found
}

func (t *delayTable) slowestUser() *SlowestUser {
	names := make([]string, 0, len(t.users))
	for u := range t.users {
		names = append(names, u)
	}
	user, mean, ok := slowest(names, func(n string) *durationAgg { return t.users[n] })
	if !ok {
		return nil
	}
	return &SlowestUser{User: user, AverageMinutes: mean.Reported()}
}

// slowestRoles reports, per role in name order, the user with the highest
// mean duration within that role.
func (t *delayTable) slowestRoles(caseLimit int) []SlowestRole {
	byRole := make(map[string][]string)
	for k := range t.roleUsers {
		byRole[k.role] = append(byRole[k.role], k.user)
	}
	roles := make([]string, 0, len(byRole))
	for r := range byRole {
		roles = append(roles, r)
	}
	sort.Strings(roles)

	out := make([]SlowestRole, 0, len(roles))
	for _, role := range roles {
		user, mean, ok := slowest(byRole[role], func(n string) *durationAgg {
			return t.roleUsers[roleUserKey{role: role, user: n}]
		})
		if !ok {
			continue
		}
		cases, more := t.roleUsers[roleUserKey{role: role, user: user}].cases.sample(caseLimit)
		out = append(out, SlowestRole{
			Role:           role,
			SlowestUser:    user,
			AverageMinutes: mean.Reported(),
			CaseIDs:        cases,
			MoreCases:      more,
		})
	}
	return out
}

func (t *delayTable) render(caseLimit, roleCaseLimit int) UserDelays {
	return UserDelays{
		UserStats:    t.userStats(caseLimit),
		SlowestUser:  t.slowestUser(),
		SlowestRoles: t.slowestRoles(roleCaseLimit),
	}
}

// AttributeDelays computes the user_delays result set
func AttributeDelays(cases []AnnotatedCase, caseLimit, roleCaseLimit int) UserDelays {
	t := newDelayTable()
	t.add(cases)
	return t.render(caseLimit, roleCaseLimit)
}
