package eventlog

import (
	"fmt"
	"sort"

	"github.com/davidleathers/workflow-insights-backend/internal/domain/errors"
)

// IssueKind classifies a data-quality finding
type IssueKind string

const (
	// IssueOutOfOrder marks a case whose input rows were not in timestamp
	// order. The case is re-sorted so no step duration is ever negative.
	IssueOutOfOrder IssueKind = "out_of_order"
	// IssueMissingTimestamp marks a record whose timestamp is absent. It is
	// placed after the timed records of its case and has no duration.
	IssueMissingTimestamp IssueKind = "missing_timestamp"
)

// Issue is a data-quality finding recorded while building the log
type Issue struct {
	Kind    IssueKind `json:"kind" yaml:"kind"`
	CaseID  string    `json:"case_id" yaml:"case_id"`
	Row     int       `json:"row" yaml:"row"`
	Message string    `json:"message" yaml:"message"`
}

// EventLog is the immutable, case-grouped view over a sequence of records.
// Cases keep the order in which their id first appeared in the input; records
// inside a case are sorted by timestamp with ties kept in input order.
type EventLog struct {
	cases  []Case
	index  map[string]int
	events int
	issues []Issue
}

// New groups records by case id. Records must carry a case id and an
// activity; anything else may be absent.
func New(records []EventRecord) (*EventLog, error) {
	l := &EventLog{index: make(map[string]int)}

	for i, r := range records {
		if r.CaseID == "" {
			return nil, errors.NewValidationError("MISSING_CASE_ID",
				fmt.Sprintf("record %d has no case id", i))
		}
		if r.Activity == "" {
			return nil, errors.NewValidationError("MISSING_ACTIVITY",
				fmt.Sprintf("record %d of case %s has no activity", i, r.CaseID))
		}

		idx, ok := l.index[r.CaseID]
		if !ok {
			idx = len(l.cases)
			l.index[r.CaseID] = idx
			l.cases = append(l.cases, Case{ID: r.CaseID})
		}
		l.cases[idx].Events = append(l.cases[idx].Events, r)
	}

	for i := range l.cases {
		l.orderCase(&l.cases[i])
		l.events += len(l.cases[i].Events)
	}

	return l, nil
}

func (l *EventLog) orderCase(c *Case) {
	ordered := true
	var last EventRecord
	seenTimed := false
	for _, e := range c.Events {
		if !e.HasTimestamp() {
			l.issues = append(l.issues, Issue{
				Kind:    IssueMissingTimestamp,
				CaseID:  c.ID,
				Row:     e.Row,
				Message: fmt.Sprintf("activity %q has no usable timestamp", e.Activity),
			})
			continue
		}
		if seenTimed && e.Timestamp.Before(last.Timestamp) {
			ordered = false
		}
		last = e
		seenTimed = true
	}

	if !ordered {
		l.issues = append(l.issues, Issue{
			Kind:    IssueOutOfOrder,
			CaseID:  c.ID,
			Row:     c.Events[0].Row,
			Message: "records were not in timestamp order and have been re-sorted",
		})
	}

	sort.SliceStable(c.Events, func(i, j int) bool {
		a, b := c.Events[i], c.Events[j]
		if a.HasTimestamp() != b.HasTimestamp() {
			return a.HasTimestamp()
		}
		return a.Timestamp.Before(b.Timestamp)
	})
}

// Cases returns the cases in first-appearance order
func (l *EventLog) Cases() []Case {
	return l.cases
}

// Case looks up a case by id
func (l *EventLog) Case(id string) (Case, bool) {
	idx, ok := l.index[id]
	if !ok {
		return Case{}, false
	}
	return l.cases[idx], true
}

// Len returns the number of cases
func (l *EventLog) Len() int {
	return len(l.cases)
}

// EventCount returns the number of records across all cases
func (l *EventLog) EventCount() int {
	return l.events
}

// Issues returns the data-quality findings gathered while building the log
func (l *EventLog) Issues() []Issue {
	return l.issues
}

// Records returns every record in traversal order: case by case, each case in
// its sorted order.
func (l *EventLog) Records() []EventRecord {
	out := make([]EventRecord, 0, l.events)
	for _, c := range l.cases {
		out = append(out, c.Events...)
	}
	return out
}
