// Package eventlog holds the case-based event log the analytics engine runs on.
package eventlog

import (
	"time"
)

// EventRecord is one execution of an activity within a case. User, Role and
// StoryPoints are nil when the source row had no usable value. A zero
// Timestamp means the source timestamp could not be parsed.
type EventRecord struct {
	CaseID      string
	Activity    string
	Timestamp   time.Time
	User        *string
	Role        *string
	StoryPoints *float64

	// Row is the zero-based position of the record in the ingested input.
	Row int
}

// HasTimestamp reports whether the record carries a usable timestamp
func (r EventRecord) HasTimestamp() bool {
	return !r.Timestamp.IsZero()
}

// UserName returns the user or "" when absent
func (r EventRecord) UserName() string {
	return deref(r.User)
}

// RoleName returns the role or "" when absent
func (r EventRecord) RoleName() string {
	return deref(r.Role)
}

// Ptr returns a pointer to v. It keeps literal optional fields short.
func Ptr[T any](v T) *T {
	return &v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Case is the ordered sequence of records sharing one case id. It is built
// once by New and must not be modified afterwards.
type Case struct {
	ID     string
	Events []EventRecord
}

// Activities returns the activity names in traversal order
func (c Case) Activities() []string {
	acts := make([]string, len(c.Events))
	for i, e := range c.Events {
		acts[i] = e.Activity
	}
	return acts
}

// Len returns the number of records in the case
func (c Case) Len() int {
	return len(c.Events)
}
