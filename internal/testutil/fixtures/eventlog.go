// Package fixtures provides canned event logs for tests.
package fixtures

import "strings"

// SampleCSV is a three-case log with one SLA violation under the default
// limits (Case1 Resolved, 390 minutes). Case2 is reopened once and Case3
// never closes.
var SampleCSV = strings.Join([]string{
	"case_id,activity,timestamp,user,role,story_points",
	"Case1,Created,2024-03-04 09:00:00,ann,pm,3",
	"Case1,Assigned,2024-03-04 09:10:00,bob,dev,3",
	"Case1,Resolved,2024-03-04 15:40:00,bob,dev,3",
	"Case2,Created,2024-03-04 10:00:00,ann,pm,5",
	"Case2,Resolved,2024-03-04 11:00:00,cat,dev,5",
	"Case2,Reopened,2024-03-04 12:00:00,ann,pm,5",
	"Case2,Closed,2024-03-04 12:30:00,cat,dev,5",
	"Case3,Created,2024-03-05 08:00:00,dan,pm,",
	"Case3,Assigned,2024-03-05 08:20:00,bob,dev,",
}, "\n") + "\n"

// SampleCases is the number of cases in SampleCSV
const SampleCases = 3

// SampleEvents is the number of rows in SampleCSV
const SampleEvents = 9

// BrokenCSV lacks the role and story_points columns
const BrokenCSV = "case_id,activity,timestamp,user\nCase1,Created,2024-03-04 09:00:00,ann\n"
