package analytics

import (
	"sort"
	"strings"
)

// VariantSeparator joins activity names into a variant key
const VariantSeparator = " -> "

// VariantKey renders the canonical variant string of an activity sequence
func VariantKey(activities []string) string {
	return strings.Join(activities, VariantSeparator)
}

// FrequencyEntry is one key of a FrequencyTable
type FrequencyEntry struct {
	Key   string
	Count int
}

// FrequencyTable counts keys while remembering the order in which each key
// was first seen. Ties in Top are broken by that order.
type FrequencyTable struct {
	entries []FrequencyEntry
	index   map[string]int
}

// NewFrequencyTable creates an empty table
func NewFrequencyTable() *FrequencyTable {
	return &FrequencyTable{index: make(map[string]int)}
}

// Add counts one occurrence of key
func (f *FrequencyTable) Add(key string) {
	f.AddN(key, 1)
}

// AddN counts n occurrences of key
func (f *FrequencyTable) AddN(key string, n int) {
	if idx, ok := f.index[key]; ok {
		f.entries[idx].Count += n
		return
	}
	f.index[key] = len(f.entries)
	f.entries = append(f.entries, FrequencyEntry{Key: key, Count: n})
}

// Merge folds other into f. Keys new to f are appended in other's order, so
// merging partitions in partition order keeps global first-seen order.
func (f *FrequencyTable) Merge(other *FrequencyTable) {
	for _, e := range other.entries {
		f.AddN(e.Key, e.Count)
	}
}

// Count returns the count of key
func (f *FrequencyTable) Count(key string) int {
	if idx, ok := f.index[key]; ok {
		return f.entries[idx].Count
	}
	return 0
}

// Len returns the number of distinct keys
func (f *FrequencyTable) Len() int {
	return len(f.entries)
}

// Entries returns all keys in first-seen order
func (f *FrequencyTable) Entries() []FrequencyEntry {
	out := make([]FrequencyEntry, len(f.entries))
	copy(out, f.entries)
	return out
}

// Top returns the n most frequent keys, count descending, ties in first-seen
// order. n <= 0 returns every key.
func (f *FrequencyTable) Top(n int) []FrequencyEntry {
	out := f.Entries()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// countVariants builds the variant frequency table of a set of cases
func countVariants(cases []AnnotatedCase) *FrequencyTable {
	f := NewFrequencyTable()
	for _, c := range cases {
		f.Add(VariantKey(activitiesOf(c)))
	}
	return f
}

// CommonPaths ranks the top n variants
func CommonPaths(table *FrequencyTable, n int) []CommonPath {
	top := table.Top(n)
	out := make([]CommonPath, len(top))
	for i, e := range top {
		out[i] = CommonPath{Path: e.Key, Count: e.Count}
	}
	return out
}

func activitiesOf(c AnnotatedCase) []string {
	acts := make([]string, len(c.Steps))
	for i, s := range c.Steps {
		acts[i] = s.Activity
	}
	return acts
}
