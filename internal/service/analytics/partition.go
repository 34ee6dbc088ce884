package analytics

import (
	"context"
	"sync"
)

// partial holds the mergeable aggregates of one contiguous run of cases
type partial struct {
	variants   *FrequencyTable
	activities activityTable
	delays     *delayTable
	totals     *caseTotals
	tree       *PathTree
	violations []Violation
}

func newPartial() *partial {
	return &partial{
		variants:   NewFrequencyTable(),
		activities: activityTable{},
		delays:     newDelayTable(),
		totals:     newCaseTotals(),
		tree:       NewPathTree(),
		violations: make([]Violation, 0),
	}
}

func (p *partial) add(cases []AnnotatedCase, limits SLALimits) {
	for _, c := range cases {
		acts := activitiesOf(c)
		p.variants.Add(VariantKey(acts))
		p.tree.Insert(acts)
	}
	p.activities.add(cases)
	p.delays.add(cases)
	p.totals.add(cases)
	p.violations = append(p.violations, EvaluateSLA(cases, limits)...)
}

// merge folds other into p. Callers merge partitions in ascending partition
// order so first-seen order matches a sequential pass.
func (p *partial) merge(other *partial) {
	p.variants.Merge(other.variants)
	p.activities.merge(other.activities)
	p.delays.merge(other.delays)
	p.totals.merge(other.totals)
	p.tree.Merge(other.tree)
	p.violations = append(p.violations, other.violations...)
}

// partitionCases splits cases into at most n contiguous chunks of near equal
// size. Cases are never split across chunks.
func partitionCases(cases []AnnotatedCase, n int) [][]AnnotatedCase {
	if n < 1 {
		n = 1
	}
	if n > len(cases) {
		n = len(cases)
	}
	if n == 0 {
		return nil
	}
	chunks := make([][]AnnotatedCase, 0, n)
	size, rem := len(cases)/n, len(cases)%n
	start := 0
	for i := 0; i < n; i++ {
		end := start + size
		if i < rem {
			end++
		}
		chunks = append(chunks, cases[start:end])
		start = end
	}
	return chunks
}

// aggregate runs one goroutine per partition and merges the partials in
// partition order.
func aggregate(ctx context.Context, cases []AnnotatedCase, workers int, limits SLALimits) (*partial, error) {
	chunks := partitionCases(cases, workers)
	partials := make([]*partial, len(chunks))

	var wg sync.WaitGroup
	for i, chunk := range chunks {
		wg.Add(1)
		go func(i int, chunk []AnnotatedCase) {
			defer wg.Done()
			p := newPartial()
			if ctx.Err() == nil {
				p.add(chunk, limits)
			}
			partials[i] = p
		}(i, chunk)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := newPartial()
	for _, p := range partials {
		result.merge(p)
	}
	return result, nil
}
