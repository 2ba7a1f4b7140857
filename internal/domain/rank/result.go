// Package rank holds ranked-result value objects shared by all scorers.
package rank

import "sort"

// Result is a single ranked hit. Rank is 1-based and assigned after
// the deterministic sort; results are never mutated after creation.
type Result struct {
	id    string
	score float64
	rank  int
	flag  string
}

// New creates a ranked result.
func New(id string, score float64, rank int) Result {
	return Result{id: id, score: score, rank: rank}
}

// NewFlagged creates a zero-score result flagged with a containment reason.
func NewFlagged(id, flag string) Result {
	return Result{id: id, flag: flag}
}

// ID returns the document identifier.
func (r Result) ID() string { return r.id }

// Score returns the relevance score.
func (r Result) Score() float64 { return r.score }

// Rank returns the 1-based position in the ranking.
func (r Result) Rank() int { return r.rank }

// Flag returns the containment reason for score-0 results, empty otherwise.
func (r Result) Flag() string { return r.flag }

// WithRank returns a copy positioned at the given 1-based rank.
func (r Result) WithRank(rank int) Result {
	r.rank = rank
	return r
}

// Sort orders results by score descending, ties broken by ascending id,
// then assigns 1-based ranks. Every observable ordering goes through this
// sort; no ranking may depend on map iteration order.
func Sort(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].id < results[j].id
	})
	for i := range results {
		results[i].rank = i + 1
	}
}
