// Package fusion merges two ranked lists into one via Reciprocal Rank
// Fusion. Output order is fully deterministic: fused scores collide often
// on small candidate sets (scores are sums of a few 1/(k+rank) terms),
// so every iteration feeding the final order runs over
// an explicitly sorted id sequence, never over map enumeration order.
package fusion

import (
	"sort"

	"github.com/kailas-cloud/rankfuse/internal/domain/rank"
)

// DefaultK is the RRF smoothing constant (standard value from Cormack et al. 2009).
const DefaultK = 60

// Engine fuses rankings with a configurable smoothing constant.
type Engine struct {
	k int
}

// New creates a fusion engine. k <= 0 falls back to DefaultK.
func New(k int) *Engine {
	if k <= 0 {
		k = DefaultK
	}
	return &Engine{k: k}
}

// K returns the smoothing constant in use.
func (e *Engine) K() int { return e.k }

// Fuse merges two rankings. Every document id appearing in at least one
// input gets fused score = 1/(k + rank_a) + 1/(k + rank_b); a side where
// the document is absent contributes 0. A document flagged on either side
// keeps score 0 and carries its flag through, so a containment reason set
// by one scorer survives fusion. Output is sorted by fused score
// descending, ties broken by ascending id.
func (e *Engine) Fuse(a, b []rank.Result) []rank.Result {
	scores := make(map[string]float64, len(a)+len(b))
	flags := make(map[string]string)
	for _, r := range a {
		if r.Flag() != "" {
			flags[r.ID()] = r.Flag()
			scores[r.ID()] = 0
			continue
		}
		scores[r.ID()] = 1.0 / float64(e.k+r.Rank())
	}
	for _, r := range b {
		if _, flagged := flags[r.ID()]; flagged {
			continue
		}
		if r.Flag() != "" {
			flags[r.ID()] = r.Flag()
			scores[r.ID()] = 0
			continue
		}
		scores[r.ID()] += 1.0 / float64(e.k+r.Rank())
	}

	// Canonical id order before anything observable is produced.
	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fused := make([]rank.Result, len(ids))
	for i, id := range ids {
		if flag, ok := flags[id]; ok {
			fused[i] = rank.NewFlagged(id, flag)
			continue
		}
		fused[i] = rank.New(id, scores[id], 0)
	}

	rank.Sort(fused)
	return fused
}
