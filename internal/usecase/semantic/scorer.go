// Package semantic scores candidates against a query by dense vector
// similarity: cosine for pooled vectors, MaxSim for per-token vectors.
package semantic

import (
	"context"
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/rankfuse/internal/domain"
	"github.com/kailas-cloud/rankfuse/internal/domain/rank"
)

// DefaultWorkers bounds parallel candidate scoring within one query.
const DefaultWorkers = 8

// Scorer ranks candidates by dense similarity.
type Scorer struct {
	workers int
}

// New creates a semantic scorer. workers <= 0 falls back to DefaultWorkers.
func New(workers int) *Scorer {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Scorer{workers: workers}
}

// Score computes the similarity between two representations of the same kind.
// Pooled vectors use cosine similarity; per-token vectors use MaxSim.
func (s *Scorer) Score(query, candidate domain.Representation) (float64, error) {
	if query.IsEmpty() || candidate.IsEmpty() {
		return 0, domain.ErrEmptyRepresentation
	}
	if query.IsMulti() != candidate.IsMulti() {
		// Mixed kinds mean the two sides came from different models.
		return 0, domain.NewDimensionError(query.Tokens(), candidate.Tokens())
	}
	if query.IsMulti() {
		return maxSim(query.Vectors(), candidate.Vectors())
	}
	return cosine(query.Vector(), candidate.Vector())
}

// Rank scores every candidate against the query and returns the ranking
// sorted by score descending, ties broken by ascending id. Candidates with
// incompatible or empty representations are contained as flagged score-0
// results rather than failing the query.
//
// Scoring is parallel across candidates; each worker writes only its own
// index, so the pre-sort sequence is independent of scheduling.
func (s *Scorer) Rank(
	ctx context.Context, query domain.Representation, docs []domain.Document,
) ([]rank.Result, error) {
	results := make([]rank.Result, len(docs))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, doc := range docs {
		g.Go(func() error {
			score, err := s.Score(query, doc.Representation())
			if err != nil {
				if errors.Is(err, domain.ErrDimensionMismatch) ||
					errors.Is(err, domain.ErrEmptyRepresentation) {
					results[i] = rank.NewFlagged(doc.ID(), err.Error())
					return nil
				}
				return fmt.Errorf("score candidate %s: %w", doc.ID(), err)
			}
			results[i] = rank.New(doc.ID(), score, 0)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	rank.Sort(results)
	return results, nil
}

// cosine computes cosine similarity between two equal-length vectors.
// A zero-norm side yields 0.
func cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, domain.NewDimensionError(len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// maxSim sums, per query token, the maximum cosine similarity to any
// candidate token. Rewards candidates matching every query token, not
// just an average match.
func maxSim(query, candidate [][]float32) (float64, error) {
	if len(query) == 0 || len(candidate) == 0 {
		return 0, domain.ErrEmptyRepresentation
	}

	var total float64
	for _, q := range query {
		best := math.Inf(-1)
		for _, c := range candidate {
			sim, err := cosine(q, c)
			if err != nil {
				return 0, err
			}
			if sim > best {
				best = sim
			}
		}
		total += best
	}
	return total, nil
}
