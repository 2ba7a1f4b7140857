package eval

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/rankfuse/internal/domain"
	"github.com/kailas-cloud/rankfuse/internal/domain/rank"
	"github.com/kailas-cloud/rankfuse/internal/usecase/ranking"
)

// mockRanker implements the consumer interface for tests.
type mockRanker struct {
	rankFn func(ctx context.Context, query string, docs []domain.Document, opts ranking.Options) (ranking.Ranking, error)
}

func (m *mockRanker) Rank(
	ctx context.Context, query string, docs []domain.Document, opts ranking.Options,
) (ranking.Ranking, error) {
	if m.rankFn != nil {
		return m.rankFn(ctx, query, docs, opts)
	}
	return ranking.Ranking{}, nil
}

func newTestHarness(t *testing.T, ranker Ranker) *Harness {
	t.Helper()
	return New(ranker, 2, 10, zap.NewNop())
}

// ranked builds a rank-ordered result list from ids.
func ranked(ids ...string) []rank.Result {
	results := make([]rank.Result, len(ids))
	for i, id := range ids {
		results[i] = rank.New(id, 1.0/float64(i+1), i+1)
	}
	return results
}

func twoQuerySpec() Spec {
	return Spec{
		Documents: []DocumentSpec{
			{ID: "d1", Text: "first document"},
			{ID: "d2", Text: "second document"},
			{ID: "d3", Text: "third document"},
		},
		Queries: []QuerySpec{
			{Query: "first", Relevant: []string{"d1"}},
			{Query: "third", Relevant: []string{"d3"}},
		},
	}
}
