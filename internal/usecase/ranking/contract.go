package ranking

import (
	"context"

	"github.com/kailas-cloud/rankfuse/internal/domain"
	"github.com/kailas-cloud/rankfuse/internal/domain/rank"
	"github.com/kailas-cloud/rankfuse/internal/usecase/router"
)

// SemanticRanker ranks candidates by dense similarity to the query representation.
type SemanticRanker interface {
	Rank(ctx context.Context, query domain.Representation, docs []domain.Document) ([]rank.Result, error)
}

// KeywordRanker ranks candidates by sparse lexical relevance to the query text.
type KeywordRanker interface {
	Rank(ctx context.Context, query string, docs []domain.Document) ([]rank.Result, error)
}

// Fuser merges two rankings into one.
type Fuser interface {
	Fuse(a, b []rank.Result) []rank.Result
}

// Selector resolves a model and mode from a corpus tag or text sample.
type Selector interface {
	Select(corpusTag, sample string) router.Decision
}
