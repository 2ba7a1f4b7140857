package eval

import (
	"context"

	"github.com/kailas-cloud/rankfuse/internal/domain"
	"github.com/kailas-cloud/rankfuse/internal/usecase/ranking"
)

// Ranker runs the full scoring pipeline for one query.
type Ranker interface {
	Rank(
		ctx context.Context, query string, docs []domain.Document, opts ranking.Options,
	) (ranking.Ranking, error)
}
