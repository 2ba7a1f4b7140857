// Package ranking runs the full scoring pipeline for one query: model/mode
// resolution, embedding, semantic and keyword ranking, and fusion.
package ranking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/rankfuse/internal/domain"
	"github.com/kailas-cloud/rankfuse/internal/domain/mode"
	"github.com/kailas-cloud/rankfuse/internal/domain/rank"
	"github.com/kailas-cloud/rankfuse/internal/metrics"
)

// routeSampleLimit caps the text handed to the content classifier.
const routeSampleLimit = 2000

// Options select the model and mode for one query. Explicit fields are
// honored unconditionally; empty fields are resolved by the router when
// AutoRoute is set, and fall back to the general model in hybrid mode
// otherwise.
type Options struct {
	Model     domain.ModelID
	Mode      mode.Mode
	AutoRoute bool
	CorpusTag string
	TopK      int // 0 = unlimited
}

// Ranking is the outcome for one query: the ranked results and the
// model/mode that actually ran.
type Ranking struct {
	Results []rank.Result
	Model   domain.ModelID
	Mode    mode.Mode
}

// Service coordinates scorers, fusion, and routing for single queries.
type Service struct {
	embedders map[domain.ModelID]domain.Embedder
	semantic  SemanticRanker
	keyword   KeywordRanker
	fuser     Fuser
	router    Selector
	logger    *zap.Logger
}

// New creates a ranking service.
func New(
	embedders map[domain.ModelID]domain.Embedder,
	semantic SemanticRanker,
	keyword KeywordRanker,
	fuser Fuser,
	selector Selector,
	logger *zap.Logger,
) *Service {
	return &Service{
		embedders: embedders,
		semantic:  semantic,
		keyword:   keyword,
		fuser:     fuser,
		router:    selector,
		logger:    logger,
	}
}

// Rank scores the candidate set against the query and returns one ranked
// list. Candidate-level shape errors surface as flagged score-0 entries;
// embedding failures fail the whole query.
func (s *Service) Rank(
	ctx context.Context, query string, docs []domain.Document, opts Options,
) (Ranking, error) {
	start := time.Now()

	model, m := s.resolve(query, docs, opts)

	var results []rank.Result
	var err error

	switch m {
	case mode.Keyword:
		results, err = s.keyword.Rank(ctx, query, docs)
	case mode.Semantic:
		results, err = s.rankSemantic(ctx, model, query, docs)
	case mode.Hybrid:
		results, err = s.rankHybrid(ctx, model, query, docs)
	default:
		return Ranking{}, fmt.Errorf("unsupported scoring mode: %s", m)
	}
	if err != nil {
		metrics.RankingQueriesTotal.WithLabelValues(string(model), string(m), "error").Inc()
		return Ranking{}, err
	}

	if opts.TopK > 0 && len(results) > opts.TopK {
		results = results[:opts.TopK]
	}

	var flagged int
	for _, r := range results {
		if r.Flag() != "" {
			flagged++
		}
	}
	if flagged > 0 {
		metrics.RankingFlaggedCandidates.Add(float64(flagged))
	}

	metrics.RankingQueriesTotal.WithLabelValues(string(model), string(m), "success").Inc()
	metrics.RankingQueryDuration.WithLabelValues(string(model), string(m)).Observe(time.Since(start).Seconds())

	s.logger.Debug("Query ranked",
		zap.String("model", string(model)),
		zap.String("mode", string(m)),
		zap.Int("candidates", len(docs)),
		zap.Int("flagged", flagged),
		zap.Duration("duration", time.Since(start)),
	)

	return Ranking{Results: results, Model: model, Mode: m}, nil
}

// resolve fills in the model and mode for the query. Explicit options win;
// the router fills gaps when AutoRoute is set.
func (s *Service) resolve(query string, docs []domain.Document, opts Options) (domain.ModelID, mode.Mode) {
	model, m := opts.Model, opts.Mode
	if model != "" && m != "" {
		return model, m
	}

	if opts.AutoRoute && s.router != nil {
		d := s.router.Select(opts.CorpusTag, routeSample(query, docs))
		if model == "" {
			model = d.Model
		}
		if m == "" {
			m = d.Mode
		}
		return model, m
	}

	if model == "" {
		model = domain.ModelGeneral
	}
	if m == "" {
		m = mode.Hybrid
	}
	return model, m
}

func (s *Service) rankSemantic(
	ctx context.Context, model domain.ModelID, query string, docs []domain.Document,
) ([]rank.Result, error) {
	queryRepr, embedded, err := s.embed(ctx, model, query, docs)
	if err != nil {
		return nil, err
	}

	results, err := s.semantic.Rank(ctx, queryRepr, embedded)
	if err != nil {
		return nil, fmt.Errorf("semantic rank: %w", err)
	}
	return results, nil
}

// rankHybrid runs semantic and keyword rankings over the same candidate
// set independently, then fuses them. Both input sequences are produced by
// the deterministic per-scorer sort; fusion re-sorts ids canonically, so
// the fused order never depends on arrival order.
func (s *Service) rankHybrid(
	ctx context.Context, model domain.ModelID, query string, docs []domain.Document,
) ([]rank.Result, error) {
	semResults, err := s.rankSemantic(ctx, model, query, docs)
	if err != nil {
		return nil, err
	}

	kwResults, err := s.keyword.Rank(ctx, query, docs)
	if err != nil {
		return nil, fmt.Errorf("keyword rank: %w", err)
	}

	return s.fuser.Fuse(semResults, kwResults), nil
}

// embed produces the query representation and fills in any candidate
// representations missing from the supplied documents, using the model's
// batch path when the provider offers one.
func (s *Service) embed(
	ctx context.Context, model domain.ModelID, query string, docs []domain.Document,
) (domain.Representation, []domain.Document, error) {
	emb, ok := s.embedders[model]
	if !ok {
		return domain.Representation{}, nil, fmt.Errorf("%w: %s", domain.ErrUnknownModel, model)
	}

	queryRes, err := emb.Embed(ctx, query)
	if err != nil {
		return domain.Representation{}, nil, fmt.Errorf("embed query: %w", err)
	}

	var missing []int
	var texts []string
	for i, doc := range docs {
		if doc.Representation().IsEmpty() {
			missing = append(missing, i)
			texts = append(texts, doc.Text())
		}
	}
	if len(missing) == 0 {
		return queryRes.Representation, docs, nil
	}

	var batch domain.BatchEmbeddingResult
	if be, isBatch := emb.(domain.BatchEmbedder); isBatch {
		batch, err = be.BatchEmbed(ctx, texts)
	} else {
		batch, err = domain.BatchFallback(ctx, emb, texts)
	}
	if err != nil {
		return domain.Representation{}, nil, fmt.Errorf("embed candidates: %w", err)
	}
	if len(batch.Representations) != len(missing) {
		return domain.Representation{}, nil, fmt.Errorf(
			"%w: %d representations for %d texts", domain.ErrEmbeddingFailed,
			len(batch.Representations), len(missing),
		)
	}

	embedded := make([]domain.Document, len(docs))
	copy(embedded, docs)
	for j, i := range missing {
		embedded[i] = docs[i].WithRepresentation(batch.Representations[j])
	}
	return queryRes.Representation, embedded, nil
}

// routeSample builds the classifier input: the query plus leading
// candidate text, capped so classification stays cheap.
func routeSample(query string, docs []domain.Document) string {
	var b strings.Builder
	b.WriteString(query)
	for _, doc := range docs {
		if b.Len() >= routeSampleLimit {
			break
		}
		b.WriteString("\n")
		b.WriteString(doc.Text())
	}
	sample := b.String()
	if len(sample) > routeSampleLimit {
		sample = sample[:routeSampleLimit]
	}
	return sample
}
