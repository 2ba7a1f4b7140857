// Package rankfuse is an embeddable hybrid relevance-ranking engine:
// dense semantic scoring, BM25 keyword scoring, and deterministic
// reciprocal rank fusion over a per-query candidate set.
package rankfuse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/rankfuse/internal/db"
	dbmemory "github.com/kailas-cloud/rankfuse/internal/db/memory"
	dbredis "github.com/kailas-cloud/rankfuse/internal/db/redis"
	"github.com/kailas-cloud/rankfuse/internal/domain"
	"github.com/kailas-cloud/rankfuse/internal/domain/mode"
	"github.com/kailas-cloud/rankfuse/internal/domain/rank"
	"github.com/kailas-cloud/rankfuse/internal/metrics"
	"github.com/kailas-cloud/rankfuse/internal/repository/embcache"
	"github.com/kailas-cloud/rankfuse/internal/transport/colbert"
	"github.com/kailas-cloud/rankfuse/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/rankfuse/internal/usecase/embedding"
	evaluc "github.com/kailas-cloud/rankfuse/internal/usecase/eval"
	"github.com/kailas-cloud/rankfuse/internal/usecase/fusion"
	"github.com/kailas-cloud/rankfuse/internal/usecase/keyword"
	rankinguc "github.com/kailas-cloud/rankfuse/internal/usecase/ranking"
	"github.com/kailas-cloud/rankfuse/internal/usecase/router"
	"github.com/kailas-cloud/rankfuse/internal/usecase/semantic"
)

const defaultReadinessTimeout = 10 * time.Second

// Embedding is one text's vector representation as produced by a custom
// Embedder. Set Vectors for per-token (multi-vector) models, Vector
// otherwise.
type Embedding struct {
	Vector       []float32
	Vectors      [][]float32
	PromptTokens int
	TotalTokens  int
}

// Embedder produces embeddings for texts. Implementations registered via
// WithModel plug custom or local models into the engine.
type Embedder interface {
	Embed(ctx context.Context, text string) (Embedding, error)
}

// Document is one ranking candidate.
type Document struct {
	ID     string
	Text   string
	Corpus string
}

// Result is one scored candidate.
type Result struct {
	ID    string
	Score float64
	Rank  int
	Flag  string
}

// Ranking is the outcome for one query.
type Ranking struct {
	Results []Result
	Model   string
	Mode    string
}

// RankOptions select the model and mode for one query. Empty fields are
// resolved by the router when AutoRoute is set and default to the general
// model in hybrid mode otherwise.
type RankOptions struct {
	Model     string
	Mode      string
	AutoRoute bool
	Corpus    string
	TopK      int
}

// EvalMetrics is the aggregate evaluation summary.
type EvalMetrics struct {
	PrecisionAt1 float64
	MRR          float64
	Evaluated    int
	Failed       int
	Duration     time.Duration
}

// EvalVerdict is the outcome for one evaluated query.
type EvalVerdict struct {
	Query          string
	Model          string
	Mode           string
	Hit            bool
	ReciprocalRank float64
	Top            []Result
	Err            error
}

// Engine is the rankfuse entry point.
type Engine struct {
	store   db.Store
	ranking *rankinguc.Service
	harness *evaluc.Harness
	logger  *zap.Logger
}

// New creates an Engine. At least one model must be registered; the
// provided context bounds the cache readiness check.
func New(ctx context.Context, opts ...Option) (*Engine, error) {
	cfg := &engineConfig{
		models: make(map[string]modelSpec),
		routes: make(map[string]Route),
		rrfK:   fusion.DefaultK,
		bm25K1: keyword.DefaultK1,
		bm25B:  keyword.DefaultB,
		logger: zap.NewNop(),
	}
	for _, o := range opts {
		o(cfg)
	}

	if len(cfg.models) == 0 {
		return nil, errors.New("rankfuse: at least one model required (use WithOpenAIModel, WithColBERTModel, or WithModel)")
	}

	store, err := createStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	embedders, err := wireEmbedders(cfg, store)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, err
	}

	table, err := routingTable(cfg.routes)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, err
	}

	ranking := rankinguc.New(
		embedders,
		semantic.New(cfg.workers),
		keyword.New(cfg.bm25K1, cfg.bm25B),
		fusion.New(cfg.rrfK),
		router.New(table, nil),
		cfg.logger,
	)

	return &Engine{
		store:   store,
		ranking: ranking,
		harness: evaluc.New(ranking, cfg.evalWorkers, cfg.evalTopN, cfg.logger),
		logger:  cfg.logger,
	}, nil
}

func createStore(ctx context.Context, cfg *engineConfig) (db.Store, error) {
	switch cfg.cacheDriver {
	case "":
		return nil, nil
	case "memory":
		size := cfg.cacheSize
		if size <= 0 {
			size = dbmemory.DefaultSize
		}
		s, err := dbmemory.NewStore(size)
		if err != nil {
			return nil, fmt.Errorf("rankfuse: create memory store: %w", err)
		}
		return s, nil
	case "redis":
		s, err := dbredis.NewStore(dbredis.Config{
			Addrs:    cfg.redisAddrs,
			Username: cfg.redisUser,
			Password: cfg.redisPass,
			DB:       cfg.redisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("rankfuse: create redis store: %w", err)
		}
		if err := s.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			s.Close()
			return nil, fmt.Errorf("rankfuse: cache not ready: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("rankfuse: unknown cache driver %q", cfg.cacheDriver)
	}
}

func wireEmbedders(cfg *engineConfig, store db.Store) (map[domain.ModelID]domain.Embedder, error) {
	embedders := make(map[domain.ModelID]domain.Embedder, len(cfg.models))

	for name, spec := range cfg.models {
		id := domain.ModelID(name)
		if !id.IsValid() {
			return nil, fmt.Errorf("rankfuse: unknown model name %q", name)
		}

		var base domain.Embedder
		switch spec.provider {
		case "openai":
			base = openai.NewEmbedder(&openai.Config{
				APIKey:     spec.endpoint.APIKey,
				BaseURL:    spec.endpoint.BaseURL,
				Model:      spec.endpoint.Model,
				Dimensions: spec.endpoint.Dimensions,
				Provider:   spec.provider,
				Logger:     cfg.logger,
			})
		case "colbert":
			base = colbert.NewEmbedder(&colbert.Config{
				APIKey:   spec.endpoint.APIKey,
				BaseURL:  spec.endpoint.BaseURL,
				Model:    spec.endpoint.Model,
				Provider: spec.provider,
				Logger:   cfg.logger,
			})
		case "custom":
			base = &embedderAdapter{inner: spec.custom}
		default:
			return nil, fmt.Errorf("rankfuse: unknown provider %q for model %q", spec.provider, name)
		}

		var e domain.Embedder = embeddinguc.NewInstrumentedEmbedder(
			base, spec.provider, spec.endpoint.Model, cfg.logger,
		)
		if store != nil {
			e = embcache.New(e, id, store, metrics.EmbeddingCacheTotal, cfg.logger)
		}
		embedders[id] = e
	}

	return embedders, nil
}

func routingTable(routes map[string]Route) (router.Table, error) {
	table := router.DefaultTable()
	for class, route := range routes {
		cl := router.Class(class)
		base, ok := table[cl]
		if !ok {
			return nil, fmt.Errorf("rankfuse: unknown content class %q", class)
		}
		if route.Model != "" {
			id := domain.ModelID(route.Model)
			if !id.IsValid() {
				return nil, fmt.Errorf("rankfuse: unknown model %q for class %q", route.Model, class)
			}
			base.Model = id
		}
		if route.Mode != "" {
			md := mode.Mode(route.Mode)
			if !md.IsValid() {
				return nil, fmt.Errorf("rankfuse: unknown mode %q for class %q", route.Mode, class)
			}
			base.Mode = md
		}
		table[cl] = base
	}
	return table, nil
}

// Close releases the cache store, if any.
func (e *Engine) Close() {
	if e.store != nil {
		e.store.Close()
	}
}

// Ping checks cache store connectivity. Returns nil when caching is
// disabled.
func (e *Engine) Ping(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	if err := e.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Rank scores the candidate documents against the query and returns one
// ranked list.
func (e *Engine) Rank(
	ctx context.Context, query string, docs []Document, opts RankOptions,
) (Ranking, error) {
	rankOpts, err := rankingOptions(opts)
	if err != nil {
		return Ranking{}, err
	}

	candidates := make([]domain.Document, len(docs))
	for i, d := range docs {
		candidates[i] = domain.NewDocument(d.ID, d.Text).WithCorpus(d.Corpus)
	}

	out, err := e.ranking.Rank(ctx, query, candidates, rankOpts)
	if err != nil {
		return Ranking{}, err
	}

	return Ranking{
		Results: toResults(out.Results),
		Model:   string(out.Model),
		Mode:    string(out.Mode),
	}, nil
}

// Evaluate runs the labeled query set from a YAML or JSON specification
// file and returns aggregate metrics plus per-query verdicts.
func (e *Engine) Evaluate(
	ctx context.Context, specPath string, opts RankOptions,
) (EvalMetrics, []EvalVerdict, error) {
	spec, err := evaluc.Load(specPath)
	if err != nil {
		return EvalMetrics{}, nil, err
	}

	rankOpts, err := rankingOptions(opts)
	if err != nil {
		return EvalMetrics{}, nil, err
	}

	m, verdicts, err := e.harness.Run(ctx, spec, rankOpts)
	if err != nil {
		return EvalMetrics{}, nil, err
	}

	out := make([]EvalVerdict, len(verdicts))
	for i, v := range verdicts {
		out[i] = EvalVerdict{
			Query:          v.Query,
			Model:          v.Model,
			Mode:           v.Mode,
			Hit:            v.Hit,
			ReciprocalRank: v.ReciprocalRank,
			Top:            toResults(v.Top),
			Err:            v.Err,
		}
	}

	return EvalMetrics{
		PrecisionAt1: m.PrecisionAt1,
		MRR:          m.MRR,
		Evaluated:    m.Evaluated,
		Failed:       m.Failed,
		Duration:     m.Duration,
	}, out, nil
}

func rankingOptions(opts RankOptions) (rankinguc.Options, error) {
	out := rankinguc.Options{
		AutoRoute: opts.AutoRoute,
		CorpusTag: opts.Corpus,
		TopK:      opts.TopK,
	}
	if opts.Model != "" {
		id := domain.ModelID(opts.Model)
		if !id.IsValid() {
			return rankinguc.Options{}, fmt.Errorf("rankfuse: %w: %s", domain.ErrUnknownModel, opts.Model)
		}
		out.Model = id
	}
	if opts.Mode != "" {
		md := mode.Mode(opts.Mode)
		if !md.IsValid() {
			return rankinguc.Options{}, fmt.Errorf("rankfuse: unknown scoring mode %q", opts.Mode)
		}
		out.Mode = md
	}
	return out, nil
}

func toResults(results []rank.Result) []Result {
	out := make([]Result, len(results))
	for i, r := range results {
		out[i] = Result{ID: r.ID(), Score: r.Score(), Rank: r.Rank(), Flag: r.Flag()}
	}
	return out
}

// embedderAdapter wraps a public Embedder to satisfy internal
// domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	var repr domain.Representation
	if r.Vectors != nil {
		repr = domain.MultiVector(r.Vectors)
	} else {
		repr = domain.SingleVector(r.Vector)
	}
	return domain.EmbeddingResult{
		Representation: repr,
		PromptTokens:   r.PromptTokens,
		TotalTokens:    r.TotalTokens,
	}, nil
}
