package eval

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/rankfuse/internal/domain/rank"
	"github.com/kailas-cloud/rankfuse/internal/metrics"
	"github.com/kailas-cloud/rankfuse/internal/usecase/ranking"
)

// DefaultWorkers bounds concurrent query evaluation.
const DefaultWorkers = 4

// Verdict is the outcome for one evaluated query. Failed queries carry Err
// and contribute nothing to the aggregate metrics.
type Verdict struct {
	Query          string
	Model          string
	Mode           string
	Hit            bool    // top-ranked result is relevant
	ReciprocalRank float64 // 1/rank of the first relevant result, 0 if none
	Top            []rank.Result
	Err            error
}

// Metrics is the aggregate evaluation summary.
type Metrics struct {
	PrecisionAt1 float64
	MRR          float64
	Evaluated    int
	Failed       int
	Duration     time.Duration
}

// Harness evaluates a labeled query set against a ranking pipeline.
type Harness struct {
	ranker  Ranker
	workers int
	topN    int
	logger  *zap.Logger
}

// New creates an evaluation harness. workers <= 0 falls back to
// DefaultWorkers; topN caps the per-query results kept in verdicts (0 = 10).
func New(ranker Ranker, workers, topN int, logger *zap.Logger) *Harness {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if topN <= 0 {
		topN = 10
	}
	return &Harness{ranker: ranker, workers: workers, topN: topN, logger: logger}
}

// Run evaluates every query in the spec and aggregates P@1 and MRR by
// arithmetic mean over succeeded queries. Queries run concurrently but
// share no mutable state: each worker writes only its own verdict index,
// and the aggregate is folded afterwards in specification order.
func (h *Harness) Run(ctx context.Context, spec Spec, opts ranking.Options) (Metrics, []Verdict, error) {
	start := time.Now()
	verdicts := make([]Verdict, len(spec.Queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.workers)

	for i, q := range spec.Queries {
		g.Go(func() error {
			verdicts[i] = h.evaluate(gctx, spec, q, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Metrics{}, nil, fmt.Errorf("evaluate queries: %w", err)
	}

	var m Metrics
	var sumP1, sumRR float64
	for _, v := range verdicts {
		if v.Err != nil {
			m.Failed++
			metrics.EvalQueriesTotal.WithLabelValues("failed").Inc()
			h.logger.Warn("Query evaluation failed",
				zap.String("query", v.Query),
				zap.Error(v.Err),
			)
			continue
		}
		m.Evaluated++
		metrics.EvalQueriesTotal.WithLabelValues("succeeded").Inc()
		if v.Hit {
			sumP1++
		}
		sumRR += v.ReciprocalRank
	}

	if m.Evaluated > 0 {
		m.PrecisionAt1 = sumP1 / float64(m.Evaluated)
		m.MRR = sumRR / float64(m.Evaluated)
	}
	m.Duration = time.Since(start)

	h.logger.Info("Evaluation complete",
		zap.Int("evaluated", m.Evaluated),
		zap.Int("failed", m.Failed),
		zap.Float64("p_at_1", m.PrecisionAt1),
		zap.Float64("mrr", m.MRR),
		zap.Duration("duration", m.Duration),
	)

	return m, verdicts, nil
}

// evaluate runs one query through the pipeline and scores the ranking
// against its relevant set.
func (h *Harness) evaluate(ctx context.Context, spec Spec, q QuerySpec, opts ranking.Options) Verdict {
	v := Verdict{Query: q.Query}

	queryOpts := opts
	if queryOpts.CorpusTag == "" {
		queryOpts.CorpusTag = q.Corpus
	}

	res, err := h.ranker.Rank(ctx, q.Query, spec.CandidatesFor(q), queryOpts)
	if err != nil {
		v.Err = err
		return v
	}
	v.Model = string(res.Model)
	v.Mode = string(res.Mode)

	relevant := make(map[string]bool, len(q.Relevant))
	for _, id := range q.Relevant {
		relevant[id] = true
	}

	for _, r := range res.Results {
		if !relevant[r.ID()] {
			continue
		}
		if r.Rank() == 1 {
			v.Hit = true
		}
		v.ReciprocalRank = 1 / float64(r.Rank())
		break
	}

	top := res.Results
	if len(top) > h.topN {
		top = top[:h.topN]
	}
	v.Top = top
	return v
}
