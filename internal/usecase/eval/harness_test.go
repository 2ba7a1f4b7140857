package eval

import (
	"context"
	"errors"
	"math"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/rankfuse/internal/domain"
	"github.com/kailas-cloud/rankfuse/internal/usecase/ranking"
)

const epsilon = 1e-9

func TestRun_AggregateMetrics(t *testing.T) {
	// Query 1: top result relevant (P@1 contribution 1, RR 1).
	// Query 2: relevant result at rank 3 (P@1 contribution 0, RR 1/3).
	ranker := &mockRanker{
		rankFn: func(_ context.Context, query string, _ []domain.Document, _ ranking.Options) (ranking.Ranking, error) {
			if query == "first" {
				return ranking.Ranking{Results: ranked("d1", "d2", "d3")}, nil
			}
			return ranking.Ranking{Results: ranked("d1", "d2", "d3")}, nil
		},
	}
	h := newTestHarness(t, ranker)

	m, verdicts, err := h.Run(context.Background(), twoQuerySpec(), ranking.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if m.Evaluated != 2 || m.Failed != 0 {
		t.Fatalf("expected 2 evaluated / 0 failed, got %d / %d", m.Evaluated, m.Failed)
	}
	if math.Abs(m.PrecisionAt1-0.5) > epsilon {
		t.Errorf("expected P@1 0.5, got %f", m.PrecisionAt1)
	}
	want := (1.0 + 1.0/3.0) / 2.0
	if math.Abs(m.MRR-want) > epsilon {
		t.Errorf("expected MRR %f, got %f", want, m.MRR)
	}

	if !verdicts[0].Hit || verdicts[0].ReciprocalRank != 1 {
		t.Errorf("query 1: expected hit with RR 1, got %+v", verdicts[0])
	}
	if verdicts[1].Hit || math.Abs(verdicts[1].ReciprocalRank-1.0/3.0) > epsilon {
		t.Errorf("query 2: expected miss with RR 1/3, got %+v", verdicts[1])
	}
}

func TestRun_NoRelevantFound(t *testing.T) {
	ranker := &mockRanker{
		rankFn: func(_ context.Context, _ string, _ []domain.Document, _ ranking.Options) (ranking.Ranking, error) {
			return ranking.Ranking{Results: ranked("d2")}, nil
		},
	}
	h := newTestHarness(t, ranker)

	spec := twoQuerySpec()
	spec.Queries = spec.Queries[:1] // relevant is d1, never returned

	m, verdicts, err := h.Run(context.Background(), spec, ranking.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.PrecisionAt1 != 0 || m.MRR != 0 {
		t.Errorf("expected zero metrics, got P@1 %f MRR %f", m.PrecisionAt1, m.MRR)
	}
	if verdicts[0].ReciprocalRank != 0 {
		t.Errorf("expected RR 0, got %f", verdicts[0].ReciprocalRank)
	}
}

func TestRun_FailedQueryReportedNotAveraged(t *testing.T) {
	embErr := errors.New("provider down")
	ranker := &mockRanker{
		rankFn: func(_ context.Context, query string, _ []domain.Document, _ ranking.Options) (ranking.Ranking, error) {
			if query == "third" {
				return ranking.Ranking{}, embErr
			}
			return ranking.Ranking{Results: ranked("d1")}, nil
		},
	}
	h := newTestHarness(t, ranker)

	m, verdicts, err := h.Run(context.Background(), twoQuerySpec(), ranking.Options{})
	if err != nil {
		t.Fatalf("run must survive per-query failures: %v", err)
	}

	if m.Evaluated != 1 || m.Failed != 1 {
		t.Fatalf("expected 1 evaluated / 1 failed, got %d / %d", m.Evaluated, m.Failed)
	}
	// The failed query must not drag the aggregate down as a zero.
	if m.PrecisionAt1 != 1 || m.MRR != 1 {
		t.Errorf("expected P@1 1 and MRR 1 over succeeded queries, got %f / %f", m.PrecisionAt1, m.MRR)
	}
	if verdicts[1].Err == nil || !errors.Is(verdicts[1].Err, embErr) {
		t.Errorf("expected verdict to carry the failure, got %v", verdicts[1].Err)
	}
}

func TestRun_QueryCorpusTagPassedThrough(t *testing.T) {
	var gotTag string
	ranker := &mockRanker{
		rankFn: func(_ context.Context, _ string, _ []domain.Document, opts ranking.Options) (ranking.Ranking, error) {
			gotTag = opts.CorpusTag
			return ranking.Ranking{Results: ranked("d1")}, nil
		},
	}
	h := newTestHarness(t, ranker)

	spec := twoQuerySpec()
	spec.Queries = []QuerySpec{{Query: "first", Relevant: []string{"d1"}, Corpus: "code"}}

	if _, _, err := h.Run(context.Background(), spec, ranking.Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotTag != "code" {
		t.Errorf("expected corpus tag %q, got %q", "code", gotTag)
	}
}

func TestRun_IndependentQueriesDeterministicAggregate(t *testing.T) {
	ranker := &mockRanker{
		rankFn: func(_ context.Context, query string, _ []domain.Document, _ ranking.Options) (ranking.Ranking, error) {
			if query == "first" {
				return ranking.Ranking{Results: ranked("d1", "d3")}, nil
			}
			return ranking.Ranking{Results: ranked("d2", "d3")}, nil
		},
	}
	h := New(ranker, 8, 10, zap.NewNop())

	first, _, err := h.Run(context.Background(), twoQuerySpec(), ranking.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for run := 0; run < 50; run++ {
		m, verdicts, err := h.Run(context.Background(), twoQuerySpec(), ranking.Options{})
		if err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
		if m.PrecisionAt1 != first.PrecisionAt1 || m.MRR != first.MRR {
			t.Fatalf("run %d: metrics diverge", run)
		}
		if verdicts[0].Query != "first" || verdicts[1].Query != "third" {
			t.Fatalf("run %d: verdict order diverges", run)
		}
	}
}
