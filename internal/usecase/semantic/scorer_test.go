package semantic

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/kailas-cloud/rankfuse/internal/domain"
)

const epsilon = 1e-6

func TestScore_CosineSingleVector(t *testing.T) {
	s := New(0)

	score, err := s.Score(
		domain.SingleVector([]float32{1, 0}),
		domain.SingleVector([]float32{0.6, 0.8}),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(score-0.6) > epsilon {
		t.Errorf("expected 0.6, got %f", score)
	}
}

func TestScore_CosineDimensionMismatch(t *testing.T) {
	s := New(0)

	_, err := s.Score(
		domain.SingleVector([]float32{1, 0, 0}),
		domain.SingleVector([]float32{1, 0}),
	)
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}

	var dimErr *domain.DimensionError
	if !errors.As(err, &dimErr) {
		t.Fatal("expected *domain.DimensionError")
	}
	if dimErr.Query != 3 || dimErr.Candidate != 2 {
		t.Errorf("unexpected lengths: %d vs %d", dimErr.Query, dimErr.Candidate)
	}
}

func TestScore_MaxSimHandComputed(t *testing.T) {
	s := New(0)

	// Per query token, the best candidate-token cosine:
	// q1=[1,0]: max(1, 0.6, 0) = 1
	// q2=[0,1]: max(0, 0.8, 1) = 1
	query := domain.MultiVector([][]float32{{1, 0}, {0, 1}})
	cand := domain.MultiVector([][]float32{{1, 0}, {0.6, 0.8}, {0, 1}})

	score, err := s.Score(query, cand)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(score-2.0) > epsilon {
		t.Errorf("expected 2.0, got %f", score)
	}
}

func TestScore_MaxSimRewardsPerTokenCoverage(t *testing.T) {
	s := New(0)

	query := domain.MultiVector([][]float32{{1, 0}, {0, 1}})
	// Covers both query tokens weakly vs one token perfectly.
	covering := domain.MultiVector([][]float32{{0.8, 0.6}, {0.6, 0.8}})
	onesided := domain.MultiVector([][]float32{{1, 0}, {1, 0}})

	coveringScore, err := s.Score(query, covering)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	onesidedScore, err := s.Score(query, onesided)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if coveringScore <= onesidedScore {
		t.Errorf("coverage %f should beat one-sided match %f", coveringScore, onesidedScore)
	}
}

func TestScore_EmptyRepresentation(t *testing.T) {
	s := New(0)

	cases := []struct {
		name            string
		query, candidate domain.Representation
	}{
		{"empty query", domain.MultiVector(nil), domain.MultiVector([][]float32{{1}})},
		{"empty candidate", domain.MultiVector([][]float32{{1}}), domain.MultiVector([][]float32{})},
		{"both empty single", domain.SingleVector(nil), domain.SingleVector(nil)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Score(tc.query, tc.candidate)
			if !errors.Is(err, domain.ErrEmptyRepresentation) {
				t.Fatalf("expected ErrEmptyRepresentation, got %v", err)
			}
		})
	}
}

func TestScore_MixedKindsRejected(t *testing.T) {
	s := New(0)

	_, err := s.Score(
		domain.SingleVector([]float32{1, 0}),
		domain.MultiVector([][]float32{{1, 0}}),
	)
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestRank_SortedWithDeterministicTies(t *testing.T) {
	s := New(2)
	query := domain.SingleVector([]float32{1, 0})

	docs := []domain.Document{
		docWithVector("tie-b", []float32{0, 1}),
		docWithVector("top", []float32{1, 0}),
		docWithVector("tie-a", []float32{0, 1}),
	}

	results, err := s.Rank(context.Background(), query, docs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"top", "tie-a", "tie-b"}
	for i, id := range want {
		if results[i].ID() != id {
			t.Errorf("position %d: expected %s, got %s", i, id, results[i].ID())
		}
		if results[i].Rank() != i+1 {
			t.Errorf("position %d: expected rank %d, got %d", i, i+1, results[i].Rank())
		}
	}
}

func TestRank_ContainsShapeErrors(t *testing.T) {
	s := New(0)
	query := domain.SingleVector([]float32{1, 0})

	docs := []domain.Document{
		docWithVector("good", []float32{1, 0}),
		docWithVector("short", []float32{1}),
		domain.NewDocument("bare", "no representation"),
	}

	results, err := s.Rank(context.Background(), query, docs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	if results[0].ID() != "good" || results[0].Flag() != "" {
		t.Errorf("expected clean top result, got %s flag %q", results[0].ID(), results[0].Flag())
	}
	for _, r := range results[1:] {
		if r.Score() != 0 || r.Flag() == "" {
			t.Errorf("result %s: expected flagged score 0, got %f flag %q", r.ID(), r.Score(), r.Flag())
		}
	}
}

func TestRank_RepeatedRunsIdentical(t *testing.T) {
	s := New(4)
	query := domain.SingleVector([]float32{1, 1})

	docs := []domain.Document{
		docWithVector("c", []float32{1, 1}),
		docWithVector("a", []float32{1, 1}),
		docWithVector("b", []float32{1, 1}),
		docWithVector("d", []float32{1, 0}),
	}

	first, err := s.Rank(context.Background(), query, docs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for run := 0; run < 100; run++ {
		got, err := s.Rank(context.Background(), query, docs)
		if err != nil {
			t.Fatalf("run %d: unexpected error: %v", run, err)
		}
		for i := range first {
			if got[i].ID() != first[i].ID() || got[i].Rank() != first[i].Rank() {
				t.Fatalf("run %d diverges at %d: %s vs %s", run, i, got[i].ID(), first[i].ID())
			}
		}
	}
}

func docWithVector(id string, vec []float32) domain.Document {
	return domain.NewDocumentWithRepresentation(id, "text-"+id, domain.SingleVector(vec))
}
