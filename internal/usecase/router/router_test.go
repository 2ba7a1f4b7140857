package router

import (
	"testing"

	"github.com/kailas-cloud/rankfuse/internal/domain"
	"github.com/kailas-cloud/rankfuse/internal/domain/mode"
)

const goSample = `func fuse(a, b []Result) []Result {
	merged := make(map[string]float64)
	for _, r := range a {
		merged[r.ID] += r.Score
	}
	return sortByScore(merged)
}`

const proseSample = `Reciprocal rank fusion is a simple method for combining
several ranked lists. It needs no score calibration because it looks only
at positions, which makes it robust across heterogeneous retrieval systems.`

const russianSample = `Слияние ранжированных списков выполняется по позициям,
а не по исходным оценкам, поэтому калибровка оценок не требуется.`

func TestClassify(t *testing.T) {
	c := NewHeuristicClassifier()

	cases := []struct {
		name   string
		sample string
		want   Class
	}{
		{"go code", goSample, ClassCode},
		{"english prose", proseSample, ClassProse},
		{"russian prose", russianSample, ClassMultilingual},
		{"empty", "", ClassUnknown},
		{"punctuation only", "?!...", ClassUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := c.Classify(tc.sample); got != tc.want {
				t.Errorf("Classify(%s) = %s, want %s", tc.name, got, tc.want)
			}
		})
	}
}

func TestSelect_CodeRoutesToCodeModel(t *testing.T) {
	r := New(nil, nil)

	d := r.Select("", goSample)
	if d.Model != domain.ModelCode {
		t.Errorf("expected code model, got %s", d.Model)
	}
	if d.Mode != mode.Hybrid {
		t.Errorf("expected hybrid mode, got %s", d.Mode)
	}
}

func TestSelect_ProseNeverGetsCodeModel(t *testing.T) {
	// The failure mode is asymmetric: the code model on prose is a
	// near-total failure, so no non-code classification may reach it.
	r := New(nil, nil)

	samples := []string{proseSample, russianSample, "", "short", "a b c d e"}
	for _, sample := range samples {
		if d := r.Select("", sample); d.Model == domain.ModelCode {
			t.Errorf("sample %q routed to the code model", sample)
		}
	}
}

func TestSelect_CorpusTagWins(t *testing.T) {
	r := New(nil, nil)

	// Tag names a known class: the sample text is not consulted.
	d := r.Select("code", proseSample)
	if d.Model != domain.ModelCode {
		t.Errorf("expected code model from tag, got %s", d.Model)
	}

	// Tag naming no known class falls through to classification.
	d = r.Select("internal-wiki", proseSample)
	if d.Model != domain.ModelGeneral {
		t.Errorf("expected general model, got %s", d.Model)
	}
}

func TestSelect_UnknownDefaultsToSemanticGeneral(t *testing.T) {
	r := New(nil, nil)

	d := r.Select("", "")
	if d.Model != domain.ModelGeneral {
		t.Errorf("expected general model, got %s", d.Model)
	}
	if d.Mode != mode.Semantic {
		t.Errorf("expected semantic mode, got %s", d.Mode)
	}
}

func TestSelect_CustomTableIsAdditive(t *testing.T) {
	table := DefaultTable()
	table[Class("legal")] = Decision{Model: domain.ModelGeneral, Mode: mode.Keyword}

	r := New(table, nil)
	d := r.Select("legal", "")
	if d.Mode != mode.Keyword {
		t.Errorf("expected keyword mode from custom entry, got %s", d.Mode)
	}
}

type stubClassifier struct{ class Class }

func (s *stubClassifier) Classify(string) Class { return s.class }

func TestSelect_ClassifierIsReplaceable(t *testing.T) {
	r := New(nil, &stubClassifier{class: ClassMultilingual})

	d := r.Select("", "anything at all")
	if d.Mode != mode.Semantic || d.Model != domain.ModelGeneral {
		t.Errorf("unexpected decision: %+v", d)
	}
}
