package ranking

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/rankfuse/internal/domain"
	"github.com/kailas-cloud/rankfuse/internal/usecase/fusion"
	"github.com/kailas-cloud/rankfuse/internal/usecase/keyword"
	"github.com/kailas-cloud/rankfuse/internal/usecase/router"
	"github.com/kailas-cloud/rankfuse/internal/usecase/semantic"
)

// mockEmbedder deterministically maps texts to 2-dimensional vectors:
// texts mentioning "fusion" point along x, everything else along y.
type mockEmbedder struct {
	err        error
	embedCalls int
	multi      bool
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.embedCalls++
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	vec := vectorFor(text)
	if m.multi {
		return domain.EmbeddingResult{
			Representation: domain.MultiVector([][]float32{vec}),
			TotalTokens:    1,
		}, nil
	}
	return domain.EmbeddingResult{
		Representation: domain.SingleVector(vec),
		TotalTokens:    1,
	}, nil
}

func vectorFor(text string) []float32 {
	if strings.Contains(strings.ToLower(text), "fusion") {
		return []float32{1, 0}
	}
	return []float32{0, 1}
}

// stubSelector returns a fixed decision and records the sample it saw.
type stubSelector struct {
	decision router.Decision
	tag      string
	sample   string
	calls    int
}

func (s *stubSelector) Select(corpusTag, sample string) router.Decision {
	s.calls++
	s.tag = corpusTag
	s.sample = sample
	return s.decision
}

func newTestService(t *testing.T, general, code domain.Embedder, sel Selector) *Service {
	t.Helper()
	embedders := map[domain.ModelID]domain.Embedder{}
	if general != nil {
		embedders[domain.ModelGeneral] = general
	}
	if code != nil {
		embedders[domain.ModelCode] = code
	}
	return New(
		embedders,
		semantic.New(2),
		keyword.New(0, 0),
		fusion.New(0),
		sel,
		zap.NewNop(),
	)
}

func testDocs() []domain.Document {
	return []domain.Document{
		domain.NewDocument("fusion-doc", "reciprocal rank fusion merges rankings"),
		domain.NewDocument("other-doc", "weather report for tuesday"),
	}
}
