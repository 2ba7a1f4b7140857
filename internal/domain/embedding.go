package domain

import (
	"context"
	"fmt"
)

// ModelID identifies an embedding model family.
type ModelID string

// Supported model families.
const (
	// ModelGeneral is the general-purpose multilingual/prose model.
	ModelGeneral ModelID = "general"
	// ModelCode is the code-specialized model.
	ModelCode ModelID = "code"
)

// IsValid checks if the model id is one of the supported values.
func (m ModelID) IsValid() bool {
	return m == ModelGeneral || m == ModelCode
}

// Embedder is the shared text vectorization contract between layers.
// A provider returns either a single pooled vector or one vector per token.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchEmbedder vectorizes multiple texts in a single call.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// HealthChecker verifies embedding provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Representation is the tagged vector variant produced by an embedder:
// a single pooled vector, or an ordered per-token vector sequence.
// Token order follows token order in the source text.
type Representation struct {
	single []float32
	multi  [][]float32
}

// SingleVector wraps one pooled vector.
func SingleVector(vec []float32) Representation {
	return Representation{single: vec}
}

// MultiVector wraps an ordered per-token vector sequence.
func MultiVector(vecs [][]float32) Representation {
	return Representation{multi: vecs}
}

// IsMulti reports whether the representation is per-token.
func (r Representation) IsMulti() bool { return r.multi != nil }

// Vector returns the pooled vector (nil for multi-vector representations).
func (r Representation) Vector() []float32 { return r.single }

// Vectors returns the per-token vectors (nil for single-vector representations).
func (r Representation) Vectors() [][]float32 { return r.multi }

// IsEmpty reports whether the representation carries no vector data.
func (r Representation) IsEmpty() bool {
	return len(r.single) == 0 && len(r.multi) == 0
}

// Tokens returns the number of token vectors (1 for a non-empty single vector).
func (r Representation) Tokens() int {
	if r.IsMulti() {
		return len(r.multi)
	}
	if len(r.single) > 0 {
		return 1
	}
	return 0
}

// EmbeddingResult carries the representation and token usage through the decorator chain.
type EmbeddingResult struct {
	Representation Representation
	PromptTokens   int
	TotalTokens    int
}

// BatchEmbeddingResult carries multiple representations and aggregate token usage.
type BatchEmbeddingResult struct {
	Representations []Representation
	PromptTokens    int
	TotalTokens     int
}

// BatchFallback embeds texts one by one for providers without native batch support.
func BatchFallback(ctx context.Context, e Embedder, texts []string) (BatchEmbeddingResult, error) {
	reprs := make([]Representation, len(texts))
	var totalPrompt, totalTokens int

	for i, text := range texts {
		res, err := e.Embed(ctx, text)
		if err != nil {
			return BatchEmbeddingResult{}, fmt.Errorf("fallback embed [%d]: %w", i, err)
		}
		reprs[i] = res.Representation
		totalPrompt += res.PromptTokens
		totalTokens += res.TotalTokens
	}

	return BatchEmbeddingResult{
		Representations: reprs,
		PromptTokens:    totalPrompt,
		TotalTokens:     totalTokens,
	}, nil
}
