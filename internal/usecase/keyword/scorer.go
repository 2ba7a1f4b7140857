// Package keyword scores candidates against a query by sparse lexical
// relevance (BM25). IDF is computed over the candidate set supplied for
// the query, not over a global corpus index.
package keyword

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/kailas-cloud/rankfuse/internal/domain"
	"github.com/kailas-cloud/rankfuse/internal/domain/rank"
)

// Default BM25 free parameters.
const (
	DefaultK1 = 1.2
	DefaultB  = 0.75
)

// Scorer ranks candidates by BM25 relevance.
type Scorer struct {
	k1 float64
	b  float64
}

// New creates a keyword scorer. Non-positive parameters fall back to defaults.
func New(k1, b float64) *Scorer {
	if k1 <= 0 {
		k1 = DefaultK1
	}
	if b <= 0 {
		b = DefaultB
	}
	return &Scorer{k1: k1, b: b}
}

// Rank tokenizes the query and every candidate, computes BM25 scores with
// candidate-set IDF, and returns the ranking sorted by score descending,
// ties broken by ascending id. Empty candidate text scores 0, not an error.
func (s *Scorer) Rank(_ context.Context, query string, docs []domain.Document) ([]rank.Result, error) {
	queryTerms := Tokenize(query)

	tokenized := make([][]string, len(docs))
	var totalLen int
	for i, doc := range docs {
		tokenized[i] = Tokenize(doc.Text())
		totalLen += len(tokenized[i])
	}

	avgLen := 0.0
	if len(docs) > 0 {
		avgLen = float64(totalLen) / float64(len(docs))
	}

	// Document frequency per query term over the supplied candidate set.
	df := make(map[string]int, len(queryTerms))
	for _, terms := range tokenized {
		seen := make(map[string]bool, len(terms))
		for _, t := range terms {
			seen[t] = true
		}
		for _, q := range queryTerms {
			if seen[q] {
				df[q]++
			}
		}
	}

	n := float64(len(docs))
	idf := make(map[string]float64, len(df))
	for _, q := range queryTerms {
		d := float64(df[q])
		idf[q] = math.Log(1 + (n-d+0.5)/(d+0.5))
	}

	results := make([]rank.Result, len(docs))
	for i, doc := range docs {
		score := s.score(queryTerms, tokenized[i], idf, avgLen)
		results[i] = rank.New(doc.ID(), score, 0)
	}

	rank.Sort(results)
	return results, nil
}

// score computes BM25 for one candidate: per query term, IDF-weighted term
// frequency with k1 saturation and b length normalization.
func (s *Scorer) score(queryTerms, docTerms []string, idf map[string]float64, avgLen float64) float64 {
	if len(docTerms) == 0 || len(queryTerms) == 0 {
		return 0
	}

	tf := make(map[string]int, len(docTerms))
	for _, t := range docTerms {
		tf[t]++
	}

	lenNorm := 1.0
	if avgLen > 0 {
		lenNorm = 1 - s.b + s.b*float64(len(docTerms))/avgLen
	}

	var total float64
	for _, q := range queryTerms {
		f := float64(tf[q])
		if f == 0 {
			continue
		}
		total += idf[q] * (f * (s.k1 + 1)) / (f + s.k1*lenNorm)
	}
	return total
}

// Tokenize lowercases the text and splits on non-alphanumeric boundaries.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
