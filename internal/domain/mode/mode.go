// Package mode defines the scoring strategy enum.
package mode

// Mode is the scoring strategy.
type Mode string

// Scoring mode constants.
const (
	// Hybrid fuses semantic and keyword rankings via RRF.
	Hybrid   Mode = "hybrid"
	Semantic Mode = "semantic"
	Keyword  Mode = "keyword"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Hybrid || m == Semantic || m == Keyword
}
