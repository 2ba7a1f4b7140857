package router

import (
	"strings"
	"unicode"
)

// Classification thresholds, tuned on short samples (a query plus a few
// candidate snippets). Both signals strong means mixed content.
const (
	codeLineShare    = 0.3
	nonASCIIShare    = 0.15
	minSampleLetters = 3
)

// codeTokens are markers counted per line. Substring matching is enough at
// this granularity; the classifier only has to beat a coin flip safely.
var codeTokens = []string{
	"func ", "def ", "class ", "import ", "return ", "var ", "const ",
	"#include", "=>", "()", "{}", "};",
}

// HeuristicClassifier classifies samples by line-level code markers and
// non-ASCII letter share.
type HeuristicClassifier struct{}

// NewHeuristicClassifier creates the built-in classifier.
func NewHeuristicClassifier() *HeuristicClassifier {
	return &HeuristicClassifier{}
}

// Classify assigns a content class to the sample.
func (c *HeuristicClassifier) Classify(sample string) Class {
	trimmed := strings.TrimSpace(sample)
	if trimmed == "" {
		return ClassUnknown
	}

	codeShare := codeLikeLineShare(trimmed)
	foreignShare, letters := nonASCIILetterShare(trimmed)

	if letters < minSampleLetters && codeShare == 0 {
		return ClassUnknown
	}

	isCode := codeShare >= codeLineShare
	isForeign := foreignShare >= nonASCIIShare

	switch {
	case isCode && isForeign:
		return ClassMixed
	case isCode:
		return ClassCode
	case isForeign:
		return ClassMultilingual
	default:
		return ClassProse
	}
}

// codeLikeLineShare returns the fraction of non-blank lines carrying code
// markers: known tokens, trailing braces/semicolons, or deep indentation.
func codeLikeLineShare(sample string) float64 {
	lines := strings.Split(sample, "\n")
	var total, codeLike int
	for _, line := range lines {
		stripped := strings.TrimSpace(line)
		if stripped == "" {
			continue
		}
		total++
		if lineLooksLikeCode(line, stripped) {
			codeLike++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(codeLike) / float64(total)
}

func lineLooksLikeCode(raw, stripped string) bool {
	for _, tok := range codeTokens {
		if strings.Contains(stripped, tok) {
			return true
		}
	}
	if strings.HasSuffix(stripped, "{") || strings.HasSuffix(stripped, "}") ||
		strings.HasSuffix(stripped, ";") {
		return true
	}
	// Indented continuation lines are a weak signal on their own but a
	// strong one together with symbol density.
	if strings.HasPrefix(raw, "    ") || strings.HasPrefix(raw, "\t") {
		return symbolShare(stripped) > 0.1
	}
	return false
}

func symbolShare(s string) float64 {
	if len(s) == 0 {
		return 0
	}
	var symbols int
	for _, r := range s {
		switch r {
		case '(', ')', '[', ']', '{', '}', '=', ';', ':', '.', ',', '<', '>', '&', '|':
			symbols++
		}
	}
	return float64(symbols) / float64(len([]rune(s)))
}

// nonASCIILetterShare returns the fraction of letters outside ASCII and
// the total letter count.
func nonASCIILetterShare(sample string) (float64, int) {
	var letters, foreign int
	for _, r := range sample {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if r > unicode.MaxASCII {
			foreign++
		}
	}
	if letters == 0 {
		return 0, 0
	}
	return float64(foreign) / float64(letters), letters
}
